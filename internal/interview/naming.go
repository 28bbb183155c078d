package interview

import (
	"fmt"
	"strings"
	"time"
)

const roomNamePrefix = "interview_"

// digitsOf strips everything but ASCII digits from a phone number.
func digitsOf(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RoomCode is the short human code read out to candidates: the last four
// phone digits followed by a six-digit millisecond suffix.
func RoomCode(phone string, at time.Time) string {
	d := digitsOf(phone)
	if len(d) > 4 {
		d = d[len(d)-4:]
	}
	d = strings.Repeat("0", 4-len(d)) + d
	return fmt.Sprintf("%s%06d", d, at.UnixMilli()%1_000_000)
}

// RoomName is the unique LiveKit room name for a candidate session.
func RoomName(candidateID string, at time.Time) string {
	return fmt.Sprintf("%s%s_%d", roomNamePrefix, candidateID, at.UnixMilli())
}

// ParticipantIdentity is the LiveKit identity granted to the candidate.
func ParticipantIdentity(phone string, at time.Time) string {
	return fmt.Sprintf("candidate_%s_%d", digitsOf(phone), at.UnixMilli())
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
