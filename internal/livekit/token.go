// Package livekit wraps the LiveKit server SDK: it mints participant access
// tokens and provisions rooms through the RoomService.
package livekit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
)

// DefaultTokenTTL bounds how long a candidate may take to join.
const DefaultTokenTTL = 2 * time.Hour

// TokenSigner issues access tokens signed with the project's API key pair.
type TokenSigner struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenSigner validates credentials and returns a signer. There is no
// fallback key: missing credentials are a configuration error.
func NewTokenSigner(apiKey, apiSecret string, ttl time.Duration) (*TokenSigner, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("livekit api key and secret are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// JoinToken mints a token letting identity join room with publish and
// subscribe rights. It returns the token and its expiry.
func (s *TokenSigner) JoinToken(identity, name, room, metadata string) (string, time.Time, error) {
	if identity == "" || room == "" {
		return "", time.Time{}, errors.New("identity and room are required")
	}
	grant := &auth.VideoGrant{RoomJoin: true, Room: room}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)

	expires := s.now().Add(s.ttl)
	token, err := auth.NewAccessToken(s.apiKey, s.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetMetadata(metadata).
		SetValidFor(s.ttl).
		ToJWT()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign livekit token: %w", err)
	}
	return token, expires, nil
}
