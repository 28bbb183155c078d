// Package roomclient resolves the LiveKit connection a candidate joins,
// either from parameters handed over directly or by asking the interview
// backend to provision a room.
package roomclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMeetBase is the hosted LiveKit Meet page used by JoinURL.
const DefaultMeetBase = "https://meet.livekit.io/custom"

// Params describe how to reach a room. ServerURL and Token together skip
// the backend; otherwise JobID and Phone are required.
type Params struct {
	ServerURL string
	Token     string
	RoomName  string

	JobID     string
	Phone     string
	FirstName string
	LastName  string
	Email     string
}

// Connection is everything a LiveKit client needs to join.
type Connection struct {
	ServerURL   string `json:"serverUrl"`
	Token       string `json:"token"`
	RoomName    string `json:"roomName"`
	RoomCode    string `json:"roomCode"`
	InterviewID string `json:"interviewId"`
}

// Client talks to the interview backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve returns the connection described by p.
func (c *Client) Resolve(ctx context.Context, p Params) (*Connection, error) {
	if p.ServerURL != "" && p.Token != "" {
		return &Connection{ServerURL: p.ServerURL, Token: p.Token, RoomName: p.RoomName}, nil
	}
	if p.JobID == "" || p.Phone == "" {
		return nil, errors.New("either serverUrl and token, or jobId and phone, are required")
	}

	body, err := json.Marshal(map[string]string{
		"jobId":     p.JobID,
		"phone":     p.Phone,
		"firstName": p.FirstName,
		"lastName":  p.LastName,
		"email":     p.Email,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/interviews/room/create-new-room", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("create room: %s: %s", resp.Status, e.Error)
		}
		return nil, fmt.Errorf("create room: %s", resp.Status)
	}

	var conn Connection
	if err := json.NewDecoder(resp.Body).Decode(&conn); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if conn.ServerURL == "" || conn.Token == "" {
		return nil, errors.New("create room: backend returned no serverUrl or token")
	}
	return &conn, nil
}

// JoinURL renders a LiveKit Meet link for c. An empty meetBase means
// DefaultMeetBase.
func (c *Connection) JoinURL(meetBase string) (string, error) {
	if meetBase == "" {
		meetBase = DefaultMeetBase
	}
	u, err := url.Parse(meetBase)
	if err != nil {
		return "", fmt.Errorf("parse meet base: %w", err)
	}
	q := u.Query()
	q.Set("liveKitUrl", c.ServerURL)
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
