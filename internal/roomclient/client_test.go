package roomclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestResolveDirect(t *testing.T) {
	c := New("http://unused.invalid")
	conn, err := c.Resolve(context.Background(), Params{ServerURL: "wss://lk.test", Token: "abc", RoomName: "r1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conn.ServerURL != "wss://lk.test" || conn.Token != "abc" || conn.RoomName != "r1" {
		t.Errorf("conn = %+v", conn)
	}
}

func TestResolveViaBackend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/interviews/room/create-new-room" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"serverUrl":   "wss://lk.test",
			"token":       "jwt",
			"roomName":    "interview_c1_1",
			"roomCode":    "ABC123",
			"interviewId": "iv-1",
		})
	}))
	defer srv.Close()

	conn, err := New(srv.URL+"/").Resolve(context.Background(), Params{JobID: "J1", Phone: "+15550001111", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["jobId"] != "J1" || got["phone"] != "+15550001111" || got["firstName"] != "Ada" {
		t.Errorf("request body = %v", got)
	}
	if conn.RoomCode != "ABC123" || conn.InterviewID != "iv-1" || conn.Token != "jwt" {
		t.Errorf("conn = %+v", conn)
	}
}

func TestResolveErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		params  Params
		wantSub string
	}{
		{"nothing to go on", Params{}, "required"},
		{"token without url", Params{Token: "abc"}, "required"},
		{"backend error", Params{JobID: "J9", Phone: "+15550001111"}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(srv.URL).Resolve(context.Background(), tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want containing %q", err, tt.wantSub)
			}
		})
	}
}

func TestJoinURL(t *testing.T) {
	conn := &Connection{ServerURL: "wss://lk.test", Token: "a.b.c"}
	link, err := conn.JoinURL("")
	if err != nil {
		t.Fatalf("JoinURL: %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "meet.livekit.io" || u.Query().Get("liveKitUrl") != "wss://lk.test" || u.Query().Get("token") != "a.b.c" {
		t.Errorf("link = %s", link)
	}
}
