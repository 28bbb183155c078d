// roomctl resolves the LiveKit connection for a candidate and prints it,
// optionally as a LiveKit Meet link.
//
//	roomctl -backend http://localhost:8083 -job J1 -phone +15550001111
//	roomctl -url wss://lk.example.com -token <jwt> -meet
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"rolevate/interview-service/internal/roomclient"
)

func main() {
	log.SetFlags(0)
	var (
		backend = flag.String("backend", envOr("INTERVIEW_BACKEND_URL", "http://localhost:8083"), "interview-service base URL")
		p       roomclient.Params
		meet    = flag.Bool("meet", false, "print a LiveKit Meet join link instead of JSON")
		meetURL = flag.String("meet-base", roomclient.DefaultMeetBase, "LiveKit Meet page")
	)
	flag.StringVar(&p.ServerURL, "url", "", "LiveKit server URL (skips the backend together with -token)")
	flag.StringVar(&p.Token, "token", "", "LiveKit join token")
	flag.StringVar(&p.RoomName, "room", "", "room name, with -url and -token")
	flag.StringVar(&p.JobID, "job", "", "job post id")
	flag.StringVar(&p.Phone, "phone", "", "candidate phone number")
	flag.StringVar(&p.FirstName, "first-name", "", "candidate first name")
	flag.StringVar(&p.LastName, "last-name", "", "candidate last name")
	flag.StringVar(&p.Email, "email", "", "candidate email")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := roomclient.New(*backend).Resolve(ctx, p)
	if err != nil {
		log.Fatalf("roomctl: %v", err)
	}

	if *meet {
		link, err := conn.JoinURL(*meetURL)
		if err != nil {
			log.Fatalf("roomctl: %v", err)
		}
		fmt.Println(link)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(conn); err != nil {
		log.Fatalf("roomctl: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
