package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiztake-service/internal/app"
	"quiztake-service/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestResultsFeedStreamsSubmissions(t *testing.T) {
	hub := app.NewResultsHub()
	feed := NewResultsFeed(hub, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/results", feed.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/results"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The handler subscribes after the handshake returns to the dialer, so
	// keep broadcasting until the frame comes through.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hub.SessionSubmitted(domain.SessionSummary{SessionID: "s1", Name: "Alice", Score: 3})
			}
		}
	}()

	var msg struct {
		Type    string                `json:"type"`
		Payload domain.SessionSummary `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "result" {
		t.Fatalf("expected result message, got %s", msg.Type)
	}
	if msg.Payload.SessionID != "s1" || msg.Payload.Score != 3 {
		t.Fatalf("unexpected payload %+v", msg.Payload)
	}
}

func TestResultsFeedClosesWithClient(t *testing.T) {
	hub := app.NewResultsHub()
	feed := NewResultsFeed(hub, zerolog.Nop())

	server := httptest.NewServer(http.HandlerFunc(feed.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	// Broadcasting after the client is gone must not panic or block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			hub.SessionSubmitted(domain.SessionSummary{SessionID: "s1"})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("broadcast blocked after client disconnect")
	}
}
