package http

import (
	"net/http"

	"quiztake-service/internal/app"
	"quiztake-service/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ResultsFeed streams finalized session summaries to websocket subscribers.
// The feed is one-way: inbound frames are drained only to detect the client
// going away.
type ResultsFeed struct {
	hub      *app.ResultsHub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewResultsFeed(hub *app.ResultsHub, log zerolog.Logger) *ResultsFeed {
	return &ResultsFeed{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and relays hub updates until either side
// closes the connection.
func (f *ResultsFeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := f.hub.Subscribe()
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case summary, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.SessionSummary]{Type: "result", Payload: summary}); err != nil {
				f.log.Debug().Err(err).Msg("ws write error")
				return
			}
		case <-readerDone:
			return
		}
	}
}
