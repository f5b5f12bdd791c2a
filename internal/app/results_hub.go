package app

import (
	"sync"

	"quiztake-service/internal/domain"
)

// ResultsHub fans finalized session summaries out to in-process subscribers
// (the live results websocket feed). It implements SubmitListener.
type ResultsHub struct {
	mu          sync.Mutex
	subscribers map[chan domain.SessionSummary]struct{}
}

func NewResultsHub() *ResultsHub {
	return &ResultsHub{
		subscribers: make(map[chan domain.SessionSummary]struct{}),
	}
}

// Subscribe returns a channel of finalized session summaries. The caller
// must invoke the returned cancel function to avoid leaks.
func (h *ResultsHub) Subscribe() (<-chan domain.SessionSummary, func()) {
	ch := make(chan domain.SessionSummary, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SessionSubmitted broadcasts a summary to all subscribers. Slow consumers
// lose their oldest pending update rather than blocking the submit path.
func (h *ResultsHub) SessionSubmitted(summary domain.SessionSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- summary:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- summary
		}
	}
}
