package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/autovoyce/autovoyce/internal/events"
)

const (
	// sseKeepaliveInterval is how long the stream stays quiet before a
	// keepalive comment is written so proxies do not cut the connection.
	sseKeepaliveInterval = 1 * time.Second

	// sseBufferSize bounds the per-connection queue of live events. A client
	// too slow to drain it loses events rather than stalling the emitter.
	sseBufferSize = 64
)

// handleStatus streams the session's pipeline events. Buffered history is
// replayed first so a client connecting after dispatch still sees the whole
// run, then live events follow until the client disconnects.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if _, ok := s.registry.Namespace(sessionID); !ok {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, events.Event{
		Type:      events.TypeConnected,
		Message:   "Status stream connected",
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"session_id": sessionID},
	})
	flusher.Flush()

	live := make(chan events.Event, sseBufferSize)
	history, sub := s.events.SubscribeWithReplay(sessionID, func(ev events.Event) {
		select {
		case live <- ev:
		default:
			log.Warn().Str("sessionId", sessionID).Msg("SSE client too slow, event dropped")
		}
	})
	defer s.events.Unsubscribe(sub)

	for _, ev := range history {
		writeEvent(w, ev)
	}
	flusher.Flush()

	keepalive := time.NewTimer(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("sessionId", sessionID).Msg("SSE client disconnected")
			return
		case ev := <-live:
			writeEvent(w, ev)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
		if !keepalive.Stop() {
			select {
			case <-keepalive.C:
			default:
			}
		}
		keepalive.Reset(sseKeepaliveInterval)
	}
}

func writeEvent(w http.ResponseWriter, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
