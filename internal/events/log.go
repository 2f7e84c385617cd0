// Package events provides the per-session processing event log for autovoyce.
//
// Pipeline stages emit typed progress events here; the SSE status endpoint
// replays a session's buffered history and then streams live events through
// subscribed listeners. Listeners must only enqueue; they are invoked while
// the log's lock is held and must never block.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types emitted during pipeline execution.
const (
	TypeProcessingStarted  = "processing_started"
	TypeVideoProcessing    = "video_processing"
	TypeVideoProcessed     = "video_processed"
	TypeVideoError         = "video_error"
	TypeTranscriptStarted  = "transcript_started"
	TypeTranscriptComplete = "transcript_complete"
	TypeUploadStarted      = "upload_started"
	TypeChunksUploaded     = "chunks_uploaded"
	TypeUploadComplete     = "upload_complete"
	TypeUploadError        = "upload_error"
	TypeProcessingComplete = "processing_complete"
	TypeProcessingError    = "processing_error"

	// TypeConnected is stream-local: sent once when an SSE client attaches,
	// never stored in the log.
	TypeConnected = "connected"
)

// Event is one timestamped progress record for a session.
type Event struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Listener receives events as they are emitted.
type Listener func(Event)

// DefaultMaxPerSession bounds a session's buffered history when no cap is
// configured. Oldest events are dropped once the cap is reached.
const DefaultMaxPerSession = 1000

// Subscription identifies one registered listener.
type Subscription struct {
	sessionID string
	fn        Listener
}

// Log is a thread-safe, append-only event log partitioned by session.
type Log struct {
	mu        sync.Mutex
	events    map[string][]Event
	listeners map[string][]*Subscription
	maxPer    int
}

// NewLog creates an event log. maxPerSession <= 0 selects DefaultMaxPerSession.
func NewLog(maxPerSession int) *Log {
	if maxPerSession <= 0 {
		maxPerSession = DefaultMaxPerSession
	}
	return &Log{
		events:    make(map[string][]Event),
		listeners: make(map[string][]*Subscription),
		maxPer:    maxPerSession,
	}
}

// Emit appends an event to the session's history and notifies every
// subscribed listener in subscription order. A panicking listener is isolated:
// it neither drops the event nor prevents the remaining listeners from firing.
func (l *Log) Emit(sessionID, eventType, message string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	ev := Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
		Data:      data,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	buf := append(l.events[sessionID], ev)
	if len(buf) > l.maxPer {
		buf = buf[len(buf)-l.maxPer:]
	}
	l.events[sessionID] = buf

	for _, sub := range l.listeners[sessionID] {
		l.notify(sessionID, sub.fn, ev)
	}
}

func (l *Log) notify(sessionID string, fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("sessionId", sessionID).
				Str("eventType", ev.Type).
				Interface("panic", r).
				Msg("Event listener panicked")
		}
	}()
	fn(ev)
}

// Subscribe registers a listener for a session's events. The returned handle
// is passed to Unsubscribe; listeners are compared by handle, not identity,
// so the same function can be subscribed more than once.
func (l *Log) Subscribe(sessionID string, fn Listener) *Subscription {
	sub := &Subscription{sessionID: sessionID, fn: fn}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners[sessionID] = append(l.listeners[sessionID], sub)
	return sub
}

// SubscribeWithReplay atomically snapshots the session's buffered history and
// registers a listener for subsequent events. Because both happen under one
// lock, an event lands in exactly one of the two: the returned history or the
// listener. This is the seam the SSE endpoint needs to replay without
// duplicating or dropping events emitted during attachment.
func (l *Log) SubscribeWithReplay(sessionID string, fn Listener) ([]Event, *Subscription) {
	sub := &Subscription{sessionID: sessionID, fn: fn}
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := l.events[sessionID]
	history := make([]Event, len(buf))
	copy(history, buf)
	l.listeners[sessionID] = append(l.listeners[sessionID], sub)
	return history, sub
}

// Unsubscribe removes a previously registered listener. Removing a listener
// that is not present is a no-op.
func (l *Log) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := l.listeners[sub.sessionID]
	for i := range subs {
		if subs[i] == sub {
			l.listeners[sub.sessionID] = append(subs[:i], subs[i+1:]...)
			if len(l.listeners[sub.sessionID]) == 0 {
				delete(l.listeners, sub.sessionID)
			}
			return
		}
	}
}

// Events returns a snapshot copy of the session's buffered history, in
// emission order. Safe to iterate while new events arrive.
func (l *Log) Events(sessionID string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := l.events[sessionID]
	out := make([]Event, len(buf))
	copy(out, buf)
	return out
}

// Clear drops the stored history for a session. Listeners stay subscribed.
func (l *Log) Clear(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, sessionID)
}
