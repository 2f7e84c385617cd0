// Package session provides session lifecycle and namespace isolation for
// autovoyce.
//
// Every client session owns exactly one index namespace for the lifetime of
// the session. The registry is the single owner of the session→namespace
// mapping; the namespace string is copied into pipeline state and events but
// never mutated outside this package.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NamespaceDeleter tears down a namespace's data in the remote index.
// Implemented by the vector store adapter.
type NamespaceDeleter interface {
	DeleteNamespace(ctx context.Context, namespace string) error
}

// namespacePrefixLen is how many hex characters of the session token form the
// namespace suffix. Short enough to stay human-legible in index dashboards.
const namespacePrefixLen = 8

type entry struct {
	namespace  string
	createdAt  time.Time
	lastAccess time.Time
}

// Registry maps opaque session tokens to isolated index namespaces.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]*entry
	namespaces    map[string]string // namespace -> session id, for collision checks
	lastSessionID string
	deleter       NamespaceDeleter
}

// NewRegistry creates a registry. deleter may be nil, in which case session
// deletion only removes local state.
func NewRegistry(deleter NamespaceDeleter) *Registry {
	return &Registry{
		sessions:   make(map[string]*entry),
		namespaces: make(map[string]string),
		deleter:    deleter,
	}
}

// Create mints a fresh session and derives its namespace
// ("session_" + first 8 hex of the token). The token space is 128-bit so live
// id collisions do not happen; the truncated namespace is still checked
// against live sessions and regenerated on the off chance it collides.
func (r *Registry) Create() (sessionID, namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		sessionID = uuid.NewString()
		namespace = "session_" + sessionID[:namespacePrefixLen]
		if _, taken := r.namespaces[namespace]; !taken {
			break
		}
	}

	now := time.Now()
	r.sessions[sessionID] = &entry{namespace: namespace, createdAt: now, lastAccess: now}
	r.namespaces[namespace] = sessionID
	r.lastSessionID = sessionID

	log.Info().
		Str("sessionId", sessionID).
		Str("namespace", namespace).
		Int("totalSessions", len(r.sessions)).
		Msg("Session created")

	return sessionID, namespace
}

// Touch refreshes the session's last-access time. Unknown ids are a no-op.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sessionID]; ok {
		e.lastAccess = time.Now()
	}
}

// Namespace returns the namespace for a session, or false if the session does
// not exist (never created, deleted, or expired).
func (r *Registry) Namespace(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return e.namespace, true
}

// Delete removes a session and best-effort drops its namespace from the
// remote index. The registry entry is removed regardless of the remote
// outcome: local state decides whether a session is usable, and a failed
// remote delete is logged, not retried.
func (r *Registry) Delete(ctx context.Context, sessionID string) bool {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, sessionID)
	delete(r.namespaces, e.namespace)
	remaining := len(r.sessions)
	r.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Str("namespace", e.namespace).
		Int("totalSessions", remaining).
		Msg("Session deleted")

	if r.deleter != nil {
		if err := r.deleter.DeleteNamespace(ctx, e.namespace); err != nil {
			log.Error().
				Err(err).
				Str("namespace", e.namespace).
				Msg("Failed to delete index namespace")
		}
	}
	return true
}

// Sessions returns a snapshot mapping session id to namespace, for
// diagnostics.
func (r *Registry) Sessions() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.sessions))
	for id, e := range r.sessions {
		out[id] = e.namespace
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// LastSessionID returns the most recently created session id, or "" if none.
func (r *Registry) LastSessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSessionID
}

// expired returns the ids of sessions idle longer than timeout at the given
// instant.
func (r *Registry) expired(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, e := range r.sessions {
		if now.Sub(e.lastAccess) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}
