// Package stream republishes status events to per-user subscriber sessions
// over Server-Sent Events and WebSocket connections.
package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/internal/telemetry"
	"github.com/JaimeStill/scribe/pkg/lifecycle"
)

// Hub fans status events out to the sessions of each event's owner.
// Each owner has its own lock; there is no lock shared across owners.
type Hub struct {
	buckets    sync.Map
	bufferSize int
	closed     atomic.Bool
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

type bucket struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	dead     bool
}

// NewHub creates a Hub whose sessions buffer up to bufferSize messages.
func NewHub(bufferSize int, metrics *telemetry.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		bufferSize: max(bufferSize, 1),
		metrics:    metrics,
		logger:     logger.With("system", "stream"),
	}
}

// Subscribe opens a session for owner.
func (h *Hub) Subscribe(owner string) (*Session, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}

	s := newSession(owner, h.bufferSize, h.unsubscribe)
	for {
		v, _ := h.buckets.LoadOrStore(owner, &bucket{sessions: make(map[*Session]struct{})})
		b := v.(*bucket)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		b.sessions[s] = struct{}{}
		b.mu.Unlock()
		break
	}

	h.metrics.Sessions(1)
	h.logger.Debug("session opened", "owner", owner)

	if h.closed.Load() {
		s.Close()
		return nil, ErrClosed
	}
	return s, nil
}

// Sessions returns the number of open sessions for owner.
func (h *Hub) Sessions(owner string) int {
	v, ok := h.buckets.Load(owner)
	if !ok {
		return 0
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Published delivers e to every session of its owner. Hub is a status.Observer.
func (h *Hub) Published(e status.Event) {
	h.broadcast(e.OwnerID, func(s *Session) int {
		return s.deliver(statusMessage(e))
	})
}

// Removed purges queued messages about the document and sends a deletion notice.
func (h *Hub) Removed(id uuid.UUID, owner string) {
	h.broadcast(owner, func(s *Session) int {
		s.purge(id)
		return s.deliver(deletedMessage(id))
	})
}

func (h *Hub) broadcast(owner string, fn func(*Session) int) {
	v, ok := h.buckets.Load(owner)
	if !ok {
		return
	}
	b := v.(*bucket)

	b.mu.Lock()
	dropped := 0
	for s := range b.sessions {
		dropped += fn(s)
	}
	b.mu.Unlock()

	if dropped > 0 {
		h.metrics.Dropped(dropped)
		h.logger.Warn("session backlog overflow", "owner", owner, "dropped", dropped)
	}
}

func (h *Hub) unsubscribe(s *Session) {
	v, ok := h.buckets.Load(s.owner)
	if !ok {
		return
	}
	b := v.(*bucket)

	b.mu.Lock()
	if _, ok := b.sessions[s]; ok {
		delete(b.sessions, s)
		h.metrics.Sessions(-1)
	}
	if len(b.sessions) == 0 && !b.dead {
		b.dead = true
		h.buckets.CompareAndDelete(s.owner, b)
	}
	b.mu.Unlock()

	h.logger.Debug("session closed", "owner", s.owner, "dropped", s.Dropped())
}

// Close closes every session and rejects new subscriptions.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}

	var sessions []*Session
	h.buckets.Range(func(_, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		for s := range b.sessions {
			sessions = append(sessions, s)
		}
		b.mu.Unlock()
		return true
	})

	for _, s := range sessions {
		s.Close()
	}
	h.logger.Info("stream hub closed", "sessions", len(sessions))
}

// Start closes the hub on shutdown so stream handlers return.
func (h *Hub) Start(lc *lifecycle.Coordinator) {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		h.Close()
	})
}
