package stream

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one subscriber's bounded backlog. Delivery never blocks: when
// the backlog is full the oldest message is discarded.
type Session struct {
	owner    string
	capacity int
	release  func(*Session)

	mu      sync.Mutex
	buf     []Message
	dropped uint64
	closed  bool

	signal chan struct{}
	done   chan struct{}
}

func newSession(owner string, capacity int, release func(*Session)) *Session {
	return &Session{
		owner:    owner,
		capacity: max(capacity, 1),
		release:  release,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *Session) Owner() string {
	return s.owner
}

// Dropped returns how many messages were discarded by overflow.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Len returns the number of undelivered messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// deliver appends m and reports how many messages were dropped to make room.
func (s *Session) deliver(m Message) int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}

	dropped := 0
	if len(s.buf) >= s.capacity {
		s.buf = slices.Delete(s.buf, 0, 1)
		s.dropped++
		dropped = 1
	}
	s.buf = append(s.buf, m)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return dropped
}

// purge removes queued status messages for a document.
func (s *Session) purge(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.buf)
	s.buf = slices.DeleteFunc(s.buf, func(m Message) bool {
		return m.Kind == KindStatus && m.DocumentID == id
	})
	return n - len(s.buf)
}

// Next returns the next message. When nothing arrives within idle it
// returns a heartbeat. It returns ErrClosed once the session is closed and
// ctx.Err() when ctx ends.
func (s *Session) Next(ctx context.Context, idle time.Duration) (Message, error) {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Message{}, ErrClosed
		}
		if len(s.buf) > 0 {
			m := s.buf[0]
			s.buf = slices.Delete(s.buf, 0, 1)
			s.mu.Unlock()
			return m, nil
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
		case <-s.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-timer.C:
			return heartbeat(), nil
		}
	}
}

// Close unsubscribes the session. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.buf = nil
	s.mu.Unlock()

	close(s.done)
	if s.release != nil {
		s.release(s)
	}
}
