package status

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Each document has its own mutex; the
// record map lock is held only to look records up or remove them.
type Memory struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]*record
	seq       atomic.Int64
	lastNanos atomic.Int64
	observers observers
	now       func() time.Time
}

type record struct {
	mu      sync.Mutex
	owner   string
	events  []Event
	result  *Result
	deleted bool
}

// NewMemory creates an empty in-memory store.
func NewMemory(obs ...Observer) *Memory {
	return &Memory{
		records:   make(map[uuid.UUID]*record),
		observers: obs,
		now:       time.Now,
	}
}

func (m *Memory) Open(_ context.Context, documentID uuid.UUID, ownerID string) (Event, error) {
	m.mu.Lock()
	rec, ok := m.records[documentID]
	if !ok {
		rec = &record{owner: ownerID}
		m.records[documentID] = rec
	}
	m.mu.Unlock()

	rec.mu.Lock()
	if rec.deleted {
		rec.mu.Unlock()
		return Event{}, ErrNotFound
	}
	if err := Validate(rec.latestState(), Pending); err != nil {
		rec.mu.Unlock()
		return Event{}, err
	}
	e := m.appendLocked(documentID, rec, Transition{DocumentID: documentID, State: Pending, Metadata: Info("Document uploaded.")})
	rec.mu.Unlock()

	m.observers.published(e)
	return cloneEvent(e), nil
}

func (m *Memory) Append(_ context.Context, t Transition) (Event, error) {
	if t.State == Completed {
		return Event{}, fmt.Errorf("%w: completed requires a result", ErrConflict)
	}

	rec, err := m.lock(t.DocumentID)
	if err != nil {
		return Event{}, err
	}
	if err := Validate(rec.latestState(), t.State); err != nil {
		rec.mu.Unlock()
		return Event{}, err
	}
	e := m.appendLocked(t.DocumentID, rec, t)
	rec.mu.Unlock()

	m.observers.published(e)
	return cloneEvent(e), nil
}

func (m *Memory) Complete(_ context.Context, documentID uuid.UUID, result Result, metadata map[string]any) (Event, error) {
	rec, err := m.lock(documentID)
	if err != nil {
		return Event{}, err
	}
	if err := Validate(rec.latestState(), Completed); err != nil {
		rec.mu.Unlock()
		return Event{}, err
	}

	e := m.appendLocked(documentID, rec, Transition{DocumentID: documentID, State: Completed, Metadata: metadata})
	result.DocumentID = documentID
	result.CreatedAt = e.CreatedAt
	stored := cloneResult(result)
	rec.result = &stored
	e.Result = &stored
	rec.events[len(rec.events)-1] = e
	rec.mu.Unlock()

	m.observers.published(e)
	return cloneEvent(e), nil
}

func (m *Memory) History(_ context.Context, documentID uuid.UUID) ([]Event, error) {
	rec, err := m.lock(documentID)
	if err != nil {
		return nil, err
	}
	defer rec.mu.Unlock()

	out := make([]Event, len(rec.events))
	for i, e := range rec.events {
		out[i] = cloneEvent(e)
	}
	return out, nil
}

func (m *Memory) Latest(_ context.Context, documentID uuid.UUID) (Event, error) {
	rec, err := m.lock(documentID)
	if err != nil {
		return Event{}, err
	}
	defer rec.mu.Unlock()

	if len(rec.events) == 0 {
		return Event{}, ErrNotFound
	}
	return cloneEvent(rec.events[len(rec.events)-1]), nil
}

func (m *Memory) Result(_ context.Context, documentID uuid.UUID) (Result, error) {
	rec, err := m.lock(documentID)
	if err != nil {
		return Result{}, err
	}
	defer rec.mu.Unlock()

	if rec.result == nil {
		return Result{}, ErrNotFound
	}
	return cloneResult(*rec.result), nil
}

func (m *Memory) Delete(_ context.Context, documentID uuid.UUID) error {
	m.mu.Lock()
	rec, ok := m.records[documentID]
	delete(m.records, documentID)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	rec.mu.Lock()
	rec.deleted = true
	owner := rec.owner
	rec.events = nil
	rec.result = nil
	rec.mu.Unlock()

	m.observers.removed(documentID, owner)
	return nil
}

func (m *Memory) Recent(_ context.Context, ownerID string, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	recs := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	var events []Event
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.owner == ownerID && !rec.deleted {
			for _, e := range rec.events {
				events = append(events, cloneEvent(e))
			}
		}
		rec.mu.Unlock()
	}

	slices.SortFunc(events, func(a, b Event) int { return int(a.Seq - b.Seq) })
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// lock returns the live record for id with its mutex held.
func (m *Memory) lock(id uuid.UUID) (*record, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	rec.mu.Lock()
	if rec.deleted {
		rec.mu.Unlock()
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) appendLocked(id uuid.UUID, rec *record, t Transition) Event {
	var last *time.Time
	if n := len(rec.events); n > 0 {
		last = &rec.events[n-1].CreatedAt
	}

	e := Event{
		Seq:        m.seq.Add(1),
		DocumentID: id,
		OwnerID:    rec.owner,
		State:      t.State,
		Reason:     t.Reason,
		Metadata:   t.Metadata,
		CreatedAt:  m.tick(last),
	}
	rec.events = append(rec.events, e)
	return e
}

// tick returns a timestamp strictly after last and after every timestamp
// this store has handed out before, so single-consumer ordering across
// documents is observable in event times.
func (m *Memory) tick(last *time.Time) time.Time {
	for {
		prev := m.lastNanos.Load()
		ts := nextTimestamp(last, m.now())
		if prevT := time.Unix(0, prev).UTC(); prev != 0 && !ts.After(prevT) {
			ts = prevT.Add(time.Microsecond)
		}
		if m.lastNanos.CompareAndSwap(prev, ts.UnixNano()) {
			return ts
		}
	}
}

func (r *record) latestState() *State {
	if len(r.events) == 0 {
		return nil
	}
	s := r.events[len(r.events)-1].State
	return &s
}
