// Package status records the lifecycle of each document as an append-only
// history of state transitions and publishes every write to observers.
package status

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// State is a step of the document processing state machine.
type State string

const (
	Pending    State = "pending"
	Processing State = "processing"
	Analyzing  State = "analyzing"
	Completed  State = "completed"
	Failed     State = "failed"
)

// States lists every state in canonical path order.
var States = []State{Pending, Processing, Analyzing, Completed, Failed}

var successor = map[State]State{
	Pending:    Processing,
	Processing: Analyzing,
	Analyzing:  Completed,
}

// ParseState validates s as a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return st, nil
}

func (s State) Valid() bool {
	switch s {
	case Pending, Processing, Analyzing, Completed, Failed:
		return true
	}
	return false
}

// Terminal reports whether no transition may follow s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Validate checks that next may follow prev, where a nil prev means the
// document has no history yet. The only legal histories are prefixes of
// pending → processing → analyzing → completed, with failed reachable from
// any non-terminal state.
func Validate(prev *State, next State) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrConflict, next)
	}
	if prev == nil {
		if next != Pending {
			return fmt.Errorf("%w: history must begin with %s, got %s", ErrConflict, Pending, next)
		}
		return nil
	}
	if prev.Terminal() {
		return fmt.Errorf("%w: %s is terminal, cannot move to %s", ErrConflict, *prev, next)
	}
	if next == Failed || successor[*prev] == next {
		return nil
	}
	return fmt.Errorf("%w: illegal transition %s -> %s", ErrConflict, *prev, next)
}

// Event is one immutable record of a state transition.
type Event struct {
	Seq        int64          `json:"seq"`
	DocumentID uuid.UUID      `json:"document_id"`
	OwnerID    string         `json:"owner_id"`
	State      State          `json:"state"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Result     *Result        `json:"result,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Result is the structured analysis output written with the completed event.
type Result struct {
	DocumentID uuid.UUID `json:"document_id"`
	Summary    string    `json:"summary"`
	Topics     []string  `json:"key_topics"`
	Sentiment  string    `json:"sentiment"`
	Actions    []string  `json:"actionable_items"`
	RawOutput  string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transition requests a new state for a document.
type Transition struct {
	DocumentID uuid.UUID
	State      State
	Reason     string
	Metadata   map[string]any
}

// Info builds the conventional metadata payload for a transition.
func Info(msg string) map[string]any {
	return map[string]any{"info": msg}
}

// Observer receives every committed write. Implementations must not block.
type Observer interface {
	Published(e Event)
	Removed(documentID uuid.UUID, ownerID string)
}

// Store persists status histories with single-writer-per-document discipline.
type Store interface {
	// Open writes the initial pending event. It is a conflict if any history exists.
	Open(ctx context.Context, documentID uuid.UUID, ownerID string) (Event, error)
	// Append validates t against the latest state and writes it.
	// Completed cannot be appended; use Complete.
	Append(ctx context.Context, t Transition) (Event, error)
	// Complete writes the analysis result and the completed event atomically.
	Complete(ctx context.Context, documentID uuid.UUID, result Result, metadata map[string]any) (Event, error)
	History(ctx context.Context, documentID uuid.UUID) ([]Event, error)
	Latest(ctx context.Context, documentID uuid.UUID) (Event, error)
	Result(ctx context.Context, documentID uuid.UUID) (Result, error)
	// Delete removes the document with its history and result.
	Delete(ctx context.Context, documentID uuid.UUID) error
	// Recent returns the owner's last limit events, oldest first, with results inline.
	Recent(ctx context.Context, ownerID string, limit int) ([]Event, error)
}

// nextTimestamp returns now truncated to database precision, bumped past
// last so that timestamps stay strictly increasing per document.
func nextTimestamp(last *time.Time, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if last != nil && !now.After(*last) {
		return last.Add(time.Microsecond)
	}
	return now
}

func cloneEvent(e Event) Event {
	e.Metadata = maps.Clone(e.Metadata)
	if e.Result != nil {
		r := cloneResult(*e.Result)
		e.Result = &r
	}
	return e
}

func cloneResult(r Result) Result {
	r.Topics = append([]string(nil), r.Topics...)
	r.Actions = append([]string(nil), r.Actions...)
	return r
}

type observers []Observer

func (o observers) published(e Event) {
	for _, obs := range o {
		obs.Published(cloneEvent(e))
	}
}

func (o observers) removed(id uuid.UUID, owner string) {
	for _, obs := range o {
		obs.Removed(id, owner)
	}
}
