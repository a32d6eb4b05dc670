package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/pkg/repository"
)

type pgStore struct {
	db        *sql.DB
	logger    *slog.Logger
	observers observers
}

// New creates a PostgreSQL-backed Store. Writes lock the documents row with
// SELECT ... FOR UPDATE, serializing writers per document.
func New(db *sql.DB, logger *slog.Logger, obs ...Observer) Store {
	return &pgStore{
		db:        db,
		logger:    logger.With("system", "status"),
		observers: obs,
	}
}

const eventColumns = `e.seq, e.document_id, e.owner_id, e.state, e.reason, e.metadata, e.created_at`

const resultColumns = `r.document_id, r.summary, r.topics, r.sentiment, r.actions, r.raw_output, r.created_at`

func (s *pgStore) Open(ctx context.Context, documentID uuid.UUID, ownerID string) (Event, error) {
	e, err := s.write(ctx, documentID, func(tx *sql.Tx, owner string, latest *Event) (Event, error) {
		if owner != ownerID {
			return Event{}, fmt.Errorf("%w: document %s is not owned by %s", ErrConflict, documentID, ownerID)
		}
		if err := Validate(latestState(latest), Pending); err != nil {
			return Event{}, err
		}
		return s.insertEvent(ctx, tx, owner, latest, Transition{
			DocumentID: documentID,
			State:      Pending,
			Metadata:   Info("Document uploaded."),
		})
	})
	if err != nil {
		return Event{}, err
	}

	s.observers.published(e)
	return e, nil
}

func (s *pgStore) Append(ctx context.Context, t Transition) (Event, error) {
	if t.State == Completed {
		return Event{}, fmt.Errorf("%w: completed requires a result", ErrConflict)
	}

	e, err := s.write(ctx, t.DocumentID, func(tx *sql.Tx, owner string, latest *Event) (Event, error) {
		if err := Validate(latestState(latest), t.State); err != nil {
			return Event{}, err
		}
		return s.insertEvent(ctx, tx, owner, latest, t)
	})
	if err != nil {
		return Event{}, err
	}

	s.observers.published(e)
	return e, nil
}

func (s *pgStore) Complete(ctx context.Context, documentID uuid.UUID, result Result, metadata map[string]any) (Event, error) {
	e, err := s.write(ctx, documentID, func(tx *sql.Tx, owner string, latest *Event) (Event, error) {
		if err := Validate(latestState(latest), Completed); err != nil {
			return Event{}, err
		}

		e, err := s.insertEvent(ctx, tx, owner, latest, Transition{
			DocumentID: documentID,
			State:      Completed,
			Metadata:   metadata,
		})
		if err != nil {
			return Event{}, err
		}

		topics, err := json.Marshal(nonNil(result.Topics))
		if err != nil {
			return Event{}, fmt.Errorf("encode topics: %w", err)
		}
		actions, err := json.Marshal(nonNil(result.Actions))
		if err != nil {
			return Event{}, fmt.Errorf("encode actions: %w", err)
		}

		q := `
			INSERT INTO analysis_results(document_id, summary, topics, sentiment, actions, raw_output, created_at)
			VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, $6, $7)`
		if _, err := tx.ExecContext(ctx, q,
			documentID, result.Summary, string(topics), result.Sentiment, string(actions), result.RawOutput, e.CreatedAt,
		); err != nil {
			return Event{}, repository.MapError(err, ErrNotFound, ErrConflict)
		}

		result.DocumentID = documentID
		result.CreatedAt = e.CreatedAt
		stored := cloneResult(result)
		e.Result = &stored
		return e, nil
	})
	if err != nil {
		return Event{}, err
	}

	s.observers.published(e)
	return e, nil
}

func (s *pgStore) History(ctx context.Context, documentID uuid.UUID) ([]Event, error) {
	q := `SELECT ` + eventColumns + `
		FROM status_events e
		WHERE e.document_id = $1
		ORDER BY e.created_at, e.seq`

	events, err := repository.QueryMany(ctx, s.db, q, []any{documentID}, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	if len(events) == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check document: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
	}

	return events, nil
}

func (s *pgStore) Latest(ctx context.Context, documentID uuid.UUID) (Event, error) {
	e, err := queryLatest(ctx, s.db, documentID)
	if err != nil {
		return Event{}, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return e, nil
}

func (s *pgStore) Result(ctx context.Context, documentID uuid.UUID) (Result, error) {
	q := `SELECT ` + resultColumns + ` FROM analysis_results r WHERE r.document_id = $1`

	r, err := repository.QueryOne(ctx, s.db, q, []any{documentID}, scanResult)
	if err != nil {
		return Result{}, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return r, nil
}

func (s *pgStore) Delete(ctx context.Context, documentID uuid.UUID) error {
	owner, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (string, error) {
		var owner string
		err := tx.QueryRowContext(ctx,
			`DELETE FROM documents WHERE id = $1 RETURNING owner_id`, documentID,
		).Scan(&owner)
		return owner, err
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrConflict)
	}

	s.logger.Info("document history deleted", "document_id", documentID)
	s.observers.removed(documentID, owner)
	return nil
}

func (s *pgStore) Recent(ctx context.Context, ownerID string, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := `SELECT ` + eventColumns + `, ` + resultColumns + `
		FROM status_events e
		LEFT JOIN analysis_results r ON r.document_id = e.document_id AND e.state = 'completed'
		WHERE e.owner_id = $1
		ORDER BY e.seq DESC
		LIMIT $2`

	events, err := repository.QueryMany(ctx, s.db, q, []any{ownerID, limit}, scanEventWithResult)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}

	slices.Reverse(events)
	return events, nil
}

// write runs fn in a transaction holding the document row lock, passing the
// document owner and latest event (nil when there is no history).
func (s *pgStore) write(
	ctx context.Context,
	documentID uuid.UUID,
	fn func(tx *sql.Tx, owner string, latest *Event) (Event, error),
) (Event, error) {
	e, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (Event, error) {
		var owner string
		err := tx.QueryRowContext(ctx,
			`SELECT owner_id FROM documents WHERE id = $1 FOR UPDATE`, documentID,
		).Scan(&owner)
		if err != nil {
			return Event{}, repository.MapError(err, ErrNotFound, ErrConflict)
		}

		var latest *Event
		switch l, err := queryLatest(ctx, tx, documentID); {
		case err == nil:
			latest = &l
		case !errors.Is(err, sql.ErrNoRows):
			return Event{}, fmt.Errorf("query latest: %w", err)
		}

		return fn(tx, owner, latest)
	})
	if err != nil {
		return Event{}, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return e, nil
}

func (s *pgStore) insertEvent(ctx context.Context, tx *sql.Tx, owner string, latest *Event, t Transition) (Event, error) {
	var last *time.Time
	if latest != nil {
		last = &latest.CreatedAt
	}
	ts := nextTimestamp(last, time.Now())

	meta, err := json.Marshal(nonNilMap(t.Metadata))
	if err != nil {
		return Event{}, fmt.Errorf("encode metadata: %w", err)
	}

	e := Event{
		DocumentID: t.DocumentID,
		OwnerID:    owner,
		State:      t.State,
		Reason:     t.Reason,
		Metadata:   t.Metadata,
		CreatedAt:  ts,
	}

	q := `
		INSERT INTO status_events(document_id, owner_id, state, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING seq`
	if err := tx.QueryRowContext(ctx, q,
		e.DocumentID, e.OwnerID, string(e.State), nullString(e.Reason), string(meta), e.CreatedAt,
	).Scan(&e.Seq); err != nil {
		return Event{}, repository.MapError(err, ErrNotFound, ErrConflict)
	}

	var errMsg sql.NullString
	if e.State == Failed {
		errMsg = nullString(e.Reason)
	}
	if err := repository.ExecExpectOne(ctx, tx,
		`UPDATE documents SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		e.DocumentID, string(e.State), errMsg, e.CreatedAt,
	); err != nil {
		return Event{}, repository.MapError(err, ErrNotFound, ErrConflict)
	}

	return e, nil
}

func queryLatest(ctx context.Context, q repository.Querier, documentID uuid.UUID) (Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM status_events e
		WHERE e.document_id = $1
		ORDER BY e.created_at DESC, e.seq DESC
		LIMIT 1`
	return repository.QueryOne(ctx, q, query, []any{documentID}, scanEvent)
}

func latestState(e *Event) *State {
	if e == nil {
		return nil
	}
	s := e.State
	return &s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
