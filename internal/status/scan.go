package status

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/pkg/repository"
)

func scanEvent(s repository.Scanner) (Event, error) {
	var (
		e      Event
		state  string
		reason sql.NullString
		meta   []byte
	)

	if err := s.Scan(&e.Seq, &e.DocumentID, &e.OwnerID, &state, &reason, &meta, &e.CreatedAt); err != nil {
		return Event{}, err
	}

	e.State = State(state)
	e.Reason = reason.String
	if err := decodeMetadata(meta, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func scanResult(s repository.Scanner) (Result, error) {
	var (
		r       Result
		topics  []byte
		actions []byte
	)

	if err := s.Scan(&r.DocumentID, &r.Summary, &topics, &r.Sentiment, &actions, &r.RawOutput, &r.CreatedAt); err != nil {
		return Result{}, err
	}
	if err := decodeLists(topics, actions, &r); err != nil {
		return Result{}, err
	}
	return r, nil
}

func scanEventWithResult(s repository.Scanner) (Event, error) {
	var (
		e         Event
		state     string
		reason    sql.NullString
		meta      []byte
		resID     uuid.NullUUID
		summary   sql.NullString
		topics    []byte
		sentiment sql.NullString
		actions   []byte
		raw       sql.NullString
		resAt     sql.NullTime
	)

	if err := s.Scan(
		&e.Seq, &e.DocumentID, &e.OwnerID, &state, &reason, &meta, &e.CreatedAt,
		&resID, &summary, &topics, &sentiment, &actions, &raw, &resAt,
	); err != nil {
		return Event{}, err
	}

	e.State = State(state)
	e.Reason = reason.String
	if err := decodeMetadata(meta, &e); err != nil {
		return Event{}, err
	}

	if resID.Valid {
		r := Result{
			DocumentID: resID.UUID,
			Summary:    summary.String,
			Sentiment:  sentiment.String,
			RawOutput:  raw.String,
			CreatedAt:  resAt.Time,
		}
		if err := decodeLists(topics, actions, &r); err != nil {
			return Event{}, err
		}
		e.Result = &r
	}
	return e, nil
}

func decodeMetadata(meta []byte, e *Event) error {
	if len(meta) == 0 {
		return nil
	}
	if err := json.Unmarshal(meta, &e.Metadata); err != nil {
		return fmt.Errorf("decode event metadata: %w", err)
	}
	if len(e.Metadata) == 0 {
		e.Metadata = nil
	}
	return nil
}

func decodeLists(topics, actions []byte, r *Result) error {
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &r.Topics); err != nil {
			return fmt.Errorf("decode topics: %w", err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return fmt.Errorf("decode actions: %w", err)
		}
	}
	return nil
}
