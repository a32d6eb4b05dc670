package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/internal/status"
)

// Kind classifies a stream message. It is also the SSE event name.
type Kind string

const (
	KindStatus    Kind = "status"
	KindDeleted   Kind = "deleted"
	KindHeartbeat Kind = "heartbeat"
)

// CloudEvents attributes for stream messages.
const (
	Source        = "/scribe/documents"
	TypeStatus    = "scribe.document.status"
	TypeDeleted   = "scribe.document.deleted"
	TypeHeartbeat = "scribe.stream.heartbeat"
)

// Message is one item delivered to a session.
// Event is set for KindStatus; DocumentID is set for status and deleted messages.
type Message struct {
	Kind       Kind
	Event      *status.Event
	DocumentID uuid.UUID
	At         time.Time
}

// HeartbeatPayload is the data of an idle heartbeat.
type HeartbeatPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DeletedPayload is the data of a deletion notice.
type DeletedPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

func statusMessage(e status.Event) Message {
	return Message{Kind: KindStatus, Event: &e, DocumentID: e.DocumentID, At: e.CreatedAt}
}

func deletedMessage(id uuid.UUID) Message {
	return Message{Kind: KindDeleted, DocumentID: id, At: time.Now().UTC()}
}

func heartbeat() Message {
	return Message{Kind: KindHeartbeat, At: time.Now().UTC()}
}

// ID returns the event id: the status sequence number for status messages,
// and a random id otherwise.
func (m Message) ID() string {
	if m.Kind == KindStatus && m.Event != nil {
		return strconv.FormatInt(m.Event.Seq, 10)
	}
	return uuid.NewString()
}

// CloudEvent wraps the message in a CloudEvents envelope.
func (m Message) CloudEvent() (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetID(m.ID())
	e.SetSource(Source)
	e.SetTime(m.At)

	var data any
	switch m.Kind {
	case KindStatus:
		e.SetType(TypeStatus)
		e.SetSubject(m.DocumentID.String())
		data = m.Event
	case KindDeleted:
		e.SetType(TypeDeleted)
		e.SetSubject(m.DocumentID.String())
		data = DeletedPayload{DocumentID: m.DocumentID}
	case KindHeartbeat:
		e.SetType(TypeHeartbeat)
		data = HeartbeatPayload{Status: "idle", Message: "stream_alive"}
	default:
		return e, fmt.Errorf("unknown message kind %q", m.Kind)
	}

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, fmt.Errorf("encode event data: %w", err)
	}
	return e, nil
}

// Encode returns the CloudEvent JSON for the message.
func (m Message) Encode() ([]byte, error) {
	e, err := m.CloudEvent()
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}
