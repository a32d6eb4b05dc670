package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/pkg/handlers"
	"github.com/JaimeStill/scribe/pkg/routes"
)

// History supplies the events replayed to a new subscriber.
type History interface {
	Recent(ctx context.Context, ownerID string, limit int) ([]status.Event, error)
}

// Handler serves the per-user status stream.
type Handler struct {
	hub      *Hub
	history  History
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, history History, cfg Config, logger *slog.Logger) *Handler {
	h := &Handler{
		hub:     hub,
		history: history,
		cfg:     cfg,
		logger:  logger.With("handler", "stream"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents/stream",
		Tags:   []string{"Streaming"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.SSE, OpenAPI: sseOp},
			{Method: "GET", Pattern: "/ws", Handler: h.WebSocket, OpenAPI: wsOp},
		},
	}
}

// SSE streams CloudEvents as Server-Sent Events. Each frame carries the
// message kind as the event name and the status sequence as the id.
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, fmt.Errorf("stream requires an authenticated user"))
		return
	}

	sess, err := h.hub.Subscribe(p.Subject)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, err)
		return
	}
	defer sess.Close()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(m Message) error {
		rc.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeoutDuration()))
		if err := writeSSE(w, m); err != nil {
			return err
		}
		return rc.Flush()
	}

	ctx := r.Context()
	lastSeq := parseLastEventID(r.Header.Get("Last-Event-ID"))
	if err := h.replay(ctx, p.Subject, lastSeq, send); err != nil {
		h.logger.Debug("sse replay aborted", "owner", p.Subject, "error", err)
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	h.pump(ctx, sess, send)
}

// WebSocket streams the same CloudEvents JSON as text frames.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, fmt.Errorf("stream requires an authenticated user"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess, err := h.hub.Subscribe(p.Subject)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		return
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop only detects disconnects; client frames are discarded.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(m Message) error {
		data, err := m.Encode()
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeoutDuration()))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := h.replay(ctx, p.Subject, 0, send); err != nil {
		h.logger.Debug("websocket replay aborted", "owner", p.Subject, "error", err)
		return
	}

	h.pump(ctx, sess, send)

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// replay sends the owner's recent events after the session is subscribed,
// so nothing published in between is missed. Duplicates are possible.
func (h *Handler) replay(ctx context.Context, owner string, after int64, send func(Message) error) error {
	if h.cfg.ReplayLimit <= 0 {
		return nil
	}

	events, err := h.history.Recent(ctx, owner, h.cfg.ReplayLimit)
	if err != nil {
		h.logger.Error("stream replay failed", "owner", owner, "error", err)
		return nil
	}

	for _, e := range events {
		if e.Seq <= after {
			continue
		}
		if err := send(statusMessage(e)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) pump(ctx context.Context, sess *Session, send func(Message) error) {
	idle := h.cfg.HeartbeatDuration()
	for {
		m, err := sess.Next(ctx, idle)
		if err != nil {
			return
		}
		if err := send(m); err != nil {
			h.logger.Debug("stream write failed", "owner", sess.Owner(), "error", err)
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func writeSSE(w http.ResponseWriter, m Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	if m.Kind == KindStatus {
		_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", m.Kind, m.ID(), data)
	} else {
		_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.Kind, data)
	}
	return err
}

func parseLastEventID(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
