package stream_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/internal/stream"
	"github.com/JaimeStill/scribe/pkg/routes"
)

type fixture struct {
	hub    *stream.Hub
	store  *status.Memory
	server *httptest.Server
}

func newFixture(t *testing.T, cfg stream.Config) *fixture {
	t.Helper()
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("config: %v", err)
	}

	hub := stream.NewHub(cfg.BufferSize, nil, discard())
	store := status.NewMemory(hub)
	h := stream.NewHandler(hub, store, cfg, discard())

	mux := http.NewServeMux()
	routes.Register(mux, h.Routes())

	// The test principal comes from a header in place of a bearer token.
	withUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sub := r.Header.Get("X-Test-User"); sub != "" {
				r = r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{Subject: sub}))
			}
			next.ServeHTTP(w, r)
		})
	}

	srv := httptest.NewServer(withUser(mux))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{hub: hub, store: store, server: srv}
}

type frame struct {
	event string
	id    string
	data  string
}

func readFrame(t *testing.T, r *bufio.Reader) frame {
	t.Helper()
	var f frame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return f
		}
		k, v, _ := strings.Cut(line, ": ")
		switch k {
		case "event":
			f.event = v
		case "id":
			f.id = v
		case "data":
			f.data = v
		}
	}
}

func waitSessions(t *testing.T, hub *stream.Hub, owner string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Sessions(owner) != n {
		if time.Now().After(deadline) {
			t.Fatalf("sessions for %s = %d, want %d", owner, hub.Sessions(owner), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func openSSE(t *testing.T, f *fixture, user, lastID string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, _ := http.NewRequest("GET", f.server.URL+"/documents/stream", nil)
	req.Header.Set("X-Test-User", user)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func TestSSEReplayThenLive(t *testing.T) {
	f := newFixture(t, stream.Config{HeartbeatInterval: "1m"})
	ctx := context.Background()

	id := uuid.New()
	opened, _ := f.store.Open(ctx, id, "user1")
	f.store.Open(ctx, uuid.New(), "user2")

	resp, r := openSSE(t, f, "user1", "")
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	first := readFrame(t, r)
	if first.event != "status" || first.id == "" {
		t.Errorf("replayed frame = %+v", first)
	}

	var env struct {
		ID      string       `json:"id"`
		Type    string       `json:"type"`
		Subject string       `json:"subject"`
		Data    status.Event `json:"data"`
	}
	if err := json.Unmarshal([]byte(first.data), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.State != status.Pending || env.Subject != id.String() || env.ID != first.id {
		t.Errorf("replayed envelope = %+v", env)
	}
	if env.Data.Seq != opened.Seq {
		t.Errorf("seq = %d, want %d", env.Data.Seq, opened.Seq)
	}

	waitSessions(t, f.hub, "user1", 1)
	f.store.Append(ctx, status.Transition{DocumentID: id, State: status.Processing})

	live := readFrame(t, r)
	if live.event != "status" || !strings.Contains(live.data, `"state":"processing"`) {
		t.Errorf("live frame = %+v", live)
	}
}

func TestSSELastEventID(t *testing.T) {
	f := newFixture(t, stream.Config{HeartbeatInterval: "1m"})
	ctx := context.Background()

	id := uuid.New()
	first, _ := f.store.Open(ctx, id, "user1")
	second, _ := f.store.Append(ctx, status.Transition{DocumentID: id, State: status.Processing})

	_, r := openSSE(t, f, "user1", strconv.FormatInt(first.Seq, 10))
	got := readFrame(t, r)
	if want := strconv.FormatInt(second.Seq, 10); got.id != want {
		t.Errorf("first replayed id = %s, want %s", got.id, want)
	}
}

func TestSSEHeartbeat(t *testing.T) {
	f := newFixture(t, stream.Config{HeartbeatInterval: "20ms"})

	_, r := openSSE(t, f, "user1", "")
	got := readFrame(t, r)
	if got.event != "heartbeat" || got.id != "" {
		t.Fatalf("frame = %+v, want heartbeat without id", got)
	}
	if !strings.Contains(got.data, `"stream_alive"`) {
		t.Errorf("heartbeat data = %s", got.data)
	}
}

func TestSSEDeletion(t *testing.T) {
	f := newFixture(t, stream.Config{HeartbeatInterval: "1m"})
	ctx := context.Background()
	id := uuid.New()
	f.store.Open(ctx, id, "user1")

	_, r := openSSE(t, f, "user1", "")
	if got := readFrame(t, r); got.event != "status" {
		t.Fatalf("replayed frame = %+v", got)
	}
	waitSessions(t, f.hub, "user1", 1)
	f.store.Delete(ctx, id)

	got := readFrame(t, r)
	if got.event != "deleted" || !strings.Contains(got.data, id.String()) {
		t.Errorf("frame = %+v", got)
	}
}

func TestStreamRequiresPrincipal(t *testing.T) {
	f := newFixture(t, stream.Config{})

	for _, path := range []string{"/documents/stream", "/documents/stream/ws"} {
		resp, err := http.Get(f.server.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func dial(t *testing.T, f *fixture, user string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Test-User", user)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/documents/stream/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

func TestWebSocketStream(t *testing.T) {
	f := newFixture(t, stream.Config{HeartbeatInterval: "1m"})
	ctx := context.Background()

	id := uuid.New()
	f.store.Open(ctx, id, "user1")

	conn, _, err := dial(t, f, "user1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() (string, status.Event) {
		t.Helper()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var env struct {
			Type string       `json:"type"`
			Data status.Event `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return env.Type, env.Data
	}

	if typ, e := read(); typ != stream.TypeStatus || e.State != status.Pending {
		t.Errorf("replayed = %s %s", typ, e.State)
	}

	waitSessions(t, f.hub, "user1", 1)
	f.store.Append(ctx, status.Transition{DocumentID: id, State: status.Processing})

	if typ, e := read(); typ != stream.TypeStatus || e.State != status.Processing {
		t.Errorf("live = %s %s", typ, e.State)
	}

	conn.Close()
	waitSessions(t, f.hub, "user1", 0)
}

func TestWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{"no origin", nil, "", true},
		{"wildcard", []string{"*"}, "https://elsewhere.example", true},
		{"listed", []string{"https://app.example"}, "https://app.example", true},
		{"foreign", []string{"https://app.example"}, "https://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stream.Config{HeartbeatInterval: "1m", AllowedOrigins: tt.allowed})

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := dial(t, f, "user1", header)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("dial should be rejected")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}
