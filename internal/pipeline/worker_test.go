package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/internal/analyze"
	"github.com/JaimeStill/scribe/internal/documents"
	"github.com/JaimeStill/scribe/internal/extract"
	"github.com/JaimeStill/scribe/internal/pipeline"
	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/pkg/lifecycle"
	"github.com/JaimeStill/scribe/pkg/routes"
	"github.com/JaimeStill/scribe/pkg/storage"
)

type registry struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*documents.Document
}

func (r *registry) Find(_ context.Context, id uuid.UUID) (*documents.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	return d, nil
}

type source struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (s *source) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type extractorFunc func(ctx context.Context, src extract.Source) (string, error)

func (f extractorFunc) Extract(ctx context.Context, src extract.Source) (string, error) {
	return f(ctx, src)
}

// analyzer returns results in order, repeating the last one.
type analyzer struct {
	calls   atomic.Int32
	results []func(ctx context.Context) (analyze.Result, error)
}

func (a *analyzer) Analyze(ctx context.Context, _ string) (analyze.Result, error) {
	n := int(a.calls.Add(1)) - 1
	return a.results[min(n, len(a.results)-1)](ctx)
}

func succeed(ctx context.Context) (analyze.Result, error) {
	return analyze.Result{
		Summary:   "First. Second. Third.",
		Topics:    []string{"alpha"},
		Sentiment: "neutral",
		Actions:   []string{},
		RawOutput: "{}",
	}, nil
}

func failWith(msg string) func(context.Context) (analyze.Result, error) {
	return func(context.Context) (analyze.Result, error) {
		return analyze.Result{}, errors.New(msg)
	}
}

func passthrough(ctx context.Context, src extract.Source) (string, error) {
	b, err := io.ReadAll(src.Reader)
	return string(b), err
}

type harness struct {
	store    *status.Memory
	registry *registry
	source   *source
	analyzer *analyzer
	worker   *pipeline.Worker
}

func newHarness(t *testing.T, cfg pipeline.Config, ex extractorFunc, an *analyzer) *harness {
	t.Helper()
	if cfg.RetryDelay == "" {
		cfg.RetryDelay = "1ms"
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	h := &harness{
		store:    status.NewMemory(),
		registry: &registry{docs: make(map[uuid.UUID]*documents.Document)},
		source:   &source{blobs: make(map[string][]byte)},
		analyzer: an,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.worker = pipeline.New(cfg, h.registry, h.store, h.source, ex, an, nil, logger)
	return h
}

// upload registers a document the way the registry does and enqueues it.
func (h *harness) upload(t *testing.T, body string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	key := "documents/" + id.String() + "/doc.txt"

	h.registry.mu.Lock()
	h.registry.docs[id] = &documents.Document{ID: id, OwnerID: "user1", Filename: "doc.txt", ContentType: "text/plain", StorageKey: key}
	h.registry.mu.Unlock()

	h.source.mu.Lock()
	h.source.blobs[key] = []byte(body)
	h.source.mu.Unlock()

	if _, err := h.store.Open(context.Background(), id, "user1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := h.worker.Enqueue(id); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return id
}

// drain closes the queue and runs the worker until every item is processed.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	h.worker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.worker.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func (h *harness) states(t *testing.T, id uuid.UUID) []status.State {
	t.Helper()
	history, err := h.store.History(context.Background(), id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	out := make([]status.State, len(history))
	for i, e := range history {
		out[i] = e.State
	}
	return out
}

func assertStates(t *testing.T, got []status.State, want ...status.State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
}

func TestSuccessfulDocument(t *testing.T) {
	h := newHarness(t, pipeline.Config{}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})
	id := h.upload(t, "Quarterly report text.")
	h.drain(t)

	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Analyzing, status.Completed)

	res, err := h.store.Result(context.Background(), id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Summary == "" || res.Sentiment != "neutral" {
		t.Errorf("result = %+v", res)
	}

	history, _ := h.store.History(context.Background(), id)
	wantInfo := []string{"Document uploaded.", "Text extraction started.", "LLM analysis started.", "Processing completed."}
	for i, e := range history {
		if e.Metadata["info"] != wantInfo[i] {
			t.Errorf("event %d info = %v, want %q", i, e.Metadata["info"], wantInfo[i])
		}
	}
}

func TestExtractionFailure(t *testing.T) {
	extractErr := func(context.Context, extract.Source) (string, error) {
		return "", extract.ErrNoText
	}
	an := &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}}
	h := newHarness(t, pipeline.Config{}, extractErr, an)

	id := h.upload(t, "   ")
	h.drain(t)

	history, _ := h.store.History(context.Background(), id)
	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Failed)
	if reason := history[2].Reason; reason != extract.ErrNoText.Error() {
		t.Errorf("reason = %q", reason)
	}
	if history[2].Metadata["info"] != "Processing failed." {
		t.Errorf("failed info = %v", history[2].Metadata["info"])
	}
	if _, err := h.store.Result(context.Background(), id); !errors.Is(err, status.ErrNotFound) {
		t.Errorf("result should be absent, got %v", err)
	}
	if an.calls.Load() != 0 {
		t.Error("analysis should not run after extraction fails")
	}
}

func TestMissingBlobFails(t *testing.T) {
	h := newHarness(t, pipeline.Config{}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})
	id := h.upload(t, "text")

	h.source.mu.Lock()
	clear(h.source.blobs)
	h.source.mu.Unlock()

	h.drain(t)

	history, _ := h.store.History(context.Background(), id)
	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Failed)
	if !strings.Contains(history[2].Reason, "stored file is missing") {
		t.Errorf("reason = %q", history[2].Reason)
	}
}

func TestAnalysisRetriedOnceThenFails(t *testing.T) {
	an := &analyzer{results: []func(context.Context) (analyze.Result, error){
		failWith("model overloaded"),
		failWith("model still overloaded"),
		succeed,
	}}
	h := newHarness(t, pipeline.Config{}, passthrough, an)

	id := h.upload(t, "text")
	h.drain(t)

	history, _ := h.store.History(context.Background(), id)
	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Analyzing, status.Failed)
	if history[3].Reason != "model still overloaded" {
		t.Errorf("reason = %q, want final analysis error", history[3].Reason)
	}
	if n := an.calls.Load(); n != 2 {
		t.Errorf("analysis attempts = %d, want 2", n)
	}
}

func TestAnalysisRetrySucceeds(t *testing.T) {
	an := &analyzer{results: []func(context.Context) (analyze.Result, error){failWith("transient"), succeed}}
	h := newHarness(t, pipeline.Config{}, passthrough, an)

	id := h.upload(t, "text")
	h.drain(t)

	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Analyzing, status.Completed)
	if n := an.calls.Load(); n != 2 {
		t.Errorf("analysis attempts = %d, want 2", n)
	}
}

func TestAnalysisTimeout(t *testing.T) {
	block := func(ctx context.Context) (analyze.Result, error) {
		<-ctx.Done()
		return analyze.Result{}, ctx.Err()
	}
	an := &analyzer{results: []func(context.Context) (analyze.Result, error){block}}
	h := newHarness(t, pipeline.Config{AnalyzeTimeout: "20ms"}, passthrough, an)

	id := h.upload(t, "text")
	h.drain(t)

	history, _ := h.store.History(context.Background(), id)
	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Analyzing, status.Failed)
	if !strings.Contains(history[3].Reason, "analysis timed out after 20ms") {
		t.Errorf("reason = %q", history[3].Reason)
	}
}

func TestFIFOOrderSingleExecutor(t *testing.T) {
	h := newHarness(t, pipeline.Config{Workers: 1}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})

	d4 := h.upload(t, "four")
	d5 := h.upload(t, "five")
	h.drain(t)

	processingAt := func(id uuid.UUID) time.Time {
		history, _ := h.store.History(context.Background(), id)
		for _, e := range history {
			if e.State == status.Processing {
				return e.CreatedAt
			}
		}
		t.Fatalf("no processing event for %s", id)
		return time.Time{}
	}

	if !processingAt(d4).Before(processingAt(d5)) {
		t.Error("D4 processing should precede D5 processing")
	}
}

func TestDuplicateEnqueueIsSkipped(t *testing.T) {
	an := &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}}
	h := newHarness(t, pipeline.Config{}, passthrough, an)

	id := h.upload(t, "text")
	h.worker.Enqueue(id)
	h.drain(t)

	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Analyzing, status.Completed)
	if n := an.calls.Load(); n != 1 {
		t.Errorf("analysis calls = %d, want 1", n)
	}
}

func TestDeletedBeforeProcessing(t *testing.T) {
	h := newHarness(t, pipeline.Config{}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})

	gone := h.upload(t, "text")
	h.store.Delete(context.Background(), gone)

	unregistered := h.upload(t, "text")
	h.registry.mu.Lock()
	delete(h.registry.docs, unregistered)
	h.registry.mu.Unlock()

	next := h.upload(t, "text")
	h.drain(t)

	assertStates(t, h.states(t, unregistered), status.Pending)
	assertStates(t, h.states(t, next), status.Pending, status.Processing, status.Analyzing, status.Completed)
}

func TestPanicIsIsolated(t *testing.T) {
	var calls atomic.Int32
	ex := func(ctx context.Context, src extract.Source) (string, error) {
		if calls.Add(1) == 1 {
			panic("decoder exploded")
		}
		return passthrough(ctx, src)
	}
	h := newHarness(t, pipeline.Config{}, ex, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})

	bad := h.upload(t, "one")
	good := h.upload(t, "two")
	h.drain(t)

	history, _ := h.store.History(context.Background(), bad)
	assertStates(t, h.states(t, bad), status.Pending, status.Processing, status.Failed)
	if !strings.Contains(history[2].Reason, "decoder exploded") {
		t.Errorf("reason = %q", history[2].Reason)
	}
	assertStates(t, h.states(t, good), status.Pending, status.Processing, status.Analyzing, status.Completed)
}

func TestMultipleExecutors(t *testing.T) {
	h := newHarness(t, pipeline.Config{Workers: 4}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = h.upload(t, "text")
	}
	h.drain(t)

	for _, id := range ids {
		latest, err := h.store.Latest(context.Background(), id)
		if err != nil || latest.State != status.Completed {
			t.Errorf("%s latest = %v, %v", id, latest.State, err)
		}
	}
}

func TestQueueIntrospection(t *testing.T) {
	h := newHarness(t, pipeline.Config{}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})

	a := h.upload(t, "a")
	b := h.upload(t, "b")

	if !h.worker.Queued(a) || h.worker.Active(a) {
		t.Error("a should be queued and not active")
	}
	if !h.worker.Remove(b) || h.worker.Queued(b) {
		t.Error("b should be removed from the queue")
	}
	if h.worker.Remove(b) {
		t.Error("second remove should report nothing removed")
	}

	snap := h.worker.Snapshot()
	if snap.QueueLength != 1 || snap.Queued[0] != a || len(snap.Active) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}

	mux := http.NewServeMux()
	routes.Register(mux, pipeline.NewHandler(h.worker, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pipeline", nil))

	var body pipeline.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.QueueLength != 1 {
		t.Errorf("handler body = %+v, %v", body, err)
	}
}

func TestActiveWhileProcessing(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	ex := func(ctx context.Context, src extract.Source) (string, error) {
		close(entered)
		<-release
		return passthrough(ctx, src)
	}
	h := newHarness(t, pipeline.Config{}, ex, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})
	id := h.upload(t, "text")
	h.worker.Close()

	done := make(chan error, 1)
	go func() { done <- h.worker.Run(context.Background()) }()

	<-entered
	if !h.worker.Active(id) || h.worker.Queued(id) {
		t.Error("document should be active and no longer queued")
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.worker.Active(id) {
		t.Error("document should be released after processing")
	}
}

func TestStartAndShutdown(t *testing.T) {
	h := newHarness(t, pipeline.Config{}, passthrough, &analyzer{results: []func(context.Context) (analyze.Result, error){succeed}})

	lc := lifecycle.New()
	h.worker.Start(lc)
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}

	id := h.upload(t, "text")

	deadline := time.Now().Add(5 * time.Second)
	for {
		latest, _ := h.store.Latest(context.Background(), id)
		if latest.State == status.Completed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("document not completed, state %s", latest.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := h.worker.Enqueue(uuid.New()); err == nil {
		t.Error("enqueue after shutdown should fail")
	}
}

// closingStore rejects writes once closed, the way a closed database does.
type closingStore struct {
	*status.Memory
	closed atomic.Bool
}

var errStoreClosed = errors.New("sql: database is closed")

func (s *closingStore) Append(ctx context.Context, tr status.Transition) (status.Event, error) {
	if s.closed.Load() {
		return status.Event{}, errStoreClosed
	}
	return s.Memory.Append(ctx, tr)
}

func (s *closingStore) Complete(ctx context.Context, id uuid.UUID, res status.Result, metadata map[string]any) (status.Event, error) {
	if s.closed.Load() {
		return status.Event{}, errStoreClosed
	}
	return s.Memory.Complete(ctx, id, res, metadata)
}

func TestShutdownFinishesInFlightBeforeStoreCloses(t *testing.T) {
	entered := make(chan struct{})
	slow := func(ctx context.Context) (analyze.Result, error) {
		close(entered)
		time.Sleep(50 * time.Millisecond)
		return succeed(ctx)
	}
	an := &analyzer{results: []func(context.Context) (analyze.Result, error){slow}}
	h := newHarness(t, pipeline.Config{}, passthrough, an)

	cfg := pipeline.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	store := &closingStore{Memory: h.store}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.worker = pipeline.New(cfg, h.registry, store, h.source, extractorFunc(passthrough), an, nil, logger)

	lc := lifecycle.New()
	lc.OnShutdown(func() {
		<-lc.Drained()
		store.closed.Store(true)
	})
	h.worker.Start(lc)
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}

	id := h.upload(t, "text")
	<-entered

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	assertStates(t, h.states(t, id), status.Pending, status.Processing, status.Analyzing, status.Completed)
	if !store.closed.Load() {
		t.Error("store should be released after the drain")
	}
}
