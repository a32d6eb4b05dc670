// Package pipeline drives uploaded documents through extraction and analysis,
// recording every step in the status store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/scribe/internal/analyze"
	"github.com/JaimeStill/scribe/internal/documents"
	"github.com/JaimeStill/scribe/internal/extract"
	"github.com/JaimeStill/scribe/internal/queue"
	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/internal/telemetry"
	"github.com/JaimeStill/scribe/pkg/lifecycle"
	"github.com/JaimeStill/scribe/pkg/retry"
	"github.com/JaimeStill/scribe/pkg/storage"
)

// Registry resolves document metadata.
type Registry interface {
	Find(ctx context.Context, id uuid.UUID) (*documents.Document, error)
}

// Source opens stored uploads.
type Source interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Extractor turns a stored upload into text.
type Extractor interface {
	Extract(ctx context.Context, src extract.Source) (string, error)
}

// Snapshot is a point-in-time view of the worker.
type Snapshot struct {
	Active      []uuid.UUID `json:"active"`
	Queued      []uuid.UUID `json:"queued"`
	QueueLength int         `json:"queue_length"`
}

// Worker consumes document ids from its queue and moves each document
// through processing, analyzing and a terminal state. Failures of one
// document never affect another.
type Worker struct {
	cfg       Config
	queue     *queue.Queue[uuid.UUID]
	registry  Registry
	store     status.Store
	source    Source
	extractor Extractor
	analyzer  analyze.Analyzer
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// New creates a Worker. cfg must already be finalized.
func New(
	cfg Config,
	registry Registry,
	store status.Store,
	source Source,
	extractor Extractor,
	analyzer analyze.Analyzer,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		cfg:       cfg,
		queue:     queue.New[uuid.UUID](),
		registry:  registry,
		store:     store,
		source:    source,
		extractor: extractor,
		analyzer:  analyzer,
		metrics:   metrics,
		logger:    logger.With("system", "pipeline"),
		active:    make(map[uuid.UUID]struct{}),
	}
}

// Enqueue schedules a document. It never blocks.
func (w *Worker) Enqueue(id uuid.UUID) error {
	if err := w.queue.Enqueue(id); err != nil {
		return fmt.Errorf("enqueue document: %w", err)
	}
	w.metrics.QueueDepth(w.queue.Len())
	w.logger.Debug("document enqueued", "document_id", id)
	return nil
}

// Remove drops every queued occurrence of id and reports whether any existed.
func (w *Worker) Remove(id uuid.UUID) bool {
	n := w.queue.Remove(id)
	w.metrics.QueueDepth(w.queue.Len())
	return n > 0
}

func (w *Worker) Queued(id uuid.UUID) bool {
	return w.queue.Contains(id)
}

func (w *Worker) Active(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[id]
	return ok
}

func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	active := make([]uuid.UUID, 0, len(w.active))
	for id := range w.active {
		active = append(active, id)
	}
	w.mu.Unlock()

	slices.SortFunc(active, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})

	queued := w.queue.Snapshot()
	return Snapshot{Active: active, Queued: queued, QueueLength: len(queued)}
}

// Close stops accepting work. Executors drain what is already queued.
func (w *Worker) Close() {
	w.queue.Close()
}

// Run starts cfg.Workers executors and blocks until the queue is closed and
// drained, or ctx is done. A document already in progress when ctx ends is
// carried through to a terminal state.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range max(w.cfg.Workers, 1) {
		g.Go(func() error {
			return w.execute(ctx, i)
		})
	}
	return g.Wait()
}

// Start runs the worker for the life of the coordinator. It drains on
// shutdown: dequeuing stops and in-flight documents finish before the
// coordinator releases the store and analyzer.
func (w *Worker) Start(lc *lifecycle.Coordinator) {
	done := make(chan struct{})

	lc.OnStartup(func() error {
		go func() {
			defer close(done)
			err := w.Run(lc.Context())
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("pipeline stopped", "error", err)
			}
		}()
		w.logger.Info("pipeline started", "workers", w.cfg.Workers)
		return nil
	})

	lc.OnDrain(func() {
		<-lc.Context().Done()
		w.queue.Close()
		<-done
		w.logger.Info("pipeline stopped", "pending", w.queue.Len())
	})
}

func (w *Worker) execute(ctx context.Context, executor int) error {
	for {
		id, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		w.metrics.QueueDepth(w.queue.Len())

		w.process(context.WithoutCancel(ctx), id, executor)
	}
}

func (w *Worker) claim(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.active[id]; ok {
		return false
	}
	w.active[id] = struct{}{}
	return true
}

func (w *Worker) release(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, id)
}

func (w *Worker) process(ctx context.Context, id uuid.UUID, executor int) {
	logger := w.logger.With("document_id", id, "executor", executor)

	if !w.claim(id) {
		w.metrics.Skipped()
		logger.Debug("document already claimed, skipping")
		return
	}
	defer w.release(id)

	w.metrics.InFlight(1)
	defer w.metrics.InFlight(-1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing document", "panic", r, "stack", string(debug.Stack()))
			w.fail(ctx, logger, id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	latest, err := w.store.Latest(ctx, id)
	if err != nil {
		w.report(logger, "read latest status", err)
		return
	}
	if latest.State != status.Pending {
		w.metrics.Skipped()
		logger.Debug("document is not pending, skipping", "state", latest.State)
		return
	}

	doc, err := w.registry.Find(ctx, id)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			logger.Info("document removed before processing")
			return
		}
		w.fail(ctx, logger, id, fmt.Sprintf("failed to load document: %v", err))
		return
	}

	if !w.transition(ctx, logger, id, status.Processing, "Text extraction started.") {
		return
	}

	start := time.Now()
	text, err := w.extract(ctx, doc)
	w.metrics.Stage("extract", start, err)
	if err != nil {
		w.fail(ctx, logger, id, err.Error())
		return
	}

	if !w.transition(ctx, logger, id, status.Analyzing, "LLM analysis started.") {
		return
	}

	out := retry.Attempt(ctx, w.policy(logger), func(ctx context.Context) (analyze.Result, error) {
		return w.analyze(ctx, text)
	})
	if !out.OK() {
		w.fail(ctx, logger, id, out.Err.Error())
		return
	}

	result := status.Result{
		DocumentID: id,
		Summary:    out.Value.Summary,
		Topics:     out.Value.Topics,
		Sentiment:  out.Value.Sentiment,
		Actions:    out.Value.Actions,
		RawOutput:  out.Value.RawOutput,
	}
	if _, err := w.store.Complete(ctx, id, result, status.Info("Processing completed.")); err != nil {
		w.report(logger, "record completion", err)
		return
	}

	logger.Info("document processed", "attempts", out.Attempts, "chars", len(text))
}

// extract downloads the upload under the storage timeout and decodes it
// under the extract timeout.
func (w *Worker) extract(ctx context.Context, doc *documents.Document) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, w.cfg.StorageTimeoutDuration())
	defer cancel()

	rc, err := w.source.Download(dctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("failed to extract text: %w", extract.ErrMissingSource)
		}
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	defer rc.Close()

	ectx, cancel := context.WithTimeout(ctx, w.cfg.ExtractTimeoutDuration())
	defer cancel()

	text, err := w.extractor.Extract(ectx, extract.Source{
		Reader:    rc,
		MediaType: doc.ContentType,
		Filename:  doc.Filename,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("failed to extract text: timed out after %s", w.cfg.ExtractTimeout)
	}
	return text, err
}

// analyze makes one analysis attempt under its own timeout.
func (w *Worker) analyze(ctx context.Context, text string) (analyze.Result, error) {
	actx, cancel := context.WithTimeout(ctx, w.cfg.AnalyzeTimeoutDuration())
	defer cancel()

	start := time.Now()
	result, err := w.analyzer.Analyze(actx, text)
	w.metrics.Stage("analyze", start, err)

	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return result, fmt.Errorf("analysis timed out after %s: %w", w.cfg.AnalyzeTimeout, err)
	}
	return result, err
}

func (w *Worker) policy(logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: w.cfg.MaxAttempts,
		Delay:       w.cfg.RetryDelayDuration(),
		OnRetry: func(attempt int, err error) {
			w.metrics.Retry()
			logger.Warn("analysis attempt failed, retrying", "attempt", attempt, "error", err)
		},
	}
}

func (w *Worker) transition(ctx context.Context, logger *slog.Logger, id uuid.UUID, next status.State, info string) bool {
	_, err := w.store.Append(ctx, status.Transition{
		DocumentID: id,
		State:      next,
		Metadata:   status.Info(info),
	})
	if err != nil {
		w.report(logger, "record "+string(next), err)
		return false
	}
	return true
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, id uuid.UUID, reason string) {
	logger.Warn("document failed", "reason", reason)

	_, err := w.store.Append(ctx, status.Transition{
		DocumentID: id,
		State:      status.Failed,
		Reason:     reason,
		Metadata:   status.Info("Processing failed."),
	})
	if err != nil {
		w.report(logger, "record failure", err)
	}
}

// report logs a status store error. Conflicts indicate an ordering bug and
// are logged loudly; a missing document means it was deleted mid-flight.
func (w *Worker) report(logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, status.ErrConflict):
		logger.Error("status conflict, abandoning document", "op", op, "error", err)
	case errors.Is(err, status.ErrNotFound):
		logger.Info("document deleted during processing", "op", op)
	default:
		logger.Error("status store error, abandoning document", "op", op, "error", err)
	}
}
