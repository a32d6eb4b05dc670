package api

import (
	"fmt"

	"github.com/JaimeStill/scribe/internal/analyze"
	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/config"
	"github.com/JaimeStill/scribe/internal/documents"
	"github.com/JaimeStill/scribe/internal/extract"
	"github.com/JaimeStill/scribe/internal/pipeline"
	"github.com/JaimeStill/scribe/internal/ratelimit"
	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/internal/stream"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Auth      *auth.System
	Hub       *stream.Hub
	Status    status.Store
	Documents documents.System
	Pipeline  *pipeline.Worker
	Limiter   *ratelimit.Limiter

	closeAnalyzer func() error
}

// NewDomain creates all domain systems from the API runtime. Every status
// write fans out to the stream hub and the metrics observer.
func NewDomain(runtime *Runtime, cfg *config.Config) (*Domain, error) {
	ctx := runtime.Lifecycle.Context()

	authSystem, err := auth.New(ctx, &cfg.Auth, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	analyzer, closeAnalyzer, err := analyze.New(ctx, &cfg.Analyzer, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("analyzer init failed: %w", err)
	}

	hub := stream.NewHub(cfg.Stream.BufferSize, runtime.Metrics, runtime.Logger)

	statusStore := status.New(
		runtime.Database.Connection(),
		runtime.Logger,
		hub,
		runtime.Metrics,
	)

	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Storage,
		statusStore,
		runtime.Logger,
		runtime.Pagination,
		runtime.Metrics,
	)

	worker := pipeline.New(
		cfg.Pipeline,
		docsSystem,
		statusStore,
		runtime.Storage,
		extract.New(runtime.Logger),
		analyzer,
		runtime.Metrics,
		runtime.Logger,
	)

	return &Domain{
		Auth:          authSystem,
		Hub:           hub,
		Status:        statusStore,
		Documents:     docsSystem,
		Pipeline:      worker,
		Limiter:       ratelimit.New(&cfg.RateLimit, runtime.Metrics, runtime.Logger),
		closeAnalyzer: closeAnalyzer,
	}, nil
}

// Start registers the long-running domain systems with the lifecycle.
func (d *Domain) Start(runtime *Runtime) {
	lc := runtime.Lifecycle

	d.Hub.Start(lc)
	d.Pipeline.Start(lc)
	d.Limiter.Start(lc)

	lc.OnShutdown(func() {
		<-lc.Drained()
		if err := d.closeAnalyzer(); err != nil {
			runtime.Logger.Error("analyzer close failed", "error", err)
		}
	})
}
