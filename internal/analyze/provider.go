package analyze

import (
	"context"
	"fmt"
	"log/slog"
)

// New creates the Analyzer selected by cfg.Provider. The returned closer
// releases provider clients and is never nil.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (Analyzer, func() error, error) {
	logger = logger.With("system", "analyze", "provider", cfg.Provider)
	noop := func() error { return nil }

	switch cfg.Provider {
	case ProviderOpenAI:
		return newOpenAI(cfg, logger), noop, nil
	case ProviderAzure:
		a, err := newAzure(cfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return a, noop, nil
	case ProviderVertex:
		v, err := newVertex(ctx, cfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return v, v.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown analyzer provider %q", cfg.Provider)
	}
}
