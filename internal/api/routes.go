package api

import (
	"net/http"

	"github.com/JaimeStill/scribe/internal/config"
	"github.com/JaimeStill/scribe/internal/pipeline"
	"github.com/JaimeStill/scribe/internal/stream"
	"github.com/JaimeStill/scribe/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	limit := domain.Limiter.Middleware()

	docs := domain.Documents.Handler(domain.Pipeline, cfg.API.MaxUploadSizeBytes(), cfg.API.MaxFiles)
	docs.GuardUpload(limit)

	streams := stream.NewHandler(domain.Hub, domain.Status, cfg.Stream, runtime.Logger)
	pipe := pipeline.NewHandler(domain.Pipeline, runtime.Logger)

	groups := []routes.Group{
		domain.Auth.Handler().Routes(limit),
		{
			Middleware: []routes.Middleware{domain.Auth.Middleware()},
			Children: []routes.Group{
				streams.Routes(),
				docs.Routes(),
				pipe.Routes(),
			},
		},
	}

	if cfg.API.OpenAPI.IsEnabled() {
		spec, err := buildSpec(cfg, groups)
		if err != nil {
			return err
		}
		groups = append(groups, spec)
	}

	routes.Register(mux, groups...)
	return nil
}
