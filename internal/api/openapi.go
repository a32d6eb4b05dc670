package api

import (
	"fmt"

	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/config"
	"github.com/JaimeStill/scribe/internal/documents"
	"github.com/JaimeStill/scribe/internal/pipeline"
	"github.com/JaimeStill/scribe/internal/stream"
	"github.com/JaimeStill/scribe/pkg/openapi"
	"github.com/JaimeStill/scribe/pkg/routes"
)

// buildSpec describes groups and returns the public route serving the
// resulting document.
func buildSpec(cfg *config.Config, groups []routes.Group) (routes.Group, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.UseBearerAuth()

	spec.Components.AddSchemas(auth.Schemas())
	spec.Components.AddSchemas(documents.Schemas())
	spec.Components.AddSchemas(pipeline.Schemas())
	spec.Components.AddSchemas(stream.Schemas())

	routes.Describe(spec, groups...)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return routes.Group{}, fmt.Errorf("marshal openapi spec: %w", err)
	}

	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/openapi.json", Handler: openapi.ServeSpec(data)},
		},
	}, nil
}
