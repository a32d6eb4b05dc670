package pipeline

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/scribe/pkg/handlers"
	"github.com/JaimeStill/scribe/pkg/openapi"
	"github.com/JaimeStill/scribe/pkg/routes"
)

// Handler exposes the worker state.
type Handler struct {
	worker *Worker
	logger *slog.Logger
}

func NewHandler(worker *Worker, logger *slog.Logger) *Handler {
	return &Handler{
		worker: worker,
		logger: logger.With("handler", "pipeline"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/pipeline",
		Tags:   []string{"Pipeline"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.State, OpenAPI: stateOp},
		},
	}
}

// State returns the active and queued document ids.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.worker.Snapshot())
}

var stateOp = &openapi.Operation{
	Summary: "Report active and queued documents",
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Pipeline state", "PipelineState"),
		401: openapi.ResponseRef("Unauthorized"),
	},
}

// Schemas returns the component schema for the pipeline state.
func Schemas() map[string]*openapi.Schema {
	ids := &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}}
	return map[string]*openapi.Schema{
		"PipelineState": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"active":       ids,
				"queued":       ids,
				"queue_length": {Type: "integer"},
			},
		},
	}
}
