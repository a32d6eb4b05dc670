package routes

import (
	"net/http"

	"github.com/JaimeStill/scribe/pkg/openapi"
)

// Middleware wraps a handler with additional behavior.
type Middleware = func(http.Handler) http.Handler

// Route binds an HTTP method and pattern to a handler.
// Middleware applies to this route only, inside any group middleware.
// OpenAPI, when set, documents the route in the generated spec.
type Route struct {
	Method     string
	Pattern    string
	Handler    http.HandlerFunc
	Middleware []Middleware
	OpenAPI    *openapi.Operation
}
