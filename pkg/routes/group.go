// Package routes declares route groups and registers them on a ServeMux.
package routes

import (
	"net/http"

	"github.com/JaimeStill/scribe/pkg/openapi"
)

// Group organizes routes under a common prefix with shared tags.
// Group middleware wraps every route in the group and its children.
// Children inherit Tags unless they declare their own.
type Group struct {
	Prefix     string
	Tags       []string
	Routes     []Route
	Children   []Group
	Middleware []Middleware
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", nil, group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, inherited []Middleware, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	stack := append(append([]Middleware{}, inherited...), group.Middleware...)

	for _, route := range group.Routes {
		pattern := route.Method + " " + fullPrefix + route.Pattern
		mux.Handle(pattern, wrap(route.Handler, append(append([]Middleware{}, stack...), route.Middleware...)))
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, stack, child)
	}
}

// wrap applies mw so that mw[0] is the outermost handler.
func wrap(h http.Handler, mw []Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Describe adds every documented route in groups to spec. Routes without an
// OpenAPI operation are skipped.
func Describe(spec *openapi.Spec, groups ...Group) {
	for _, group := range groups {
		describeGroup(spec, "", nil, group)
	}
}

func describeGroup(spec *openapi.Spec, parentPrefix string, tags []string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	if len(group.Tags) > 0 {
		tags = group.Tags
	}

	for _, route := range group.Routes {
		if route.OpenAPI == nil {
			continue
		}
		op := *route.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = tags
		}
		spec.AddOperation(route.Method, fullPrefix+route.Pattern, &op)
	}
	for _, child := range group.Children {
		describeGroup(spec, fullPrefix, tags, child)
	}
}
