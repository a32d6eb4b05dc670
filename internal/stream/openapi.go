package stream

import "github.com/JaimeStill/scribe/pkg/openapi"

var tokenParam = openapi.QueryParam("access_token", "string", "Bearer token for clients that cannot set headers", false)

var sseOp = &openapi.Operation{
	Summary:     "Stream status events as Server-Sent Events",
	Description: "Replays recent events, then pushes each status change for the caller's documents as a structured CloudEvent. Honors Last-Event-ID.",
	Parameters: []*openapi.Parameter{
		tokenParam,
		{Name: "Last-Event-ID", In: "header", Description: "Resume after this sequence number", Schema: &openapi.Schema{Type: "integer"}},
	},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Event stream",
			Content: map[string]*openapi.MediaType{
				"text/event-stream": {Schema: openapi.SchemaRef("StatusCloudEvent")},
			},
		},
		401: openapi.ResponseRef("Unauthorized"),
	},
}

var wsOp = &openapi.Operation{
	Summary:     "Stream status events over WebSocket",
	Description: "Upgrades to a WebSocket that carries one CloudEvent JSON text message per status change.",
	Parameters:  []*openapi.Parameter{tokenParam},
	Responses: map[int]*openapi.Response{
		101: {Description: "Switching protocols"},
		401: openapi.ResponseRef("Unauthorized"),
		403: {Description: "Origin not allowed"},
	},
}

// Schemas returns the component schema for streamed events.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"StatusCloudEvent": {
			Type:        "object",
			Description: "CloudEvents 1.0 structured envelope",
			Properties: map[string]*openapi.Schema{
				"specversion":     {Type: "string", Example: "1.0"},
				"id":              {Type: "string"},
				"type":            {Type: "string", Enum: []any{TypeStatus, TypeDeleted, TypeHeartbeat}},
				"source":          {Type: "string"},
				"subject":         {Type: "string", Description: "Document ID"},
				"time":            {Type: "string", Format: "date-time"},
				"datacontenttype": {Type: "string", Example: "application/json"},
				"data":            openapi.SchemaRef("StatusEvent"),
			},
		},
	}
}
