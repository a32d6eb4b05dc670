package documents

import (
	"maps"

	"github.com/JaimeStill/scribe/pkg/openapi"
)

var documentID = openapi.PathParam("id", "Document ID")

var ops = struct {
	List    *openapi.Operation
	Upload  *openapi.Operation
	Find    *openapi.Operation
	Status  *openapi.Operation
	History *openapi.Operation
	Result  *openapi.Operation
	File    *openapi.Operation
	Delete  *openapi.Operation
}{
	List: &openapi.Operation{
		Summary: "List the caller's documents",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Filename search", false),
			openapi.QueryParam("sort", "string", "Sort fields, - prefix for descending", false),
			openapi.QueryParam("status", "string", "Filter by processing state", false),
			openapi.QueryParam("content_type", "string", "Filter by media type", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Document page", "DocumentPage"),
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
		},
	},
	Upload: &openapi.Operation{
		Summary:     "Upload documents",
		Description: "Registers each file of the multipart field \"files\" and enqueues it for processing. Files are validated independently.",
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"multipart/form-data": {Schema: &openapi.Schema{
					Type:     "object",
					Required: []string{"files"},
					Properties: map[string]*openapi.Schema{
						"files": {Type: "array", Items: &openapi.Schema{Type: "string", Format: "binary"}},
					},
				}},
			},
		},
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("At least one file registered", "BatchResponse"),
			400: openapi.ResponseJSON("No file registered", "BatchResponse"),
			401: openapi.ResponseRef("Unauthorized"),
			413: openapi.ResponseRef("TooLarge"),
			429: openapi.ResponseRef("TooManyRequests"),
		},
	},
	Find: &openapi.Operation{
		Summary:    "Get a document with its history and analysis",
		Parameters: []*openapi.Parameter{documentID},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Document detail", "DocumentDetail"),
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Status: &openapi.Operation{
		Summary:    "Get the current processing status",
		Parameters: []*openapi.Parameter{documentID},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Status", "DocumentStatus"),
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	History: &openapi.Operation{
		Summary:    "List status transitions in order",
		Parameters: []*openapi.Parameter{documentID},
		Responses: map[int]*openapi.Response{
			200: {
				Description: "Status events",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: openapi.ArrayOf("StatusEvent")},
				},
			},
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Result: &openapi.Operation{
		Summary:    "Get the analysis result",
		Parameters: []*openapi.Parameter{documentID},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Analysis result", "AnalysisResult"),
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	File: &openapi.Operation{
		Summary:    "Download the original file",
		Parameters: []*openapi.Parameter{documentID},
		Responses: map[int]*openapi.Response{
			200: {
				Description: "File content",
				Content: map[string]*openapi.MediaType{
					"application/octet-stream": {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
				},
			},
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Delete: &openapi.Operation{
		Summary:    "Delete a document",
		Parameters: []*openapi.Parameter{documentID},
		Responses: map[int]*openapi.Response{
			204: {Description: "Deleted"},
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
		},
	},
}

var states = []any{"pending", "processing", "analyzing", "completed", "failed"}

// Schemas returns the component schemas for document payloads.
func Schemas() map[string]*openapi.Schema {
	document := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":            {Type: "string", Format: "uuid"},
			"owner_id":      {Type: "string"},
			"filename":      {Type: "string"},
			"content_type":  {Type: "string", Example: "application/pdf"},
			"size_bytes":    {Type: "integer"},
			"page_count":    {Type: "integer", Description: "Set for PDFs"},
			"storage_key":   {Type: "string"},
			"status":        {Type: "string", Enum: states},
			"error_message": {Type: "string"},
			"created_at":    {Type: "string", Format: "date-time"},
			"updated_at":    {Type: "string", Format: "date-time"},
		},
	}

	detail := &openapi.Schema{Type: "object", Properties: map[string]*openapi.Schema{
		"status_history":  openapi.ArrayOf("StatusEvent"),
		"analysis_result": openapi.SchemaRef("AnalysisResult"),
	}}
	maps.Copy(detail.Properties, document.Properties)

	labels := &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}}

	return map[string]*openapi.Schema{
		"Document":       document,
		"DocumentDetail": detail,
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf("Document"),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"DocumentStatus": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_id":    {Type: "string", Format: "uuid"},
				"current_status": {Type: "string", Enum: states},
				"is_queued":      {Type: "boolean"},
				"is_processing":  {Type: "boolean"},
				"error_message":  {Type: "string"},
				"updated_at":     {Type: "string", Format: "date-time"},
			},
		},
		"StatusEvent": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"seq":         {Type: "integer"},
				"document_id": {Type: "string", Format: "uuid"},
				"owner_id":    {Type: "string"},
				"state":       {Type: "string", Enum: states},
				"reason":      {Type: "string"},
				"metadata":    {Type: "object"},
				"result":      openapi.SchemaRef("AnalysisResult"),
				"created_at":  {Type: "string", Format: "date-time"},
			},
		},
		"AnalysisResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_id":      {Type: "string", Format: "uuid"},
				"summary":          {Type: "string"},
				"key_topics":       labels,
				"sentiment":        {Type: "string", Enum: []any{"positive", "negative", "neutral", "mixed"}},
				"actionable_items": labels,
				"created_at":       {Type: "string", Format: "date-time"},
			},
		},
		"BatchResponse": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"results": {Type: "array", Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"document": openapi.SchemaRef("Document"),
						"filename": {Type: "string"},
						"error":    {Type: "string"},
					},
				}},
				"uploaded_count": {Type: "integer"},
				"failed_count":   {Type: "integer"},
			},
		},
	}
}
