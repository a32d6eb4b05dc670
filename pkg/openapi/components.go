package openapi

import "maps"

func errorContent() map[string]*MediaType {
	return map[string]*MediaType{
		"application/json": {Schema: SchemaRef("Error")},
	}
}

// NewComponents creates Components with the shared error schema, page
// request, and the standard error responses.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"Error": {
				Type:     "object",
				Required: []string{"error"},
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
			},
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: filename,-created_at"},
				},
			},
		},
		Responses: make(map[string]*Response),
	}

	for name, desc := range map[string]string{
		"BadRequest":      "Invalid request",
		"Unauthorized":    "Missing, invalid or expired bearer token",
		"NotFound":        "Resource not found",
		"Conflict":        "Request conflicts with the resource state",
		"TooLarge":        "Request body exceeds the upload limit",
		"TooManyRequests": "Rate limit exceeded; see Retry-After",
	} {
		c.Responses[name] = &Response{Description: desc, Content: errorContent()}
	}
	return c
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
