package auth

import "github.com/JaimeStill/scribe/pkg/openapi"

var ops = struct {
	Login *openapi.Operation
	Me    *openapi.Operation
}{
	Login: &openapi.Operation{
		Summary:     "Exchange credentials for a bearer token",
		Description: "Available in local mode only.",
		RequestBody: openapi.RequestBodyJSON("LoginRequest", true),
		Security:    openapi.Public(),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Token issued", "Token"),
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
			404: openapi.ResponseRef("NotFound"),
			429: openapi.ResponseRef("TooManyRequests"),
		},
	},
	Me: &openapi.Operation{
		Summary: "Describe the authenticated caller",
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Caller", "Principal"),
			401: openapi.ResponseRef("Unauthorized"),
		},
	},
}

// Schemas returns the component schemas for auth payloads.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"LoginRequest": {
			Type:     "object",
			Required: []string{"username", "password"},
			Properties: map[string]*openapi.Schema{
				"username": {Type: "string"},
				"password": {Type: "string", Format: "password"},
			},
		},
		"Token": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"access_token": {Type: "string"},
				"token_type":   {Type: "string", Example: "bearer"},
				"expires_in":   {Type: "integer", Description: "Lifetime in seconds"},
			},
		},
		"Principal": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"sub":   {Type: "string"},
				"name":  {Type: "string"},
				"email": {Type: "string"},
			},
		},
	}
}
