package analyze

import "errors"

var (
	// ErrInvalidResponse indicates model output that violates the result contract.
	ErrInvalidResponse = errors.New("invalid analysis response")
	// ErrEmptyResponse indicates the model returned no content.
	ErrEmptyResponse = errors.New("empty completion content")
	// ErrNotConfigured indicates missing provider credentials.
	ErrNotConfigured = errors.New("analyzer credentials are not configured")
)
