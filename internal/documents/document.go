// Package documents implements the document registry: metadata persistence,
// blob storage integration, and the HTTP surface for uploads and status reads.
package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/internal/status"
)

// Document is a registered upload. Status and ErrorMessage are a projection
// maintained by the status store; the remaining fields are fixed at creation.
type Document struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	PageCount    *int      `json:"page_count"`
	StorageKey   string    `json:"storage_key"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Detail is a document with its status history and, once completed, its analysis.
type Detail struct {
	Document
	StatusHistory  []status.Event `json:"status_history"`
	AnalysisResult *status.Result `json:"analysis_result"`
}

// StatusView reports the current state of a document and its place in the pipeline.
type StatusView struct {
	DocumentID    uuid.UUID    `json:"document_id"`
	CurrentStatus status.State `json:"current_status"`
	IsQueued      bool         `json:"is_queued"`
	IsProcessing  bool         `json:"is_processing"`
	ErrorMessage  *string      `json:"error_message"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a new document.
// PageCount is optional and only set for PDFs.
type CreateCommand struct {
	OwnerID     string
	Data        []byte
	Filename    string
	ContentType string
	PageCount   *int
}

// BatchResult reports the outcome of a single file within a batch upload.
// On success, Document is populated and Error is empty.
// On failure, Error describes the problem and Document is nil.
type BatchResult struct {
	Document *Document `json:"document,omitempty"`
	Filename string    `json:"filename"`
	Error    string    `json:"error,omitempty"`
}

// BatchResponse is the body returned by the upload endpoint.
type BatchResponse struct {
	Results       []BatchResult `json:"results"`
	UploadedCount int           `json:"uploaded_count"`
	FailedCount   int           `json:"failed_count"`
}

// Scheduler feeds registered documents to the processing pipeline.
type Scheduler interface {
	Enqueue(id uuid.UUID) error
	Remove(id uuid.UUID) bool
	Queued(id uuid.UUID) bool
	Active(id uuid.UUID) bool
}
