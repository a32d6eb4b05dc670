package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(scheduler Scheduler, maxUploadSize int64, maxFiles int) *Handler

	// List returns the owner's documents.
	List(
		ctx context.Context,
		ownerID string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	// Create stores the blob, registers the row, and opens the status history.
	// A failure in any step removes what the earlier steps wrote.
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	// Download opens the stored upload. The caller must close the reader.
	Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Document, error)
	// Delete removes the document, its status history, its result and its blob.
	Delete(ctx context.Context, id uuid.UUID) error
}
