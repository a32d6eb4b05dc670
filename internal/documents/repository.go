package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/internal/telemetry"
	"github.com/JaimeStill/scribe/pkg/pagination"
	"github.com/JaimeStill/scribe/pkg/query"
	"github.com/JaimeStill/scribe/pkg/repository"
	"github.com/JaimeStill/scribe/pkg/storage"
)

type repo struct {
	db         *sql.DB
	blobs      storage.System
	status     status.Store
	logger     *slog.Logger
	pagination pagination.Config
	metrics    *telemetry.Metrics
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	blobs storage.System,
	statusStore status.Store,
	logger *slog.Logger,
	pagination pagination.Config,
	metrics *telemetry.Metrics,
) System {
	return &repo{
		db:         db,
		blobs:      blobs,
		status:     statusStore,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
		metrics:    metrics,
	}
}

func (r *repo) Handler(scheduler Scheduler, maxUploadSize int64, maxFiles int) *Handler {
	return NewHandler(r, r.status, scheduler, r.logger, r.pagination, r.metrics, maxUploadSize, maxFiles)
}

func (r *repo) List(
	ctx context.Context,
	ownerID string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("OwnerID", ownerID).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.blobs.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	q := `
		INSERT INTO documents(id, owner_id, filename, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, owner_id, filename, content_type, size_bytes, page_count, storage_key, status, error_message, created_at, updated_at`

	insertArgs := []any{
		id,
		cmd.OwnerID,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanDocument)
	})
	if err != nil {
		r.deleteBlob(ctx, key)
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if _, err := r.status.Open(ctx, id, cmd.OwnerID); err != nil {
		if _, delErr := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id); delErr != nil {
			r.logger.Warn("compensating row delete failed", "id", id, "error", delErr)
		}
		r.deleteBlob(ctx, key)
		return nil, fmt.Errorf("open status history: %w", err)
	}

	r.logger.Info("document created", "id", d.ID, "owner", d.OwnerID, "filename", d.Filename)
	return &d, nil
}

func (r *repo) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Document, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := r.blobs.Download(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: stored file is missing", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("download document blob: %w", err)
	}
	return rc, doc, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	if err := r.status.Delete(ctx, id); err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}

	if delErr := r.blobs.Delete(ctx, doc.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", doc.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("document deleted", "id", id)
	return nil
}

func (r *repo) deleteBlob(ctx context.Context, key string) {
	if err := r.blobs.Delete(ctx, key); err != nil {
		r.logger.Warn("compensating blob delete failed", "key", key, "error", err)
	}
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}
