package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/internal/telemetry"
	"github.com/JaimeStill/scribe/pkg/formatting"
	"github.com/JaimeStill/scribe/pkg/handlers"
	"github.com/JaimeStill/scribe/pkg/pagination"
	"github.com/JaimeStill/scribe/pkg/routes"
)

// allowedTypes maps accepted extensions to their media type.
var allowedTypes = map[string]string{
	".pdf": "application/pdf",
	".txt": "text/plain",
}

// Handler provides HTTP endpoints for document operations.
type Handler struct {
	sys           System
	status        status.Store
	scheduler     Scheduler
	logger        *slog.Logger
	pagination    pagination.Config
	metrics       *telemetry.Metrics
	maxUploadSize int64
	maxFiles      int
	uploadGuard   []routes.Middleware
}

// NewHandler creates a Handler. maxUploadSize bounds each file and maxFiles
// bounds the files accepted by a single upload request.
func NewHandler(
	sys System,
	statusStore status.Store,
	scheduler Scheduler,
	logger *slog.Logger,
	pagination pagination.Config,
	metrics *telemetry.Metrics,
	maxUploadSize int64,
	maxFiles int,
) *Handler {
	return &Handler{
		sys:           sys,
		status:        statusStore,
		scheduler:     scheduler,
		logger:        logger.With("handler", "documents"),
		pagination:    pagination,
		metrics:       metrics,
		maxUploadSize: maxUploadSize,
		maxFiles:      max(maxFiles, 1),
	}
}

// GuardUpload adds middleware that runs only on the upload route.
func (h *Handler) GuardUpload(mw ...routes.Middleware) {
	h.uploadGuard = append(h.uploadGuard, mw...)
}

// Routes returns the route group definition for document endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Tags:   []string{"Documents"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: ops.List},
			{Method: "POST", Pattern: "/upload", Handler: h.Upload, Middleware: h.uploadGuard, OpenAPI: ops.Upload},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: ops.Find},
			{Method: "GET", Pattern: "/{id}/status", Handler: h.Status, OpenAPI: ops.Status},
			{Method: "GET", Pattern: "/{id}/history", Handler: h.History, OpenAPI: ops.History},
			{Method: "GET", Pattern: "/{id}/result", Handler: h.Result, OpenAPI: ops.Result},
			{Method: "GET", Pattern: "/{id}/file", Handler: h.File, OpenAPI: ops.File},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: ops.Delete},
		},
	}
}

// List returns a page of the caller's documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.List(r.Context(), owner, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a document with its status history and analysis result.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}

	history, err := h.status.History(r.Context(), doc.ID)
	if err != nil {
		h.fail(w, err)
		return
	}

	detail := Detail{Document: *doc, StatusHistory: history}
	if res, err := h.status.Result(r.Context(), doc.ID); err == nil {
		detail.AnalysisResult = &res
	} else if !errors.Is(err, status.ErrNotFound) {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, detail)
}

// Status reports the current state and whether the pipeline holds the document.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}

	latest, err := h.status.Latest(r.Context(), doc.ID)
	if err != nil {
		h.fail(w, err)
		return
	}

	view := StatusView{
		DocumentID:    doc.ID,
		CurrentStatus: latest.State,
		IsQueued:      h.scheduler.Queued(doc.ID),
		IsProcessing:  h.scheduler.Active(doc.ID),
		UpdatedAt:     latest.CreatedAt,
	}
	if latest.State == status.Failed && latest.Reason != "" {
		reason := latest.Reason
		view.ErrorMessage = &reason
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

// History returns the ordered status events of a document.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}

	history, err := h.status.History(r.Context(), doc.ID)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, history)
}

// Result returns the analysis of a completed document.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}

	res, err := h.status.Result(r.Context(), doc.ID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			err = fmt.Errorf("%w: no analysis result for document", ErrNotFound)
		}
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, res)
}

// File streams the original upload.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}

	rc, _, err := h.sys.Download(r.Context(), doc.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("file stream interrupted", "id", doc.ID, "error", err)
	}
}

// Delete removes a document unless the pipeline is working on it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}

	st := status.State(doc.Status)
	if h.scheduler.Active(doc.ID) || st == status.Processing || st == status.Analyzing {
		handlers.RespondError(w, h.logger, http.StatusConflict, ErrProcessing)
		return
	}

	h.scheduler.Remove(doc.ID)

	if err := h.sys.Delete(r.Context(), doc.ID); err != nil {
		h.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Upload registers one or more files from the multipart field "files" and
// schedules each for processing. The response is 201 when at least one file
// was accepted and 400 otherwise.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	limit := h.maxUploadSize*int64(h.maxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: no files provided", ErrInvalidFile))
		return
	}
	if len(files) > h.maxFiles {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: at most %d files per upload", ErrInvalidFile, h.maxFiles))
		return
	}

	resp := BatchResponse{Results: make([]BatchResult, 0, len(files))}
	for _, fh := range files {
		result := BatchResult{Filename: fh.Filename}

		doc, err := h.uploadOne(r, owner, fh)
		if err != nil {
			result.Error = err.Error()
			resp.FailedCount++
			h.logger.Warn("upload rejected", "filename", fh.Filename, "error", err)
		} else {
			result.Document = doc
			resp.UploadedCount++
		}
		h.metrics.Upload(err == nil)

		resp.Results = append(resp.Results, result)
	}

	code := http.StatusCreated
	if resp.UploadedCount == 0 {
		code = http.StatusBadRequest
	}
	handlers.RespondJSON(w, code, resp)
}

func (h *Handler) uploadOne(r *http.Request, owner string, fh *multipart.FileHeader) (*Document, error) {
	contentType, err := validateFile(fh, h.maxUploadSize)
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidFile)
	}

	doc, err := h.sys.Create(r.Context(), CreateCommand{
		OwnerID:     owner,
		Data:        data,
		Filename:    fh.Filename,
		ContentType: contentType,
		PageCount:   extractPDFPageCount(h.logger, data, contentType),
	})
	if err != nil {
		return nil, err
	}

	if err := h.scheduler.Enqueue(doc.ID); err != nil {
		// An unscheduled document would sit in pending forever.
		if delErr := h.sys.Delete(context.WithoutCancel(r.Context()), doc.ID); delErr != nil {
			h.logger.Error("unscheduled document not rolled back", "id", doc.ID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotScheduled, err)
	}
	return doc, nil
}

// validateFile checks extension, declared media type and size, and returns
// the canonical media type.
func validateFile(fh *multipart.FileHeader, maxSize int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	want, ok := allowedTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: only .pdf and .txt files are accepted", ErrInvalidFile)
	}

	if declared := strings.TrimSpace(fh.Header.Get("Content-Type")); declared != "" && declared != "application/octet-stream" {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil || mt != want {
			return "", fmt.Errorf("%w: content type %q does not match %s", ErrInvalidFile, declared, ext)
		}
	}

	if fh.Size > maxSize {
		return "", fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge,
			formatting.FormatBytes(fh.Size, 1), formatting.FormatBytes(maxSize, 0))
	}
	return want, nil
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrUnauthorized)
		return "", false
	}
	return p.Subject, true
}

// document resolves the {id} path value to a document owned by the caller.
// Documents of other owners are reported as not found.
func (h *Handler) document(w http.ResponseWriter, r *http.Request) (*Document, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: malformed document id", ErrInvalidFile))
		return nil, false
	}

	doc, err := h.sys.Find(r.Context(), id)
	if err == nil && doc.OwnerID != owner {
		err = ErrNotFound
	}
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return doc, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	code := MapHTTPStatus(err)
	if code == http.StatusInternalServerError {
		code = status.MapHTTPStatus(err)
	}
	handlers.RespondError(w, h.logger, code, err)
}

func extractPDFPageCount(logger *slog.Logger, data []byte, contentType string) *int {
	if contentType != "application/pdf" {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}

	return &count
}
