package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/docchat/internal/middleware"
	"github.com/docchat/internal/model"
)

// UploadHandler drives the upload panel: picking files, removing them and
// running the progress sequence.
type UploadHandler struct {
	BaseHandler
	maxUploadSizeMB int
}

func NewUploadHandler(logger *slog.Logger, maxUploadSizeMB int) *UploadHandler {
	return &UploadHandler{
		BaseHandler:     BaseHandler{Logger: logger},
		maxUploadSizeMB: maxUploadSizeMB,
	}
}

// AddFiles accepts a multipart form with one or more "files" parts. Anything
// that is not a PDF is dropped silently.
func (h *UploadHandler) AddFiles(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	// Parse multipart form with size limit
	maxSize := int64(h.maxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		h.Logger.Warn("upload: form parse failed", "err", err)
		h.errorResponse(w, r, http.StatusBadRequest, "form too large or invalid")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := readFiles(r.MultipartForm.File["files"])
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	accepted, err := ws.Upload.Add(files...)
	if err != nil {
		h.panelErrorResponse(w, r, err)
		return
	}
	h.Logger.Debug("upload: files added", "workspace", ws.ID, "received", len(files), "accepted", accepted)

	if err := h.writeJSON(w, http.StatusOK, envelope{"accepted": accepted, "upload": ws.Upload.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// RemoveFile drops the pending file at the {index} URL parameter.
func (h *UploadHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "index must be an integer")
		return
	}

	if err := ws.Upload.Remove(index); err != nil {
		h.panelErrorResponse(w, r, err)
		return
	}

	if err := h.writeJSON(w, http.StatusOK, envelope{"upload": ws.Upload.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// Start runs the progress sequence. Clients poll Get until the state is
// "uploaded".
func (h *UploadHandler) Start(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	// the sequence outlives this request
	if err := ws.Upload.Start(context.WithoutCancel(r.Context())); err != nil {
		h.panelErrorResponse(w, r, err)
		return
	}

	if err := h.writeJSON(w, http.StatusAccepted, envelope{"upload": ws.Upload.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())
	if err := h.writeJSON(w, http.StatusOK, envelope{"upload": ws.Upload.Snapshot(), "ready": ws.Ready()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func readFiles(headers []*multipart.FileHeader) ([]model.UploadedFile, error) {
	files := make([]model.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", fh.Filename, err)
		}
		files = append(files, model.UploadedFile{
			Name:     fh.Filename,
			Size:     fh.Size,
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return files, nil
}
