package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/docchat/internal/web"
	"github.com/docchat/internal/workspace"
)

type workspaceCreator interface {
	Create(ctx context.Context) (*workspace.Workspace, error)
}

// PageHandler renders the single page that hosts the three panels.
type PageHandler struct {
	BaseHandler
	workspaces workspaceCreator
	templates  *template.Template
}

func NewPageHandler(logger *slog.Logger, workspaces workspaceCreator, tmpl *template.Template) *PageHandler {
	return &PageHandler{
		BaseHandler: BaseHandler{Logger: logger},
		workspaces:  workspaces,
		templates:   tmpl,
	}
}

type pageData struct {
	WorkspaceID string
	View        workspace.View
}

// Index starts a fresh workspace on every load, so a reload discards the
// previous transcript, drafts and files.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspaces.Create(r.Context())
	if err != nil {
		h.logError(r, err)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := pageData{WorkspaceID: ws.ID, View: ws.Snapshot()}
	if err := h.templates.ExecuteTemplate(w, web.PageTemplate, data); err != nil {
		h.Logger.Error("page: template error", "err", err)
	}
}
