package handler

import (
	"log/slog"
	"net/http"

	"github.com/docchat/internal/middleware"
	"github.com/docchat/internal/workspace"
)

type WorkspaceHandler struct {
	BaseHandler
}

func NewWorkspaceHandler(logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{BaseHandler: BaseHandler{Logger: logger}}
}

// Get returns the combined snapshot of every panel.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())
	if err := h.writeJSON(w, http.StatusOK, envelope{"workspace": ws.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// SelectTab switches the active panel. The chat tab stays locked until the
// upload has completed.
func (h *WorkspaceHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	var input struct {
		Tab workspace.Tab `json:"tab"`
	}
	if err := h.readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := ws.Select(input.Tab); err != nil {
		h.panelErrorResponse(w, r, err)
		return
	}

	if err := h.writeJSON(w, http.StatusOK, envelope{"workspace": ws.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
