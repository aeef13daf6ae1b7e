package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/docchat/internal/compose"
	"github.com/docchat/internal/middleware"
	"github.com/docchat/internal/model"
)

type EmailHandler struct {
	BaseHandler
}

func NewEmailHandler(logger *slog.Logger) *EmailHandler {
	return &EmailHandler{BaseHandler: BaseHandler{Logger: logger}}
}

// Update replaces the draft with the submitted form values.
func (h *EmailHandler) Update(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	var draft model.EmailDraft
	if err := h.readJSON(w, r, &draft); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := ws.Email.Update(draft); err != nil {
		h.panelErrorResponse(w, r, err)
		return
	}

	if err := h.writeJSON(w, http.StatusOK, envelope{"email": ws.Email.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// Send submits the current draft. An incomplete draft is answered with 422
// and the "Missing Information" notification; delivery failures surface as a
// notification in the snapshot, never as an HTTP error.
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	outcome, err := ws.Email.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		// the snapshot carries the "Missing Information" notification
		if errors.Is(err, compose.ErrIncomplete) {
			status, message := panelErrorStatus(err)
			if err := h.writeJSON(w, status, envelope{"error": message, "email": ws.Email.Snapshot()}, nil); err != nil {
				h.serverErrorResponse(w, r, err)
			}
			return
		}
		h.panelErrorResponse(w, r, err)
		return
	}

	status := http.StatusAccepted
	if wantsWait(r) {
		select {
		case res := <-outcome:
			status = http.StatusOK
			if res.Err != nil {
				h.Logger.Warn("email: delivery failed", "workspace", ws.ID, "err", res.Err)
			}
		case <-r.Context().Done():
			return
		}
	}

	if err := h.writeJSON(w, status, envelope{"email": ws.Email.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *EmailHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())
	if err := h.writeJSON(w, http.StatusOK, envelope{"email": ws.Email.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
