package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/docchat/internal/middleware"
)

type ChatHandler struct {
	BaseHandler
}

func NewChatHandler(logger *slog.Logger) *ChatHandler {
	return &ChatHandler{BaseHandler: BaseHandler{Logger: logger}}
}

// Ask appends the question to the transcript and forwards it, with every
// uploaded file, to the QA backend. It answers 202 straight away unless
// ?wait=true is given, in which case it blocks until the reply is in the
// transcript.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())

	var input struct {
		Question string `json:"question"`
	}
	if err := h.readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	reply, err := ws.Chat.Submit(context.WithoutCancel(r.Context()), input.Question)
	if err != nil {
		h.panelErrorResponse(w, r, err)
		return
	}

	status := http.StatusAccepted
	if wantsWait(r) {
		select {
		case <-reply:
			status = http.StatusOK
		case <-r.Context().Done():
			return
		}
	}

	if err := h.writeJSON(w, status, envelope{"chat": ws.Chat.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws := middleware.WorkspaceFromContext(r.Context())
	if err := h.writeJSON(w, http.StatusOK, envelope{"chat": ws.Chat.Snapshot()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
