package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/docchat/internal/chat"
	"github.com/docchat/internal/compose"
	"github.com/docchat/internal/upload"
	"github.com/docchat/internal/workspace"
)

type envelope map[string]any

type BaseHandler struct {
	Logger *slog.Logger
}

func (h *BaseHandler) logError(r *http.Request, err error) {
	method := r.Method
	uri := r.URL.RequestURI()

	h.Logger.Error(err.Error(), "method", method, "uri", uri)
}

func (h *BaseHandler) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	env := envelope{"error": message}

	err := h.writeJSON(w, status, env, nil)
	if err != nil {
		h.logError(r, err)
		w.WriteHeader(500)
	}
}

func (h *BaseHandler) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, err)

	message := "the server encountered a problem and could not process your request"
	h.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (h *BaseHandler) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// panelErrors maps the sentinel errors of the panels to the status and the
// message the page shows. Anything not listed is a server error.
var panelErrors = []struct {
	err     error
	status  int
	message string
}{
	{workspace.ErrTabLocked, http.StatusConflict, "upload documents before opening the chat"},
	{workspace.ErrUnknownTab, http.StatusBadRequest, "unknown tab"},
	{upload.ErrLocked, http.StatusConflict, "files can no longer be changed"},
	{upload.ErrNoFiles, http.StatusUnprocessableEntity, "select at least one PDF file"},
	{upload.ErrIndexOutOfRange, http.StatusNotFound, "no file at that position"},
	{chat.ErrNoFiles, http.StatusConflict, "upload documents before asking questions"},
	{chat.ErrBusy, http.StatusConflict, "wait for the current answer"},
	{chat.ErrEmptyQuestion, http.StatusBadRequest, "question must not be empty"},
	{compose.ErrIncomplete, http.StatusUnprocessableEntity, "please fill in all fields before sending"},
	{compose.ErrBusy, http.StatusConflict, "an email is already being sent"},
	{compose.ErrLocked, http.StatusConflict, "the form is locked while sending"},
}

// panelErrorStatus returns the status and message for err, or 500 when err
// is not a panel error.
func panelErrorStatus(err error) (int, string) {
	for _, pe := range panelErrors {
		if errors.Is(err, pe.err) {
			return pe.status, pe.message
		}
	}
	return http.StatusInternalServerError, ""
}

func (h *BaseHandler) panelErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status, message := panelErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.serverErrorResponse(w, r, err)
		return
	}
	h.Logger.Debug("panel rejected request", "err", err, "status", status, "uri", r.URL.RequestURI())
	h.errorResponse(w, r, status, message)
}

// wantsWait reports whether the client asked to block until an asynchronous
// operation has settled.
func wantsWait(r *http.Request) bool {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return wait
}

func (h *BaseHandler) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	for k, v := range headers {
		for _, value := range v {
			w.Header().Add(k, value)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)

	if err := encoder.Encode(data); err != nil {
		return err
	}

	return nil
}

func (h *BaseHandler) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576) // 1MB

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	// Ensure only a single JSON value is present in the body
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}
