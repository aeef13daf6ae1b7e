package handler

import (
	"net/http"
)

type counter interface {
	Count() int
}

// Health reports liveness and the number of workspaces held in memory.
func Health(workspaces counter) http.HandlerFunc {
	h := &BaseHandler{}
	return func(w http.ResponseWriter, r *http.Request) {
		_ = h.writeJSON(w, http.StatusOK, envelope{"status": "ok", "workspaces": workspaces.Count()}, nil)
	}
}
