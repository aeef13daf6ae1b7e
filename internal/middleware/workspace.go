package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/docchat/internal/store"
	"github.com/docchat/internal/workspace"
)

// WorkspaceHeader carries the id the index page was rendered with.
const WorkspaceHeader = "X-Workspace-ID"

type contextKey string

const contextKeyWorkspace contextKey = "workspace"

// WorkspaceReader retrieves a live workspace by id.
type WorkspaceReader interface {
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
}

// Workspace resolves the X-Workspace-ID header and populates the request
// context with the workspace. Requests without a live workspace get a 404.
func Workspace(workspaces WorkspaceReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(WorkspaceHeader)
			if id == "" {
				writeError(w, http.StatusBadRequest, "missing "+WorkspaceHeader+" header")
				return
			}

			ws, err := workspaces.Get(r.Context(), id)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					slog.Error("workspace: lookup failed", "err", err)
				}
				writeError(w, http.StatusNotFound, "workspace not found, reload the page")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyWorkspace, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WorkspaceFromContext returns the workspace resolved for the request, or nil.
func WorkspaceFromContext(ctx context.Context) *workspace.Workspace {
	v, _ := ctx.Value(contextKeyWorkspace).(*workspace.Workspace)
	return v
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
