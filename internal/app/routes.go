package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/docchat/internal/handler"
	"github.com/docchat/internal/middleware"
	"github.com/docchat/internal/web"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS)))

	// Health check
	r.Get("/api/health", handler.Health(app.workspaces))

	// Page
	pageHandler := handler.NewPageHandler(app.logger, app.workspaces, web.Templates)
	r.Get("/", pageHandler.Index)

	// Panel API, scoped to the workspace named by X-Workspace-ID
	limit := app.limiter.Middleware
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Workspace(app.workspaces))

		workspaceHandler := handler.NewWorkspaceHandler(app.logger)
		r.Get("/api/workspace", workspaceHandler.Get)
		r.Put("/api/workspace/tab", workspaceHandler.SelectTab)

		uploadHandler := handler.NewUploadHandler(app.logger, app.config.MaxUploadSizeMB)
		r.Get("/api/upload", uploadHandler.Get)
		r.Delete("/api/upload/files/{index}", uploadHandler.RemoveFile)
		r.With(limit).Post("/api/upload/files", uploadHandler.AddFiles)
		r.With(limit).Post("/api/upload", uploadHandler.Start)

		chatHandler := handler.NewChatHandler(app.logger)
		r.Get("/api/chat", chatHandler.Get)
		r.With(limit).Post("/api/chat", chatHandler.Ask)

		emailHandler := handler.NewEmailHandler(app.logger)
		r.Get("/api/email", emailHandler.Get)
		r.Put("/api/email", emailHandler.Update)
		r.With(limit).Post("/api/email", emailHandler.Send)
	})

	return r
}
