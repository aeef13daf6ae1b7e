package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docchat/internal/compose"
	"github.com/docchat/internal/config"
	"github.com/docchat/internal/mailer"
	"github.com/docchat/internal/middleware"
	"github.com/docchat/internal/qa"
	"github.com/docchat/internal/store"
	"github.com/docchat/internal/upload"
	"github.com/docchat/internal/workspace"
)

// janitorInterval is how often idle workspaces are swept.
const janitorInterval = time.Minute

type App struct {
	config     *config.Config
	logger     *slog.Logger
	workspaces *store.WorkspaceStore
	limiter    *middleware.Limiter
}

// Close releases every workspace still held in memory.
func (app *App) Close() {
	n := app.workspaces.Close()
	app.logger.Debug("released workspaces", "count", n)
}

func New(args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)

	// Backend calls carry no client timeout; a hung backend keeps its panel busy.
	httpClient := &http.Client{}

	sender, err := newSender(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("configuring email transport: %w", err)
	}

	workspaces := store.NewWorkspaceStore(workspace.Deps{
		Answerer: qa.NewClient(cfg.QABackendURL, httpClient),
		Sender:   sender,
		Upload: upload.Config{
			Step:     cfg.UploadStepPercent,
			Interval: cfg.UploadStepInterval,
		},
		Compose: compose.Config{ResetDelay: cfg.EmailResetDelay},
		Logger:  logger,
	})

	return &App{
		config:     cfg,
		logger:     logger,
		workspaces: workspaces,
		limiter:    middleware.NewLimiter(middleware.PerMinute(cfg.RateLimitPerMinute), cfg.RateLimitPerMinute),
	}, nil
}

func newSender(cfg *config.Config, httpClient *http.Client) (mailer.Sender, error) {
	switch cfg.EmailTransport {
	case config.TransportHTTP:
		return mailer.NewHTTPSender(cfg.EmailBackendURL, httpClient), nil
	case config.TransportSMTP:
		return mailer.NewSMTPSender(&mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Pass:     cfg.SMTPPass,
			FromName: cfg.SMTPFromName,
		}), nil
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.EmailTransport)
	}
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", app.config.Port),
		Handler:           app.routes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	// Start the server in a goroutine
	g.Go(func() error {
		app.logger.Info("starting server",
			"addr", srv.Addr,
			"env", app.config.Env,
			"qa_backend", app.config.QABackendURL,
			"email_transport", app.config.EmailTransport,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Sweep idle workspaces
	g.Go(func() error {
		return app.workspaces.Janitor(gctx, janitorInterval, app.config.WorkspaceTTL)
	})

	// Forget rate-limit buckets of clients that have gone quiet
	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := app.limiter.Sweep(); n > 0 {
					app.logger.Debug("forgot idle clients", "count", n, "remaining", app.limiter.Len())
				}
			}
		}
	})

	// Start shutdown listener
	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
