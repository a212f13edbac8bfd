package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/logging"
	"github.com/hpungsan/muse/internal/wizard"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the local wizard UI. One wizard
// instance backs every browser tab.
func NewServer(db *sql.DB, cfg *config.Config, ctrl *wizard.Controller, logger *zap.Logger, version string) (*http.Server, error) {
	// Strip the "templates/" and "static/" prefixes
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	logger = logging.OrNop(logger).Named("web")
	h := &Handlers{
		db:       db,
		cfg:      cfg,
		ctrl:     ctrl,
		logger:   logger,
		renderer: NewRenderer(templateSub, version, logger),
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.WebBind, cfg.WebPort),
		Handler:           h.routes(http.FileServerFS(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (h *Handlers) routes(static http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/wizard", http.StatusFound)
	})
	mux.HandleFunc("GET /wizard", h.HandleWizard)
	mux.HandleFunc("POST /wizard/details", h.HandleDetails)
	mux.HandleFunc("POST /wizard/back", h.HandleBack)
	mux.HandleFunc("POST /wizard/images", h.HandleAddImage)
	mux.HandleFunc("POST /wizard/images/{index}/delete", h.HandleRemoveImage)
	mux.HandleFunc("POST /wizard/generate", h.HandleGenerate)
	mux.HandleFunc("POST /wizard/regenerate/poem", h.HandleRegeneratePoem)
	mux.HandleFunc("POST /wizard/regenerate/image", h.HandleRegenerateImage)
	mux.HandleFunc("POST /wizard/email", h.HandleEmail)
	mux.HandleFunc("POST /wizard/reset", h.HandleReset)
	mux.HandleFunc("GET /history", h.HandleHistory)
	mux.HandleFunc("GET /history/{id}", h.HandleDetail)

	mux.Handle("GET /static/", http.StripPrefix("/static/", static))

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
// Portraits are data URIs or provider-hosted https URLs.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data: https:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("web")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("muse wizard running", zap.String("url", "http://"+srv.Addr))
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
