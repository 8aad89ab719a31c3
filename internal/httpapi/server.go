package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kneeflexiq/internal/config"
	"kneeflexiq/internal/metrics"
)

// NewMux returns a mux with /healthz and /metrics registered. Feature
// packages add their own routes.
func NewMux(db *sql.DB, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	h := &healthchecker{db: db}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.Handle("GET /metrics", metrics.Handler(gatherer))
	return mux
}

func NewServer(cfg config.Server, logger *slog.Logger, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
