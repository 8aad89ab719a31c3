package ingest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"kneeflexiq/internal/metrics"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, classifier Classifier, m *metrics.Server, logger *slog.Logger) {
	repository := NewRepository(db)
	controller := NewController(repository, classifier, m, logger)
	controller.RegisterRoutes(mux)
}
