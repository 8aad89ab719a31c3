package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kneeflexiq/internal/classify"
	"kneeflexiq/internal/config"
	"kneeflexiq/internal/db"
	"kneeflexiq/internal/httpapi"
	"kneeflexiq/internal/ingest"
	"kneeflexiq/internal/metrics"
	"kneeflexiq/internal/migrate"
)

// RunServer serves the ingest API until ctx is done, then shuts down
// gracefully.
func RunServer(ctx context.Context, cfg config.Server) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"modelPath", cfg.ModelPath,
	)

	dbConn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn); err != nil {
		return err
	}

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	slog.Info("database connection successful")

	var model *classify.Model
	if cfg.ModelPath != "" {
		model, err = classify.Load(cfg.ModelPath)
		if err != nil {
			return err
		}
		slog.Info("model loaded", "path", cfg.ModelPath, "classes", len(model.Classes))
	} else {
		slog.Warn("no model configured; every reading is labeled " + classify.Unknown)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := httpapi.NewMux(dbConn, reg)
	ingest.RegisterFeature(mux, dbConn, model, metrics.NewServer(reg), slog.Default())

	srv := httpapi.NewServer(cfg, slog.Default(), mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
