package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kneeflexiq/internal/agent"
	"kneeflexiq/internal/config"
	"kneeflexiq/internal/link"
	"kneeflexiq/internal/metrics"
	"kneeflexiq/internal/mqtt"
	"kneeflexiq/internal/sensor"
	"kneeflexiq/internal/uplink"
)

// RunAgent wires the telemetry loop and blocks until ctx is done.
func RunAgent(ctx context.Context, cfg config.Agent) error {
	slog.Info("config loaded",
		"deviceID", cfg.DeviceID,
		"endpointURL", cfg.EndpointURL,
		"linkDriver", cfg.LinkDriver,
		"linkInterface", cfg.LinkInterface,
		"sensorDriver", cfg.SensorDriver,
		"tickInterval", cfg.TickInterval,
		"reconnectInterval", cfg.ReconnectInterval,
		"httpTimeout", cfg.HTTPTimeout,
		"mqttBroker", cfg.MQTTBroker,
		"metricsAddr", cfg.MetricsAddr,
	)

	lnk, err := link.Open(cfg)
	if err != nil {
		return err
	}

	s, err := sensor.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Error("sensor close", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewAgent(reg)

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg)
		defer stop()
	}

	var mirror agent.Mirror
	if cfg.MQTTEnabled() {
		mqttClient := mqtt.NewClient(cfg, slog.Default())
		go func() {
			if err := mqttClient.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("mqtt connect failed (continuing without mirror)", "error", err)
			}
		}()
		defer mqttClient.Disconnect()
		mirror = mqttClient
	}

	loop := agent.New(lnk, s, uplink.NewClient(cfg.EndpointURL, cfg.HTTPTimeout), agent.Options{
		ReconnectInterval: cfg.ReconnectInterval,
		TickInterval:      cfg.TickInterval,
		Logger:            slog.Default(),
		Metrics:           m,
		Mirror:            mirror,
	})
	return loop.Run(ctx)
}

func serveMetrics(addr string, g prometheus.Gatherer) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("metrics shutdown", "error", err)
		}
	}
}
