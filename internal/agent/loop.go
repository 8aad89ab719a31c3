// Package agent runs the device's telemetry loop: keep the link up, read the
// flex sensor, post the value, log what came back.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kneeflexiq/internal/link"
	"kneeflexiq/internal/metrics"
	"kneeflexiq/internal/sensor"
	"kneeflexiq/internal/types"
	"kneeflexiq/internal/uplink"
)

// Poster sends one reading and reports the outcome as a status code.
type Poster interface {
	Post(ctx context.Context, r types.FlexReading) uplink.Result
}

// Mirror is an optional side channel for readings and link state.
type Mirror interface {
	PublishReading(value int, at time.Time) error
	PublishLinkHealth(connected bool, at time.Time) error
}

type Options struct {
	ReconnectInterval time.Duration
	TickInterval      time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Agent
	Mirror  Mirror
}

// Loop owns the link, the sensor and the poster for the lifetime of the
// process. It keeps no state between ticks.
type Loop struct {
	link   link.Link
	sensor sensor.Sensor
	poster Poster

	reconnectInterval time.Duration
	tickInterval      time.Duration

	logger  *slog.Logger
	metrics *metrics.Agent
	mirror  Mirror
}

func New(l link.Link, s sensor.Sensor, p Poster, opts Options) *Loop {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		link:              l,
		sensor:            s,
		poster:            p,
		reconnectInterval: opts.ReconnectInterval,
		tickInterval:      opts.TickInterval,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		mirror:            opts.Mirror,
	}
}

// Initialize blocks until the link reports connected. There is no retry
// limit; only ctx ends the wait early.
func (l *Loop) Initialize(ctx context.Context) error {
	return l.connect(ctx)
}

// Run initializes and then ticks every TickInterval until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Initialize(ctx); err != nil {
		return err
	}
	for {
		if err := l.Tick(ctx); err != nil {
			return err
		}
		if err := sleep(ctx, l.tickInterval); err != nil {
			return err
		}
	}
}

// Tick performs one iteration. Request failures are logged, never returned:
// the next tick is the retry. The only error is ctx's.
func (l *Loop) Tick(ctx context.Context) error {
	if l.metrics != nil {
		l.metrics.Ticks.Inc()
	}

	if l.link.Status() != link.Connected {
		l.logger.Warn("WiFi disconnected, attempting to reconnect...")
		l.linkChanged(false)
		if l.metrics != nil {
			l.metrics.Reconnects.Inc()
		}
		if err := l.connect(ctx); err != nil {
			return err
		}
	}

	value, err := l.sensor.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("sensor read failed", "error", err)
		if l.metrics != nil {
			l.metrics.SensorErrors.Inc()
		}
		return nil
	}
	l.logger.Info(fmt.Sprintf("Flex Value: %d", value), "flex_value", value)
	if l.metrics != nil {
		l.metrics.LastReading.Set(float64(value))
	}

	// The link can drop during the read; the POST only goes out on a live link.
	if l.link.Status() != link.Connected {
		l.logger.Debug("link down after read, skipping post", "flex_value", value)
		return nil
	}

	start := time.Now()
	res := l.poster.Post(ctx, types.FlexReading{FlexValue: value})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if l.metrics != nil {
		l.metrics.ObservePost(res.StatusCode, time.Since(start).Seconds())
	}

	if res.OK() {
		l.logger.Info("Response: "+res.Body, "status", res.StatusCode)
	} else {
		attrs := []any{"status", res.StatusCode}
		if res.Err != nil {
			attrs = append(attrs, "error", res.Err)
		}
		l.logger.Warn(fmt.Sprintf("HTTP Error: %d", res.StatusCode), attrs...)
	}

	if l.mirror != nil {
		if err := l.mirror.PublishReading(value, start); err != nil {
			l.logger.Debug("mirror reading failed", "error", err)
		}
	}
	return nil
}

func (l *Loop) connect(ctx context.Context) error {
	if err := l.link.Begin(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("link begin failed; waiting for association anyway", "error", err)
	}

	for l.link.Status() != link.Connected {
		if err := sleep(ctx, l.reconnectInterval); err != nil {
			return err
		}
		l.logger.Info("Connecting to WiFi...")
	}

	l.logger.Info("Connected to WiFi")
	l.linkChanged(true)
	return nil
}

func (l *Loop) linkChanged(up bool) {
	if l.metrics != nil {
		l.metrics.SetLink(up)
	}
	if l.mirror != nil {
		if err := l.mirror.PublishLinkHealth(up, time.Now()); err != nil {
			l.logger.Debug("mirror link health failed", "connected", up, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
