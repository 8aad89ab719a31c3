// Package metrics holds the Prometheus collectors of both binaries. Each
// constructor registers into the registry it is given so tests can use a
// fresh one.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent counts what the telemetry loop does.
type Agent struct {
	Ticks        prometheus.Counter
	SensorErrors prometheus.Counter
	Posts        *prometheus.CounterVec
	PostLatency  prometheus.Histogram
	LinkUp       prometheus.Gauge
	Reconnects   prometheus.Counter
	LastReading  prometheus.Gauge
}

func NewAgent(reg prometheus.Registerer) *Agent {
	m := &Agent{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kneeflex_agent_ticks_total",
			Help: "Loop iterations started.",
		}),
		SensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kneeflex_agent_sensor_errors_total",
			Help: "Sensor reads that failed.",
		}),
		Posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kneeflex_agent_posts_total",
			Help: "POSTs to the ingest endpoint by status code (negative for transport failures).",
		}, []string{"code"}),
		PostLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kneeflex_agent_post_seconds",
			Help:    "Duration of the synchronous POST.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		LinkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kneeflex_agent_link_up",
			Help: "1 while the network link is connected.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kneeflex_agent_reconnects_total",
			Help: "Times the link was found down at tick start.",
		}),
		LastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kneeflex_agent_flex_value",
			Help: "Most recent raw flex value.",
		}),
	}
	reg.MustRegister(m.Ticks, m.SensorErrors, m.Posts, m.PostLatency, m.LinkUp, m.Reconnects, m.LastReading)
	return m
}

// ObservePost records one POST outcome.
func (m *Agent) ObservePost(code int, seconds float64) {
	m.Posts.WithLabelValues(strconv.Itoa(code)).Inc()
	m.PostLatency.Observe(seconds)
}

// SetLink mirrors the link state into the gauge.
func (m *Agent) SetLink(up bool) {
	if up {
		m.LinkUp.Set(1)
		return
	}
	m.LinkUp.Set(0)
}

// Server counts what the ingest endpoint does.
type Server struct {
	Ingested      *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	IngestLatency prometheus.Histogram
}

func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		Ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kneeflex_server_readings_ingested_total",
			Help: "Readings stored, by classification.",
		}, []string{"classification"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kneeflex_server_readings_rejected_total",
			Help: "Requests rejected, by reason.",
		}, []string{"reason"}),
		IngestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kneeflex_server_ingest_seconds",
			Help:    "Time from request decode to stored row.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	reg.MustRegister(m.Ingested, m.Rejected, m.IngestLatency)
	return m
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
