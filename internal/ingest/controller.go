package ingest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"kneeflexiq/internal/httpapi"
	"kneeflexiq/internal/metrics"
)

const (
	defaultLatestLimit = 20
	maxLatestLimit     = 500
	maxBodyBytes       = 1 << 16
)

const (
	errMissingFlexValue = "Missing 'flex_value' in event"
	errNotANumber       = "flex_value must be a number"
	errInvalidBody      = "request body must be a JSON object"
)

// Classifier labels a flex value.
type Classifier interface {
	Classify(v float64) (string, error)
}

type Controller struct {
	repository Repository
	classifier Classifier
	metrics    *metrics.Server
	logger     *slog.Logger
	now        func() time.Time
}

func NewController(repository Repository, classifier Classifier, m *metrics.Server, logger *slog.Logger) *Controller {
	return &Controller{
		repository: repository,
		classifier: classifier,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /flex", c.handleIngest)
	mux.HandleFunc("GET /api/readings/latest", c.handleLatest)
	mux.HandleFunc("GET /api/readings/summary", c.handleSummary)
}

func (c *Controller) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := c.now()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		c.reject(w, "body_read", errInvalidBody)
		return
	}
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil || event == nil {
		c.reject(w, "invalid_json", errInvalidBody)
		return
	}
	c.logger.Debug("received event", "event", string(raw))

	field, ok := event["flex_value"]
	if !ok {
		c.reject(w, "missing_flex_value", errMissingFlexValue)
		return
	}
	flexValue, ok := field.(float64)
	if !ok {
		c.reject(w, "not_a_number", errNotANumber)
		return
	}

	label, err := c.classifier.Classify(flexValue)
	if err != nil {
		c.logger.Error("classification failed", "flex_value", flexValue, "error", err)
		c.metrics.Rejected.WithLabelValues("classifier").Inc()
		httpapi.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := c.repository.InsertReading(r.Context(), start, flexValue, label); err != nil {
		c.logger.Error("store reading failed", "error", err)
		c.metrics.Rejected.WithLabelValues("storage").Inc()
		httpapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.metrics.Ingested.WithLabelValues(label).Inc()
	c.metrics.IngestLatency.Observe(c.now().Sub(start).Seconds())
	c.logger.Info("reading classified", "flex_value", flexValue, "classification", label)
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"classification": label})
}

func (c *Controller) reject(w http.ResponseWriter, reason, msg string) {
	c.logger.Warn("input validation error", "reason", reason, "error", msg)
	c.metrics.Rejected.WithLabelValues(reason).Inc()
	httpapi.WriteError(w, http.StatusBadRequest, msg)
}

func (c *Controller) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.repository.GetLatestReadings(r.Context(), limit)
	if err != nil {
		c.logger.Error("latest readings failed", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, readings)
}

func (c *Controller) handleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := c.repository.GetClassificationCounts(r.Context())
	if err != nil {
		c.logger.Error("classification summary failed", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, counts)
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLatestLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxLatestLimit {
		return 0, errors.New("'limit' must be <= 500")
	}
	return n, nil
}
