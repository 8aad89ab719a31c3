package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kneeflexiq/internal/config"
)

func pickFreeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunAgent_PostsUntilCancelled(t *testing.T) {
	var posts atomic.Int32
	var lastBody atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody.Store(string(b))
		posts.Add(1)
		_, _ = io.WriteString(w, `{"classification":"unknown"}`)
	}))
	defer ts.Close()

	cfg := config.Agent{
		DeviceID:          "bench-1",
		EndpointURL:       ts.URL,
		LinkDriver:        config.LinkDriverStatic,
		SensorDriver:      config.SensorDriverSim,
		SensorSimMax:      1023,
		TickInterval:      10 * time.Millisecond,
		ReconnectInterval: 10 * time.Millisecond,
		HTTPTimeout:       time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunAgent(ctx, cfg) }()

	require.Eventually(t, func() bool { return posts.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunAgent did not return after cancel")
	}
	assert.Regexp(t, `^\{"flex_value": \d+\}$`, lastBody.Load())
}

func TestRunAgent_UnknownSensorDriver(t *testing.T) {
	err := RunAgent(context.Background(), config.Agent{
		LinkDriver:   config.LinkDriverStatic,
		SensorDriver: "thermocouple",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sensor driver")
}

func TestRunServer_ServesAndShutsDown(t *testing.T) {
	addr := pickFreeAddr(t)
	cfg := config.Server{
		HTTPAddr:     addr,
		Driver:       "sqlite3",
		Path:         filepath.Join(t.TempDir(), "app.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunServer(ctx, cfg) }()

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/flex", "application/json", strings.NewReader(`{"flex_value": 512}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"classification":"unknown"}`, string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), `kneeflex_server_readings_ingested_total{classification="unknown"} 1`)

	cancel()
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	case <-time.After(15 * time.Second):
		t.Fatal("RunServer did not return after cancel")
	}
	_, err = os.Stat(cfg.Path)
	assert.NoError(t, err, "database file should exist")
}

func TestRunServer_BadModel(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(modelPath, []byte("classes: []\n"), 0o600))

	err := RunServer(context.Background(), config.Server{
		HTTPAddr:  pickFreeAddr(t),
		Driver:    "sqlite3",
		Path:      filepath.Join(t.TempDir(), "app.db"),
		ModelPath: modelPath,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no classes")
}
