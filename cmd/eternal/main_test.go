package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/eternal/internal/config"
	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/telemetry"
)

func writeConfig(t *testing.T, port int) (string, string) {
	t.Helper()
	t.Setenv("ETERNAL_SYNTHESIS__API_KEY", "")
	t.Setenv("PEXELS_API_KEY", "")

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "eternal_archive.json")
	content := fmt.Sprintf(`server:
  port: %d
  shutdown_timeout: 2s
archive:
  backend: file
  path: %s
swarm:
  source: simulated
  simulated_latency: 1ms
`, port, archivePath)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, archivePath
}

func TestNewApp_DegradedWithoutAPIKey(t *testing.T) {
	path, archivePath := writeConfig(t, 5000)
	cfg, err := config.LoadWithFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	require.NoError(t, err)

	a, err := newApp(ctx, cfg, logging.NewNop(), tel)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.runtime.Close(context.Background()) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate",
		strings.NewReader(`{"prompt": "What is Go?", "mode": "powerful"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["diagnostic_report"], "Synthesis failed")
	assert.NotEmpty(t, body["response"])

	// Degraded answers are not archived.
	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	path, _ := writeConfig(t, 5000)
	t.Setenv("ETERNAL_ARCHIVE__BACKEND", "redis")
	t.Setenv("ETERNAL_ARCHIVE__REDIS__ADDR", "127.0.0.1:1")
	cfg, err := config.LoadWithFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	require.NoError(t, err)

	_, err = newApp(ctx, cfg, logging.NewNop(), tel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open redis archive")
}

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	path, _ := writeConfig(t, 18084)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, path)
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://localhost:18084/health")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 3*time.Second, 50*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shutdown in time")
	}
}
