package http

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

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/eternal/internal/archive"
	"github.com/fyrsmithlabs/eternal/internal/enrich"
	"github.com/fyrsmithlabs/eternal/internal/gatekeeper"
	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/orchestrator"
	"github.com/fyrsmithlabs/eternal/internal/swarm"
	"github.com/fyrsmithlabs/eternal/internal/synthesis"
)

type fakeHandler struct {
	got  orchestrator.Request
	resp orchestrator.Response
	err  error
}

func (f *fakeHandler) Handle(_ context.Context, req orchestrator.Request) (orchestrator.Response, error) {
	f.got = req
	return f.resp, f.err
}

type fakeAdmin struct {
	stats  archive.Stats
	report archive.VerifyReport
	err    error
}

func (f fakeAdmin) Stats(context.Context) (archive.Stats, error) { return f.stats, f.err }

func (f fakeAdmin) Verify(context.Context) (archive.VerifyReport, error) { return f.report, f.err }

func setupTestServer(t *testing.T, h Handler, admin ArchiveAdmin, cfg *Config) *Server {
	t.Helper()
	server, err := NewServer(h, admin, logging.NewNop(), cfg)
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&fakeHandler{}, fakeAdmin{}, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 5000, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&fakeHandler{}, fakeAdmin{}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when handler is nil", func(t *testing.T) {
		_, err := NewServer(nil, fakeAdmin{}, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler cannot be nil")
	})

	t.Run("returns error when admin is nil", func(t *testing.T) {
		_, err := NewServer(&fakeHandler{}, nil, logging.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleIndexAndHealth(t *testing.T) {
	server := setupTestServer(t, &fakeHandler{}, fakeAdmin{}, nil)

	rec := doJSON(t, server, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"Welcome to the Integrated Intelligence Platform API!"}`, rec.Body.String())

	rec = doJSON(t, server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleGenerate(t *testing.T) {
	image := "https://img/x.jpg"

	t.Run("structured answer", func(t *testing.T) {
		h := &fakeHandler{resp: orchestrator.Response{
			Answer:           orchestrator.Answer{Text: "answer", ImageURL: &image},
			ModelUsed:        orchestrator.ModelPowerful,
			DiagnosticReport: "Live generation via swarm (6/6 sources, mixed_sources).",
		}}
		server := setupTestServer(t, h, fakeAdmin{}, nil)

		rec := doJSON(t, server, http.MethodPost, "/api/v1/generate",
			`{"prompt":"What is Go?","mode":"own_system","preferences":{"source":"web"},"custom_api_key":"k"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"status": "success",
			"response": {"text": "answer", "image_url": "https://img/x.jpg"},
			"model_used": "Powerful AI (Live Synthesis)",
			"diagnostic_report": "Live generation via swarm (6/6 sources, mixed_sources)."
		}`, rec.Body.String())

		assert.Equal(t, "What is Go?", h.got.Prompt)
		assert.Equal(t, orchestrator.ModeOwnSystem, h.got.Mode)
		assert.Equal(t, "web", h.got.Preferences.SourceName())
		assert.Equal(t, "k", h.got.CustomAPIKey)
	})

	t.Run("plain answer", func(t *testing.T) {
		h := &fakeHandler{resp: orchestrator.Response{
			Answer:    orchestrator.Answer{Text: orchestrator.RefusalMessage, Plain: true},
			ModelUsed: orchestrator.ModelBlocked,
		}}
		server := setupTestServer(t, h, fakeAdmin{}, nil)

		rec := doJSON(t, server, http.MethodPost, "/api/generate", `{"prompt":"x"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, orchestrator.RefusalMessage, body["response"])
		assert.Equal(t, orchestrator.ModePowerful, h.got.Mode)
	})

	t.Run("missing prompt", func(t *testing.T) {
		server := setupTestServer(t, &fakeHandler{}, fakeAdmin{}, nil)
		for _, body := range []string{`{}`, `{"prompt":""}`, `{"mode":"powerful"}`} {
			rec := doJSON(t, server, http.MethodPost, "/api/v1/generate", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.JSONEq(t, `{"status":"error","message":"Missing 'prompt' in request body"}`, rec.Body.String())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := setupTestServer(t, &fakeHandler{}, fakeAdmin{}, nil)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/generate", `{"prompt":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blank prompt rejected by handler", func(t *testing.T) {
		server := setupTestServer(t, &fakeHandler{err: orchestrator.ErrEmptyPrompt}, fakeAdmin{}, nil)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/generate", `{"prompt":"   "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("persistence failure", func(t *testing.T) {
		h := &fakeHandler{err: fmt.Errorf("archive answer: %w", archive.ErrPersistence)}
		server := setupTestServer(t, h, fakeAdmin{}, nil)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/generate", `{"prompt":"x"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body StatusMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, StatusError, body.Status)
		assert.Contains(t, body.Error, "archive persistence failure")
	})
}

func TestHandleArchiveAdmin(t *testing.T) {
	admin := fakeAdmin{
		stats:  archive.Stats{Entries: 2, TotalAccesses: 5, Backend: "file"},
		report: archive.VerifyReport{Valid: true, HasDigest: true, Entries: 2, StoredHash: "abc", ActualHash: "abc"},
	}
	server := setupTestServer(t, &fakeHandler{}, admin, nil)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/archive/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats archive.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 5, stats.TotalAccesses)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/archive/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report archive.VerifyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Valid)

	failing := setupTestServer(t, &fakeHandler{}, fakeAdmin{err: errors.New("redis down")}, nil)
	rec = doJSON(t, failing, http.MethodGet, "/api/v1/archive/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	rec = doJSON(t, failing, http.MethodGet, "/api/v1/archive/verify", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlePlaceholderGraph(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		server := setupTestServer(t, &fakeHandler{}, fakeAdmin{}, nil)
		rec := doJSON(t, server, http.MethodGet, enrich.PlaceholderGraphURL, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, placeholderGraph, rec.Body.Bytes())
	})

	t.Run("static dir override", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, enrich.PlaceholderGraphFile), []byte("custom"), 0o600))
		server := setupTestServer(t, &fakeHandler{}, fakeAdmin{}, &Config{StaticDir: dir})
		rec := doJSON(t, server, http.MethodGet, enrich.PlaceholderGraphURL, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "custom", rec.Body.String())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t, &fakeHandler{}, fakeAdmin{}, nil)
	rec := doJSON(t, server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type stubSynth struct{}

func (stubSynth) Complete(context.Context, string) (string, error) { return "live answer", nil }

func TestGenerate_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := archive.NewFileStore(filepath.Join(t.TempDir(), "archive.json"))
	require.NoError(t, err)

	rt, err := orchestrator.NewRuntime(ctx, orchestrator.Deps{
		Archive:        store,
		Dispatcher:     swarm.NewDispatcher(swarm.NewSimulatedSource(0)),
		Gatekeeper:     gatekeeper.New(gatekeeper.Config{}),
		NewSynthesizer: func() (synthesis.Synthesizer, error) { return stubSynth{}, nil },
	})
	require.NoError(t, err)
	defer rt.Close(ctx)

	server := setupTestServer(t, rt, store, nil)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/generate", `{"prompt":"What is OpenAI?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, orchestrator.ModelPowerful, first["model_used"])
	assert.Equal(t, map[string]any{"text": "live answer", "image_url": nil}, first["response"])

	rec = doJSON(t, server, http.MethodPost, "/api/v1/generate", `{"prompt":"What is OpenAI?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"model_used":"Eternal Archive (Local)"`)
	assert.Contains(t, rec.Body.String(), `"text":"live answer"`)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/archive/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":1`)
	assert.Contains(t, rec.Body.String(), `"total_accesses":2`)
}
