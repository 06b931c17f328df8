package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	askMode, askSource, askAPIKey, askRaw = "powerful", "", "", false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"ask", "stats", "verify", "health"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestAsk(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","response":{"text":"Go is a language.","image_url":"https://img/x.jpg"},"model_used":"Powerful AI (Live Synthesis)","diagnostic_report":"Live generation via swarm (6/6 sources, mixed)."}`))
	}))
	defer srv.Close()

	stdout, stderr, err := execute(t, srv, "ask", "--source", "web", "--api-key", "k", "What", "is", "Go?")
	require.NoError(t, err)

	assert.Equal(t, "What is Go?", got.Prompt)
	assert.Equal(t, "powerful", got.Mode)
	assert.Equal(t, "web", got.Preferences["source"])
	assert.Equal(t, "k", got.CustomAPIKey)

	assert.Contains(t, stdout, "Go is a language.")
	assert.Contains(t, stdout, "Image: https://img/x.jpg")
	assert.Contains(t, stderr, "[Powerful AI (Live Synthesis)]")
}

func TestAsk_PlainAnswerAndRaw(t *testing.T) {
	body := `{"status":"success","response":"From the archive.","model_used":"Eternal Archive (Local)","diagnostic_report":"Fast retrieval from archive."}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	stdout, _, err := execute(t, srv, "ask", "--mode", "own_system", "hello")
	require.NoError(t, err)
	assert.Equal(t, "From the archive.\n", stdout)

	stdout, _, err = execute(t, srv, "ask", "--json", "hello")
	require.NoError(t, err)
	assert.JSONEq(t, body, stdout)
}

func TestAsk_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"The archive could not be updated.","error":"disk full"}`))
	}))
	defer srv.Close()

	_, _, err := execute(t, srv, "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "disk full")
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/archive/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"entries":3,"total_accesses":7,"last_updated":"2025-01-02T03:04:05Z","backend":"file"}`))
	}))
	defer srv.Close()

	stdout, _, err := execute(t, srv, "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backend:        file")
	assert.Contains(t, stdout, "Entries:        3")
	assert.Contains(t, stdout, "Total accesses: 7")
	assert.Contains(t, stdout, "2025-01-02T03:04:05Z")
}

func TestVerify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"valid":true,"has_digest":true,"entries":2,"stored_hash":"abc","actual_hash":"abc"}`))
		}))
		defer srv.Close()

		stdout, _, err := execute(t, srv, "verify")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Integrity:   OK")
	})

	t.Run("tampered", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"valid":false,"has_digest":true,"entries":2,"stored_hash":"abc","actual_hash":"def"}`))
		}))
		defer srv.Close()

		stdout, _, err := execute(t, srv, "verify")
		require.Error(t, err)
		assert.Contains(t, stdout, "Actual hash: def")
	})
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	stdout, _, err := execute(t, srv, "health")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Server Status: ok")
}

func TestDecodeAnswer(t *testing.T) {
	text, image, err := decodeAnswer(json.RawMessage(`"plain"`))
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
	assert.Empty(t, image)

	text, image, err = decodeAnswer(json.RawMessage(`{"text":"t","image_url":null}`))
	require.NoError(t, err)
	assert.Equal(t, "t", text)
	assert.Empty(t, image)

	_, _, err = decodeAnswer(json.RawMessage(`[1]`))
	assert.Error(t, err)
}
