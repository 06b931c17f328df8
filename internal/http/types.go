package http

import (
	"github.com/fyrsmithlabs/eternal/internal/orchestrator"
	"github.com/fyrsmithlabs/eternal/internal/swarm"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	missingPrompt = "Missing 'prompt' in request body"
)

// GenerateRequest is the request body for POST /api/v1/generate.
type GenerateRequest struct {
	Prompt       *string           `json:"prompt"`
	Mode         string            `json:"mode"`
	Preferences  swarm.Preferences `json:"preferences"`
	CustomAPIKey string            `json:"custom_api_key"`
}

// GenerateResponse is the response body for POST /api/v1/generate.
type GenerateResponse struct {
	Status           string              `json:"status"`
	Response         orchestrator.Answer `json:"response"`
	ModelUsed        string              `json:"model_used"`
	DiagnosticReport string              `json:"diagnostic_report"`
}

// StatusMessage is the body of the index route and of error responses.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
