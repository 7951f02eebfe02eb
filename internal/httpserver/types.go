package httpserver

import (
	"encoding/json"
	"time"

	"m2kqa/internal/qa"
)

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id"`
	OutputID    string `json:"output_id"`
}

// SetAnswerRequest is the body for PUT /sessions/{id}/steps/{index}/answer.
// The answer shape follows the question type: a string, a boolean or a list
// of strings.
type SetAnswerRequest struct {
	Answer json.RawMessage `json:"answer"`
}

// SessionResponse is the JSON shape for a single session.
type SessionResponse struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
	ClientCount  int         `json:"client_count"`
	Snapshot     qa.Snapshot `json:"snapshot"`
}

// SessionListResponse wraps a list of sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// ErrorResponse represents an error response. Session operations attach the
// session state as it was after the failure.
type ErrorResponse struct {
	Error    string       `json:"error"`
	Snapshot *qa.Snapshot `json:"snapshot,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Sessions int    `json:"sessions"`
}
