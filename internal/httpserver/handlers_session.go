package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"m2kqa/internal/qa"
	"m2kqa/internal/qasession"
)

// handleCreateSession handles POST /sessions.
// Creates a QA session for a transformation run and fetches its first question.
func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	run := qa.RunID{WorkspaceID: req.WorkspaceID, ProjectID: req.ProjectID, OutputID: req.OutputID}
	if !run.Valid() {
		respondError(w, http.StatusBadRequest, "fields 'workspace_id', 'project_id' and 'output_id' are required")
		return
	}

	entry, err := s.sessions.Start(r.Context(), run)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start session: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, sessionToResponse(entry))
}

// handleListSessions handles GET /sessions.
func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	entries := s.sessions.List()
	resp := SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Sessions = append(resp.Sessions, sessionToResponse(e))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetSession handles GET /sessions/{id}.
func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionToResponse(entry))
}

// handleDeleteSession handles DELETE /sessions/{id}.
// The session is cancelled; the current answer is not submitted.
func (s *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		respondSessionError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleSetAnswer handles PUT /sessions/{id}/steps/{index}/answer.
func (s *HTTPServer) handleSetAnswer(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid step index")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SetAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := entry.SetAnswer(index, req.Answer); err != nil {
		snap := entry.Snapshot()
		respondSessionError(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, sessionToResponse(entry))
}

// handleNext handles POST /sessions/{id}/next.
// Submits the current answer and waits for the next question.
func (s *HTTPServer) handleNext(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := entry.Next(r.Context()); err != nil {
		snap := entry.Snapshot()
		respondSessionError(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, sessionToResponse(entry))
}

// handleSessionWebSocket handles WS /sessions/{id}/ws.
func (s *HTTPServer) handleSessionWebSocket(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	qasession.HandleWebSocket(entry, w, r)
}

// --- helpers ---

// lookup resolves the {id} route variable, answering 404 when unknown.
func (s *HTTPServer) lookup(w http.ResponseWriter, r *http.Request) (*qasession.Entry, bool) {
	id := mux.Vars(r)["id"]
	entry, ok := s.sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return nil, false
	}
	return entry, true
}

// sessionToResponse converts an Entry to the API response type.
func sessionToResponse(e *qasession.Entry) SessionResponse {
	info := e.Info()
	return SessionResponse{
		ID:           info.ID,
		Status:       string(info.Snapshot.Status),
		CreatedAt:    info.CreatedAt,
		LastActiveAt: info.LastActiveAt,
		ClientCount:  info.ClientCount,
		Snapshot:     info.Snapshot,
	}
}
