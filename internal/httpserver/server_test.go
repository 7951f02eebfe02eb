package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"m2kqa/internal/qa"
	"m2kqa/internal/qasession"
)

// fakeBackend serves questions in order.
type fakeBackend struct {
	mu        sync.Mutex
	questions []*qa.Question
	answers   []qa.Answer
	pollErr   error
}

func (b *fakeBackend) SubmitSolution(ctx context.Context, run qa.RunID, q *qa.Question) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, q.Answer)
	b.questions = b.questions[1:]
	return nil
}

func (b *fakeBackend) CurrentQuestion(ctx context.Context, run qa.RunID) (*qa.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pollErr != nil {
		return nil, b.pollErr
	}
	if len(b.questions) == 0 {
		return nil, nil
	}
	return b.questions[0].Clone(), nil
}

func newTestServer(b *fakeBackend, tokens ...string) *HTTPServer {
	return NewHTTPServer(Options{
		Tokens:   tokens,
		Version:  "test",
		Sessions: qasession.NewManager(b, qa.Options{PollRetries: -1}),
	})
}

// do sends an authenticated request to the server's router.
func do(t *testing.T, s *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, r)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

// TestHealthEndpoint tests the /health endpoint
func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeBackend{}, "test-token")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("Unexpected health response %+v", resp)
	}
}

// TestAuthMiddleware tests Bearer token authentication
func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		tokens         []string
		remoteAddr     string
		authHeader     string
		expectedStatus int
	}{
		{"Valid token", []string{"valid-token"}, "", "Bearer valid-token", http.StatusOK},
		{"Invalid token", []string{"valid-token"}, "", "Bearer invalid-token", http.StatusUnauthorized},
		{"Missing auth header", []string{"valid-token"}, "", "", http.StatusUnauthorized},
		{"Invalid format", []string{"valid-token"}, "", "InvalidFormat", http.StatusUnauthorized},
		{"No tokens, remote client", nil, "192.0.2.1:1234", "", http.StatusUnauthorized},
		{"No tokens, loopback client", nil, "127.0.0.1:5555", "", http.StatusOK},
		{"No tokens, IPv6 loopback", nil, "[::1]:5555", "", http.StatusOK},
	}

	// Create a test handler that returns 200 if auth passes
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewHTTPServer(Options{Tokens: tt.tokens})
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			server.authMiddleware(testHandler)(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

// TestJSONContentTypeMiddleware tests JSON Content-Type validation
func TestJSONContentTypeMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		contentType    string
		expectedStatus int
	}{
		{"POST with JSON", http.MethodPost, "application/json", http.StatusOK},
		{"POST without Content-Type", http.MethodPost, "", http.StatusUnsupportedMediaType},
		{"PUT with wrong Content-Type", http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
		{"GET without Content-Type", http.MethodGet, "", http.StatusOK},
	}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := httptest.NewRecorder()
			jsonContentTypeMiddleware(testHandler)(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

// TestMethodNotAllowed tests that endpoints reject wrong HTTP methods
func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(&fakeBackend{}, "test-token")

	tests := []struct {
		path   string
		method string
	}{
		{"/health", http.MethodPost},
		{"/sessions", http.MethodPut},
		{"/sessions/abc/next", http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.path+"_"+tt.method, func(t *testing.T) {
			w := do(t, server, tt.method, tt.path, "")
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected status 405, got %d", w.Code)
			}
		})
	}
}

func TestSessionFlow(t *testing.T) {
	b := &fakeBackend{questions: []*qa.Question{
		{ID: "move2kube.services", Kind: qa.KindMultiSelect, Options: []string{"api", "web"}},
		{ID: "move2kube.registry", Kind: qa.KindSelect, Options: []string{"quay.io", "docker.io"}, Default: qa.SelectAnswer("quay.io")},
	}}
	server := newTestServer(b, "test-token")

	w := do(t, server, http.MethodPost, "/sessions", `{"workspace_id":"w","project_id":"p","output_id":"o"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created := decodeSession(t, w)
	if created.Status != string(qa.StatusAwaitingAnswer) || created.Snapshot.Current != 0 {
		t.Fatalf("created = %+v", created)
	}
	base := "/sessions/" + created.ID

	w = do(t, server, http.MethodPut, base+"/steps/0/answer", `{"answer":["web"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("answer: %d %s", w.Code, w.Body.String())
	}
	w = do(t, server, http.MethodPost, base+"/next", "")
	if w.Code != http.StatusOK {
		t.Fatalf("next: %d %s", w.Code, w.Body.String())
	}
	if got := decodeSession(t, w); got.Snapshot.Current != 1 {
		t.Fatalf("current = %d", got.Snapshot.Current)
	}

	w = do(t, server, http.MethodPut, base+"/steps/0/answer", `{"answer":["api"]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("stale step: %d", w.Code)
	}
	w = do(t, server, http.MethodPut, base+"/steps/1/answer", `{"answer":"ghcr.io"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad option: %d", w.Code)
	}

	w = do(t, server, http.MethodPost, base+"/next", "")
	if got := decodeSession(t, w); got.Status != string(qa.StatusCompleted) {
		t.Fatalf("status = %s", got.Status)
	}
	w = do(t, server, http.MethodPost, base+"/next", "")
	if w.Code != http.StatusGone {
		t.Errorf("next after completion: %d", w.Code)
	}

	w = do(t, server, http.MethodGet, "/sessions", "")
	var list SessionListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil || len(list.Sessions) != 1 {
		t.Fatalf("list = %+v, err %v", list, err)
	}

	if w = do(t, server, http.MethodDelete, base, ""); w.Code != http.StatusOK {
		t.Errorf("delete: %d", w.Code)
	}
	if w = do(t, server, http.MethodGet, base, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", w.Code)
	}
	if w = do(t, server, http.MethodDelete, base, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: %d", w.Code)
	}

	if len(b.answers) != 2 || b.answers[1] != qa.SelectAnswer("quay.io") {
		t.Errorf("answers = %v", b.answers)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	server := newTestServer(&fakeBackend{}, "test-token")
	tests := []struct {
		name string
		body string
	}{
		{"Invalid JSON", "not json"},
		{"Missing output", `{"workspace_id":"w","project_id":"p"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, http.MethodPost, "/sessions", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestNextBackendErrorCarriesSnapshot(t *testing.T) {
	b := &fakeBackend{pollErr: errors.New("dial tcp: connection refused")}
	server := newTestServer(b, "test-token")
	w := do(t, server, http.MethodPost, "/sessions", `{"workspace_id":"w","project_id":"p","output_id":"o"}`)
	id := decodeSession(t, w).ID

	w = do(t, server, http.MethodPost, "/sessions/"+id+"/next", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Snapshot == nil || resp.Snapshot.Status != qa.StatusStarted {
		t.Errorf("snapshot = %+v", resp.Snapshot)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{qasession.ErrNotFound, http.StatusNotFound},
		{qa.ErrBusy, http.StatusConflict},
		{qa.ErrStepSealed, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", qa.ErrClosed), http.StatusGone},
		{qa.ErrStaleStep, http.StatusBadRequest},
		{qa.ErrAnswerShape, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{qa.ErrRejected, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSessionWebSocket(t *testing.T) {
	b := &fakeBackend{questions: []*qa.Question{{ID: "q", Kind: qa.KindConfirm}}}
	server := newTestServer(b, "test-token")
	w := do(t, server, http.MethodPost, "/sessions", `{"workspace_id":"w","project_id":"p","output_id":"o"}`)
	id := decodeSession(t, w).ID

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + id + "/ws"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without token succeeded")
	}
	header := http.Header{"Authorization": []string{"Bearer test-token"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame struct {
		Type     string      `json:"type"`
		Snapshot qa.Snapshot `json:"snapshot"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "snapshot" || frame.Snapshot.Status != qa.StatusAwaitingAnswer {
		t.Errorf("first frame = %+v", frame)
	}
}

func TestSessionWebSocketOrigin(t *testing.T) {
	b := &fakeBackend{questions: []*qa.Question{{ID: "q", Kind: qa.KindConfirm}}}
	server := newTestServer(b)
	entry, err := server.sessions.Start(context.Background(), qa.RunID{WorkspaceID: "w", ProjectID: "p", OutputID: "o"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + entry.ID + "/ws"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"same origin", ts.URL, true},
		{"foreign page", "http://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("dial from a foreign origin succeeded")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func TestWatchTokensReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	server := NewHTTPServer(Options{Tokens: []string{"old"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.WatchTokens(ctx, path, func() ([]string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return []string{string(bytes.TrimSpace(data))}, nil
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		// Keep writing until the watcher is up and has seen a change.
		if err := os.WriteFile(path, []byte("new\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(200 * time.Millisecond)
		if tokens := server.currentTokens(); len(tokens) == 1 && tokens[0] == "new" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tokens = %v, want [new]", server.currentTokens())
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("WatchTokens = %v", err)
	}
}
