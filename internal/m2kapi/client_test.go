package m2kapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"m2kqa/internal/qa"
)

var testRun = qa.RunID{WorkspaceID: "ws", ProjectID: "proj", OutputID: "out"}

const problemsPath = "/api/v1/workspaces/ws/projects/proj/outputs/out/problems/current"

// fakeM2K serves a scripted list of problems on the QA endpoints.
type fakeM2K struct {
	mu        sync.Mutex
	problems  []string // JSON documents, served in order
	notReady  int      // 204 responses to send before each problem
	pending   int
	solutions []map[string]any
	status    int // forced status for every request when non-zero
}

func (f *fakeM2K) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(problemsPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		if f.pending > 0 {
			f.pending--
			w.WriteHeader(http.StatusNoContent)
			return
		}
		q := ""
		if len(f.problems) > 0 {
			q = f.problems[0]
		}
		json.NewEncoder(w).Encode(currentProblemResponse{Question: q})
	})
	mux.HandleFunc(problemsPath+"/solution", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req solutionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode solution: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(req.Solution), &doc); err != nil {
			t.Errorf("solution is not a JSON document: %v", err)
		}
		f.solutions = append(f.solutions, doc)
		f.problems = f.problems[1:]
		f.pending = f.notReady
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, h http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Token: token})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCurrentQuestionDecodesProblem(t *testing.T) {
	f := &fakeM2K{problems: []string{
		`{"id":"move2kube.services.names","type":"MultiSelect","description":"Select services","hints":["all"],"options":["api","web"],"default":["api","web"]}`,
	}}
	c := newTestClient(t, f.handler(t), "secret")

	q, err := c.CurrentQuestion(context.Background(), testRun)
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if q.ID != "move2kube.services.names" || q.Kind != qa.KindMultiSelect {
		t.Errorf("question = %s/%v", q.ID, q.Kind)
	}
	if len(q.Options) != 2 || len(q.Hints) != 1 {
		t.Errorf("options = %v hints = %v", q.Options, q.Hints)
	}
}

func TestCurrentQuestionConditions(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		wantNil bool
	}{
		{
			name:    "no content is not ready",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
			wantErr: qa.ErrNotReady,
		},
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantErr: qa.ErrUnauthorized,
		},
		{
			name:    "server error is rejected",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
			wantErr: qa.ErrRejected,
		},
		{
			name: "empty question means done",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"question":""}`))
			},
			wantNil: true,
		},
		{
			name: "unknown type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(currentProblemResponse{Question: `{"id":"a","type":"Slider"}`})
			},
			wantErr: qa.ErrUnknownKind,
		},
		{
			name: "garbage question",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(currentProblemResponse{Question: `{not json`})
			},
			wantErr: qa.ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, "")
			q, err := c.CurrentQuestion(context.Background(), testRun)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if tt.wantNil && q != nil {
				t.Errorf("q = %+v, want nil", q)
			}
		})
	}
}

func TestSessionAgainstServer(t *testing.T) {
	f := &fakeM2K{
		problems: []string{
			`{"id":"q.confirm","type":"Confirm","description":"Proceed?"}`,
			`{"id":"q.select","type":"Select","description":"Pick","options":["A","B"],"default":"A"}`,
		},
		notReady: 2,
	}
	c := newTestClient(t, f.handler(t), "secret")
	s := qa.NewSession(c, qa.Options{Sleep: func(ctx context.Context, d time.Duration) error { return nil }})
	if err := s.Bind(testRun); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := s.Advance(ctx); err != nil {
		t.Fatalf("advance 1: %v", err)
	}
	if err := s.Advance(ctx); err != nil {
		t.Fatalf("advance 2: %v", err)
	}
	if err := s.SetAnswer(1, qa.SelectAnswer("B")); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(ctx); err != nil {
		t.Fatalf("advance 3: %v", err)
	}
	if s.Status() != qa.StatusCompleted {
		t.Fatalf("status = %s", s.Status())
	}
	if len(f.solutions) != 2 {
		t.Fatalf("solutions = %d", len(f.solutions))
	}
	if f.solutions[0]["answer"] != false {
		t.Errorf("confirm answer = %v", f.solutions[0]["answer"])
	}
	if f.solutions[1]["answer"] != "B" {
		t.Errorf("select answer = %v", f.solutions[1]["answer"])
	}
}

func TestSessionUnauthorizedAgainstServer(t *testing.T) {
	f := &fakeM2K{problems: []string{`{"id":"q","type":"Input"}`}}
	c := newTestClient(t, f.handler(t), "wrong")
	s := qa.NewSession(c, qa.Options{})
	if err := s.Bind(testRun); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(context.Background()); !errors.Is(err, qa.ErrUnauthorized) {
		t.Fatalf("Advance = %v", err)
	}
	if snap := s.Snapshot(); snap.Reason != qa.ReasonUnauthorized {
		t.Errorf("reason = %s", snap.Reason)
	}
}

func TestStartWaitDownload(t *testing.T) {
	var polls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/workspaces/ws/projects/proj/outputs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-yaml" {
			t.Errorf("content type = %q", ct)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"out"}`))
	})
	mux.HandleFunc("/api/v1/workspaces/ws/projects/proj", func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := OutputTransforming
		if polls > 1 {
			status = OutputDone
		}
		json.NewEncoder(w).Encode(Project{ID: "proj", Outputs: map[string]ProjectOutput{"out": {ID: "out", Status: status}}})
	})
	mux.HandleFunc("/api/v1/workspaces/ws/projects/proj/outputs/out", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK-archive"))
	})
	c := newTestClient(t, mux, "")
	ctx := context.Background()

	if _, err := c.StartTransformation(ctx, "ws", "proj", []byte("a: [b")); err == nil {
		t.Error("expected invalid plan to be rejected")
	}
	run, err := c.StartTransformation(ctx, "ws", "proj", []byte("apiVersion: move2kube.konveyor.io/v1alpha1\nkind: Plan\n"))
	if err != nil {
		t.Fatalf("StartTransformation: %v", err)
	}
	if run != testRun {
		t.Errorf("run = %v", run)
	}
	if err := c.WaitOutput(ctx, run, time.Millisecond); err != nil {
		t.Fatalf("WaitOutput: %v", err)
	}
	var buf bytes.Buffer
	n, err := c.DownloadOutput(ctx, run, &buf)
	if err != nil {
		t.Fatalf("DownloadOutput: %v", err)
	}
	if n != int64(len("PK-archive")) || buf.String() != "PK-archive" {
		t.Errorf("downloaded %d bytes: %q", n, buf.String())
	}
}

func TestServerVersion(t *testing.T) {
	tests := []struct {
		body    string
		min     string
		want    string
		wantErr bool
	}{
		{body: `{"version":"v0.3.10"}`, min: "v0.3.0", want: "v0.3.10"},
		{body: "version: v0.2.1\ngitCommit: abc\n", min: "v0.3.0", want: "v0.2.1", wantErr: true},
		{body: "v1.0.0\n", want: "v1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/api/v1/version") {
					http.NotFound(w, r)
					return
				}
				w.Write([]byte(tt.body))
			}), "")
			got, err := c.CheckCompatible(context.Background(), tt.min)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("version = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://host", "://bad"} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) succeeded", u)
		}
	}
}
