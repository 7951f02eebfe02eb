package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"m2kqa/internal/qasession"
)

// Options configures NewHTTPServer.
type Options struct {
	// Tokens are the accepted bearer tokens. With none configured only
	// loopback clients are served.
	Tokens   []string
	Version  string
	Sessions *qasession.Manager
	// MCP, when set, is mounted under /mcp/.
	MCP http.Handler
}

// HTTPServer represents the HTTP API server
type HTTPServer struct {
	mux      *mux.Router
	sessions *qasession.Manager
	mcp      http.Handler
	version  string

	tokensMu sync.RWMutex
	tokens   []string
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(opts Options) *HTTPServer {
	s := &HTTPServer{
		mux:      mux.NewRouter(),
		sessions: opts.Sessions,
		mcp:      opts.MCP,
		version:  opts.Version,
		tokens:   opts.Tokens,
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes with middleware
func (s *HTTPServer) registerRoutes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", loggingMiddleware(s.handleHealth)).Methods(http.MethodGet)

	// Authenticated endpoints
	s.mux.HandleFunc("/sessions", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleCreateSession)))).Methods(http.MethodPost)
	s.mux.HandleFunc("/sessions", loggingMiddleware(s.authMiddleware(s.handleListSessions))).Methods(http.MethodGet)
	s.mux.HandleFunc("/sessions/{id}", loggingMiddleware(s.authMiddleware(s.handleGetSession))).Methods(http.MethodGet)
	s.mux.HandleFunc("/sessions/{id}", loggingMiddleware(s.authMiddleware(s.handleDeleteSession))).Methods(http.MethodDelete)
	s.mux.HandleFunc("/sessions/{id}/steps/{index:[0-9]+}/answer", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleSetAnswer)))).Methods(http.MethodPut)
	s.mux.HandleFunc("/sessions/{id}/next", loggingMiddleware(s.authMiddleware(s.handleNext))).Methods(http.MethodPost)
	s.mux.HandleFunc("/sessions/{id}/ws", loggingMiddleware(s.authMiddleware(s.handleSessionWebSocket))).Methods(http.MethodGet)

	if s.mcp != nil {
		s.mux.PathPrefix("/mcp/").Handler(loggingMiddleware(s.authMiddleware(s.mcp.ServeHTTP)))
	}
}

// SetTokens replaces the accepted bearer tokens.
func (s *HTTPServer) SetTokens(tokens []string) {
	s.tokensMu.Lock()
	s.tokens = tokens
	s.tokensMu.Unlock()
	log.Printf("[HTTP] %d valid tokens", len(tokens))
}

func (s *HTTPServer) currentTokens() []string {
	s.tokensMu.RLock()
	defer s.tokensMu.RUnlock()
	return s.tokens
}

// Handler returns the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler { return s.mux }

// Run serves on addr until ctx is done, then shuts down gracefully and
// closes every session.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[HTTP] Starting server on %s", addr)
		log.Printf("[HTTP] Registered %d valid tokens", len(s.currentTokens()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if s.sessions != nil {
			s.sessions.CloseAll()
		}
		log.Printf("[HTTP] Server stopped")
		return err
	})
	return g.Wait()
}
