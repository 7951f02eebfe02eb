// Package qasession keeps the QA sessions of `m2kqa serve` and bridges them
// to websocket clients.
package qasession

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"m2kqa/internal/qa"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// NewManager creates an empty Manager. Every session it starts talks to
// backend with opts; OnChange is replaced by the websocket broadcast.
func NewManager(backend qa.Backend, opts qa.Options) *Manager {
	return &Manager{
		backend: backend,
		opts:    opts,
		entries: make(map[string]*Entry),
	}
}

// SetObserver registers o to see every snapshot of sessions started
// afterwards, next to the websocket clients. o is told when a session is
// removed.
func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// Start creates a session bound to run and fetches its first question.
// The error is non-nil only when no session could be created; the outcome
// of the first advance is part of the entry's snapshot.
func (m *Manager) Start(ctx context.Context, run qa.RunID) (*Entry, error) {
	if !run.Valid() {
		return nil, fmt.Errorf("invalid run id %q", run.String())
	}
	id := generateID()
	entryCtx, stop := context.WithCancel(context.Background())
	now := time.Now()
	e := &Entry{
		ID:           id,
		CreatedAt:    now,
		ctx:          entryCtx,
		stop:         stop,
		lastActiveAt: now,
		clients:      make(map[*websocket.Conn]bool),
	}
	m.mu.RLock()
	observe := m.observer
	m.mu.RUnlock()
	opts := m.opts
	opts.OnChange = func(snap qa.Snapshot) {
		e.broadcastSnapshot(snap)
		if observe != nil {
			observe.Observe(id, snap)
		}
	}
	e.session = qa.NewSession(m.backend, opts)
	if err := e.session.Bind(run); err != nil {
		stop()
		return nil, err
	}

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()
	log.Printf("[qasession] %s started for run %s", id, run)

	if err := e.Next(ctx); err != nil {
		log.Printf("[qasession] %s first question: %v", id, err)
	}
	return e, nil
}

// Get returns a session by ID, or false if not found.
func (m *Manager) Get(id string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Entry {
	m.mu.RLock()
	result := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// Delete cancels and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.entries, id)
	observer := m.observer
	m.mu.Unlock()

	e.Close()
	if observer != nil {
		observer.Forget(id)
	}
	log.Printf("[qasession] %s removed", id)
	return nil
}

// CloseAll shuts down every session. Used during server shutdown.
func (m *Manager) CloseAll() error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error { return m.Delete(id) })
	}
	return g.Wait()
}

// generateID produces a unique session identifier.
func generateID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("qa-%d-%x", time.Now().UnixNano(), b)
}
