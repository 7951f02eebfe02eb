package qasession

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"m2kqa/internal/qa"
)

// Entry is one QA session served to remote clients.
type Entry struct {
	ID        string
	CreatedAt time.Time

	session *qa.Session
	ctx     context.Context // cancelled by Close; bounds every advance
	stop    context.CancelFunc

	mu           sync.Mutex
	lastActiveAt time.Time
	clients      map[*websocket.Conn]bool
	closed       bool

	// writeMu serializes frames so a connection never sees two writers.
	writeMu sync.Mutex
}

// Observer follows sessions started by a Manager.
type Observer interface {
	Observe(id string, snap qa.Snapshot)
	// Forget is called once the session was removed.
	Forget(id string)
}

// Manager is a thread-safe registry of QA sessions.
type Manager struct {
	backend  qa.Backend
	opts     qa.Options
	observer Observer

	entries map[string]*Entry
	mu      sync.RWMutex
}

// Info is a read-only view of an Entry (safe to serialize).
type Info struct {
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActiveAt time.Time   `json:"lastActiveAt"`
	ClientCount  int         `json:"clientCount"`
	Snapshot     qa.Snapshot `json:"snapshot"`
}

// --- WebSocket message types (client <-> server) ---

// wsIncoming represents a message from a WebSocket client.
type wsIncoming struct {
	Type   string          `json:"type"`             // set_answer, next, cancel
	Step   *int            `json:"step,omitempty"`   // For set_answer
	Answer json.RawMessage `json:"answer,omitempty"` // For set_answer
}

// wsOutgoing represents a message sent to WebSocket clients.
type wsOutgoing struct {
	Type     string       `json:"type"`               // snapshot, error
	Snapshot *qa.Snapshot `json:"snapshot,omitempty"` // For snapshot
	Message  string       `json:"message,omitempty"`  // For error
}
