package qasession

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"m2kqa/internal/qa"
)

// upgrader configures the WebSocket handshake.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin lets through clients that send no Origin or authenticate with
// a bearer token, which a browser page cannot attach to a handshake. Other
// browser pages must come from the server's own host.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || r.Header.Get("Authorization") != "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// HandleWebSocket upgrades an HTTP connection and bridges it to the entry.
// The client gets a snapshot right away and after every state change.
func HandleWebSocket(e *Entry, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[qasession] websocket upgrade error: %v", err)
		return
	}
	if !e.AddClient(conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
		conn.Close()
		return
	}

	go func() {
		defer func() {
			e.RemoveClient(conn)
			conn.Close()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
				) {
					log.Printf("[qasession] ws read error for session %s: %v", e.ID, err)
				}
				return
			}
			e.handleClientMessage(conn, raw)
		}
	}()
}

// handleClientMessage processes a single incoming WebSocket message.
func (e *Entry) handleClientMessage(conn *websocket.Conn, raw []byte) {
	var msg wsIncoming
	if err := json.Unmarshal(raw, &msg); err != nil {
		e.sendWSError(conn, "invalid JSON: "+err.Error())
		return
	}

	switch msg.Type {
	case "set_answer":
		if msg.Step == nil {
			e.sendWSError(conn, "step is required for set_answer")
			return
		}
		if err := e.SetAnswer(*msg.Step, msg.Answer); err != nil {
			e.sendWSError(conn, "set answer failed: "+err.Error())
		}

	case "next":
		// Advance in the background so a cancel frame can still be read.
		go func() {
			if err := e.Next(context.Background()); err != nil {
				e.sendWSError(conn, "next failed: "+err.Error())
			}
		}()

	case "cancel":
		e.Cancel()

	default:
		e.sendWSError(conn, "unknown message type: "+msg.Type)
	}
}

// AddClient registers conn and sends it the current snapshot. It reports
// false when the entry is already closed.
func (e *Entry) AddClient(conn *websocket.Conn) bool {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.clients[conn] = true
	e.mu.Unlock()

	snap := e.session.Snapshot()
	if data, err := json.Marshal(wsOutgoing{Type: "snapshot", Snapshot: &snap}); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
	return true
}

// RemoveClient unregisters conn.
func (e *Entry) RemoveClient(conn *websocket.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, conn)
}

// broadcastSnapshot is the session's change hook.
func (e *Entry) broadcastSnapshot(snap qa.Snapshot) {
	e.broadcast(wsOutgoing{Type: "snapshot", Snapshot: &snap})
}

// broadcast sends a message to all connected WebSocket clients.
func (e *Entry) broadcast(msg wsOutgoing) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[qasession] broadcast marshal error: %v", err)
		return
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range clients {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[qasession] write to client error: %v", err)
				e.RemoveClient(c)
			}
		}(conn)
	}
	wg.Wait()
}

// sendWSError sends an error message to a single WebSocket client.
func (e *Entry) sendWSError(conn *websocket.Conn, message string) {
	data, err := json.Marshal(wsOutgoing{Type: "error", Message: message})
	if err != nil {
		return
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	conn.WriteMessage(websocket.TextMessage, data)
}
