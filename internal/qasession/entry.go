package qasession

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"m2kqa/internal/qa"
)

// Next advances the session. The request ends early when ctx is done or the
// entry is closed.
func (e *Entry) Next(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	e.touch()
	return e.session.Advance(ctx)
}

// SetAnswer decodes a wire answer for the current step and stores it.
func (e *Entry) SetAnswer(step int, raw json.RawMessage) error {
	e.touch()
	q, idx := e.session.Current()
	if q == nil || step != idx {
		if st := e.session.Status(); st.Terminal() {
			return qa.ErrClosed
		}
		return fmt.Errorf("%w: got %d, current is %d", qa.ErrStaleStep, step, idx)
	}
	a, err := qa.DecodeAnswer(q.Kind, raw)
	if err != nil {
		return err
	}
	return e.session.SetAnswer(step, a)
}

// Cancel ends the QA without submitting the current answer.
func (e *Entry) Cancel() {
	e.touch()
	e.session.Cancel()
}

// Snapshot returns the session state.
func (e *Entry) Snapshot() qa.Snapshot {
	return e.session.Snapshot()
}

// Info returns a read-only view of the entry.
func (e *Entry) Info() Info {
	snap := e.session.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	return Info{
		ID:           e.ID,
		CreatedAt:    e.CreatedAt,
		LastActiveAt: e.lastActiveAt,
		ClientCount:  len(e.clients),
		Snapshot:     snap,
	}
}

// Close cancels the session, aborts in-flight requests and disconnects all
// clients. It is safe to call more than once.
func (e *Entry) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.stop()
	e.session.Cancel()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	for conn := range e.clients {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
		conn.Close()
	}
	e.clients = nil
}

func (e *Entry) touch() {
	e.mu.Lock()
	e.lastActiveAt = time.Now()
	e.mu.Unlock()
}
