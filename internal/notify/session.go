package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"m2kqa/internal/qa"
	"m2kqa/internal/ui"
)

// SessionNotifier turns session snapshots into notifications: one when a new
// question waits for an answer and one when the session completes or fails.
type SessionNotifier struct {
	n   Notifier
	now func() time.Time

	mu   sync.Mutex
	last map[string]string // session id -> last notified state
	wg   sync.WaitGroup
}

// NewSessionNotifier sends through n.
func NewSessionNotifier(n Notifier) *SessionNotifier {
	return &SessionNotifier{n: n, now: time.Now, last: make(map[string]string)}
}

// Observe is a session change hook. Sending happens in the background so a
// slow webhook never holds up the session.
func (s *SessionNotifier) Observe(id string, snap qa.Snapshot) {
	n, ok := s.notificationFor(id, snap)
	if !ok {
		return
	}
	key := fmt.Sprintf("%s/%d", n.Event.Status, n.Event.Step)
	s.mu.Lock()
	if s.last[id] == key {
		s.mu.Unlock()
		return
	}
	s.last[id] = key
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.n.Send(n); err != nil {
			log.Printf("[notify] %s via %s: %v", id, s.n.Name(), err)
		}
	}()
}

// Forget drops the state kept for a deleted session.
func (s *SessionNotifier) Forget(id string) {
	s.mu.Lock()
	delete(s.last, id)
	s.mu.Unlock()
}

// Wait blocks until every pending notification was sent.
func (s *SessionNotifier) Wait() { s.wg.Wait() }

func (s *SessionNotifier) notificationFor(id string, snap qa.Snapshot) (Notification, bool) {
	ev := Event{
		SessionID: id,
		Run:       snap.Run.String(),
		Status:    string(snap.Status),
		Step:      snap.Current,
		Error:     snap.Error,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	switch snap.Status {
	case qa.StatusAwaitingAnswer:
		step, ok := snap.CurrentStep()
		if !ok || !step.Editable {
			return Notification{}, false
		}
		ev.QuestionID = step.Question.ID
		ev.Question = ui.PlainText(step.Question.Description)
		return Notification{
			Title:   "Move2Kube needs an answer",
			Message: fmt.Sprintf("Question %d of %s: %s", step.Index+1, ev.Run, ev.Question),
			Sound:   true,
			Event:   ev,
		}, true
	case qa.StatusCompleted:
		ev.Step = len(snap.Steps)
		return Notification{
			Title:   "Move2Kube QA finished",
			Message: fmt.Sprintf("%s: %d questions answered", ev.Run, len(snap.Steps)),
			Event:   ev,
		}, true
	case qa.StatusFailed:
		return Notification{
			Title:   "Move2Kube QA failed",
			Message: fmt.Sprintf("%s: %s", ev.Run, snap.Error),
			Sound:   true,
			Event:   ev,
		}, true
	}
	return Notification{}, false
}
