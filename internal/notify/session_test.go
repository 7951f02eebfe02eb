package notify

import (
	"sync"
	"testing"
	"time"

	"m2kqa/internal/qa"
)

type recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recorder) Send(n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) Name() string { return "recorder" }

func snapshot(status qa.Status, steps ...qa.StepView) qa.Snapshot {
	return qa.Snapshot{
		Run:     qa.RunID{WorkspaceID: "ws", ProjectID: "proj", OutputID: "out"},
		Status:  status,
		Steps:   steps,
		Current: len(steps) - 1,
	}
}

func TestSessionNotifier(t *testing.T) {
	q1 := &qa.Question{ID: "move2kube.services", Kind: qa.KindInput, Description: "Select <b>services</b>"}
	q2 := &qa.Question{ID: "move2kube.ingress", Kind: qa.KindConfirm, Description: "Ingress?"}
	open1 := qa.StepView{Index: 0, Question: q1, Editable: true}
	sent1 := qa.StepView{Index: 0, Question: q1, Submitted: true}
	open2 := qa.StepView{Index: 1, Question: q2, Editable: true}

	r := &recorder{}
	s := NewSessionNotifier(r)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	s.Observe("qa-1", snapshot(qa.StatusStarted))
	s.Observe("qa-1", snapshot(qa.StatusAwaitingAnswer, open1))
	s.Observe("qa-1", snapshot(qa.StatusAwaitingAnswer, open1)) // answer edited
	s.Observe("qa-1", snapshot(qa.StatusAdvancing, sent1))
	s.Observe("qa-1", snapshot(qa.StatusAwaitingAnswer, sent1, open2))
	s.Observe("qa-1", snapshot(qa.StatusCompleted, sent1, qa.StepView{Index: 1, Question: q2, Submitted: true}))
	s.Wait()

	if len(r.sent) != 3 {
		t.Fatalf("sent %d notifications, want 3: %+v", len(r.sent), r.sent)
	}
	byQuestion := map[string]Event{}
	var completed *Event
	for _, n := range r.sent {
		ev := n.Event
		if ev.Status == string(qa.StatusCompleted) {
			completed = &ev
			continue
		}
		byQuestion[ev.QuestionID] = ev
	}
	if ev := byQuestion["move2kube.services"]; ev.Question != "Select services" || ev.Step != 0 {
		t.Errorf("first question event = %+v", ev)
	}
	if ev := byQuestion["move2kube.ingress"]; ev.Step != 1 || ev.Timestamp != "2026-01-01T00:00:00Z" {
		t.Errorf("second question event = %+v", ev)
	}
	if completed == nil || completed.Step != 2 || completed.Run != "ws/proj/out" {
		t.Errorf("completed event = %+v", completed)
	}
}

func TestSessionNotifierFailure(t *testing.T) {
	r := &recorder{}
	s := NewSessionNotifier(r)

	snap := snapshot(qa.StatusFailed)
	snap.Error = "unauthorized"
	s.Observe("qa-2", snap)
	s.Observe("qa-2", snap)
	s.Wait()

	if len(r.sent) != 1 || r.sent[0].Event.Error != "unauthorized" {
		t.Fatalf("sent = %+v", r.sent)
	}

	s.Forget("qa-2")
	s.Observe("qa-2", snap)
	s.Wait()
	if len(r.sent) != 2 {
		t.Errorf("sent %d after Forget, want 2", len(r.sent))
	}
}
