package qa

// Snapshot is a read-only copy of a session, safe to hand to renderers and to
// serialize. Password answers are never included.
type Snapshot struct {
	Run     RunID         `json:"run"`
	Status  Status        `json:"status"`
	Steps   []StepView    `json:"steps"`
	Current int           `json:"current"` // index of the open step, -1 if none
	Error   string        `json:"error,omitempty"`
	Reason  FailureReason `json:"reason,omitempty"`
}

// StepView is one step inside a Snapshot.
type StepView struct {
	Index     int       `json:"index"`
	Question  *Question `json:"question"`
	Submitted bool      `json:"submitted"`
	Editable  bool      `json:"editable"`
	Redacted  bool      `json:"redacted,omitempty"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Run:     s.run,
		Status:  s.status,
		Steps:   make([]StepView, 0, len(s.steps)),
		Current: -1,
		Reason:  s.reason,
	}
	if s.failErr != nil {
		snap.Error = s.failErr.Error()
	} else if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	for i, st := range s.steps {
		q := st.Question.Clone()
		view := StepView{Index: i, Question: q, Submitted: st.Submitted}
		if q.Kind == KindPassword {
			view.Redacted = q.Answer != PasswordAnswer("")
			q.Answer = PasswordAnswer("")
			q.Default = nil
		}
		snap.Steps = append(snap.Steps, view)
	}
	if n := len(s.steps); n > 0 && !s.status.Terminal() {
		snap.Current = n - 1
		last := &snap.Steps[n-1]
		last.Editable = s.status == StatusAwaitingAnswer && !last.Submitted
	}
	return snap
}

// CurrentStep returns the open step of the snapshot, if any.
func (s Snapshot) CurrentStep() (StepView, bool) {
	if s.Current < 0 || s.Current >= len(s.Steps) {
		return StepView{}, false
	}
	return s.Steps[s.Current], true
}

// SubmittedCount returns the number of steps already sent to the backend.
func (s Snapshot) SubmittedCount() int {
	n := 0
	for _, st := range s.Steps {
		if st.Submitted {
			n++
		}
	}
	return n
}
