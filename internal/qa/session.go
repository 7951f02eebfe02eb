// Package qa drives the interactive question/answer phase of a Move2Kube
// transformation run: it polls the backend for the current question, keeps
// the user's answer, submits it, and repeats until the backend has no more
// questions.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Status is the state of a Session.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusStarted        Status = "started"
	StatusAwaitingAnswer Status = "awaiting_answer"
	StatusAdvancing      Status = "advancing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further operation can change the session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// FailureReason classifies why a session failed.
type FailureReason string

const (
	ReasonUnauthorized FailureReason = "unauthorized"
	ReasonMalformed    FailureReason = "malformed_question"
	ReasonError        FailureReason = "error"
)

// RunID identifies one transformation run on the backend.
type RunID struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	OutputID    string `json:"outputId"`
}

func (r RunID) String() string {
	return r.WorkspaceID + "/" + r.ProjectID + "/" + r.OutputID
}

// Valid reports whether every part of the run id is set.
func (r RunID) Valid() bool {
	return r.WorkspaceID != "" && r.ProjectID != "" && r.OutputID != ""
}

// Backend is the remote side of the QA protocol.
type Backend interface {
	// SubmitSolution stores q.Answer for the currently open question.
	SubmitSolution(ctx context.Context, run RunID, q *Question) error
	// CurrentQuestion returns the next unanswered question, or nil when the
	// run has no more questions. It returns an error wrapping ErrNotReady while
	// the backend is still computing.
	CurrentQuestion(ctx context.Context, run RunID) (*Question, error)
}

// Step pairs a question with its answer. Only the last step of a session may
// be edited, and only until it is submitted.
type Step struct {
	Question  *Question
	Submitted bool
}

// Options tune a Session. Zero values select the defaults.
type Options struct {
	// PollRetries is the number of extra polls after a not-ready response.
	// Zero selects DefaultPollRetries; a negative value disables retries.
	PollRetries int
	// PollDelay is the wait between not-ready polls.
	PollDelay time.Duration
	// Sleep waits for d or until ctx is done. Tests inject a fake.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnChange is called, outside the session lock, after every state change.
	// Calls never overlap and must not change the session.
	OnChange func(Snapshot)
}

const (
	DefaultPollRetries = 2
	DefaultPollDelay   = 2 * time.Second
)

// Session is the QA state machine for exactly one transformation run. All
// methods are safe for concurrent use; Advance never runs twice at once.
type Session struct {
	backend Backend
	opts    Options

	// notifyMu orders OnChange deliveries; it is taken before mu.
	notifyMu sync.Mutex

	mu      sync.Mutex
	run     RunID
	status  Status
	steps   []Step
	lastErr error // recoverable, advisory
	failErr error
	reason  FailureReason
}

// NewSession returns an idle session talking to backend.
func NewSession(backend Backend, opts Options) *Session {
	switch {
	case opts.PollRetries == 0:
		opts.PollRetries = DefaultPollRetries
	case opts.PollRetries < 0:
		opts.PollRetries = 0
	}
	if opts.PollDelay <= 0 {
		opts.PollDelay = DefaultPollDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Session{
		backend: backend,
		opts:    opts,
		status:  StatusIdle,
	}
}

// Bind attaches the session to a transformation run. It is only valid while
// the session is idle.
func (s *Session) Bind(run RunID) error {
	if !run.Valid() {
		return fmt.Errorf("invalid run id %q", run.String())
	}
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return fmt.Errorf("bind run %s: session is %s", run, s.status)
	}
	s.run = run
	s.status = StatusStarted
	s.mu.Unlock()
	s.notify()
	return nil
}

// Advance submits the current answer, if any, and polls for the next
// question. While an advance is in flight further calls return ErrBusy
// without touching the backend. Terminal sessions return ErrClosed.
//
// A recoverable failure is returned and also kept as the session's advisory
// error; the session goes back to awaiting an answer. Fatal failures move the
// session to StatusFailed.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusAdvancing:
		s.mu.Unlock()
		return ErrBusy
	case StatusIdle:
		s.mu.Unlock()
		return ErrNotBound
	case StatusStarted, StatusAwaitingAnswer:
	default:
		s.mu.Unlock()
		return ErrClosed
	}
	prev := s.status
	run := s.run
	var pending *Question
	if n := len(s.steps); n > 0 && !s.steps[n-1].Submitted && s.steps[n-1].Question.ID != "" {
		pending = s.steps[n-1].Question.Clone()
	}
	s.status = StatusAdvancing
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()

	if pending != nil {
		if err := s.backend.SubmitSolution(ctx, run, pending); err != nil {
			return s.finishAdvance(prev, fmt.Errorf("submit answer for %s: %w", pending.ID, err), false)
		}
		if !s.sealCurrent() {
			return ErrClosed
		}
	}

	next, err := s.poll(ctx, run)
	if err != nil {
		return s.finishAdvance(StatusAwaitingAnswer, fmt.Errorf("get next question: %w", err), true)
	}
	if next == nil {
		return s.complete()
	}
	if err := next.Seed(); err != nil {
		return s.finishAdvance(StatusAwaitingAnswer, fmt.Errorf("question %s: %w", next.ID, err), true)
	}
	return s.appendStep(next)
}

// poll asks for the current question, retrying not-ready answers up to
// PollRetries extra times.
func (s *Session) poll(ctx context.Context, run RunID) (*Question, error) {
	attempts := s.opts.PollRetries + 1
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := s.opts.Sleep(ctx, s.opts.PollDelay); serr != nil {
				return nil, serr
			}
		}
		var q *Question
		q, err = s.backend.CurrentQuestion(ctx, run)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, ErrNotReady) {
			return nil, err
		}
		log.Printf("[qa] run %s: question not ready (attempt %d/%d)", run, i+1, attempts)
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

// sealCurrent marks the last step as submitted and drops secret answers.
// It reports false when the session was cancelled meanwhile.
func (s *Session) sealCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.steps)
	if n > 0 {
		st := &s.steps[n-1]
		st.Submitted = true
		if st.Question.Kind == KindPassword {
			st.Question.Answer = PasswordAnswer("")
			st.Question.Default = nil
		}
	}
	return s.status == StatusAdvancing
}

// finishAdvance records err. Fatal errors fail the session; the rest leave
// it in back (poll=true means the error came from the poll phase).
func (s *Session) finishAdvance(back Status, err error, poll bool) error {
	s.mu.Lock()
	if s.status != StatusAdvancing {
		// Cancelled while the request was in flight; the result is discarded.
		s.mu.Unlock()
		return ErrClosed
	}
	if reason, fatal := classify(err, poll); fatal {
		s.status = StatusFailed
		s.failErr = err
		s.reason = reason
		s.scrubSecrets()
		log.Printf("[qa] run %s failed (%s): %v", s.run, reason, err)
	} else {
		if back == StatusAwaitingAnswer && len(s.steps) == 0 {
			back = StatusStarted
		}
		s.status = back
		s.lastErr = err
		log.Printf("[qa] run %s: %v", s.run, err)
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Session) complete() error {
	s.mu.Lock()
	if s.status != StatusAdvancing {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status = StatusCompleted
	s.scrubSecrets()
	log.Printf("[qa] run %s: no more questions after %d steps", s.run, len(s.steps))
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) appendStep(q *Question) error {
	s.mu.Lock()
	if s.status != StatusAdvancing {
		s.mu.Unlock()
		return ErrClosed
	}
	s.steps = append(s.steps, Step{Question: q})
	s.status = StatusAwaitingAnswer
	s.mu.Unlock()
	s.notify()
	return nil
}

// classify decides whether err ends the session.
func classify(err error, poll bool) (FailureReason, bool) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized, true
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrMalformed):
		return ReasonMalformed, true
	case poll && errors.Is(err, ErrRejected):
		return ReasonError, true
	}
	return "", false
}

// SetAnswer replaces the answer of the current step. index must be the index
// of the last step; older steps are immutable.
func (s *Session) SetAnswer(index int, a Answer) error {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != StatusAwaitingAnswer {
		s.mu.Unlock()
		return ErrBusy
	}
	n := len(s.steps)
	if index != n-1 {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d, current is %d", ErrStaleStep, index, n-1)
	}
	st := &s.steps[index]
	if st.Submitted {
		s.mu.Unlock()
		return ErrStepSealed
	}
	if err := CheckAnswer(st.Question, a); err != nil {
		s.mu.Unlock()
		return err
	}
	st.Question.Answer = CloneAnswer(a)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Cancel ends the session without submitting the current answer. It is a
// no-op on completed or already cancelled sessions. An in-flight Advance is
// not interrupted; its result is discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.status == StatusCompleted || s.status == StatusCancelled {
		s.mu.Unlock()
		return
	}
	s.status = StatusCancelled
	s.scrubSecrets()
	s.mu.Unlock()
	s.notify()
}

// scrubSecrets clears every password answer. Callers hold s.mu.
func (s *Session) scrubSecrets() {
	for i := range s.steps {
		q := s.steps[i].Question
		if q.Kind == KindPassword {
			q.Answer = PasswordAnswer("")
			q.Default = nil
		}
	}
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run returns the bound transformation run.
func (s *Session) Run() RunID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Current returns a copy of the current step's question and its index, or
// nil and -1 when there is none.
func (s *Session) Current() (*Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.steps)
	if n == 0 {
		return nil, -1
	}
	return s.steps[n-1].Question.Clone(), n - 1
}

// Err returns the advisory error of the last advance, or the failure cause
// once the session failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	return s.lastErr
}

// notify delivers the current snapshot. Snapshots are taken and delivered
// one at a time, so the last delivery always shows the latest state.
func (s *Session) notify() {
	if s.opts.OnChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.opts.OnChange(s.Snapshot())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
