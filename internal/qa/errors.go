package qa

import "errors"

// Backend condition errors. Backend implementations wrap these so the session
// can classify failures with errors.Is.
var (
	// ErrNotReady means the backend has not computed the next question yet.
	ErrNotReady = errors.New("question not ready")
	// ErrUnauthorized is always fatal to a session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected means the backend answered with a non-success status.
	ErrRejected = errors.New("request rejected by backend")
)

// Question validation errors. Both are fatal when returned by a poll.
var (
	ErrUnknownKind = errors.New("unknown question type")
	ErrMalformed   = errors.New("malformed question")
)

// Session usage errors. None of them change session state.
var (
	// ErrBusy is returned by Advance while another advance is in flight.
	ErrBusy = errors.New("session is advancing")
	// ErrClosed is returned by operations on a completed, failed or cancelled session.
	ErrClosed = errors.New("session is closed")
	// ErrNotBound is returned by Advance before Bind.
	ErrNotBound = errors.New("session has no transformation run")
	// ErrStaleStep is returned by SetAnswer for any step but the current one.
	ErrStaleStep = errors.New("step is not the current step")
	// ErrStepSealed is returned by SetAnswer once the current step was submitted.
	ErrStepSealed = errors.New("step answer already submitted")
	// ErrAnswerShape is returned for answers that do not fit the question.
	ErrAnswerShape = errors.New("answer does not match question")
)
