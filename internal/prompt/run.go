package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"m2kqa/internal/qa"
)

// Run drives s to a terminal state, asking every question on w. A bound
// session that has not fetched its first question yet is advanced first.
// It returns nil once the session completed, and ErrAborted when the user
// gave up; the session is cancelled in that case.
func Run(ctx context.Context, s *qa.Session, r LineReader, w io.Writer) error {
	for {
		snap := s.Snapshot()
		switch snap.Status {
		case qa.StatusCompleted:
			fmt.Fprintf(w, "\nAll %d questions answered.\n", len(snap.Steps))
			return nil
		case qa.StatusFailed:
			return s.Err()
		case qa.StatusCancelled:
			return qa.ErrClosed
		case qa.StatusIdle:
			return qa.ErrNotBound
		}

		if step, ok := snap.CurrentStep(); ok && step.Editable {
			q, idx := s.Current()
			fmt.Fprintf(w, "\n[%d] %s", idx+1, q.ID)
			a, err := Ask(w, r, q)
			if err != nil {
				s.Cancel()
				return err
			}
			if err := s.SetAnswer(idx, a); err != nil {
				fmt.Fprintf(w, "  %v\n", err)
				continue
			}
		}

		err := s.Advance(ctx)
		if err == nil || s.Status().Terminal() {
			continue
		}
		if errors.Is(err, qa.ErrBusy) {
			return err
		}
		fmt.Fprintf(w, "  ! %v\n", err)
		if ctx.Err() != nil {
			s.Cancel()
			return ctx.Err()
		}
		// An editable step is asked again; otherwise the answer is already
		// on the server and only the poll can be repeated.
		if step, ok := s.Snapshot().CurrentStep(); ok && step.Editable {
			continue
		}
		retry, cerr := Confirm(r, "Try again?", true)
		if cerr != nil || !retry {
			s.Cancel()
			if cerr != nil {
				return cerr
			}
			return ErrAborted
		}
	}
}
