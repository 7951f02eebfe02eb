package m2kapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"m2kqa/internal/qa"
)

// The QA endpoints carry the problem as a JSON document embedded in a string.
type currentProblemResponse struct {
	Question string `json:"question"`
}

type solutionRequest struct {
	Solution string `json:"solution"`
}

// CurrentQuestion fetches the open question of a run. A 204 response means
// the backend is still computing (qa.ErrNotReady); an empty question means
// the run has no more questions and nil is returned.
func (c *Client) CurrentQuestion(ctx context.Context, run qa.RunID) (*qa.Question, error) {
	endpoint, err := c.endpoint(append(runPath(run), "problems", "current")...)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var body currentProblemResponse
	code, err := c.doJSON(req, &body, http.StatusOK, http.StatusNoContent)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNoContent {
		return nil, fmt.Errorf("run %s: %w", run, qa.ErrNotReady)
	}
	if strings.TrimSpace(body.Question) == "" {
		return nil, nil
	}
	var q qa.Question
	if err := json.Unmarshal([]byte(body.Question), &q); err != nil {
		if !errors.Is(err, qa.ErrUnknownKind) && !errors.Is(err, qa.ErrMalformed) {
			err = fmt.Errorf("%w: %v", qa.ErrMalformed, err)
		}
		return nil, fmt.Errorf("run %s: decode question: %w", run, err)
	}
	return &q, nil
}

// SubmitSolution posts q, with its answer, as the solution to the open question.
func (c *Client) SubmitSolution(ctx context.Context, run qa.RunID, q *qa.Question) error {
	endpoint, err := c.endpoint(append(runPath(run), "problems", "current", "solution")...)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode solution for %s: %w", q.ID, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, solutionRequest{Solution: string(doc)})
	if err != nil {
		return err
	}
	_, err = c.doJSON(req, nil, http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent)
	return err
}
