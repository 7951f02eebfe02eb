package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"m2kqa/internal/qa"
	"m2kqa/internal/qasession"
	"m2kqa/internal/ui"
)

type qaTools struct {
	sessions *qasession.Manager
}

func registerQATools(server *mcpsdk.Server, t *qaTools) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "qa_start",
		Description: "Start a QA session for a Move2Kube transformation run and fetch its first question",
	}, t.start)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "qa_list",
		Description: "List QA sessions with their status",
	}, t.list)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "qa_current",
		Description: "Show a QA session: answered steps and the question waiting for an answer",
	}, t.current)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "qa_answer",
		Description: "Set the answer of the current question; with next=true also submit it and fetch the next question",
	}, t.answer)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "qa_next",
		Description: "Submit the current answer and fetch the next question, or poll again after an error",
	}, t.next)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "qa_cancel",
		Description: "Cancel a QA session without submitting the current answer",
	}, t.cancel)
}

// stepView is the tool-facing form of a step. Answers are plain JSON values:
// a string, a boolean or a list of strings depending on the type.
type stepView struct {
	Index       int      `json:"index"`
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Hints       []string `json:"hints,omitempty"`
	Options     []string `json:"options,omitempty"`
	Answer      any      `json:"answer"`
	Submitted   bool     `json:"submitted"`
	Editable    bool     `json:"editable"`
	Redacted    bool     `json:"redacted,omitempty"`
}

type sessionView struct {
	SessionID string     `json:"sessionId"`
	Run       string     `json:"run"`
	Status    string     `json:"status"`
	Current   *stepView  `json:"current,omitempty"`
	Steps     []stepView `json:"steps"`
	Error     string     `json:"error,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func toSessionView(id string, snap qa.Snapshot) sessionView {
	v := sessionView{
		SessionID: id,
		Run:       snap.Run.String(),
		Status:    string(snap.Status),
		Steps:     make([]stepView, 0, len(snap.Steps)),
		Error:     snap.Error,
		Reason:    string(snap.Reason),
	}
	for _, st := range snap.Steps {
		q := st.Question
		v.Steps = append(v.Steps, stepView{
			Index:       st.Index,
			ID:          q.ID,
			Type:        q.Kind.String(),
			Description: ui.PlainText(q.Description),
			Hints:       q.Hints,
			Options:     q.Options,
			Answer:      q.Answer,
			Submitted:   st.Submitted,
			Editable:    st.Editable,
			Redacted:    st.Redacted,
		})
	}
	if snap.Current >= 0 && snap.Current < len(v.Steps) {
		cur := v.Steps[snap.Current]
		v.Current = &cur
	}
	return v
}

func (t *qaTools) get(id string) (*qasession.Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("sessionId is required")
	}
	e, ok := t.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", qasession.ErrNotFound, id)
	}
	return e, nil
}

// qa_start

type startInput struct {
	WorkspaceID string `json:"workspaceId" jsonschema:"Move2Kube workspace id"`
	ProjectID   string `json:"projectId" jsonschema:"Move2Kube project id"`
	OutputID    string `json:"outputId" jsonschema:"Project output id of the running transformation"`
}

func (t *qaTools) start(ctx context.Context, req *mcpsdk.CallToolRequest, input startInput) (*mcpsdk.CallToolResult, sessionView, error) {
	run := qa.RunID{WorkspaceID: input.WorkspaceID, ProjectID: input.ProjectID, OutputID: input.OutputID}
	if !run.Valid() {
		return nil, sessionView{}, fmt.Errorf("workspaceId, projectId and outputId are required")
	}
	e, err := t.sessions.Start(ctx, run)
	if err != nil {
		return nil, sessionView{}, fmt.Errorf("failed to start session: %w", err)
	}
	return nil, toSessionView(e.ID, e.Snapshot()), nil
}

// qa_list

type listInput struct{}

type sessionSummary struct {
	SessionID    string `json:"sessionId"`
	Run          string `json:"run"`
	Status       string `json:"status"`
	Steps        int    `json:"steps"`
	LastActiveAt string `json:"lastActiveAt"`
}

type listOutput struct {
	Sessions []sessionSummary `json:"sessions"`
}

func (t *qaTools) list(ctx context.Context, req *mcpsdk.CallToolRequest, input listInput) (*mcpsdk.CallToolResult, listOutput, error) {
	entries := t.sessions.List()
	out := listOutput{Sessions: make([]sessionSummary, 0, len(entries))}
	for _, e := range entries {
		info := e.Info()
		out.Sessions = append(out.Sessions, sessionSummary{
			SessionID:    info.ID,
			Run:          info.Snapshot.Run.String(),
			Status:       string(info.Snapshot.Status),
			Steps:        len(info.Snapshot.Steps),
			LastActiveAt: info.LastActiveAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// qa_current

type sessionInput struct {
	SessionID string `json:"sessionId" jsonschema:"QA session id returned by qa_start"`
}

func (t *qaTools) current(ctx context.Context, req *mcpsdk.CallToolRequest, input sessionInput) (*mcpsdk.CallToolResult, sessionView, error) {
	e, err := t.get(input.SessionID)
	if err != nil {
		return nil, sessionView{}, err
	}
	return nil, toSessionView(e.ID, e.Snapshot()), nil
}

// qa_answer

type answerInput struct {
	SessionID string `json:"sessionId" jsonschema:"QA session id"`
	Step      int    `json:"step" jsonschema:"Index of the current step"`
	Answer    any    `json:"answer" jsonschema:"Answer value: a string for Select, Input, MultiLineInput and Password; a boolean for Confirm; a list of strings for MultiSelect"`
	Next      bool   `json:"next,omitempty" jsonschema:"Submit the answer and fetch the next question"`
}

func (t *qaTools) answer(ctx context.Context, req *mcpsdk.CallToolRequest, input answerInput) (*mcpsdk.CallToolResult, sessionView, error) {
	e, err := t.get(input.SessionID)
	if err != nil {
		return nil, sessionView{}, err
	}
	raw, err := json.Marshal(input.Answer)
	if err != nil {
		return nil, sessionView{}, fmt.Errorf("%w: %v", qa.ErrAnswerShape, err)
	}
	if err := e.SetAnswer(input.Step, raw); err != nil {
		return nil, sessionView{}, fmt.Errorf("set answer: %w", err)
	}
	if input.Next {
		if err := e.Next(ctx); err != nil {
			return nil, sessionView{}, fmt.Errorf("next question: %w", err)
		}
	}
	return nil, toSessionView(e.ID, e.Snapshot()), nil
}

// qa_next

func (t *qaTools) next(ctx context.Context, req *mcpsdk.CallToolRequest, input sessionInput) (*mcpsdk.CallToolResult, sessionView, error) {
	e, err := t.get(input.SessionID)
	if err != nil {
		return nil, sessionView{}, err
	}
	if err := e.Next(ctx); err != nil {
		return nil, sessionView{}, fmt.Errorf("next question: %w", err)
	}
	return nil, toSessionView(e.ID, e.Snapshot()), nil
}

// qa_cancel

type cancelOutput struct {
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status"`
}

func (t *qaTools) cancel(ctx context.Context, req *mcpsdk.CallToolRequest, input sessionInput) (*mcpsdk.CallToolResult, cancelOutput, error) {
	e, err := t.get(input.SessionID)
	if err != nil {
		return nil, cancelOutput{}, err
	}
	e.Cancel()
	st := e.Snapshot().Status
	return nil, cancelOutput{Cancelled: st == qa.StatusCancelled, Status: string(st)}, nil
}
