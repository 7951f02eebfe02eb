// Package tui is the full-screen QA wizard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"m2kqa/internal/output"
	"m2kqa/internal/qa"
	"m2kqa/internal/ui"
)

// ErrCancelled is returned by Run when the user leaves the wizard early.
var ErrCancelled = errors.New("cancelled by user")

// advanceDoneMsg is sent when a background Advance returns.
type advanceDoneMsg struct{ err error }

// Model is the wizard model for one QA session.
type Model struct {
	ctx      context.Context
	session  *qa.Session
	snap     qa.Snapshot
	editor   editor
	editIdx  int // step the editor belongs to, -1 if none
	busy     bool
	spinner  spinner.Model
	help     help.Model
	width    int
	height   int
	err      string
	quitting bool
}

// NewModel wraps a bound session.
func NewModel(ctx context.Context, s *qa.Session) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)
	m := Model{
		ctx:     ctx,
		session: s,
		editIdx: -1,
		spinner: sp,
		help:    help.New(),
	}
	m.refresh()
	m.busy = m.snap.Status == qa.StatusStarted && len(m.snap.Steps) == 0
	return m
}

// Run shows the wizard until the session ends or the user quits. It returns
// the final snapshot.
func Run(ctx context.Context, s *qa.Session) (qa.Snapshot, error) {
	p := tea.NewProgram(NewModel(ctx, s), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		s.Cancel()
		return s.Snapshot(), fmt.Errorf("run wizard: %w", err)
	}
	return final.(Model).Result()
}

// Result maps the session outcome to an error.
func (m Model) Result() (qa.Snapshot, error) {
	snap := m.session.Snapshot()
	switch snap.Status {
	case qa.StatusCompleted:
		return snap, nil
	case qa.StatusFailed:
		return snap, m.session.Err()
	}
	return snap, ErrCancelled
}

// Init fetches the first question of a freshly bound session.
func (m Model) Init() tea.Cmd {
	if m.busy {
		return m.advanceCmd()
	}
	return nil
}

func (m *Model) startAdvance() tea.Cmd {
	m.busy = true
	m.err = ""
	return m.advanceCmd()
}

func (m Model) advanceCmd() tea.Cmd {
	ctx, s := m.ctx, m.session
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return advanceDoneMsg{err: s.Advance(ctx)}
	})
}

// refresh reloads the snapshot and replaces the editor when a new step
// became current.
func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	step, ok := m.snap.CurrentStep()
	if !ok || !step.Editable {
		if !ok {
			m.editor, m.editIdx = nil, -1
		}
		return
	}
	if step.Index == m.editIdx && m.editor != nil {
		return
	}
	// Snapshots hide secrets; seed the editor from the live question.
	q, idx := m.session.Current()
	ed, err := newEditor(q)
	if err != nil {
		m.err = err.Error()
		return
	}
	m.editor, m.editIdx = ed, idx
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case advanceDoneMsg:
		m.busy = false
		m.refresh()
		if msg.err != nil && !errors.Is(msg.err, qa.ErrClosed) {
			m.err = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		m.session.Cancel()
		m.quitting = true
		return m, tea.Quit
	}
	if m.snap.Status.Terminal() {
		if key.Matches(msg, keys.Next) || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}
	// Next is ignored while a request is in flight.
	if m.busy {
		return m, nil
	}

	next := key.Matches(msg, keys.Submit) ||
		(key.Matches(msg, keys.Next) && (m.editor == nil || !m.editor.Multiline()))
	if next {
		return m.submit()
	}
	if key.Matches(msg, keys.Help) && (m.editor == nil || !acceptsText(m.editor)) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.editor != nil && m.editable() {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func acceptsText(e editor) bool {
	switch e.(type) {
	case *lineEditor, *areaEditor:
		return true
	}
	return false
}

func (m Model) editable() bool {
	step, ok := m.snap.CurrentStep()
	return ok && step.Editable && step.Index == m.editIdx
}

// submit stores the editor's answer and advances. A step that was already
// sent only polls again.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.editable() {
		if err := m.session.SetAnswer(m.editIdx, m.editor.Answer()); err != nil {
			m.err = err.Error()
			return m, nil
		}
	}
	return m, m.startAdvance()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	run := m.snap.Run
	b.WriteString(titleStyle.Render("Move2Kube QA"))
	b.WriteString(idStyle.Render(fmt.Sprintf("  %s / %s / %s", run.WorkspaceID, run.ProjectID, run.OutputID)))
	b.WriteString("\n\n")

	for _, st := range m.snap.Steps {
		if !st.Submitted {
			continue
		}
		line := fmt.Sprintf("✓ %s: %s", ui.PlainText(firstLine(st.Question.Description)), output.FormatAnswer(st.Question.Answer, st.Redacted))
		b.WriteString(historyStyle.Render(line) + "\n")
	}
	if m.snap.SubmittedCount() > 0 {
		b.WriteString("\n")
	}

	switch m.snap.Status {
	case qa.StatusCompleted:
		b.WriteString(statusOkStyle.Render(fmt.Sprintf("All %d questions answered. Press enter to exit.", len(m.snap.Steps))))
	case qa.StatusFailed:
		b.WriteString(statusErrorStyle.Render(fmt.Sprintf("QA failed (%s): %s", m.snap.Reason, m.snap.Error)))
	case qa.StatusCancelled:
		b.WriteString(statusWarnStyle.Render("Cancelled."))
	default:
		b.WriteString(m.renderCurrent())
	}

	if m.busy {
		b.WriteString("\n\n" + m.spinner.View() + " Waiting for the server...")
	}
	if m.err != "" {
		b.WriteString("\n\n" + statusErrorStyle.Render("✗ "+m.err))
	}
	b.WriteString(helpStyle.Render(m.help.View(keys)))
	return appStyle.Render(b.String())
}

func (m Model) renderCurrent() string {
	step, ok := m.snap.CurrentStep()
	if !ok {
		return hintStyle.Render("Waiting for the first question.")
	}
	q := step.Question
	var b strings.Builder
	b.WriteString(idStyle.Render(fmt.Sprintf("Question %d · %s", step.Index+1, q.ID)) + "\n")
	b.WriteString(questionStyle.Render(ui.PlainText(q.Description)) + "\n")
	for _, h := range q.Hints {
		b.WriteString(hintStyle.Render("• "+ui.PlainText(h)) + "\n")
	}
	b.WriteString("\n")
	switch {
	case step.Editable && m.editor != nil:
		b.WriteString(m.editor.View())
	case step.Submitted:
		b.WriteString(statusWarnStyle.Render("Answer sent. Press enter to ask for the next question."))
	}
	return questionBorderStyle.Render(b.String())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
