package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"m2kqa/internal/qa"
)

// editor is the input widget for one question.
type editor interface {
	Update(msg tea.KeyMsg) (editor, tea.Cmd)
	View() string
	Answer() qa.Answer
	// Multiline editors keep enter for themselves.
	Multiline() bool
}

// newEditor builds the widget for q, seeded with q's current answer.
func newEditor(q *qa.Question) (editor, error) {
	capab, err := qa.Resolve(q.Kind)
	if err != nil {
		return nil, err
	}
	switch {
	case capab.Boolean:
		v, _ := q.Answer.(qa.ConfirmAnswer)
		return &confirmEditor{value: bool(v)}, nil
	case capab.Choices:
		return newChoiceEditor(q, capab.Multiple), nil
	case capab.Multiline:
		v, _ := q.Answer.(qa.MultiLineInputAnswer)
		ta := textarea.New()
		ta.ShowLineNumbers = false
		ta.SetWidth(60)
		ta.SetHeight(6)
		ta.SetValue(string(v))
		ta.Focus()
		return &areaEditor{area: ta}, nil
	}
	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Width = 50
	if capab.Secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
		v, _ := q.Answer.(qa.PasswordAnswer)
		ti.SetValue(string(v))
	} else {
		v, _ := q.Answer.(qa.InputAnswer)
		ti.SetValue(string(v))
	}
	ti.Focus()
	return &lineEditor{input: ti, secret: capab.Secret}, nil
}

type lineEditor struct {
	input  textinput.Model
	secret bool
}

func (e *lineEditor) Update(msg tea.KeyMsg) (editor, tea.Cmd) {
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return e, cmd
}

func (e *lineEditor) View() string    { return e.input.View() }
func (e *lineEditor) Multiline() bool { return false }

func (e *lineEditor) Answer() qa.Answer {
	if e.secret {
		return qa.PasswordAnswer(e.input.Value())
	}
	return qa.InputAnswer(e.input.Value())
}

type areaEditor struct {
	area textarea.Model
}

func (e *areaEditor) Update(msg tea.KeyMsg) (editor, tea.Cmd) {
	var cmd tea.Cmd
	e.area, cmd = e.area.Update(msg)
	return e, cmd
}

func (e *areaEditor) View() string      { return e.area.View() }
func (e *areaEditor) Multiline() bool   { return true }
func (e *areaEditor) Answer() qa.Answer { return qa.MultiLineInputAnswer(e.area.Value()) }

type confirmEditor struct {
	value bool
}

func (e *confirmEditor) Update(msg tea.KeyMsg) (editor, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		e.value = true
	case "n", "N":
		e.value = false
	case "left", "right", "tab", " ", "h", "l":
		e.value = !e.value
	}
	return e, nil
}

func (e *confirmEditor) View() string {
	yes, no := "  Yes  ", "  No  "
	if e.value {
		yes = cursorStyle.Render("[ Yes ]")
	} else {
		no = cursorStyle.Render("[ No ]")
	}
	return yes + "   " + no
}

func (e *confirmEditor) Multiline() bool   { return false }
func (e *confirmEditor) Answer() qa.Answer { return qa.ConfirmAnswer(e.value) }

// choiceEditor is a cursor list. With multiple set every option has a
// checkbox; otherwise the option under the cursor is the answer once the
// cursor was moved or the seeded answer is one of the options.
type choiceEditor struct {
	options  []string
	cursor   int
	picked   bool
	multiple bool
	checked  map[string]bool
}

func newChoiceEditor(q *qa.Question, multiple bool) *choiceEditor {
	e := &choiceEditor{options: q.Options, multiple: multiple, checked: map[string]bool{}}
	switch v := q.Answer.(type) {
	case qa.SelectAnswer:
		if i := slices.Index(q.Options, string(v)); i >= 0 {
			e.cursor = i
			e.picked = true
		}
	case qa.MultiSelectAnswer:
		for _, s := range v {
			e.checked[s] = true
		}
	}
	return e
}

func (e *choiceEditor) Update(msg tea.KeyMsg) (editor, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if e.cursor > 0 {
			e.cursor--
		}
		e.picked = true
	case key.Matches(msg, keys.Down):
		if e.cursor < len(e.options)-1 {
			e.cursor++
		}
		e.picked = true
	case key.Matches(msg, keys.Toggle) && len(e.options) > 0:
		if !e.multiple {
			e.picked = true
			break
		}
		opt := e.options[e.cursor]
		e.checked[opt] = !e.checked[opt]
	}
	return e, nil
}

func (e *choiceEditor) View() string {
	if len(e.options) == 0 {
		return hintStyle.Render("(no options)")
	}
	var b strings.Builder
	for i, opt := range e.options {
		pointer := "  "
		if i == e.cursor {
			pointer = cursorStyle.Render("> ")
		}
		label := opt
		if e.multiple {
			box := "[ ]"
			if e.checked[opt] {
				box = selectedStyle.Render("[x]")
			}
			label = fmt.Sprintf("%s %s", box, opt)
		} else if i == e.cursor && e.picked {
			label = cursorStyle.Render(opt)
		}
		b.WriteString(pointer + label + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *choiceEditor) Multiline() bool { return false }

func (e *choiceEditor) Answer() qa.Answer {
	if e.multiple {
		out := qa.MultiSelectAnswer{}
		for _, opt := range e.options {
			if e.checked[opt] {
				out = append(out, opt)
			}
		}
		return out
	}
	if len(e.options) == 0 || !e.picked {
		return qa.SelectAnswer("")
	}
	return qa.SelectAnswer(e.options[e.cursor])
}
