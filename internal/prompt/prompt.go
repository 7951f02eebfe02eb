// Package prompt renders QA questions on a plain terminal, one line at a time.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/howeyc/gopass"
	"github.com/peterh/liner"

	"m2kqa/internal/qa"
	"m2kqa/internal/ui"
)

// ErrAborted is returned when the user interrupts a prompt (Ctrl-C / Ctrl-D).
var ErrAborted = errors.New("prompt aborted")

// LineReader reads user input one line at a time.
type LineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

// Terminal is a LineReader on the process terminal. Lines go through liner,
// passwords through gopass.
type Terminal struct {
	line *liner.State
}

// NewTerminal takes over the terminal until Close.
func NewTerminal() *Terminal {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &Terminal{line: line}
}

func (t *Terminal) Close() error { return t.line.Close() }

func (t *Terminal) Prompt(p string) (string, error) {
	s, err := t.line.Prompt(p)
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) != "" {
		t.line.AppendHistory(s)
	}
	return s, nil
}

func (t *Terminal) PasswordPrompt(p string) (string, error) {
	b, err := gopass.GetPasswdPrompt(p, true, os.Stdin, os.Stdout)
	if errors.Is(err, gopass.ErrInterrupted) || errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Ask shows q on w and reads an answer from r. Empty input keeps the
// question's current answer. Invalid input is reported and asked again.
func Ask(w io.Writer, r LineReader, q *qa.Question) (qa.Answer, error) {
	if _, err := qa.Resolve(q.Kind); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "\n? %s\n", ui.PlainText(q.Description))
	for _, h := range q.Hints {
		fmt.Fprintf(w, "  hint: %s\n", ui.PlainText(h))
	}
	for {
		a, err := askOnce(w, r, q)
		if err == nil {
			if cerr := qa.CheckAnswer(q, a); cerr != nil {
				err = cerr
			} else {
				return a, nil
			}
		}
		if errors.Is(err, ErrAborted) || !errors.Is(err, errInvalid) && !errors.Is(err, qa.ErrAnswerShape) {
			return nil, err
		}
		fmt.Fprintf(w, "  %v\n", err)
	}
}

var errInvalid = errors.New("invalid input")

func askOnce(w io.Writer, r LineReader, q *qa.Question) (qa.Answer, error) {
	switch cur := q.Answer.(type) {
	case qa.SelectAnswer:
		return askSelect(w, r, q, cur)
	case qa.MultiSelectAnswer:
		return askMultiSelect(w, r, q, cur)
	case qa.ConfirmAnswer:
		return askConfirm(r, cur)
	case qa.InputAnswer:
		s, err := r.Prompt(withDefault("> ", string(cur)))
		if err != nil {
			return nil, err
		}
		if s == "" {
			return cur, nil
		}
		return qa.InputAnswer(s), nil
	case qa.MultiLineInputAnswer:
		return askMultiLine(w, r, cur)
	case qa.PasswordAnswer:
		label := "Password: "
		if cur != "" {
			label = "Password (enter keeps the current one): "
		}
		s, err := r.PasswordPrompt(label)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return cur, nil
		}
		return qa.PasswordAnswer(s), nil
	}
	return nil, fmt.Errorf("%w: no answer for %v question", qa.ErrMalformed, q.Kind)
}

func withDefault(p, def string) string {
	if def == "" {
		return p
	}
	return fmt.Sprintf("[%s] %s", def, p)
}

// pick maps "2" or an option value to the option.
func pick(options []string, s string) (string, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	if slices.Contains(options, s) {
		return s, true
	}
	return "", false
}

func askSelect(w io.Writer, r LineReader, q *qa.Question, cur qa.SelectAnswer) (qa.Answer, error) {
	for i, opt := range q.Options {
		mark := " "
		if opt == string(cur) {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %d: %s\n", mark, i+1, opt)
	}
	s, err := r.Prompt(withDefault(fmt.Sprintf("Select [1-%d]: ", len(q.Options)), string(cur)))
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return cur, nil
	}
	opt, ok := pick(q.Options, s)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an option", errInvalid, s)
	}
	return qa.SelectAnswer(opt), nil
}

// splitList splits comma separated picks. Option names may contain spaces.
func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func askMultiSelect(w io.Writer, r LineReader, q *qa.Question, cur qa.MultiSelectAnswer) (qa.Answer, error) {
	for i, opt := range q.Options {
		box := "[ ]"
		if slices.Contains(cur, opt) {
			box = "[x]"
		}
		fmt.Fprintf(w, "  %s %d: %s\n", box, i+1, opt)
	}
	s, err := r.Prompt(fmt.Sprintf("Select [1-%d, ...] (enter keeps, - for none): ", len(q.Options)))
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return cur, nil
	case "-":
		return qa.MultiSelectAnswer{}, nil
	}
	selected := qa.MultiSelectAnswer{}
	for _, field := range splitList(s) {
		opt, ok := pick(q.Options, field)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an option", errInvalid, field)
		}
		if !slices.Contains(selected, opt) {
			selected = append(selected, opt)
		}
	}
	// Keep option order rather than typing order.
	ordered := qa.MultiSelectAnswer{}
	for _, opt := range q.Options {
		if slices.Contains(selected, opt) {
			ordered = append(ordered, opt)
		}
	}
	return ordered, nil
}

func askConfirm(r LineReader, cur qa.ConfirmAnswer) (qa.Answer, error) {
	hint := "[y/N]: "
	if cur {
		hint = "[Y/n]: "
	}
	s, err := r.Prompt(hint)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return cur, nil
	case "y", "yes":
		return qa.ConfirmAnswer(true), nil
	case "n", "no":
		return qa.ConfirmAnswer(false), nil
	}
	return nil, fmt.Errorf("%w: answer y or n", errInvalid)
}

func askMultiLine(w io.Writer, r LineReader, cur qa.MultiLineInputAnswer) (qa.Answer, error) {
	if cur != "" {
		fmt.Fprintf(w, "  current value:\n")
		for _, l := range strings.Split(string(cur), "\n") {
			fmt.Fprintf(w, "  | %s\n", l)
		}
	}
	fmt.Fprintf(w, "  Enter lines, finish with an empty line (an empty first line keeps the current value).\n")
	var lines []string
	for {
		s, err := r.Prompt("| ")
		if err != nil {
			return nil, err
		}
		if s == "" {
			break
		}
		lines = append(lines, s)
	}
	if len(lines) == 0 {
		return cur, nil
	}
	return qa.MultiLineInputAnswer(strings.Join(lines, "\n")), nil
}

// Confirm asks a yes/no question outside of a QA step.
func Confirm(r LineReader, question string, def bool) (bool, error) {
	hint := " [y/N]: "
	if def {
		hint = " [Y/n]: "
	}
	for {
		s, err := r.Prompt(question + hint)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
