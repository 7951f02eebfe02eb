package output

import (
	"bytes"
	"strings"
	"testing"

	"m2kqa/internal/qa"
)

func TestFormatAnswer(t *testing.T) {
	tests := []struct {
		name     string
		a        qa.Answer
		redacted bool
		want     string
	}{
		{"multi", qa.MultiSelectAnswer{"a", "b"}, false, "a, b"},
		{"empty multi", qa.MultiSelectAnswer{}, false, ""},
		{"confirm yes", qa.ConfirmAnswer(true), false, "yes"},
		{"confirm no", qa.ConfirmAnswer(false), false, "no"},
		{"select", qa.SelectAnswer("B"), false, "B"},
		{"multiline", qa.MultiLineInputAnswer("one\ntwo"), false, "one …"},
		{"password redacted", qa.PasswordAnswer(""), true, "********"},
		{"password unset", qa.PasswordAnswer(""), false, ""},
		{"nil", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAnswer(tt.a, tt.redacted); got != tt.want {
				t.Errorf("FormatAnswer = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintSteps(t *testing.T) {
	snap := qa.Snapshot{
		Status: qa.StatusCompleted,
		Steps: []qa.StepView{
			{Index: 0, Question: &qa.Question{ID: "svc.select", Kind: qa.KindSelect, Answer: qa.SelectAnswer("web")}, Submitted: true},
			{Index: 1, Question: &qa.Question{ID: "registry.pass", Kind: qa.KindPassword, Answer: qa.PasswordAnswer("")}, Submitted: true, Redacted: true},
		},
	}
	var buf bytes.Buffer
	PrintSteps(&buf, snap)
	out := buf.String()
	for _, want := range []string{"svc.select", "Select", "web", "registry.pass", "********"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintStepsEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintSteps(&buf, qa.Snapshot{})
	if !strings.Contains(buf.String(), "No questions") {
		t.Errorf("got %q", buf.String())
	}
}
