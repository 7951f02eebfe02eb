package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/bndr/gotabulate"

	"m2kqa/internal/qa"
)

// StepRow is the printable form of one QA step.
type StepRow struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Answer   string `json:"answer"`
	Question string `json:"question"`
}

// StepRows flattens the steps of a snapshot. Secret answers print as stars.
func StepRows(snap qa.Snapshot) []StepRow {
	rows := make([]StepRow, 0, len(snap.Steps))
	for _, st := range snap.Steps {
		q := st.Question
		rows = append(rows, StepRow{
			Index:    st.Index,
			ID:       q.ID,
			Type:     q.Kind.String(),
			Answer:   FormatAnswer(q.Answer, st.Redacted),
			Question: firstLine(q.Description),
		})
	}
	return rows
}

// FormatAnswer renders an answer on one line.
func FormatAnswer(a qa.Answer, redacted bool) string {
	switch v := a.(type) {
	case qa.PasswordAnswer:
		if redacted || v != "" {
			return "********"
		}
		return ""
	case qa.MultiSelectAnswer:
		return strings.Join(v, ", ")
	case qa.ConfirmAnswer:
		if v {
			return "yes"
		}
		return "no"
	case qa.MultiLineInputAnswer:
		return firstLine(string(v))
	case nil:
		return ""
	}
	return fmt.Sprint(a)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// PrintSteps writes the steps as a table, or as JSON in JSON mode.
func PrintSteps(w io.Writer, snap qa.Snapshot) {
	rows := StepRows(snap)
	if JSONMode {
		Print(struct {
			Run    qa.RunID  `json:"run"`
			Status qa.Status `json:"status"`
			Steps  []StepRow `json:"steps"`
		}{snap.Run, snap.Status, rows}, func() {})
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No questions were asked.")
		return
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{fmt.Sprintf("%2d", r.Index+1), r.ID, r.Type, r.Answer}
	}
	t := gotabulate.Create(cells)
	t.SetHeaders([]string{"#", "Question", "Type", "Answer"})
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(60)
	fmt.Fprintln(w, t.Render("simple"))
}
