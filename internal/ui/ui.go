package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Out is where the Show helpers write. Commands that speak MCP on stdout
// point it at stderr.
var Out io.Writer = os.Stdout

func ShowHeader(title string) {
	fmt.Fprintf(Out, " %s\n", strings.Repeat("─", len(title)+2))
	fmt.Fprintf(Out, " %s\n", title)
	fmt.Fprintf(Out, " %s\n", strings.Repeat("─", len(title)+2))
}

// ShowRun prints the transformation run a command is working on.
func ShowRun(workspace, project, output string) {
	fmt.Fprintf(Out, "  Workspace: %s\n", workspace)
	fmt.Fprintf(Out, "  Project:   %s\n", project)
	fmt.Fprintf(Out, "  Output:    %s\n", output)
}

func ShowLoading(format string, args ...interface{}) {
	fmt.Fprintf(Out, " %s", fmt.Sprintf(format, args...))
	for i := 0; i < 3; i++ {
		fmt.Fprint(Out, ".")
	}
	fmt.Fprintln(Out)
}

func ShowSuccess(format string, args ...interface{}) {
	fmt.Fprintf(Out, " ✓ %s\n", fmt.Sprintf(format, args...))
}

func ShowWarning(format string, args ...interface{}) {
	fmt.Fprintf(Out, " ! %s\n", fmt.Sprintf(format, args...))
}
