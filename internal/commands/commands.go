package commands

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"m2kqa/internal/config"
	"m2kqa/internal/m2kapi"
	"m2kqa/internal/output"
	"m2kqa/internal/prompt"
	"m2kqa/internal/qa"
	"m2kqa/internal/tui"
	"m2kqa/internal/ui"
)

// PlainMode forces the line prompter even on a terminal.
var PlainMode bool

// newLineReader opens the line prompter. Tests replace it.
var newLineReader = func() (prompt.LineReader, func()) {
	t := prompt.NewTerminal()
	return t, func() { t.Close() }
}

// useTUI reports whether the full-screen wizard can take over the terminal.
var useTUI = func() bool {
	if PlainMode || output.JSONMode {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// loadClient reads the configuration and builds a Move2Kube client from it.
func loadClient() (*config.Config, *m2kapi.Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	client, err := m2kapi.New(m2kapi.Options{
		BaseURL:   cfg.Server,
		Token:     cfg.Token,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: "m2kqa/" + Version,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

// runWizard binds a new session to run and drives it to the end, in the TUI
// or on the line prompter.
func runWizard(ctx context.Context, backend qa.Backend, run qa.RunID, opts qa.Options) (qa.Snapshot, error) {
	s := qa.NewSession(backend, opts)
	if err := s.Bind(run); err != nil {
		return s.Snapshot(), err
	}
	if useTUI() {
		return tui.Run(ctx, s)
	}
	r, closeReader := newLineReader()
	err := prompt.Run(ctx, s, r, ui.Out)
	closeReader()
	return s.Snapshot(), err
}
