package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// HookRunner executes a shell hook script with the event as JSON on stdin.
type HookRunner struct {
	ScriptPath string
	Timeout    time.Duration
}

// NewHookRunner creates a HookRunner for the given script path.
func NewHookRunner(scriptPath string) *HookRunner {
	return &HookRunner{ScriptPath: scriptPath, Timeout: 30 * time.Second}
}

// Send runs the hook script with n.Event on stdin.
func (h *HookRunner) Send(n Notification) error {
	return h.Execute(n.Event)
}

// Execute runs the hook script, killing it after Timeout.
func (h *HookRunner) Execute(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.ScriptPath)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("hook marshal payload: %w", err)
	}
	cmd.Stdin = strings.NewReader(string(data))

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("hook timed out after %s: %s", h.Timeout, h.ScriptPath)
	}
	if err != nil {
		return fmt.Errorf("hook execution failed: %w (output: %s)", err, string(output))
	}
	return nil
}

// Name returns the name of this notifier.
func (h *HookRunner) Name() string { return "hook" }
