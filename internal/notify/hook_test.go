package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to create script: %v", err)
	}
	return path
}

func TestHookRunner_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on Windows")
	}

	outputFile := filepath.Join(t.TempDir(), "output.json")
	runner := NewHookRunner(writeScript(t, "hook.sh", "cat > "+outputFile+"\n"))
	ev := Event{
		SessionID:  "qa-1",
		Run:        "ws/proj/out",
		Status:     "awaiting_answer",
		Step:       2,
		QuestionID: "move2kube.services",
		Timestamp:  "2026-01-01T00:00:00Z",
	}

	if err := runner.Send(Notification{Title: "t", Event: ev}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("failed to read output file: %v", err)
	}
	var received Event
	if err := json.Unmarshal(data, &received); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if received != ev {
		t.Errorf("received %+v, want %+v", received, ev)
	}
}

func TestHookRunner_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on Windows")
	}

	runner := NewHookRunner(writeScript(t, "slow.sh", "sleep 60\n"))
	runner.Timeout = 100 * time.Millisecond

	err := runner.Execute(Event{SessionID: "qa-1", Status: "completed"})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") && !strings.Contains(err.Error(), "killed") {
		t.Errorf("expected timeout-related error, got: %v", err)
	}
}

func TestHookRunner_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script func(t *testing.T) string
	}{
		{"missing script", func(t *testing.T) string { return "/nonexistent/path/hook.sh" }},
		{"exit status", func(t *testing.T) string {
			if runtime.GOOS == "windows" {
				t.Skip("shell scripts not supported on Windows")
			}
			return writeScript(t, "fail.sh", "exit 1\n")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewHookRunner(tt.script(t))
			if err := runner.Execute(Event{Status: "failed", Error: "unauthorized"}); err == nil {
				t.Fatal("expected an error, got nil")
			}
		})
	}
}
