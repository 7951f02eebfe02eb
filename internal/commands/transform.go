package commands

import (
	"context"
	"fmt"
	"os"

	"m2kqa/internal/output"
	"m2kqa/internal/qa"
	"m2kqa/internal/ui"
)

type transformResult struct {
	Run    qa.RunID         `json:"run"`
	Output string           `json:"output"`
	Bytes  int64            `json:"bytes"`
	Steps  []output.StepRow `json:"steps"`
}

// RunTransform starts a transformation, answers its questions, waits for the
// output and saves it to outPath.
func RunTransform(ctx context.Context, workspace, project, outPath, planPath string) error {
	cfg, client, err := loadClient()
	if err != nil {
		return err
	}
	var plan []byte
	if planPath != "" {
		if plan, err = os.ReadFile(planPath); err != nil {
			return fmt.Errorf("read plan: %w", err)
		}
	}

	ui.ShowHeader("Move2Kube Transform")
	ui.ShowLoading("Starting transformation")
	run, err := client.StartTransformation(ctx, workspace, project, plan)
	if err != nil {
		return err
	}
	ui.ShowRun(run.WorkspaceID, run.ProjectID, run.OutputID)

	snap, err := runWizard(ctx, client, run, cfg.SessionOptions())
	if err != nil {
		return fmt.Errorf("qa for %s: %w", run, err)
	}
	ui.ShowSuccess("Answered %d questions", len(snap.Steps))

	ui.ShowLoading("Waiting for the transformation to finish")
	if err := client.WaitOutput(ctx, run, cfg.OutputPollInterval); err != nil {
		return err
	}

	if outPath == "" {
		outPath = run.OutputID + ".zip"
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	n, err := client.DownloadOutput(ctx, run, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return err
	}

	output.Print(transformResult{Run: run, Output: outPath, Bytes: n, Steps: output.StepRows(snap)}, func() {
		output.PrintSteps(ui.Out, snap)
		ui.ShowSuccess("Saved %s (%d bytes)", outPath, n)
	})
	return nil
}
