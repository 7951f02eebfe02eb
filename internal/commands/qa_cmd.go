package commands

import (
	"context"
	"fmt"

	"m2kqa/internal/output"
	"m2kqa/internal/qa"
	"m2kqa/internal/ui"
)

// RunQA answers the questions of an existing transformation run.
func RunQA(ctx context.Context, run qa.RunID) error {
	if !run.Valid() {
		return fmt.Errorf("workspace, project and output ids are required")
	}
	cfg, client, err := loadClient()
	if err != nil {
		return err
	}

	ui.ShowHeader("Move2Kube QA")
	ui.ShowRun(run.WorkspaceID, run.ProjectID, run.OutputID)

	snap, err := runWizard(ctx, client, run, cfg.SessionOptions())
	if err != nil {
		if snap.SubmittedCount() > 0 {
			ui.ShowWarning("%d of the answers were already sent", snap.SubmittedCount())
		}
		return fmt.Errorf("qa for %s: %w", run, err)
	}
	output.PrintSteps(ui.Out, snap)
	return nil
}
