package commands

import (
	"context"
	"fmt"

	"m2kqa/internal/output"
	"m2kqa/internal/ui"
)

// Version information, set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

type versionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Date          string `json:"date"`
	Server        string `json:"server,omitempty"`
	ServerURL     string `json:"serverUrl,omitempty"`
	MinServer     string `json:"minServerVersion,omitempty"`
	ServerChecked bool   `json:"serverChecked,omitempty"`
}

// RunVersion prints the m2kqa version. With check set it also asks the
// configured server for its version and fails when it is older than
// min_server_version.
func RunVersion(ctx context.Context, check bool) error {
	info := versionInfo{Version: Version, Commit: Commit, Date: Date}
	if check {
		cfg, client, err := loadClient()
		if err != nil {
			return err
		}
		info.ServerURL = cfg.Server
		info.MinServer = cfg.MinServerVersion
		got, err := client.CheckCompatible(ctx, cfg.MinServerVersion)
		if err != nil {
			return fmt.Errorf("check %s: %w", cfg.Server, err)
		}
		info.Server = got
		info.ServerChecked = true
	}
	output.Print(info, func() {
		fmt.Fprintf(ui.Out, "m2kqa version %s (commit %s, built %s)\n", Version, Commit, Date)
		if info.ServerChecked {
			ui.ShowSuccess("Move2Kube %s at %s is compatible", info.Server, info.ServerURL)
		}
	})
	return nil
}
