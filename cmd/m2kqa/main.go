package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"m2kqa/internal/commands"
	"m2kqa/internal/config"
	"m2kqa/internal/output"
	"m2kqa/internal/ui"
)

var (
	jsonFlag   bool
	plainFlag  bool
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:           "m2kqa",
	Short:         "Answer Move2Kube transformation questions",
	Long:          "A CLI and local server that walk through the questions Move2Kube asks during a transformation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&plainFlag, "plain", false, "Ask questions line by line instead of the full-screen wizard")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default "+config.ConfigPath+")")

	rootCmd.AddCommand(commands.QACmd)
	rootCmd.AddCommand(commands.TransformCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.MCPCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
	rootCmd.AddCommand(commands.CompletionCmd)
}

func main() {
	// Propagate global flags before execution
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		output.JSONMode = jsonFlag
		commands.PlainMode = plainFlag
		if configFlag != "" {
			config.ConfigPath = configFlag
		}
		// Keep stdout for the JSON document.
		if jsonFlag {
			ui.Out = os.Stderr
		}
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		output.PrintError(err)
	}
}
