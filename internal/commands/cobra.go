package commands

import (
	"os"

	"github.com/spf13/cobra"

	"m2kqa/internal/config"
	"m2kqa/internal/qa"
)

// QACmd answers the questions of a transformation that is already running.
var QACmd = &cobra.Command{
	Use:   "qa <workspace> <project> <output>",
	Short: "Answer the questions of a running transformation",
	Long: `Walk through the questions Move2Kube asks while it transforms a project.

On a terminal a full-screen wizard is shown; with --plain, or when stdin is
not a terminal, questions are asked one line at a time.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunQA(cmd.Context(), qa.RunID{WorkspaceID: args[0], ProjectID: args[1], OutputID: args[2]})
	},
}

// TransformCmd starts a transformation and answers its questions.
var TransformCmd = &cobra.Command{
	Use:   "transform <workspace> <project>",
	Short: "Start a transformation, answer its questions and download the output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		plan, _ := cmd.Flags().GetString("plan")
		return RunTransform(cmd.Context(), args[0], args[1], out, plan)
	},
}

func init() {
	TransformCmd.Flags().StringP("out", "o", "", "File to save the output archive to (default <output-id>.zip)")
	TransformCmd.Flags().String("plan", "", "YAML plan file to send with the transformation")
}

// ServeCmd runs the local session API.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve QA sessions over HTTP, websocket and MCP",
	Long: `Start the local QA server (default :3456).

REST and websocket endpoints live under /sessions and MCP over HTTP under
/mcp/. When stdin is a pipe, MCP is also spoken on stdin/stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		newToken, _ := cmd.Flags().GetBool("new-token")
		return RunServe(cmd.Context(), newToken)
	},
}

func init() {
	ServeCmd.Flags().Bool("new-token", false, "Generate a bearer token and add it to serve.tokens")
}

// MCPCmd speaks MCP on stdin/stdout only.
var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunMCP(cmd.Context())
	},
}

// ConfigCmd is the parent command for configuration management.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "Show or change the m2kqa configuration file",
}

// ConfigShowCmd prints the effective configuration.
var ConfigShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigShow()
	},
}

// ConfigSetCmd changes one key of the configuration file.
var ConfigSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigSet(args[0], args[1])
	},
}

// ConfigPathCmd prints where the configuration file lives.
var ConfigPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		RunConfigPath()
	},
}

func init() {
	ConfigCmd.AddCommand(ConfigShowCmd, ConfigSetCmd, ConfigPathCmd)
}

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show m2kqa version",
	Long:  "Show the version of m2kqa and, with --check, whether the Move2Kube server is compatible",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")
		return RunVersion(cmd.Context(), check)
	},
}

func init() {
	VersionCmd.Flags().Bool("check", false, "Ask the server for its version and check it against min_server_version")
}

// CompletionCmd generates shell completion scripts
var CompletionCmd = &cobra.Command{
	Use:    "completion [bash|zsh|fish|powershell]",
	Short:  "Generate shell completion script",
	Hidden: true,
	Long: `Generate shell completion script for the specified shell.

Usage examples:
  # Bash
  source <(m2kqa completion bash)

  # Zsh
  source <(m2kqa completion zsh)

  # Fish
  m2kqa completion fish | source

  # PowerShell
  m2kqa completion powershell | Out-String | Invoke-Expression`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
