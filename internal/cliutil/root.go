// Package cliutil implements teamctl, the lead-side operator CLI: seeding a
// team from a roster manifest, rendering live status, driving merges,
// generating usage reports, and validating a worker config file. Modeled on
// the teacher's internal/cli package — one cobra command per operator
// action, persistent flags on the root command, Execute() as the sole
// exported entry point cmd/teamctl calls.
package cliutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var projectFlag string

var rootCmd = &cobra.Command{
	Use:   "teamctl",
	Short: "Operate an MCP Team Bridge team",
	Long: `teamctl is the lead-side operator CLI for a Team Bridge: seed a team's
workers from a roster manifest, watch live status, drive merges back to a
base branch, and generate usage reports.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project root (defaults to the enclosing git repository)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("teamctl %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// projectRoot resolves --project, defaulting to the git repository
// enclosing the current directory.
func projectRoot() (string, error) {
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root := findGitRoot(cwd)
	if root == "" {
		return "", fmt.Errorf("teamctl: could not find a git repository root from %s (pass --project)", cwd)
	}
	return root, nil
}

// userRoot is the user-scoped teams directory (spec.md §3: "<home>/.claude/teams/"),
// the root for channels, the registry, and heartbeats.
func userRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("teamctl: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "teams"), nil
}

// tasksRoot is the user-scoped task queue directory (spec.md §3:
// "<home>/.claude/tasks/"), distinct from userRoot: the task store and the
// channels/registry/heartbeat stores live under separate subtrees of
// .claude/.
func tasksRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("teamctl: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "tasks"), nil
}
