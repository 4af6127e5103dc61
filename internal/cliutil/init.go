package cliutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/omcteam/teambridge/internal/config"
	"github.com/omcteam/teambridge/internal/fsutil"
	"github.com/omcteam/teambridge/internal/names"
	"github.com/omcteam/teambridge/internal/rosterconfig"
	"github.com/omcteam/teambridge/internal/worktree"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <manifest>",
	Short: "Seed a team's worktrees, worker configs, and sessions from a roster manifest",
	Long: `init reads a teambridge.yaml roster manifest and, for every worker listed:

  - creates a dedicated git branch + worktree forking from the roster's base branch
  - writes that worker's BridgeConfig JSON file under the user-scoped teams directory
  - spawns the bridge daemon inside a detached terminal-multiplexer session`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, errs := rosterconfig.Load(args[0])
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "Error: %s\n", e)
			}
			return fmt.Errorf("%d manifest error(s)", len(errs))
		}

		repoRoot, err := projectRoot()
		if err != nil {
			return err
		}
		teamsRoot, err := userRoot()
		if err != nil {
			return err
		}
		bridgeBin, err := bridgeBinaryPath()
		if err != nil {
			return err
		}

		host := names.NewSessionHost()
		for _, w := range roster.Workers {
			record, err := worktree.CreateWorkerWorktree(repoRoot, roster.TeamName, w.Name, roster.BaseBranch)
			if err != nil {
				return fmt.Errorf("init: worker %s: %w", w.Name, err)
			}
			fmt.Printf("  worktree %s (%s)\n", record.Path, record.Branch)

			cfg := &config.BridgeConfig{
				TeamName:         roster.TeamName,
				WorkerName:       w.Name,
				Provider:         w.Provider,
				Model:            w.Model,
				WorkingDirectory: record.Path,
				Permissions:      w.Permissions,
			}
			configPath, err := writeWorkerConfig(teamsRoot, roster.TeamName, w.Name, cfg)
			if err != nil {
				return fmt.Errorf("init: worker %s: writing config: %w", w.Name, err)
			}
			fmt.Printf("  config   %s\n", configPath)

			if err := host.SpawnBridgeInSession(roster.TeamName, w.Name, record.Path, bridgeBin, configPath); err != nil {
				return fmt.Errorf("init: worker %s: %w", w.Name, err)
			}
			fmt.Printf("  session  %s\n", sessionLabel(roster.TeamName, w.Name))
		}

		fmt.Println("\nDone.")
		return nil
	},
}

// writeWorkerConfig writes cfg to <teamsRoot>/<team>/<worker>.bridge.json.
// teamsRoot already carries the ".claude" marker config.ResolveConfigPath
// requires, since it is always "<home>/.claude/teams".
func writeWorkerConfig(teamsRoot, team, worker string, cfg *config.BridgeConfig) (string, error) {
	dir := filepath.Join(teamsRoot, team)
	if err := fsutil.EnsureDirWithMode(dir, teamsRoot, fsutil.DirMode); err != nil {
		return "", err
	}
	path := filepath.Join(dir, worker+".bridge.json")
	data, err := marshalConfig(cfg)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// bridgeBinaryPath looks for a "teambridge" binary next to the running
// teamctl executable, falling back to expecting it on PATH, the same
// fallback the teacher's initStatusline uses for its own binary.
func bridgeBinaryPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "teambridge", nil
	}
	sibling := filepath.Join(filepath.Dir(self), "teambridge")
	if _, err := os.Stat(sibling); err == nil {
		return sibling, nil
	}
	return "teambridge", nil
}

func sessionLabel(team, worker string) string {
	name, err := names.SessionName(team, worker)
	if err != nil {
		return team + "/" + worker
	}
	return name
}
