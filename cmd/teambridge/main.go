// Command teambridge is the per-worker daemon: `teambridge --config <path>`
// resolves and validates a BridgeConfig file, then runs the poll loop
// against the filesystem-mediated task queue and channels (spec.md §4.14).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omcteam/teambridge/internal/applog"
	"github.com/omcteam/teambridge/internal/bridge"
	"github.com/omcteam/teambridge/internal/config"
	"github.com/omcteam/teambridge/internal/heartbeat"
	"github.com/omcteam/teambridge/internal/registry"
	"github.com/omcteam/teambridge/internal/worktree"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "teambridge",
	Short: "Run the MCP team bridge worker daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to the worker's BridgeConfig JSON file")
	_ = rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(path string) error {
	applog.Configure(applog.Options{Level: os.Getenv("TEAMBRIDGE_LOG_LEVEL"), JSON: true})

	cfg, errs := config.Load(path)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "teambridge: %s\n", e)
		}
		return fmt.Errorf("%d configuration error(s)", len(errs))
	}

	tasksRoot, teamsRoot, err := resolveRoots()
	if err != nil {
		return err
	}
	// The worker only ever knows its own worktree (workingDirectory); the
	// project-scoped state (.omc/state, .omc/logs) lives at the enclosing
	// repo root the worktree was cut from.
	projectRoot := worktree.ProjectRootFromWorktree(cfg.WorkingDirectory, cfg.TeamName, cfg.WorkerName)

	b := bridge.New(cfg, tasksRoot, teamsRoot, projectRoot)
	log := applog.Logger.With().Str("team", cfg.TeamName).Str("worker", cfg.WorkerName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 7: termination handlers delete the heartbeat and unregister the
	// worker on a best-effort basis, independent of whether the poll loop
	// itself ever observed a shutdown/drain signal file.
	go func() {
		<-ctx.Done()
		_ = registry.New(teamsRoot, projectRoot).UnregisterMcpWorker(cfg.TeamName, cfg.WorkerName)
		_ = heartbeat.New(teamsRoot).DeleteHeartbeat(cfg.TeamName, cfg.WorkerName)
	}()

	if err := b.Run(ctx); err != nil {
		log.Error().Err(err).Msg("bridge exited with error")
		return err
	}
	return nil
}

// resolveRoots derives the two distinct user-scoped filesystem roots from
// $HOME: tasksRoot ("<home>/.claude/tasks") backs the task queue, teamsRoot
// ("<home>/.claude/teams") backs channels, the registry, and heartbeats.
func resolveRoots() (tasksRoot, teamsRoot string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("teambridge: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "tasks"), filepath.Join(home, ".claude", "teams"), nil
}
