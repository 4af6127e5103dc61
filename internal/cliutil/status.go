package cliutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/omcteam/teambridge/internal/heartbeat"
	"github.com/omcteam/teambridge/internal/names"
	"github.com/omcteam/teambridge/internal/registry"
	"github.com/omcteam/teambridge/internal/team"
)

var (
	statusFollow   bool
	statusInterval float64
)

func init() {
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "Live-update status (like watch)")
	statusCmd.Flags().Float64VarP(&statusInterval, "interval", "n", 2.0, "Seconds between updates (with --follow)")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <team>",
	Short: "Show the liveness and current task of each team member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamName := args[0]
		repoRoot, err := projectRoot()
		if err != nil {
			return err
		}
		teamsRoot, err := userRoot()
		if err != nil {
			return err
		}
		reg := registry.New(teamsRoot, repoRoot)
		hb := heartbeat.New(teamsRoot)

		if statusFollow {
			return followStatus(reg, hb, teamName)
		}
		return renderStatus(os.Stdout, reg, hb, teamName)
	},
}

func followStatus(reg *registry.Registry, hb *heartbeat.Store, teamName string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	interval := time.Duration(statusInterval * float64(time.Second))
	var lastOutput string

	for {
		var buf bytes.Buffer
		if err := renderStatus(&buf, reg, hb, teamName); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		output := buf.String()

		if output != lastOutput {
			fmt.Print("\033[H\033[2J")
			fmt.Printf("Every %.1fs: teamctl status %s\n\n", statusInterval, teamName)
			fmt.Print(output)
			lastOutput = output
		}

		select {
		case <-sigCh:
			fmt.Println()
			return nil
		case <-time.After(interval):
		}
	}
}

func renderStatus(w io.Writer, reg *registry.Registry, hb *heartbeat.Store, teamName string) error {
	members, err := team.GetTeamMembers(reg, hb, teamName, 0)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Team Status")
	fmt.Fprintln(w, "──────────────────────────────────────")

	if len(members) == 0 {
		fmt.Fprintln(w, "  (no registered members)")
		return nil
	}

	host := names.NewSessionHost()
	for _, m := range members {
		symbol, color := statusDisplay(m.Status)
		rec, _ := hb.ReadHeartbeat(teamName, m.Name)
		detail := string(m.Status)
		if rec != nil && rec.TaskID != "" {
			detail = fmt.Sprintf("%s, task %s", detail, rec.TaskID)
		}
		if rec != nil && rec.ConsecutiveErrors > 0 {
			detail = fmt.Sprintf("%s, %d consecutive error(s)", detail, rec.ConsecutiveErrors)
		}
		// The heartbeat-absent case projects to "unknown" by design (spec.md
		// §9): the tmux session itself is the one extra signal that can
		// narrow an operator's read on that ambiguity, so surface it here
		// as a display-only annotation rather than folding it back into the
		// status enum.
		if m.Status == team.StatusUnknown {
			if alive, err := host.IsSessionAlive(teamName, m.Name); err == nil {
				if alive {
					detail += " (tmux session alive)"
				} else {
					detail += " (no tmux session)"
				}
			}
		}
		fmt.Fprintf(w, "  %s%s  %-20s  %s%s\n", color, symbol, m.Name, detail, ansiReset)
	}
	return nil
}
