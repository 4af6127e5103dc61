package cliutil

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omcteam/teambridge/internal/heartbeat"
	"github.com/omcteam/teambridge/internal/registry"
	"github.com/omcteam/teambridge/internal/rosterconfig"
	"github.com/omcteam/teambridge/internal/team"
	"github.com/omcteam/teambridge/internal/worktree"
)

var mergeBaseBranch string

func init() {
	mergeCmd.Flags().StringVar(&mergeBaseBranch, "base", "", "Base branch to merge into (defaults to \"main\")")
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge <team>",
	Short: "Merge every worker's branch back into the base branch, in order",
	Long: `merge checks out the base branch and attempts a non-fast-forward merge of
each registered worker's branch in turn, stopping at the first conflict to
avoid cascading conflict exposure across workers.`,
	Args: cobra.ExactArgs(1),
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

		base := mergeBaseBranch
		if base == "" {
			base = rosterconfig.DefaultBaseBranch
		}

		reg := registry.New(teamsRoot, repoRoot)
		hb := heartbeat.New(teamsRoot)
		members, err := team.GetTeamMembers(reg, hb, teamName, 0)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return fmt.Errorf("merge: no registered members for team %s", teamName)
		}

		workers := make([]string, 0, len(members))
		for _, m := range members {
			workers = append(workers, m.Name)
		}

		results := worktree.MergeAllWorkerBranches(teamName, workers, base, repoRoot)
		var failed bool
		for _, r := range results {
			switch {
			case r.Err != nil && len(r.Conflicts) > 0:
				failed = true
				fmt.Fprintf(os.Stderr, "  ✗ %-20s conflict: %v\n", r.Worker, r.Conflicts)
			case r.Err != nil:
				failed = true
				fmt.Fprintf(os.Stderr, "  ✗ %-20s %s\n", r.Worker, r.Err)
			default:
				fmt.Printf("  ✓ %-20s merged as %s\n", r.Worker, short(r.CommitHash))
			}
		}
		if failed {
			return fmt.Errorf("merge: stopped after a failed worker merge")
		}
		return nil
	},
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
