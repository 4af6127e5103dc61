package cliutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omcteam/teambridge/internal/audit"
	"github.com/omcteam/teambridge/internal/tasks"
	"github.com/omcteam/teambridge/internal/usage"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <team>",
	Short: "Render and save the team's markdown usage report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamName := args[0]
		repoRoot, err := projectRoot()
		if err != nil {
			return err
		}
		tRoot, err := tasksRoot()
		if err != nil {
			return err
		}

		tracker := usage.New(repoRoot)
		usageReport, err := tracker.GenerateUsageReport(teamName)
		if err != nil {
			return err
		}

		auditLog := audit.New(repoRoot)
		events, err := auditLog.ReadAuditLog(teamName, audit.ReadFilter{})
		if err != nil {
			return err
		}
		activity := usage.ActivityLog(events, "", "", "", 0)

		outcomes, err := taskOutcomes(tRoot, teamName)
		if err != nil {
			return err
		}

		generatedAt := usage.NowRFC3339()
		rendered := usage.GenerateTeamReport(teamName, usageReport, outcomes, activity, generatedAt)

		path, err := usage.SaveTeamReport(repoRoot, teamName, rendered, generatedAt)
		if err != nil {
			return err
		}

		fmt.Print(rendered)
		fmt.Printf("\nSaved to %s\n", path)
		return nil
	},
}

func taskOutcomes(tasksRoot, teamName string) ([]usage.TaskOutcome, error) {
	store := tasks.NewStore(tasksRoot)
	ids, err := store.ListTaskIds(teamName)
	if err != nil {
		return nil, err
	}
	outcomes := make([]usage.TaskOutcome, 0, len(ids))
	for _, id := range ids {
		t, err := store.ReadTask(teamName, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		worker := t.ClaimedBy
		if worker == "" {
			worker = t.Owner
		}
		outcomes = append(outcomes, usage.TaskOutcome{TaskID: t.ID, Status: string(t.Status), Worker: worker})
	}
	return outcomes, nil
}
