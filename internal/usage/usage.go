// Package usage records per-task resource usage and renders the aggregate
// team report (spec.md §4.10).
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/omcteam/teambridge/internal/audit"
	"github.com/omcteam/teambridge/internal/fsutil"
	"github.com/omcteam/teambridge/internal/names"
)

// Record is one completed (or failed) task's usage line.
type Record struct {
	TaskID        string `json:"taskId"`
	WorkerName    string `json:"workerName"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	StartedAt     string `json:"startedAt"`
	CompletedAt   string `json:"completedAt"`
	WallClockMs   int64  `json:"wallClockMs"`
	PromptChars   int64  `json:"promptChars"`
	ResponseChars int64  `json:"responseChars"`
}

// Tracker is rooted at a project directory (spec.md §3:
// "<project>/.omc/logs/team-usage-{team}.jsonl").
type Tracker struct {
	ProjectRoot string
}

// New returns a Tracker rooted at projectRoot.
func New(projectRoot string) *Tracker {
	return &Tracker{ProjectRoot: projectRoot}
}

func (t *Tracker) path(team string) string {
	return filepath.Join(t.ProjectRoot, ".omc", "logs", "team-usage-"+team+".jsonl")
}

// RecordTaskUsage appends record as one JSON line.
func (t *Tracker) RecordTaskUsage(team string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return fsutil.AppendFileWithMode(t.path(team), t.ProjectRoot, data, fsutil.FileMode)
}

// MeasureCharCounts returns the byte sizes of the prompt and output files,
// 0 for either that is missing (a failed spawn never wrote one).
func MeasureCharCounts(promptPath, outputPath string) (promptChars, responseChars int64) {
	if info, err := os.Stat(promptPath); err == nil {
		promptChars = info.Size()
	}
	if info, err := os.Stat(outputPath); err == nil {
		responseChars = info.Size()
	}
	return
}

// WorkerSummary is one row of the "Worker Performance" report table.
type WorkerSummary struct {
	WorkerName     string
	TasksCompleted int
	TotalWallClock int64
	TotalPrompt    int64
	TotalResponse  int64
}

// Report is the aggregated data generateTeamReport renders.
type Report struct {
	Team           string
	TotalTasks     int
	TotalWallClock int64
	TotalPrompt    int64
	TotalResponse  int64
	Workers        []WorkerSummary
	GeneratedAt    string
}

// GenerateUsageReport reads every usage record for team and aggregates
// per-worker sums.
func (t *Tracker) GenerateUsageReport(team string) (*Report, error) {
	records, err := t.readAll(team)
	if err != nil {
		return nil, err
	}

	byWorker := map[string]*WorkerSummary{}
	var order []string
	report := &Report{Team: team}
	for _, r := range records {
		report.TotalTasks++
		report.TotalWallClock += r.WallClockMs
		report.TotalPrompt += r.PromptChars
		report.TotalResponse += r.ResponseChars

		w, ok := byWorker[r.WorkerName]
		if !ok {
			w = &WorkerSummary{WorkerName: r.WorkerName}
			byWorker[r.WorkerName] = w
			order = append(order, r.WorkerName)
		}
		w.TasksCompleted++
		w.TotalWallClock += r.WallClockMs
		w.TotalPrompt += r.PromptChars
		w.TotalResponse += r.ResponseChars
	}

	sort.Strings(order)
	for _, name := range order {
		report.Workers = append(report.Workers, *byWorker[name])
	}
	return report, nil
}

func (t *Tracker) readAll(team string) ([]Record, error) {
	data, err := os.ReadFile(t.path(team))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// TaskOutcome is one row of the "Task Results" report table.
type TaskOutcome struct {
	TaskID string
	Status string
	Worker string
}

// ActivityEntry is the activity-log view's projection of one audit event.
type ActivityEntry struct {
	Timestamp string
	Actor     string
	Action    string
	Target    string
	Details   string
	Category  string
}

// categoryFor maps an audit event type to its activity-log category
// (spec.md §4.10 "fixed mapping table").
func categoryFor(eventType string) string {
	switch eventType {
	case audit.EventTaskClaimed, audit.EventTaskStarted, audit.EventTaskCompleted,
		audit.EventTaskFailed, audit.EventTaskPermanentlyFailed:
		return "task"
	case audit.EventInboxRotated, audit.EventOutboxRotated:
		return "message"
	case audit.EventPermissionViolation, audit.EventPermissionAudit:
		return "file"
	case audit.EventBridgeStart, audit.EventBridgeShutdown, audit.EventWorkerQuarantined,
		audit.EventWorkerIdle, audit.EventShutdownReceived, audit.EventShutdownAck:
		return "lifecycle"
	case audit.EventCliTimeout, audit.EventCliError:
		return "error"
	default:
		return "lifecycle"
	}
}

// ActivityLog converts audit events into the activity-log view, optionally
// filtered by category/actor/since, and capped at limit entries (0 means
// unlimited).
func ActivityLog(events []audit.Event, category, actor, since string, limit int) []ActivityEntry {
	var out []ActivityEntry
	for _, e := range events {
		cat := categoryFor(e.Type)
		if category != "" && category != cat {
			continue
		}
		if actor != "" && actor != e.WorkerName {
			continue
		}
		if since != "" && e.Timestamp < since {
			continue
		}
		out = append(out, ActivityEntry{
			Timestamp: e.Timestamp,
			Actor:     e.WorkerName,
			Action:    e.Type,
			Target:    e.TaskID,
			Details:   formatDetail(e.Detail),
			Category:  cat,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func formatDetail(detail map[string]interface{}) string {
	if len(detail) == 0 {
		return ""
	}
	var parts []string
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, " ")
}

// GenerateTeamReport renders the full markdown document: Summary, Task
// Results, Worker Performance, Activity Timeline (last 50 entries), Usage
// Totals, and a generation timestamp.
func GenerateTeamReport(team string, usage *Report, outcomes []TaskOutcome, activity []ActivityEntry, generatedAt string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Team Report: %s\n\n", team)
	fmt.Fprintf(&b, "Generated at: %s\n\n", generatedAt)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total tasks: %d\n", usage.TotalTasks)
	fmt.Fprintf(&b, "- Total wall-clock: %d ms\n", usage.TotalWallClock)
	fmt.Fprintf(&b, "- Workers reporting usage: %d\n\n", len(usage.Workers))

	b.WriteString("## Task Results\n\n")
	b.WriteString("| Task ID | Status | Worker |\n|---|---|---|\n")
	for _, o := range outcomes {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", o.TaskID, o.Status, o.Worker)
	}
	b.WriteString("\n")

	b.WriteString("## Worker Performance\n\n")
	b.WriteString("| Worker | Tasks Completed | Wall Clock (ms) | Prompt Chars | Response Chars |\n|---|---|---|---|---|\n")
	for _, w := range usage.Workers {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n", w.WorkerName, w.TasksCompleted, w.TotalWallClock, w.TotalPrompt, w.TotalResponse)
	}
	b.WriteString("\n")

	b.WriteString("## Activity Timeline\n\n")
	tail := activity
	if len(tail) > 50 {
		tail = tail[len(tail)-50:]
	}
	for _, a := range tail {
		fmt.Fprintf(&b, "- [%s] %s %s %s %s\n", a.Timestamp, a.Actor, a.Action, a.Target, a.Details)
	}
	b.WriteString("\n")

	b.WriteString("## Usage Totals\n\n")
	fmt.Fprintf(&b, "- Total prompt chars: %d\n", usage.TotalPrompt)
	fmt.Fprintf(&b, "- Total response chars: %d\n", usage.TotalResponse)

	return b.String()
}

// SaveTeamReport writes report to .omc/reports/team-{team}-{timestampSanitized}.md.
func SaveTeamReport(projectRoot, team, report, timestamp string) (string, error) {
	sanitizedTs, err := names.Sanitize(timestamp)
	if err != nil {
		return "", err
	}
	path := filepath.Join(projectRoot, ".omc", "reports", fmt.Sprintf("team-%s-%s.md", team, sanitizedTs))
	if err := fsutil.AtomicWriteBytes(path, projectRoot, []byte(report), fsutil.FileMode); err != nil {
		return "", err
	}
	return path, nil
}

// NowRFC3339 is a small indirection so callers needing a generation
// timestamp don't each re-derive the format string.
func NowRFC3339() string {
	return time.Now().Format(time.RFC3339)
}
