// Package audit appends and reads the per-team JSONL audit log: the
// durable record of everything the bridge daemon observed or did.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/omcteam/teambridge/internal/fsutil"
)

// Event kind constants — the closed set spec.md §4.9 names.
const (
	EventBridgeStart           = "bridge_start"
	EventBridgeShutdown        = "bridge_shutdown"
	EventTaskClaimed           = "task_claimed"
	EventTaskStarted           = "task_started"
	EventTaskCompleted         = "task_completed"
	EventTaskFailed            = "task_failed"
	EventTaskPermanentlyFailed = "task_permanently_failed"
	EventWorkerQuarantined     = "worker_quarantined"
	EventWorkerIdle            = "worker_idle"
	EventInboxRotated          = "inbox_rotated"
	EventOutboxRotated         = "outbox_rotated"
	EventCliSpawned            = "cli_spawned"
	EventCliTimeout            = "cli_timeout"
	EventCliError              = "cli_error"
	EventShutdownReceived      = "shutdown_received"
	EventShutdownAck           = "shutdown_ack"
	EventPermissionViolation   = "permission_violation"
	EventPermissionAudit       = "permission_audit"
)

// Event is one audit log line.
type Event struct {
	Type       string                 `json:"type"`
	Team       string                 `json:"team"`
	WorkerName string                 `json:"workerName,omitempty"`
	TaskID     string                 `json:"taskId,omitempty"`
	Timestamp  string                 `json:"timestamp"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
}

// Log is rooted at a project directory (spec.md §3:
// "<project>/.omc/logs/team-bridge-{team}.jsonl").
type Log struct {
	ProjectRoot string
}

// New returns a Log rooted at projectRoot.
func New(projectRoot string) *Log {
	return &Log{ProjectRoot: projectRoot}
}

func (l *Log) path(team string) string {
	return filepath.Join(l.ProjectRoot, ".omc", "logs", "team-bridge-"+team+".jsonl")
}

// LogAuditEvent appends event as one JSON line. It never returns an error
// to a caller that ignores it crashing the worker: callers are expected to
// audit from inside their own broad error guard, per spec.md's "audit
// failures cannot crash a worker" invariant, so this method swallows and
// reports failures via its return value only for callers that care.
func (l *Log) LogAuditEvent(team string, event Event) error {
	event.Team = team
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return fsutil.AppendFileWithMode(l.path(team), l.ProjectRoot, data, fsutil.FileMode)
}

// ReadFilter narrows ReadAuditLog's scan.
type ReadFilter struct {
	EventType  string
	WorkerName string
	Since      string // RFC3339; empty means no lower bound
	Limit      int    // 0 means unlimited
}

// ReadAuditLog streams the log file, applying filters inline and returning
// early once Limit events have been accepted. Malformed lines are skipped
// silently rather than aborting the scan.
func (l *Log) ReadAuditLog(team string, filter ReadFilter) ([]Event, error) {
	f, err := os.Open(l.path(team))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if !matches(e, filter) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(e Event, filter ReadFilter) bool {
	if filter.EventType != "" && e.Type != filter.EventType {
		return false
	}
	if filter.WorkerName != "" && e.WorkerName != filter.WorkerName {
		return false
	}
	if filter.Since != "" && e.Timestamp < filter.Since {
		return false
	}
	return true
}

// RotateAuditLog keeps the most recent half of lines once the file exceeds
// maxSize bytes. The destination is validated against the project root, and
// the rewrite goes through an exclusively created temp file that is checked
// to still be a regular file (not a substituted symlink) just before the
// rename.
func (l *Log) RotateAuditLog(team string, maxSize int64) (bool, error) {
	path := l.path(team)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() <= maxSize {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	keep := len(lines) / 2
	tail := lines[len(lines)-keep:]
	out := bytes.Join(tail, []byte("\n"))
	if len(out) > 0 {
		out = append(out, '\n')
	}
	if err := fsutil.AtomicWriteBytes(path, l.ProjectRoot, out, fsutil.FileMode); err != nil {
		return false, err
	}
	return true, nil
}
