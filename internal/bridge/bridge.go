// Package bridge implements the worker bridge daemon: the per-worker poll
// loop that cooperates with an external generative-CLI subprocess
// (spec.md §4.8). It multiplexes signal handling, self-quarantine,
// heartbeat emission, inbox drain, task claim, prompt construction, CLI
// spawn, and the post-execution permission audit, wiring together every
// other internal package the way the teacher's internal/engine wires
// config, git, and the pty-backed agent invocation.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sony/gobreaker"

	"github.com/omcteam/teambridge/internal/applog"
	"github.com/omcteam/teambridge/internal/audit"
	"github.com/omcteam/teambridge/internal/channels"
	"github.com/omcteam/teambridge/internal/config"
	"github.com/omcteam/teambridge/internal/fsutil"
	"github.com/omcteam/teambridge/internal/heartbeat"
	"github.com/omcteam/teambridge/internal/permissions"
	"github.com/omcteam/teambridge/internal/prompt"
	"github.com/omcteam/teambridge/internal/registry"
	"github.com/omcteam/teambridge/internal/tasks"
	"github.com/omcteam/teambridge/internal/usage"
)

// Resource caps (spec.md §5 "Resource caps").
const (
	StdoutCapBytes       = 10 << 20
	InboxReadCapBytes    = 10 << 20
	ResponseCapBytes     = 1 << 20
	ShutdownGraceTimeout = 5 * time.Second
)

// Bridge holds one worker's wired dependencies and runtime state.
type Bridge struct {
	Config *config.BridgeConfig

	Tasks    *tasks.Store
	Channels *channels.Channels
	HB       *heartbeat.Store
	Registry *registry.Registry
	Audit    *audit.Log
	Usage    *usage.Tracker

	breaker *gobreaker.CircuitBreaker

	consecutiveErrors int
	idleAnnounced     bool
	quarantined       bool
	pid               int
}

// New wires a Bridge from already-constructed stores, rooted the way
// spec.md §3 lays out the filesystem: tasksRoot is "<home>/.claude/tasks",
// teamsRoot is the distinct "<home>/.claude/teams" used by channels, the
// registry, and heartbeats, and projectRoot is the enclosing git worktree
// that owns the audit log and usage log.
func New(cfg *config.BridgeConfig, tasksRoot, teamsRoot, projectRoot string) *Bridge {
	b := &Bridge{
		Config:   cfg,
		Tasks:    tasks.NewStore(tasksRoot),
		Channels: channels.New(teamsRoot),
		HB:       heartbeat.New(teamsRoot),
		Registry: registry.New(teamsRoot, projectRoot),
		Audit:    audit.New(projectRoot),
		Usage:    usage.New(projectRoot),
		pid:      os.Getpid(),
	}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.WorkerName + "-quarantine",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.MaxConsecutiveErrors
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.quarantined = true
				_ = b.Audit.LogAuditEvent(cfg.TeamName, audit.Event{
					Type:       audit.EventWorkerQuarantined,
					WorkerName: cfg.WorkerName,
					Timestamp:  nowRFC3339(),
				})
				_ = b.Channels.AppendOutbox(cfg.TeamName, cfg.WorkerName, channels.OutboxMessage{
					Type:      "error",
					Message:   fmt.Sprintf("worker quarantined after %d consecutive errors", cfg.MaxConsecutiveErrors),
					Timestamp: nowRFC3339(),
				})
			}
			if from == gobreaker.StateOpen && to != gobreaker.StateOpen {
				b.quarantined = false
			}
		},
	})
	return b
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// Run drives the poll loop (spec.md §4.8 steps 1-17) until a shutdown
// signal is observed or ctx is cancelled. It never returns a non-nil error
// for a transient fault — those are absorbed into consecutiveErrors and
// logged — only for an unrecoverable setup problem.
func (b *Bridge) Run(ctx context.Context) error {
	log := applog.WithTeamWorker(b.Config.TeamName, b.Config.WorkerName)
	if _, err := b.Registry.RegisterMcpWorker(b.Config.TeamName, b.Config.WorkerName, b.Config.Provider, b.Config.Model, NewRequestID(), b.Config.WorkingDirectory); err != nil {
		log.Error().Err(err).Msg("registering worker")
	}
	_ = b.Audit.LogAuditEvent(b.Config.TeamName, audit.Event{Type: audit.EventBridgeStart, WorkerName: b.Config.WorkerName, Timestamp: nowRFC3339()})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if done, err := b.runOnce(ctx); done {
			return err
		} else if err != nil {
			b.consecutiveErrors++
			log.Error().Err(err).Int("consecutiveErrors", b.consecutiveErrors).Msg("loop iteration failed")
		}
	}
}

// runOnce executes one iteration of the poll loop. The returned bool is
// true when the bridge should terminate (a full shutdown occurred).
func (b *Bridge) runOnce(ctx context.Context) (bool, error) {
	team, worker := b.Config.TeamName, b.Config.WorkerName

	// Step 1: shutdown signal.
	if sig, err := b.Channels.ReadShutdownSignal(team, worker); err == nil && sig != nil {
		return true, b.shutdown(team, worker, sig.RequestID)
	}

	// Step 2: drain signal (honoured only between tasks, which is always
	// true here since we re-enter runOnce fresh each iteration).
	if sig, err := b.Channels.ReadDrainSignal(team, worker); err == nil && sig != nil {
		return true, b.shutdown(team, worker, sig.RequestID)
	}

	// Step 3: self-quarantine.
	if b.quarantined {
		_ = b.HB.WriteHeartbeat(team, worker, b.heartbeatRecord("quarantined", ""))
		time.Sleep(b.pollInterval())
		return false, nil
	}

	// Step 4: heartbeat.
	_ = b.HB.WriteHeartbeat(team, worker, b.heartbeatRecord("polling", ""))

	// Step 5: inbox drain.
	drained, err := b.Channels.ReadNewInboxMessages(team, worker)
	if err != nil {
		return false, fmt.Errorf("bridge: draining inbox: %w", err)
	}

	// Step 6: task claim.
	task, err := b.Tasks.FindNextTask(team, worker)
	if err != nil {
		return false, fmt.Errorf("bridge: finding next task: %w", err)
	}
	if task == nil {
		if !b.idleAnnounced {
			_ = b.Channels.AppendOutbox(team, worker, channels.OutboxMessage{Type: "idle", Timestamp: nowRFC3339()})
			_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventWorkerIdle, WorkerName: worker, Timestamp: nowRFC3339()})
			b.idleAnnounced = true
		}
		time.Sleep(b.pollInterval())
		return false, nil
	}
	b.idleAnnounced = false

	// Step 7: claim completed.
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventTaskClaimed, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339()})
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventTaskStarted, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339()})
	_ = b.HB.WriteHeartbeat(team, worker, b.heartbeatRecord("executing", task.ID))

	// Step 8: pre-spawn shutdown re-check.
	if sig, err := b.Channels.ReadShutdownSignal(team, worker); err == nil && sig != nil {
		if _, uerr := b.Tasks.UpdateTask(team, task.ID, map[string]interface{}{"status": "pending"}); uerr != nil {
			return false, uerr
		}
		return true, b.shutdown(team, worker, sig.RequestID)
	}

	return false, b.executeTask(ctx, task, drained)
}

// heartbeatRecord builds the current liveness snapshot (spec.md:60),
// carrying team/provider/consecutiveErrors alongside the already-existing
// fields so a status consumer never has to fall back to the registry for
// them.
func (b *Bridge) heartbeatRecord(status, taskID string) heartbeat.Record {
	return heartbeat.Record{
		Worker:            b.Config.WorkerName,
		Team:              b.Config.TeamName,
		Provider:          b.Config.Provider,
		Status:            status,
		LastPollAt:        nowRFC3339(),
		TaskID:            taskID,
		ConsecutiveErrors: b.consecutiveErrors,
		PID:               b.pid,
	}
}

func (b *Bridge) pollInterval() time.Duration {
	if b.Config.PollIntervalMs <= 0 {
		return config.DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(b.Config.PollIntervalMs) * time.Millisecond
}

// shutdown implements the full shutdown sequence (spec.md §4.8 step 1):
// kill any in-flight CLI (handled by the caller before entering this
// function, since an in-flight spawn aborts itself on ctx cancellation),
// write shutdown_ack, unregister, delete heartbeat/signal, audit, return.
func (b *Bridge) shutdown(team, worker, requestID string) error {
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventShutdownReceived, WorkerName: worker, Timestamp: nowRFC3339()})
	_ = b.Channels.AppendOutbox(team, worker, channels.OutboxMessage{Type: "shutdown_ack", RequestID: requestID, Timestamp: nowRFC3339()})
	_ = b.Registry.UnregisterMcpWorker(team, worker)
	_ = b.HB.DeleteHeartbeat(team, worker)
	_ = b.Channels.DeleteShutdownSignal(team, worker)
	_ = b.Channels.DeleteDrainSignal(team, worker)
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventBridgeShutdown, WorkerName: worker, Timestamp: nowRFC3339()})
	return nil
}

// executeTask runs steps 9-17 of the poll loop for one claimed task. inbox
// holds the messages step 5 already drained this tick — folded into the
// prompt here rather than re-read, since a second inbox read would either
// duplicate cursor-consumed history (ReadAllInboxMessages) or silently
// drop everything (ReadNewInboxMessages a second time).
func (b *Bridge) executeTask(ctx context.Context, task *tasks.Task, inbox []channels.InboxMessage) error {
	team, worker := b.Config.TeamName, b.Config.WorkerName
	startedAt := nowRFC3339()

	// Step 9: prompt build.
	promptItems := make([]prompt.InboxItem, 0, len(inbox))
	for _, m := range inbox {
		promptItems = append(promptItems, prompt.InboxItem{Type: m.Type, Content: m.Content})
	}
	permInstructions := "No restrictions."
	if b.Config.Permissions != nil {
		permInstructions = permissions.FormatPermissionInstructions(*b.Config.Permissions)
	}
	promptText := prompt.Build(prompt.Input{
		TaskSubject:     task.Subject,
		TaskDescription: task.Description,
		InboxItems:      promptItems,
		Instructions:    "Complete the task described above. Do not ask questions or wait for confirmation.",
		PermissionNotes: permInstructions,
	})

	millis := time.Now().UnixMilli()
	promptPath := filepath.Join(b.Config.WorkingDirectory, ".omc", "prompts", fmt.Sprintf("team-%s-task-%s-%d.md", team, task.ID, millis))
	if err := fsutil.AtomicWriteBytes(promptPath, b.Config.WorkingDirectory, []byte(promptText), fsutil.FileMode); err != nil {
		return fmt.Errorf("bridge: writing prompt file: %w", err)
	}
	outputPath := filepath.Join(b.Config.WorkingDirectory, ".omc", "outputs", fmt.Sprintf("team-%s-task-%s-%d.txt", team, task.ID, millis))

	// Step 10: pre-execution snapshot.
	var before map[string]bool
	enforcement := b.Config.PermissionEnforcement
	if enforcement == "" {
		enforcement = config.EnforcementOff
	}
	if enforcement != config.EnforcementOff {
		var err error
		before, err = changedOrUntrackedFiles(b.Config.WorkingDirectory)
		if err != nil {
			return fmt.Errorf("bridge: pre-execution snapshot: %w", err)
		}
	}

	// Step 11-12: spawn + parse response.
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventCliSpawned, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339()})
	response, spawnErr := b.spawnCLI(ctx, promptText)
	completedAt := nowRFC3339()

	if spawnErr != nil {
		return b.handleFailure(task, spawnErr)
	}
	if err := fsutil.AtomicWriteBytes(outputPath, b.Config.WorkingDirectory, []byte(response), fsutil.FileMode); err != nil {
		return fmt.Errorf("bridge: writing output file: %w", err)
	}

	promptChars, responseChars := usage.MeasureCharCounts(promptPath, outputPath)
	wallClockMs := time.Now().UnixMilli() - millis

	// Step 13: post-execution permission audit.
	var violationNote string
	if enforcement != config.EnforcementOff {
		after, err := changedOrUntrackedFiles(b.Config.WorkingDirectory)
		if err != nil {
			return fmt.Errorf("bridge: post-execution snapshot: %w", err)
		}
		changed := withoutIgnored(diffFileSets(before, after))
		violations := permissions.FindPermissionViolations(changed, *effectivePolicy(b.Config), b.Config.WorkingDirectory)

		if len(violations) > 0 {
			if enforcement == config.EnforcementEnforce {
				return b.failPermanently(task, violations)
			}
			_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventPermissionAudit, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339(), Detail: map[string]interface{}{"violations": len(violations)}})
			violationNote = fmt.Sprintf("\n\nNote: %d permission-policy violation(s) were observed (audit mode: not blocking).", len(violations))
		}
	}

	// Step 14: success path.
	if _, err := b.Tasks.UpdateTask(team, task.ID, map[string]interface{}{"status": "completed"}); err != nil {
		return err
	}
	b.consecutiveErrors = 0
	b.breaker.Execute(func() (interface{}, error) { return nil, nil })
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventTaskCompleted, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339()})
	_ = b.Usage.RecordTaskUsage(team, usage.Record{
		TaskID: task.ID, WorkerName: worker, Provider: b.Config.Provider, Model: b.Config.Model,
		StartedAt: startedAt, CompletedAt: completedAt, WallClockMs: wallClockMs,
		PromptChars: promptChars, ResponseChars: responseChars,
	})
	_ = b.Channels.AppendOutbox(team, worker, channels.OutboxMessage{
		Type: "task_complete", TaskID: task.ID, Summary: firstNBytesLineTerminated(response, 500) + violationNote, Timestamp: nowRFC3339(),
	})

	// Step 16: rotation.
	if rotated, err := b.Channels.RotateOutboxIfNeeded(team, worker, b.Config.OutboxMaxLines); err == nil && rotated {
		_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventOutboxRotated, WorkerName: worker, Timestamp: nowRFC3339()})
	}
	if rotated, err := b.Channels.RotateInboxIfNeeded(team, worker, InboxReadCapBytes); err == nil && rotated {
		_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventInboxRotated, WorkerName: worker, Timestamp: nowRFC3339()})
	}

	// Step 17: poll sleep.
	time.Sleep(b.pollInterval())
	return nil
}

// standardIgnores are paths the post-execution permission audit never
// flags regardless of policy, the same way the teacher's engine skips
// concern re-runs for changes confined to ignored paths.
var standardIgnores = ignore.CompileIgnoreLines(
	".git/",
	"node_modules/",
	".omc/",
	"*.log",
)

// withoutIgnored drops any path matching standardIgnores.
func withoutIgnored(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !standardIgnores.MatchesPath(p) {
			out = append(out, p)
		}
	}
	return out
}

func effectivePolicy(cfg *config.BridgeConfig) *permissions.Policy {
	if cfg.Permissions != nil {
		return cfg.Permissions
	}
	return &permissions.Policy{}
}

// handleFailure implements step 15.
func (b *Bridge) handleFailure(task *tasks.Task, cause error) error {
	team, worker := b.Config.TeamName, b.Config.WorkerName
	b.consecutiveErrors++
	b.breaker.Execute(func() (interface{}, error) { return nil, cause })

	eventType := audit.EventCliError
	if strings.Contains(cause.Error(), "timed out") {
		eventType = audit.EventCliTimeout
	}
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: eventType, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339(), Detail: map[string]interface{}{"error": cause.Error()}})

	if _, err := b.Tasks.WriteTaskFailure(team, task.ID, cause.Error()); err != nil {
		return err
	}
	exhausted, err := b.Tasks.IsTaskRetryExhausted(team, task.ID, b.Config.MaxRetries)
	if err != nil {
		return err
	}

	if exhausted {
		if _, err := b.Tasks.UpdateTask(team, task.ID, map[string]interface{}{
			"status":   "completed",
			"metadata": map[string]interface{}{"permanentlyFailed": true, "error": cause.Error()},
		}); err != nil {
			return err
		}
		_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventTaskPermanentlyFailed, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339()})
		_ = b.Channels.AppendOutbox(team, worker, channels.OutboxMessage{Type: "error", TaskID: task.ID, Error: cause.Error(), Timestamp: nowRFC3339()})
		return nil
	}

	if _, err := b.Tasks.UpdateTask(team, task.ID, map[string]interface{}{"status": "pending"}); err != nil {
		return err
	}
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventTaskFailed, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339()})
	_ = b.Channels.AppendOutbox(team, worker, channels.OutboxMessage{Type: "task_failed", TaskID: task.ID, Error: cause.Error(), Timestamp: nowRFC3339()})
	return nil
}

func (b *Bridge) failPermanently(task *tasks.Task, violations []permissions.Violation) error {
	team, worker := b.Config.TeamName, b.Config.WorkerName
	if _, err := b.Tasks.UpdateTask(team, task.ID, map[string]interface{}{
		"status":   "completed",
		"metadata": map[string]interface{}{"permanentlyFailed": true, "permissionViolations": violations},
	}); err != nil {
		return err
	}
	_ = b.Audit.LogAuditEvent(team, audit.Event{Type: audit.EventPermissionViolation, WorkerName: worker, TaskID: task.ID, Timestamp: nowRFC3339(), Detail: map[string]interface{}{"violations": len(violations)}})
	_ = b.Channels.AppendOutbox(team, worker, channels.OutboxMessage{Type: "error", TaskID: task.ID, Error: "permission policy violation", Timestamp: nowRFC3339()})
	return nil
}

// spawnCLI launches the provider CLI with the prompt on stdin, allocating a
// pty for stdout/stderr exactly as the teacher's invokeAgent does (for
// line-buffered, tailable real-time output); stdin stays a plain pipe so
// the child sees EOF. Output is capped at StdoutCapBytes; the spawn is
// bounded by TaskTimeoutMs.
func (b *Bridge) spawnCLI(ctx context.Context, promptText string) (string, error) {
	argv, useStructured := providerArgv(b.Config.Provider, b.Config.Model)
	out, err := b.runCLI(ctx, argv, promptText)
	if err != nil {
		return "", err
	}
	if useStructured {
		return parseStructuredOutput(out), nil
	}
	return strings.TrimSpace(string(out)), nil
}

// runCLI spawns argv with promptText on stdin and returns its captured
// stdout/stderr, separated from spawnCLI so tests can exercise the pty
// plumbing against a real, always-available binary instead of a provider
// CLI that may not be installed.
func (b *Bridge) runCLI(ctx context.Context, argv []string, promptText string) ([]byte, error) {
	timeout := time.Duration(b.Config.TaskTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = config.DefaultTaskTimeoutMs * time.Millisecond
	}
	spawnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(spawnCtx, argv[0], argv[1:]...)
	cmd.Dir = b.Config.WorkingDirectory

	ptmx, pts, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("bridge: opening pty: %w", err)
	}
	defer ptmx.Close()

	cmd.Stdin = strings.NewReader(promptText)
	cmd.Stdout = pts
	cmd.Stderr = pts

	if err := cmd.Start(); err != nil {
		pts.Close()
		return nil, fmt.Errorf("bridge: starting cli: %w", err)
	}
	pts.Close()

	var buf bytes.Buffer
	capped := &cappedWriter{limit: StdoutCapBytes, buf: &buf}
	if _, copyErr := io.Copy(capped, ptmx); copyErr != nil {
		var pathErr *os.PathError
		if !(errors.As(copyErr, &pathErr) && pathErr.Err == syscall.EIO) {
			return nil, fmt.Errorf("bridge: reading cli output: %w", copyErr)
		}
	}

	waitErr := cmd.Wait()
	if spawnCtx.Err() != nil {
		return nil, fmt.Errorf("bridge: cli timed out: %w", spawnCtx.Err())
	}
	if waitErr != nil {
		return nil, fmt.Errorf("bridge: cli exited with error: %w", waitErr)
	}

	return buf.Bytes(), nil
}

// providerArgv returns the provider-specific argv. Argument shape is
// intentionally minimal: the real CLIs are out of scope (spec.md §1
// Non-goals), so this only needs to be structurally plausible.
func providerArgv(provider, model string) (argv []string, structuredOutput bool) {
	switch provider {
	case config.ProviderCodex:
		argv = []string{"codex", "exec", "--json"}
		if model != "" {
			argv = append(argv, "--model", model)
		}
		return argv, true
	default:
		argv = []string{"claude", "-p"}
		if model != "" {
			argv = append(argv, "--model", model)
		}
		return argv, false
	}
}

// parseStructuredOutput extracts textual content from a line-delimited
// JSON event stream, concatenating recognised event kinds and capping the
// accumulated response at ResponseCapBytes.
func parseStructuredOutput(data []byte) string {
	var out strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event map[string]interface{}
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if text, ok := event["text"].(string); ok {
			out.WriteString(text)
		} else if msg, ok := event["message"].(string); ok {
			out.WriteString(msg)
		}
		if out.Len() >= ResponseCapBytes {
			break
		}
	}
	result := out.String()
	if len(result) > ResponseCapBytes {
		return result[:ResponseCapBytes] + "\n[truncated]"
	}
	return result
}

func firstNBytesLineTerminated(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n"
}

// cappedWriter discards bytes past limit instead of growing unboundedly,
// implementing spec.md §5's "stdout/stderr buffers 10 MiB each" cap.
type cappedWriter struct {
	limit int
	buf   *bytes.Buffer
}

func (c *cappedWriter) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
	} else {
		c.buf.Write(p)
	}
	return len(p), nil
}

// changedOrUntrackedFiles returns the set of changed-or-untracked paths in
// dir via `git status --porcelain`, excluding the standard ignores the
// teacher's ignore-pattern matcher would also exclude.
func changedOrUntrackedFiles(dir string) (map[string]bool, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("bridge: git status: %s: %w", strings.TrimSpace(string(out)), err)
	}
	result := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		result[path] = true
	}
	return result, nil
}

func diffFileSets(before, after map[string]bool) []string {
	var changed []string
	for f := range after {
		if !before[f] {
			changed = append(changed, f)
		}
	}
	return changed
}

// NewRequestID generates a random uuid string. Run passes it as the
// sessionId recorded when the worker registers itself.
func NewRequestID() string {
	return uuid.New().String()
}
