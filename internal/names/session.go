package names

import (
	"fmt"
	"os/exec"
	"strings"
)

// SessionHost creates, kills, and lists detached tmux sessions keyed by
// (team, worker). Arguments are always passed as argv, never interpolated
// into a shell string, matching the teacher's os/exec call sites in
// internal/git (git.go's Repo.run never builds a shell command either).
type SessionHost struct {
	// TmuxPath overrides the binary looked up on PATH (for example, a fake
	// tmux script).
	TmuxPath string
}

// NewSessionHost returns a SessionHost delegating to "tmux" on PATH.
func NewSessionHost() *SessionHost {
	return &SessionHost{TmuxPath: "tmux"}
}

func (h *SessionHost) bin() string {
	if h.TmuxPath != "" {
		return h.TmuxPath
	}
	return "tmux"
}

func (h *SessionHost) run(args ...string) (string, error) {
	cmd := exec.Command(h.bin(), args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// CreateSession starts a new detached tmux session named sessionName(team,
// worker), running command+args with cwd as its working directory.
func (h *SessionHost) CreateSession(team, worker, cwd string, command ...string) error {
	session, err := SessionName(team, worker)
	if err != nil {
		return err
	}
	args := []string{"new-session", "-d", "-s", session, "-c", cwd}
	args = append(args, command...)
	if _, err := h.run(args...); err != nil {
		return fmt.Errorf("names: creating session %s: %w", session, err)
	}
	return nil
}

// SpawnBridgeInSession is CreateSession specialised for launching the
// bridge daemon binary with its config file argument.
func (h *SessionHost) SpawnBridgeInSession(team, worker, cwd, bridgeBinary, configPath string) error {
	return h.CreateSession(team, worker, cwd, bridgeBinary, "--config", configPath)
}

// KillSession terminates a session if it exists. A "no such session" exit
// is treated identically to the session never having existed.
func (h *SessionHost) KillSession(team, worker string) error {
	session, err := SessionName(team, worker)
	if err != nil {
		return err
	}
	out, err := h.run("kill-session", "-t", session)
	if err != nil && !isNoSuchSession(out) {
		return fmt.Errorf("names: killing session %s: %w", session, err)
	}
	return nil
}

// IsSessionAlive reports whether the (team, worker) session currently
// exists.
func (h *SessionHost) IsSessionAlive(team, worker string) (bool, error) {
	session, err := SessionName(team, worker)
	if err != nil {
		return false, err
	}
	out, err := h.run("has-session", "-t", session)
	if err != nil {
		if isNoSuchSession(out) {
			return false, nil
		}
		return false, fmt.Errorf("names: checking session %s: %w", session, err)
	}
	return true, nil
}

// ListActiveSessions returns every session name currently hosted by tmux
// whose name matches the "omc-" prefix used by SessionName.
func (h *SessionHost) ListActiveSessions() ([]string, error) {
	out, err := h.run("list-sessions", "-F", "#{session_name}")
	if err != nil {
		if isNoServerRunning(out) {
			return nil, nil
		}
		return nil, fmt.Errorf("names: listing sessions: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	var sessions []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "omc-") {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

func isNoSuchSession(tmuxOutput string) bool {
	return strings.Contains(tmuxOutput, "can't find session") ||
		strings.Contains(tmuxOutput, "no such session") ||
		strings.Contains(tmuxOutput, "session not found")
}

func isNoServerRunning(tmuxOutput string) bool {
	return strings.Contains(tmuxOutput, "no server running") ||
		strings.Contains(tmuxOutput, "error connecting")
}
