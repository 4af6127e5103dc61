// Package restart implements the worker restart policy: exponential
// backoff with a cap, a persisted restart counter, and BridgeConfig
// synthesis for respawning a worker from its registry row (spec.md §4.13).
package restart

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/omcteam/teambridge/internal/config"
	"github.com/omcteam/teambridge/internal/fsutil"
	"github.com/omcteam/teambridge/internal/registry"
)

// Policy controls backoff shape. ShouldRestart uses its fields as given;
// zero-value fields are not filled in from DefaultPolicy.
type Policy struct {
	MaxRestarts int
	BaseMs      int64
	MaxMs       int64
	Multiplier  float64
}

// DefaultPolicy matches spec.md §4.13's stated defaults.
var DefaultPolicy = Policy{
	MaxRestarts: 3,
	BaseMs:      5000,
	MaxMs:       60000,
	Multiplier:  2,
}

// State is the persisted per-worker restart sidecar.
type State struct {
	RestartCount  int   `json:"restartCount"`
	NextBackoffMs int64 `json:"nextBackoffMs"`
	LastRestartAt int64 `json:"lastRestartAt"`
}

// Store is rooted at a project directory (".omc/state/restart-{team}-{worker}.json").
type Store struct {
	ProjectRoot string
}

// New returns a Store rooted at projectRoot.
func New(projectRoot string) *Store {
	return &Store{ProjectRoot: projectRoot}
}

func (s *Store) path(team, worker string) string {
	return filepath.Join(s.ProjectRoot, ".omc", "state", "restart-"+team+"-"+worker+".json")
}

func (s *Store) readState(team, worker string) (*State, error) {
	var st State
	err := fsutil.ReadJSON(s.path(team, worker), &st)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return &State{}, nil
	}
	return &st, nil
}

// ShouldRestart returns the next backoff delay (ms), or (0, false) if
// restartCount has already reached policy.MaxRestarts.
func (s *Store) ShouldRestart(team, worker string, policy Policy) (int64, bool, error) {
	st, err := s.readState(team, worker)
	if err != nil {
		return 0, false, err
	}
	if st.RestartCount >= policy.MaxRestarts {
		return 0, false, nil
	}
	delay := int64(float64(policy.BaseMs) * math.Pow(policy.Multiplier, float64(st.RestartCount)))
	if delay > policy.MaxMs {
		delay = policy.MaxMs
	}
	return delay, true, nil
}

// RecordRestart increments the persisted counter and stores the backoff
// that was used for this restart.
func (s *Store) RecordRestart(team, worker string, backoffMs int64) error {
	st, err := s.readState(team, worker)
	if err != nil {
		return err
	}
	st.RestartCount++
	st.NextBackoffMs = backoffMs
	st.LastRestartAt = time.Now().UnixMilli()
	return fsutil.AtomicWriteJSON(s.path(team, worker), s.ProjectRoot, st, fsutil.FileMode)
}

// ClearRestartState removes the sidecar after a clean run.
func (s *Store) ClearRestartState(team, worker string) error {
	err := os.Remove(s.path(team, worker))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SynthesizeBridgeConfig reconstructs a BridgeConfig from a registry row for
// a restart. The persisted BridgeConfig itself is never written to disk
// (spec.md §4.13); this is the only path that recreates one, and only in
// memory.
func SynthesizeBridgeConfig(member registry.Member, team string) *config.BridgeConfig {
	provider := config.ProviderClaude
	if len(member.AgentType) > 4 && member.AgentType[:4] == "mcp-" {
		provider = member.AgentType[4:]
	}
	return &config.BridgeConfig{
		TeamName:              team,
		WorkerName:            member.Name,
		Provider:              provider,
		Model:                 member.Model,
		WorkingDirectory:      member.Cwd,
		PollIntervalMs:        config.DefaultPollIntervalMs,
		TaskTimeoutMs:         config.DefaultTaskTimeoutMs,
		MaxConsecutiveErrors:  config.DefaultMaxConsecutiveErrors,
		OutboxMaxLines:        config.DefaultOutboxMaxLines,
		MaxRetries:            config.DefaultMaxRetries,
		PermissionEnforcement: config.EnforcementOff,
	}
}
