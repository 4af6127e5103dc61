// Package heartbeat stores and reads per-worker liveness records: one JSON
// file per worker, replaced atomically on every poll tick.
package heartbeat

import (
	"os"
	"path/filepath"
	"time"

	"github.com/omcteam/teambridge/internal/fsutil"
)

// Record is a worker's last-known liveness snapshot (spec.md:60).
type Record struct {
	Worker            string `json:"worker"`
	Team              string `json:"team,omitempty"`
	Provider          string `json:"provider,omitempty"`
	Status            string `json:"status"`
	LastPollAt        string `json:"lastPollAt"`
	TaskID            string `json:"taskId,omitempty"`
	ConsecutiveErrors int    `json:"consecutiveErrors,omitempty"`
	PID               int    `json:"pid,omitempty"`
}

// Store is rooted at the user-scoped teams directory, the same root
// internal/channels uses (spec.md §3).
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) path(team, worker string) string {
	return filepath.Join(s.Root, team, "heartbeats", worker+".json")
}

func (s *Store) dir(team string) string {
	return filepath.Join(s.Root, team, "heartbeats")
}

// WriteHeartbeat atomically replaces worker's heartbeat record.
func (s *Store) WriteHeartbeat(team, worker string, r Record) error {
	return fsutil.AtomicWriteJSON(s.path(team, worker), s.Root, r, fsutil.FileMode)
}

// ReadHeartbeat returns (nil, nil) if the record is missing or malformed.
func (s *Store) ReadHeartbeat(team, worker string) (*Record, error) {
	var r Record
	err := fsutil.ReadJSON(s.path(team, worker), &r)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	return &r, nil
}

// ListHeartbeats returns every heartbeat record currently on disk for team.
func (s *Store) ListHeartbeats(team string) ([]Record, error) {
	entries, err := os.ReadDir(s.dir(team))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		worker := name[:len(name)-len(".json")]
		r, err := s.ReadHeartbeat(team, worker)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// DeleteHeartbeat removes a worker's heartbeat record; absence is not an
// error.
func (s *Store) DeleteHeartbeat(team, worker string) error {
	err := os.Remove(s.path(team, worker))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CleanupTeamHeartbeats removes every heartbeat record belonging to team
// (used when a team is torn down entirely).
func (s *Store) CleanupTeamHeartbeats(team string) error {
	err := os.RemoveAll(s.dir(team))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsWorkerAlive reports whether worker has a heartbeat record whose
// lastPollAt is within maxAge of now. An invalid or unparseable timestamp
// is treated as dead, matching spec.md's "fail closed" liveness rule.
func (s *Store) IsWorkerAlive(team, worker string, maxAge time.Duration) (bool, error) {
	r, err := s.ReadHeartbeat(team, worker)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}
	t, err := time.Parse(time.RFC3339, r.LastPollAt)
	if err != nil {
		return false, nil
	}
	return time.Since(t) < maxAge, nil
}
