// Package rosterconfig parses the team roster manifest ("teambridge.yaml"):
// the YAML file a team lead authors to describe a team's workers before any
// worker process exists (SPEC_FULL.md §3 "Team roster manifest"). Parsed
// with gopkg.in/yaml.v3 exactly as the teacher parses its pipeline config,
// including a custom Duration unmarshaler in the same spirit as the
// teacher's config.Duration.
package rosterconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omcteam/teambridge/internal/names"
	"github.com/omcteam/teambridge/internal/permissions"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("rosterconfig: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// WorkerSpec is one roster entry (SPEC_FULL.md §3: "per-worker
// {name, provider, model, capabilities[], permissions}").
type WorkerSpec struct {
	Name         string              `yaml:"name"`
	Provider     string              `yaml:"provider"`
	Model        string              `yaml:"model,omitempty"`
	Capabilities []string            `yaml:"capabilities,omitempty"`
	Permissions  *permissions.Policy `yaml:"permissions,omitempty"`
}

// Roster is the parsed team manifest.
type Roster struct {
	TeamName        string       `yaml:"teamName"`
	BaseBranch      string       `yaml:"baseBranch,omitempty"`
	HeartbeatMaxAge Duration     `yaml:"heartbeatMaxAge,omitempty"`
	PollInterval    Duration     `yaml:"pollInterval,omitempty"`
	Workers         []WorkerSpec `yaml:"workers"`
}

// DefaultBaseBranch and DefaultHeartbeatMaxAge are applied when the
// manifest omits them.
const (
	DefaultBaseBranch      = "main"
	DefaultHeartbeatMaxAge = 30 * time.Second
	DefaultPollInterval    = 3 * time.Second
)

// Load reads and parses path, applies defaults, and validates the result.
func Load(path string) (*Roster, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("rosterconfig: reading %s: %w", path, err)}
	}
	roster, err := parse(data)
	if err != nil {
		return nil, []error{err}
	}
	if errs := Validate(roster); len(errs) > 0 {
		return roster, errs
	}
	return roster, nil
}

func parse(data []byte) (*Roster, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("rosterconfig: parsing YAML: %w", err)
	}
	applyDefaults(&roster)
	return &roster, nil
}

func applyDefaults(r *Roster) {
	if r.BaseBranch == "" {
		r.BaseBranch = DefaultBaseBranch
	}
	if r.HeartbeatMaxAge == 0 {
		r.HeartbeatMaxAge = Duration(DefaultHeartbeatMaxAge)
	}
	if r.PollInterval == 0 {
		r.PollInterval = Duration(DefaultPollInterval)
	}
}

// Validate aggregates every failure (matching the teacher's config.Validate
// shape) rather than stopping at the first.
func Validate(r *Roster) []error {
	var errs []error

	if r.TeamName == "" {
		errs = append(errs, fmt.Errorf("teamName is required"))
	} else if _, err := names.Sanitize(r.TeamName); err != nil {
		errs = append(errs, fmt.Errorf("teamName: %w", err))
	}

	if len(r.Workers) == 0 {
		errs = append(errs, fmt.Errorf("at least one worker is required"))
	}

	seen := make(map[string]bool, len(r.Workers))
	for i, w := range r.Workers {
		if w.Name == "" {
			errs = append(errs, fmt.Errorf("workers[%d]: name is required", i))
		} else {
			if _, err := names.Sanitize(w.Name); err != nil {
				errs = append(errs, fmt.Errorf("workers[%d]: %w", i, err))
			}
			if seen[w.Name] {
				errs = append(errs, fmt.Errorf("workers[%d]: duplicate worker name %q", i, w.Name))
			}
			seen[w.Name] = true
		}
		if w.Provider == "" {
			errs = append(errs, fmt.Errorf("workers[%d] (%s): provider is required", i, w.Name))
		}
		if w.Permissions != nil {
			if err := permissions.ValidatePolicy(*w.Permissions); err != nil {
				errs = append(errs, fmt.Errorf("workers[%d] (%s): %w", i, w.Name, err))
			}
		}
	}

	return errs
}

// FindWorker returns the worker spec with the given name, or nil.
func (r *Roster) FindWorker(name string) *WorkerSpec {
	for i := range r.Workers {
		if r.Workers[i].Name == name {
			return &r.Workers[i]
		}
	}
	return nil
}
