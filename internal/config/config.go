// Package config loads and validates the per-worker BridgeConfig JSON file
// (spec.md §4.14), the config surface passed to `teambridge --config <path>`.
// It follows the teacher's load-then-validate-then-apply-defaults split
// (config.Load / config.Validate), generalized from YAML to JSON and from
// pipeline concerns to bridge workers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omcteam/teambridge/internal/fsutil"
	"github.com/omcteam/teambridge/internal/names"
	"github.com/omcteam/teambridge/internal/permissions"
)

// Known provider identifiers (spec.md §6 "provider ∈ {<known1>, <known2>}").
const (
	ProviderClaude = "claude"
	ProviderCodex  = "codex"
)

var knownProviders = map[string]bool{
	ProviderClaude: true,
	ProviderCodex:  true,
}

// Enforcement levels for permission auditing (spec.md §4.7/§4.14).
const (
	EnforcementOff     = "off"
	EnforcementAudit   = "audit"
	EnforcementEnforce = "enforce"
)

var knownEnforcements = map[string]bool{
	EnforcementOff:     true,
	EnforcementAudit:   true,
	EnforcementEnforce: true,
}

// Default values applied by applyDefaults.
const (
	DefaultPollIntervalMs       = 3000
	DefaultTaskTimeoutMs        = 600_000
	DefaultMaxConsecutiveErrors = 3
	DefaultOutboxMaxLines       = 500
	DefaultMaxRetries           = 5
)

// ErrConfigPathOutsideHome is returned when the config path does not
// resolve under $HOME, or the resolved path carries neither of the two
// trusted subpath markers.
var ErrConfigPathOutsideHome = errors.New("config: path must resolve under home and contain .claude/ or .omc/")

// BridgeConfig is the authoritative field list from spec.md §6.
type BridgeConfig struct {
	TeamName              string              `json:"teamName"`
	WorkerName            string              `json:"workerName"`
	Provider              string              `json:"provider"`
	Model                 string              `json:"model,omitempty"`
	WorkingDirectory      string              `json:"workingDirectory"`
	PollIntervalMs        int                 `json:"pollIntervalMs"`
	TaskTimeoutMs         int                 `json:"taskTimeoutMs"`
	MaxConsecutiveErrors  int                 `json:"maxConsecutiveErrors"`
	OutboxMaxLines        int                 `json:"outboxMaxLines"`
	MaxRetries            int                 `json:"maxRetries"`
	PermissionEnforcement string              `json:"permissionEnforcement"`
	Permissions           *permissions.Policy `json:"permissions,omitempty"`
}

// ResolveConfigPath implements spec.md §4.14 step 1: the path must resolve
// (through symlinks, where present) under $HOME, and the resolved form must
// contain one of the two trusted subpath markers.
func ResolveConfigPath(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving home directory: %w", err)
	}
	resolved, err := fsutil.ValidateResolvedPath(path, home)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigPathOutsideHome, err)
	}
	if !strings.Contains(resolved, string(filepath.Separator)+".claude"+string(filepath.Separator)) &&
		!strings.Contains(resolved, string(filepath.Separator)+".omc"+string(filepath.Separator)) {
		return "", ErrConfigPathOutsideHome
	}
	return resolved, nil
}

// Load resolves path, reads and JSON-parses it, applies defaults, and
// validates the result. It aggregates every validation failure rather than
// stopping at the first (matching the teacher's config.Validate).
func Load(path string) (*BridgeConfig, []error) {
	resolved, err := ResolveConfigPath(path)
	if err != nil {
		return nil, []error{err}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, []error{fmt.Errorf("config: reading %s: %w", resolved, err)}
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, []error{err}
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}

func parse(data []byte) (*BridgeConfig, error) {
	var cfg BridgeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing JSON: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *BridgeConfig) {
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = DefaultPollIntervalMs
	}
	if cfg.TaskTimeoutMs == 0 {
		cfg.TaskTimeoutMs = DefaultTaskTimeoutMs
	}
	if cfg.MaxConsecutiveErrors == 0 {
		cfg.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if cfg.OutboxMaxLines == 0 {
		cfg.OutboxMaxLines = DefaultOutboxMaxLines
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PermissionEnforcement == "" {
		cfg.PermissionEnforcement = EnforcementOff
	}
}

// Validate checks the required fields, sanitizes team/worker names, rejects
// unknown providers/enforcement levels, and validates the working directory
// and permission shape. It returns every failure found, not just the first.
func Validate(cfg *BridgeConfig) []error {
	var errs []error

	if cfg.TeamName == "" {
		errs = append(errs, fmt.Errorf("teamName is required"))
	} else if _, err := names.Sanitize(cfg.TeamName); err != nil {
		errs = append(errs, fmt.Errorf("teamName: %w", err))
	}

	if cfg.WorkerName == "" {
		errs = append(errs, fmt.Errorf("workerName is required"))
	} else if _, err := names.Sanitize(cfg.WorkerName); err != nil {
		errs = append(errs, fmt.Errorf("workerName: %w", err))
	}

	if cfg.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	} else if !knownProviders[cfg.Provider] {
		errs = append(errs, fmt.Errorf("provider %q is not a known provider", cfg.Provider))
	}

	if cfg.WorkingDirectory == "" {
		errs = append(errs, fmt.Errorf("workingDirectory is required"))
	} else if err := validateWorkingDirectory(cfg.WorkingDirectory); err != nil {
		errs = append(errs, err)
	}

	if cfg.PermissionEnforcement != "" && !knownEnforcements[cfg.PermissionEnforcement] {
		errs = append(errs, fmt.Errorf("permissionEnforcement %q must be one of off, audit, enforce", cfg.PermissionEnforcement))
	}

	if cfg.Permissions != nil {
		if err := permissions.ValidatePolicy(*cfg.Permissions); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// validateWorkingDirectory checks the directory exists, is a directory,
// resolves under home, and is inside a version-control worktree (spec.md
// §4.14 step 4).
func validateWorkingDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("workingDirectory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workingDirectory %s is not a directory", dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("workingDirectory %s: resolving home directory: %w", dir, err)
	}
	if _, verr := fsutil.ValidateResolvedPath(dir, home); verr != nil {
		return fmt.Errorf("workingDirectory %s does not resolve under home: %w", dir, verr)
	}

	if !insideGitWorktree(dir) {
		return fmt.Errorf("workingDirectory %s is not inside a git worktree", dir)
	}
	return nil
}

// insideGitWorktree walks up from dir looking for a .git entry (directory
// for a normal repo, file for a linked worktree).
func insideGitWorktree(dir string) bool {
	cur := dir
	for {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return false
		}
		cur = parent
	}
}
