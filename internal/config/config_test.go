package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omcteam/teambridge/internal/permissions"
)

func writeConfig(t *testing.T, dir string, cfg map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "bridge-config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeHome(t *testing.T) (home, omcDir, workDir string) {
	t.Helper()
	home = t.TempDir()
	omcDir = filepath.Join(home, ".omc")
	if err := os.MkdirAll(omcDir, 0o700); err != nil {
		t.Fatal(err)
	}
	workDir = filepath.Join(home, "project")
	if err := os.MkdirAll(filepath.Join(workDir, ".git"), 0o700); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", home)
	return
}

func TestLoad_AppliesDefaults(t *testing.T) {
	home, omcDir, workDir := fakeHome(t)
	_ = home
	path := writeConfig(t, omcDir, map[string]interface{}{
		"teamName":         "alpha",
		"workerName":       "worker1",
		"provider":         ProviderClaude,
		"workingDirectory": workDir,
	})

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.PollIntervalMs != DefaultPollIntervalMs {
		t.Errorf("expected default poll interval, got %d", cfg.PollIntervalMs)
	}
	if cfg.PermissionEnforcement != EnforcementOff {
		t.Errorf("expected default enforcement off, got %q", cfg.PermissionEnforcement)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("expected default max retries, got %d", cfg.MaxRetries)
	}
}

func TestLoad_RejectsPathOutsideHome(t *testing.T) {
	fakeHome(t)
	outside := t.TempDir()
	path := writeConfig(t, outside, map[string]interface{}{
		"teamName":         "alpha",
		"workerName":       "worker1",
		"provider":         ProviderClaude,
		"workingDirectory": outside,
	})

	_, errs := Load(path)
	if len(errs) == 0 {
		t.Fatal("expected an error for a config path outside home")
	}
}

func TestLoad_RejectsPathUnderHomeWithoutTrustedMarker(t *testing.T) {
	home, _, workDir := fakeHome(t)
	untrusted := filepath.Join(home, "scratch")
	if err := os.MkdirAll(untrusted, 0o700); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, untrusted, map[string]interface{}{
		"teamName":         "alpha",
		"workerName":       "worker1",
		"provider":         ProviderClaude,
		"workingDirectory": workDir,
	})

	_, errs := Load(path)
	if len(errs) == 0 {
		t.Fatal("expected an error: path lacks .claude/ or .omc/ marker")
	}
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	cfg := &BridgeConfig{
		Provider:              "not-a-real-provider",
		PermissionEnforcement: "not-a-real-level",
	}
	errs := Validate(cfg)
	if len(errs) < 4 {
		t.Fatalf("expected at least 4 aggregated errors (missing teamName, workerName, bad provider, missing workingDirectory, bad enforcement), got %d: %v", len(errs), errs)
	}
}

func TestValidate_RejectsWorkingDirectoryOutsideGitWorktree(t *testing.T) {
	home, _, _ := fakeHome(t)
	// Under home, so only the worktree check can reject it.
	notAWorktree := filepath.Join(home, "not-a-repo")
	if err := os.MkdirAll(notAWorktree, 0o700); err != nil {
		t.Fatal(err)
	}
	cfg := &BridgeConfig{
		TeamName:         "alpha",
		WorkerName:       "worker1",
		Provider:         ProviderClaude,
		WorkingDirectory: notAWorktree,
	}
	errs := Validate(cfg)
	found := false
	for _, e := range errs {
		if e != nil && strings.Contains(e.Error(), "not inside a git worktree") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a validation error for a non-worktree workingDirectory, got %v", errs)
	}
}

func TestValidate_RejectsWorkingDirectoryOutsideHome(t *testing.T) {
	fakeHome(t)
	outsideHome := t.TempDir()
	if err := os.MkdirAll(filepath.Join(outsideHome, ".git"), 0o700); err != nil {
		t.Fatal(err)
	}
	cfg := &BridgeConfig{
		TeamName:         "alpha",
		WorkerName:       "worker1",
		Provider:         ProviderClaude,
		WorkingDirectory: outsideHome,
	}
	errs := Validate(cfg)
	if len(errs) == 0 {
		t.Fatal("expected rejection of a workingDirectory outside home, even though it is a valid git worktree")
	}
}

func TestValidate_RejectsOverlyPermissivePermissions(t *testing.T) {
	_, _, workDir := fakeHome(t)
	cfg := &BridgeConfig{
		TeamName:         "alpha",
		WorkerName:       "worker1",
		Provider:         ProviderClaude,
		WorkingDirectory: workDir,
		Permissions:      &permissions.Policy{AllowedPaths: []string{"**"}},
	}
	errs := Validate(cfg)
	if len(errs) == 0 {
		t.Fatal("expected rejection of a wildcard allowedPaths entry")
	}
}
