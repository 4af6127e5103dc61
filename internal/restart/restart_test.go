package restart

import (
	"testing"

	"github.com/omcteam/teambridge/internal/registry"
)

func TestShouldRestart_ExponentialBackoffThenExhausted(t *testing.T) {
	s := New(t.TempDir())
	policy := DefaultPolicy

	delay, ok, err := s.ShouldRestart("alpha", "w1", policy)
	if err != nil || !ok || delay != 5000 {
		t.Fatalf("expected first backoff 5000ms, got delay=%d ok=%v err=%v", delay, ok, err)
	}
	must(t, s.RecordRestart("alpha", "w1", delay))

	delay, ok, err = s.ShouldRestart("alpha", "w1", policy)
	if err != nil || !ok || delay != 10000 {
		t.Fatalf("expected second backoff 10000ms, got delay=%d ok=%v err=%v", delay, ok, err)
	}
	must(t, s.RecordRestart("alpha", "w1", delay))

	delay, ok, err = s.ShouldRestart("alpha", "w1", policy)
	if err != nil || !ok || delay != 20000 {
		t.Fatalf("expected third backoff 20000ms, got delay=%d ok=%v err=%v", delay, ok, err)
	}
	must(t, s.RecordRestart("alpha", "w1", delay))

	_, ok, err = s.ShouldRestart("alpha", "w1", policy)
	if err != nil || ok {
		t.Fatalf("expected restarts exhausted after maxRestarts, got ok=%v err=%v", ok, err)
	}
}

func TestShouldRestart_ClampsToMax(t *testing.T) {
	s := New(t.TempDir())
	policy := Policy{MaxRestarts: 10, BaseMs: 5000, MaxMs: 12000, Multiplier: 2}

	for i := 0; i < 3; i++ {
		delay, _, err := s.ShouldRestart("alpha", "w1", policy)
		must(t, err)
		must(t, s.RecordRestart("alpha", "w1", delay))
	}
	delay, ok, err := s.ShouldRestart("alpha", "w1", policy)
	must(t, err)
	if !ok || delay != 12000 {
		t.Fatalf("expected backoff clamped to 12000ms, got %d", delay)
	}
}

func TestClearRestartState(t *testing.T) {
	s := New(t.TempDir())
	must(t, s.RecordRestart("alpha", "w1", 5000))

	delay, ok, err := s.ShouldRestart("alpha", "w1", DefaultPolicy)
	must(t, err)
	if !ok || delay != 10000 {
		t.Fatalf("expected count carried over, got delay=%d ok=%v", delay, ok)
	}

	must(t, s.ClearRestartState("alpha", "w1"))

	delay, ok, err = s.ShouldRestart("alpha", "w1", DefaultPolicy)
	must(t, err)
	if !ok || delay != 5000 {
		t.Fatalf("expected fresh state after clear, got delay=%d ok=%v", delay, ok)
	}
}

func TestSynthesizeBridgeConfig(t *testing.T) {
	member := registry.Member{
		Name:      "w1",
		AgentType: "mcp-codex",
		Model:     "gpt-5",
		Cwd:       "/repo/worktree",
	}
	cfg := SynthesizeBridgeConfig(member, "alpha")
	if cfg.Provider != "codex" {
		t.Errorf("expected provider codex, got %q", cfg.Provider)
	}
	if cfg.WorkerName != "w1" || cfg.TeamName != "alpha" || cfg.WorkingDirectory != "/repo/worktree" {
		t.Errorf("unexpected synthesized config: %+v", cfg)
	}
	if cfg.PollIntervalMs == 0 || cfg.MaxRetries == 0 {
		t.Error("expected defaults applied")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
