package applog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConfigure_JSONWriterProducesParseableLines(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "debug", JSON: true, Output: &buf})

	Logger.Info().Str("team", "alpha").Str("worker", "w1").Msg("polling")

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if parsed["team"] != "alpha" || parsed["worker"] != "w1" {
		t.Errorf("expected team/worker fields, got %+v", parsed)
	}
}

func TestConfigure_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "warn", JSON: true, Output: &buf})

	Logger.Info().Msg("should be filtered")
	if buf.Len() != 0 {
		t.Fatalf("expected info log suppressed at warn level, got %q", buf.String())
	}

	Logger.Warn().Msg("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn log to appear, got %q", buf.String())
	}
}

func TestWithTeamWorker_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{JSON: true, Output: &buf})

	l := WithTeamWorker("alpha", "w1")
	l.Info().Msg("hi")

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["team"] != "alpha" || parsed["worker"] != "w1" {
		t.Errorf("expected team/worker fields attached, got %+v", parsed)
	}
}
