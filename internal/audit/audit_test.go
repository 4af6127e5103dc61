package audit

import (
	"os"
	"testing"
)

func TestLogAndReadAuditLog(t *testing.T) {
	l := New(t.TempDir())

	events := []Event{
		{Type: EventTaskClaimed, WorkerName: "w1", TaskID: "1", Timestamp: "2026-01-01T00:00:00Z"},
		{Type: EventTaskCompleted, WorkerName: "w1", TaskID: "1", Timestamp: "2026-01-01T00:01:00Z"},
		{Type: EventTaskClaimed, WorkerName: "w2", TaskID: "2", Timestamp: "2026-01-01T00:02:00Z"},
	}
	for _, e := range events {
		if err := l.LogAuditEvent("alpha", e); err != nil {
			t.Fatal(err)
		}
	}

	all, err := l.ReadAuditLog("alpha", ReadFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}

	filtered, err := l.ReadAuditLog("alpha", ReadFilter{WorkerName: "w1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 events for w1, got %d", len(filtered))
	}

	limited, err := l.ReadAuditLog("alpha", ReadFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap at 1, got %d", len(limited))
	}
}

func TestReadAuditLog_SkipsMalformedLines(t *testing.T) {
	l := New(t.TempDir())
	if err := l.LogAuditEvent("alpha", Event{Type: EventBridgeStart, Timestamp: "t1"}); err != nil {
		t.Fatal(err)
	}
	// Inject a malformed line directly.
	path := l.path("alpha")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, []byte("not json\n")...)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := l.LogAuditEvent("alpha", Event{Type: EventBridgeShutdown, Timestamp: "t2"}); err != nil {
		t.Fatal(err)
	}

	events, err := l.ReadAuditLog("alpha", ReadFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected malformed line skipped, got %d events", len(events))
	}
}

func TestRotateAuditLog_KeepsTail(t *testing.T) {
	l := New(t.TempDir())
	for i := 0; i < 100; i++ {
		if err := l.LogAuditEvent("alpha", Event{Type: EventWorkerIdle, Timestamp: "t"}); err != nil {
			t.Fatal(err)
		}
	}
	rotated, err := l.RotateAuditLog("alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !rotated {
		t.Fatal("expected rotation given tiny maxSize")
	}
	events, err := l.ReadAuditLog("alpha", ReadFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 50 {
		t.Fatalf("expected half (50) retained, got %d", len(events))
	}
}
