package heartbeat

import (
	"testing"
	"time"
)

func TestIsWorkerAlive(t *testing.T) {
	s := New(t.TempDir())

	alive, err := s.IsWorkerAlive("alpha", "w1", 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Fatal("no record yet, should not be alive")
	}

	if err := s.WriteHeartbeat("alpha", "w1", Record{
		Worker:     "w1",
		Status:     "running",
		LastPollAt: time.Now().Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}
	alive, err = s.IsWorkerAlive("alpha", "w1", 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !alive {
		t.Fatal("expected alive just after writing")
	}

	if err := s.WriteHeartbeat("alpha", "w1", Record{
		Worker:     "w1",
		Status:     "running",
		LastPollAt: time.Now().Add(-time.Hour).Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}
	alive, err = s.IsWorkerAlive("alpha", "w1", 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Fatal("expected dead, heartbeat is an hour old")
	}

	if err := s.WriteHeartbeat("alpha", "w1", Record{
		Worker:     "w1",
		Status:     "running",
		LastPollAt: "not-a-timestamp",
	}); err != nil {
		t.Fatal(err)
	}
	alive, err = s.IsWorkerAlive("alpha", "w1", 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Fatal("unparseable timestamp must be treated as dead")
	}
}

func TestListAndDeleteHeartbeats(t *testing.T) {
	s := New(t.TempDir())
	for _, w := range []string{"w1", "w2"} {
		if err := s.WriteHeartbeat("alpha", w, Record{Worker: w, Status: "running", LastPollAt: time.Now().Format(time.RFC3339)}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListHeartbeats("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 heartbeats, got %d", len(list))
	}

	if err := s.DeleteHeartbeat("alpha", "w1"); err != nil {
		t.Fatal(err)
	}
	list, err = s.ListHeartbeats("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Worker != "w2" {
		t.Fatalf("expected only w2 left, got %+v", list)
	}

	if err := s.CleanupTeamHeartbeats("alpha"); err != nil {
		t.Fatal(err)
	}
	list, err = s.ListHeartbeats("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no heartbeats after cleanup, got %+v", list)
	}
}
