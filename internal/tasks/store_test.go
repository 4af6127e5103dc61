package tasks

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func seedTask(t *testing.T, s *Store, team string, task *Task) {
	t.Helper()
	if task.Status == "" {
		task.Status = StatusPending
	}
	if err := s.WriteTask(team, task); err != nil {
		t.Fatalf("seeding %s: %v", task.ID, err)
	}
}

// S1: concurrent claimers racing for the same task — exactly one succeeds.
func TestFindNextTask_RaceClaim(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "alpha", &Task{ID: "1", Subject: "do a thing", Owner: "worker-a"})

	const n = 16
	var wg sync.WaitGroup
	results := make([]*Task, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.FindNextTask("alpha", "worker-a")
		}(i)
	}
	wg.Wait()

	claims := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("unexpected error from goroutine %d: %v", i, errs[i])
		}
		if results[i] != nil {
			claims++
			if results[i].ID != "1" {
				t.Errorf("claimed wrong id: %q", results[i].ID)
			}
		}
	}
	if claims != 1 {
		t.Fatalf("expected exactly 1 claim, got %d", claims)
	}

	final, err := s.ReadTask("alpha", "1")
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != StatusInProgress {
		t.Errorf("final status = %q, want in_progress", final.Status)
	}
	if final.ClaimedBy != "worker-a" {
		t.Errorf("claimedBy = %q", final.ClaimedBy)
	}
}

// S2: a task with unresolved blockers is never returned, even though it is
// otherwise eligible; once the blocker completes, it becomes claimable.
func TestFindNextTask_BlockerGate(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "alpha", &Task{ID: "1", Subject: "prerequisite", Owner: "worker-a"})
	seedTask(t, s, "alpha", &Task{ID: "2", Subject: "dependent", Owner: "worker-a", BlockedBy: []string{"1"}})

	got, err := s.FindNextTask("alpha", "worker-a")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "1" {
		t.Fatalf("expected task 1 to be claimed first, got %+v", got)
	}

	// Task 2 still blocked — no eligible task remains for worker-a.
	got2, err := s.FindNextTask("alpha", "worker-a")
	if err != nil {
		t.Fatal(err)
	}
	if got2 != nil {
		t.Fatalf("expected no claimable task while blocked, got %+v", got2)
	}

	if _, err := s.UpdateTaskUnlocked("alpha", "1", map[string]interface{}{
		"status": string(StatusCompleted),
	}); err != nil {
		t.Fatal(err)
	}

	got3, err := s.FindNextTask("alpha", "worker-a")
	if err != nil {
		t.Fatal(err)
	}
	if got3 == nil || got3.ID != "2" {
		t.Fatalf("expected task 2 claimable after blocker resolved, got %+v", got3)
	}
}

func TestListTaskIds_NumericOrdering(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"10", "2", "1", "abc"} {
		seedTask(t, s, "alpha", &Task{ID: id, Subject: "x", Owner: "worker-a"})
	}
	ids, err := s.ListTaskIds("alpha")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1", "2", "10", "abc"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestWriteTaskFailure_RetryExhaustion(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "alpha", &Task{ID: "1", Subject: "flaky", Owner: "worker-a"})

	for i := 0; i < 4; i++ {
		if _, err := s.WriteTaskFailure("alpha", "1", "boom"); err != nil {
			t.Fatal(err)
		}
		exhausted, err := s.IsTaskRetryExhausted("alpha", "1", 5)
		if err != nil {
			t.Fatal(err)
		}
		if exhausted {
			t.Fatalf("exhausted too early at retry %d", i+1)
		}
	}

	if _, err := s.WriteTaskFailure("alpha", "1", "boom again"); err != nil {
		t.Fatal(err)
	}
	exhausted, err := s.IsTaskRetryExhausted("alpha", "1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !exhausted {
		t.Fatal("expected retry exhaustion at count 5")
	}
}

func TestUpdateTask_PreservesUnknownFields(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "alpha", &Task{ID: "1", Subject: "x", Owner: "worker-a"})

	if _, err := s.UpdateTaskUnlocked("alpha", "1", map[string]interface{}{
		"futureField": "kept",
	}); err != nil {
		t.Fatal(err)
	}

	raw, err := s.readRaw("alpha", "1")
	if err != nil {
		t.Fatal(err)
	}
	if raw["futureField"] != "kept" {
		t.Errorf("unknown field not preserved: %+v", raw)
	}
	if raw["subject"] != "x" {
		t.Errorf("known field lost: %+v", raw)
	}
}

func TestWriteTask_RoundTripsThroughRead(t *testing.T) {
	s := newTestStore(t)
	want := &Task{
		ID:          "1",
		Subject:     "ship the thing",
		Description: "see description",
		Status:      StatusPending,
		Owner:       "worker-a",
		Blocks:      []string{"2"},
		BlockedBy:   []string{"0"},
		Metadata:    map[string]interface{}{"priority": "high"},
	}
	seedTask(t, s, "alpha", want)

	got, err := s.ReadTask("alpha", "1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("task round-trip mismatch (-want +got):\n%s", diff)
	}
}
