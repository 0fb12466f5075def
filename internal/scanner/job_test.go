package scanner

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/scoring"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

var epoch = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func TestJobLifecycle(t *testing.T) {
	job := newJob(epoch)
	if snap := job.Snapshot(); snap.Status != StatusPending || snap.Message != MessageInitialized {
		t.Fatalf("new job = %+v", snap)
	}
	if err := job.advance(10, "early", epoch); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("advance on pending job: %v", err)
	}

	if err := job.start(epoch); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := job.start(epoch); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("second start: %v", err)
	}

	_ = job.advance(40, "half", epoch)
	_ = job.advance(20, "late message", epoch)
	if snap := job.Snapshot(); snap.Progress != 40 || snap.Message != "late message" {
		t.Errorf("progress went backwards: %+v", snap)
	}
	_ = job.advance(150, "", epoch)
	if p := job.Snapshot().Progress; p != maxRunningProgress {
		t.Errorf("running progress = %d, want %d", p, maxRunningProgress)
	}

	done := epoch.Add(time.Minute)
	if err := job.complete(nil, "done", done); err != nil {
		t.Fatalf("complete: %v", err)
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.Progress != 100 || snap.Result == nil || !snap.CompletedAt.Equal(done) {
		t.Errorf("completed job = %+v", snap)
	}
}

func TestTerminalJobIsImmutable(t *testing.T) {
	job := newJob(epoch)
	_ = job.start(epoch)
	_ = job.fail(errors.New("boom"), "Scan failed: boom", epoch)
	before := job.Snapshot()

	ops := map[string]func() error{
		"start":    func() error { return job.start(epoch) },
		"advance":  func() error { return job.advance(50, "x", epoch) },
		"complete": func() error { return job.complete([]scoring.Candidate{{Code: "600000"}}, "x", epoch) },
		"fail":     func() error { return job.fail(errors.New("again"), "x", epoch) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, apperrors.ErrJobTerminal) {
			t.Errorf("%s on failed job: %v", name, err)
		}
	}

	after := job.Snapshot()
	if after.Status != before.Status || after.Error != before.Error || after.Message != before.Message || after.Result != nil {
		t.Errorf("terminal job changed: %+v -> %+v", before, after)
	}
}

func TestFailFromPending(t *testing.T) {
	job := newJob(epoch)
	if err := job.fail(apperrors.ErrCancelled, MessageCancelled, epoch); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if snap := job.Snapshot(); snap.Status != StatusFailed || snap.Error != "cancelled" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestObserverSeesStatusChanges(t *testing.T) {
	job := newJob(epoch)
	var seen []Status
	job.observe = func(s JobSnapshot) { seen = append(seen, s.Status) }

	_ = job.start(epoch)
	_ = job.advance(30, "x", epoch)
	_ = job.complete(nil, "done", epoch)

	if len(seen) != 2 || seen[0] != StatusRunning || seen[1] != StatusCompleted {
		t.Errorf("observed %v", seen)
	}
}

func TestSnapshotJSON(t *testing.T) {
	job := newJob(epoch)
	_ = job.start(epoch)
	_ = job.advance(45, "Scanned 3/6 stocks", epoch)

	data, err := json.Marshal(job.Snapshot())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"task_id", "status", "progress", "message", "result", "error", "created_at", "updated_at", "completed_at"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("missing %q in %s", key, data)
		}
	}
	if wire["result"] != nil || wire["error"] != nil || wire["completed_at"] != nil {
		t.Errorf("running job exposes terminal fields: %s", data)
	}
	if wire["created_at"].(float64) != float64(epoch.Unix()) {
		t.Errorf("created_at = %v", wire["created_at"])
	}

	_ = job.complete([]scoring.Candidate{{Code: "600000", Passed: true}}, "done", epoch.Add(time.Second))
	data, _ = json.Marshal(job.Snapshot())
	if !strings.Contains(string(data), `"result":[{"code":"600000"`) {
		t.Errorf("completed json = %s", data)
	}

	var back JobSnapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal snapshot: %v", err)
	}
	if back.Status != StatusCompleted || len(back.Result) != 1 || !back.CompletedAt.Equal(epoch.Add(time.Second)) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestUniverseRange(t *testing.T) {
	cfg := priceOnlyConfig()
	cfg.HighPointLookbackDays = 100
	cfg.Windows = []int{30, 120}
	now := epoch

	start, end := Universe{}.Range(&cfg, now)
	if !end.Equal(now) {
		t.Errorf("end = %v", end)
	}
	// 2*120+10 = 250 trading days
	if want := now.AddDate(0, 0, -(375 + 30)); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}

	fixed := Universe{Start: epoch.AddDate(-1, 0, 0), End: epoch.AddDate(0, -1, 0)}
	if s, e := fixed.Range(&cfg, now); !s.Equal(fixed.Start) || !e.Equal(fixed.End) {
		t.Errorf("explicit range = %v..%v", s, e)
	}
}
