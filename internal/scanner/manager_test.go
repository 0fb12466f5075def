package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

func TestManagerSubmitAndPoll(t *testing.T) {
	series, universe := threeStockUniverse()
	store := newMemJobStore()
	m := NewManager(testOrchestrator(series, universe), store, zerolog.Nop())

	id, err := m.Submit(context.Background(), priceOnlyConfig(), Universe{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	m.Wait()

	snap, err := m.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Status != StatusCompleted || len(snap.Result) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}

	persisted, err := store.LoadJob(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if persisted.Status != StatusCompleted || len(persisted.Result) != 2 {
		t.Errorf("persisted = %+v", persisted)
	}

	if list := m.List(); len(list) != 1 || list[0].TaskID != id {
		t.Errorf("List = %+v", list)
	}
}

func TestManagerSubmitRejectsInvalidConfig(t *testing.T) {
	m := NewManager(testOrchestrator(newMemSeries(), nil), nil, zerolog.Nop())
	cfg := priceOnlyConfig()
	cfg.BoxThreshold = 1.5

	if _, err := m.Submit(context.Background(), cfg, Universe{Codes: []string{"600000"}}); !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("Submit error = %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("invalid submission created a job")
	}
}

func TestManagerUnknownJob(t *testing.T) {
	m := NewManager(testOrchestrator(newMemSeries(), nil), newMemJobStore(), zerolog.Nop())

	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, apperrors.ErrJobNotFound) {
		t.Errorf("Get error = %v", err)
	}
	if err := m.Cancel("missing"); !errors.Is(err, apperrors.ErrJobNotFound) {
		t.Errorf("Cancel error = %v", err)
	}
}

func TestManagerCancel(t *testing.T) {
	series, universe := threeStockUniverse()
	gated := &gatedSeries{inner: series, gate: make(chan struct{}), started: make(chan struct{})}
	m := NewManager(testOrchestrator(gated, universe), nil, zerolog.Nop())

	cfg := priceOnlyConfig()
	cfg.MaxWorkers = 1
	id, err := m.Submit(context.Background(), cfg, Universe{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-gated.started
	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(gated.gate)
	m.Wait()

	snap, _ := m.Get(context.Background(), id)
	if snap.Status != StatusFailed || snap.Message != MessageCancelled || snap.Error != "cancelled" {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := m.Cancel(id); !errors.Is(err, apperrors.ErrJobTerminal) {
		t.Errorf("cancel after finish: %v", err)
	}
}

func TestManagerShutdownFailsRunningJobs(t *testing.T) {
	series, universe := threeStockUniverse()
	gated := &gatedSeries{inner: series, gate: make(chan struct{}), started: make(chan struct{})}
	m := NewManager(testOrchestrator(gated, universe), nil, zerolog.Nop())

	id, err := m.Submit(context.Background(), priceOnlyConfig(), Universe{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-gated.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if snap, _ := m.Get(context.Background(), id); snap.Status != StatusFailed {
		t.Errorf("status after shutdown = %s", snap.Status)
	}
}

func TestManagerCleanup(t *testing.T) {
	series, universe := threeStockUniverse()
	store := newMemJobStore()
	m := NewManager(testOrchestrator(series, universe), store, zerolog.Nop())

	id, err := m.Submit(context.Background(), priceOnlyConfig(), Universe{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	m.Wait()

	if n := m.Cleanup(context.Background(), time.Hour); n != 0 {
		t.Errorf("fresh job removed (%d)", n)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n := m.Cleanup(context.Background(), time.Hour); n != 1 {
		t.Errorf("Cleanup removed %d, want 1", n)
	}
	if _, err := m.Get(context.Background(), id); !errors.Is(err, apperrors.ErrJobNotFound) {
		t.Errorf("expired job still visible: %v", err)
	}
}

func TestManagerRecover(t *testing.T) {
	store := newMemJobStore()
	ctx := context.Background()
	_ = store.SaveJob(ctx, JobSnapshot{TaskID: "a", Status: StatusRunning, Progress: 40, CreatedAt: epoch})
	_ = store.SaveJob(ctx, JobSnapshot{TaskID: "b", Status: StatusPending, CreatedAt: epoch})
	_ = store.SaveJob(ctx, JobSnapshot{TaskID: "c", Status: StatusCompleted, Progress: 100, CreatedAt: epoch, CompletedAt: epoch})

	m := NewManager(testOrchestrator(newMemSeries(), nil), store, zerolog.Nop())
	n, err := m.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 2 {
		t.Errorf("recovered %d jobs, want 2", n)
	}

	for _, id := range []string{"a", "b"} {
		snap, err := m.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
		if snap.Status != StatusFailed || snap.Error != MessageInterrupted || snap.CompletedAt.IsZero() {
			t.Errorf("job %s = %+v", id, snap)
		}
	}
	if snap, _ := m.Get(ctx, "c"); snap.Status != StatusCompleted {
		t.Errorf("completed job touched: %+v", snap)
	}
	if snap, _ := m.Get(ctx, "a"); snap.Progress != 40 {
		t.Errorf("progress changed on recovery: %d", snap.Progress)
	}
}
