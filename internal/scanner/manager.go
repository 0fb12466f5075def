package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

// DefaultJobTTL is how long finished jobs stay available for polling.
const DefaultJobTTL = time.Hour

// Manager owns the submitted jobs. Each job runs on its own goroutine under
// the manager's lifetime context, not the submitting request's.
type Manager struct {
	orch   *Orchestrator
	store  JobStore
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job

	runCtx context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a job manager. store may be nil.
func NewManager(orch *Orchestrator, store JobStore, logger zerolog.Logger) *Manager {
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		orch:   orch,
		store:  store,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*Job),
		runCtx: ctx,
		stop:   stop,
	}
}

// Submit validates cfg, registers a pending job and starts it. It returns
// without waiting for the scan.
func (m *Manager) Submit(ctx context.Context, cfg config.ScanConfig, u Universe) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	job := newJob(m.now())
	job.observe = m.persist
	m.mu.Lock()
	m.jobs[job.ID()] = job
	m.mu.Unlock()
	m.persist(job.Snapshot())

	m.logger.Info().
		Str("task_id", job.ID()).
		Int("codes", len(u.Codes)).
		Ints("windows", cfg.Windows).
		Msg("Scan job submitted")

	run := cfg.Clone()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.orch.Run(m.runCtx, job, run, u)
	}()
	return job.ID(), nil
}

// Get returns the job's current snapshot. Jobs from an earlier process are
// read from the store.
func (m *Manager) Get(ctx context.Context, id string) (JobSnapshot, error) {
	if job, ok := m.job(id); ok {
		return job.Snapshot(), nil
	}
	if m.store != nil {
		snap, err := m.store.LoadJob(ctx, id)
		if err == nil {
			return snap, nil
		}
		if !apperrors.Is(err, apperrors.ErrJobNotFound) {
			return JobSnapshot{}, err
		}
	}
	return JobSnapshot{}, apperrors.NewJobError(id, "get", apperrors.ErrJobNotFound)
}

// List returns snapshots of the jobs held in memory, newest first.
func (m *Manager) List() []JobSnapshot {
	m.mu.RLock()
	out := make([]JobSnapshot, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel asks a running or pending job to stop. The job fails with
// "cancelled" at the next stock boundary.
func (m *Manager) Cancel(id string) error {
	job, ok := m.job(id)
	if !ok {
		return apperrors.NewJobError(id, "cancel", apperrors.ErrJobNotFound)
	}
	if job.Status().Terminal() {
		return apperrors.NewJobError(id, "cancel", apperrors.ErrJobTerminal)
	}
	job.Cancel()
	m.logger.Info().Str("task_id", id).Msg("Scan job cancellation requested")
	return nil
}

// Cleanup drops finished jobs completed more than maxAge ago, from memory
// and from the store. It returns the number removed from memory.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultJobTTL
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	removed := 0
	for id, job := range m.jobs {
		snap := job.Snapshot()
		if snap.Terminal() && snap.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	m.mu.Unlock()

	if m.store != nil {
		if n, err := m.store.DeleteJobsBefore(ctx, cutoff); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to delete expired jobs from store")
		} else if n > 0 {
			m.logger.Debug().Int("deleted", n).Msg("Expired jobs deleted from store")
		}
	}
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Expired scan jobs removed")
	}
	return removed
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup(ctx, maxAge)
			}
		}
	}()
}

// Recover marks jobs a previous process left pending or running as failed,
// so every persisted job ends terminal. It returns the number marked.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	snaps, err := m.store.ListJobs(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, "listing persisted jobs")
	}

	recovered := 0
	for _, snap := range snaps {
		if snap.Terminal() {
			continue
		}
		if _, live := m.job(snap.TaskID); live {
			continue
		}
		now := m.now()
		snap.Status = StatusFailed
		snap.Message = MessageInterrupted
		snap.Error = MessageInterrupted
		snap.Result = nil
		snap.UpdatedAt = now
		snap.CompletedAt = now
		if err := m.store.SaveJob(ctx, snap); err != nil {
			return recovered, apperrors.Wrapf(err, "recovering job %s", snap.TaskID)
		}
		recovered++
	}
	if recovered > 0 {
		m.logger.Warn().Int("jobs", recovered).Msg("Interrupted scan jobs marked failed")
	}
	return recovered, nil
}

// Shutdown cancels every running job and waits for them to reach a terminal
// state or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) job(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

func (m *Manager) persist(snap JobSnapshot) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.SaveJob(ctx, snap); err != nil {
		m.logger.Warn().Err(err).Str("task_id", snap.TaskID).Msg("Failed to persist job snapshot")
	}
}
