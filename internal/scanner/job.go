// Package scanner runs platform scans over a stock universe as background
// jobs and tracks their progress.
package scanner

import (
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/scoring"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

// Status is the lifecycle state of a scan job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job messages.
const (
	MessageInitialized = "Task initialized"
	MessageStarted     = "Task started"
	MessageCancelled   = "cancelled"
	MessageInterrupted = "interrupted by restart"
)

// maxRunningProgress keeps 100 for completed jobs only.
const maxRunningProgress = 99

// Job is one scan submission. Every read and write goes through mu; pollers
// only ever see Snapshot copies.
type Job struct {
	mu          sync.RWMutex
	id          string
	status      Status
	progress    int
	message     string
	result      []scoring.Candidate
	err         string
	createdAt   time.Time
	updatedAt   time.Time
	completedAt time.Time

	cancelled atomic.Bool
	observe   func(JobSnapshot)
}

func newJob(now time.Time) *Job {
	return &Job{
		id:        uuid.NewString(),
		status:    StatusPending,
		message:   MessageInitialized,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the job's task id.
func (j *Job) ID() string {
	return j.id
}

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Cancel raises the cooperative cancellation flag. The running scan checks
// it between stocks.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

func (j *Job) start(now time.Time) error {
	return j.transition("start", now, func() error {
		if j.status != StatusPending {
			return apperrors.ErrInvalidTransition
		}
		j.status = StatusRunning
		j.message = MessageStarted
		return nil
	}, true)
}

// advance raises progress, clamped to [0, 99]. A lower value keeps the
// current progress and only updates the message.
func (j *Job) advance(progress int, message string, now time.Time) error {
	return j.transition("advance", now, func() error {
		if j.status != StatusRunning {
			return apperrors.ErrInvalidTransition
		}
		progress = min(max(progress, 0), maxRunningProgress)
		if progress > j.progress {
			j.progress = progress
		}
		if message != "" {
			j.message = message
		}
		return nil
	}, false)
}

func (j *Job) complete(result []scoring.Candidate, message string, now time.Time) error {
	return j.transition("complete", now, func() error {
		if j.status != StatusRunning {
			return apperrors.ErrInvalidTransition
		}
		if result == nil {
			result = []scoring.Candidate{}
		}
		j.status = StatusCompleted
		j.progress = 100
		j.message = message
		j.result = result
		j.completedAt = now
		return nil
	}, true)
}

// fail is allowed from pending as well so a job that never started still
// reaches a terminal state.
func (j *Job) fail(cause error, message string, now time.Time) error {
	return j.transition("fail", now, func() error {
		j.status = StatusFailed
		j.err = cause.Error()
		j.message = message
		j.completedAt = now
		return nil
	}, true)
}

// transition applies fn under the lock. Terminal jobs are never modified.
// When notify is set the observer receives the new snapshot after unlock.
func (j *Job) transition(op string, now time.Time, fn func() error, notify bool) error {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return apperrors.NewJobError(j.id, op, apperrors.ErrJobTerminal)
	}
	if err := fn(); err != nil {
		j.mu.Unlock()
		return apperrors.NewJobError(j.id, op, err)
	}
	j.updatedAt = now
	snap := j.snapshotLocked()
	observe := j.observe
	j.mu.Unlock()

	if notify && observe != nil {
		observe(snap)
	}
	return nil
}

// Snapshot returns a copy of the job's state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() JobSnapshot {
	snap := JobSnapshot{
		TaskID:      j.id,
		Status:      j.status,
		Progress:    j.progress,
		Message:     j.message,
		Error:       j.err,
		CreatedAt:   j.createdAt,
		UpdatedAt:   j.updatedAt,
		CompletedAt: j.completedAt,
	}
	if j.result != nil {
		snap.Result = append([]scoring.Candidate(nil), j.result...)
	}
	return snap
}

// JobSnapshot is a point-in-time copy of a job. Result is set only for
// completed jobs and Error only for failed ones.
type JobSnapshot struct {
	TaskID      string
	Status      Status
	Progress    int
	Message     string
	Result      []scoring.Candidate
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// Terminal reports whether the snapshot is of a finished job.
func (s JobSnapshot) Terminal() bool {
	return s.Status.Terminal()
}

type snapshotJSON struct {
	TaskID      string               `json:"task_id"`
	Status      Status               `json:"status"`
	Progress    int                  `json:"progress"`
	Message     string               `json:"message"`
	Result      *[]scoring.Candidate `json:"result"`
	Error       *string              `json:"error"`
	CreatedAt   float64              `json:"created_at"`
	UpdatedAt   float64              `json:"updated_at"`
	CompletedAt *float64             `json:"completed_at"`
}

// MarshalJSON writes the polling representation with unix-second times.
func (s JobSnapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		TaskID:    s.TaskID,
		Status:    s.Status,
		Progress:  s.Progress,
		Message:   s.Message,
		CreatedAt: unixSeconds(s.CreatedAt),
		UpdatedAt: unixSeconds(s.UpdatedAt),
	}
	if s.Status == StatusCompleted {
		result := s.Result
		if result == nil {
			result = []scoring.Candidate{}
		}
		out.Result = &result
	}
	if s.Status == StatusFailed {
		msg := s.Error
		out.Error = &msg
	}
	if !s.CompletedAt.IsZero() {
		at := unixSeconds(s.CompletedAt)
		out.CompletedAt = &at
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the representation written by MarshalJSON.
func (s *JobSnapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = JobSnapshot{
		TaskID:    in.TaskID,
		Status:    in.Status,
		Progress:  in.Progress,
		Message:   in.Message,
		CreatedAt: fromUnixSeconds(in.CreatedAt),
		UpdatedAt: fromUnixSeconds(in.UpdatedAt),
	}
	if in.Result != nil {
		s.Result = *in.Result
	}
	if in.Error != nil {
		s.Error = *in.Error
	}
	if in.CompletedAt != nil {
		s.CompletedAt = fromUnixSeconds(*in.CompletedAt)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func fromUnixSeconds(v float64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(math.Round(v * 1e6)))
}
