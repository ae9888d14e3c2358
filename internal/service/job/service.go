// Package job implements the job lifecycle manager: a state machine over
// job records held in a keyed store with expiry, plus the background work
// functions that execute each job kind.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tabserve/internal/domain"
)

const (
	keyPrefix  = "job:"
	counterKey = "job:counter"

	// DefaultTTL is how long a job record lives after its last write.
	DefaultTTL = time.Hour
)

// errDropTerminal aborts a store update without surfacing an error; used
// when a late complete/fail hits a job that is already terminal.
var errDropTerminal = errors.New("job already terminal")

// Service owns job lifecycle state. Every mutation is an atomic
// read-modify-write against the keyed store, so a concurrent cancel can
// never be clobbered by a late completion, and every write refreshes the
// record's TTL.
type Service struct {
	store   domain.KeyValueStore
	history domain.JobHistoryRepository // optional; nil disables the audit trail
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a job Service. history may be nil. ttl <= 0 falls
// back to DefaultTTL.
func NewService(store domain.KeyValueStore, history domain.JobHistoryRepository, logger *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:   store,
		history: history,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
	}
}

func jobKey(token int64) string { return fmt.Sprintf("%s%d", keyPrefix, token) }

// Create allocates the next token and stores a pending job. It never
// blocks on the work itself; the caller schedules execution separately.
func (s *Service) Create(ctx context.Context, kind domain.JobKind, params interface{}) (int64, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("marshal job params: %w", err)
	}

	token, err := s.store.Incr(ctx, counterKey)
	if err != nil {
		return 0, fmt.Errorf("allocate job token: %w", err)
	}

	j := &domain.Job{
		Token:     token,
		Kind:      kind,
		Status:    domain.JobStatusPending,
		CreatedAt: s.now().UTC(),
		Params:    raw,
		Steps:     []domain.ProgressStep{},
	}
	if err := s.write(ctx, j); err != nil {
		return 0, err
	}

	s.logger.Info("job created", "token", token, "kind", kind)
	return token, nil
}

// Get returns the job for the given token, or a NotFoundError when the
// token is unknown or the record has expired.
func (s *Service) Get(ctx context.Context, token int64) (*domain.Job, error) {
	raw, err := s.store.Get(ctx, jobKey(token))
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, domain.ErrNotFound("job %d not found", token)
		}
		return nil, err
	}
	return decode(raw)
}

// List returns all live jobs, most recently created first.
func (s *Service) List(ctx context.Context) ([]domain.Job, error) {
	keys, err := s.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.Job, 0, len(keys))
	for _, key := range keys {
		if key == counterKey {
			continue
		}
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			// Expired between Keys and Get.
			continue
		}
		j, err := decode(raw)
		if err != nil {
			s.logger.Warn("skipping corrupt job record", "key", key, "error", err)
			continue
		}
		jobs = append(jobs, *j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
		}
		return jobs[i].Token > jobs[k].Token
	})
	return jobs, nil
}

// Cancel marks a pending or running job as cancelled and returns true.
// Terminal jobs are left untouched and return false. Cancellation is
// advisory: in-flight work is not interrupted, but its eventual
// complete/fail call is dropped by the store-level compare-and-set.
func (s *Service) Cancel(ctx context.Context, token int64) (bool, error) {
	cancelled := false
	err := s.update(ctx, token, func(j *domain.Job) error {
		if j.Terminal() {
			return errDropTerminal
		}
		j.Status = domain.JobStatusCancelled
		s.appendStep(j, "Job cancelled by user")
		cancelled = true
		return nil
	})
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return false, domain.ErrNotFound("job %d not found", token)
		}
		return false, err
	}
	if cancelled {
		s.logger.Info("job cancelled", "token", token)
		s.record(ctx, token)
	}
	return cancelled, nil
}

// Start transitions a pending job to running and appends the first
// progress step. A job cancelled before the work function was scheduled
// stays cancelled; in that case Start reports false and the work function
// should not proceed.
func (s *Service) Start(ctx context.Context, token int64, message string) bool {
	started := false
	err := s.update(ctx, token, func(j *domain.Job) error {
		if j.Status != domain.JobStatusPending {
			return errDropTerminal
		}
		j.Status = domain.JobStatusRunning
		s.appendStep(j, message)
		started = true
		return nil
	})
	if err != nil {
		s.logger.Warn("job start skipped", "token", token, "error", err)
		return false
	}
	return started
}

// Progress appends a timestamped step. It is a silent no-op when the job
// record no longer exists (e.g. evicted by TTL).
func (s *Service) Progress(ctx context.Context, token int64, message string) {
	err := s.update(ctx, token, func(j *domain.Job) error {
		if j.Terminal() {
			return errDropTerminal
		}
		s.appendStep(j, message)
		return nil
	})
	if err != nil {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			s.logger.Warn("progress update failed", "token", token, "error", err)
		}
	}
}

// Complete attaches the result payload, appends a final step, and moves
// the job to completed. If the job was cancelled in the meantime the
// result is silently discarded.
func (s *Service) Complete(ctx context.Context, token int64, message string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	err = s.update(ctx, token, func(j *domain.Job) error {
		if j.Terminal() {
			return errDropTerminal
		}
		j.Status = domain.JobStatusCompleted
		j.Result = raw
		s.appendStep(j, message)
		return nil
	})
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			s.logger.Warn("completion for evicted job dropped", "token", token)
			return nil
		}
		return err
	}
	s.logger.Info("job completed", "token", token)
	s.record(ctx, token)
	return nil
}

// Fail attaches the error message and moves the job to failed. Reachable
// from both pending and running. A cancelled job's failure is discarded.
func (s *Service) Fail(ctx context.Context, token int64, message string) error {
	err := s.update(ctx, token, func(j *domain.Job) error {
		if j.Terminal() {
			return errDropTerminal
		}
		j.Status = domain.JobStatusFailed
		j.Error = message
		return nil
	})
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			s.logger.Warn("failure for evicted job dropped", "token", token)
			return nil
		}
		return err
	}
	s.logger.Info("job failed", "token", token, "error", message)
	s.record(ctx, token)
	return nil
}

// --- internals ---

func (s *Service) appendStep(j *domain.Job, message string) {
	now := s.now().UTC()
	// Closing out the previous step gives each step a wall-clock duration.
	if n := len(j.Steps); n > 0 && j.Steps[n-1].DurationMS == nil {
		ms := now.Sub(j.Steps[n-1].Timestamp).Milliseconds()
		j.Steps[n-1].DurationMS = &ms
	}
	j.Steps = append(j.Steps, domain.ProgressStep{
		Step:      len(j.Steps) + 1,
		Message:   message,
		Timestamp: now,
	})
}

func (s *Service) write(ctx context.Context, j *domain.Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job %d: %w", j.Token, err)
	}
	return s.store.Set(ctx, jobKey(j.Token), raw, s.ttl)
}

// update runs fn inside the store's atomic read-modify-write. fn returning
// errDropTerminal leaves the record untouched without reporting an error.
func (s *Service) update(ctx context.Context, token int64, fn func(*domain.Job) error) error {
	err := s.store.Update(ctx, jobKey(token), s.ttl, func(current []byte) ([]byte, error) {
		j, err := decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(j); err != nil {
			return nil, err
		}
		return json.Marshal(j)
	})
	if errors.Is(err, errDropTerminal) {
		return nil
	}
	return err
}

// record persists a terminal transition to the history repository.
// Best-effort: history failures never affect the job itself.
func (s *Service) record(ctx context.Context, token int64) {
	if s.history == nil {
		return
	}
	j, err := s.Get(ctx, token)
	if err != nil {
		return
	}
	entry := &domain.JobHistoryEntry{
		Token:      j.Token,
		Kind:       j.Kind,
		Status:     j.Status,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		FinishedAt: s.now().UTC(),
	}
	if err := s.history.Insert(ctx, entry); err != nil {
		s.logger.Warn("job history insert failed", "token", token, "error", err)
	}
}

func decode(raw []byte) (*domain.Job, error) {
	var j domain.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return &j, nil
}
