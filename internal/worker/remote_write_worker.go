package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/infra"
	"boxtrack/internal/model"
	"boxtrack/internal/repository"

	"github.com/rs/zerolog/log"
)

// Alerter notifies operators about writes that were dead-lettered.
type Alerter interface {
	SendAlert(subject, body string) error
}

// Nudger schedules a near-term sync of one store.
type Nudger interface {
	Nudge(ctx context.Context, storeID string)
}

// RemoteWriteConfig holds all dependencies of the outbox worker.
type RemoteWriteConfig struct {
	Repo        repository.ProductRepository
	Deletions   repository.DeletionRepository
	Cache       *cache.ProductCache
	CB          *infra.CircuitBreaker
	Lists       ListStore
	Alerter     Alerter
	Nudger      Nudger
	MaxAttempts int
	// BackoffBase is the wait before the second attempt; it doubles after that.
	BackoffBase time.Duration
}

// RemoteWriteWorker drains the outbox: it replays cache mutations against
// the remote store and records the outcome on the cached record.
type RemoteWriteWorker struct {
	repo        repository.ProductRepository
	deletions   repository.DeletionRepository
	cache       *cache.ProductCache
	cb          *infra.CircuitBreaker
	lists       ListStore
	alerter     Alerter
	nudger      Nudger
	maxAttempts int
	backoffBase time.Duration
}

func NewRemoteWriteWorker(cfg RemoteWriteConfig) *RemoteWriteWorker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	return &RemoteWriteWorker{
		repo:        cfg.Repo,
		deletions:   cfg.Deletions,
		cache:       cfg.Cache,
		cb:          cfg.CB,
		lists:       cfg.Lists,
		alerter:     cfg.Alerter,
		nudger:      cfg.Nudger,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
	}
}

// Process is the job-pool entry point.
func (w *RemoteWriteWorker) Process(ctx context.Context, raw json.RawMessage) {
	var job RemoteWriteJob
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Msg("remote_write_worker: invalid payload")
		return
	}
	_ = w.Apply(ctx, job)
}

// ErrSuperseded means the remote record changed after the job's local edit
// was made. The edit is not applied and its record is marked failed.
var ErrSuperseded = errors.New("remote record changed after this edit")

var errVersionRace = errors.New("remote version moved during write")

// Apply runs one job to completion: retries with backoff through the
// circuit breaker, then marks the cached record confirmed or failed.
// An open breaker leaves the record pending for the sweeper.
func (w *RemoteWriteWorker) Apply(ctx context.Context, job RemoteWriteJob) error {
	logger := log.With().
		Str("job_id", job.ID).
		Str("op", string(job.Op)).
		Str("key", job.Key.String()).
		Int64("version", job.Version).
		Logger()

	var landed int64
	err := withRetry(ctx, w.maxAttempts, w.backoffBase, func(attempt int) error {
		var conflict error
		err := w.cb.Execute(func() error {
			v, err := w.execute(ctx, job)
			if errors.Is(err, ErrSuperseded) {
				// The store answered; a conflict says nothing about its health.
				conflict = err
				return nil
			}
			landed = v
			return err
		})
		if conflict != nil {
			return conflict
		}
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("remote_write_worker: attempt failed")
		}
		return err
	})

	switch {
	case err == nil:
		if landed != job.Version {
			logger.Info().Int64("landed_version", landed).Msg("remote_write_worker: rebased onto newer remote version")
		}
		w.markOutcome(ctx, job, model.SyncConfirmed, landed)
		if w.nudger != nil {
			w.nudger.Nudge(ctx, job.Key.StoreID)
		}
		logger.Debug().Msg("remote_write_worker: write confirmed")
		return nil

	case errors.Is(err, infra.ErrCircuitOpen), ctx.Err() != nil:
		logger.Warn().Err(err).Msg("remote_write_worker: write deferred, record stays pending")
		return err
	}

	reason := fmt.Sprintf("max retries (%d) exceeded: %v", w.maxAttempts, err)
	if errors.Is(err, ErrSuperseded) {
		reason = err.Error()
		logger.Warn().Err(err).Msg("remote_write_worker: write superseded by a newer remote edit")
	} else {
		logger.Error().Err(err).Msg("remote_write_worker: write failed after all retries")
	}
	w.markOutcome(ctx, job, model.SyncFailed, job.Version)

	payload, _ := json.Marshal(job)
	SendToDLQ(ctx, w.lists, QueueRemoteWrites, jobTypeRemoteWrite, job.Key.StoreID, payload, reason, w.maxAttempts)

	if w.alerter != nil {
		subject := fmt.Sprintf("[boxtrack] remote write failed for %s", job.Key.StoreID)
		body := fmt.Sprintf("Operation %s on %s (version %d) was not applied.\n\nReason: %s\n",
			job.Op, job.Key, job.Version, reason)
		if aerr := w.alerter.SendAlert(subject, body); aerr != nil {
			logger.Warn().Err(aerr).Msg("remote_write_worker: alert mail failed")
		}
	}
	return err
}

// execute performs a single attempt and returns the version that landed.
//
// A write refused by the version guard is checked against the stored row:
// a replay of this very write counts as applied, a row last modified
// before the local edit is overwritten one version above it, and a row
// modified after the edit wins with ErrSuperseded.
func (w *RemoteWriteWorker) execute(ctx context.Context, job RemoteWriteJob) (int64, error) {
	switch job.Op {
	case OpUpsert:
		if job.Product == nil {
			return 0, fmt.Errorf("upsert job without product")
		}
		return w.upsert(ctx, job)

	case OpUpdateFields:
		if job.Patch == nil {
			return 0, fmt.Errorf("update_fields job without patch")
		}
		applied, err := w.repo.UpdateFields(ctx, job.Key, *job.Patch, job.Version, job.At)
		if err != nil {
			return 0, err
		}
		if applied {
			return job.Version, nil
		}
		found, err := w.repo.FindBySKU(ctx, job.Key.StoreID, job.Key.Categoria, job.Key.SKU)
		if repository.IsNotFound(err) {
			// Never arrived, or deleted since: the full record goes up.
			if job.Product == nil {
				return 0, fmt.Errorf("%w: %s no longer exists", ErrSuperseded, job.Key)
			}
			return w.upsert(ctx, job)
		}
		if err != nil {
			return 0, err
		}
		next, err := rebaseVersion(job, found)
		if err != nil || next == job.Version {
			return next, err
		}
		key := job.Key
		key.SKU = found.SKU
		if applied, err = w.repo.UpdateFields(ctx, key, *job.Patch, next, job.At); err != nil {
			return 0, err
		}
		if !applied {
			return 0, errVersionRace
		}
		return next, nil

	case OpDelete:
		applied, err := w.repo.Delete(ctx, job.Key, job.Version)
		if err != nil {
			return 0, err
		}
		if !applied {
			found, err := w.repo.FindBySKU(ctx, job.Key.StoreID, job.Key.Categoria, job.Key.SKU)
			if repository.IsNotFound(err) {
				return job.Version, nil
			}
			if err != nil {
				return 0, err
			}
			if job.At.Before(found.LastModified) {
				return 0, supersededBy(found)
			}
			key := job.Key
			key.SKU = found.SKU
			next := found.Version + 1
			if applied, err = w.repo.Delete(ctx, key, next); err != nil {
				return 0, err
			}
			if !applied {
				return 0, errVersionRace
			}
		}
		w.recordDeletion(ctx, job)
		return job.Version, nil
	}
	return 0, fmt.Errorf("unknown op %q", job.Op)
}

func (w *RemoteWriteWorker) upsert(ctx context.Context, job RemoteWriteJob) (int64, error) {
	p := *job.Product
	p.Version = job.Version
	applied, err := w.repo.Upsert(ctx, &p)
	if err != nil {
		return 0, err
	}
	if applied {
		return job.Version, nil
	}
	found, err := w.repo.FindBySKU(ctx, job.Key.StoreID, job.Key.Categoria, job.Key.SKU)
	if err != nil {
		// Includes a row deleted between the two calls; the next attempt retries.
		return 0, err
	}
	next, err := rebaseVersion(job, found)
	if err != nil || next == job.Version {
		return next, err
	}
	p.SKU = found.SKU
	p.Version = next
	if applied, err = w.repo.Upsert(ctx, &p); err != nil {
		return 0, err
	}
	if !applied {
		return 0, errVersionRace
	}
	return next, nil
}

// rebaseVersion decides what to do with a refused write given the stored
// row: job.Version when the row is this write, found.Version+1 when the
// local edit is the later one, or ErrSuperseded.
func rebaseVersion(job RemoteWriteJob, found *model.Product) (int64, error) {
	if found.Version == job.Version && sameInstant(found.LastModified, job.At) {
		return job.Version, nil
	}
	if job.At.Before(found.LastModified) {
		return 0, supersededBy(found)
	}
	return found.Version + 1, nil
}

func supersededBy(found *model.Product) error {
	return fmt.Errorf("%w: remote version %d modified %s", ErrSuperseded,
		found.Version, found.LastModified.Format(time.RFC3339))
}

// sameInstant compares timestamps at the precision Postgres keeps.
func sameInstant(a, b time.Time) bool {
	return a.Sub(b).Abs() < time.Microsecond
}

func (w *RemoteWriteWorker) recordDeletion(ctx context.Context, job RemoteWriteJob) {
	if w.deletions == nil {
		return
	}
	entry := &model.DeletedProduct{
		StoreID:   job.Key.StoreID,
		Categoria: job.Key.Categoria,
		SKU:       job.Key.SKU,
		DeletedAt: job.At,
	}
	if job.Product != nil {
		entry.Caixa = job.Product.Caixa
		entry.Snapshot, _ = json.Marshal(job.Product)
	}
	if entry.DeletedAt.IsZero() {
		entry.DeletedAt = time.Now()
	}
	if err := w.deletions.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("key", job.Key.String()).Msg("remote_write_worker: deletion audit failed")
	}
}

// markOutcome stamps status on the cached record, but only while the cache
// still holds the version this job carried; newer local edits keep theirs.
// A rebased write moves the cached record to the version that landed.
func (w *RemoteWriteWorker) markOutcome(ctx context.Context, job RemoteWriteJob, status model.SyncStatus, landed int64) {
	err := w.cache.Update(context.WithoutCancel(ctx), job.Key.StoreID, func(s *cache.Snapshot) error {
		if job.Op == OpDelete {
			i := s.FindTombstone(job.Key.Categoria, job.Key.SKU)
			if i < 0 || s.Tombstones[i].Version != job.Version {
				return nil
			}
			if status == model.SyncConfirmed {
				s.RemoveTombstone(job.Key.Categoria, job.Key.SKU)
			} else {
				s.Tombstones[i].Status = status
			}
			return nil
		}
		for i := range s.Products {
			p := &s.Products[i]
			if p.Categoria == job.Key.Categoria && model.SameSKU(p.SKU, job.Key.SKU) && p.Version == job.Version {
				p.SyncStatus = status
				if status == model.SyncConfirmed && landed > p.Version {
					p.Version = landed
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("key", job.Key.String()).Msg("remote_write_worker: could not record sync status")
	}
}

// withRetry calls fn up to maxAttempts times with exponential backoff:
// immediate, then base, 2*base, 4*base... ErrSuperseded is final.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			if errors.Is(err, ErrSuperseded) {
				return err
			}
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
