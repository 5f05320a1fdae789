package worker

// Background goroutine that re-enqueues outbox work whose job went missing:
// cached records or tombstones still pending long after their last change,
// e.g. because the process died between the cache write and the enqueue, or
// a write was deferred while the circuit breaker was open.

import (
	"context"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/infra"
	"boxtrack/internal/model"

	"github.com/rs/zerolog/log"
)

const sweepBatchSize = 50

// SweeperConfig holds all dependencies for the sweeper goroutine.
type SweeperConfig struct {
	Cache        *cache.ProductCache
	Dispatcher   *Dispatcher
	CB           *infra.CircuitBreaker
	Stores       []string
	Interval     time.Duration
	PendingAfter time.Duration
}

// StartSweeper ticks every Interval and re-enqueues stale pending writes.
// It skips ticks while the breaker is open and stops with ctx.
func StartSweeper(ctx context.Context, cfg SweeperConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Msg("sweeper: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sweeper: shutting down")
				return
			case <-ticker.C:
				Sweep(ctx, cfg, time.Now())
			}
		}
	}()
}

// Sweep runs one pass and returns how many jobs it enqueued.
func Sweep(ctx context.Context, cfg SweeperConfig, now time.Time) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("sweeper: circuit breaker is open, skipping tick")
		return 0
	}

	cutoff := now.Add(-cfg.PendingAfter)
	enqueued := 0
	for _, store := range cfg.Stores {
		for _, p := range cfg.Cache.Read(ctx, store) {
			if enqueued >= sweepBatchSize {
				return enqueued
			}
			if p.SyncStatus != model.SyncPending || p.LastModified.After(cutoff) {
				continue
			}
			snapshot := p
			key := model.ProductKey{StoreID: store, Categoria: p.Categoria, SKU: p.SKU}
			job := RemoteWriteJob{Op: OpUpsert, Key: key, Version: p.Version, Product: &snapshot, At: p.LastModified}
			if err := cfg.Dispatcher.EnqueueWrite(ctx, job); err != nil {
				log.Error().Err(err).Str("key", key.String()).Msg("sweeper: enqueue failed")
				return enqueued
			}
			enqueued++
		}
		for _, t := range cfg.Cache.Tombstones(ctx, store) {
			if enqueued >= sweepBatchSize {
				return enqueued
			}
			if t.Status != model.SyncPending || t.DeletedAt.After(cutoff) {
				continue
			}
			snapshot := t.Product
			key := model.ProductKey{StoreID: store, Categoria: t.Categoria, SKU: t.SKU}
			job := RemoteWriteJob{Op: OpDelete, Key: key, Version: t.Version, Product: &snapshot, At: t.DeletedAt}
			if err := cfg.Dispatcher.EnqueueWrite(ctx, job); err != nil {
				log.Error().Err(err).Str("key", key.String()).Msg("sweeper: enqueue failed")
				return enqueued
			}
			enqueued++
		}
	}
	if enqueued > 0 {
		log.Info().Int("count", enqueued).Msg("sweeper: re-enqueued pending writes")
	}
	return enqueued
}
