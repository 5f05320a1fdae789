package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/config"
	"boxtrack/internal/model"
	"boxtrack/internal/repository"

	"github.com/rs/zerolog/log"
)

// SyncConfig holds all dependencies of the sync engine.
type SyncConfig struct {
	Repo       repository.ProductRepository
	Cache      *cache.ProductCache
	Catalog    config.Catalog
	Interval   time.Duration
	RetryDelay time.Duration
	NudgeDelay time.Duration
	StaleAfter time.Duration
}

// SyncEngine keeps each store's cache converged with the remote store.
type SyncEngine struct {
	repo       repository.ProductRepository
	cache      *cache.ProductCache
	catalog    config.Catalog
	interval   time.Duration
	retryDelay time.Duration
	nudgeDelay time.Duration
	staleAfter time.Duration
	now        func() time.Time

	mu     sync.Mutex
	nudges map[string]*time.Timer
}

func NewSyncEngine(cfg SyncConfig) *SyncEngine {
	return &SyncEngine{
		repo:       cfg.Repo,
		cache:      cfg.Cache,
		catalog:    cfg.Catalog,
		interval:   cfg.Interval,
		retryDelay: cfg.RetryDelay,
		nudgeDelay: cfg.NudgeDelay,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
		nudges:     make(map[string]*time.Timer),
	}
}

// FetchRemote reads every categoria of a store and normalizes the rows.
func (e *SyncEngine) FetchRemote(ctx context.Context, storeID string) ([]model.Product, error) {
	var all []model.Product
	for _, cat := range e.catalog.Categories {
		rows, err := e.repo.ListByCategory(ctx, storeID, cat)
		if err != nil {
			return nil, fmt.Errorf("sync: list %s/%s: %w", storeID, cat, err)
		}
		for _, r := range rows {
			all = append(all, NormalizeRemote(r, storeID))
		}
	}
	return all, nil
}

// FullSync pulls the remote rows of a store and merges them into the cache.
// On error the cache is left untouched.
func (e *SyncEngine) FullSync(ctx context.Context, storeID string) error {
	remote, err := e.FetchRemote(ctx, storeID)
	if err != nil {
		return err
	}
	return e.MergeRemote(ctx, storeID, remote)
}

// MergeRemote merges already fetched rows and stamps the sync time.
func (e *SyncEngine) MergeRemote(ctx context.Context, storeID string, remote []model.Product) error {
	var count int
	err := e.cache.Update(ctx, storeID, func(s *cache.Snapshot) error {
		Merge(s, remote)
		count = len(s.Products)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync: merge %s: %w", storeID, err)
	}
	if err := e.cache.MarkSynced(ctx, storeID, e.now()); err != nil {
		log.Warn().Err(err).Str("store", storeID).Msg("sync: could not record sync time")
	}
	log.Debug().Str("store", storeID).Int("remote", len(remote)).Int("cached", count).Msg("sync: store merged")
	return nil
}

// ShouldSync reports whether the store was never synced or its last sync
// is older than the staleness threshold.
func (e *SyncEngine) ShouldSync(ctx context.Context, storeID string) bool {
	last, ok := e.cache.LastSynced(ctx, storeID)
	if !ok {
		return true
	}
	return e.now().Sub(last) > e.staleAfter
}

// LastSynced exposes the last successful sync time of a store.
func (e *SyncEngine) LastSynced(ctx context.Context, storeID string) (time.Time, bool) {
	return e.cache.LastSynced(ctx, storeID)
}

// StartPeriodic syncs every configured store now and then on every tick.
// Stores that fail get exactly one retry after the retry delay; after that
// they wait for the next tick. Stops when ctx is cancelled.
func (e *SyncEngine) StartPeriodic(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		log.Info().Dur("interval", e.interval).Msg("sync: periodic sync started")

		var retryC <-chan time.Time
		var retryStores []string
		schedule := func(failed []string) {
			retryStores = failed
			retryC = nil
			if len(failed) > 0 {
				retryC = time.After(e.retryDelay)
			}
		}

		schedule(e.syncStores(ctx, e.catalog.Stores))
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync: periodic sync shutting down")
				return
			case <-ticker.C:
				schedule(e.syncStores(ctx, e.catalog.Stores))
			case <-retryC:
				stores := retryStores
				retryStores, retryC = nil, nil
				if failed := e.syncStores(ctx, stores); len(failed) > 0 {
					log.Warn().Strs("stores", failed).Msg("sync: retry failed, waiting for next tick")
				}
			}
		}
	}()
}

// syncStores runs FullSync for each store and returns the ones that failed.
func (e *SyncEngine) syncStores(ctx context.Context, stores []string) []string {
	var failed []string
	for _, s := range stores {
		if ctx.Err() != nil {
			return nil
		}
		if err := e.FullSync(ctx, s); err != nil {
			log.Warn().Err(err).Str("store", s).Msg("sync: full sync failed")
			failed = append(failed, s)
		}
	}
	return failed
}

// Nudge schedules a FullSync of storeID after the nudge delay. A nudge
// arriving while one is already scheduled for the store is absorbed by it.
func (e *SyncEngine) Nudge(ctx context.Context, storeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, pending := e.nudges[storeID]; pending {
		return
	}
	bg := context.WithoutCancel(ctx)
	e.nudges[storeID] = time.AfterFunc(e.nudgeDelay, func() {
		e.mu.Lock()
		delete(e.nudges, storeID)
		e.mu.Unlock()
		if err := e.FullSync(bg, storeID); err != nil {
			log.Warn().Err(err).Str("store", storeID).Msg("sync: nudge sync failed")
		}
	})
}

// Stop cancels nudges that have not fired yet.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for store, t := range e.nudges {
		t.Stop()
		delete(e.nudges, store)
	}
}
