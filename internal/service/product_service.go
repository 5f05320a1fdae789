package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/config"
	"boxtrack/internal/dto"
	"boxtrack/internal/model"
	"boxtrack/internal/repository"
	"boxtrack/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("product not found")
	ErrUnknownStore     = errors.New("unknown store")
	ErrCategoryRequired = errors.New("categoria is required")
	ErrInvalidCategory  = errors.New("unknown categoria")
	ErrSKURequired      = errors.New("sku is required")
	ErrBoxRequired      = errors.New("caixa is required")
	ErrInvalidGender    = errors.New("gender must be male or female")
)

// WriteQueue is the outbox the facade hands remote writes to.
type WriteQueue interface {
	EnqueueWrite(ctx context.Context, job worker.RemoteWriteJob) error
	RedriveWrites(ctx context.Context, storeID string) ([]worker.RemoteWriteJob, error)
}

// Syncer is the part of the sync engine the facade drives.
type Syncer interface {
	FetchRemote(ctx context.Context, storeID string) ([]model.Product, error)
	MergeRemote(ctx context.Context, storeID string, remote []model.Product) error
	FullSync(ctx context.Context, storeID string) error
	ShouldSync(ctx context.Context, storeID string) bool
	LastSynced(ctx context.Context, storeID string) (time.Time, bool)
	Nudge(ctx context.Context, storeID string)
}

// ImageResolver finds the conventional image of a product.
type ImageResolver interface {
	Probe(ctx context.Context, cat model.Categoria, sku string) (string, bool)
	Forget(ctx context.Context, cat model.Categoria, sku string)
}

// LinkResolver maps SKUs to product pages.
type LinkResolver interface {
	Lookup(sku string) (string, bool)
}

// ProductService is the product operations facade. Every operation writes
// the store's cache first and hands the remote write to the outbox; the
// cached record's SyncStatus tells whether it has landed.
type ProductService interface {
	GetAll(ctx context.Context, storeID string) ([]model.Product, error)
	GetAllFresh(ctx context.Context, storeID string) ([]model.Product, error)
	GetBySKU(ctx context.Context, storeID, sku string) (*model.Product, error)
	Add(ctx context.Context, storeID string, p model.Product) (*model.Product, error)
	RemoveMany(ctx context.Context, storeID string, skus []string) (int, error)
	UpdateFields(ctx context.Context, storeID, sku string, cat model.Categoria, patch model.ProductPatch) (*model.Product, error)
	SearchAcrossStores(ctx context.Context, sku string) []dto.SearchHit
	MoveBox(ctx context.Context, storeID string, p model.Product, newBox string) (*model.Product, error)
	SetPromotion(ctx context.Context, storeID, sku string, cat model.Categoria, onSale bool, salePrice *decimal.Decimal) (*model.Product, error)
	SetGender(ctx context.Context, storeID, sku string, cat model.Categoria, gender *model.Gender) (*model.Product, error)
	ListByBox(ctx context.Context, storeID, caixa string) ([]model.Product, error)
	ListBoxes(ctx context.Context, storeID string) ([]dto.BoxSummary, error)
	AttachImage(ctx context.Context, storeID, sku string, cat model.Categoria, path string) (*model.Product, error)
	RecentDeletions(ctx context.Context, storeID string, limit int) ([]dto.DeletedProductResponse, error)
	SyncNow(ctx context.Context, storeID string) error
	SyncStatus(ctx context.Context, storeID string) (*dto.SyncStatusResponse, error)
	RetryFailed(ctx context.Context, storeID string) (int, error)
}

// ProductServiceDeps groups the collaborators of the facade.
type ProductServiceDeps struct {
	Repo      repository.ProductRepository
	Images    repository.ImageRepository
	Deletions repository.DeletionRepository
	Cache     *cache.ProductCache
	Queue     WriteQueue
	Sync      Syncer
	Prober    ImageResolver
	Links     LinkResolver
	Catalog   config.Catalog
}

type productService struct {
	repo      repository.ProductRepository
	images    repository.ImageRepository
	deletions repository.DeletionRepository
	cache     *cache.ProductCache
	queue     WriteQueue
	sync      Syncer
	prober    ImageResolver
	links     LinkResolver
	catalog   config.Catalog
	now       func() time.Time
}

func NewProductService(d ProductServiceDeps) ProductService {
	return &productService{
		repo:      d.Repo,
		images:    d.Images,
		deletions: d.Deletions,
		cache:     d.Cache,
		queue:     d.Queue,
		sync:      d.Sync,
		prober:    d.Prober,
		links:     d.Links,
		catalog:   d.Catalog,
		now:       time.Now,
	}
}

func (s *productService) checkStore(storeID string) error {
	if !s.catalog.HasStore(storeID) {
		return fmt.Errorf("%w: %q", ErrUnknownStore, storeID)
	}
	return nil
}

func (s *productService) checkCategoria(cat model.Categoria) error {
	if cat == "" {
		return ErrCategoryRequired
	}
	if !s.catalog.HasCategoria(cat) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, cat)
	}
	return nil
}

// ── Reads ───────────────────────────────────────────────────────────────────

func (s *productService) GetAll(ctx context.Context, storeID string) ([]model.Product, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	products := s.cache.Read(ctx, storeID)
	for i := range products {
		s.resolveLink(&products[i])
	}
	model.SortByBox(products)
	return products, nil
}

func (s *productService) GetAllFresh(ctx context.Context, storeID string) ([]model.Product, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	remote, err := s.sync.FetchRemote(ctx, storeID)
	if err != nil {
		log.Warn().Err(err).Str("store", storeID).Msg("product_service: remote read failed, serving cache")
		return s.GetAll(ctx, storeID)
	}
	for i := range remote {
		s.resolveImage(ctx, &remote[i])
	}
	if err := s.sync.MergeRemote(ctx, storeID, remote); err != nil {
		log.Warn().Err(err).Str("store", storeID).Msg("product_service: merge failed, serving cache")
	}
	return s.GetAll(ctx, storeID)
}

func (s *productService) GetBySKU(ctx context.Context, storeID, sku string) (*model.Product, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, nil
	}
	for _, p := range s.cache.Read(ctx, storeID) {
		if model.SameSKU(p.SKU, sku) {
			s.resolveLink(&p)
			return &p, nil
		}
	}

	tombs := &cache.Snapshot{Tombstones: s.cache.Tombstones(ctx, storeID)}
	for _, cat := range s.catalog.Categories {
		if tombs.FindTombstone(cat, sku) >= 0 {
			continue
		}
		found, err := s.repo.FindBySKU(ctx, storeID, cat, sku)
		if err != nil {
			if !repository.IsNotFound(err) {
				log.Warn().Err(err).Str("store", storeID).Str("categoria", string(cat)).Str("sku", sku).
					Msg("product_service: remote lookup failed")
			}
			continue
		}
		p := worker.NormalizeRemote(*found, storeID)
		s.resolveImage(ctx, &p)
		s.cacheRemote(ctx, storeID, p)
		s.resolveLink(&p)
		return &p, nil
	}
	return nil, nil
}

// cacheRemote inserts a record fetched on a cache miss, unless the cache
// gained a same-or-newer version in the meantime.
func (s *productService) cacheRemote(ctx context.Context, storeID string, p model.Product) {
	err := s.cache.Update(ctx, storeID, func(snap *cache.Snapshot) error {
		if snap.FindTombstone(p.Categoria, p.SKU) >= 0 {
			return nil
		}
		for i, c := range snap.Products {
			if c.Categoria == p.Categoria && model.SameSKU(c.SKU, p.SKU) {
				if c.Version < p.Version {
					snap.Products[i] = p
				}
				return nil
			}
		}
		snap.Products = append(snap.Products, p)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("store", storeID).Str("sku", p.SKU).Msg("product_service: could not cache remote hit")
	}
}

// ── Writes ──────────────────────────────────────────────────────────────────

func (s *productService) Add(ctx context.Context, storeID string, p model.Product) (*model.Product, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	if err := s.checkCategoria(p.Categoria); err != nil {
		return nil, err
	}
	p.SKU = strings.TrimSpace(p.SKU)
	if p.SKU == "" {
		return nil, ErrSKURequired
	}
	p.Caixa = strings.TrimSpace(p.Caixa)
	if p.Caixa == "" {
		return nil, ErrBoxRequired
	}
	if p.Gender != nil && !p.Gender.Valid() {
		return nil, ErrInvalidGender
	}

	s.resolveImage(ctx, &p)
	var remoteVersion int64
	remote, err := s.remoteCopy(ctx, storeID, p.Categoria, p.SKU)
	switch {
	case err != nil:
		// The write still goes out; the outbox checks it against the
		// stored row if the remote store refuses its version.
		log.Warn().Err(err).Str("store", storeID).Str("sku", p.SKU).
			Msg("product_service: remote version unknown, writing from cache version")
	case remote != nil:
		remoteVersion = remote.Version
		p.SKU = remote.SKU
	}

	now := s.now()
	var jobs []worker.RemoteWriteJob
	err = s.cache.Update(ctx, storeID, func(snap *cache.Snapshot) error {
		jobs = jobs[:0]
		base := remoteVersion
		createdAt := now
		kept := snap.Products[:0]
		for _, c := range snap.Products {
			if !model.SameSKU(c.SKU, p.SKU) {
				kept = append(kept, c)
				continue
			}
			if c.Categoria == p.Categoria {
				base = max(base, c.Version)
				createdAt = c.CreatedAt
				if remote == nil {
					p.SKU = c.SKU
				}
				continue
			}
			// Re-categorized: a SKU lives in one categoria per store, so the
			// old document goes away.
			ts := cache.Tombstone{
				Categoria: c.Categoria, SKU: c.SKU, Version: c.Version + 1,
				Status: model.SyncPending, DeletedAt: now, Product: c,
			}
			snap.RemoveTombstone(c.Categoria, c.SKU)
			snap.Tombstones = append(snap.Tombstones, ts)
			snapshot := c
			jobs = append(jobs, worker.RemoteWriteJob{
				Op: worker.OpDelete, Key: model.ProductKey{StoreID: storeID, Categoria: c.Categoria, SKU: c.SKU},
				Version: ts.Version, Product: &snapshot, At: now,
			})
		}
		if i := snap.FindTombstone(p.Categoria, p.SKU); i >= 0 {
			base = max(base, snap.Tombstones[i].Version)
			snap.RemoveTombstone(p.Categoria, p.SKU)
		}

		p.ID = p.SKU
		p.StoreID = storeID
		p.Version = base + 1
		p.CreatedAt = createdAt
		p.LastModified = now
		p.SyncStatus = model.SyncPending
		snap.Products = append(kept, p)

		snapshot := p
		jobs = append(jobs, worker.RemoteWriteJob{
			Op: worker.OpUpsert, Key: p.Key(), Version: p.Version, Product: &snapshot, At: now,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", p.SKU, err)
	}

	s.dispatch(ctx, storeID, jobs)
	if stored := s.cachedByKey(ctx, p.Key()); stored != nil {
		s.resolveLink(stored)
		return stored, nil
	}
	s.resolveLink(&p)
	return &p, nil
}

func (s *productService) MoveBox(ctx context.Context, storeID string, p model.Product, newBox string) (*model.Product, error) {
	newBox = strings.TrimSpace(newBox)
	if newBox == "" {
		return nil, ErrBoxRequired
	}
	p.Caixa = newBox
	return s.Add(ctx, storeID, p)
}

func (s *productService) RemoveMany(ctx context.Context, storeID string, skus []string) (int, error) {
	if err := s.checkStore(storeID); err != nil {
		return 0, err
	}

	cached := s.cache.Read(ctx, storeID)
	// SKUs unknown to the cache are looked up remotely so the delete still
	// reaches the remote store.
	var remoteOnly []model.Product
	looked := make(map[string]bool)
	for _, sku := range skus {
		sku = strings.TrimSpace(sku)
		if sku == "" || looked[strings.ToLower(sku)] || containsSKU(cached, sku) {
			continue
		}
		looked[strings.ToLower(sku)] = true
		for _, cat := range s.catalog.Categories {
			found, err := s.repo.FindBySKU(ctx, storeID, cat, sku)
			if err != nil {
				if !repository.IsNotFound(err) {
					log.Warn().Err(err).Str("store", storeID).Str("sku", sku).Msg("product_service: remote lookup before delete failed")
				}
				continue
			}
			remoteOnly = append(remoteOnly, worker.NormalizeRemote(*found, storeID))
		}
	}

	now := s.now()
	var jobs []worker.RemoteWriteJob
	err := s.cache.Update(ctx, storeID, func(snap *cache.Snapshot) error {
		jobs = jobs[:0]
		tombstone := func(p model.Product) {
			version := p.Version + 1
			if i := snap.FindTombstone(p.Categoria, p.SKU); i >= 0 {
				version = max(version, snap.Tombstones[i].Version+1)
				snap.RemoveTombstone(p.Categoria, p.SKU)
			}
			snap.Tombstones = append(snap.Tombstones, cache.Tombstone{
				Categoria: p.Categoria, SKU: p.SKU, Version: version,
				Status: model.SyncPending, DeletedAt: now, Product: p,
			})
			snapshot := p
			jobs = append(jobs, worker.RemoteWriteJob{
				Op: worker.OpDelete, Key: model.ProductKey{StoreID: storeID, Categoria: p.Categoria, SKU: p.SKU},
				Version: version, Product: &snapshot, At: now,
			})
		}

		kept := snap.Products[:0]
		for _, c := range snap.Products {
			if containsString(skus, c.SKU) {
				tombstone(c)
				continue
			}
			kept = append(kept, c)
		}
		snap.Products = kept
		for _, r := range remoteOnly {
			tombstone(r)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}

	s.dispatch(ctx, storeID, jobs)
	return len(jobs), nil
}

func (s *productService) UpdateFields(ctx context.Context, storeID, sku string, cat model.Categoria, patch model.ProductPatch) (*model.Product, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	if err := s.checkCategoria(cat); err != nil {
		return nil, err
	}
	if patch.Gender != nil && *patch.Gender != "" && !patch.Gender.Valid() {
		return nil, ErrInvalidGender
	}
	if patch.Caixa != nil && strings.TrimSpace(*patch.Caixa) == "" {
		return nil, ErrBoxRequired
	}

	key := model.ProductKey{StoreID: storeID, Categoria: cat, SKU: strings.TrimSpace(sku)}
	if s.cachedByKey(ctx, key) == nil {
		// Pulls the record into the cache on a miss.
		found, err := s.GetBySKU(ctx, storeID, key.SKU)
		if err != nil {
			return nil, err
		}
		if found == nil || found.Categoria != cat {
			return nil, ErrNotFound
		}
	}
	if patch.Empty() {
		return s.cachedByKey(ctx, key), nil
	}

	now := s.now()
	var updated *model.Product
	var jobs []worker.RemoteWriteJob
	err := s.cache.Update(ctx, storeID, func(snap *cache.Snapshot) error {
		jobs = jobs[:0]
		for i := range snap.Products {
			c := &snap.Products[i]
			if c.Categoria != cat || !model.SameSKU(c.SKU, key.SKU) {
				continue
			}
			patch.Apply(c)
			c.Version++
			c.LastModified = now
			c.SyncStatus = model.SyncPending
			cp := *c
			updated = &cp
			pp := patch
			snapshot := cp
			jobs = append(jobs, worker.RemoteWriteJob{
				Op: worker.OpUpdateFields, Key: c.Key(), Version: c.Version,
				Product: &snapshot, Patch: &pp, At: now,
			})
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, storeID, jobs)
	if stored := s.cachedByKey(ctx, updated.Key()); stored != nil {
		updated = stored
	}
	s.resolveLink(updated)
	return updated, nil
}

func (s *productService) SetPromotion(ctx context.Context, storeID, sku string, cat model.Categoria, onSale bool, salePrice *decimal.Decimal) (*model.Product, error) {
	now := s.now()
	patch := model.ProductPatch{OnSale: &onSale, SaleUpdatedAt: &now}
	switch {
	case !onSale:
		patch.ClearSalePrice = true
	case salePrice != nil:
		price := salePrice.Round(2)
		patch.SalePrice = &price
	}
	return s.UpdateFields(ctx, storeID, sku, cat, patch)
}

func (s *productService) SetGender(ctx context.Context, storeID, sku string, cat model.Categoria, gender *model.Gender) (*model.Product, error) {
	g := model.Gender("")
	if gender != nil {
		g = *gender
	}
	return s.UpdateFields(ctx, storeID, sku, cat, model.ProductPatch{Gender: &g})
}

func (s *productService) AttachImage(ctx context.Context, storeID, sku string, cat model.Categoria, path string) (*model.Product, error) {
	if s.images != nil {
		img := &model.PermanentImage{Categoria: cat, SKU: strings.TrimSpace(sku), Path: path}
		if err := s.images.Save(ctx, img); err != nil {
			log.Warn().Err(err).Str("sku", sku).Msg("product_service: could not persist image path")
		}
	}
	if s.prober != nil {
		s.prober.Forget(ctx, cat, sku)
	}
	return s.UpdateFields(ctx, storeID, sku, cat, model.ProductPatch{Imagem: &path})
}

// ── Search and boxes ────────────────────────────────────────────────────────

func (s *productService) SearchAcrossStores(ctx context.Context, sku string) []dto.SearchHit {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return []dto.SearchHit{}
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		hits = make(map[string][]model.Product, len(s.catalog.Stores))
	)
	for _, store := range s.catalog.Stores {
		wg.Add(1)
		go func(store string) {
			defer wg.Done()
			for _, cat := range s.catalog.Categories {
				found, err := s.repo.FindBySKU(ctx, store, cat, sku)
				if err != nil {
					if !repository.IsNotFound(err) {
						log.Warn().Err(err).Str("store", store).Str("categoria", string(cat)).
							Msg("product_service: cross-store lookup failed")
					}
					continue
				}
				p := worker.NormalizeRemote(*found, store)
				s.resolveLink(&p)
				mu.Lock()
				hits[store] = append(hits[store], p)
				mu.Unlock()
			}
		}(store)
	}
	wg.Wait()

	out := make([]dto.SearchHit, 0, len(hits))
	for _, store := range s.catalog.Stores {
		for _, p := range hits[store] {
			out = append(out, dto.SearchHit{StoreID: store, Product: ToProductResponse(p)})
		}
	}
	return out
}

func (s *productService) ListByBox(ctx context.Context, storeID, caixa string) ([]model.Product, error) {
	all, err := s.GetAll(ctx, storeID)
	if err != nil {
		return nil, err
	}
	want := boxKey(caixa)
	out := make([]model.Product, 0)
	for _, p := range all {
		if boxKey(p.Caixa) == want {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *productService) ListBoxes(ctx context.Context, storeID string) ([]dto.BoxSummary, error) {
	all, err := s.GetAll(ctx, storeID)
	if err != nil {
		return nil, err
	}
	// Grouped the way ListByBox matches; the first label seen is shown.
	counts := make(map[string]int)
	labels := make(map[string]string)
	var keys []string
	for _, p := range all {
		k := boxKey(p.Caixa)
		if _, ok := counts[k]; !ok {
			keys = append(keys, k)
			labels[k] = strings.TrimSpace(p.Caixa)
		}
		counts[k]++
	}
	sort.SliceStable(keys, func(i, j int) bool { return model.BoxLess(labels[keys[i]], labels[keys[j]]) })
	out := make([]dto.BoxSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, dto.BoxSummary{Caixa: labels[k], Count: counts[k]})
	}
	return out, nil
}

// boxKey is the identity of a box label: trimmed, case-insensitive.
func boxKey(caixa string) string {
	return strings.ToLower(strings.TrimSpace(caixa))
}

func (s *productService) RecentDeletions(ctx context.Context, storeID string, limit int) ([]dto.DeletedProductResponse, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.deletions.ListByStore(ctx, storeID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DeletedProductResponse, len(rows))
	for i, r := range rows {
		out[i] = dto.DeletedProductResponse{
			ID: r.ID.String(), SKU: r.SKU, Categoria: string(r.Categoria), Caixa: r.Caixa, DeletedAt: r.DeletedAt,
		}
	}
	return out, nil
}

// ── Sync ────────────────────────────────────────────────────────────────────

func (s *productService) SyncNow(ctx context.Context, storeID string) error {
	if err := s.checkStore(storeID); err != nil {
		return err
	}
	return s.sync.FullSync(ctx, storeID)
}

func (s *productService) SyncStatus(ctx context.Context, storeID string) (*dto.SyncStatusResponse, error) {
	if err := s.checkStore(storeID); err != nil {
		return nil, err
	}
	resp := &dto.SyncStatusResponse{StoreID: storeID, ShouldSync: s.sync.ShouldSync(ctx, storeID)}
	if t, ok := s.sync.LastSynced(ctx, storeID); ok {
		resp.LastSyncedAt = &t
	}
	for _, p := range s.cache.Read(ctx, storeID) {
		switch p.SyncStatus {
		case model.SyncPending:
			resp.Pending++
		case model.SyncFailed:
			resp.Failed++
		}
	}
	for _, t := range s.cache.Tombstones(ctx, storeID) {
		switch t.Status {
		case model.SyncPending:
			resp.Pending++
		case model.SyncFailed:
			resp.Failed++
		}
	}
	return resp, nil
}

// RetryFailed redrives the dead-lettered writes of a store and flips their
// cached records back to pending.
func (s *productService) RetryFailed(ctx context.Context, storeID string) (int, error) {
	if err := s.checkStore(storeID); err != nil {
		return 0, err
	}
	jobs, err := s.queue.RedriveWrites(ctx, storeID)
	if err != nil {
		return len(jobs), err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	err = s.cache.Update(ctx, storeID, func(snap *cache.Snapshot) error {
		for _, j := range jobs {
			if j.Op == worker.OpDelete {
				if i := snap.FindTombstone(j.Key.Categoria, j.Key.SKU); i >= 0 && snap.Tombstones[i].Version == j.Version {
					snap.Tombstones[i].Status = model.SyncPending
				}
				continue
			}
			for i := range snap.Products {
				p := &snap.Products[i]
				if p.Categoria == j.Key.Categoria && model.SameSKU(p.SKU, j.Key.SKU) && p.Version == j.Version {
					p.SyncStatus = model.SyncPending
				}
			}
		}
		return nil
	})
	return len(jobs), err
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// dispatch hands jobs to the outbox. A job that cannot be queued marks its
// record failed so RetryFailed-style tooling and the UI can see it.
func (s *productService) dispatch(ctx context.Context, storeID string, jobs []worker.RemoteWriteJob) {
	var failed []worker.RemoteWriteJob
	for _, j := range jobs {
		if err := s.queue.EnqueueWrite(ctx, j); err != nil {
			log.Error().Err(err).Str("key", j.Key.String()).Msg("product_service: enqueue failed")
			failed = append(failed, j)
		}
	}
	if len(failed) == 0 {
		return
	}
	err := s.cache.Update(ctx, storeID, func(snap *cache.Snapshot) error {
		for _, j := range failed {
			if j.Op == worker.OpDelete {
				if i := snap.FindTombstone(j.Key.Categoria, j.Key.SKU); i >= 0 && snap.Tombstones[i].Version == j.Version {
					snap.Tombstones[i].Status = model.SyncFailed
				}
				continue
			}
			for i := range snap.Products {
				p := &snap.Products[i]
				if p.Categoria == j.Key.Categoria && model.SameSKU(p.SKU, j.Key.SKU) && p.Version == j.Version {
					p.SyncStatus = model.SyncFailed
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("store", storeID).Msg("product_service: could not mark failed writes")
	}
}

func (s *productService) cachedByKey(ctx context.Context, key model.ProductKey) *model.Product {
	for _, p := range s.cache.Read(ctx, key.StoreID) {
		if p.Categoria == key.Categoria && model.SameSKU(p.SKU, key.SKU) {
			return &p
		}
	}
	return nil
}

// remoteCopy returns the stored document, nil when it does not exist, or
// the lookup error. Callers keep its SKU casing and start new versions
// above its version.
func (s *productService) remoteCopy(ctx context.Context, storeID string, cat model.Categoria, sku string) (*model.Product, error) {
	found, err := s.repo.FindBySKU(ctx, storeID, cat, sku)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	return found, err
}

// resolveImage fills Imagem when unset: a recorded permanent image first,
// then a probe of the conventional path. A miss leaves it unset.
func (s *productService) resolveImage(ctx context.Context, p *model.Product) {
	if p.Imagem != nil && *p.Imagem != "" {
		return
	}
	if s.images != nil {
		if img, err := s.images.Find(ctx, p.Categoria, p.SKU); err == nil && img.Path != "" {
			path := img.Path
			p.Imagem = &path
			return
		}
	}
	if s.prober == nil {
		return
	}
	path, ok := s.prober.Probe(ctx, p.Categoria, p.SKU)
	if !ok {
		return
	}
	p.Imagem = &path
	if s.images != nil {
		if err := s.images.Save(ctx, &model.PermanentImage{Categoria: p.Categoria, SKU: p.SKU, Path: path}); err != nil {
			log.Debug().Err(err).Str("sku", p.SKU).Msg("product_service: could not persist probed image")
		}
	}
}

func (s *productService) resolveLink(p *model.Product) {
	if p.Link != nil || s.links == nil {
		return
	}
	if url, ok := s.links.Lookup(p.SKU); ok {
		p.Link = &url
	}
}

func containsSKU(products []model.Product, sku string) bool {
	for _, p := range products {
		if model.SameSKU(p.SKU, sku) {
			return true
		}
	}
	return false
}

func containsString(skus []string, sku string) bool {
	for _, s := range skus {
		if model.SameSKU(s, sku) {
			return true
		}
	}
	return false
}

// ToProductResponse maps a product onto its API shape.
func ToProductResponse(p model.Product) dto.ProductResponse {
	r := dto.ProductResponse{
		ID:            p.SKU,
		StoreID:       p.StoreID,
		SKU:           p.SKU,
		Categoria:     string(p.Categoria),
		Caixa:         p.Caixa,
		Imagem:        p.Imagem,
		Link:          p.Link,
		OnSale:        p.OnSale,
		SalePrice:     p.SalePrice,
		SaleUpdatedAt: p.SaleUpdatedAt,
		Version:       p.Version,
		SyncStatus:    string(p.SyncStatus),
		CreatedAt:     p.CreatedAt,
		LastModified:  p.LastModified,
	}
	if p.Gender != nil {
		g := string(*p.Gender)
		r.Gender = &g
	}
	return r
}

// ToProductResponses maps a list, never returning nil.
func ToProductResponses(ps []model.Product) []dto.ProductResponse {
	out := make([]dto.ProductResponse, len(ps))
	for i, p := range ps {
		out[i] = ToProductResponse(p)
	}
	return out
}
