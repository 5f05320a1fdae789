// Package repotest provides in-memory repositories for tests. Products
// honour the same version guard as the Postgres implementation.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"boxtrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Products is an in-memory repository.ProductRepository. Rows are keyed by
// their exact SKU; lookups and writes match case-insensitively the way the
// unique lower(sku) index does. Setting Err makes every call fail with it.
type Products struct {
	mu    sync.Mutex
	rows  map[string]model.Product
	Err   error
	Calls int
}

func NewProducts() *Products {
	return &Products{rows: make(map[string]model.Product)}
}

func rowKey(store string, cat model.Categoria, sku string) string {
	return store + "/" + string(cat) + "/" + sku
}

// find returns the key of the row matching sku regardless of case,
// preferring an exact match.
func (r *Products) find(store string, cat model.Categoria, sku string) (string, bool) {
	if _, ok := r.rows[rowKey(store, cat, sku)]; ok {
		return rowKey(store, cat, sku), true
	}
	var keys []string
	for k, p := range r.rows {
		if p.StoreID == store && p.Categoria == cat && strings.EqualFold(p.SKU, sku) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

// Seed stores p as is, bypassing the version guard and the case-insensitive
// match, so tests can recreate rows written before the unique index existed.
func (r *Products) Seed(p model.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Version == 0 {
		p.Version = 1
	}
	p.SyncStatus = ""
	r.rows[rowKey(p.StoreID, p.Categoria, p.SKU)] = p
}

// Get returns the row stored under exactly this SKU, if any.
func (r *Products) Get(store string, cat model.Categoria, sku string) (model.Product, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[rowKey(store, cat, sku)]
	return p, ok
}

// Count returns the number of stored rows.
func (r *Products) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Products) SetErr(err error) {
	r.mu.Lock()
	r.Err = err
	r.mu.Unlock()
}

func (r *Products) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls
}

func (r *Products) enter() error {
	r.Calls++
	return r.Err
}

func (r *Products) ListByStore(_ context.Context, storeID string) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return nil, err
	}
	var out []model.Product
	for _, p := range r.rows {
		if p.StoreID == storeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *Products) ListByCategory(_ context.Context, storeID string, cat model.Categoria) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return nil, err
	}
	var out []model.Product
	for _, p := range r.rows {
		if p.StoreID == storeID && p.Categoria == cat {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *Products) FindBySKU(_ context.Context, storeID string, cat model.Categoria, sku string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return nil, err
	}
	k, ok := r.find(storeID, cat, sku)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p := r.rows[k]
	return &p, nil
}

func (r *Products) Upsert(_ context.Context, p *model.Product) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return false, err
	}
	row := *p
	row.SyncStatus = ""
	k, ok := r.find(p.StoreID, p.Categoria, p.SKU)
	if !ok {
		r.rows[rowKey(p.StoreID, p.Categoria, p.SKU)] = row
		return true, nil
	}
	cur := r.rows[k]
	if cur.Version >= p.Version {
		return false, nil
	}
	row.SKU = cur.SKU
	row.CreatedAt = cur.CreatedAt
	r.rows[k] = row
	return true, nil
}

func (r *Products) UpdateFields(_ context.Context, key model.ProductKey, patch model.ProductPatch, version int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return false, err
	}
	k, ok := r.find(key.StoreID, key.Categoria, key.SKU)
	if !ok {
		return false, nil
	}
	cur := r.rows[k]
	if cur.Version >= version {
		return false, nil
	}
	patch.Apply(&cur)
	cur.Version = version
	cur.LastModified = at
	r.rows[k] = cur
	return true, nil
}

func (r *Products) Delete(_ context.Context, key model.ProductKey, version int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return false, err
	}
	k, ok := r.find(key.StoreID, key.Categoria, key.SKU)
	if !ok || r.rows[k].Version >= version {
		return false, nil
	}
	delete(r.rows, k)
	return true, nil
}

// Images is an in-memory repository.ImageRepository.
type Images struct {
	mu   sync.Mutex
	rows map[string]model.PermanentImage
}

func NewImages() *Images { return &Images{rows: make(map[string]model.PermanentImage)} }

func (r *Images) Find(_ context.Context, cat model.Categoria, sku string) (*model.PermanentImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.rows[string(cat)+"/"+sku]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &img, nil
}

func (r *Images) Save(_ context.Context, img *model.PermanentImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[string(img.Categoria)+"/"+img.SKU] = *img
	return nil
}

// Deletions is an in-memory repository.DeletionRepository.
type Deletions struct {
	mu   sync.Mutex
	rows []model.DeletedProduct
}

func NewDeletions() *Deletions { return &Deletions{} }

func (r *Deletions) Record(_ context.Context, d *model.DeletedProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.rows = append(r.rows, *d)
	return nil
}

func (r *Deletions) ListByStore(_ context.Context, storeID string, limit int) ([]model.DeletedProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DeletedProduct
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].StoreID == storeID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

// Secrets is an in-memory repository.SecretRepository.
type Secrets struct {
	mu   sync.Mutex
	rows map[string]model.StoreSecret
}

func NewSecrets() *Secrets { return &Secrets{rows: make(map[string]model.StoreSecret)} }

func (r *Secrets) Find(_ context.Context, storeID string) (*model.StoreSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[storeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *Secrets) Save(_ context.Context, s *model.StoreSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.StoreID] = *s
	return nil
}
