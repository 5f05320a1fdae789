// Package cache holds the per-store product snapshot used for fast reads.
//
// Each store owns one JSON blob under products_{storeId}. The blob is always
// replaced wholesale; read-modify-write cycles go through Update, which holds
// a short per-store lock so concurrent mutations do not drop each other.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"boxtrack/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultStore is used when a caller passes an empty store id.
const DefaultStore = "default"

const (
	lockTTL     = 5 * time.Second
	lockWait    = 3 * time.Second
	lockBackoff = 15 * time.Millisecond
)

// ErrLockTimeout is returned by Update when the store lock cannot be taken.
var ErrLockTimeout = errors.New("cache: timed out waiting for store lock")

// Tombstone marks a product removed locally whose remote delete may still be
// in flight. Lookups treat tombstoned keys as absent.
type Tombstone struct {
	Categoria model.Categoria  `json:"categoria"`
	SKU       string           `json:"sku"`
	Version   int64            `json:"version"`
	Status    model.SyncStatus `json:"status"`
	DeletedAt time.Time        `json:"deletedAt"`
	Product   model.Product    `json:"product"`
}

// Snapshot is the mutable view handed to Update callbacks.
type Snapshot struct {
	Products   []model.Product
	Tombstones []Tombstone
}

// FindTombstone returns the index of the tombstone for (cat, sku) or -1.
func (s *Snapshot) FindTombstone(cat model.Categoria, sku string) int {
	for i, t := range s.Tombstones {
		if t.Categoria == cat && model.SameSKU(t.SKU, sku) {
			return i
		}
	}
	return -1
}

// RemoveTombstone drops the tombstone for (cat, sku) if present.
func (s *Snapshot) RemoveTombstone(cat model.Categoria, sku string) {
	if i := s.FindTombstone(cat, sku); i >= 0 {
		s.Tombstones = append(s.Tombstones[:i], s.Tombstones[i+1:]...)
	}
}

// ProductCache reads and writes per-store product blobs.
type ProductCache struct {
	kv  KV
	now func() time.Time
}

func NewProductCache(kv KV) *ProductCache {
	return &ProductCache{kv: kv, now: time.Now}
}

// Key returns the blob key for a store.
func Key(storeID string) string {
	if storeID == "" {
		storeID = DefaultStore
	}
	return "products_" + storeID
}

func tombstoneKey(storeID string) string { return Key(storeID) + ":deleted" }
func syncedKey(storeID string) string    { return Key(storeID) + ":synced_at" }
func lockKey(storeID string) string      { return Key(storeID) + ":lock" }

// Read returns the cached products of a store, or an empty slice when the
// store was never populated or the blob cannot be decoded.
func (c *ProductCache) Read(ctx context.Context, storeID string) []model.Product {
	var products []model.Product
	if !c.readJSON(ctx, Key(storeID), &products) || products == nil {
		products = []model.Product{}
	}
	return products
}

// Write replaces the whole blob of a store.
func (c *ProductCache) Write(ctx context.Context, storeID string, products []model.Product) error {
	if products == nil {
		products = []model.Product{}
	}
	return c.writeJSON(ctx, Key(storeID), products)
}

// Tombstones returns the pending local deletions of a store.
func (c *ProductCache) Tombstones(ctx context.Context, storeID string) []Tombstone {
	var ts []Tombstone
	if !c.readJSON(ctx, tombstoneKey(storeID), &ts) {
		return nil
	}
	return ts
}

// Update runs fn on the current snapshot under the store lock and writes
// back whatever fn leaves in it. When fn returns an error nothing is written.
func (c *ProductCache) Update(ctx context.Context, storeID string, fn func(*Snapshot) error) error {
	release, err := c.lock(ctx, storeID)
	if err != nil {
		return err
	}
	defer release()

	snap := &Snapshot{
		Products:   c.Read(ctx, storeID),
		Tombstones: c.Tombstones(ctx, storeID),
	}
	if err := fn(snap); err != nil {
		return err
	}
	if snap.Products == nil {
		snap.Products = []model.Product{}
	}
	products, err := json.Marshal(snap.Products)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", Key(storeID), err)
	}
	var tombs []byte
	if len(snap.Tombstones) > 0 {
		if tombs, err = json.Marshal(snap.Tombstones); err != nil {
			return fmt.Errorf("cache: encode %s: %w", tombstoneKey(storeID), err)
		}
	}
	// Products and tombstones land together: a removed product is never
	// left without its tombstone.
	return c.kv.SetMany(ctx, map[string][]byte{
		Key(storeID):          products,
		tombstoneKey(storeID): tombs,
	})
}

// LastSynced returns when the store was last reconciled with the remote store.
func (c *ProductCache) LastSynced(ctx context.Context, storeID string) (time.Time, bool) {
	b, err := c.kv.Get(ctx, syncedKey(storeID))
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarkSynced records a successful reconciliation.
func (c *ProductCache) MarkSynced(ctx context.Context, storeID string, at time.Time) error {
	return c.kv.Set(ctx, syncedKey(storeID), []byte(at.UTC().Format(time.RFC3339Nano)), 0)
}

func (c *ProductCache) lock(ctx context.Context, storeID string) (func(), error) {
	token := []byte(uuid.NewString())
	deadline := c.now().Add(lockWait)
	for {
		ok, err := c.kv.SetNX(ctx, lockKey(storeID), token, lockTTL)
		if err != nil {
			return nil, fmt.Errorf("cache: lock %s: %w", storeID, err)
		}
		if ok {
			break
		}
		if c.now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return func() {
		// Only release our own lock; a holder that outlived lockTTL may have lost it.
		if _, err := c.kv.DelIfEqual(context.WithoutCancel(ctx), lockKey(storeID), token); err != nil {
			log.Warn().Err(err).Str("store", storeID).Msg("cache: lock release failed, expires with its TTL")
		}
	}, nil
}

func (c *ProductCache) readJSON(ctx context.Context, key string, dest interface{}) bool {
	b, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("cache: read failed, treating as empty")
		}
		return false
	}
	if err := json.Unmarshal(b, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: malformed blob, treating as empty")
		return false
	}
	return true
}

func (c *ProductCache) writeJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.kv.Set(ctx, key, b, 0)
}
