package worker

import (
	"strings"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/model"
)

// NormalizeRemote prepares a remote row for the cache: id mirrors the SKU,
// timestamps move to local time and the record counts as confirmed.
func NormalizeRemote(p model.Product, storeID string) model.Product {
	p.ID = p.SKU
	p.StoreID = storeID
	if p.Version < 1 {
		p.Version = 1
	}
	if p.LastModified.IsZero() {
		p.LastModified = p.CreatedAt
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.LastModified
	}
	p.CreatedAt = p.CreatedAt.Local()
	p.LastModified = p.LastModified.Local()
	if p.SaleUpdatedAt != nil {
		t := p.SaleUpdatedAt.Local()
		p.SaleUpdatedAt = &t
	}
	p.SyncStatus = model.SyncConfirmed
	return p
}

func mergeKey(cat model.Categoria, sku string) string {
	return string(cat) + "/" + strings.ToLower(strings.TrimSpace(sku))
}

// Merge reconciles a cache snapshot with the remote rows of a store, per
// record, keeping whichever side carries the newer version:
//
//   - a tombstone at least as new as the remote row hides it
//   - a local record with a higher version (or equal version and later
//     lastModified) wins over the remote row
//   - local records missing remotely survive only while not yet confirmed
//
// Tombstones older than the remote row are dropped; the row was re-created
// elsewhere after the deletion. SKUs match case-insensitively and the result
// holds at most one record per (categoria, sku).
func Merge(snap *cache.Snapshot, remote []model.Product) {
	remote = dedupe(remote)
	local := make(map[string]model.Product, len(snap.Products))
	for _, p := range snap.Products {
		local[mergeKey(p.Categoria, p.SKU)] = p
	}
	tombs := make(map[string]cache.Tombstone, len(snap.Tombstones))
	for _, t := range snap.Tombstones {
		tombs[mergeKey(t.Categoria, t.SKU)] = t
	}

	seen := make(map[string]bool, len(remote))
	merged := make([]model.Product, 0, len(remote)+len(snap.Products))
	for _, r := range remote {
		k := mergeKey(r.Categoria, r.SKU)
		seen[k] = true

		if t, ok := tombs[k]; ok {
			if t.Version >= r.Version {
				continue
			}
			delete(tombs, k)
		}
		if l, ok := local[k]; ok && newer(l, r) {
			merged = append(merged, l)
			continue
		}
		merged = append(merged, r)
	}

	for _, p := range snap.Products {
		k := mergeKey(p.Categoria, p.SKU)
		if seen[k] {
			continue
		}
		if p.SyncStatus == model.SyncPending || p.SyncStatus == model.SyncFailed {
			seen[k] = true
			merged = append(merged, p)
		}
	}

	kept := snap.Tombstones[:0]
	for _, t := range snap.Tombstones {
		if _, ok := tombs[mergeKey(t.Categoria, t.SKU)]; ok {
			kept = append(kept, t)
		}
	}
	snap.Tombstones = kept
	model.SortByBox(merged)
	snap.Products = merged
}

// dedupe keeps the newest of rows whose SKUs differ only by case. Such
// pairs predate the unique lower(sku) index.
func dedupe(rows []model.Product) []model.Product {
	idx := make(map[string]int, len(rows))
	out := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		k := mergeKey(r.Categoria, r.SKU)
		if i, ok := idx[k]; ok {
			if newer(r, out[i]) {
				out[i] = r
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}

func newer(local, remote model.Product) bool {
	if local.Version != remote.Version {
		return local.Version > remote.Version
	}
	return local.LastModified.Truncate(time.Millisecond).After(remote.LastModified.Truncate(time.Millisecond))
}
