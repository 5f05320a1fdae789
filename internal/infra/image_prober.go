package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/model"

	"github.com/rs/zerolog/log"
)

// ConventionalImagePath is where an image for (cat, sku) lives by convention:
// /images/{categoria}/{sku}.{ext}.
func ConventionalImagePath(cat model.Categoria, sku string) string {
	return fmt.Sprintf("/images/%s/%s.%s", cat, sku, cat.ImageExt())
}

// ImageProber checks whether the conventional image of a product exists.
// With a base URL it issues a HEAD request; without one it stats the file
// under the local images directory. Misses are remembered for negativeTTL
// so repeated fresh fetches do not probe the same SKU again.
type ImageProber struct {
	baseURL     string
	imagesDir   string
	httpClient  *http.Client
	kv          cache.KV
	negativeTTL time.Duration
}

func NewImageProber(baseURL, imagesDir string, kv cache.KV, negativeTTL time.Duration) *ImageProber {
	return &ImageProber{
		baseURL:     strings.TrimRight(baseURL, "/"),
		imagesDir:   imagesDir,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		kv:          kv,
		negativeTTL: negativeTTL,
	}
}

func missKey(cat model.Categoria, sku string) string {
	return "probe_miss:" + string(cat) + ":" + sku
}

// Probe returns the conventional path and true when the image exists.
// Failures are not errors: the caller simply leaves the image unset.
func (p *ImageProber) Probe(ctx context.Context, cat model.Categoria, sku string) (string, bool) {
	if sku == "" || !cat.Valid() {
		return "", false
	}
	if p.kv != nil {
		if _, err := p.kv.Get(ctx, missKey(cat, sku)); err == nil {
			return "", false
		}
	}

	path := ConventionalImagePath(cat, sku)
	found, err := p.exists(ctx, path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("image_prober: probe failed")
	}
	if found {
		return path, true
	}
	if p.kv != nil && p.negativeTTL > 0 {
		_ = p.kv.Set(ctx, missKey(cat, sku), []byte("1"), p.negativeTTL)
	}
	return "", false
}

// Forget clears a remembered miss, e.g. right after an upload.
func (p *ImageProber) Forget(ctx context.Context, cat model.Categoria, sku string) {
	if p.kv != nil {
		_ = p.kv.Del(ctx, missKey(cat, sku))
	}
}

func (p *ImageProber) exists(ctx context.Context, path string) (bool, error) {
	if p.baseURL == "" {
		rel := strings.TrimPrefix(path, "/images/")
		_, err := os.Stat(filepath.Join(p.imagesDir, filepath.FromSlash(rel)))
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return err == nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
