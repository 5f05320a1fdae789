package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConventionalImagePath(t *testing.T) {
	assert.Equal(t, "/images/oculos/774419.jpg", ConventionalImagePath(model.CategoriaOculos, "774419"))
	assert.Equal(t, "/images/cintos/C-12.webp", ConventionalImagePath(model.CategoriaCintos, "C-12"))
}

func TestProbe_HTTP(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/images/oculos/774419.jpg" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewImageProber(srv.URL+"/", "", cache.NewMemoryKV(), time.Minute)

	path, ok := p.Probe(ctx, model.CategoriaOculos, "774419")
	assert.True(t, ok)
	assert.Equal(t, "/images/oculos/774419.jpg", path)

	_, ok = p.Probe(ctx, model.CategoriaOculos, "000001")
	assert.False(t, ok)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))

	// the miss is remembered
	_, ok = p.Probe(ctx, model.CategoriaOculos, "000001")
	assert.False(t, ok)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))

	p.Forget(ctx, model.CategoriaOculos, "000001")
	_, _ = p.Probe(ctx, model.CategoriaOculos, "000001")
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestProbe_ServerDownIsAMiss(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewImageProber(url, "", nil, time.Minute)
	_, ok := p.Probe(context.Background(), model.CategoriaOculos, "774419")
	assert.False(t, ok)
}

func TestProbe_LocalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cintos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cintos", "C-12.webp"), []byte("x"), 0o644))

	p := NewImageProber("", dir, cache.NewMemoryKV(), time.Minute)
	ctx := context.Background()

	path, ok := p.Probe(ctx, model.CategoriaCintos, "C-12")
	assert.True(t, ok)
	assert.Equal(t, "/images/cintos/C-12.webp", path)

	// belts use webp, so a jpg is not picked up
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cintos", "C-13.jpg"), []byte("x"), 0o644))
	_, ok = p.Probe(ctx, model.CategoriaCintos, "C-13")
	assert.False(t, ok)
}

func TestProbe_RejectsBadInput(t *testing.T) {
	p := NewImageProber("", t.TempDir(), nil, 0)
	_, ok := p.Probe(context.Background(), model.Categoria("hats"), "1")
	assert.False(t, ok)
	_, ok = p.Probe(context.Background(), model.CategoriaOculos, "")
	assert.False(t, ok)
}
