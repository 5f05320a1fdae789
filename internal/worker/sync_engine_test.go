package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/config"
	"boxtrack/internal/model"
	"boxtrack/internal/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(repo *repotest.Products, cats ...model.Categoria) (*SyncEngine, *cache.ProductCache) {
	if len(cats) == 0 {
		cats = model.AllCategorias
	}
	pc := cache.NewProductCache(cache.NewMemoryKV())
	e := NewSyncEngine(SyncConfig{
		Repo:       repo,
		Cache:      pc,
		Catalog:    config.Catalog{Stores: []string{"patiobatel"}, Categories: cats},
		Interval:   time.Hour,
		RetryDelay: 20 * time.Millisecond,
		NudgeDelay: 30 * time.Millisecond,
		StaleAfter: 2 * time.Minute,
	})
	return e, pc
}

func TestFullSync_LoadsEveryCategoria(t *testing.T) {
	repo := repotest.NewProducts()
	repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "A"})
	repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaCintos, SKU: "C-12", Caixa: "1"})
	repo.Seed(model.Product{StoreID: "barigui", Categoria: model.CategoriaOculos, SKU: "999", Caixa: "Z"})

	e, pc := newTestEngine(repo)
	ctx := context.Background()
	require.NoError(t, e.FullSync(ctx, "patiobatel"))

	got := pc.Read(ctx, "patiobatel")
	require.Len(t, got, 2)
	assert.Equal(t, "C-12", got[0].SKU, "numeric boxes sort first")
	for _, p := range got {
		assert.Equal(t, p.SKU, p.ID)
		assert.Equal(t, model.SyncConfirmed, p.SyncStatus)
	}

	_, ok := e.LastSynced(ctx, "patiobatel")
	assert.True(t, ok)
	assert.Empty(t, pc.Read(ctx, "barigui"))
}

func TestFullSync_ErrorLeavesCacheUntouched(t *testing.T) {
	repo := repotest.NewProducts()
	e, pc := newTestEngine(repo)
	ctx := context.Background()
	require.NoError(t, pc.Write(ctx, "patiobatel", []model.Product{{SKU: "774419", Caixa: "A", SyncStatus: model.SyncConfirmed}}))

	repo.SetErr(errors.New("unavailable"))
	require.Error(t, e.FullSync(ctx, "patiobatel"))

	assert.Len(t, pc.Read(ctx, "patiobatel"), 1)
	_, ok := e.LastSynced(ctx, "patiobatel")
	assert.False(t, ok)
}

func TestShouldSync(t *testing.T) {
	e, pc := newTestEngine(repotest.NewProducts())
	ctx := context.Background()
	now := time.Now()
	e.now = func() time.Time { return now }

	assert.True(t, e.ShouldSync(ctx, "patiobatel"), "never synced")

	require.NoError(t, pc.MarkSynced(ctx, "patiobatel", now.Add(-time.Minute)))
	assert.False(t, e.ShouldSync(ctx, "patiobatel"))

	require.NoError(t, pc.MarkSynced(ctx, "patiobatel", now.Add(-3*time.Minute)))
	assert.True(t, e.ShouldSync(ctx, "patiobatel"))
}

func TestStartPeriodic_RetriesFailedStoreOnce(t *testing.T) {
	repo := repotest.NewProducts()
	repo.SetErr(errors.New("unavailable"))
	e, _ := newTestEngine(repo, model.CategoriaOculos)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.StartPeriodic(ctx)

	assert.Eventually(t, func() bool { return repo.CallCount() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, repo.CallCount(), "no further attempts before the next tick")
}

func TestStartPeriodic_SyncsImmediately(t *testing.T) {
	repo := repotest.NewProducts()
	repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "A"})
	e, pc := newTestEngine(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.StartPeriodic(ctx)

	assert.Eventually(t, func() bool { return len(pc.Read(ctx, "patiobatel")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestNudge_Coalesces(t *testing.T) {
	repo := repotest.NewProducts()
	e, _ := newTestEngine(repo, model.CategoriaOculos)
	ctx := context.Background()

	e.Nudge(ctx, "patiobatel")
	e.Nudge(ctx, "patiobatel")
	e.Nudge(ctx, "patiobatel")

	assert.Eventually(t, func() bool {
		_, ok := e.LastSynced(ctx, "patiobatel")
		return ok
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, repo.CallCount())
}

func TestStop_CancelsScheduledNudges(t *testing.T) {
	repo := repotest.NewProducts()
	e, _ := newTestEngine(repo)
	e.nudgeDelay = 50 * time.Millisecond

	e.Nudge(context.Background(), "patiobatel")
	e.Stop()
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, repo.CallCount())
}
