package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/config"
	"boxtrack/internal/infra"
	"boxtrack/internal/model"
	"boxtrack/internal/repository"
	"boxtrack/internal/repository/repotest"
	"boxtrack/internal/worker"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ───────────────────────────────────────────────────────────────────

type stubProber struct {
	mu     sync.Mutex
	found  map[string]bool
	forgot []string
}

func (p *stubProber) Probe(_ context.Context, cat model.Categoria, sku string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.found[sku] {
		return "", false
	}
	return infra.ConventionalImagePath(cat, sku), true
}

func (p *stubProber) Forget(_ context.Context, _ model.Categoria, sku string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forgot = append(p.forgot, sku)
}

type stubLinks map[string]string

func (l stubLinks) Lookup(sku string) (string, bool) {
	url, ok := l[sku]
	return url, ok
}

type failingQueue struct{}

func (failingQueue) EnqueueWrite(context.Context, worker.RemoteWriteJob) error {
	return errors.New("queue unavailable")
}

func (failingQueue) RedriveWrites(context.Context, string) ([]worker.RemoteWriteJob, error) {
	return nil, nil
}

// storeDownRepo fails every lookup against one store.
type storeDownRepo struct {
	*repotest.Products
	down string
}

func (r storeDownRepo) FindBySKU(ctx context.Context, storeID string, cat model.Categoria, sku string) (*model.Product, error) {
	if storeID == r.down {
		return nil, errors.New("deadline exceeded")
	}
	return r.Products.FindBySKU(ctx, storeID, cat, sku)
}

// ── Fixture ─────────────────────────────────────────────────────────────────

type serviceFixture struct {
	repo       *repotest.Products
	images     *repotest.Images
	deletions  *repotest.Deletions
	cache      *cache.ProductCache
	lists      *worker.MemoryLists
	dispatcher *worker.Dispatcher
	writer     *worker.RemoteWriteWorker
	prober     *stubProber
	svc        ProductService
}

var testCatalog = config.Catalog{
	Stores:     []string{"patiobatel", "barigui", "mueller"},
	Categories: []model.Categoria{model.CategoriaOculos, model.CategoriaCintos},
}

func newServiceFixture(t *testing.T, repo repository.ProductRepository) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:      repotest.NewProducts(),
		images:    repotest.NewImages(),
		deletions: repotest.NewDeletions(),
		cache:     cache.NewProductCache(cache.NewMemoryKV()),
		lists:     worker.NewMemoryLists(),
		prober:    &stubProber{found: map[string]bool{}},
	}
	if repo == nil {
		repo = f.repo
	}
	f.dispatcher = worker.NewDispatcher(f.lists)
	f.writer = worker.NewRemoteWriteWorker(worker.RemoteWriteConfig{
		Repo:        repo,
		Deletions:   f.deletions,
		Cache:       f.cache,
		CB:          infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		Lists:       f.lists,
		MaxAttempts: 1,
		BackoffBase: time.Millisecond,
	})
	engine := worker.NewSyncEngine(worker.SyncConfig{
		Repo:       repo,
		Cache:      f.cache,
		Catalog:    testCatalog,
		Interval:   time.Hour,
		RetryDelay: time.Minute,
		NudgeDelay: time.Minute,
		StaleAfter: 2 * time.Minute,
	})
	f.svc = NewProductService(ProductServiceDeps{
		Repo:      repo,
		Images:    f.images,
		Deletions: f.deletions,
		Cache:     f.cache,
		Queue:     f.dispatcher,
		Sync:      engine,
		Prober:    f.prober,
		Links:     stubLinks{"774419": "https://shop.example/p/774419"},
		Catalog:   testCatalog,
	})
	return f
}

// drainOutbox applies every queued remote write and returns how many ran.
func (f *serviceFixture) drainOutbox(t *testing.T) int {
	t.Helper()
	ctx := context.Background()
	n := 0
	for {
		_, raw, err := f.lists.Pop(ctx, 0, worker.QueueRemoteWrites)
		if errors.Is(err, worker.ErrEmpty) {
			return n
		}
		require.NoError(t, err)
		var env worker.Job
		require.NoError(t, json.Unmarshal(raw, &env))
		f.writer.Process(ctx, env.Payload)
		n++
	}
}

func oculos(sku, caixa string) model.Product {
	return model.Product{SKU: sku, Categoria: model.CategoriaOculos, Caixa: caixa}
}

// ── Add / MoveBox ───────────────────────────────────────────────────────────

func TestAdd_CachesAndQueues(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	p, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	assert.Equal(t, "774419", p.ID)
	assert.Equal(t, "patiobatel", p.StoreID)
	assert.EqualValues(t, 1, p.Version)
	assert.Equal(t, model.SyncPending, p.SyncStatus)
	require.NotNil(t, p.Link)
	assert.Equal(t, "https://shop.example/p/774419", *p.Link)

	all, _ := f.svc.GetAll(ctx, "patiobatel")
	assert.Len(t, all, 1)
	queued, _ := f.dispatcher.Pending(ctx)
	assert.EqualValues(t, 1, queued)

	require.Equal(t, 1, f.drainOutbox(t))
	row, ok := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	require.True(t, ok)
	assert.Equal(t, "A", row.Caixa)

	got, _ := f.svc.GetBySKU(ctx, "patiobatel", "774419")
	assert.Equal(t, model.SyncConfirmed, got.SyncStatus)
}

func TestAdd_SameSKUTwiceKeepsOneEntry(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	p, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "B"))
	require.NoError(t, err)

	all, _ := f.svc.GetAll(ctx, "patiobatel")
	require.Len(t, all, 1)
	assert.Equal(t, "B", all[0].Caixa)
	assert.EqualValues(t, 2, p.Version)
}

func TestAdd_VersionStartsAboveRemote(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "Z", Version: 5})

	p, err := f.svc.Add(context.Background(), "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, p.Version)

	f.drainOutbox(t)
	row, _ := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.Equal(t, "A", row.Caixa)
}

func TestAdd_RemoteDownWriteLandsAboveStoredVersion(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{
		StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "Z",
		Version: 3, LastModified: time.Now().Add(-time.Hour),
	})

	f.repo.SetErr(errors.New("connection refused"))
	p, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Version)
	assert.Equal(t, model.SyncPending, p.SyncStatus)
	f.repo.SetErr(nil)

	require.Equal(t, 1, f.drainOutbox(t))
	row, _ := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.Equal(t, "A", row.Caixa)
	assert.EqualValues(t, 4, row.Version)

	got, _ := f.svc.GetBySKU(ctx, "patiobatel", "774419")
	require.NotNil(t, got)
	assert.Equal(t, model.SyncConfirmed, got.SyncStatus)
	assert.EqualValues(t, 4, got.Version)

	require.NoError(t, f.svc.SyncNow(ctx, "patiobatel"))
	got, _ = f.svc.GetBySKU(ctx, "patiobatel", "774419")
	require.NotNil(t, got)
	assert.Equal(t, "A", got.Caixa)
}

func TestAdd_KeepsStoredSKUCasing(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "ABC1", Caixa: "Z", Version: 2})

	p, err := f.svc.Add(ctx, "patiobatel", oculos("abc1", "A"))
	require.NoError(t, err)
	assert.Equal(t, "ABC1", p.SKU)
	assert.EqualValues(t, 3, p.Version)

	f.drainOutbox(t)
	assert.Equal(t, 1, f.repo.Count())
	row, ok := f.repo.Get("patiobatel", model.CategoriaOculos, "ABC1")
	require.True(t, ok)
	assert.Equal(t, "A", row.Caixa)

	require.NoError(t, f.svc.SyncNow(ctx, "patiobatel"))
	all, _ := f.svc.GetAll(ctx, "patiobatel")
	assert.Len(t, all, 1)
}

func TestAdd_Validation(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	bad := model.Gender("other")

	cases := []struct {
		name  string
		store string
		p     model.Product
		want  error
	}{
		{"unknown store", "nowhere", oculos("1", "A"), ErrUnknownStore},
		{"missing categoria", "patiobatel", model.Product{SKU: "1", Caixa: "A"}, ErrCategoryRequired},
		{"unknown categoria", "patiobatel", model.Product{SKU: "1", Caixa: "A", Categoria: "hats"}, ErrInvalidCategory},
		{"missing sku", "patiobatel", oculos("  ", "A"), ErrSKURequired},
		{"missing box", "patiobatel", oculos("1", ""), ErrBoxRequired},
		{"bad gender", "patiobatel", model.Product{SKU: "1", Caixa: "A", Categoria: model.CategoriaOculos, Gender: &bad}, ErrInvalidGender},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Add(ctx, tc.store, tc.p)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAdd_RecategorizeTombstonesOldDocument(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	f.drainOutbox(t)

	_, err = f.svc.Add(ctx, "patiobatel", model.Product{SKU: "774419", Categoria: model.CategoriaCintos, Caixa: "A"})
	require.NoError(t, err)

	all, _ := f.svc.GetAll(ctx, "patiobatel")
	require.Len(t, all, 1)
	assert.Equal(t, model.CategoriaCintos, all[0].Categoria)

	ts := f.cache.Tombstones(ctx, "patiobatel")
	require.Len(t, ts, 1)
	assert.Equal(t, model.CategoriaOculos, ts[0].Categoria)

	assert.Equal(t, 2, f.drainOutbox(t))
	_, stillThere := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.False(t, stillThere)
	_, moved := f.repo.Get("patiobatel", model.CategoriaCintos, "774419")
	assert.True(t, moved)
}

func TestMoveBox(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	p, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)

	moved, err := f.svc.MoveBox(ctx, "patiobatel", *p, "D")
	require.NoError(t, err)
	assert.Equal(t, "D", moved.Caixa)

	got, err := f.svc.GetBySKU(ctx, "patiobatel", "774419")
	require.NoError(t, err)
	assert.Equal(t, "D", got.Caixa)

	_, err = f.svc.MoveBox(ctx, "patiobatel", *p, " ")
	assert.ErrorIs(t, err, ErrBoxRequired)

	f.drainOutbox(t)
	row, _ := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.Equal(t, "D", row.Caixa)
}

func TestAdd_EnqueueFailureMarksFailed(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.svc.(*productService).queue = failingQueue{}

	p, err := f.svc.Add(context.Background(), "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	assert.Equal(t, model.SyncFailed, p.SyncStatus)
}

// ── Reads ───────────────────────────────────────────────────────────────────

func TestGetBySKU_CacheMissFetchesRemote(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaCintos, SKU: "C-12", Caixa: "3", Version: 4})
	f.prober.found["C-12"] = true

	got, err := f.svc.GetBySKU(ctx, "patiobatel", "c-12")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "C-12", got.ID)
	assert.Equal(t, model.SyncConfirmed, got.SyncStatus)
	require.NotNil(t, got.Imagem)
	assert.Equal(t, "/images/cintos/C-12.webp", *got.Imagem)

	assert.Len(t, f.cache.Read(ctx, "patiobatel"), 1, "remote hit is cached")
	img, err := f.images.Find(ctx, model.CategoriaCintos, "C-12")
	require.NoError(t, err)
	assert.Equal(t, "/images/cintos/C-12.webp", img.Path)
}

func TestGetBySKU_MissingImageStaysUnset(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "000001", Caixa: "1"})

	got, err := f.svc.GetBySKU(context.Background(), "patiobatel", "000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Imagem)
	assert.Nil(t, got.Link)
}

func TestGetBySKU_Unknown(t *testing.T) {
	f := newServiceFixture(t, nil)
	got, err := f.svc.GetBySKU(context.Background(), "patiobatel", "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.svc.GetBySKU(context.Background(), "patiobatel", "")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetAllFresh_MergesRemote(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "2"})
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774420", Caixa: "1"})
	f.prober.found["774420"] = true
	_, err := f.svc.Add(ctx, "patiobatel", oculos("local-only", "9"))
	require.NoError(t, err)

	all, err := f.svc.GetAllFresh(ctx, "patiobatel")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "774420", all[0].SKU)
	require.NotNil(t, all[0].Imagem)
	assert.Equal(t, "local-only", all[2].SKU, "pending local records survive the merge")
}

func TestGetAllFresh_RemoteDownServesCache(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	f.repo.SetErr(errors.New("unavailable"))

	all, err := f.svc.GetAllFresh(ctx, "patiobatel")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// ── Remove ──────────────────────────────────────────────────────────────────

func TestRemoveMany(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, "patiobatel", oculos("774420", "A"))
	require.NoError(t, err)
	f.drainOutbox(t)

	n, err := f.svc.RemoveMany(ctx, "patiobatel", []string{"774419"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetBySKU(ctx, "patiobatel", "774419")
	require.NoError(t, err)
	assert.Nil(t, got, "tombstoned SKUs are not fetched back from the remote store")

	require.Equal(t, 1, f.drainOutbox(t))
	_, ok := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.False(t, ok)
	assert.Empty(t, f.cache.Tombstones(ctx, "patiobatel"))

	audit, err := f.svc.RecentDeletions(ctx, "patiobatel", 0)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "774419", audit[0].SKU)
	assert.Equal(t, "A", audit[0].Caixa)
}

func TestRemoveMany_RemoteOnlySKU(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "A", Version: 3})

	n, err := f.svc.RemoveMany(ctx, "patiobatel", []string{"774419", "774419", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.drainOutbox(t)
	_, ok := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.False(t, ok)
}

// ── Field updates ───────────────────────────────────────────────────────────

func TestSetPromotion(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	f.drainOutbox(t)

	price := decimal.RequireFromString("149.999")
	p, err := f.svc.SetPromotion(ctx, "patiobatel", "774419", model.CategoriaOculos, true, &price)
	require.NoError(t, err)
	assert.True(t, p.OnSale)
	assert.Equal(t, "150.00", p.SalePrice.StringFixed(2))
	assert.NotNil(t, p.SaleUpdatedAt)
	assert.EqualValues(t, 2, p.Version)
	assert.Equal(t, model.SyncPending, p.SyncStatus)

	f.drainOutbox(t)
	row, _ := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.True(t, row.OnSale)

	p, err = f.svc.SetPromotion(ctx, "patiobatel", "774419", model.CategoriaOculos, false, nil)
	require.NoError(t, err)
	assert.False(t, p.OnSale)
	assert.Nil(t, p.SalePrice)
}

func TestSetGender(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)

	g := model.GenderFemale
	p, err := f.svc.SetGender(ctx, "patiobatel", "774419", model.CategoriaOculos, &g)
	require.NoError(t, err)
	require.NotNil(t, p.Gender)
	assert.Equal(t, model.GenderFemale, *p.Gender)

	p, err = f.svc.SetGender(ctx, "patiobatel", "774419", model.CategoriaOculos, nil)
	require.NoError(t, err)
	assert.Nil(t, p.Gender)

	bad := model.Gender("other")
	_, err = f.svc.SetGender(ctx, "patiobatel", "774419", model.CategoriaOculos, &bad)
	assert.ErrorIs(t, err, ErrInvalidGender)
}

func TestUpdateFields_NotFound(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	caixa := "B"

	_, err := f.svc.UpdateFields(ctx, "patiobatel", "ghost", model.CategoriaOculos, model.ProductPatch{Caixa: &caixa})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)
	_, err = f.svc.UpdateFields(ctx, "patiobatel", "774419", model.CategoriaCintos, model.ProductPatch{Caixa: &caixa})
	assert.ErrorIs(t, err, ErrNotFound, "wrong categoria")
}

func TestUpdateFields_PullsRemoteRecordFirst(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "A", Version: 2})

	caixa := "C"
	p, err := f.svc.UpdateFields(ctx, "patiobatel", "774419", model.CategoriaOculos, model.ProductPatch{Caixa: &caixa})
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.Version)

	f.drainOutbox(t)
	row, _ := f.repo.Get("patiobatel", model.CategoriaOculos, "774419")
	assert.Equal(t, "C", row.Caixa)
	assert.EqualValues(t, 3, row.Version)
}

func TestAttachImage(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)

	p, err := f.svc.AttachImage(ctx, "patiobatel", "774419", model.CategoriaOculos, "/images/oculos/774419.jpg")
	require.NoError(t, err)
	require.NotNil(t, p.Imagem)
	assert.Equal(t, "/images/oculos/774419.jpg", *p.Imagem)
	assert.Equal(t, []string{"774419"}, f.prober.forgot)

	img, err := f.images.Find(ctx, model.CategoriaOculos, "774419")
	require.NoError(t, err)
	assert.Equal(t, "/images/oculos/774419.jpg", img.Path)
}

// ── Search and boxes ────────────────────────────────────────────────────────

func TestSearchAcrossStores_PartialResults(t *testing.T) {
	repo := repotest.NewProducts()
	f := newServiceFixture(t, storeDownRepo{Products: repo, down: "mueller"})
	for _, store := range []string{"patiobatel", "barigui", "mueller"} {
		repo.Seed(model.Product{StoreID: store, Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "A"})
	}

	hits := f.svc.SearchAcrossStores(context.Background(), "774419")
	require.Len(t, hits, 2)
	assert.Equal(t, "patiobatel", hits[0].StoreID)
	assert.Equal(t, "barigui", hits[1].StoreID)
	require.NotNil(t, hits[0].Product.Link)

	assert.Empty(t, f.svc.SearchAcrossStores(context.Background(), " "))
}

func TestBoxes(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	for _, p := range []model.Product{oculos("1", "B"), oculos("2", "10"), oculos("3", "2"), oculos("4", "10")} {
		_, err := f.svc.Add(ctx, "patiobatel", p)
		require.NoError(t, err)
	}

	boxes, err := f.svc.ListBoxes(ctx, "patiobatel")
	require.NoError(t, err)
	require.Len(t, boxes, 3)
	assert.Equal(t, "2", boxes[0].Caixa)
	assert.Equal(t, "10", boxes[1].Caixa)
	assert.Equal(t, 2, boxes[1].Count)
	assert.Equal(t, "B", boxes[2].Caixa)

	in10, err := f.svc.ListByBox(ctx, "patiobatel", "10")
	require.NoError(t, err)
	assert.Len(t, in10, 2)

	_, err = f.svc.ListBoxes(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrUnknownStore)
}

func TestBoxes_LabelsMatchCaseInsensitively(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	for _, p := range []model.Product{oculos("1", "a"), oculos("2", " A "), oculos("3", "b")} {
		_, err := f.svc.Add(ctx, "patiobatel", p)
		require.NoError(t, err)
	}

	boxes, err := f.svc.ListBoxes(ctx, "patiobatel")
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, "A", boxes[0].Caixa)
	assert.Equal(t, 2, boxes[0].Count)
	assert.Equal(t, "b", boxes[1].Caixa)

	inA, err := f.svc.ListByBox(ctx, "patiobatel", boxes[0].Caixa)
	require.NoError(t, err)
	assert.Len(t, inA, boxes[0].Count)
}

// ── Sync ────────────────────────────────────────────────────────────────────

func TestSyncStatusAndRetryFailed(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "patiobatel", oculos("774419", "A"))
	require.NoError(t, err)

	f.repo.SetErr(errors.New("unavailable"))
	f.drainOutbox(t)
	f.repo.SetErr(nil)

	st, err := f.svc.SyncStatus(ctx, "patiobatel")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Failed)
	assert.Zero(t, st.Pending)
	assert.True(t, st.ShouldSync)

	n, err := f.svc.RetryFailed(ctx, "patiobatel")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, _ = f.svc.SyncStatus(ctx, "patiobatel")
	assert.Equal(t, 1, st.Pending)
	assert.Zero(t, st.Failed)

	f.drainOutbox(t)
	got, _ := f.svc.GetBySKU(ctx, "patiobatel", "774419")
	assert.Equal(t, model.SyncConfirmed, got.SyncStatus)
}

func TestSyncNow(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	f.repo.Seed(model.Product{StoreID: "barigui", Categoria: model.CategoriaCintos, SKU: "C-1", Caixa: "1"})

	require.NoError(t, f.svc.SyncNow(ctx, "barigui"))
	all, _ := f.svc.GetAll(ctx, "barigui")
	assert.Len(t, all, 1)

	st, _ := f.svc.SyncStatus(ctx, "barigui")
	assert.NotNil(t, st.LastSyncedAt)
	assert.False(t, st.ShouldSync)

	assert.ErrorIs(t, f.svc.SyncNow(ctx, "nowhere"), ErrUnknownStore)
}
