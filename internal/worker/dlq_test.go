package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"boxtrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deadLetter(t *testing.T, lists ListStore, store, sku string) {
	t.Helper()
	job := RemoteWriteJob{
		ID:      "old-" + sku,
		Op:      OpDelete,
		Key:     model.ProductKey{StoreID: store, Categoria: model.CategoriaOculos, SKU: sku},
		Version: 3,
	}
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	SendToDLQ(context.Background(), lists, QueueRemoteWrites, jobTypeRemoteWrite, store, payload, "max retries", 4)
}

func TestRedriveWrites_OnlyThatStore(t *testing.T) {
	ctx := context.Background()
	lists := NewMemoryLists()
	d := NewDispatcher(lists)

	deadLetter(t, lists, "patiobatel", "1")
	deadLetter(t, lists, "barigui", "2")
	deadLetter(t, lists, "patiobatel", "3")

	n, err := d.DeadLetters(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	jobs, err := d.RedriveWrites(ctx, "patiobatel")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "1", jobs[0].Key.SKU)
	assert.Equal(t, "3", jobs[1].Key.SKU)

	pending, _ := d.Pending(ctx)
	assert.EqualValues(t, 2, pending)
	left, _ := d.DeadLetters(ctx)
	assert.EqualValues(t, 1, left)

	_, raw, err := lists.Pop(ctx, 0, QueueRemoteWrites)
	require.NoError(t, err)
	var env Job
	require.NoError(t, json.Unmarshal(raw, &env))
	var job RemoteWriteJob
	require.NoError(t, json.Unmarshal(env.Payload, &job))
	assert.NotEqual(t, "old-1", job.ID, "redriven jobs get a fresh id")
	assert.EqualValues(t, 3, job.Version)
}

func TestRedriveWrites_DropsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	lists := NewMemoryLists()
	require.NoError(t, lists.Push(ctx, DLQPrefix+QueueRemoteWrites, []byte(`not json`)))

	jobs, err := NewDispatcher(lists).RedriveWrites(ctx, "patiobatel")
	require.NoError(t, err)
	assert.Empty(t, jobs)
	n, _ := DLQLength(ctx, lists, QueueRemoteWrites)
	assert.Zero(t, n)
}

// flakyLists refuses pushes to one queue once its allowance is used up.
type flakyLists struct {
	*MemoryLists
	mu      sync.Mutex
	queue   string
	allowed int
}

func (f *flakyLists) Push(ctx context.Context, key string, data []byte) error {
	if key == f.queue {
		f.mu.Lock()
		if f.allowed == 0 {
			f.mu.Unlock()
			return errors.New("READONLY You can't write against a read only replica")
		}
		f.allowed--
		f.mu.Unlock()
	}
	return f.MemoryLists.Push(ctx, key, data)
}

func TestRedriveWrites_FailurePartWayKeepsTheRest(t *testing.T) {
	ctx := context.Background()
	lists := &flakyLists{MemoryLists: NewMemoryLists(), queue: QueueRemoteWrites, allowed: 1}
	for _, sku := range []string{"1", "2", "3"} {
		deadLetter(t, lists, "patiobatel", sku)
	}
	deadLetter(t, lists, "barigui", "4")
	d := NewDispatcher(lists)

	jobs, err := d.RedriveWrites(ctx, "patiobatel")
	require.Error(t, err)
	require.Len(t, jobs, 1)

	pending, _ := d.Pending(ctx)
	assert.EqualValues(t, 1, pending)
	left, _ := d.DeadLetters(ctx)
	assert.EqualValues(t, 3, left)

	lists.mu.Lock()
	lists.allowed = -1
	lists.mu.Unlock()

	jobs, err = d.RedriveWrites(ctx, "patiobatel")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	left, _ = d.DeadLetters(ctx)
	assert.EqualValues(t, 1, left)
}

func TestRedriveWrites_ConcurrentStoresDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	lists := NewMemoryLists()
	for i := 0; i < 20; i++ {
		deadLetter(t, lists, "patiobatel", fmt.Sprintf("p%d", i))
		deadLetter(t, lists, "barigui", fmt.Sprintf("b%d", i))
	}
	d := NewDispatcher(lists)

	var wg sync.WaitGroup
	counts := make(map[string]int)
	var mu sync.Mutex
	for _, store := range []string{"patiobatel", "barigui"} {
		wg.Add(1)
		go func(store string) {
			defer wg.Done()
			jobs, err := d.RedriveWrites(ctx, store)
			assert.NoError(t, err)
			mu.Lock()
			counts[store] = len(jobs)
			mu.Unlock()
		}(store)
	}
	wg.Wait()

	assert.Equal(t, 20, counts["patiobatel"])
	assert.Equal(t, 20, counts["barigui"])
	left, _ := d.DeadLetters(ctx)
	assert.Zero(t, left)
}
