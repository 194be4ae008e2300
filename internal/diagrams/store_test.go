package diagrams

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/diagramstudio/internal/kv"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
)

// flakyStorage wraps a Storage and fails reads or writes on demand.
type flakyStorage struct {
	kv.Storage
	mu        sync.Mutex
	failRead  bool
	failWrite bool
	writes    int
}

func (f *flakyStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failRead
	f.mu.Unlock()
	if fail {
		return "", false, errors.New("storage unavailable")
	}
	return f.Storage.GetItem(ctx, key)
}

func (f *flakyStorage) SetItem(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failWrite
	f.writes++
	f.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return f.Storage.SetItem(ctx, key, value)
}

// fakeClock advances by one millisecond each time it is read.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *fakeClock) Rewind(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(-d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *flakyStorage, *fakeClock) {
	t.Helper()
	storage := &flakyStorage{Storage: kv.NewMemory()}
	clock := newFakeClock()
	return NewStore(storage, WithClock(clock.Now), WithMetrics(metrics.New())), storage, clock
}

func TestSaveGetRenameDelete(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, err := s.Save(ctx, Draft{Title: "Flow", Content: "graph TD\nA-->B"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Flow", got.Title)
	assert.Equal(t, "graph TD\nA-->B", got.Content)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	created := got.CreatedAt

	again, err := s.Save(ctx, Draft{ID: id, Title: "Flow v2", Content: "graph TD\nA-->B"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Flow v2", got.Title)
	assert.Equal(t, created, got.CreatedAt)
	assert.Greater(t, got.UpdatedAt, created)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.Delete(ctx, id))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveWithUnknownIDCreates(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, err := s.Save(ctx, Draft{ID: "diagram-1-abcdefg", Title: "x", Content: "pie"})
	require.NoError(t, err)
	assert.NotEqual(t, "diagram-1-abcdefg", id)
}

func TestSaveNeverMovesUpdatedAtBackwards(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)

	id, err := s.Save(ctx, Draft{Title: "x", Content: "pie"})
	require.NoError(t, err)
	before, _ := s.Get(ctx, id)

	clock.Rewind(time.Hour)
	_, err = s.Save(ctx, Draft{ID: id, Title: "y", Content: "pie"})
	require.NoError(t, err)

	after, _ := s.Get(ctx, id)
	assert.GreaterOrEqual(t, after.UpdatedAt, before.UpdatedAt)
	assert.GreaterOrEqual(t, after.UpdatedAt, after.CreatedAt)
}

func TestSaveUpdatesPreviewImage(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, _ := s.Save(ctx, Draft{Title: "x", Content: "pie", PreviewImage: "data:image/png;base64,AAAA"})
	_, err := s.Save(ctx, Draft{ID: id, Title: "x", Content: "pie"})
	require.NoError(t, err)

	got, _ := s.Get(ctx, id)
	assert.Empty(t, got.PreviewImage)
}

func TestIDsAreUniqueAndWellFormed(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	pattern := regexp.MustCompile(`^diagram-\d+-[0-9a-z]{7}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := s.Save(ctx, Draft{Content: "graph TD"})
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newTestStore(t)

	_, err := s.Save(ctx, Draft{Title: "keep", Content: "pie"})
	require.NoError(t, err)
	writes := storage.writes

	require.NoError(t, s.Delete(ctx, "nope"))
	assert.Equal(t, writes, storage.writes)

	all, _ := s.List(ctx)
	assert.Len(t, all, 1)
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newTestStore(t)

	a, _ := s.Save(ctx, Draft{Title: "a", Content: "pie"})
	b, _ := s.Save(ctx, Draft{Title: "b", Content: "pie"})
	c, _ := s.Save(ctx, Draft{Title: "c", Content: "pie"})
	writes := storage.writes

	n, err := s.DeleteMany(ctx, []string{a, c, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, writes+1, storage.writes)

	all, _ := s.List(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, b, all[0].ID)
}

func TestDuplicate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, _ := s.Save(ctx, Draft{Title: "", Content: "sequenceDiagram\nA->>B: hi", PreviewImage: "data:image/png;base64,AAAA"})
	copyID, err := s.Duplicate(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, id, copyID)

	cp, _ := s.Get(ctx, copyID)
	assert.Equal(t, "Untitled (Copy)", cp.Title)
	assert.Equal(t, "sequenceDiagram\nA->>B: hi", cp.Content)
	assert.Equal(t, "data:image/png;base64,AAAA", cp.PreviewImage)

	_, err = s.Duplicate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPreview(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, _ := s.Save(ctx, Draft{Title: "x", Content: "pie"})
	before, _ := s.Get(ctx, id)

	require.NoError(t, s.SetPreview(ctx, id, "data:image/png;base64,BBBB"))
	after, _ := s.Get(ctx, id)
	assert.Equal(t, "data:image/png;base64,BBBB", after.PreviewImage)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	assert.ErrorIs(t, s.SetPreview(ctx, "missing", ""), ErrNotFound)
}

func TestLoadCorruptDataYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"not json", `{"id":"x"}`, "", "null"} {
		storage := kv.NewMemory()
		require.NoError(t, storage.SetItem(ctx, StorageKey, raw))

		all, err := NewStore(storage).Load(ctx)
		require.NoError(t, err, raw)
		assert.Empty(t, all, raw)
	}
}

func TestLoadDropsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemory()
	raw, _ := json.Marshal([]SavedDiagram{
		{ID: "a", Title: "first"},
		{ID: "", Title: "no id"},
		{ID: "a", Title: "dup"},
		{ID: "b", Title: "second"},
	})
	require.NoError(t, storage.SetItem(ctx, StorageKey, string(raw)))

	all, err := NewStore(storage).Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Title)
	assert.Equal(t, "b", all[1].ID)
}

func TestReadFailurePropagates(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newTestStore(t)
	storage.failRead = true

	_, err := s.Load(ctx)
	assert.Error(t, err)
	_, err = s.Save(ctx, Draft{Content: "pie"})
	assert.Error(t, err)
}

func TestWriteFailureLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newTestStore(t)

	id, err := s.Save(ctx, Draft{Title: "orig", Content: "pie"})
	require.NoError(t, err)

	storage.failWrite = true
	_, err = s.Save(ctx, Draft{ID: id, Title: "changed", Content: "pie"})
	require.Error(t, err)
	_, err = s.Save(ctx, Draft{Title: "new", Content: "pie"})
	require.Error(t, err)
	require.Error(t, s.Delete(ctx, id))

	storage.failWrite = false
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "orig", all[0].Title)
}

func TestPersistedFormat(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemory()
	s := NewStore(storage)

	_, err := s.Save(ctx, Draft{Title: "t", Content: "pie"})
	require.NoError(t, err)

	raw, ok, err := storage.GetItem(ctx, StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	var generic []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &generic))
	require.Len(t, generic, 1)
	for _, key := range []string{"id", "title", "content", "createdAt", "updatedAt"} {
		assert.Contains(t, generic[0], key)
	}
	assert.NotContains(t, generic[0], "previewImage")
}

func TestConcurrentSavesAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, Draft{Content: "pie"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
