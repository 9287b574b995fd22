package memory_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/policy"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/gt"
)

// fakeEmbedder returns fixed vectors per text so similarity is
// deterministic. Unknown texts get a default vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.1, 0.1, 0.1}, nil
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{
			"the sky is blue":  {1, 0, 0},
			"sky color":        {0.9, 0.1, 0},
			"cats are mammals": {0, 1, 0},
			"dogs bark":        {0, 0, 1},
			"animal sounds":    {0, 0.2, 0.9},
		},
	}
}

type testStore struct {
	store     *memory.Store
	repo      *repository.SQLite
	dbPath    string
	indexPath string
	embedder  *fakeEmbedder
}

func setupStore(t *testing.T, opts ...memory.Option) *testStore {
	dir := t.TempDir()
	return openStore(t, dir, newFakeEmbedder(), opts...)
}

func openStore(t *testing.T, dir string, embedder *fakeEmbedder, opts ...memory.Option) *testStore {
	dbPath := filepath.Join(dir, "engram.db")
	indexPath := filepath.Join(dir, "engram.index")

	repo, err := repository.NewSQLite(dbPath)
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store, err := memory.New(context.Background(), repo, embedder, indexPath, opts...)
	gt.NoError(t, err)

	return &testStore{
		store:     store,
		repo:      repo,
		dbPath:    dbPath,
		indexPath: indexPath,
		embedder:  embedder,
	}
}

func TestAddAndSearch(t *testing.T) {
	ts := setupStore(t)
	ctx := context.Background()

	gt.NoError(t, ts.store.Add(ctx, "the sky is blue"))
	gt.NoError(t, ts.store.Add(ctx, "cats are mammals"))
	gt.NoError(t, ts.store.Add(ctx, "dogs bark"))

	results, err := ts.store.Search(ctx, "sky color", 1)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0], "the sky is blue")

	results, err = ts.store.Search(ctx, "animal sounds", 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0], "dogs bark")
}

func TestAddEmptyTextIsNoOp(t *testing.T) {
	ts := setupStore(t)
	ctx := context.Background()

	gt.NoError(t, ts.store.Add(ctx, ""))
	gt.NoError(t, ts.store.Add(ctx, "   \t\n"))

	count, err := ts.store.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, count, int64(0))
	gt.Equal(t, ts.embedder.calls, 0)
}

func TestSearchEmptyStore(t *testing.T) {
	ts := setupStore(t)

	results, err := ts.store.Search(context.Background(), "anything", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
	// no provider call for a store with no memories
	gt.Equal(t, ts.embedder.calls, 0)
}

func TestDimensionMismatch(t *testing.T) {
	ts := setupStore(t)
	ctx := context.Background()

	gt.NoError(t, ts.store.Add(ctx, "the sky is blue"))

	ts.embedder.vectors["stray fact"] = []float32{1, 0, 0, 0}
	err := ts.store.Add(ctx, "stray fact")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDimensionMismatch))

	// ledger and index untouched by the failed add
	count, err := ts.store.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, count, int64(1))

	results, err := ts.store.Search(ctx, "sky color", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
}

func TestEmbeddingUnavailable(t *testing.T) {
	ts := setupStore(t)
	ctx := context.Background()

	ts.embedder.err = model.ErrEmbeddingUnavailable
	err := ts.store.Add(ctx, "the sky is blue")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrEmbeddingUnavailable))

	count, err := ts.store.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, count, int64(0))
}

func TestPositionalCorrespondence(t *testing.T) {
	ts := setupStore(t)
	ctx := context.Background()

	texts := []string{"the sky is blue", "cats are mammals", "dogs bark"}
	for _, text := range texts {
		gt.NoError(t, ts.store.Add(ctx, text))
	}

	records, err := ts.repo.ListMemories(ctx)
	gt.NoError(t, err)
	gt.A(t, records).Length(len(texts))
	for i, rec := range records {
		gt.Equal(t, rec.Text, texts[i])
	}
}

func TestRestartRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := openStore(t, dir, newFakeEmbedder())
	gt.NoError(t, first.store.Add(ctx, "the sky is blue"))
	gt.NoError(t, first.store.Close())
	gt.NoError(t, first.repo.Close())

	// reload ledger and index from durable storage
	second := openStore(t, dir, newFakeEmbedder())
	results, err := second.store.Search(ctx, "sky color", 1)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0], "the sky is blue")
}

func TestRebuild(t *testing.T) {
	ts := setupStore(t)
	ctx := context.Background()

	gt.NoError(t, ts.store.Add(ctx, "the sky is blue"))
	gt.NoError(t, ts.store.Add(ctx, "dogs bark"))

	n, err := ts.store.Rebuild(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 2)

	results, err := ts.store.Search(ctx, "sky color", 1)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0], "the sky is blue")
}

func TestIngestPolicyDeny(t *testing.T) {
	ctx := context.Background()

	gate, err := policy.New(ctx, map[string]string{
		"test.rego": `package engram

deny contains "credentials are not stored" if contains(input.text, "password")
`,
	})
	gt.NoError(t, err)

	ts := setupStore(t, memory.WithPolicy(gate))

	gt.NoError(t, ts.store.Add(ctx, "my password is hunter2"))
	gt.NoError(t, ts.store.Add(ctx, "the sky is blue"))

	count, err := ts.store.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, count, int64(1))
}
