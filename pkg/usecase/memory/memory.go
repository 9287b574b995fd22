// Package memory implements the long-term semantic memory store: a durable
// text ledger paired with a flat vector index kept in positional lockstep.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/policy"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/engram/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
)

// Embedder turns text into a fixed-dimension vector. The production
// implementation is adapter.GeminiClient; tests use a deterministic fake.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Store is the addressable API for "remember" and "recall". One mutex guards
// the ledger and the index so that ledger row i and index row i are always
// the same fact; embedding calls happen outside the lock because the
// provider is network-bound and must not serialize unrelated operations.
type Store struct {
	mu        sync.Mutex
	repo      repository.Repository
	embedder  Embedder
	index     *vector.Index
	indexPath string
	gate      *policy.Gate
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy installs an ingest policy gate. Facts denied by the policy are
// skipped silently (logged, not an error).
func WithPolicy(gate *policy.Gate) Option {
	return func(s *Store) {
		s.gate = gate
	}
}

// New opens a memory store. The ledger is always authoritative; the index
// blob at indexPath is loaded if present and otherwise starts empty with no
// fixed dimension. A count divergence between ledger and index is a known
// crash-recovery gap and is reported so the operator can run a rebuild.
func New(ctx context.Context, repo repository.Repository, embedder Embedder, indexPath string, opts ...Option) (*Store, error) {
	index, err := vector.Load(indexPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load vector index")
	}

	s := &Store{
		repo:      repo,
		embedder:  embedder,
		index:     index,
		indexPath: indexPath,
	}
	for _, opt := range opts {
		opt(s)
	}

	count, err := repo.CountMemories(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count memory records")
	}
	if int(count) != index.Len() {
		logging.From(ctx).Warn("ledger and vector index diverged; run rebuild",
			"ledger_rows", count, "index_rows", index.Len())
	}

	return s, nil
}

// Add remembers a fact. Empty or whitespace-only text is a no-op. The
// embedding is obtained and validated before any durable mutation, so a
// provider failure or dimension mismatch never leaves partial state.
func (s *Store) Add(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if s.gate != nil {
		reasons, err := s.gate.Deny(ctx, text)
		if err != nil {
			return goerr.Wrap(err, "failed to evaluate ingest policy")
		}
		if len(reasons) > 0 {
			logging.From(ctx).Info("fact rejected by ingest policy", "reasons", reasons)
			return nil
		}
	}

	emb, err := s.embedder.Embedding(ctx, text)
	if err != nil {
		return err
	}
	if len(emb) == 0 {
		return goerr.Wrap(model.ErrEmbeddingUnavailable, "embedder returned empty vector")
	}

	emb = vector.Normalize(emb)

	s.mu.Lock()
	defer s.mu.Unlock()

	if dim := s.index.Dimension(); dim != 0 && dim != len(emb) {
		return goerr.Wrap(model.ErrDimensionMismatch, "embedding does not fit the index",
			goerr.V("dimension", dim), goerr.V("length", len(emb)))
	}

	if _, err := s.repo.AppendMemory(ctx, text); err != nil {
		return goerr.Wrap(err, "failed to append memory record")
	}

	// Window between the ledger append above and the persisted index below:
	// a crash here leaves a ledger row without an index entry. Recoverable
	// with Rebuild; not guarded by a two-phase write.
	if err := s.index.Add(emb); err != nil {
		return err
	}
	if err := s.index.Save(s.indexPath); err != nil {
		return goerr.Wrap(err, "failed to persist vector index")
	}

	return nil
}

// Search returns up to k stored texts ranked by semantic similarity to
// query. A store with no memories returns an empty result, never an error.
func (s *Store) Search(ctx context.Context, query string, k int) ([]string, error) {
	s.mu.Lock()
	empty := s.index.Len() == 0
	s.mu.Unlock()
	if empty {
		return nil, nil
	}

	emb, err := s.embedder.Embedding(ctx, query)
	if err != nil {
		return nil, err
	}
	emb = vector.Normalize(emb)

	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.index.Search(emb, k)

	// Re-read the ledger for the positional mapping instead of trusting a
	// cached count: ledger and index were loaded independently at startup.
	records, err := s.repo.ListMemories(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memory records")
	}

	results := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(records) {
			continue
		}
		results = append(results, records[hit.Position].Text)
	}

	return results, nil
}

// Rebuild re-embeds every ledger record in insertion order and rewrites the
// index blob. It is the repair tool for a ledger/index divergence; expensive
// because it calls the provider once per record.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.ListMemories(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list memory records")
	}

	rebuilt := vector.New()
	for _, rec := range records {
		emb, err := s.embedder.Embedding(ctx, rec.Text)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to re-embed record", goerr.V("id", rec.ID))
		}
		if err := rebuilt.Add(vector.Normalize(emb)); err != nil {
			return 0, goerr.Wrap(err, "failed to rebuild index", goerr.V("id", rec.ID))
		}
	}

	if err := rebuilt.Save(s.indexPath); err != nil {
		return 0, goerr.Wrap(err, "failed to persist rebuilt index")
	}
	s.index = rebuilt

	return rebuilt.Len(), nil
}

// Count returns the number of ledger records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.CountMemories(ctx)
}

// Close persists the index one last time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index.Len() == 0 {
		return nil
	}
	return s.index.Save(s.indexPath)
}
