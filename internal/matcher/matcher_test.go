package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GomuGomuu/ope-ope/internal/cache"
	"github.com/GomuGomuu/ope-ope/internal/card"
	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/embedder"
	"github.com/GomuGomuu/ope-ope/internal/log"
)

func init() {
	log.SetOutput(io.Discard)
}

// tableEmbedder returns a fixed vector per text. Unknown texts map to (0, 1).
type tableEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]error
	calls   int
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err, ok := e.fail[text]; ok {
		return nil, err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func (e *tableEmbedder) Dimensions() int { return 2 }
func (e *tableEmbedder) ModelID() string { return "table" }

func (e *tableEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func str(s string) *string { return &s }

func newTestMatcher(t *testing.T, emb *tableEmbedder, cards ...card.Card) *Matcher {
	t.Helper()
	catalog, err := card.NewCatalog(cards)
	require.NoError(t, err)
	store := cache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	return New(catalog, emb, cache.NewManager(store, emb, config.InvalidateVersion))
}

func strawHats() []card.Card {
	return []card.Card{
		{Slug: "luffy", Name: "Luffy"},
		{Slug: "zoro", Name: "Zoro"},
		{Slug: "nami", Name: "Nami"},
	}
}

func strawHatEmbedder() *tableEmbedder {
	return &tableEmbedder{vectors: map[string][]float32{
		"Luffy":       unitAt(0.9),
		"Zoro":        unitAt(0.95),
		"Nami":        unitAt(0.2),
		"query":       {1, 0},
		"Zoro LEADER": unitAt(0.95),
	}}
}

func TestFindClosestCards(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))

	results, err := m.FindClosestCards(context.Background(), card.ExtractedRecord{Name: str("query")}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "zoro", results[0].Card.Slug)
	assert.Equal(t, "luffy", results[1].Card.Slug)
}

func TestFindClosestCardsIsDeterministic(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))
	rec := card.ExtractedRecord{Name: str("query")}

	first, err := m.FindClosestCards(context.Background(), rec, DefaultTopN)
	require.NoError(t, err)
	second, err := m.FindClosestCards(context.Background(), rec, DefaultTopN)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestQueriesAreEmbeddedEveryCall(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))
	built := emb.Calls()

	rec := card.ExtractedRecord{Name: str("query")}
	_, err := m.FindClosestCard(context.Background(), rec)
	require.NoError(t, err)
	_, err = m.FindClosestCard(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, built+2, emb.Calls())
}

func TestFindClosestCard(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))

	best, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("Zoro"), Type: str("LEADER")})
	require.NoError(t, err)
	assert.Equal(t, "zoro", best.Card.Slug)
	assert.LessOrEqual(t, best.Confidence, 1.0)
}

func TestFindClosestCardEmptyCatalog(t *testing.T) {
	m := newTestMatcher(t, strawHatEmbedder())
	require.NoError(t, m.Load(context.Background()))

	_, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("query")})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestFindClosestCardsRejectsBadInput(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))
	built := emb.Calls()

	_, err := m.FindClosestCards(context.Background(), card.ExtractedRecord{Name: str("query")}, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.FindClosestCards(context.Background(), card.ExtractedRecord{Name: str("  "), Tribe: str("")}, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.FindClosestCard(context.Background(), card.ExtractedRecord{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, built, emb.Calls(), "rejected input must not reach the embedder")
}

func TestQueryBeforeLoad(t *testing.T) {
	m := newTestMatcher(t, strawHatEmbedder(), strawHats()...)
	_, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("query")})
	assert.ErrorIs(t, err, ErrNotReady)

	_, ok := m.Stats()
	assert.False(t, ok)
}

func TestEmbeddingFailurePropagates(t *testing.T) {
	emb := strawHatEmbedder()
	emb.fail = map[string]error{"query": embedder.ErrUnavailable}
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))

	results, err := m.FindClosestCards(context.Background(), card.ExtractedRecord{Name: str("query")}, 3)
	assert.ErrorIs(t, err, embedder.ErrUnavailable)
	assert.Nil(t, results)
}

func TestReloadSwapsCatalog(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))

	emb.vectors["Sanji"] = []float32{1, 0}
	grown, err := card.NewCatalog(append(strawHats(), card.Card{Slug: "sanji", Name: "Sanji"}))
	require.NoError(t, err)
	require.NoError(t, m.Reload(context.Background(), grown))

	best, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("query")})
	require.NoError(t, err)
	assert.Equal(t, "sanji", best.Card.Slug)

	stats, ok := m.Stats()
	require.True(t, ok)
	assert.Equal(t, 4, stats.Cards)
	assert.Equal(t, 4, stats.Entries)
	assert.Equal(t, grown.Hash(), stats.CatalogHash)

	require.NoError(t, m.Rebuild(context.Background()))
	stats, _ = m.Stats()
	assert.Equal(t, 4, stats.Cards, "rebuild keeps the reloaded catalog")
}

func TestReloadFailureKeepsPreviousState(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))
	before, _ := m.Stats()

	emb.fail = map[string]error{"Usopp": embedder.ErrUnavailable}
	broken, err := card.NewCatalog(append(strawHats(), card.Card{Slug: "usopp", Name: "Usopp"}))
	require.NoError(t, err)
	err = m.Reload(context.Background(), broken)
	require.ErrorIs(t, err, embedder.ErrUnavailable)

	after, _ := m.Stats()
	assert.Equal(t, before, after)
	best, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("query")})
	require.NoError(t, err)
	assert.Equal(t, "zoro", best.Card.Slug)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) (*cache.Snapshot, error) { return nil, cache.ErrNotFound }
func (brokenStore) Save(context.Context, *cache.Snapshot) error {
	return errors.New("read-only filesystem")
}
func (brokenStore) Close() error { return nil }

func TestLoadPersistenceFailureStillServes(t *testing.T) {
	emb := strawHatEmbedder()
	catalog, err := card.NewCatalog(strawHats())
	require.NoError(t, err)
	m := New(catalog, emb, cache.NewManager(brokenStore{}, emb, config.InvalidateVersion), WithDefaultTopN(2))
	assert.Equal(t, 2, m.DefaultTopN())

	err = m.Load(context.Background())
	require.ErrorIs(t, err, cache.ErrPersistence)

	best, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("query")})
	require.NoError(t, err)
	assert.Equal(t, "zoro", best.Card.Slug)
}

func TestQueriesDuringRebuild(t *testing.T) {
	emb := strawHatEmbedder()
	m := newTestMatcher(t, emb, strawHats()...)
	require.NoError(t, m.Load(context.Background()))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				if _, err := m.FindClosestCards(context.Background(), card.ExtractedRecord{Name: str("query")}, 3); err != nil {
					errs <- err
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Rebuild(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRebuildReembedsWithoutInvalidation(t *testing.T) {
	emb := strawHatEmbedder()
	catalog, err := card.NewCatalog(strawHats())
	require.NoError(t, err)
	store := cache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	m := New(catalog, emb, cache.NewManager(store, emb, config.InvalidateNone))
	require.NoError(t, m.Load(context.Background()))
	before := emb.Calls()

	// The zoro vector moves; only a rebuild can pick that up without invalidation.
	emb.vectors["Zoro"] = unitAt(-1)
	require.NoError(t, m.Rebuild(context.Background()))
	assert.Equal(t, before+catalog.Len(), emb.Calls())

	best, err := m.FindClosestCard(context.Background(), card.ExtractedRecord{Name: str("query")})
	require.NoError(t, err)
	assert.Equal(t, "luffy", best.Card.Slug)

	stats, ok := m.Stats()
	require.True(t, ok)
	assert.True(t, stats.Current)
	assert.Equal(t, cache.VersionKey("table", catalog.Hash()), stats.Version)
}

func TestStatsReportStaleEntries(t *testing.T) {
	emb := strawHatEmbedder()
	path := filepath.Join(t.TempDir(), "cache.json")
	catalog, err := card.NewCatalog(strawHats())
	require.NoError(t, err)
	m := New(catalog, emb, cache.NewManager(cache.NewFileStore(path), emb, config.InvalidateNone))
	require.NoError(t, m.Load(context.Background()))

	edited := strawHats()
	edited[2].Name = "Cat Burglar Nami"
	editedCatalog, err := card.NewCatalog(edited)
	require.NoError(t, err)
	require.NoError(t, m.Reload(context.Background(), editedCatalog))

	stats, _ := m.Stats()
	assert.False(t, stats.Current)
	assert.Equal(t, catalog.Hash(), stats.CatalogHash)
}
