package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GomuGomuu/ope-ope/internal/cache"
	"github.com/GomuGomuu/ope-ope/internal/card"
	"github.com/GomuGomuu/ope-ope/internal/embedder"
	"github.com/GomuGomuu/ope-ope/internal/log"
)

// state is one consistent catalog and cache pair. It is never mutated after it is published.
type state struct {
	catalog *card.Catalog
	snap    *cache.Snapshot
	builtAt time.Time
}

// Matcher matches extracted records against the reference catalog.
//
// Queries read the current state without locking. Builds are serialized and swap the
// new state in only when they complete, so queries keep being served from the previous
// state during a rebuild.
type Matcher struct {
	embedder embedder.Embedder
	manager  *cache.Manager
	topN     int

	buildMu sync.Mutex
	catalog *card.Catalog // guarded by buildMu
	current atomic.Pointer[state]
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithDefaultTopN sets the result count reported by DefaultTopN.
func WithDefaultTopN(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.topN = n
		}
	}
}

// New creates a matcher for catalog. Call Load before serving queries.
func New(catalog *card.Catalog, e embedder.Embedder, manager *cache.Manager, opts ...Option) *Matcher {
	m := &Matcher{
		embedder: e,
		manager:  manager,
		topN:     DefaultTopN,
		catalog:  catalog,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load builds the embedding cache for the catalog and makes it available to queries.
//
// When only persisting the cache fails, the built state is still published and the
// returned error wraps cache.ErrPersistence.
func (m *Matcher) Load(ctx context.Context) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	return m.build(ctx, m.catalog, m.manager.LoadOrBuild)
}

// Rebuild discards the cached embeddings and embeds the current catalog again.
// Queries keep being served from the previous state until it completes.
func (m *Matcher) Rebuild(ctx context.Context) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	return m.build(ctx, m.catalog, m.manager.Rebuild)
}

// Reload switches to a new catalog once its cache has been built. On failure the
// previous catalog stays in service.
func (m *Matcher) Reload(ctx context.Context, catalog *card.Catalog) error {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	err := m.build(ctx, catalog, m.manager.LoadOrBuild)
	if err != nil && !errors.Is(err, cache.ErrPersistence) {
		return err
	}
	m.catalog = catalog
	return err
}

type buildFunc func(ctx context.Context, catalog *card.Catalog) (*cache.Snapshot, error)

func (m *Matcher) build(ctx context.Context, catalog *card.Catalog, run buildFunc) error {
	snap, err := run(ctx, catalog)
	if snap == nil {
		return err
	}
	m.current.Store(&state{catalog: catalog, snap: snap, builtAt: time.Now()})
	log.InfoLogger.Info().Msgf("🃏 Matcher serving %d cards", catalog.Len())
	return err
}

// FindClosestCard returns the catalog card closest to rec.
func (m *Matcher) FindClosestCard(ctx context.Context, rec card.ExtractedRecord) (Result, error) {
	st, query, err := m.embedRecord(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	return FindClosest(query, st.snap, st.catalog)
}

// FindClosestCards returns up to topN catalog cards ordered by descending confidence.
func (m *Matcher) FindClosestCards(ctx context.Context, rec card.ExtractedRecord, topN int) ([]Result, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", ErrInvalidArgument, topN)
	}
	st, query, err := m.embedRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	return Rank(query, st.snap, st.catalog, topN)
}

// DefaultTopN returns the configured default result count.
func (m *Matcher) DefaultTopN() int {
	return m.topN
}

func (m *Matcher) embedRecord(ctx context.Context, rec card.ExtractedRecord) (*state, []float32, error) {
	text := card.ComposeRecord(rec)
	if text == "" {
		return nil, nil, fmt.Errorf("%w: record has no text", ErrInvalidArgument)
	}
	st := m.current.Load()
	if st == nil {
		return nil, nil, ErrNotReady
	}
	query, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	return st, query, nil
}

// Stats describes the state currently serving queries. Version keys the model and catalog
// the entries were built for; Current is false when those differ from the running ones.
type Stats struct {
	ModelID     string    `json:"model_id"`
	Dimensions  int       `json:"dimensions"`
	CatalogHash string    `json:"catalog_hash"`
	Entries     int       `json:"entries"`
	Cards       int       `json:"cards"`
	Version     string    `json:"version"`
	Current     bool      `json:"current"`
	BuiltAt     time.Time `json:"built_at"`
}

// Stats reports on the current state. ok is false before the first successful build.
func (m *Matcher) Stats() (stats Stats, ok bool) {
	st := m.current.Load()
	if st == nil {
		return Stats{}, false
	}
	return Stats{
		ModelID:     st.snap.ModelID,
		Dimensions:  st.snap.Dimensions,
		CatalogHash: st.snap.CatalogHash,
		Entries:     st.snap.Len(),
		Cards:       st.catalog.Len(),
		Version:     st.snap.Version(),
		Current:     m.manager.Current(st.snap, st.catalog),
		BuiltAt:     st.builtAt,
	}, true
}
