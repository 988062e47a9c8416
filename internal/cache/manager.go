package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GomuGomuu/ope-ope/internal/card"
	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/embedder"
	"github.com/GomuGomuu/ope-ope/internal/log"
)

// ErrEmptyCardText is returned when a card composes to no text at all.
var ErrEmptyCardText = errors.New("card has no text to embed")

// NewStore opens the store selected by cfg.
func NewStore(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Path), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Manager owns the slug → embedding cache for one store and one embedder.
//
// LoadOrBuild is not safe to run concurrently against the same store: the last
// Save wins. Callers serialize builds.
type Manager struct {
	store        Store
	embedder     embedder.Embedder
	invalidation config.Invalidation
}

// NewManager creates a cache manager.
func NewManager(store Store, e embedder.Embedder, invalidation config.Invalidation) *Manager {
	if invalidation == "" {
		invalidation = config.InvalidateVersion
	}
	return &Manager{
		store:        store,
		embedder:     e,
		invalidation: invalidation,
	}
}

// LoadOrBuild loads the persisted snapshot, embeds every catalog card it lacks, and
// persists the result.
//
// Cached slugs are never re-embedded. When the store cannot be written the complete
// in-memory snapshot is still returned, together with an error wrapping ErrPersistence.
// Any other error returns a nil snapshot.
func (m *Manager) LoadOrBuild(ctx context.Context, catalog *card.Catalog) (*Snapshot, error) {
	snap, current := m.load(ctx, catalog)
	return m.build(ctx, catalog, snap, current)
}

// Rebuild ignores the persisted snapshot, embeds every catalog card again and replaces
// the stored snapshot. Errors follow LoadOrBuild.
func (m *Manager) Rebuild(ctx context.Context, catalog *card.Catalog) (*Snapshot, error) {
	log.InfoLogger.Info().Msgf("♻️ Rebuilding cache for %d cards", catalog.Len())
	return m.build(ctx, catalog, m.fresh(catalog), true)
}

// build embeds the cards snap lacks and saves it. A snapshot that is not current keeps
// the stamp it was loaded with, so its entries are never mistaken for the running
// model and catalog.
func (m *Manager) build(ctx context.Context, catalog *card.Catalog, snap *Snapshot, current bool) (*Snapshot, error) {
	start := time.Now()
	created := 0
	for i := 0; i < catalog.Len(); i++ {
		c := catalog.At(i)
		if snap.Has(c.Slug) {
			continue
		}
		text := card.ComposeCard(c)
		if text == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyCardText, c.Slug)
		}
		log.InfoLogger.Debug().Msgf("🧮 Creating card embedding for %s", c.Name)
		vec, err := m.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed card %s: %w", c.Slug, err)
		}
		snap.Set(c.Slug, vec)
		created++
	}

	snap.Dimensions = m.embedder.Dimensions()
	if current {
		snap.ModelID = m.embedder.ModelID()
		snap.CatalogHash = catalog.Hash()
	} else {
		log.InfoLogger.Warn().Msg("⚠️ Serving cached embeddings built for another model or catalog; keeping their version stamp")
	}

	log.InfoLogger.Info().Msgf("✅ Cache ready: %d embeddings (%d new) in %s", snap.Len(), created, time.Since(start).Round(time.Millisecond))

	if err := m.store.Save(ctx, snap); err != nil {
		return snap, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	log.InfoLogger.Info().Msg("💾 Cache saved")
	return snap, nil
}

// Current reports whether snap was built for the running model and for catalog.
func (m *Manager) Current(snap *Snapshot, catalog *card.Catalog) bool {
	return snap.Version() == VersionKey(m.embedder.ModelID(), catalog.Hash())
}

func (m *Manager) fresh(catalog *card.Catalog) *Snapshot {
	return NewSnapshot(m.embedder.ModelID(), catalog.Hash(), m.embedder.Dimensions())
}

// load returns the persisted snapshot if it can be reused, or a fresh empty one.
// current is false when a reused snapshot carries another model or catalog stamp,
// which only happens with InvalidateNone.
func (m *Manager) load(ctx context.Context, catalog *card.Catalog) (snap *Snapshot, current bool) {
	snap, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		log.InfoLogger.Info().Msg("🆕 Creating cache")
		return m.fresh(catalog), true
	case err != nil:
		log.ErrorLogger.Error().Err(err).Msg("⚠️ Could not read persisted cache, rebuilding")
		return m.fresh(catalog), true
	}
	log.InfoLogger.Info().Msgf("💾 Cache already exists (%d embeddings)", snap.Len())

	if snap.Dimensions != 0 && snap.Dimensions != m.embedder.Dimensions() {
		log.InfoLogger.Warn().Msgf("♻️ Cached dimensions %d differ from model dimensions %d, rebuilding", snap.Dimensions, m.embedder.Dimensions())
		return m.fresh(catalog), true
	}
	if m.Current(snap, catalog) {
		return snap, true
	}
	if m.invalidation == config.InvalidateVersion {
		log.InfoLogger.Warn().Msgf("♻️ Cache was built for model %q and catalog %.12s, now %q and %.12s; rebuilding",
			snap.ModelID, snap.CatalogHash, m.embedder.ModelID(), catalog.Hash())
		return m.fresh(catalog), true
	}
	return snap, false
}
