package cache

import (
	"sort"
)

// Snapshot is the in-memory embedding cache: one vector per catalog slug, stamped with
// the model and catalog it was built for.
//
// A Snapshot is mutated only while it is being built. Once handed to readers it must be
// treated as immutable; Get returns the stored slice without copying.
type Snapshot struct {
	ModelID     string
	CatalogHash string
	Dimensions  int

	store map[string][]float32
}

// NewSnapshot initializes an empty snapshot.
func NewSnapshot(modelID, catalogHash string, dimensions int) *Snapshot {
	return &Snapshot{
		ModelID:     modelID,
		CatalogHash: catalogHash,
		Dimensions:  dimensions,
		store:       make(map[string][]float32),
	}
}

// Get returns the embedding stored for slug. Callers must not modify it.
func (s *Snapshot) Get(slug string) ([]float32, bool) {
	val, found := s.store[slug]
	return val, found
}

// Has reports whether slug has an embedding.
func (s *Snapshot) Has(slug string) bool {
	_, found := s.store[slug]
	return found
}

// Set stores a copy of the embedding for slug.
func (s *Snapshot) Set(slug string, embedding []float32) {
	// Copy the embedding to avoid retaining references to caller's slice.
	copied := make([]float32, len(embedding))
	copy(copied, embedding)
	s.store[slug] = copied
}

// Len returns the number of cached embeddings.
func (s *Snapshot) Len() int {
	return len(s.store)
}

// Slugs returns the cached slugs in sorted order.
func (s *Snapshot) Slugs() []string {
	slugs := make([]string, 0, len(s.store))
	for slug := range s.store {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Version returns the key identifying what this snapshot was built for.
func (s *Snapshot) Version() string {
	return VersionKey(s.ModelID, s.CatalogHash)
}
