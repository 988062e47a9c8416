package matcher

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/GomuGomuu/ope-ope/internal/cache"
	"github.com/GomuGomuu/ope-ope/internal/card"
)

// DefaultTopN is the number of results returned when the caller does not ask for a count.
const DefaultTopN = 5

// Result is one ranked candidate.
type Result struct {
	Card       card.Card
	Confidence float64
}

// MarshalJSON projects the result onto the fields downstream consumers read.
func (r Result) MarshalJSON() ([]byte, error) {
	illustrations := r.Card.Illustrations
	if illustrations == nil {
		illustrations = []card.Illustration{}
	}
	return json.Marshal(struct {
		APIURL        string              `json:"api_url"`
		Confidence    float64             `json:"confidence"`
		Illustrations []card.Illustration `json:"illustrations"`
		Name          string              `json:"name"`
		Slug          string              `json:"slug"`
	}{
		APIURL:        r.Card.APIURL,
		Confidence:    r.Confidence,
		Illustrations: illustrations,
		Name:          r.Card.Name,
		Slug:          r.Card.Slug,
	})
}

// toVec converts an embedding to a gonum vector.
func toVec(v []float32) *mat.VecDense {
	out := mat.NewVecDense(len(v), nil)
	for i, x := range v {
		out.SetVec(i, float64(x))
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped to [-1, 1].
// A zero vector, or one with NaN or infinite components, has similarity 0 with everything.
func CosineSimilarity(a, b *mat.VecDense) float64 {
	if a.Len() != b.Len() {
		return -1
	}
	normA := mat.Norm(a, 2)
	normB := mat.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := mat.Dot(a, b) / (normA * normB)
	// Rounding can push parallel vectors slightly past 1.
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// Rank scores every catalog card against query and returns the best topN, highest
// confidence first. Equal confidences keep catalog order. A topN larger than the
// catalog returns every card.
func Rank(query []float32, snap *cache.Snapshot, catalog *card.Catalog, topN int) ([]Result, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", ErrInvalidArgument, topN)
	}
	if err := checkConsistency(snap, catalog); err != nil {
		return nil, err
	}

	q := toVec(query)
	results := make([]Result, 0, catalog.Len())
	for i := 0; i < catalog.Len(); i++ {
		c := catalog.At(i)
		emb, _ := snap.Get(c.Slug)
		if len(emb) != len(query) {
			return nil, fmt.Errorf("%w: card %s has %d dimensions, query has %d",
				ErrCatalogInconsistency, c.Slug, len(emb), len(query))
		}
		results = append(results, Result{
			Card:       c,
			Confidence: CosineSimilarity(q, toVec(emb)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	if topN < len(results) {
		results = results[:topN]
	}
	return results, nil
}

// FindClosest returns the single best match.
func FindClosest(query []float32, snap *cache.Snapshot, catalog *card.Catalog) (Result, error) {
	results, err := Rank(query, snap, catalog, 1)
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, ErrNoCandidates
	}
	return results[0], nil
}

// checkConsistency requires the snapshot and the catalog to hold exactly the same slugs.
func checkConsistency(snap *cache.Snapshot, catalog *card.Catalog) error {
	for i := 0; i < catalog.Len(); i++ {
		if slug := catalog.At(i).Slug; !snap.Has(slug) {
			return fmt.Errorf("%w: card %s has no cached embedding", ErrCatalogInconsistency, slug)
		}
	}
	if snap.Len() != catalog.Len() {
		for _, slug := range snap.Slugs() {
			if !catalog.Has(slug) {
				return fmt.Errorf("%w: cached slug %s is not in the catalog", ErrCatalogInconsistency, slug)
			}
		}
	}
	return nil
}
