package card

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// CrewMember is a named sub-entity of a card (character, crew, affiliation).
type CrewMember struct {
	Name string `json:"name"`
}

// Illustration is one printed artwork variant of a card.
type Illustration struct {
	Code         string `json:"code"`
	Src          string `json:"src"`
	ExternalLink string `json:"external_link"`
}

// Card is a reference entry of the catalog. Cards are immutable once the catalog is loaded.
type Card struct {
	Slug          string         `json:"slug"`
	Name          string         `json:"name"`
	Effect        string         `json:"effect"`
	Crew          []CrewMember   `json:"crew"`
	Type          string         `json:"type"`
	Power         *int           `json:"power"`
	Cost          *int           `json:"cost"`
	APIURL        string         `json:"api_url"`
	Illustrations []Illustration `json:"illustrations"`
}

// ErrInvalidCatalog is returned when catalog data breaks the unique, non-empty slug rule.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the ordered, read-only set of reference cards.
// Iteration order is the load order and is used to break ranking ties.
type Catalog struct {
	cards  []Card
	bySlug map[string]int
	hash   string
}

// NewCatalog validates the cards and builds the slug index.
func NewCatalog(cards []Card) (*Catalog, error) {
	c := &Catalog{
		cards:  make([]Card, len(cards)),
		bySlug: make(map[string]int, len(cards)),
	}
	copy(c.cards, cards)

	h := sha256.New()
	for i, crd := range c.cards {
		if crd.Slug == "" {
			return nil, fmt.Errorf("%w: card at index %d has an empty slug", ErrInvalidCatalog, i)
		}
		if _, dup := c.bySlug[crd.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidCatalog, crd.Slug)
		}
		c.bySlug[crd.Slug] = i

		h.Write([]byte(crd.Slug))
		h.Write([]byte{0})
		h.Write([]byte(ComposeCard(crd)))
		h.Write([]byte{0})
	}
	c.hash = hex.EncodeToString(h.Sum(nil))
	return c, nil
}

// LoadCatalog reads a JSON array of cards from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return NewCatalog(cards)
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// At returns the i-th card in catalog order.
func (c *Catalog) At(i int) Card {
	return c.cards[i]
}

// Has reports whether slug belongs to the catalog.
func (c *Catalog) Has(slug string) bool {
	_, ok := c.bySlug[slug]
	return ok
}

// Hash identifies the catalog content: every slug and its composed text, in order.
// Any edit to a field that feeds the composed text changes the hash.
func (c *Catalog) Hash() string {
	return c.hash
}
