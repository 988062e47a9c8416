package card

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func TestComposeCardAllFields(t *testing.T) {
	c := Card{
		Slug:   "op05-069",
		Name:   "Eustass Kid",
		Effect: "On Play: draw 1",
		Crew:   []CrewMember{{Name: "Supernovas"}, {Name: "Kid Pirates"}},
		Type:   "CHARACTER",
		Power:  intPtr(6000),
		Cost:   intPtr(0),
	}
	assert.Equal(t, "Eustass Kid On Play: draw 1 Supernovas Kid Pirates CHARACTER 6000 0", ComposeCard(c))
}

func TestComposeCardNameOnly(t *testing.T) {
	c := Card{Slug: "x", Name: "Nami"}
	assert.Equal(t, "Nami", ComposeCard(c))
}

func TestComposeCardSkipsEmptyAndBlank(t *testing.T) {
	c := Card{
		Name:   "Nami",
		Effect: "   ",
		Crew:   []CrewMember{{Name: ""}, {Name: "Straw Hat Crew"}},
		Cost:   intPtr(1),
	}
	assert.Equal(t, "Nami Straw Hat Crew 1", ComposeCard(c))
}

func TestComposeCardNormalizesWidth(t *testing.T) {
	c := Card{Name: "ＮＡＭＩ", Type: "CHARACTER"}
	assert.Equal(t, "NAMI CHARACTER", ComposeCard(c))
}

func TestComposeRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  ExtractedRecord
		want string
	}{
		{"empty", ExtractedRecord{}, ""},
		{"name only", ExtractedRecord{Name: strPtr("Kid")}, "Kid"},
		{
			"all fields",
			ExtractedRecord{
				Name:        strPtr("Kid"),
				Description: strPtr("On Play"),
				Tribe:       strPtr("Kid Pirates"),
				Type:        strPtr("CHARACTER"),
			},
			"Kid On Play Kid Pirates CHARACTER",
		},
		{"present but empty", ExtractedRecord{Name: strPtr(""), Type: strPtr("EVENT")}, "EVENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeRecord(tt.rec))
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("testdata", "catalog.json"))
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	assert.Equal(t, "op05-069-eustass-captain-kid", cat.At(0).Slug)
	zoro := cat.At(1)
	assert.Equal(t, "op01-001-roronoa-zoro", zoro.Slug)
	assert.True(t, cat.Has(zoro.Slug))
	assert.Nil(t, zoro.Cost)
	require.NotNil(t, zoro.Power)
	assert.Equal(t, 5000, *zoro.Power)
	assert.False(t, cat.Has("missing"))
	assert.Len(t, cat.At(0).Illustrations, 1)
	assert.Equal(t, "OP05-069", cat.At(0).Illustrations[0].Code)
}

func TestNewCatalogRejectsDuplicateSlug(t *testing.T) {
	_, err := NewCatalog([]Card{{Slug: "a", Name: "A"}, {Slug: "a", Name: "B"}})
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestNewCatalogRejectsEmptySlug(t *testing.T) {
	_, err := NewCatalog([]Card{{Name: "A"}})
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestCatalogHash(t *testing.T) {
	a, err := NewCatalog([]Card{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}})
	require.NoError(t, err)
	same, err := NewCatalog([]Card{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}})
	require.NoError(t, err)
	edited, err := NewCatalog([]Card{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B2"}})
	require.NoError(t, err)
	// Fields outside the composed text do not affect the hash.
	urlOnly, err := NewCatalog([]Card{{Slug: "a", Name: "A", APIURL: "x"}, {Slug: "b", Name: "B"}})
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), same.Hash())
	assert.NotEqual(t, a.Hash(), edited.Hash())
	assert.Equal(t, a.Hash(), urlOnly.Hash())
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadCatalog(bad)
	require.Error(t, err)
}
