package card

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ExtractedRecord is the per-request output of the upstream OCR/LLM extraction.
// A nil field was not extracted.
type ExtractedRecord struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Tribe       *string `json:"tribe,omitempty"`
	Type        *string `json:"type,omitempty"`
}

// ComposeCard builds the canonical text of a card: name, effect, crew names, type,
// power and cost, skipping empty fields, joined by single spaces.
func ComposeCard(c Card) string {
	crew := make([]string, 0, len(c.Crew))
	for _, m := range c.Crew {
		if n := normalize(m.Name); n != "" {
			crew = append(crew, n)
		}
	}
	return join(
		c.Name,
		c.Effect,
		strings.Join(crew, " "),
		c.Type,
		intString(c.Power),
		intString(c.Cost),
	)
}

// ComposeRecord builds the canonical text of an extracted record: name, description,
// tribe and type, skipping absent or empty fields, joined by single spaces.
func ComposeRecord(r ExtractedRecord) string {
	return join(
		deref(r.Name),
		deref(r.Description),
		deref(r.Tribe),
		deref(r.Type),
	)
}

func join(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if n := normalize(f); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}

// normalize applies NFKC and trims surrounding whitespace.
func normalize(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
