package matcher

import "errors"

var (
	// ErrCatalogInconsistency means the cache and the catalog disagree on slugs or
	// dimensions. The cache must be rebuilt.
	ErrCatalogInconsistency = errors.New("catalog and embedding cache are inconsistent")
	// ErrInvalidArgument is returned for malformed caller input, such as a non-positive topN.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoCandidates is returned when ranking runs against an empty catalog.
	ErrNoCandidates = errors.New("no candidate cards")
	// ErrNotReady is returned when a query arrives before the first cache build finished.
	ErrNotReady = errors.New("matcher not loaded")
)
