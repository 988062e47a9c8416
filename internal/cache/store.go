package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned by Store.Load when nothing has been persisted yet.
	ErrNotFound = errors.New("cache not found")
	// ErrPersistence wraps failures to durably save a snapshot. The in-memory
	// snapshot stays valid, but it will not survive a restart.
	ErrPersistence = errors.New("cache persistence failed")
)

// Store persists snapshots. Save must replace the previous snapshot atomically:
// a concurrent or later Load sees either the old or the new snapshot, never a mix.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileEnvelope struct {
	ModelID     string               `json:"model_id"`
	CatalogHash string               `json:"catalog_hash"`
	Dimensions  int                  `json:"dimensions"`
	Embeddings  map[string][]float32 `json:"embeddings"`
}

// Load reads the snapshot file. A plain {"slug": [...]} object, as written by
// earlier unversioned caches, loads with an empty model and catalog stamp.
func (s *FileStore) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache %s: %w", s.path, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", s.path, err)
	}
	_, hasModel := probe["model_id"]
	_, hasEmbeddings := probe["embeddings"]

	if hasModel && hasEmbeddings {
		var env fileEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode cache %s: %w", s.path, err)
		}
		snap := NewSnapshot(env.ModelID, env.CatalogHash, env.Dimensions)
		for slug, vec := range env.Embeddings {
			snap.store[slug] = vec
		}
		return snap, nil
	}

	var legacy map[string][]float32
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy cache %s: %w", s.path, err)
	}
	snap := NewSnapshot("", "", 0)
	for slug, vec := range legacy {
		if snap.Dimensions == 0 {
			snap.Dimensions = len(vec)
		}
		snap.store[slug] = vec
	}
	return snap, nil
}

// Save writes the snapshot to a temporary file in the same directory and renames it
// over the target, so readers never observe a partial file.
func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	data, err := json.Marshal(fileEnvelope{
		ModelID:     snap.ModelID,
		CatalogHash: snap.CatalogHash,
		Dimensions:  snap.Dimensions,
		Embeddings:  snap.store,
	})
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}

// Close is a no-op for file stores.
func (s *FileStore) Close() error {
	return nil
}
