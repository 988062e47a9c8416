package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecordFromStdin(t *testing.T) {
	rec, err := readRecord(strings.NewReader(`{"name": "Nami", "type": "CHARACTER"}`), nil)
	require.NoError(t, err)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "Nami", *rec.Name)
	assert.Nil(t, rec.Description)
	assert.Equal(t, "CHARACTER", *rec.Type)
}

func TestReadRecordFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tribe": "Straw Hat Crew"}`), 0o644))

	rec, err := readRecord(strings.NewReader("ignored"), []string{path})
	require.NoError(t, err)
	assert.Equal(t, "Straw Hat Crew", *rec.Tribe)
}

func TestReadRecordErrors(t *testing.T) {
	_, err := readRecord(strings.NewReader("not json"), []string{"-"})
	require.Error(t, err)

	_, err = readRecord(nil, []string{filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}
