package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// VersionKey generates a deterministic key for a model and catalog pair.
// Two snapshots with the same key hold interchangeable vectors.
func VersionKey(modelID, catalogHash string) string {
	input := fmt.Sprintf("%s:%s", modelID, catalogHash)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
