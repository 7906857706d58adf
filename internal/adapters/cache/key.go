package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
)

// KeyFor derives a fixed-length key from structured parameters. Map keys are
// encoded in sorted order at every depth, so logically equal parameters
// produce the same key whatever order they were built in.
func KeyFor(params map[string]any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyDerivation, err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}
