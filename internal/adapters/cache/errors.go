package cache

import "errors"

// ErrKeyDerivation is returned when parameters cannot be encoded into a key.
var ErrKeyDerivation = errors.New("cache key derivation failed")
