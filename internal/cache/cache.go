// Package cache stores encoded cutouts keyed by input bytes and the processing
// fingerprint of the pipeline that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// KeyPrefix namespaces every cutout entry.
const KeyPrefix = "cutout:"

// Cache is a byte store for finished PNGs. Get reports a miss with ok=false and
// a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte) error
	Close() error
}

// Config configures the Redis backend.
type Config struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"-" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns a disabled cache pointing at a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		TTL:  24 * time.Hour,
	}
}

// Key derives the cache key for data processed by a pipeline with the given
// fingerprint.
func Key(fingerprint string, data []byte) string {
	sum := sha256.Sum256(data)
	return KeyPrefix + fingerprint + ":" + hex.EncodeToString(sum[:])
}
