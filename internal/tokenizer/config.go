package tokenizer

import "github.com/born-ml/gpttok/internal/parallel"

// Config controls how an Encoder is built.
type Config struct {
	// Pattern is the pre-tokenizer pattern. Empty selects DefaultPattern.
	Pattern string

	// CacheSize selects the token cache: 0 is unbounded, a positive value
	// bounds the cache with LRU eviction, a negative value disables it.
	CacheSize int

	// Cache, when set, is used instead of a cache built from CacheSize.
	// Entries are keyed by raw token only, so a cache must not be shared by
	// encoders with different vocabularies: one would read the other's
	// merges. Leave it nil to give every encoder its own cache.
	Cache TokenCache

	// Parallel controls EncodeBatch.
	Parallel parallel.Config
}

// DefaultConfig returns the configuration matching the reference encoder:
// GPT-2 pattern and an unbounded cache.
func DefaultConfig() Config {
	return Config{
		Pattern:  DefaultPattern,
		Parallel: parallel.DefaultConfig(),
	}
}
