// Package tokenizer converts text to GPT-2 and GPT-3 token ids.
//
// This package wraps the internal tokenizer implementation and provides
// a clean public API for tokenization tasks.
//
// Supported vocabulary sources:
//   - GPT-2 release files: encoder.json + vocab.bpe
//   - HuggingFace tokenizer.json (BPE models)
//   - GGUF model files with a "gpt2" tokenizer
//   - Bundled tiktoken ranks: gpt2 / r50k_base, p50k_base, p50k_edit
//
// Example usage:
//
//	import "github.com/born-ml/gpttok/tokenizer"
//
//	// Load the bundled GPT-2 vocabulary
//	enc, err := tokenizer.Load("gpt2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Encode text
//	ids, err := enc.Encode("Hello world") // [15496 995]
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decode tokens
//	text, err := enc.Decode(ids)
//	if err != nil {
//	    log.Fatal(err)
//	}
package tokenizer

import (
	"io"
	"sync"

	"github.com/born-ml/gpttok/internal/tokenizer"
)

// Tokenizer is the core interface for text tokenization.
type Tokenizer = tokenizer.Tokenizer

// Encoder is the GPT-2/GPT-3 byte-level BPE encoder.
type Encoder = tokenizer.Encoder

// Config controls how an Encoder is built.
type Config = tokenizer.Config

// Vocabulary is an immutable token table plus merge rules.
type Vocabulary = tokenizer.Vocabulary

// Pair is a merge rule.
type Pair = tokenizer.Pair

// VocabularyProvider loads a vocabulary on demand.
type VocabularyProvider = tokenizer.VocabularyProvider

// ProviderFunc adapts a function to VocabularyProvider.
type ProviderFunc = tokenizer.ProviderFunc

// Vocabulary providers.
type (
	FileProvider        = tokenizer.FileProvider
	HuggingFaceProvider = tokenizer.HuggingFaceProvider
	GGUFProvider        = tokenizer.GGUFProvider
	TiktokenProvider    = tokenizer.TiktokenProvider
)

// TokenCache memoizes merge results.
type TokenCache = tokenizer.TokenCache

// MissingTokenError reports a merged symbol with no vocabulary entry.
type MissingTokenError = tokenizer.MissingTokenError

// Errors returned by Encoder.
var (
	ErrVocabularyLoad     = tokenizer.ErrVocabularyLoad
	ErrVocabularyMismatch = tokenizer.ErrVocabularyMismatch
	ErrUnknownTokenID     = tokenizer.ErrUnknownTokenID
)

// EndOfText is the <|endoftext|> control token.
const EndOfText = tokenizer.EndOfText

// DefaultConfig returns the GPT-2 pattern with an unbounded token cache.
func DefaultConfig() Config {
	return tokenizer.DefaultConfig()
}

// New creates an encoder that loads its vocabulary from p on first use.
func New(p VocabularyProvider, cfg Config) (*Encoder, error) {
	return tokenizer.NewEncoderFromProvider(p, cfg)
}

// NewVocabulary validates and builds a vocabulary from token ids and merge
// rules in priority order.
func NewVocabulary(tokens map[string]int32, merges []Pair) (*Vocabulary, error) {
	return tokenizer.NewVocabulary(tokens, merges)
}

// Load creates an encoder with the default configuration for pathOrName.
//
// It tries, in order:
//  1. A directory with encoder.json and vocab.bpe (or merges.txt)
//  2. A tokenizer.json file, or a directory containing one
//  3. A .gguf model file
//  4. A tiktoken encoding or model name ("gpt2", "p50k_base", "davinci", ...)
//
// The vocabulary itself is read on first use.
func Load(pathOrName string) (*Encoder, error) {
	return LoadWithConfig(pathOrName, DefaultConfig())
}

// LoadWithConfig is Load with an explicit configuration.
func LoadWithConfig(pathOrName string, cfg Config) (*Encoder, error) {
	p, err := tokenizer.DetectProvider(pathOrName)
	if err != nil {
		return nil, err
	}
	return tokenizer.NewEncoderFromProvider(p, cfg)
}

var defaultEncoder = sync.OnceValues(func() (*Encoder, error) {
	return New(TiktokenProvider{Encoding: tokenizer.EncodingGPT2}, DefaultConfig())
})

// Default returns the process-wide GPT-2 encoder, built on first use from
// the bundled vocabulary.
func Default() (*Encoder, error) {
	return defaultEncoder()
}

// Encode encodes text with the Default encoder.
func Encode(text string) ([]int32, error) {
	enc, err := Default()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text)
}

// WriteGGUF writes v as a tensor-less GGUF file that GGUFProvider can read.
func WriteGGUF(w io.Writer, v *Vocabulary) error {
	return tokenizer.WriteGGUF(w, v)
}

// NewTikToken creates the tiktoken-go tokenizer for a GPT-2/GPT-3 encoding,
// for comparison with Encoder.
func NewTikToken(encodingName string) (Tokenizer, error) {
	return tokenizer.NewTikToken(encodingName)
}
