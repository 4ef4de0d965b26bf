package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/born-ml/gpttok/internal/logutil"
	"github.com/born-ml/gpttok/internal/parallel"
)

// Encoder converts text to GPT-2/GPT-3 token ids.
//
// An Encoder owns its vocabulary, pre-tokenizer and token cache; separately
// configured encoders share nothing but the process-wide ByteMap. All methods
// are safe for concurrent use.
type Encoder struct {
	pre      *PreTokenizer
	bytes    *ByteMap
	cache    TokenCache
	parallel parallel.Config
	state    func() (*encoderState, error)
}

// encoderState is everything derived from the vocabulary.
type encoderState struct {
	vocab    *Vocabulary
	merger   *Merger
	eos      int32
	specials map[int32]bool
}

var _ Tokenizer = (*Encoder)(nil)

// NewEncoder creates an encoder over an already loaded vocabulary.
func NewEncoder(vocab *Vocabulary, cfg Config) (*Encoder, error) {
	if vocab == nil {
		return nil, errors.New("vocabulary is nil")
	}
	return NewEncoderFromProvider(StaticProvider(vocab), cfg)
}

// NewEncoderFromProvider creates an encoder that loads its vocabulary from p
// on first use.
//
// The load runs exactly once; concurrent callers block until it finishes. A
// failed load is permanent: every later call returns an error wrapping
// ErrVocabularyLoad.
func NewEncoderFromProvider(p VocabularyProvider, cfg Config) (*Encoder, error) {
	if p == nil {
		return nil, errors.New("vocabulary provider is nil")
	}

	pre, err := NewPreTokenizer(cfg.Pattern)
	if err != nil {
		return nil, err
	}

	cache := cfg.Cache
	if cache == nil {
		if cache, err = NewTokenCache(cfg.CacheSize); err != nil {
			return nil, err
		}
	}

	return &Encoder{
		pre:      pre,
		bytes:    ByteUnicodeMap(),
		cache:    cache,
		parallel: cfg.Parallel,
		state: sync.OnceValues(func() (*encoderState, error) {
			return loadState(p)
		}),
	}, nil
}

func loadState(p VocabularyProvider) (*encoderState, error) {
	start := time.Now()
	vocab, err := p.LoadVocabulary()
	if err == nil && vocab == nil {
		err = errors.New("provider returned no vocabulary")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVocabularyLoad, err)
	}

	st := &encoderState{
		vocab:    vocab,
		merger:   NewMerger(vocab),
		eos:      vocab.EOS(),
		specials: make(map[int32]bool),
	}
	if st.eos >= 0 {
		st.specials[st.eos] = true
	}
	for tok, id := range vocab.encoder {
		if strings.HasPrefix(tok, "<|") && strings.HasSuffix(tok, "|>") {
			st.specials[id] = true
		}
	}

	slog.Debug("vocabulary loaded", "tokens", vocab.Size(), "merges", vocab.NumMerges(), "elapsed", time.Since(start))
	return st, nil
}

// Load forces the vocabulary to load and reports any failure.
func (e *Encoder) Load() error {
	_, err := e.state()
	return err
}

// Vocabulary returns the loaded vocabulary.
func (e *Encoder) Vocabulary() (*Vocabulary, error) {
	st, err := e.state()
	if err != nil {
		return nil, err
	}
	return st.vocab, nil
}

// CacheLen returns the number of memoized merge results.
func (e *Encoder) CacheLen() int {
	return e.cache.Len()
}

// Encode converts text to token ids. Empty text yields an empty slice.
//
// A symbol missing from the vocabulary is a *MissingTokenError; the encoder
// never skips it or substitutes another id.
func (e *Encoder) Encode(text string) ([]int32, error) {
	if text == "" {
		return []int32{}, nil
	}

	st, err := e.state()
	if err != nil {
		return nil, err
	}

	pieces, err := e.pre.Split(text)
	if err != nil {
		return nil, err
	}

	ids := make([]int32, 0, len(pieces)+len(pieces)/2)
	for _, piece := range pieces {
		if ids, err = e.appendPiece(st, ids, piece); err != nil {
			return nil, err
		}
	}

	logutil.Trace("encoded", "pieces", len(pieces), "ids", lazyIDs(ids))
	return ids, nil
}

func (e *Encoder) appendPiece(st *encoderState, ids []int32, piece string) ([]int32, error) {
	raw := e.bytes.EncodeString(piece)
	merged := e.cache.GetOrCompute(raw, st.merger.Merge)
	for sym := range strings.SplitSeq(merged, " ") {
		id, ok := st.vocab.ID(sym)
		if !ok {
			return ids, &MissingTokenError{Symbol: sym, Piece: piece}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EncodeBytes encodes b as text. Bytes that are not valid UTF-8 are kept.
func (e *Encoder) EncodeBytes(b []byte) ([]int32, error) {
	return e.Encode(string(b))
}

// EncodeRunes encodes a rune slice.
func (e *Encoder) EncodeRunes(r []rune) ([]int32, error) {
	return e.Encode(string(r))
}

// EncodeStringer encodes s.String(), e.g. a *strings.Builder or
// *bytes.Buffer. A nil s yields an empty slice.
func (e *Encoder) EncodeStringer(s fmt.Stringer) ([]int32, error) {
	if s == nil {
		return []int32{}, nil
	}
	return e.Encode(s.String())
}

// EncodeReader reads r to the end and encodes its contents.
func (e *Encoder) EncodeReader(r io.Reader) ([]int32, error) {
	if r == nil {
		return []int32{}, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return e.EncodeBytes(b)
}

// EncodeBatch encodes texts concurrently. The result has one entry per
// text, in input order.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]int32, error) {
	if err := e.Load(); err != nil {
		return nil, err
	}

	out := make([][]int32, len(texts))
	err := parallel.For(ctx, len(texts), func(_ context.Context, i int) error {
		ids, err := e.Encode(texts[i])
		if err != nil {
			return fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = ids
		return nil
	}, e.parallel)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Count returns the number of tokens text encodes to.
func (e *Encoder) Count(text string) (int, error) {
	ids, err := e.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Decode converts token ids back to text.
//
// For ids produced by Encode, Decode(Encode(s)) == s for every string s,
// including strings that are not valid UTF-8.
func (e *Encoder) Decode(tokens []int32) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}

	st, err := e.state()
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, len(tokens)*4)
	for _, id := range tokens {
		tok, ok := st.vocab.Token(id)
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownTokenID, id)
		}
		out = e.appendTokenBytes(out, tok)
	}

	return string(out), nil
}

// appendTokenBytes appends the raw bytes of a vocabulary token. Runes that
// are not byte stand-ins (added tokens in some vocabularies) are kept as
// their own UTF-8 encoding.
func (e *Encoder) appendTokenBytes(dst []byte, tok string) []byte {
	for _, r := range tok {
		if b, ok := e.bytes.Byte(r); ok {
			dst = append(dst, b)
		} else {
			dst = utf8.AppendRune(dst, r)
		}
	}
	return dst
}

// VocabSize returns the total vocabulary size, or 0 if it failed to load.
func (e *Encoder) VocabSize() int {
	st, err := e.state()
	if err != nil {
		return 0
	}
	return st.vocab.Size()
}

// BosToken returns the beginning-of-sequence token ID.
// GPT-2 reuses <|endoftext|> for it.
func (e *Encoder) BosToken() int32 {
	return e.EosToken()
}

// EosToken returns the end-of-text id, normally <|endoftext|>, or -1 if the
// vocabulary has none.
func (e *Encoder) EosToken() int32 {
	st, err := e.state()
	if err != nil {
		return -1
	}
	return st.eos
}

// PadToken returns -1: GPT-2 defines no padding token.
func (e *Encoder) PadToken() int32 {
	return -1
}

// UnkToken returns -1: byte-level BPE never needs an unknown token.
func (e *Encoder) UnkToken() int32 {
	return -1
}

// IsSpecialToken reports whether id is a control token such as
// <|endoftext|>.
func (e *Encoder) IsSpecialToken(token int32) bool {
	st, err := e.state()
	if err != nil {
		return false
	}
	return st.specials[token]
}

type lazyIDs []int32

func (l lazyIDs) LogValue() slog.Value {
	return slog.AnyValue(fmt.Sprint([]int32(l)))
}
