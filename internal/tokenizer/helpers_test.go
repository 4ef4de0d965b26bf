package tokenizer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestVocab builds a small vocabulary shaped like GPT-2's: ids 0-255 are
// the single bytes in byte order, each merge i produces token 256+i, and
// <|endoftext|> comes last. Merge sides are given as raw text.
func newTestVocab(t testing.TB, merges ...[2]string) *Vocabulary {
	t.Helper()

	bm := ByteUnicodeMap()
	tokens := make(map[string]int32, 256+len(merges)+1)
	for b := 0; b < 256; b++ {
		tokens[string(bm.Rune(byte(b)))] = int32(b)
	}

	pairs := make([]Pair, len(merges))
	for i, m := range merges {
		p := Pair{Left: bm.EncodeString(m[0]), Right: bm.EncodeString(m[1])}
		pairs[i] = p
		tokens[p.Left+p.Right] = int32(256 + i)
	}
	tokens[EndOfText] = int32(256 + len(merges))

	v, err := NewVocabulary(tokens, pairs)
	require.NoError(t, err)
	return v
}

// helloMerges are enough merges to encode "hello world" as two tokens.
var helloMerges = [][2]string{
	{"h", "e"},     // 256
	{"l", "l"},     // 257
	{"he", "ll"},   // 258
	{"hell", "o"},  // 259
	{" ", "w"},     // 260
	{"o", "r"},     // 261
	{" w", "or"},   // 262
	{"l", "d"},     // 263
	{" wor", "ld"}, // 264
}

func newHelloEncoder(t testing.TB, cfg Config) *Encoder {
	t.Helper()
	enc, err := NewEncoder(newTestVocab(t, helloMerges...), cfg)
	require.NoError(t, err)
	return enc
}

var gpt2Vocab = sync.OnceValues(func() (*Vocabulary, error) {
	return TiktokenProvider{Encoding: EncodingGPT2}.LoadVocabulary()
})

// newGPT2Encoder returns an encoder over the bundled GPT-2 ranks. The
// vocabulary is derived once per test binary.
func newGPT2Encoder(t testing.TB) *Encoder {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping GPT-2 vocabulary derivation in short mode")
	}

	v, err := gpt2Vocab()
	require.NoError(t, err)

	enc, err := NewEncoder(v, DefaultConfig())
	require.NoError(t, err)
	return enc
}
