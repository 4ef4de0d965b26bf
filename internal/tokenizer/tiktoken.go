package tokenizer

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	// EncodingGPT2 is an alias for encodingR50kBase.
	EncodingGPT2 = "gpt2"
	// encodingR50kBase is the GPT-2 encoding, also used by the first GPT-3 models.
	encodingR50kBase = tiktoken.MODEL_R50K_BASE
	// encodingP50kBase is the GPT-3 / Codex encoding.
	encodingP50kBase = tiktoken.MODEL_P50K_BASE
	// encodingP50kEdit is p50k_base with fill-in-the-middle control tokens.
	encodingP50kEdit = tiktoken.MODEL_P50K_EDIT

	encodingsBaseURL = "https://openaipublic.blob.core.windows.net/encodings/"
)

// tiktokenEncoding describes a GPT-2-pattern encoding shipped with the
// offline tiktoken loader.
type tiktokenEncoding struct {
	file     string
	specials map[string]int32
}

var tiktokenEncodings = map[string]tiktokenEncoding{
	encodingR50kBase: {
		file:     encodingsBaseURL + "r50k_base.tiktoken",
		specials: map[string]int32{tiktoken.ENDOFTEXT: 50256},
	},
	encodingP50kBase: {
		file:     encodingsBaseURL + "p50k_base.tiktoken",
		specials: map[string]int32{tiktoken.ENDOFTEXT: 50256},
	},
	encodingP50kEdit: {
		file: encodingsBaseURL + "p50k_base.tiktoken",
		specials: map[string]int32{
			tiktoken.ENDOFTEXT:  50256,
			tiktoken.FIM_PREFIX: 50281,
			tiktoken.FIM_MIDDLE: 50282,
			tiktoken.FIM_SUFFIX: 50283,
		},
	},
}

var offlineLoader = sync.OnceValue(func() tiktoken.BpeLoader {
	loader := tiktoken_loader.NewOfflineLoader()
	tiktoken.SetBpeLoader(loader)
	return loader
})

// ResolveEncoding maps an encoding or model name to one of the supported
// GPT-2-pattern encodings.
//
// Example names: "gpt2", "r50k_base", "p50k_base", "text-davinci-003", "davinci".
// Encodings with a different pre-tokenization pattern (cl100k_base,
// o200k_base) are rejected.
func ResolveEncoding(name string) (string, error) {
	if name == EncodingGPT2 {
		return encodingR50kBase, nil
	}
	if _, ok := tiktokenEncodings[name]; ok {
		return name, nil
	}
	if enc, ok := tiktoken.MODEL_TO_ENCODING[name]; ok {
		if enc == EncodingGPT2 {
			return encodingR50kBase, nil
		}
		if _, ok := tiktokenEncodings[enc]; ok {
			return enc, nil
		}
		return "", fmt.Errorf("model %q uses encoding %q, which is not a GPT-2/GPT-3 byte-level BPE", name, enc)
	}
	return "", fmt.Errorf("unknown encoding or model %q", name)
}

// TiktokenProvider loads a GPT-2/GPT-3 vocabulary from the mergeable ranks
// bundled with tiktoken-go-loader. No network access is needed.
//
// tiktoken files only list token byte strings and their ranks; merge rules
// are recovered by replaying rank-bounded BPE on every multi-byte token, which
// splits it into exactly the two parts it was merged from.
type TiktokenProvider struct {
	// Encoding is an encoding or model name accepted by ResolveEncoding.
	Encoding string
}

// LoadVocabulary implements VocabularyProvider.
func (p TiktokenProvider) LoadVocabulary() (*Vocabulary, error) {
	name, err := ResolveEncoding(p.Encoding)
	if err != nil {
		return nil, err
	}
	enc := tiktokenEncodings[name]

	start := time.Now()
	ranks, err := offlineLoader().LoadTiktokenBpe(enc.file)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken ranks for %q: %w", name, err)
	}

	vocab, err := vocabularyFromRanks(ranks, enc.specials)
	if err != nil {
		return nil, fmt.Errorf("failed to build vocabulary for %q: %w", name, err)
	}

	slog.Debug("derived vocabulary from tiktoken ranks", "encoding", name, "tokens", vocab.Size(),
		"merges", vocab.NumMerges(), "elapsed", time.Since(start))
	return vocab, nil
}

// vocabularyFromRanks converts raw-byte ranks into a byte-level vocabulary
// and merge list.
func vocabularyFromRanks(ranks map[string]int, specials map[string]int32) (*Vocabulary, error) {
	bm := ByteUnicodeMap()

	tokens := make(map[string]int32, len(ranks)+len(specials))
	for raw, rank := range ranks {
		tokens[bm.EncodeString(raw)] = int32(rank) //nolint:gosec // G115: ranks are below 2^31.
	}
	for tok, id := range specials {
		tokens[tok] = id
	}

	type rankedMerge struct {
		rank int
		pair Pair
	}
	merges := make([]rankedMerge, 0, len(ranks))
	for raw, rank := range ranks {
		if len(raw) < 2 {
			continue
		}
		parts := splitByRank(raw, ranks, rank)
		if len(parts) != 2 {
			return nil, fmt.Errorf("token %q (rank %d) does not split into a mergeable pair", raw, rank)
		}
		merges = append(merges, rankedMerge{rank, Pair{bm.EncodeString(parts[0]), bm.EncodeString(parts[1])}})
	}
	sort.Slice(merges, func(i, j int) bool { return merges[i].rank < merges[j].rank })

	pairs := make([]Pair, len(merges))
	for i, m := range merges {
		pairs[i] = m.pair
	}

	return NewVocabulary(tokens, pairs)
}

// splitByRank runs BPE over the bytes of token using only merges whose
// result ranks below maxRank.
func splitByRank(token string, ranks map[string]int, maxRank int) []string {
	parts := make([]string, len(token))
	for i := range parts {
		parts[i] = token[i : i+1]
	}

	for len(parts) > 1 {
		best, bestRank := -1, maxRank
		for i := 0; i < len(parts)-1; i++ {
			if r, ok := ranks[parts[i]+parts[i+1]]; ok && r < bestRank {
				best, bestRank = i, r
			}
		}
		if best < 0 {
			break
		}
		parts[best] += parts[best+1]
		parts = slices.Delete(parts, best+1, best+2)
	}

	return parts
}

// TikToken wraps the pkoukk/tiktoken-go encoder for the same encodings.
//
// It is an independent implementation used to cross-check Encoder.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a TikToken tokenizer for an encoding or model name
// accepted by ResolveEncoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	name, err := ResolveEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	offlineLoader()
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", name, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     name,
	}, nil
}

// Encode converts text to token IDs. Control tokens in text are encoded as
// ordinary text, like Encoder does.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.EncodeOrdinary(text)

	// Convert []int to []int32.
	result := make([]int32, len(tokens))
	for i, tok := range tokens {
		result[i] = int32(tok) //nolint:gosec // G115: Token ID fits in int32 - vocab size < 2^31.
	}

	return result, nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int32) (string, error) {
	intTokens := make([]int, len(tokens))
	for i, tok := range tokens {
		intTokens[i] = int(tok)
	}

	return t.encoding.Decode(intTokens), nil
}

// VocabSize returns the total vocabulary size.
func (t *TikToken) VocabSize() int {
	switch t.name {
	case encodingP50kBase:
		return 50281
	case encodingP50kEdit:
		return 50284
	default:
		return 50257
	}
}

// BosToken returns <|endoftext|>, which GPT-2 also uses to start documents.
func (t *TikToken) BosToken() int32 {
	return t.EosToken()
}

// EosToken returns the <|endoftext|> id.
func (t *TikToken) EosToken() int32 {
	return tiktokenEncodings[t.name].specials[tiktoken.ENDOFTEXT]
}

// PadToken returns -1.
func (t *TikToken) PadToken() int32 {
	return -1
}

// UnkToken returns -1.
func (t *TikToken) UnkToken() int32 {
	return -1
}

// IsSpecialToken checks if a token ID is a control token of the encoding.
func (t *TikToken) IsSpecialToken(token int32) bool {
	for _, id := range tiktokenEncodings[t.name].specials {
		if id == token {
			return true
		}
	}
	return false
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
