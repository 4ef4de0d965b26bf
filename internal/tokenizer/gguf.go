package tokenizer

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/born-ml/gpttok/internal/gguf"
)

// GGUFProvider loads the vocabulary embedded in a llama.cpp GGUF model file.
//
// Only the "gpt2" tokenizer family with the GPT-2 pre-tokenizer is accepted:
// tokenizer.ggml.pre must be absent, "gpt-2" or "default". When the file
// declares tokenizer.ggml.eos_token_id, that token becomes the end-of-text
// id whatever its text.
type GGUFProvider struct {
	Path string
}

// LoadVocabulary implements VocabularyProvider.
func (p GGUFProvider) LoadVocabulary() (*Vocabulary, error) {
	f, err := gguf.ParseFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GGUF metadata: %w", err)
	}
	return vocabularyFromGGUF(f)
}

// ggufSpecialIDKeys are the optional token id keys; each must index the
// token list when present.
var ggufSpecialIDKeys = []string{
	gguf.KeyBOSTokenID,
	gguf.KeyEOSTokenID,
	gguf.KeyPaddingTokenID,
	gguf.KeyUnknownTokenID,
}

func vocabularyFromGGUF(f *gguf.File) (*Vocabulary, error) {
	if model := f.TokenizerModel(); model != gguf.TokenizerModelGPT2 {
		return nil, fmt.Errorf("unsupported GGUF tokenizer model %q: only %q is supported", model, gguf.TokenizerModelGPT2)
	}

	pre, hasPre := f.String(gguf.KeyTokenizerPre)
	if hasPre && pre != gguf.TokenizerPreGPT2 && pre != gguf.TokenizerPreDefault {
		return nil, fmt.Errorf("unsupported GGUF pre-tokenizer %q: only %q is supported", pre, gguf.TokenizerPreGPT2)
	}

	list, ok := f.Strings(gguf.KeyTokens)
	if !ok {
		return nil, fmt.Errorf("GGUF metadata has no %s", gguf.KeyTokens)
	}
	tokens := make(map[string]int32, len(list))
	for i, tok := range list {
		if _, dup := tokens[tok]; dup {
			return nil, fmt.Errorf("token %q appears more than once in %s", tok, gguf.KeyTokens)
		}
		tokens[tok] = int32(i) //nolint:gosec // G115: bounded by the parser's array limit.
	}

	lines, _ := f.Strings(gguf.KeyMerges)
	merges := make([]Pair, 0, len(lines))
	for i, line := range lines {
		m, err := parseMergeLine(line)
		if err != nil {
			return nil, fmt.Errorf("merge %d: %w", i, err)
		}
		merges = append(merges, m)
	}

	for _, key := range ggufSpecialIDKeys {
		if id, ok := f.Int(key); ok && (id < 0 || id >= int64(f.VocabSize())) {
			return nil, fmt.Errorf("%s %d is outside the vocabulary of %d tokens", key, id, f.VocabSize())
		}
	}

	v, err := NewVocabulary(tokens, merges)
	if err != nil {
		return nil, err
	}

	if eos, ok := f.Int(gguf.KeyEOSTokenID); ok {
		if v, err = v.withEOS(int32(eos)); err != nil { //nolint:gosec // G115: range checked above.
			return nil, err
		}
	}

	slog.Debug("read GGUF tokenizer", "architecture", f.Architecture(), "name", f.Name(), "pre", pre,
		"tokens", f.VocabSize(), "merges", len(merges), "eos", v.EOS())
	return v, nil
}

// WriteGGUF stores v as a tensor-less GGUF file that GGUFProvider can read
// back. Ids must be dense, since GGUF identifies tokens by array position.
func WriteGGUF(w io.Writer, v *Vocabulary) error {
	list := make([]string, v.Size())
	for tok, id := range v.encoder {
		if int(id) >= len(list) {
			return fmt.Errorf("token %q has id %d, but GGUF requires ids below %d", tok, id, len(list))
		}
		list[id] = tok
	}

	merges := make([]string, len(v.merges))
	for i, m := range v.merges {
		merges[i] = m.Left + " " + m.Right
	}

	kvs := []gguf.MetadataKV{
		{Key: gguf.KeyTokenizerModel, Value: gguf.TokenizerModelGPT2},
		{Key: gguf.KeyTokenizerPre, Value: gguf.TokenizerPreGPT2},
		{Key: gguf.KeyTokens, Value: list},
		{Key: gguf.KeyMerges, Value: merges},
	}
	if eos := v.EOS(); eos >= 0 {
		kvs = append(kvs, gguf.MetadataKV{Key: gguf.KeyEOSTokenID, Value: uint32(eos)}) //nolint:gosec // G115: ids are non-negative.
	}

	if err := gguf.Write(w, kvs); err != nil {
		return fmt.Errorf("failed to write GGUF: %w", err)
	}
	return nil
}
