package tokenizer

import (
	"fmt"
	"strings"
)

// EndOfText is the GPT-2/GPT-3 document separator token.
const EndOfText = "<|endoftext|>"

// Vocabulary is an immutable token table plus the merge rules it was trained
// with.
//
// Vocabulary values are never modified after NewVocabulary returns and can be
// shared by any number of encoders and goroutines.
type Vocabulary struct {
	encoder map[string]int32
	decoder map[int32]string
	merges  []Pair
	ranks   RankTable
	eos     int32
}

// NewVocabulary validates tokens and merges and builds the derived tables.
//
// Ids must be non-negative and unique. Merge rules must have two non-empty
// sides and may not repeat.
func NewVocabulary(tokens map[string]int32, merges []Pair) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}

	encoder := make(map[string]int32, len(tokens))
	decoder := make(map[int32]string, len(tokens))
	for token, id := range tokens {
		if id < 0 {
			return nil, fmt.Errorf("token %q has negative id %d", token, id)
		}
		if prev, ok := decoder[id]; ok {
			return nil, fmt.Errorf("id %d is assigned to both %q and %q", id, prev, token)
		}
		encoder[token] = id
		decoder[id] = token
	}

	ranks := NewRankTable(merges)
	for i, m := range merges {
		if m.Left == "" || m.Right == "" {
			return nil, fmt.Errorf("merge rule %d (%q %q) has an empty side", i, m.Left, m.Right)
		}
		if strings.ContainsRune(m.Left, ' ') || strings.ContainsRune(m.Right, ' ') {
			return nil, fmt.Errorf("merge rule %d (%q %q) contains a space", i, m.Left, m.Right)
		}
		if first := ranks[m]; first != i {
			return nil, fmt.Errorf("merge rule %d (%q %q) duplicates rule %d", i, m.Left, m.Right, first)
		}
	}

	eos, ok := encoder[EndOfText]
	if !ok {
		eos = -1
	}

	return &Vocabulary{
		encoder: encoder,
		decoder: decoder,
		merges:  append([]Pair(nil), merges...),
		ranks:   ranks,
		eos:     eos,
	}, nil
}

// ID returns the id of token.
func (v *Vocabulary) ID(token string) (int32, bool) {
	id, ok := v.encoder[token]
	return id, ok
}

// Token returns the token string for id.
func (v *Vocabulary) Token(id int32) (string, bool) {
	tok, ok := v.decoder[id]
	return tok, ok
}

// EOS returns the end-of-text id: the id of <|endoftext|> unless the source
// declared another one, or -1 if there is none.
func (v *Vocabulary) EOS() int32 {
	return v.eos
}

// withEOS returns a copy of v whose end-of-text token is id.
func (v *Vocabulary) withEOS(id int32) (*Vocabulary, error) {
	if _, ok := v.decoder[id]; !ok {
		return nil, fmt.Errorf("eos token id %d is outside the vocabulary", id)
	}
	c := *v
	c.eos = id
	return &c, nil
}

// Rank implements Ranker.
func (v *Vocabulary) Rank(p Pair) (int, bool) {
	r, ok := v.ranks[p]
	return r, ok
}

// Size returns the number of tokens.
func (v *Vocabulary) Size() int {
	return len(v.encoder)
}

// NumMerges returns the number of merge rules.
func (v *Vocabulary) NumMerges() int {
	return len(v.merges)
}

// Merges returns a copy of the merge rules in priority order.
func (v *Vocabulary) Merges() []Pair {
	return append([]Pair(nil), v.merges...)
}

// VocabularyProvider loads a vocabulary from some external resource.
type VocabularyProvider interface {
	LoadVocabulary() (*Vocabulary, error)
}

// ProviderFunc adapts a function to VocabularyProvider.
type ProviderFunc func() (*Vocabulary, error)

// LoadVocabulary implements VocabularyProvider.
func (f ProviderFunc) LoadVocabulary() (*Vocabulary, error) {
	return f()
}

// StaticProvider always returns the same, already built vocabulary.
func StaticProvider(v *Vocabulary) VocabularyProvider {
	return ProviderFunc(func() (*Vocabulary, error) { return v, nil })
}
