package tokenizer

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"
)

// Pair is an adjacent pair of symbols considered for merging.
//
// Pair is comparable and used directly as a map key.
type Pair struct {
	Left  string
	Right string
}

// noRank is the rank of a pair that is not a merge rule. It is larger than
// any real rank, so such a pair is never preferred.
const noRank = math.MaxInt

// Ranker reports the merge priority of a pair; lower ranks merge first.
type Ranker interface {
	Rank(p Pair) (int, bool)
}

// RankTable maps a merge rule to its index in the merge list.
type RankTable map[Pair]int

// Rank implements Ranker.
func (t RankTable) Rank(p Pair) (int, bool) {
	r, ok := t[p]
	return r, ok
}

// NewRankTable indexes merges by position.
func NewRankTable(merges []Pair) RankTable {
	t := make(RankTable, len(merges))
	for i, m := range merges {
		if _, ok := t[m]; !ok {
			t[m] = i
		}
	}
	return t
}

// span is a symbol of the word being merged, stored as a byte range of the
// raw token so merging never allocates new strings.
type span struct {
	start, end int
}

// Merger applies byte-pair merges to a single raw BPE token.
//
// A Merger holds no mutable state besides a pool of scratch buffers and is
// safe for concurrent use.
type Merger struct {
	ranks Ranker
	words sync.Pool
}

// NewMerger creates a merger over the given ranks.
func NewMerger(ranks Ranker) *Merger {
	return &Merger{
		ranks: ranks,
		words: sync.Pool{New: func() any { b := make([]span, 0, 32); return &b }},
	}
}

// Merge returns the final symbols of token joined by a single space.
//
// Every pass finds the leftmost adjacent pair with the lowest rank and merges
// all non-overlapping occurrences of it, left to right. Merging stops once no
// adjacent pair is a merge rule or a single symbol remains. Each pass removes
// at least one symbol, so the loop runs at most len(word)-1 times.
func (m *Merger) Merge(token string) string {
	if utf8.RuneCountInString(token) < 2 {
		return token
	}

	buf := m.words.Get().(*[]span)
	word := (*buf)[:0]
	for i := 0; i < len(token); {
		_, size := utf8.DecodeRuneInString(token[i:])
		word = append(word, span{i, i + size})
		i += size
	}

	sym := func(s span) string { return token[s.start:s.end] }

	for len(word) > 1 {
		best, bestRank := -1, noRank
		for i := 0; i < len(word)-1; i++ {
			r, ok := m.ranks.Rank(Pair{sym(word[i]), sym(word[i+1])})
			if ok && r < bestRank {
				best, bestRank = i, r
			}
		}
		if best < 0 {
			break
		}

		first, second := sym(word[best]), sym(word[best+1])

		// Rebuild in place; the write index never passes the read index.
		w := 0
		for r := 0; r < len(word); {
			if r+1 < len(word) && sym(word[r]) == first && sym(word[r+1]) == second {
				word[w] = span{word[r].start, word[r+1].end}
				r += 2
			} else {
				word[w] = word[r]
				r++
			}
			w++
		}
		word = word[:w]
	}

	var sb strings.Builder
	sb.Grow(len(token) + len(word) - 1)
	for i, s := range word {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(sym(s))
	}

	*buf = word[:0]
	if cap(*buf) <= 1<<12 {
		m.words.Put(buf)
	}

	return sb.String()
}

// Symbols splits a merge result back into its symbols.
func Symbols(merged string) []string {
	return strings.Split(merged, " ")
}
