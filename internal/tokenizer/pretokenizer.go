package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// DefaultPattern is the GPT-2/GPT-3 pre-tokenization pattern.
//
// Alternatives are tried in order at each position: English contractions,
// letter runs, digit runs and symbol runs (each with an optional leading
// space), whitespace not followed by non-whitespace, then any whitespace.
// \p{L} and \p{N} use full Unicode classification.
const DefaultPattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// PreTokenizer splits text into the coarse lexical pieces BPE runs inside.
//
// The lookahead in DefaultPattern is not supported by the standard library
// regexp package, so the pattern is compiled with regexp2 using its default
// syntax (RE2 mode would narrow \s to ASCII).
type PreTokenizer struct {
	re *regexp2.Regexp
}

// NewPreTokenizer compiles pattern. An empty pattern selects DefaultPattern.
func NewPreTokenizer(pattern string) (*PreTokenizer, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pre-tokenizer pattern %q: %w", pattern, err)
	}

	return &PreTokenizer{re: re}, nil
}

// Split returns the ordered pieces of text. Concatenating the pieces always
// yields text exactly, including any invalid UTF-8 bytes it contains.
func (p *PreTokenizer) Split(text string) ([]string, error) {
	if text == "" {
		return []string{}, nil
	}

	// offsets[i] is the byte offset of rune i; invalid bytes decode as
	// utf8.RuneError of width 1, so every byte belongs to exactly one rune.
	runes := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		runes = append(runes, r)
		offsets = append(offsets, i)
		i += size
	}
	offsets = append(offsets, len(text))

	pieces := make([]string, 0, len(runes)/3+1)
	var last int

	m, err := p.re.FindRunesMatch(runes)
	for ; m != nil; m, err = p.re.FindNextMatch(m) {
		if m.Length == 0 {
			continue
		}
		if m.Index > last {
			// Gap between matches; cannot happen with DefaultPattern but a
			// custom pattern must not drop input.
			pieces = append(pieces, text[offsets[last]:offsets[m.Index]])
		}
		end := m.Index + m.Length
		pieces = append(pieces, text[offsets[m.Index]:offsets[end]])
		last = end
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pre-tokenize text: %w", err)
	}

	if last < len(runes) {
		pieces = append(pieces, text[offsets[last]:])
	}

	return pieces, nil
}
