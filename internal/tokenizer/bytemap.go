package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// ByteMap is the fixed GPT-2 bijection between raw byte values and printable
// unicode code points.
//
// Printable bytes (33-126, 161-172, 174-255) map to themselves. The remaining
// 68 bytes map to 256, 257, ... in ascending byte order, so every byte sequence
// has a representation made only of visible runes that can live in JSON.
type ByteMap struct {
	encode [256]rune
	decode map[rune]byte
}

var byteMapOnce = sync.OnceValue(buildByteMap)

// ByteUnicodeMap returns the process-wide byte to rune table.
//
// The table is built on first use and never mutated afterwards, so the
// returned value is safe for concurrent readers.
func ByteUnicodeMap() *ByteMap {
	return byteMapOnce()
}

func buildByteMap() *ByteMap {
	m := &ByteMap{decode: make(map[rune]byte, 256)}

	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}

	next := rune(256)
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !printable(b) {
			r = next
			next++
		}
		m.encode[b] = r
		m.decode[r] = byte(b)
	}

	return m
}

// Rune returns the code point standing in for b.
func (m *ByteMap) Rune(b byte) rune {
	return m.encode[b]
}

// Byte returns the raw byte represented by r.
func (m *ByteMap) Byte(r rune) (byte, bool) {
	b, ok := m.decode[r]
	return b, ok
}

// EncodeString translates every byte of s into its stand-in rune.
//
// The input does not need to be valid UTF-8: each byte is remapped on its own.
func (m *ByteMap) EncodeString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		sb.WriteRune(m.encode[s[i]])
	}
	return sb.String()
}

// DecodeString reverses EncodeString.
func (m *ByteMap) DecodeString(s string) ([]byte, error) {
	return m.AppendDecoded(make([]byte, 0, len(s)), s)
}

// AppendDecoded appends the raw bytes of the byte-level string s to dst.
func (m *ByteMap) AppendDecoded(dst []byte, s string) ([]byte, error) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		b, ok := m.decode[r]
		if !ok {
			return dst, fmt.Errorf("rune %q at offset %d is not a byte stand-in", r, i)
		}
		dst = append(dst, b)
		i += size
	}
	return dst, nil
}
