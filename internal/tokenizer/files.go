package tokenizer

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// Default file names of the original GPT-2 release.
const (
	EncoderFile = "encoder.json"
	MergesFile  = "vocab.bpe"
)

// FileProvider loads the encoder.json / vocab.bpe pair published with GPT-2.
type FileProvider struct {
	FS fs.FS

	// EncoderFile and MergesFile are paths within FS. Empty values select
	// the package defaults.
	EncoderFile string
	MergesFile  string
}

// LoadVocabulary implements VocabularyProvider.
func (p FileProvider) LoadVocabulary() (*Vocabulary, error) {
	if p.FS == nil {
		return nil, fmt.Errorf("file provider has no filesystem")
	}
	encoderFile := cmp.Or(p.EncoderFile, EncoderFile)
	mergesFile := cmp.Or(p.MergesFile, MergesFile)

	tokens, err := parseFile(p.FS, encoderFile, ParseEncoderJSON)
	if err != nil {
		return nil, err
	}
	merges, err := parseFile(p.FS, mergesFile, ParseMerges)
	if err != nil {
		return nil, err
	}

	return NewVocabulary(tokens, merges)
}

func parseFile[T any](fsys fs.FS, name string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := fsys.Open(name)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return v, nil
}

// ParseEncoderJSON reads a JSON object mapping tokens to ids.
func ParseEncoderJSON(r io.Reader) (map[string]int32, error) {
	var tokens map[string]int32
	if err := json.NewDecoder(r).Decode(&tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// ParseMerges reads merge rules in vocab.bpe format: a version header line,
// then one "left right" pair per line in priority order. Blank lines are
// ignored.
func ParseMerges(r io.Reader) ([]Pair, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var merges []Pair
	for n := 0; sc.Scan(); n++ {
		if n == 0 {
			continue
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := parseMergeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		merges = append(merges, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return merges, nil
}

func parseMergeLine(line string) (Pair, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Pair{}, fmt.Errorf("merge rule %q must have exactly two fields, got %d", line, len(fields))
	}
	return Pair{Left: fields[0], Right: fields[1]}, nil
}
