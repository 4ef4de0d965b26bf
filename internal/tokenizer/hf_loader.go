package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HFTokenizerType identifies the tokenizer implementation type.
type HFTokenizerType string

const (
	// HFTypeBPE indicates Byte-Pair Encoding tokenizer.
	HFTypeBPE HFTokenizerType = "BPE"

	// HFTypeWordPiece indicates WordPiece tokenizer (BERT-style).
	HFTypeWordPiece HFTokenizerType = "WordPiece"

	// HFTypeUnigram indicates Unigram tokenizer (SentencePiece-style).
	HFTypeUnigram HFTokenizerType = "Unigram"

	// HFTypeUnknown indicates an unknown or unsupported tokenizer type.
	HFTypeUnknown HFTokenizerType = "Unknown"
)

// HFTokenizerFile is the file name HuggingFace uses inside model directories.
const HFTokenizerFile = "tokenizer.json"

// HFTokenizerMetadata contains metadata from tokenizer.json.
type HFTokenizerMetadata struct {
	Type          HFTokenizerType
	VocabSize     int
	NumMerges     int
	ByteLevel     bool
	HasEndOfText  bool
	TokenizerType string
}

// hfTokenizerJSON is the subset of tokenizer.json read by this package.
type hfTokenizerJSON struct {
	Model struct {
		Type   string            `json:"type"`
		Vocab  map[string]int32  `json:"vocab"`
		Merges []json.RawMessage `json:"merges"`
	} `json:"model"`
	PreTokenizer *struct {
		Type string `json:"type"`
	} `json:"pre_tokenizer"`
	AddedTokens []struct {
		ID      int32  `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

func readHFTokenizer(path string) (*hfTokenizerJSON, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, HFTokenizerFile)
	}

	//nolint:gosec // Loading tokenizer from user-specified path is intentional.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var raw hfTokenizerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}
	return &raw, nil
}

// DetectHFTokenizerType determines the tokenizer type from tokenizer.json.
// path may be the file itself or the model directory containing it.
func DetectHFTokenizerType(path string) (*HFTokenizerMetadata, error) {
	raw, err := readHFTokenizer(path)
	if err != nil {
		return nil, err
	}
	return raw.metadata(), nil
}

func (raw *hfTokenizerJSON) metadata() *HFTokenizerMetadata {
	metadata := &HFTokenizerMetadata{
		Type:          HFTypeUnknown,
		TokenizerType: raw.Model.Type,
		VocabSize:     len(raw.Model.Vocab),
		NumMerges:     len(raw.Model.Merges),
		ByteLevel:     raw.PreTokenizer != nil && raw.PreTokenizer.Type == "ByteLevel",
	}

	switch raw.Model.Type {
	case "BPE":
		metadata.Type = HFTypeBPE
	case "WordPiece":
		metadata.Type = HFTypeWordPiece
	case "Unigram":
		metadata.Type = HFTypeUnigram
	}

	if _, ok := raw.Model.Vocab[EndOfText]; ok {
		metadata.HasEndOfText = true
	}
	for _, tok := range raw.AddedTokens {
		if tok.Content == EndOfText {
			metadata.HasEndOfText = true
		}
	}

	return metadata
}

// HuggingFaceProvider loads a byte-level BPE vocabulary from a HuggingFace
// tokenizer.json, as published for gpt2 and its derivatives. Files whose
// pre_tokenizer is not a plain ByteLevel are rejected.
type HuggingFaceProvider struct {
	// Path is tokenizer.json or a directory containing it.
	Path string
}

// LoadVocabulary implements VocabularyProvider.
func (p HuggingFaceProvider) LoadVocabulary() (*Vocabulary, error) {
	raw, err := readHFTokenizer(p.Path)
	if err != nil {
		return nil, err
	}

	metadata := raw.metadata()
	if metadata.Type != HFTypeBPE {
		return nil, fmt.Errorf("unsupported tokenizer type %q: only BPE is supported", metadata.TokenizerType)
	}
	// Metaspace (SentencePiece) and Split-based pre-tokenizers need their
	// own patterns and byte handling.
	if !metadata.ByteLevel {
		pre := "none"
		if raw.PreTokenizer != nil {
			pre = raw.PreTokenizer.Type
		}
		return nil, fmt.Errorf("unsupported pre-tokenizer %q: only ByteLevel is supported", pre)
	}

	tokens := make(map[string]int32, len(raw.Model.Vocab)+len(raw.AddedTokens))
	for tok, id := range raw.Model.Vocab {
		tokens[tok] = id
	}
	for _, added := range raw.AddedTokens {
		if id, ok := tokens[added.Content]; ok && id != added.ID {
			return nil, fmt.Errorf("added token %q has id %d but the vocabulary maps it to %d", added.Content, added.ID, id)
		}
		tokens[added.Content] = added.ID
	}

	merges := make([]Pair, 0, len(raw.Model.Merges))
	for i, m := range raw.Model.Merges {
		p, err := parseHFMerge(m)
		if err != nil {
			return nil, fmt.Errorf("merge %d: %w", i, err)
		}
		merges = append(merges, p)
	}

	return NewVocabulary(tokens, merges)
}

// parseHFMerge accepts both merge encodings found in tokenizer.json: the
// legacy "left right" string and the ["left", "right"] array.
func parseHFMerge(m json.RawMessage) (Pair, error) {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return parseMergeLine(s)
	}

	var parts []string
	if err := json.Unmarshal(m, &parts); err != nil {
		return Pair{}, fmt.Errorf("merge %s is neither a string nor an array of strings", m)
	}
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("merge %s must have exactly two parts, got %d", m, len(parts))
	}
	return Pair{Left: parts[0], Right: parts[1]}, nil
}

// DetectProvider picks a VocabularyProvider for pathOrName.
//
// It tries, in order:
//  1. A directory with encoder.json and vocab.bpe (or merges.txt)
//  2. A tokenizer.json file, or a directory containing one
//  3. A .gguf model file
//  4. A tiktoken encoding or model name
func DetectProvider(pathOrName string) (VocabularyProvider, error) {
	info, statErr := os.Stat(pathOrName)
	if statErr == nil && info.IsDir() {
		if exists(filepath.Join(pathOrName, EncoderFile)) {
			for _, merges := range []string{MergesFile, "merges.txt"} {
				if exists(filepath.Join(pathOrName, merges)) {
					return FileProvider{FS: os.DirFS(pathOrName), MergesFile: merges}, nil
				}
			}
		}
		if exists(filepath.Join(pathOrName, HFTokenizerFile)) {
			return HuggingFaceProvider{Path: pathOrName}, nil
		}
		return nil, fmt.Errorf("directory %q contains no encoder.json/vocab.bpe or tokenizer.json", pathOrName)
	}

	if statErr == nil {
		switch strings.ToLower(filepath.Ext(pathOrName)) {
		case ".json":
			return HuggingFaceProvider{Path: pathOrName}, nil
		case ".gguf":
			return GGUFProvider{Path: pathOrName}, nil
		}
		return nil, fmt.Errorf("unrecognized vocabulary file %q", pathOrName)
	}

	if _, err := ResolveEncoding(pathOrName); err != nil {
		return nil, fmt.Errorf("failed to find vocabulary %q: %w", pathOrName, errors.Join(statErr, err))
	}
	return TiktokenProvider{Encoding: pathOrName}, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
