package tokenizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokenizerJSON(t *testing.T, dir string, config map[string]interface{}) string {
	t.Helper()
	path := filepath.Join(dir, HFTokenizerFile)

	data, err := json.Marshal(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func gpt2StyleTokenizerJSON(merges interface{}) map[string]interface{} {
	return map[string]interface{}{
		"model": map[string]interface{}{
			"type": "BPE",
			"vocab": map[string]int{
				"h":  0,
				"e":  1,
				"Ġ":  2,
				"he": 3,
				"Ġh": 4,
			},
			"merges": merges,
		},
		"pre_tokenizer": map[string]interface{}{"type": "ByteLevel"},
		"added_tokens": []map[string]interface{}{
			{"id": 5, "content": "<|endoftext|>", "special": true},
		},
	}
}

func TestDetectHFTokenizerType(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTokenizerJSON(t, tmpDir, gpt2StyleTokenizerJSON([]string{"h e", "Ġ h"}))

	for _, p := range []string{path, tmpDir} {
		metadata, err := DetectHFTokenizerType(p)
		require.NoError(t, err)
		assert.Equal(t, HFTypeBPE, metadata.Type)
		assert.Equal(t, "BPE", metadata.TokenizerType)
		assert.Equal(t, 5, metadata.VocabSize)
		assert.Equal(t, 2, metadata.NumMerges)
		assert.True(t, metadata.ByteLevel)
		assert.True(t, metadata.HasEndOfText)
	}
}

func TestDetectHFTokenizerType_WordPiece(t *testing.T) {
	path := writeTokenizerJSON(t, t.TempDir(), map[string]interface{}{
		"model": map[string]interface{}{
			"type": "WordPiece",
			"vocab": map[string]int{
				"[CLS]": 0,
				"[SEP]": 1,
			},
		},
	})

	metadata, err := DetectHFTokenizerType(path)
	require.NoError(t, err)
	assert.Equal(t, HFTypeWordPiece, metadata.Type)
	assert.False(t, metadata.ByteLevel)
	assert.False(t, metadata.HasEndOfText)
}

func TestDetectHFTokenizerType_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), HFTokenizerFile)
	require.NoError(t, os.WriteFile(path, []byte("invalid json"), 0o600))

	_, err := DetectHFTokenizerType(path)
	assert.Error(t, err)
}

func TestDetectHFTokenizerType_FileNotFound(t *testing.T) {
	_, err := DetectHFTokenizerType("/nonexistent/tokenizer.json")
	assert.Error(t, err)
}

func TestHuggingFaceProvider(t *testing.T) {
	tests := []struct {
		name   string
		merges interface{}
	}{
		{"string merges", []string{"h e", "Ġ h"}},
		{"array merges", [][]string{{"h", "e"}, {"Ġ", "h"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTokenizerJSON(t, t.TempDir(), gpt2StyleTokenizerJSON(tt.merges))

			v, err := HuggingFaceProvider{Path: path}.LoadVocabulary()
			require.NoError(t, err)
			assert.Equal(t, 6, v.Size())
			assert.Equal(t, []Pair{{"h", "e"}, {"Ġ", "h"}}, v.Merges())

			id, ok := v.ID(EndOfText)
			require.True(t, ok)
			assert.Equal(t, int32(5), id)
		})
	}
}

func TestHuggingFaceProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
	}{
		{
			name: "wordpiece",
			config: map[string]interface{}{
				"model": map[string]interface{}{"type": "WordPiece", "vocab": map[string]int{"a": 0}},
			},
		},
		{
			name:   "merge with three parts",
			config: gpt2StyleTokenizerJSON([][]string{{"h", "e", "x"}}),
		},
		{
			name:   "merge of wrong type",
			config: gpt2StyleTokenizerJSON([]int{1, 2}),
		},
		{
			name: "added token id conflict",
			config: map[string]interface{}{
				"model":         map[string]interface{}{"type": "BPE", "vocab": map[string]int{"<|endoftext|>": 0}},
				"pre_tokenizer": map[string]interface{}{"type": "ByteLevel"},
				"added_tokens": []map[string]interface{}{
					{"id": 7, "content": "<|endoftext|>", "special": true},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTokenizerJSON(t, t.TempDir(), tt.config)
			_, err := HuggingFaceProvider{Path: path}.LoadVocabulary()
			assert.Error(t, err)
		})
	}
}

func TestHuggingFaceProvider_RejectsOtherPreTokenizers(t *testing.T) {
	tests := []struct {
		name         string
		preTokenizer interface{}
		wantErr      string
	}{
		{
			name:         "metaspace",
			preTokenizer: map[string]interface{}{"type": "Metaspace", "replacement": "▁"},
			wantErr:      `"Metaspace"`,
		},
		{
			name: "split sequence",
			preTokenizer: map[string]interface{}{
				"type": "Sequence",
				"pretokenizers": []map[string]interface{}{
					{"type": "Split"},
					{"type": "ByteLevel"},
				},
			},
			wantErr: `"Sequence"`,
		},
		{
			name:         "missing",
			preTokenizer: nil,
			wantErr:      `"none"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := gpt2StyleTokenizerJSON([]string{"h e", "Ġ h"})
			config["pre_tokenizer"] = tt.preTokenizer
			path := writeTokenizerJSON(t, t.TempDir(), config)

			metadata, err := DetectHFTokenizerType(path)
			require.NoError(t, err)
			assert.Equal(t, HFTypeBPE, metadata.Type)
			assert.False(t, metadata.ByteLevel)

			v, err := HuggingFaceProvider{Path: path}.LoadVocabulary()
			require.Error(t, err)
			assert.Nil(t, v)
			assert.Contains(t, err.Error(), "pre-tokenizer")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetectProvider(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	write("openai/encoder.json", "{}")
	write("openai/vocab.bpe", "#version: 0.2\n")
	write("hf-merges/encoder.json", "{}")
	write("hf-merges/merges.txt", "#version: 0.2\n")
	write("hf/tokenizer.json", "{}")
	write("empty/readme.md", "")
	write("model.gguf", "")
	write("custom.json", "{}")
	write("notes.txt", "")

	tests := []struct {
		name    string
		input   string
		want    VocabularyProvider
		wantErr bool
	}{
		{name: "openai directory", input: filepath.Join(root, "openai"), want: FileProvider{}},
		{name: "merges.txt directory", input: filepath.Join(root, "hf-merges"), want: FileProvider{}},
		{name: "tokenizer.json directory", input: filepath.Join(root, "hf"), want: HuggingFaceProvider{Path: filepath.Join(root, "hf")}},
		{name: "json file", input: filepath.Join(root, "custom.json"), want: HuggingFaceProvider{Path: filepath.Join(root, "custom.json")}},
		{name: "gguf file", input: filepath.Join(root, "model.gguf"), want: GGUFProvider{Path: filepath.Join(root, "model.gguf")}},
		{name: "encoding name", input: "gpt2", want: TiktokenProvider{Encoding: "gpt2"}},
		{name: "model name", input: "text-davinci-003", want: TiktokenProvider{Encoding: "text-davinci-003"}},
		{name: "empty directory", input: filepath.Join(root, "empty"), wantErr: true},
		{name: "unknown file type", input: filepath.Join(root, "notes.txt"), wantErr: true},
		{name: "unknown name", input: "no-such-vocabulary", wantErr: true},
		{name: "other tiktoken encoding", input: "cl100k_base", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectProvider(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			if fp, ok := got.(FileProvider); ok {
				assert.NotNil(t, fp.FS)
				assert.Contains(t, []string{MergesFile, "merges.txt"}, fp.MergesFile)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
