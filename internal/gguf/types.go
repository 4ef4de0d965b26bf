// Package gguf reads the header and metadata of GGUF files.
//
// GGUF (GGML Universal Format) is the file format used by llama.cpp. Model
// files embed their tokenizer in the metadata section, which is all this
// package decodes; tensor descriptors and tensor data are never read.
//
// Specification: https://github.com/ggerganov/ggml/blob/master/docs/gguf.md
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic bytes for GGUF format.
const (
	MagicGGUFLE uint32 = 0x46554747 // "GGUF" little-endian.
	MagicGGUFBE uint32 = 0x47475546 // "GGUF" big-endian (reversed).
)

// Version constants.
const (
	Version1 uint32 = 1
	Version2 uint32 = 2
	Version3 uint32 = 3 // Current version.
)

// Tokenizer metadata keys written by llama.cpp converters.
const (
	KeyArchitecture    = "general.architecture"
	KeyName            = "general.name"
	KeyTokenizerModel  = "tokenizer.ggml.model"
	KeyTokenizerPre    = "tokenizer.ggml.pre"
	KeyTokens          = "tokenizer.ggml.tokens"
	KeyTokenTypes      = "tokenizer.ggml.token_type"
	KeyMerges          = "tokenizer.ggml.merges"
	KeyBOSTokenID      = "tokenizer.ggml.bos_token_id"
	KeyEOSTokenID      = "tokenizer.ggml.eos_token_id"
	KeyPaddingTokenID  = "tokenizer.ggml.padding_token_id"
	KeyUnknownTokenID  = "tokenizer.ggml.unknown_token_id"
	TokenizerModelGPT2 = "gpt2"
)

// Pre-tokenizer names written to KeyTokenizerPre that select the GPT-2
// pattern in llama.cpp.
const (
	TokenizerPreGPT2    = "gpt-2"
	TokenizerPreDefault = "default"
)

// ValueType represents the type of a metadata value.
type ValueType uint32

// Metadata value types as defined in GGUF specification.
const (
	ValueTypeUint8   ValueType = 0
	ValueTypeInt8    ValueType = 1
	ValueTypeUint16  ValueType = 2
	ValueTypeInt16   ValueType = 3
	ValueTypeUint32  ValueType = 4
	ValueTypeInt32   ValueType = 5
	ValueTypeFloat32 ValueType = 6
	ValueTypeBool    ValueType = 7
	ValueTypeString  ValueType = 8
	ValueTypeArray   ValueType = 9
	ValueTypeUint64  ValueType = 10
	ValueTypeInt64   ValueType = 11
	ValueTypeFloat64 ValueType = 12
)

var valueTypeNames = map[ValueType]string{
	ValueTypeUint8:   "uint8",
	ValueTypeInt8:    "int8",
	ValueTypeUint16:  "uint16",
	ValueTypeInt16:   "int16",
	ValueTypeUint32:  "uint32",
	ValueTypeInt32:   "int32",
	ValueTypeFloat32: "float32",
	ValueTypeBool:    "bool",
	ValueTypeString:  "string",
	ValueTypeArray:   "array",
	ValueTypeUint64:  "uint64",
	ValueTypeInt64:   "int64",
	ValueTypeFloat64: "float64",
}

// String returns the string representation of the value type.
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", t)
}

// Header represents the GGUF file header.
type Header struct {
	Magic           uint32
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
}

// MetadataKV represents a key-value pair in the metadata.
type MetadataKV struct {
	Key       string
	ValueType ValueType
	Value     any
}

// File holds the header and metadata of a GGUF file.
type File struct {
	Header   Header
	Metadata map[string]any

	// Source info.
	FilePath string
}

// Architecture returns the model architecture (e.g., "llama", "gpt2").
func (f *File) Architecture() string {
	s, _ := f.String(KeyArchitecture)
	return s
}

// Name returns the model name.
func (f *File) Name() string {
	s, _ := f.String(KeyName)
	return s
}

// TokenizerModel returns the tokenizer family, e.g. "gpt2" or "llama".
func (f *File) TokenizerModel() string {
	s, _ := f.String(KeyTokenizerModel)
	return s
}

// String returns a string metadata value.
func (f *File) String(key string) (string, bool) {
	s, ok := f.Metadata[key].(string)
	return s, ok
}

// Strings returns a string array metadata value.
func (f *File) Strings(key string) ([]string, bool) {
	s, ok := f.Metadata[key].([]string)
	return s, ok
}

// Int returns an integer metadata value of any width. Values that do not fit
// in an int64 are reported as missing.
func (f *File) Int(key string) (int64, bool) {
	switch v := f.Metadata[key].(type) {
	case uint8:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v > 1<<63-1 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

// VocabSize returns the vocabulary size.
func (f *File) VocabSize() int {
	tokens, _ := f.Strings(KeyTokens)
	return len(tokens)
}

// readString reads a GGUF string (length-prefixed, NOT null-terminated).
func readString(r io.Reader, order binary.ByteOrder) (string, error) {
	var length uint64
	if err := binary.Read(r, order, &length); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}

	// Sanity check: limit string length to 1MB.
	if length > 1<<20 {
		return "", fmt.Errorf("string too long: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("read string data: %w", err)
	}

	return string(data), nil
}
