package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEncoding(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "gpt2", want: "r50k_base"},
		{name: "r50k_base", want: "r50k_base"},
		{name: "p50k_base", want: "p50k_base"},
		{name: "p50k_edit", want: "p50k_edit"},
		{name: "davinci", want: "r50k_base"},
		{name: "text-davinci-003", want: "p50k_base"},
		{name: "code-davinci-edit-001", want: "p50k_edit"},
		{name: "gpt-4", wantErr: true},
		{name: "cl100k_base", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveEncoding(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitByRank(t *testing.T) {
	ranks := map[string]int{"a": 0, "b": 1, "c": 2, "ab": 3, "abc": 4, "bc": 5}

	assert.Equal(t, []string{"a", "b"}, splitByRank("ab", ranks, 3))
	assert.Equal(t, []string{"ab", "c"}, splitByRank("abc", ranks, 4))
	assert.Equal(t, []string{"abc"}, splitByRank("abc", ranks, 99))
	assert.Equal(t, []string{"a", "b", "c"}, splitByRank("abc", ranks, 0))
}

func TestVocabularyFromRanks(t *testing.T) {
	ranks := map[string]int{"a": 0, "b": 1, " ": 2, "ab": 3, " ab": 4}

	v, err := vocabularyFromRanks(ranks, map[string]int32{EndOfText: 5})
	require.NoError(t, err)
	assert.Equal(t, 6, v.Size())
	assert.Equal(t, []Pair{{"a", "b"}, {"Ġ", "ab"}}, v.Merges())

	id, ok := v.ID("Ġab")
	require.True(t, ok)
	assert.Equal(t, int32(4), id)

	enc, err := NewEncoder(v, DefaultConfig())
	require.NoError(t, err)
	ids, err := enc.Encode("ab ab")
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4}, ids)
}

func TestVocabularyFromRanks_Unmergeable(t *testing.T) {
	// "abc" cannot be built from two lower-ranked tokens.
	ranks := map[string]int{"a": 0, "b": 1, "c": 2, "abc": 3}

	_, err := vocabularyFromRanks(ranks, nil)
	assert.Error(t, err)
}

func TestTiktokenProvider_UnknownEncoding(t *testing.T) {
	_, err := TiktokenProvider{Encoding: "o200k_base"}.LoadVocabulary()
	assert.Error(t, err)
}

func TestTiktokenProvider_GPT2(t *testing.T) {
	enc := newGPT2Encoder(t)

	assert.Equal(t, 50257, enc.VocabSize())
	assert.Equal(t, int32(50256), enc.EosToken())
	assert.True(t, enc.IsSpecialToken(50256))

	v, err := enc.Vocabulary()
	require.NoError(t, err)
	assert.Equal(t, 50000, v.NumMerges())
	assert.Equal(t, Pair{"Ġ", "t"}, v.Merges()[0])
}

func TestEncoder_ReferenceVectors(t *testing.T) {
	enc := newGPT2Encoder(t)

	tests := []struct {
		text string
		want []int32
	}{
		{"Hello world", []int32{15496, 995}},
		{"hello world", []int32{31373, 995}},
		{"!", []int32{0}},
		{"", []int32{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := enc.Encode(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncoder_GPT2SingleBytes(t *testing.T) {
	enc := newGPT2Encoder(t)

	for b := 0; b < 256; b++ {
		text := string([]byte{byte(b)})
		ids, err := enc.Encode(text)
		require.NoError(t, err)
		require.Len(t, ids, 1, "byte %d", b)

		got, err := enc.Decode(ids)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	}
}

func TestEncoder_MatchesTikToken(t *testing.T) {
	texts := []string{
		"Hello world",
		"The quick brown fox jumps over the lazy dog.",
		"I'm sure they'll say it's fine, won't they? We've done it, I'd say.",
		"    indented code\n\tfunc main() {\n\t\treturn 42\n\t}\n",
		"naïve café résumé Zürich",
		"数据科学 and 機械学習",
		"emoji 🙂🙃 and family 👨‍👩‍👧",
		"numbers: 3.14159, 1,000,000 and 2024-10-17",
		"trailing spaces   ",
		"\n\n\nmultiple\n\n newlines \r\n",
		"<|endoftext|> stays plain text",
	}

	for _, encoding := range []string{EncodingGPT2, encodingP50kBase} {
		t.Run(encoding, func(t *testing.T) {
			if testing.Short() {
				t.Skip("skipping vocabulary derivation in short mode")
			}

			var enc *Encoder
			if encoding == EncodingGPT2 {
				enc = newGPT2Encoder(t)
			} else {
				var err error
				enc, err = NewEncoderFromProvider(TiktokenProvider{Encoding: encoding}, DefaultConfig())
				require.NoError(t, err)
			}

			ref, err := NewTikToken(encoding)
			require.NoError(t, err)

			for _, text := range texts {
				want, err := ref.Encode(text)
				require.NoError(t, err)
				got, err := enc.Encode(text)
				require.NoError(t, err)
				assert.Equal(t, want, got, "text %q", text)

				decoded, err := enc.Decode(got)
				require.NoError(t, err)
				assert.Equal(t, text, decoded)
			}
		})
	}
}

func TestTikToken_NewTikToken(t *testing.T) {
	tests := []struct {
		name              string
		encoding          string
		wantName          string
		wantErr           bool
		expectedVocabSize int
	}{
		{
			name:              "gpt2",
			encoding:          "gpt2",
			wantName:          "r50k_base",
			expectedVocabSize: 50257,
		},
		{
			name:              "p50k_base",
			encoding:          "p50k_base",
			wantName:          "p50k_base",
			expectedVocabSize: 50281,
		},
		{
			name:              "p50k_edit",
			encoding:          "p50k_edit",
			wantName:          "p50k_edit",
			expectedVocabSize: 50284,
		},
		{
			name:     "cl100k_base",
			encoding: "cl100k_base",
			wantErr:  true,
		},
		{
			name:     "invalid encoding",
			encoding: "invalid_encoding_xyz",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewTikToken(tt.encoding)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, tok)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, tok)
			assert.Equal(t, tt.expectedVocabSize, tok.VocabSize())
			assert.Equal(t, tt.wantName, tok.Name())
		})
	}
}

func TestTikToken_SpecialTokens(t *testing.T) {
	tok, err := NewTikToken("p50k_edit")
	require.NoError(t, err)

	assert.Equal(t, int32(50256), tok.EosToken())
	assert.Equal(t, int32(50256), tok.BosToken())
	assert.Equal(t, int32(-1), tok.PadToken())
	assert.Equal(t, int32(-1), tok.UnkToken())
	assert.True(t, tok.IsSpecialToken(50256))
	assert.True(t, tok.IsSpecialToken(50282))
	assert.False(t, tok.IsSpecialToken(15496))
}

func TestTikToken_Roundtrip(t *testing.T) {
	tok, err := NewTikToken("gpt2")
	require.NoError(t, err)

	for _, text := range []string{"", "Hello world", "日本語のテキスト"} {
		ids, err := tok.Encode(text)
		require.NoError(t, err)
		got, err := tok.Decode(ids)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	}
}
