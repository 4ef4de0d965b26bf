// Package tokenizer implements the byte-level BPE tokenizer of GPT-2 and
// GPT-3.
//
// Encoding runs in four stages:
//   - PreTokenizer splits text into pieces (words, numbers, punctuation runs,
//     whitespace) with the GPT-2 regular expression.
//   - ByteMap rewrites every byte of a piece as a printable rune.
//   - Merger applies the vocabulary's merge rules to the rewritten piece.
//     Results are memoized in a TokenCache.
//   - Vocabulary maps the final symbols to token ids.
//
// Vocabularies come from a VocabularyProvider: the GPT-2 encoder.json and
// vocab.bpe files, a HuggingFace tokenizer.json, a GGUF model, or the
// tiktoken ranks bundled with github.com/pkoukk/tiktoken-go-loader.
//
// Example usage:
//
//	enc, err := NewEncoderFromProvider(TiktokenProvider{Encoding: "gpt2"}, DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Encode text
//	ids, err := enc.Encode("Hello world") // [15496 995]
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decode tokens
//	text, err := enc.Decode(ids)
//	if err != nil {
//	    log.Fatal(err)
//	}
package tokenizer
