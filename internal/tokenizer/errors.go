package tokenizer

import (
	"errors"
	"fmt"
)

var (
	// ErrVocabularyLoad is returned by every operation of an encoder whose
	// vocabulary could not be loaded. Loading is never retried.
	ErrVocabularyLoad = errors.New("vocabulary load failed")

	// ErrVocabularyMismatch signals that BPE produced a symbol the vocabulary
	// does not contain, i.e. the token table and merge rules are out of sync.
	ErrVocabularyMismatch = errors.New("vocabulary and merge rules are out of sync")

	// ErrUnknownTokenID is returned by Decode for ids outside the vocabulary.
	ErrUnknownTokenID = errors.New("unknown token id")
)

// MissingTokenError reports a merged symbol with no vocabulary entry.
type MissingTokenError struct {
	Symbol string // byte-level symbol that was looked up
	Piece  string // pre-tokenized text the symbol came from
}

func (e *MissingTokenError) Error() string {
	return fmt.Sprintf("symbol %q from piece %q is not in the vocabulary", e.Symbol, e.Piece)
}

// Unwrap makes errors.Is(err, ErrVocabularyMismatch) hold.
func (e *MissingTokenError) Unwrap() error {
	return ErrVocabularyMismatch
}
