package api

import "github.com/pkg/errors"

// Error kinds surfaced by the pipeline. Callers match with errors.Is; the
// concrete errors returned by components wrap these with context.
var (
	// ErrMissingUnkToken reports that a model needed its unknown token but
	// the token is not part of the vocabulary.
	ErrMissingUnkToken = errors.New("missing unknown token from the vocabulary")

	// ErrInvalidInput reports malformed caller input, like an out-of-range
	// offset or an empty required field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVocabLoad reports a malformed vocab or merges file.
	ErrVocabLoad = errors.New("vocabulary load failed")

	// ErrSerialization reports an unknown version, unknown variant tag or
	// schema mismatch while (de)serializing a tokenizer.
	ErrSerialization = errors.New("serialization failed")

	// ErrTruncation reports truncation parameters that cannot be satisfied,
	// like a budget smaller than the required special tokens.
	ErrTruncation = errors.New("truncation failed")
)
