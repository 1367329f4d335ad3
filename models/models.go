// Package models defines the Model contract shared by the tokenization
// algorithms and the tagged serialization over the closed set of variants
// (BPE, WordPiece, WordLevel).
package models

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/models/bpe"
	"github.com/sebpuetz/tokenizers/models/wordlevel"
	"github.com/sebpuetz/tokenizers/models/wordpiece"
)

// Model turns pre-tokens into tokens and owns the vocabulary.
type Model interface {
	// Tokenize converts the pre-tokens of one sequence into tokens.
	Tokenize(preTokens []api.PreToken) ([]api.Token, error)
	// TokenToID returns the id of a token in the vocabulary.
	TokenToID(token string) (uint32, bool)
	// IDToToken returns the token string for an id.
	IDToToken(id uint32) (string, bool)
	// GetVocab returns the token -> id mapping.
	GetVocab() map[string]uint32
	// GetVocabSize returns the number of entries in the vocabulary.
	GetVocabSize() int
	// Save writes the model's native files into dir, optionally prefixed
	// by name, and returns the written paths.
	Save(dir, name string) ([]string, error)
}

// Compile time asserts that every variant implements Model.
var (
	_ Model = &bpe.BPE{}
	_ Model = &wordpiece.WordPiece{}
	_ Model = &wordlevel.WordLevel{}
)

// Marshal serializes a model with its "type" tag.
func Marshal(m Model) ([]byte, error) {
	switch m.(type) {
	case *bpe.BPE, *wordpiece.WordPiece, *wordlevel.WordLevel:
		return json.Marshal(m)
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown model type %T", m)
	}
}

// Unmarshal deserializes a model from its tagged form.
func Unmarshal(data []byte) (Model, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, errors.Wrap(api.ErrSerialization, err.Error())
	}
	switch tag.Type {
	case "BPE":
		return bpe.Unmarshal(data)
	case "WordPiece":
		return wordpiece.Unmarshal(data)
	case "WordLevel":
		return wordlevel.Unmarshal(data)
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown model tag %q", tag.Type)
	}
}
