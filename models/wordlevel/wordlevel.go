// Package wordlevel implements the simplest model: every pre-token is
// looked up in the vocabulary as-is, falling back to the unknown token.
package wordlevel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// Vocab maps token strings to their ids.
type Vocab = map[string]uint32

// VocabR maps token ids back to their strings.
type VocabR = map[uint32]string

// DefaultUnkToken is the unknown token used when none is configured.
const DefaultUnkToken = "<unk>"

// WordLevel is a whole-word lookup model. It is immutable after
// construction.
type WordLevel struct {
	vocab    Vocab
	vocabR   VocabR
	unkToken string
}

// New creates a WordLevel model over the vocabulary. An empty unkToken
// selects the default.
func New(vocab Vocab, unkToken string) *WordLevel {
	if vocab == nil {
		vocab = Vocab{}
	}
	if unkToken == "" {
		unkToken = DefaultUnkToken
	}
	vocabR := make(VocabR, len(vocab))
	for token, id := range vocab {
		vocabR[id] = token
	}
	return &WordLevel{vocab: vocab, vocabR: vocabR, unkToken: unkToken}
}

// FromFile loads a vocab.json (token -> id object).
func FromFile(path, unkToken string) (*WordLevel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read vocab file %q", path)
	}
	var vocab Vocab
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, errors.Wrapf(api.ErrVocabLoad, "vocab file %q: %v", path, err)
	}
	return New(vocab, unkToken), nil
}

// Tokenize maps every pre-token to its vocabulary id, offsets unchanged.
func (w *WordLevel) Tokenize(preTokens []api.PreToken) ([]api.Token, error) {
	output := make([]api.Token, 0, len(preTokens))
	for index, pt := range preTokens {
		id, ok := w.vocab[pt.Value]
		value := pt.Value
		if !ok {
			id, ok = w.vocab[w.unkToken]
			if !ok {
				return nil, errors.Wrapf(api.ErrMissingUnkToken, "unknown token %q is not in the WordLevel vocabulary", w.unkToken)
			}
			value = w.unkToken
		}
		output = append(output, api.Token{
			ID:      id,
			Value:   value,
			Offsets: pt.Offsets,
			Word:    uint32(index),
		})
	}
	return output, nil
}

// TokenToID returns the id of a token in the vocabulary.
func (w *WordLevel) TokenToID(token string) (uint32, bool) {
	id, ok := w.vocab[token]
	return id, ok
}

// IDToToken returns the token string for an id.
func (w *WordLevel) IDToToken(id uint32) (string, bool) {
	token, ok := w.vocabR[id]
	return token, ok
}

// GetVocab returns the vocabulary.
func (w *WordLevel) GetVocab() Vocab { return w.vocab }

// GetVocabSize returns the number of entries in the vocabulary.
func (w *WordLevel) GetVocabSize() int { return len(w.vocab) }

// GetUnkToken returns the unknown token.
func (w *WordLevel) GetUnkToken() string { return w.unkToken }

// Save writes the vocabulary as vocab.json in dir, keys in id order,
// optionally prefixed by name. It returns the written paths.
func (w *WordLevel) Save(dir, name string) ([]string, error) {
	vocabName := "vocab.json"
	if name != "" {
		vocabName = fmt.Sprintf("%s-vocab.json", name)
	}
	vocabPath := filepath.Join(dir, vocabName)

	data, err := w.marshalVocab()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(vocabPath, data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write vocab file %q", vocabPath)
	}
	return []string{vocabPath}, nil
}

func (w *WordLevel) marshalVocab() ([]byte, error) {
	ids := make([]uint32, 0, len(w.vocabR))
	for id := range w.vocabR {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, err := json.Marshal(w.vocabR[id])
		if err != nil {
			return nil, errors.Wrap(api.ErrSerialization, err.Error())
		}
		sb.Write(key)
		fmt.Fprintf(&sb, ":%d", id)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

type serialized struct {
	Type     string          `json:"type"`
	UnkToken string          `json:"unk_token"`
	Vocab    json.RawMessage `json:"vocab"`
}

// MarshalJSON serializes the model with its "WordLevel" tag.
func (w *WordLevel) MarshalJSON() ([]byte, error) {
	vocab, err := w.marshalVocab()
	if err != nil {
		return nil, err
	}
	return json.Marshal(serialized{Type: "WordLevel", UnkToken: w.unkToken, Vocab: vocab})
}

// Unmarshal deserializes a WordLevel model from its tagged form.
func Unmarshal(data []byte) (*WordLevel, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(api.ErrSerialization, err.Error())
	}
	var vocab Vocab
	if len(s.Vocab) > 0 {
		if err := json.Unmarshal(s.Vocab, &vocab); err != nil {
			return nil, errors.Wrap(api.ErrSerialization, err.Error())
		}
	}
	return New(vocab, s.UnkToken), nil
}
