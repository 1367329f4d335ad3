package wordpiece

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

type serialized struct {
	Type                    string          `json:"type"`
	UnkToken                string          `json:"unk_token"`
	ContinuingSubwordPrefix string          `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int             `json:"max_input_chars_per_word"`
	Vocab                   json.RawMessage `json:"vocab"`
}

// MarshalJSON serializes the model with its "WordPiece" tag. The
// vocabulary is written in id order so the output is deterministic.
func (wp *WordPiece) MarshalJSON() ([]byte, error) {
	ids := make([]uint32, 0, len(wp.vocabR))
	for id := range wp.vocabR {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, err := json.Marshal(wp.vocabR[id])
		if err != nil {
			return nil, errors.Wrap(api.ErrSerialization, err.Error())
		}
		sb.Write(key)
		sb.WriteString(":")
		idJSON, _ := json.Marshal(id)
		sb.Write(idJSON)
	}
	sb.WriteByte('}')

	return json.Marshal(serialized{
		Type:                    "WordPiece",
		UnkToken:                wp.unkToken,
		ContinuingSubwordPrefix: wp.continuingSubwordPrefix,
		MaxInputCharsPerWord:    wp.maxInputCharsPerWord,
		Vocab:                   json.RawMessage(sb.String()),
	})
}

// Unmarshal deserializes a WordPiece model from its tagged form.
func Unmarshal(data []byte) (*WordPiece, error) {
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
	builder := NewBuilder().Vocab(vocab)
	if s.UnkToken != "" {
		builder.UnkToken(s.UnkToken)
	}
	if s.ContinuingSubwordPrefix != "" {
		builder.ContinuingSubwordPrefix(s.ContinuingSubwordPrefix)
	}
	if s.MaxInputCharsPerWord > 0 {
		builder.MaxInputCharsPerWord(s.MaxInputCharsPerWord)
	}
	return builder.Build()
}
