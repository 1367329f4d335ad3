package bpe

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

type serialized struct {
	Type                    string          `json:"type"`
	Dropout                 *float64        `json:"dropout"`
	UnkToken                *string         `json:"unk_token"`
	ContinuingSubwordPrefix *string         `json:"continuing_subword_prefix"`
	EndOfWordSuffix         *string         `json:"end_of_word_suffix"`
	Vocab                   json.RawMessage `json:"vocab"`
	Merges                  []string        `json:"merges"`
}

// MarshalJSON serializes the model with its "BPE" tag. The vocabulary is
// written in id order so the output is deterministic.
func (b *BPE) MarshalJSON() ([]byte, error) {
	s := serialized{Type: "BPE", Merges: b.mergeOrder}
	if b.dropout > 0 {
		s.Dropout = &b.dropout
	}
	if b.unkToken != "" {
		s.UnkToken = &b.unkToken
	}
	if b.continuingSubwordPrefix != "" {
		s.ContinuingSubwordPrefix = &b.continuingSubwordPrefix
	}
	if b.endOfWordSuffix != "" {
		s.EndOfWordSuffix = &b.endOfWordSuffix
	}
	vocab, err := marshalOrderedVocab(b.vocabR)
	if err != nil {
		return nil, err
	}
	s.Vocab = vocab
	if s.Merges == nil {
		s.Merges = []string{}
	}
	return json.Marshal(s)
}

// Unmarshal deserializes a BPE model from its tagged form.
func Unmarshal(data []byte) (*BPE, error) {
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
	builder := NewBuilder().Vocab(vocab, s.Merges)
	if s.Dropout != nil {
		builder.Dropout(*s.Dropout)
	}
	if s.UnkToken != nil {
		builder.UnkToken(*s.UnkToken)
	}
	if s.ContinuingSubwordPrefix != nil {
		builder.ContinuingSubwordPrefix(*s.ContinuingSubwordPrefix)
	}
	if s.EndOfWordSuffix != nil {
		builder.EndOfWordSuffix(*s.EndOfWordSuffix)
	}
	return builder.Build()
}
