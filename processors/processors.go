// Package processors implements the post-processing stage: inserting the
// special tokens a language model expects around encoded sequences.
//
// The set of post-processors is closed: serialization only knows the
// variants defined here, each identified by its "type" tag.
package processors

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// PostProcessor merges a sequence encoding (and its optional pair) into
// the final encoding, inserting special tokens when requested.
type PostProcessor interface {
	// AddedTokens returns how many tokens Process will add, so truncation
	// can reserve the budget beforehand.
	AddedTokens(isPair bool) int
	// Process builds the final encoding.
	Process(encoding api.Encoding, pair *api.Encoding, addSpecialTokens bool) (api.Encoding, error)
}

// DefaultProcess is the fallback when no post-processor is configured: the
// pair is simply concatenated onto the first sequence.
func DefaultProcess(encoding api.Encoding, pair *api.Encoding, _ bool) (api.Encoding, error) {
	if pair != nil {
		encoding.MergeWith(*pair, false)
	}
	return encoding, nil
}

// SpecialToken is a special token together with its id.
type SpecialToken struct {
	Value string
	ID    uint32
}

// BertProcessing surrounds sequences the BERT way:
// [CLS] A [SEP] and [CLS] A [SEP] B [SEP].
type BertProcessing struct {
	Sep SpecialToken
	Cls SpecialToken
}

// NewBertProcessing creates a BertProcessing post-processor.
func NewBertProcessing(sep, cls SpecialToken) *BertProcessing {
	return &BertProcessing{Sep: sep, Cls: cls}
}

func (p *BertProcessing) AddedTokens(isPair bool) int {
	if isPair {
		return 3
	}
	return 2
}

func (p *BertProcessing) Process(encoding api.Encoding, pair *api.Encoding, addSpecialTokens bool) (api.Encoding, error) {
	if !addSpecialTokens {
		return DefaultProcess(encoding, pair, addSpecialTokens)
	}

	out := specialTokenEncoding(p.Cls, 0)
	out.MergeWith(encoding, false)
	out.MergeWith(specialTokenEncoding(p.Sep, 0), false)
	if pair != nil {
		pairEnc := pair.Clone()
		for i := range pairEnc.TypeIDs {
			pairEnc.TypeIDs[i] = 1
		}
		out.MergeWith(pairEnc, false)
		out.MergeWith(specialTokenEncoding(p.Sep, 1), false)
	}
	return out, nil
}

// specialTokenEncoding is a length-1 encoding holding one inserted special
// token: empty offsets, no word, full attention.
func specialTokenEncoding(t SpecialToken, typeID uint32) api.Encoding {
	return api.Encoding{
		IDs:               []uint32{t.ID},
		TypeIDs:           []uint32{typeID},
		Tokens:            []string{t.Value},
		Words:             []int{api.NoWord},
		Offsets:           []api.Offsets{{}},
		SpecialTokensMask: []uint32{1},
		AttentionMask:     []uint32{1},
	}
}

const tagBert = "BertProcessing"

type serialized struct {
	Type string             `json:"type"`
	Sep  [2]json.RawMessage `json:"sep"`
	Cls  [2]json.RawMessage `json:"cls"`
}

func marshalSpecial(t SpecialToken) ([2]json.RawMessage, error) {
	value, err := json.Marshal(t.Value)
	if err != nil {
		return [2]json.RawMessage{}, err
	}
	id, err := json.Marshal(t.ID)
	if err != nil {
		return [2]json.RawMessage{}, err
	}
	return [2]json.RawMessage{value, id}, nil
}

func unmarshalSpecial(raw [2]json.RawMessage) (SpecialToken, error) {
	var t SpecialToken
	if err := json.Unmarshal(raw[0], &t.Value); err != nil {
		return t, errors.Wrap(api.ErrSerialization, err.Error())
	}
	if err := json.Unmarshal(raw[1], &t.ID); err != nil {
		return t, errors.Wrap(api.ErrSerialization, err.Error())
	}
	return t, nil
}

// Marshal serializes a post-processor with its "type" tag.
func Marshal(p PostProcessor) ([]byte, error) {
	switch v := p.(type) {
	case *BertProcessing:
		sep, err := marshalSpecial(v.Sep)
		if err != nil {
			return nil, errors.Wrap(api.ErrSerialization, err.Error())
		}
		cls, err := marshalSpecial(v.Cls)
		if err != nil {
			return nil, errors.Wrap(api.ErrSerialization, err.Error())
		}
		return json.Marshal(serialized{Type: tagBert, Sep: sep, Cls: cls})
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown post-processor type %T", p)
	}
}

// Unmarshal deserializes a post-processor from its tagged form.
func Unmarshal(data []byte) (PostProcessor, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(api.ErrSerialization, err.Error())
	}
	switch s.Type {
	case tagBert:
		sep, err := unmarshalSpecial(s.Sep)
		if err != nil {
			return nil, err
		}
		cls, err := unmarshalSpecial(s.Cls)
		if err != nil {
			return nil, err
		}
		return NewBertProcessing(sep, cls), nil
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown post-processor tag %q", s.Type)
	}
}
