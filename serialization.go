package tokenizers

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/decoders"
	"github.com/sebpuetz/tokenizers/models"
	"github.com/sebpuetz/tokenizers/normalizers"
	"github.com/sebpuetz/tokenizers/pretokenizers"
	"github.com/sebpuetz/tokenizers/processors"
)

// serializationVersion is the schema version written and accepted.
const serializationVersion = "1.0"

type serializedAddedToken struct {
	ID         uint32 `json:"id"`
	Special    bool   `json:"special"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
}

type serializedTokenizer struct {
	Version       string                 `json:"version"`
	Truncation    *TruncationParams      `json:"truncation"`
	Padding       *PaddingParams         `json:"padding"`
	AddedTokens   []serializedAddedToken `json:"added_tokens"`
	Normalizer    json.RawMessage        `json:"normalizer"`
	PreTokenizer  json.RawMessage        `json:"pre_tokenizer"`
	PostProcessor json.RawMessage        `json:"post_processor"`
	Decoder       json.RawMessage        `json:"decoder"`
	Model         json.RawMessage        `json:"model"`
}

// MarshalJSON serializes the whole configured tokenizer.
func (t *Tokenizer) MarshalJSON() ([]byte, error) {
	s := serializedTokenizer{
		Version:     serializationVersion,
		Truncation:  t.truncation,
		Padding:     t.padding,
		AddedTokens: []serializedAddedToken{},
	}

	for _, token := range t.addedVocabulary.Tokens() {
		id, ok := t.TokenToID(token.Content)
		if !ok {
			continue
		}
		s.AddedTokens = append(s.AddedTokens, serializedAddedToken{
			ID:         id,
			Special:    token.Special,
			Content:    token.Content,
			SingleWord: token.SingleWord,
			LStrip:     token.LStrip,
			RStrip:     token.RStrip,
			Normalized: token.Normalized,
		})
	}
	sort.SliceStable(s.AddedTokens, func(i, j int) bool {
		return s.AddedTokens[i].ID < s.AddedTokens[j].ID
	})

	var err error
	if t.normalizer != nil {
		if s.Normalizer, err = normalizers.Marshal(t.normalizer); err != nil {
			return nil, err
		}
	}
	if t.preTokenizer != nil {
		if s.PreTokenizer, err = pretokenizers.Marshal(t.preTokenizer); err != nil {
			return nil, err
		}
	}
	if t.postProcessor != nil {
		if s.PostProcessor, err = processors.Marshal(t.postProcessor); err != nil {
			return nil, err
		}
	}
	if t.decoder != nil {
		if s.Decoder, err = decoders.Marshal(t.decoder); err != nil {
			return nil, err
		}
	}
	if s.Model, err = models.Marshal(t.model); err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalJSON deserializes a tokenizer. Unknown top-level keys are
// ignored, an unknown version is an error. Added tokens are re-registered
// through the regular path; a mismatch between the stored and the
// re-derived id is only warned about.
func (t *Tokenizer) UnmarshalJSON(data []byte) error {
	var s serializedTokenizer
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(api.ErrSerialization, err.Error())
	}
	if s.Version != serializationVersion {
		return errors.Wrapf(api.ErrSerialization, "unknown tokenizer version %q", s.Version)
	}
	if len(s.Model) == 0 || string(s.Model) == "null" {
		return errors.Wrap(api.ErrSerialization, "tokenizer is missing a model")
	}

	model, err := models.Unmarshal(s.Model)
	if err != nil {
		return err
	}
	*t = *NewTokenizer(model)
	t.truncation = s.Truncation
	t.padding = s.Padding

	if len(s.Normalizer) > 0 && string(s.Normalizer) != "null" {
		if t.normalizer, err = normalizers.Unmarshal(s.Normalizer); err != nil {
			return err
		}
	}
	if len(s.PreTokenizer) > 0 && string(s.PreTokenizer) != "null" {
		if t.preTokenizer, err = pretokenizers.Unmarshal(s.PreTokenizer); err != nil {
			return err
		}
	}
	if len(s.PostProcessor) > 0 && string(s.PostProcessor) != "null" {
		if t.postProcessor, err = processors.Unmarshal(s.PostProcessor); err != nil {
			return err
		}
	}
	if len(s.Decoder) > 0 && string(s.Decoder) != "null" {
		if t.decoder, err = decoders.Unmarshal(s.Decoder); err != nil {
			return err
		}
	}

	for _, st := range s.AddedTokens {
		token := AddedToken{
			Content:    st.Content,
			SingleWord: st.SingleWord,
			LStrip:     st.LStrip,
			RStrip:     st.RStrip,
			Normalized: st.Normalized,
			Special:    st.Special,
		}
		if st.Special {
			t.AddSpecialTokens([]AddedToken{token})
		} else {
			t.AddTokens([]AddedToken{token})
		}
		if id, ok := t.TokenToID(st.Content); !ok || id != st.ID {
			klog.Warningf("Token %q was expected to have id %d but received id %v", st.Content, st.ID, id)
		}
	}
	return nil
}

// ToString serializes the tokenizer to JSON, optionally indented.
func (t *Tokenizer) ToString(pretty bool) (string, error) {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(t, "", "  ")
	} else {
		data, err = json.Marshal(t)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Save writes the serialized tokenizer to a file.
func (t *Tokenizer) Save(path string, pretty bool) error {
	serialized, err := t.ToString(pretty)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(serialized), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write tokenizer file %q", path)
	}
	return nil
}

// FromString deserializes a tokenizer from its JSON form.
func FromString(s string) (*Tokenizer, error) {
	var t Tokenizer
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// FromFile loads a serialized tokenizer from a file.
func FromFile(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer file %q", path)
	}
	var t Tokenizer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
