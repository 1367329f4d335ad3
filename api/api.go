// Package api holds the leaf data types shared by every stage of the
// tokenization pipeline: tokens, offsets, encodings and the offset-tracking
// NormalizedString. It exists to break the cyclic dependency between the
// top-level tokenizers package and the stage packages (normalizers,
// pretokenizers, models, ...), which all need these types.
package api

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Offsets is a half-open byte range [Start, End) into some string.
type Offsets struct {
	Start int
	End   int
}

// Token is a single unit produced by a model. Offsets are byte offsets, Word
// is the index of the pre-token this token was produced from.
type Token struct {
	ID      uint32
	Value   string
	Offsets Offsets
	Word    uint32
}

// NewToken creates a Token.
func NewToken(id uint32, value string, offsets Offsets, word uint32) Token {
	return Token{ID: id, Value: value, Offsets: offsets, Word: word}
}

// PreToken is a substring produced by a pre-tokenizer, with its offsets in
// the normalized string it was split from.
type PreToken struct {
	Value   string
	Offsets Offsets
}

// PaddingDirection selects which side of an encoding gets the padding.
type PaddingDirection int

const (
	PadLeft PaddingDirection = iota
	PadRight
)

func (d PaddingDirection) String() string {
	if d == PadLeft {
		return "left"
	}
	return "right"
}

// MarshalJSON writes the direction as "left" or "right".
func (d PaddingDirection) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads "left" or "right".
func (d *PaddingDirection) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.Wrap(ErrSerialization, err.Error())
	}
	switch name {
	case "left":
		*d = PadLeft
	case "right":
		*d = PadRight
	default:
		return errors.Wrapf(ErrSerialization, "unknown padding direction %q", name)
	}
	return nil
}
