// Package normalizers implements the text normalization stage of the
// tokenization pipeline. A normalizer rewrites a NormalizedString in place,
// keeping its alignment to the original text intact.
//
// The set of normalizers is closed: serialization only knows the variants
// defined here, each identified by its "type" tag.
package normalizers

import (
	"encoding/json"
	"unicode"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// Normalizer rewrites a NormalizedString in place.
type Normalizer interface {
	Normalize(n *api.NormalizedString) error
}

// NFC applies canonical composition.
type NFC struct{}

func (NFC) Normalize(n *api.NormalizedString) error {
	n.NFC()
	return nil
}

// NFD applies canonical decomposition.
type NFD struct{}

func (NFD) Normalize(n *api.NormalizedString) error {
	n.NFD()
	return nil
}

// NFKC applies compatibility composition.
type NFKC struct{}

func (NFKC) Normalize(n *api.NormalizedString) error {
	n.NFKC()
	return nil
}

// NFKD applies compatibility decomposition.
type NFKD struct{}

func (NFKD) Normalize(n *api.NormalizedString) error {
	n.NFKD()
	return nil
}

// Strip removes whitespace on the selected sides.
type Strip struct {
	Left  bool `json:"strip_left"`
	Right bool `json:"strip_right"`
}

// NewStrip creates a Strip normalizer.
func NewStrip(left, right bool) *Strip {
	return &Strip{Left: left, Right: right}
}

func (s *Strip) Normalize(n *api.NormalizedString) error {
	switch {
	case s.Left && s.Right:
		n.Strip()
	case s.Left:
		n.StripLeft()
	case s.Right:
		n.StripRight()
	}
	return nil
}

// Sequence runs several normalizers one after the other.
type Sequence struct {
	Normalizers []Normalizer
}

// NewSequence creates a Sequence normalizer.
func NewSequence(normalizers ...Normalizer) *Sequence {
	return &Sequence{Normalizers: normalizers}
}

func (s *Sequence) Normalize(n *api.NormalizedString) error {
	for _, norm := range s.Normalizers {
		if err := norm.Normalize(n); err != nil {
			return err
		}
	}
	return nil
}

// BertNormalizer performs the cleanup BERT applies before pre-tokenization:
// control character removal, whitespace unification, isolation of CJK
// characters, optional accent stripping and lowercasing.
type BertNormalizer struct {
	CleanText          bool  `json:"clean_text"`
	HandleChineseChars bool  `json:"handle_chinese_chars"`
	StripAccents       *bool `json:"strip_accents"`
	Lowercase          bool  `json:"lowercase"`
}

// NewBertNormalizer creates a BertNormalizer. stripAccents may be nil, in
// which case accents are stripped whenever lowercasing is enabled.
func NewBertNormalizer(cleanText, handleChineseChars bool, stripAccents *bool, lowercase bool) *BertNormalizer {
	return &BertNormalizer{
		CleanText:          cleanText,
		HandleChineseChars: handleChineseChars,
		StripAccents:       stripAccents,
		Lowercase:          lowercase,
	}
}

// DefaultBertNormalizer mirrors the configuration used by BERT itself.
func DefaultBertNormalizer() *BertNormalizer {
	return NewBertNormalizer(true, true, nil, true)
}

func (b *BertNormalizer) Normalize(n *api.NormalizedString) error {
	if b.CleanText {
		cleanText(n)
	}
	if b.HandleChineseChars {
		handleChineseChars(n)
	}
	stripAccents := b.Lowercase
	if b.StripAccents != nil {
		stripAccents = *b.StripAccents
	}
	if stripAccents {
		n.NFD()
		n.Filter(func(r rune) bool { return !unicode.Is(unicode.Mn, r) })
	}
	if b.Lowercase {
		n.Lowercase()
	}
	return nil
}

// cleanText drops control characters and unifies all whitespace to plain
// spaces.
func cleanText(n *api.NormalizedString) {
	n.Transform(func(r rune) []rune {
		if r == 0 || r == 0xFFFD || isControl(r) {
			return nil
		}
		if isWhitespace(r) {
			return []rune{' '}
		}
		return []rune{r}
	})
}

// handleChineseChars puts spaces around CJK characters so the
// pre-tokenizer splits them into single-character words.
func handleChineseChars(n *api.NormalizedString) {
	n.Transform(func(r rune) []rune {
		if isChineseChar(r) {
			return []rune{' ', r, ' '}
		}
		return []rune{r}
	})
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	// \t, \n and \r count as whitespace, not control.
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// isChineseChar reports whether the rune is in the CJK unicode blocks, the
// same ranges the original BERT code checks.
func isChineseChar(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

// Tags used in the serialized form.
const (
	tagBert     = "BertNormalizer"
	tagStrip    = "Strip"
	tagNFC      = "NFC"
	tagNFD      = "NFD"
	tagNFKC     = "NFKC"
	tagNFKD     = "NFKD"
	tagSequence = "Sequence"
)

type serialized struct {
	Type string `json:"type"`

	// BertNormalizer
	CleanText          *bool `json:"clean_text,omitempty"`
	HandleChineseChars *bool `json:"handle_chinese_chars,omitempty"`
	StripAccents       *bool `json:"strip_accents,omitempty"`
	Lowercase          *bool `json:"lowercase,omitempty"`

	// Strip
	StripLeft  *bool `json:"strip_left,omitempty"`
	StripRight *bool `json:"strip_right,omitempty"`

	// Sequence
	Normalizers []json.RawMessage `json:"normalizers,omitempty"`
}

// Marshal serializes a normalizer with its "type" tag.
func Marshal(n Normalizer) ([]byte, error) {
	switch v := n.(type) {
	case NFC, *NFC:
		return json.Marshal(serialized{Type: tagNFC})
	case NFD, *NFD:
		return json.Marshal(serialized{Type: tagNFD})
	case NFKC, *NFKC:
		return json.Marshal(serialized{Type: tagNFKC})
	case NFKD, *NFKD:
		return json.Marshal(serialized{Type: tagNFKD})
	case *Strip:
		return json.Marshal(serialized{Type: tagStrip, StripLeft: &v.Left, StripRight: &v.Right})
	case *BertNormalizer:
		return json.Marshal(serialized{
			Type:               tagBert,
			CleanText:          &v.CleanText,
			HandleChineseChars: &v.HandleChineseChars,
			StripAccents:       v.StripAccents,
			Lowercase:          &v.Lowercase,
		})
	case *Sequence:
		children := make([]json.RawMessage, 0, len(v.Normalizers))
		for _, child := range v.Normalizers {
			raw, err := Marshal(child)
			if err != nil {
				return nil, err
			}
			children = append(children, raw)
		}
		return json.Marshal(serialized{Type: tagSequence, Normalizers: children})
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown normalizer type %T", n)
	}
}

// Unmarshal deserializes a normalizer from its tagged form.
func Unmarshal(data []byte) (Normalizer, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(api.ErrSerialization, err.Error())
	}
	boolOr := func(b *bool, def bool) bool {
		if b == nil {
			return def
		}
		return *b
	}
	switch s.Type {
	case tagNFC:
		return NFC{}, nil
	case tagNFD:
		return NFD{}, nil
	case tagNFKC:
		return NFKC{}, nil
	case tagNFKD:
		return NFKD{}, nil
	case tagStrip:
		return NewStrip(boolOr(s.StripLeft, true), boolOr(s.StripRight, true)), nil
	case tagBert:
		return NewBertNormalizer(
			boolOr(s.CleanText, true),
			boolOr(s.HandleChineseChars, true),
			s.StripAccents,
			boolOr(s.Lowercase, true),
		), nil
	case tagSequence:
		children := make([]Normalizer, 0, len(s.Normalizers))
		for _, raw := range s.Normalizers {
			child, err := Unmarshal(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return NewSequence(children...), nil
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown normalizer tag %q", s.Type)
	}
}
