// Package pretokenizers implements the pre-tokenization stage: splitting a
// normalized string into word-level pieces, each carrying its offsets in
// the normalized string.
//
// The set of pre-tokenizers is closed: serialization only knows the
// variants defined here, each identified by its "type" tag.
package pretokenizers

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// PreTokenizer splits a normalized string into pre-tokens. It may mutate
// the NormalizedString (e.g. to prepend a space) as long as the alignment
// stays valid.
type PreTokenizer interface {
	PreTokenize(n *api.NormalizedString) ([]api.PreToken, error)
}

// BertPreTokenizer splits on whitespace and isolates every punctuation
// character into its own pre-token. Offsets are byte offsets.
type BertPreTokenizer struct{}

func (BertPreTokenizer) PreTokenize(n *api.NormalizedString) ([]api.PreToken, error) {
	return splitOn(n.Get(), func(r rune) (isDelim, include bool) {
		if unicode.IsSpace(r) {
			return true, false
		}
		if isBertPunctuation(r) {
			return true, true
		}
		return false, false
	}), nil
}

// splitOn cuts s at every delimiter rune, optionally keeping the delimiter
// as its own piece, tracking byte offsets.
func splitOn(s string, shouldSplit func(rune) (isDelim, include bool)) []api.PreToken {
	var words []api.PreToken
	var word strings.Builder
	offset := 0
	for _, r := range s {
		isDelim, include := shouldSplit(r)
		size := utf8.RuneLen(r)
		if isDelim {
			if word.Len() > 0 {
				words = append(words, api.PreToken{
					Value:   word.String(),
					Offsets: api.Offsets{Start: offset - word.Len(), End: offset},
				})
				word.Reset()
			}
			if include {
				words = append(words, api.PreToken{
					Value:   string(r),
					Offsets: api.Offsets{Start: offset, End: offset + size},
				})
			}
		} else {
			word.WriteRune(r)
		}
		offset += size
	}
	if word.Len() > 0 {
		words = append(words, api.PreToken{
			Value:   word.String(),
			Offsets: api.Offsets{Start: offset - word.Len(), End: offset},
		})
	}
	return words
}

func isBertPunctuation(r rune) bool {
	if r < 0x80 && (r >= 33 && r <= 47 || r >= 58 && r <= 64 || r >= 91 && r <= 96 || r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// wordPattern matches either a run of word characters or a run of
// non-word, non-space characters.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\s\p{L}\p{N}_]+`)

// Whitespace splits into runs of word characters and runs of punctuation,
// discarding the whitespace in between. Offsets are byte offsets.
type Whitespace struct{}

func (Whitespace) PreTokenize(n *api.NormalizedString) ([]api.PreToken, error) {
	s := n.Get()
	matches := wordPattern.FindAllStringIndex(s, -1)
	words := make([]api.PreToken, 0, len(matches))
	for _, m := range matches {
		words = append(words, api.PreToken{
			Value:   s[m[0]:m[1]],
			Offsets: api.Offsets{Start: m[0], End: m[1]},
		})
	}
	return words, nil
}

// CharDelimiterSplit splits on a single delimiter character, dropping the
// delimiter. Offsets count characters, not bytes.
type CharDelimiterSplit struct {
	Delimiter rune `json:"delimiter"`
}

// NewCharDelimiterSplit creates a CharDelimiterSplit for the delimiter.
func NewCharDelimiterSplit(delimiter rune) *CharDelimiterSplit {
	return &CharDelimiterSplit{Delimiter: delimiter}
}

func (c *CharDelimiterSplit) PreTokenize(n *api.NormalizedString) ([]api.PreToken, error) {
	var words []api.PreToken
	var word []rune
	offset := 0
	flush := func() {
		if len(word) > 0 {
			words = append(words, api.PreToken{
				Value:   string(word),
				Offsets: api.Offsets{Start: offset - len(word), End: offset},
			})
			word = word[:0]
		}
	}
	for _, r := range n.Get() {
		if r == c.Delimiter {
			flush()
		} else {
			word = append(word, r)
		}
		offset++
	}
	flush()
	return words, nil
}

// Metaspace replaces every whitespace character by the replacement
// character and splits on it, keeping the replacement attached to the
// following word. Offsets count characters, not bytes.
type Metaspace struct {
	Replacement    rune `json:"replacement"`
	AddPrefixSpace bool `json:"add_prefix_space"`
}

// DefaultMetaspaceReplacement is the lower one eighth block character used
// by SentencePiece-style vocabularies.
const DefaultMetaspaceReplacement = '▁'

// NewMetaspace creates a Metaspace pre-tokenizer.
func NewMetaspace(replacement rune, addPrefixSpace bool) *Metaspace {
	return &Metaspace{Replacement: replacement, AddPrefixSpace: addPrefixSpace}
}

// DefaultMetaspace uses the SentencePiece replacement with a prefix space.
func DefaultMetaspace() *Metaspace {
	return NewMetaspace(DefaultMetaspaceReplacement, true)
}

func (m *Metaspace) PreTokenize(n *api.NormalizedString) ([]api.PreToken, error) {
	if m.AddPrefixSpace && !strings.HasPrefix(n.Get(), " ") {
		n.Prepend(" ")
	}
	var words []api.PreToken
	var word []rune
	offset := 0
	flush := func() {
		if len(word) > 0 {
			words = append(words, api.PreToken{
				Value:   string(word),
				Offsets: api.Offsets{Start: offset - len(word), End: offset},
			})
			word = word[:0]
		}
	}
	for _, r := range n.Get() {
		if unicode.IsSpace(r) {
			flush()
			word = append(word, m.Replacement)
		} else {
			word = append(word, r)
		}
		offset++
	}
	flush()
	return words, nil
}

// Decode joins Metaspace tokens back into text, turning the replacement
// character into spaces. It makes Metaspace usable as a decoder too.
func (m *Metaspace) Decode(tokens []string) (string, error) {
	var sb strings.Builder
	i := 0
	for _, t := range tokens {
		for _, r := range t {
			if r == m.Replacement {
				if !(i == 0 && m.AddPrefixSpace) {
					sb.WriteRune(' ')
				}
			} else {
				sb.WriteRune(r)
			}
			i++
		}
	}
	return sb.String(), nil
}

// ByteLevel maps every byte of the input to a printable unicode character
// (the GPT-2 byte alphabet) and splits on spaces, keeping the space
// attached to the following word. Offsets are byte offsets into the
// normalized string.
type ByteLevel struct {
	AddPrefixSpace bool `json:"add_prefix_space"`
	TrimOffsets    bool `json:"trim_offsets"`
}

// NewByteLevel creates a ByteLevel pre-tokenizer.
func NewByteLevel(addPrefixSpace, trimOffsets bool) *ByteLevel {
	return &ByteLevel{AddPrefixSpace: addPrefixSpace, TrimOffsets: trimOffsets}
}

func (b *ByteLevel) PreTokenize(n *api.NormalizedString) ([]api.PreToken, error) {
	if b.AddPrefixSpace && !strings.HasPrefix(n.Get(), " ") {
		n.Prepend(" ")
	}
	s := n.Get()

	var words []api.PreToken
	var word strings.Builder
	start := 0
	inWord := false
	flush := func(end int) {
		if word.Len() == 0 {
			return
		}
		offsets := api.Offsets{Start: start, End: end}
		if b.TrimOffsets {
			for offsets.Start < offsets.End && s[offsets.Start] == ' ' {
				offsets.Start++
			}
		}
		words = append(words, api.PreToken{Value: word.String(), Offsets: offsets})
		word.Reset()
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == ' ' {
			if inWord {
				flush(i)
				start = i
			}
			word.WriteRune(ByteToChar(' '))
			inWord = false
		} else {
			if !inWord && word.Len() == 0 {
				start = i
			}
			inWord = true
			for j := 0; j < size; j++ {
				word.WriteRune(ByteToChar(s[i+j]))
			}
		}
		i += size
	}
	flush(len(s))
	return words, nil
}

// Tags used in the serialized form.
const (
	tagBert      = "BertPreTokenizer"
	tagByteLevel = "ByteLevel"
	tagDelimiter = "CharDelimiterSplit"
	tagMetaspace = "Metaspace"
	tagWhite     = "Whitespace"
)

type serialized struct {
	Type string `json:"type"`

	// ByteLevel
	AddPrefixSpace *bool `json:"add_prefix_space,omitempty"`
	TrimOffsets    *bool `json:"trim_offsets,omitempty"`

	// CharDelimiterSplit and Metaspace
	Delimiter   string `json:"delimiter,omitempty"`
	Replacement string `json:"replacement,omitempty"`
}

// Marshal serializes a pre-tokenizer with its "type" tag.
func Marshal(p PreTokenizer) ([]byte, error) {
	switch v := p.(type) {
	case BertPreTokenizer, *BertPreTokenizer:
		return json.Marshal(serialized{Type: tagBert})
	case Whitespace, *Whitespace:
		return json.Marshal(serialized{Type: tagWhite})
	case *CharDelimiterSplit:
		return json.Marshal(serialized{Type: tagDelimiter, Delimiter: string(v.Delimiter)})
	case *Metaspace:
		return json.Marshal(serialized{
			Type:           tagMetaspace,
			Replacement:    string(v.Replacement),
			AddPrefixSpace: &v.AddPrefixSpace,
		})
	case *ByteLevel:
		return json.Marshal(serialized{
			Type:           tagByteLevel,
			AddPrefixSpace: &v.AddPrefixSpace,
			TrimOffsets:    &v.TrimOffsets,
		})
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown pre-tokenizer type %T", p)
	}
}

// Unmarshal deserializes a pre-tokenizer from its tagged form.
func Unmarshal(data []byte) (PreTokenizer, error) {
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
	firstRune := func(str string, def rune) (rune, error) {
		if str == "" {
			return def, nil
		}
		r, size := utf8.DecodeRuneInString(str)
		if size != len(str) {
			return 0, errors.Wrapf(api.ErrSerialization, "expected a single character, got %q", str)
		}
		return r, nil
	}
	switch s.Type {
	case tagBert:
		return BertPreTokenizer{}, nil
	case tagWhite:
		return Whitespace{}, nil
	case tagDelimiter:
		if s.Delimiter == "" {
			return nil, errors.Wrap(api.ErrSerialization, "CharDelimiterSplit requires a delimiter")
		}
		r, err := firstRune(s.Delimiter, 0)
		if err != nil {
			return nil, err
		}
		return NewCharDelimiterSplit(r), nil
	case tagMetaspace:
		r, err := firstRune(s.Replacement, DefaultMetaspaceReplacement)
		if err != nil {
			return nil, err
		}
		return NewMetaspace(r, boolOr(s.AddPrefixSpace, true)), nil
	case tagByteLevel:
		return NewByteLevel(boolOr(s.AddPrefixSpace, true), boolOr(s.TrimOffsets, true)), nil
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown pre-tokenizer tag %q", s.Type)
	}
}
