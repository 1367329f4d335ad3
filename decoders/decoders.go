// Package decoders implements the decoding stage: joining token strings
// back into readable text, undoing whatever marks the model and
// pre-tokenizer left on the pieces.
//
// The set of decoders is closed: serialization only knows the variants
// defined here, each identified by its "type" tag.
package decoders

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/pretokenizers"
)

// Decoder joins decoded token strings into one string.
type Decoder interface {
	Decode(tokens []string) (string, error)
}

// WordPiece undoes the continuing subword prefix: prefixed pieces are
// glued to the previous piece, everything else is joined with spaces.
type WordPiece struct {
	Prefix  string `json:"prefix"`
	Cleanup bool   `json:"cleanup"`
}

// NewWordPiece creates a WordPiece decoder. An empty prefix selects "##".
func NewWordPiece(prefix string, cleanup bool) *WordPiece {
	if prefix == "" {
		prefix = "##"
	}
	return &WordPiece{Prefix: prefix, Cleanup: cleanup}
}

func (d *WordPiece) Decode(tokens []string) (string, error) {
	var sb strings.Builder
	for i, token := range tokens {
		if strings.HasPrefix(token, d.Prefix) {
			sb.WriteString(token[len(d.Prefix):])
		} else {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(token)
		}
	}
	out := sb.String()
	if d.Cleanup {
		out = cleanup(out)
	}
	return out, nil
}

// cleanup removes the spaces tokenization inserted before punctuation and
// contractions.
func cleanup(s string) string {
	replacer := strings.NewReplacer(
		" .", ".", " ?", "?", " !", "!", " ,", ",",
		" ' ", "'", " n't", "n't", " 'm", "'m", " 's", "'s",
		" 've", "'ve", " 're", "'re",
	)
	return replacer.Replace(s)
}

// ByteLevel maps the GPT-2 byte alphabet back to raw bytes.
type ByteLevel struct{}

func (ByteLevel) Decode(tokens []string) (string, error) {
	joined := strings.Join(tokens, "")
	buf := make([]byte, 0, len(joined))
	for _, r := range joined {
		if b, ok := pretokenizers.CharToByte(r); ok {
			buf = append(buf, b)
		} else {
			buf = utf8.AppendRune(buf, r)
		}
	}
	return string(buf), nil
}

// BPEDecoder turns the end-of-word suffix back into word separators.
type BPEDecoder struct {
	Suffix string `json:"suffix"`
}

// NewBPEDecoder creates a BPEDecoder. An empty suffix selects "</w>".
func NewBPEDecoder(suffix string) *BPEDecoder {
	if suffix == "" {
		suffix = "</w>"
	}
	return &BPEDecoder{Suffix: suffix}
}

func (d *BPEDecoder) Decode(tokens []string) (string, error) {
	joined := strings.Join(tokens, "")
	return strings.TrimRight(strings.ReplaceAll(joined, d.Suffix, " "), " "), nil
}

// Tags used in the serialized form.
const (
	tagWordPiece = "WordPiece"
	tagByteLevel = "ByteLevel"
	tagMetaspace = "Metaspace"
	tagBPE       = "BPEDecoder"
)

type serialized struct {
	Type    string `json:"type"`
	Prefix  string `json:"prefix,omitempty"`
	Cleanup *bool  `json:"cleanup,omitempty"`
	Suffix  string `json:"suffix,omitempty"`

	// Metaspace
	Replacement    string `json:"replacement,omitempty"`
	AddPrefixSpace *bool  `json:"add_prefix_space,omitempty"`
}

// Marshal serializes a decoder with its "type" tag.
func Marshal(d Decoder) ([]byte, error) {
	switch v := d.(type) {
	case *WordPiece:
		return json.Marshal(serialized{Type: tagWordPiece, Prefix: v.Prefix, Cleanup: &v.Cleanup})
	case ByteLevel, *ByteLevel:
		return json.Marshal(serialized{Type: tagByteLevel})
	case *BPEDecoder:
		return json.Marshal(serialized{Type: tagBPE, Suffix: v.Suffix})
	case *pretokenizers.Metaspace:
		return json.Marshal(serialized{
			Type:           tagMetaspace,
			Replacement:    string(v.Replacement),
			AddPrefixSpace: &v.AddPrefixSpace,
		})
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown decoder type %T", d)
	}
}

// Unmarshal deserializes a decoder from its tagged form.
func Unmarshal(data []byte) (Decoder, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(api.ErrSerialization, err.Error())
	}
	switch s.Type {
	case tagWordPiece:
		cleanup := true
		if s.Cleanup != nil {
			cleanup = *s.Cleanup
		}
		return NewWordPiece(s.Prefix, cleanup), nil
	case tagByteLevel:
		return ByteLevel{}, nil
	case tagBPE:
		return NewBPEDecoder(s.Suffix), nil
	case tagMetaspace:
		replacement := pretokenizers.DefaultMetaspaceReplacement
		if s.Replacement != "" {
			r, size := utf8.DecodeRuneInString(s.Replacement)
			if size != len(s.Replacement) {
				return nil, errors.Wrapf(api.ErrSerialization, "expected a single character replacement, got %q", s.Replacement)
			}
			replacement = r
		}
		addPrefixSpace := true
		if s.AddPrefixSpace != nil {
			addPrefixSpace = *s.AddPrefixSpace
		}
		return pretokenizers.NewMetaspace(replacement, addPrefixSpace), nil
	default:
		return nil, errors.Wrapf(api.ErrSerialization, "unknown decoder tag %q", s.Type)
	}
}
