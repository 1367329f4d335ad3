package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebpuetz/tokenizers/api"
)

func normalize(t *testing.T, n Normalizer, input string) string {
	t.Helper()
	ns := api.NewNormalizedString(input)
	require.NoError(t, n.Normalize(ns))
	return ns.Get()
}

func TestBertCleanText(t *testing.T) {
	n := NewBertNormalizer(true, false, nil, false)
	tests := []struct {
		input string
		want  string
	}{
		{"hello world", "hello world"},
		{"hello\tworld", "hello world"},
		{"hello\nworld", "hello world"},
		{"hello\x00world", "helloworld"},
		{"helloworld", "helloworld"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(t, n, tt.input), "input %q", tt.input)
	}
}

func TestBertLowercase(t *testing.T) {
	n := NewBertNormalizer(false, false, boolPtr(false), true)
	assert.Equal(t, "hello", normalize(t, n, "HeLLo"))
}

func TestBertStripAccentsFollowsLowercase(t *testing.T) {
	// With strip_accents unset, accents are stripped iff lowercasing.
	lower := NewBertNormalizer(false, false, nil, true)
	assert.Equal(t, "cafe", normalize(t, lower, "café"))

	kept := NewBertNormalizer(false, false, nil, false)
	assert.Equal(t, "café", normalize(t, kept, "café"))

	forced := NewBertNormalizer(false, false, boolPtr(true), false)
	assert.Equal(t, "cafe", normalize(t, forced, "café"))
}

func TestBertHandleChineseChars(t *testing.T) {
	n := NewBertNormalizer(false, true, boolPtr(false), false)
	assert.Equal(t, "ab 世  界 cd", normalize(t, n, "ab世界cd"))
}

func TestStripNormalizer(t *testing.T) {
	assert.Equal(t, "x", normalize(t, NewStrip(true, true), "  x  "))
	assert.Equal(t, "x  ", normalize(t, NewStrip(true, false), "  x  "))
	assert.Equal(t, "  x", normalize(t, NewStrip(false, true), "  x  "))
}

func TestUnicodeForms(t *testing.T) {
	assert.Equal(t, "cafe\u0301", normalize(t, NFD{}, "caf\u00e9"))
	assert.Equal(t, "caf\u00e9", normalize(t, NFC{}, "cafe\u0301"))
	// The fi ligature only decomposes under compatibility forms.
	assert.Equal(t, "fi", normalize(t, NFKC{}, "\ufb01"))
	assert.Equal(t, "fi", normalize(t, NFKD{}, "\ufb01"))
}

func TestSequence(t *testing.T) {
	n := NewSequence(NFD{}, NewStrip(true, true))
	assert.Equal(t, "cafe\u0301", normalize(t, n, " caf\u00e9 "))
}

func TestSerializationRoundTrip(t *testing.T) {
	variants := []Normalizer{
		NFC{}, NFD{}, NFKC{}, NFKD{},
		NewStrip(true, false),
		NewBertNormalizer(true, true, boolPtr(false), true),
		NewSequence(NFD{}, NewStrip(true, true)),
	}
	for _, n := range variants {
		data, err := Marshal(n)
		require.NoError(t, err)
		back, err := Unmarshal(data)
		require.NoError(t, err, "payload %s", data)
		again, err := Marshal(back)
		require.NoError(t, err)
		assert.JSONEq(t, string(data), string(again))
	}
}

func TestUnmarshalUnknownTag(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"Nope"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrSerialization)
}

func boolPtr(b bool) *bool { return &b }
