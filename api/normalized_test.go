package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizedString(t *testing.T) {
	n := NewNormalizedString("Hello")
	assert.Equal(t, "Hello", n.Get())
	assert.Equal(t, "Hello", n.GetOriginal())
	assert.Equal(t, 5, n.Len())
	assert.Equal(t, 5, n.LenOriginal())
}

func TestConvertOffsetsIdentity(t *testing.T) {
	n := NewNormalizedString("Hello friend")
	o, ok := n.ConvertOffsets(Offsets{Start: 6, End: 12})
	require.True(t, ok)
	assert.Equal(t, Offsets{Start: 6, End: 12}, o)
	assert.Equal(t, "friend", n.RangeOriginal(Offsets{Start: 6, End: 12}))
}

func TestConvertOffsetsOutOfBounds(t *testing.T) {
	n := NewNormalizedString("hi")
	_, ok := n.ConvertOffsets(Offsets{Start: 5, End: 8})
	assert.False(t, ok)
	_, ok = n.ConvertOffsets(Offsets{Start: 3, End: 3})
	assert.False(t, ok)
}

func TestLowercaseKeepsAlignment(t *testing.T) {
	n := NewNormalizedString("HELLO")
	n.Lowercase()
	assert.Equal(t, "hello", n.Get())
	assert.Equal(t, "HELLO", n.GetOriginal())
	assert.Equal(t, "ELL", n.RangeOriginal(Offsets{Start: 1, End: 4}))
}

func TestFilterDropsRunes(t *testing.T) {
	n := NewNormalizedString("a-b-c")
	n.Filter(func(r rune) bool { return r != '-' })
	assert.Equal(t, "abc", n.Get())
	// Byte 1 of the normalized string is 'b', originally at byte 2.
	o, ok := n.ConvertOffsets(Offsets{Start: 1, End: 2})
	require.True(t, ok)
	assert.Equal(t, Offsets{Start: 2, End: 3}, o)
}

func TestTransformInsertInheritsAlignment(t *testing.T) {
	n := NewNormalizedString("ab")
	n.Transform(func(r rune) []rune {
		if r == 'a' {
			return []rune{' ', 'a', ' '}
		}
		return []rune{r}
	})
	assert.Equal(t, " a b", n.Get())
	require.Equal(t, 4, n.Len())
	// The inserted spaces map back to 'a'.
	assert.Equal(t, "a", n.RangeOriginal(Offsets{Start: 0, End: 1}))
	assert.Equal(t, "b", n.RangeOriginal(Offsets{Start: 3, End: 4}))
}

func TestNFDExpandsWithAlignment(t *testing.T) {
	// Precomposed e-acute decomposes into two runes.
	n := NewNormalizedString("caf\u00e9")
	n.NFD()
	assert.Equal(t, "cafe\u0301", n.Get())
	assert.Equal(t, "caf\u00e9", n.GetOriginal())
	// All decomposed bytes map back to the original accented character.
	o, ok := n.ConvertOffsets(Offsets{Start: 3, End: n.Len()})
	require.True(t, ok)
	assert.Equal(t, "\u00e9", n.GetOriginal()[o.Start:o.End])
}

func TestNFCComposes(t *testing.T) {
	n := NewNormalizedString("cafe\u0301")
	n.NFC()
	assert.Equal(t, "caf\u00e9", n.Get())
	o, ok := n.ConvertOffsets(Offsets{Start: 3, End: n.Len()})
	require.True(t, ok)
	assert.Equal(t, "e\u0301", n.GetOriginal()[o.Start:o.End])
}

func TestPrepend(t *testing.T) {
	n := NewNormalizedString("Hey")
	n.Prepend(" ")
	assert.Equal(t, " Hey", n.Get())
	assert.Equal(t, "Hey", n.GetOriginal())
	o, ok := n.ConvertOffsets(Offsets{Start: 1, End: 4})
	require.True(t, ok)
	assert.Equal(t, Offsets{Start: 0, End: 3}, o)
}

func TestStrip(t *testing.T) {
	n := NewNormalizedString("  trimmed  ")
	n.Strip()
	assert.Equal(t, "trimmed", n.Get())
	o, ok := n.ConvertOffsets(Offsets{Start: 0, End: 7})
	require.True(t, ok)
	assert.Equal(t, Offsets{Start: 2, End: 9}, o)
}

func TestStripLeftOnly(t *testing.T) {
	n := NewNormalizedString("  x ")
	n.StripLeft()
	assert.Equal(t, "x ", n.Get())
	n = NewNormalizedString("  x ")
	n.StripRight()
	assert.Equal(t, "  x", n.Get())
}

func TestSliceBytes(t *testing.T) {
	n := NewNormalizedString("HELLO WORLD")
	n.Lowercase()
	sub, ok := n.SliceBytes(Offsets{Start: 6, End: 11})
	require.True(t, ok)
	assert.Equal(t, "world", sub.Get())
	assert.Equal(t, "WORLD", sub.GetOriginal())
	o, ok := sub.ConvertOffsets(Offsets{Start: 0, End: 5})
	require.True(t, ok)
	assert.Equal(t, Offsets{Start: 0, End: 5}, o)
}

func TestSliceBytesInvalid(t *testing.T) {
	n := NewNormalizedString("abc")
	_, ok := n.SliceBytes(Offsets{Start: 2, End: 7})
	assert.False(t, ok)
}

func TestMergeWith(t *testing.T) {
	a := NewNormalizedString("Hello ")
	b := NewNormalizedString("WORLD")
	b.Lowercase()
	a.MergeWith(b)
	assert.Equal(t, "Hello world", a.Get())
	assert.Equal(t, "Hello WORLD", a.GetOriginal())
	o, ok := a.ConvertOffsets(Offsets{Start: 6, End: 11})
	require.True(t, ok)
	assert.Equal(t, "WORLD", a.GetOriginal()[o.Start:o.End])
}

func TestAlignmentLengthMatchesNormalized(t *testing.T) {
	inputs := []string{"", "plain", "  spaced  ", "café au lait", "日本語"}
	for _, in := range inputs {
		n := NewNormalizedString(in)
		n.NFKD()
		n.Lowercase()
		n.Strip()
		// Every byte of the normalized string must be mappable.
		for i := 0; i < n.Len(); i++ {
			o, ok := n.ConvertOffsets(Offsets{Start: i, End: i + 1})
			require.True(t, ok, "input %q byte %d", in, i)
			assert.LessOrEqual(t, o.Start, o.End)
			assert.LessOrEqual(t, o.End, n.LenOriginal())
		}
	}
}
