package api

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizedString keeps a normalized view of a string together with the
// byte-offset alignment back to the original text. Every byte of the
// normalized string maps to a half-open byte range of the original, so any
// range of the normalized string can be converted back.
type NormalizedString struct {
	original   string
	normalized string
	// alignments has one entry per byte of normalized.
	alignments []Offsets
}

// NewNormalizedString starts a NormalizedString where normalized == original.
func NewNormalizedString(s string) *NormalizedString {
	alignments := make([]Offsets, len(s))
	for i := range alignments {
		alignments[i] = Offsets{Start: i, End: i + 1}
	}
	return &NormalizedString{original: s, normalized: s, alignments: alignments}
}

// Get returns the normalized string.
func (n *NormalizedString) Get() string { return n.normalized }

// GetOriginal returns the original string.
func (n *NormalizedString) GetOriginal() string { return n.original }

// Len returns the byte length of the normalized string.
func (n *NormalizedString) Len() int { return len(n.normalized) }

// LenOriginal returns the byte length of the original string.
func (n *NormalizedString) LenOriginal() int { return len(n.original) }

// IsEmpty reports whether the normalized string is empty.
func (n *NormalizedString) IsEmpty() bool { return len(n.normalized) == 0 }

// ConvertOffsets converts a byte range of the normalized string into the
// byte range it covers in the original string. The second return value is
// false when the range cannot be mapped (reversed, starting past the end,
// or empty and outside the alignment map). An end past the normalized
// string is clamped to its length.
func (n *NormalizedString) ConvertOffsets(r Offsets) (Offsets, bool) {
	if r.Start > r.End || r.Start < 0 {
		return Offsets{}, false
	}
	if r.Start == r.End {
		switch {
		case r.Start < len(n.alignments):
			p := n.alignments[r.Start].Start
			return Offsets{Start: p, End: p}, true
		case r.Start == len(n.alignments) && len(n.alignments) > 0:
			p := n.alignments[len(n.alignments)-1].End
			return Offsets{Start: p, End: p}, true
		default:
			return Offsets{}, false
		}
	}
	if r.Start >= len(n.alignments) {
		return Offsets{}, false
	}
	end := r.End
	if end > len(n.alignments) {
		end = len(n.alignments)
	}
	return Offsets{
		Start: n.alignments[r.Start].Start,
		End:   n.alignments[end-1].End,
	}, true
}

// RangeOriginal returns the substring of the original string covered by the
// given normalized byte range, or "" if the range cannot be mapped.
func (n *NormalizedString) RangeOriginal(r Offsets) string {
	o, ok := n.ConvertOffsets(r)
	if !ok {
		return ""
	}
	return n.original[o.Start:o.End]
}

// Transform rewrites the normalized string rune by rune. The replacement
// runes returned by f all inherit the alignment of the source rune; an
// empty replacement drops the rune. The alignment to the original string is
// preserved across the rewrite.
func (n *NormalizedString) Transform(f func(r rune) []rune) {
	var sb strings.Builder
	sb.Grow(len(n.normalized))
	alignments := make([]Offsets, 0, len(n.alignments))

	for i, r := range n.normalized {
		size := utf8.RuneLen(r)
		align := Offsets{
			Start: n.alignments[i].Start,
			End:   n.alignments[i+size-1].End,
		}
		for _, out := range f(r) {
			for j := 0; j < utf8.RuneLen(out); j++ {
				alignments = append(alignments, align)
			}
			sb.WriteRune(out)
		}
	}

	n.normalized = sb.String()
	n.alignments = alignments
}

// Map replaces every rune of the normalized string one for one.
func (n *NormalizedString) Map(f func(r rune) rune) {
	n.Transform(func(r rune) []rune { return []rune{f(r)} })
}

// Filter drops the runes of the normalized string for which keep is false.
func (n *NormalizedString) Filter(keep func(r rune) bool) {
	n.Transform(func(r rune) []rune {
		if keep(r) {
			return []rune{r}
		}
		return nil
	})
}

// Lowercase lowercases the normalized string in place.
func (n *NormalizedString) Lowercase() {
	n.Map(unicode.ToLower)
}

// Prepend inserts s at the front of the normalized string. The new bytes
// map to the empty range at the very start of the original.
func (n *NormalizedString) Prepend(s string) {
	if s == "" {
		return
	}
	alignments := make([]Offsets, 0, len(s)+len(n.alignments))
	for i := 0; i < len(s); i++ {
		alignments = append(alignments, Offsets{})
	}
	n.alignments = append(alignments, n.alignments...)
	n.normalized = s + n.normalized
}

// StripLeft removes leading whitespace from the normalized string.
func (n *NormalizedString) StripLeft() { n.strip(true, false) }

// StripRight removes trailing whitespace from the normalized string.
func (n *NormalizedString) StripRight() { n.strip(false, true) }

// Strip removes leading and trailing whitespace from the normalized string.
func (n *NormalizedString) Strip() { n.strip(true, true) }

func (n *NormalizedString) strip(left, right bool) {
	start, end := 0, len(n.normalized)
	if left {
		start = len(n.normalized) - len(strings.TrimLeftFunc(n.normalized, unicode.IsSpace))
	}
	if right {
		end = len(strings.TrimRightFunc(n.normalized, unicode.IsSpace))
	}
	if end < start {
		end = start
	}
	n.normalized = n.normalized[start:end]
	n.alignments = n.alignments[start:end]
}

// NFC applies canonical composition to the normalized string.
func (n *NormalizedString) NFC() { n.applyForm(norm.NFC) }

// NFD applies canonical decomposition to the normalized string.
func (n *NormalizedString) NFD() { n.applyForm(norm.NFD) }

// NFKC applies compatibility composition to the normalized string.
func (n *NormalizedString) NFKC() { n.applyForm(norm.NFKC) }

// NFKD applies compatibility decomposition to the normalized string.
func (n *NormalizedString) NFKD() { n.applyForm(norm.NFKD) }

// applyForm rewrites the normalized string segment by segment, where a
// segment is a normalization boundary. Every output byte of a segment maps
// to the original range covered by the whole input segment, which keeps the
// alignment monotone even when the byte length changes.
func (n *NormalizedString) applyForm(form norm.Form) {
	var sb strings.Builder
	sb.Grow(len(n.normalized))
	alignments := make([]Offsets, 0, len(n.alignments))

	for p := 0; p < len(n.normalized); {
		q := p + form.NextBoundaryInString(n.normalized[p:], true)
		if q <= p {
			q = len(n.normalized)
		}
		align := Offsets{
			Start: n.alignments[p].Start,
			End:   n.alignments[q-1].End,
		}
		out := form.String(n.normalized[p:q])
		for i := 0; i < len(out); i++ {
			alignments = append(alignments, align)
		}
		sb.WriteString(out)
		p = q
	}

	n.normalized = sb.String()
	n.alignments = alignments
}

// SliceBytes returns a new NormalizedString covering the given byte range of
// the normalized string, with its own original slice and rebased alignment.
func (n *NormalizedString) SliceBytes(r Offsets) (*NormalizedString, bool) {
	if r.Start < 0 || r.End > len(n.normalized) || r.Start > r.End {
		return nil, false
	}
	if r.Start == r.End {
		return NewNormalizedString(""), true
	}
	o, ok := n.ConvertOffsets(r)
	if !ok {
		return nil, false
	}
	alignments := make([]Offsets, r.End-r.Start)
	for i := r.Start; i < r.End; i++ {
		alignments[i-r.Start] = Offsets{
			Start: n.alignments[i].Start - o.Start,
			End:   n.alignments[i].End - o.Start,
		}
	}
	return &NormalizedString{
		original:   n.original[o.Start:o.End],
		normalized: n.normalized[r.Start:r.End],
		alignments: alignments,
	}, true
}

// MergeWith appends other at the end, shifting its alignment past the
// current original string.
func (n *NormalizedString) MergeWith(other *NormalizedString) {
	shift := len(n.original)
	for _, a := range other.alignments {
		n.alignments = append(n.alignments, Offsets{Start: a.Start + shift, End: a.End + shift})
	}
	n.original += other.original
	n.normalized += other.normalized
}
