package api

import "github.com/pkg/errors"

// NoWord marks a token that does not belong to any pre-token, like padding
// or special tokens inserted by a post-processor.
const NoWord = -1

// Encoding is the output of the tokenizer. All slices run in parallel and
// always have the same length; Overflowing holds the windows dropped by
// truncation.
type Encoding struct {
	IDs               []uint32
	TypeIDs           []uint32
	Tokens            []string
	Words             []int
	Offsets           []Offsets
	SpecialTokensMask []uint32
	AttentionMask     []uint32
	Overflowing       []Encoding
}

// NewEncoding assembles an Encoding from its parallel parts.
func NewEncoding(ids []uint32, typeIDs []uint32, tokens []string, words []int,
	offsets []Offsets, specialTokensMask, attentionMask []uint32, overflowing []Encoding) Encoding {
	return Encoding{
		IDs:               ids,
		TypeIDs:           typeIDs,
		Tokens:            tokens,
		Words:             words,
		Offsets:           offsets,
		SpecialTokensMask: specialTokensMask,
		AttentionMask:     attentionMask,
		Overflowing:       overflowing,
	}
}

// NewEncodingFromTokens builds an Encoding from model output, with the given
// type id, full attention and no special tokens.
func NewEncodingFromTokens(tokens []Token, typeID uint32) Encoding {
	n := len(tokens)
	e := Encoding{
		IDs:               make([]uint32, n),
		TypeIDs:           make([]uint32, n),
		Tokens:            make([]string, n),
		Words:             make([]int, n),
		Offsets:           make([]Offsets, n),
		SpecialTokensMask: make([]uint32, n),
		AttentionMask:     make([]uint32, n),
	}
	for i, t := range tokens {
		e.IDs[i] = t.ID
		e.TypeIDs[i] = typeID
		e.Tokens[i] = t.Value
		e.Words[i] = int(t.Word)
		e.Offsets[i] = t.Offsets
		e.AttentionMask[i] = 1
	}
	return e
}

// Len returns the number of tokens in the encoding.
func (e *Encoding) Len() int { return len(e.IDs) }

// IsEmpty reports whether the encoding holds no tokens.
func (e *Encoding) IsEmpty() bool { return len(e.IDs) == 0 }

// Clone returns a deep copy of the encoding.
func (e *Encoding) Clone() Encoding {
	c := Encoding{
		IDs:               append([]uint32(nil), e.IDs...),
		TypeIDs:           append([]uint32(nil), e.TypeIDs...),
		Tokens:            append([]string(nil), e.Tokens...),
		Words:             append([]int(nil), e.Words...),
		Offsets:           append([]Offsets(nil), e.Offsets...),
		SpecialTokensMask: append([]uint32(nil), e.SpecialTokensMask...),
		AttentionMask:     append([]uint32(nil), e.AttentionMask...),
	}
	for _, o := range e.Overflowing {
		c.Overflowing = append(c.Overflowing, o.Clone())
	}
	return c
}

// nextWord returns the word index the next merged-in encoding should start
// from, so word ids stay dense per sequence.
func (e *Encoding) nextWord() int {
	next := 0
	for _, w := range e.Words {
		if w >= next {
			next = w + 1
		}
	}
	return next
}

// MergeWith appends pair at the end of the encoding. With growingOffsets the
// offsets of pair continue where the current offsets stop, which is what we
// want when the two encodings come from one split-up sequence. Overflowing
// entries are combined pairwise so every window stays a valid encoding.
func (e *Encoding) MergeWith(pair Encoding, growingOffsets bool) {
	var overflowing []Encoding
	for _, o := range e.Overflowing {
		merged := o.Clone()
		merged.Overflowing = nil
		merged.MergeWith(pair.Clone(), growingOffsets)
		overflowing = append(overflowing, merged)
		for _, po := range pair.Overflowing {
			merged := o.Clone()
			merged.Overflowing = nil
			merged.MergeWith(po.Clone(), growingOffsets)
			overflowing = append(overflowing, merged)
		}
	}
	for _, po := range pair.Overflowing {
		merged := e.Clone()
		merged.Overflowing = nil
		merged.MergeWith(po.Clone(), growingOffsets)
		overflowing = append(overflowing, merged)
	}

	shift := 0
	if growingOffsets {
		for _, o := range e.Offsets {
			if o.End > shift {
				shift = o.End
			}
		}
	}
	wordShift := e.nextWord()

	e.IDs = append(e.IDs, pair.IDs...)
	e.TypeIDs = append(e.TypeIDs, pair.TypeIDs...)
	e.Tokens = append(e.Tokens, pair.Tokens...)
	for _, w := range pair.Words {
		if w == NoWord {
			e.Words = append(e.Words, NoWord)
		} else {
			e.Words = append(e.Words, w+wordShift)
		}
	}
	for _, o := range pair.Offsets {
		e.Offsets = append(e.Offsets, Offsets{Start: o.Start + shift, End: o.End + shift})
	}
	e.SpecialTokensMask = append(e.SpecialTokensMask, pair.SpecialTokensMask...)
	e.AttentionMask = append(e.AttentionMask, pair.AttentionMask...)
	e.Overflowing = overflowing
}

// MergeEncodings folds the given encodings into one.
func MergeEncodings(encodings []Encoding, growingOffsets bool) Encoding {
	var merged Encoding
	for _, e := range encodings {
		merged.MergeWith(e, growingOffsets)
	}
	return merged
}

// Truncate keeps the first maxLen tokens and turns the dropped tail into
// overflowing sibling encodings. Each overflow window keeps the last stride
// tokens of the previous window, so consumers can slide over long sequences
// without losing context.
func (e *Encoding) Truncate(maxLen int, stride int) error {
	if maxLen >= e.Len() {
		return nil
	}
	if maxLen == 0 {
		over := e.Clone()
		over.Overflowing = nil
		*e = Encoding{Overflowing: []Encoding{over}}
		return nil
	}
	if stride >= maxLen {
		return errors.Wrapf(ErrInvalidInput, "stride (%d) must be less than max length (%d)", stride, maxLen)
	}

	oIDs := e.IDs[maxLen:]
	oTypeIDs := e.TypeIDs[maxLen:]
	oTokens := e.Tokens[maxLen:]
	oWords := e.Words[maxLen:]
	oOffsets := e.Offsets[maxLen:]
	oSpecial := e.SpecialTokensMask[maxLen:]
	oAttention := e.AttentionMask[maxLen:]

	e.IDs = e.IDs[:maxLen]
	e.TypeIDs = e.TypeIDs[:maxLen]
	e.Tokens = e.Tokens[:maxLen]
	e.Words = e.Words[:maxLen]
	e.Offsets = e.Offsets[:maxLen]
	e.SpecialTokensMask = e.SpecialTokensMask[:maxLen]
	e.AttentionMask = e.AttentionMask[:maxLen]

	partSize := maxLen - stride
	prev := *e
	var overflowing []Encoding
	for part := 0; part*partSize < len(oIDs); part++ {
		lo := part * partSize
		hi := lo + partSize
		if hi > len(oIDs) {
			hi = len(oIDs)
		}
		carry := prev.Len() - stride
		window := Encoding{
			IDs:               append(append([]uint32(nil), prev.IDs[carry:]...), oIDs[lo:hi]...),
			TypeIDs:           append(append([]uint32(nil), prev.TypeIDs[carry:]...), oTypeIDs[lo:hi]...),
			Tokens:            append(append([]string(nil), prev.Tokens[carry:]...), oTokens[lo:hi]...),
			Words:             append(append([]int(nil), prev.Words[carry:]...), oWords[lo:hi]...),
			Offsets:           append(append([]Offsets(nil), prev.Offsets[carry:]...), oOffsets[lo:hi]...),
			SpecialTokensMask: append(append([]uint32(nil), prev.SpecialTokensMask[carry:]...), oSpecial[lo:hi]...),
			AttentionMask:     append(append([]uint32(nil), prev.AttentionMask[carry:]...), oAttention[lo:hi]...),
		}
		overflowing = append(overflowing, window)
		prev = window
	}
	e.Overflowing = overflowing
	return nil
}

// Pad grows the encoding to targetLength with the given padding token, on
// the requested side. Padded positions carry no attention, are flagged in
// the special tokens mask, and have empty offsets and no word. Overflowing
// entries are padded the same way.
func (e *Encoding) Pad(targetLength int, padID, padTypeID uint32, padToken string, direction PaddingDirection) {
	for i := range e.Overflowing {
		e.Overflowing[i].Pad(targetLength, padID, padTypeID, padToken, direction)
	}
	padLength := targetLength - e.Len()
	if padLength <= 0 {
		return
	}

	ids := make([]uint32, padLength)
	typeIDs := make([]uint32, padLength)
	tokens := make([]string, padLength)
	words := make([]int, padLength)
	offsets := make([]Offsets, padLength)
	special := make([]uint32, padLength)
	attention := make([]uint32, padLength)
	for i := 0; i < padLength; i++ {
		ids[i] = padID
		typeIDs[i] = padTypeID
		tokens[i] = padToken
		words[i] = NoWord
		special[i] = 1
	}

	if direction == PadLeft {
		e.IDs = append(ids, e.IDs...)
		e.TypeIDs = append(typeIDs, e.TypeIDs...)
		e.Tokens = append(tokens, e.Tokens...)
		e.Words = append(words, e.Words...)
		e.Offsets = append(offsets, e.Offsets...)
		e.SpecialTokensMask = append(special, e.SpecialTokensMask...)
		e.AttentionMask = append(attention, e.AttentionMask...)
	} else {
		e.IDs = append(e.IDs, ids...)
		e.TypeIDs = append(e.TypeIDs, typeIDs...)
		e.Tokens = append(e.Tokens, tokens...)
		e.Words = append(e.Words, words...)
		e.Offsets = append(e.Offsets, offsets...)
		e.SpecialTokensMask = append(e.SpecialTokensMask, special...)
		e.AttentionMask = append(e.AttentionMask, attention...)
	}
}

// Word2Tokens returns the token index range (start, end+1) covering the
// given word, or ok=false when the word is absent.
func (e *Encoding) Word2Tokens(word int) (start, end int, ok bool) {
	for i, w := range e.Words {
		if w != word {
			continue
		}
		if !ok {
			start = i
			ok = true
		}
		end = i + 1
	}
	return start, end, ok
}

// Word2Chars returns the byte offsets spanned by the given word.
func (e *Encoding) Word2Chars(word int) (Offsets, bool) {
	start, end, ok := e.Word2Tokens(word)
	if !ok {
		return Offsets{}, false
	}
	return Offsets{Start: e.Offsets[start].Start, End: e.Offsets[end-1].End}, true
}

// Token2Chars returns the byte offsets of the token at the given index.
func (e *Encoding) Token2Chars(token int) (Offsets, bool) {
	if token < 0 || token >= len(e.Offsets) {
		return Offsets{}, false
	}
	return e.Offsets[token], true
}

// Token2Word returns the word index of the token at the given index.
func (e *Encoding) Token2Word(token int) (int, bool) {
	if token < 0 || token >= len(e.Words) || e.Words[token] == NoWord {
		return 0, false
	}
	return e.Words[token], true
}

// Char2Token returns the index of the token containing the given byte
// position.
func (e *Encoding) Char2Token(pos int) (int, bool) {
	for i, o := range e.Offsets {
		if pos >= o.Start && pos < o.End {
			return i, true
		}
	}
	return 0, false
}

// Char2Word returns the word index containing the given byte position.
func (e *Encoding) Char2Word(pos int) (int, bool) {
	token, ok := e.Char2Token(pos)
	if !ok {
		return 0, false
	}
	return e.Token2Word(token)
}
