package tokenizers

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/models"
	"github.com/sebpuetz/tokenizers/normalizers"
)

// AddedToken is a string registered with the tokenizer to always be
// emitted as one atomic token with a fixed id, bypassing the model.
type AddedToken struct {
	// Content is the surface form of the token.
	Content string
	// SingleWord rejects matches glued to neighboring word characters.
	SingleWord bool
	// LStrip extends the match over whitespace on the left.
	LStrip bool
	// RStrip extends the match over whitespace on the right.
	RStrip bool
	// Normalized selects whether matching happens on the normalized text
	// instead of the raw input.
	Normalized bool
	// Special marks the token in the special tokens mask and makes it
	// removable during decoding.
	Special bool
}

// NewAddedToken creates an AddedToken. Special tokens match on the raw
// input, regular added tokens on the normalized text.
func NewAddedToken(content string, special bool) AddedToken {
	return AddedToken{Content: content, Normalized: !special, Special: special}
}

// splitPart is one chunk of an input sequence: either a matched added
// token with its id, or a stretch of text left for the regular pipeline.
type splitPart struct {
	normalized *api.NormalizedString
	id         uint32
	matched    bool
	special    bool
}

// matchEntry associates an alternation pattern with the token it stands
// for. For normalized tokens the pattern is the normalized content.
type matchEntry struct {
	pattern string
	token   AddedToken
}

// matcher is a compiled alternation over added token patterns. It is
// rebuilt when tokens are added and immutable afterwards.
type matcher struct {
	re      *regexp.Regexp
	byMatch map[string]matchEntry
}

func newMatcher(entries []matchEntry) matcher {
	if len(entries) == 0 {
		return matcher{}
	}
	// Longest pattern first, so that at equal start positions the longest
	// token wins (the regexp engine tries alternatives in order).
	sorted := make([]matchEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].pattern) > len(sorted[j].pattern)
	})
	patterns := make([]string, 0, len(sorted))
	byMatch := make(map[string]matchEntry, len(sorted))
	for _, e := range sorted {
		if _, dup := byMatch[e.pattern]; dup || e.pattern == "" {
			continue
		}
		byMatch[e.pattern] = e
		patterns = append(patterns, regexp.QuoteMeta(e.pattern))
	}
	if len(patterns) == 0 {
		return matcher{}
	}
	return matcher{
		re:      regexp.MustCompile(strings.Join(patterns, "|")),
		byMatch: byMatch,
	}
}

// tokenMatch is one accepted occurrence of an added token, with the
// stripped whitespace already included in the range.
type tokenMatch struct {
	start int
	end   int
	token AddedToken
}

// findMatches scans s left to right and returns the accepted matches.
func (m matcher) findMatches(s string) []tokenMatch {
	if m.re == nil {
		return nil
	}
	var matches []tokenMatch
	prevEnd := 0
	for _, loc := range m.re.FindAllStringIndex(s, -1) {
		entry := m.byMatch[s[loc[0]:loc[1]]]
		start, end := loc[0], loc[1]
		if entry.token.SingleWord && hasWordNeighbor(s, start, end) {
			continue
		}
		if entry.token.LStrip {
			for start > prevEnd && isASCIIWhitespace(s[start-1]) {
				start--
			}
		}
		if entry.token.RStrip {
			for end < len(s) && isASCIIWhitespace(s[end]) {
				end++
			}
		}
		matches = append(matches, tokenMatch{start: start, end: end, token: entry.token})
		prevEnd = end
	}
	return matches
}

func isASCIIWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// hasWordNeighbor reports whether the match at [start, end) touches a word
// character on either side.
func hasWordNeighbor(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordChar(r) {
			return true
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordChar(r) {
			return true
		}
	}
	return false
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// AddedVocabulary overlays user and special tokens on top of a model's
// vocabulary. Matched tokens short-circuit the pipeline and come out as
// single pre-assigned ids, no matter what the normalizer and
// pre-tokenizer would have done to them.
type AddedVocabulary struct {
	// addedTokenMap holds the ids assigned on top of the model vocab.
	addedTokenMap  map[string]uint32
	addedTokenMapR map[uint32]string

	// addedTokens keeps every registered token in insertion order, also
	// the ones whose content already lives in the model vocabulary.
	addedTokens []AddedToken
	specialSet  map[string]bool

	// splitRe matches non-normalized tokens on the raw input,
	// splitNormalizedRe matches the rest on normalized text.
	splitRe           matcher
	splitNormalizedRe matcher
}

// NewAddedVocabulary creates an empty overlay.
func NewAddedVocabulary() *AddedVocabulary {
	return &AddedVocabulary{
		addedTokenMap:  make(map[string]uint32),
		addedTokenMapR: make(map[uint32]string),
		specialSet:     make(map[string]bool),
	}
}

// Len returns the number of ids assigned by the overlay.
func (v *AddedVocabulary) Len() int { return len(v.addedTokenMap) }

// GetVocab returns the overlay's token -> id mapping.
func (v *AddedVocabulary) GetVocab() map[string]uint32 { return v.addedTokenMap }

// TokenToID resolves a token, overlay first, model second.
func (v *AddedVocabulary) TokenToID(token string, model models.Model) (uint32, bool) {
	if id, ok := v.addedTokenMap[token]; ok {
		return id, true
	}
	return model.TokenToID(token)
}

// IDToToken resolves an id, overlay first, model second.
func (v *AddedVocabulary) IDToToken(id uint32, model models.Model) (string, bool) {
	if token, ok := v.addedTokenMapR[id]; ok {
		return token, true
	}
	return model.IDToToken(id)
}

// IsSpecialToken reports whether the token was registered as special.
func (v *AddedVocabulary) IsSpecialToken(token string) bool {
	return v.specialSet[token]
}

// AddTokens registers regular added tokens and returns how many received a
// new id.
func (v *AddedVocabulary) AddTokens(tokens []AddedToken, model models.Model, normalizer normalizers.Normalizer) int {
	return v.add(tokens, model, normalizer, false)
}

// AddSpecialTokens registers special tokens and returns how many received
// a new id.
func (v *AddedVocabulary) AddSpecialTokens(tokens []AddedToken, model models.Model, normalizer normalizers.Normalizer) int {
	return v.add(tokens, model, normalizer, true)
}

func (v *AddedVocabulary) add(tokens []AddedToken, model models.Model, normalizer normalizers.Normalizer, special bool) int {
	added := 0
	for _, token := range tokens {
		if token.Content == "" {
			continue
		}
		if special {
			token.Special = true
		}
		if token.Special && !v.specialSet[token.Content] {
			v.specialSet[token.Content] = true
		}

		registered := false
		for _, existing := range v.addedTokens {
			if existing.Content == token.Content {
				registered = true
				break
			}
		}
		if !registered {
			v.addedTokens = append(v.addedTokens, token)
		}

		if _, ok := v.addedTokenMap[token.Content]; ok {
			continue
		}
		if _, ok := model.TokenToID(token.Content); ok {
			// Already part of the model vocabulary: no new id, but the
			// matcher still needs to know the token.
			continue
		}
		id := uint32(model.GetVocabSize() + len(v.addedTokenMap))
		v.addedTokenMap[token.Content] = id
		v.addedTokenMapR[id] = token.Content
		added++
	}
	v.refreshMatchers(normalizer)
	return added
}

// refreshMatchers recompiles the two alternation matchers. This happens
// once per add call, never per match.
func (v *AddedVocabulary) refreshMatchers(normalizer normalizers.Normalizer) {
	var raw, normalized []matchEntry
	for _, token := range v.addedTokens {
		if token.Normalized {
			pattern := token.Content
			if normalizer != nil {
				ns := api.NewNormalizedString(token.Content)
				if err := normalizer.Normalize(ns); err == nil {
					pattern = ns.Get()
				}
			}
			normalized = append(normalized, matchEntry{pattern: pattern, token: token})
		} else {
			raw = append(raw, matchEntry{pattern: token.Content, token: token})
		}
	}
	v.splitRe = newMatcher(raw)
	v.splitNormalizedRe = newMatcher(normalized)
}

// ExtractAndNormalize splits the input around added token matches and
// normalizes everything in between. It returns a non-empty ordered list of
// chunks covering the whole input: matched chunks carry the token id,
// unmatched chunks are normalized and left for the regular pipeline.
func (v *AddedVocabulary) ExtractAndNormalize(normalizer normalizers.Normalizer, input string, model models.Model) ([]splitPart, error) {
	var parts []splitPart

	appendUnmatched := func(text string) error {
		ns := api.NewNormalizedString(text)
		if normalizer != nil {
			if err := normalizer.Normalize(ns); err != nil {
				return err
			}
		}
		// Second pass: the normalized matcher runs on normalized text.
		matches := v.splitNormalizedRe.findMatches(ns.Get())
		pos := 0
		for _, m := range matches {
			if m.start > pos {
				sub, _ := ns.SliceBytes(api.Offsets{Start: pos, End: m.start})
				parts = append(parts, splitPart{normalized: sub})
			}
			id, ok := v.TokenToID(m.token.Content, model)
			sub, _ := ns.SliceBytes(api.Offsets{Start: m.start, End: m.end})
			if ok {
				parts = append(parts, splitPart{normalized: sub, id: id, matched: true, special: v.specialSet[m.token.Content]})
			} else {
				parts = append(parts, splitPart{normalized: sub})
			}
			pos = m.end
		}
		if pos < ns.Len() || len(matches) == 0 {
			sub, _ := ns.SliceBytes(api.Offsets{Start: pos, End: ns.Len()})
			parts = append(parts, splitPart{normalized: sub})
		}
		return nil
	}

	// First pass: non-normalized tokens match on the raw input.
	matches := v.splitRe.findMatches(input)
	pos := 0
	for _, m := range matches {
		if m.start > pos {
			if err := appendUnmatched(input[pos:m.start]); err != nil {
				return nil, err
			}
		}
		id, ok := v.TokenToID(m.token.Content, model)
		ns := api.NewNormalizedString(input[m.start:m.end])
		if ok {
			parts = append(parts, splitPart{normalized: ns, id: id, matched: true, special: v.specialSet[m.token.Content]})
		} else {
			parts = append(parts, splitPart{normalized: ns})
		}
		pos = m.end
	}
	if pos < len(input) || len(parts) == 0 {
		if err := appendUnmatched(input[pos:]); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// Tokens returns every registered added token in insertion order.
func (v *AddedVocabulary) Tokens() []AddedToken {
	return v.addedTokens
}
