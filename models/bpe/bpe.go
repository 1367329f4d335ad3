// Package bpe implements the byte-pair-encoding model: words are split
// into characters and adjacent pairs are merged back together following a
// learned, ranked merge table.
package bpe

import (
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// Vocab maps token strings to their ids.
type Vocab = map[string]uint32

// VocabR maps token ids back to their strings.
type VocabR = map[uint32]string

// BPE is a byte-pair-encoding model. The vocabulary and merge table are
// immutable after construction; the internal cache is the only mutable
// state and is safe for concurrent use.
type BPE struct {
	vocab  Vocab
	vocabR VocabR
	merges map[pair]mergeTarget
	// mergeOrder keeps the surface form of every merge by rank, so the
	// model can be serialized back to the exact merge list it was built
	// from.
	mergeOrder []string

	cache                   *Cache
	dropout                 float64
	unkToken                string
	continuingSubwordPrefix string
	endOfWordSuffix         string
}

type config struct {
	vocabFile     string
	mergesFile    string
	vocab         Vocab
	merges        []string
	cacheCapacity int
	dropout       float64
	unkToken      string
	prefix        string
	suffix        string
}

// Builder assembles a BPE model from files or in-memory tables.
type Builder struct {
	config config
}

// NewBuilder returns a Builder with the default configuration: empty
// vocabulary, default cache capacity, no dropout and no unknown token.
func NewBuilder() *Builder {
	return &Builder{config: config{cacheCapacity: DefaultCacheCapacity}}
}

// Files sets the vocab.json and merges.txt paths to load.
func (b *Builder) Files(vocab, merges string) *Builder {
	b.config.vocabFile = vocab
	b.config.mergesFile = merges
	return b
}

// Vocab sets the vocabulary and the ordered merge list ("A B" per entry).
func (b *Builder) Vocab(vocab Vocab, merges []string) *Builder {
	b.config.vocab = vocab
	b.config.merges = merges
	return b
}

// CacheCapacity bounds the word cache; 0 disables it.
func (b *Builder) CacheCapacity(capacity int) *Builder {
	b.config.cacheCapacity = capacity
	return b
}

// Dropout enables BPE dropout with the given probability.
func (b *Builder) Dropout(p float64) *Builder {
	b.config.dropout = p
	return b
}

// UnkToken sets the token emitted for characters outside the vocabulary.
func (b *Builder) UnkToken(unk string) *Builder {
	b.config.unkToken = unk
	return b
}

// ContinuingSubwordPrefix sets the prefix applied to non-leading symbols.
func (b *Builder) ContinuingSubwordPrefix(prefix string) *Builder {
	b.config.prefix = prefix
	return b
}

// EndOfWordSuffix sets the suffix applied to the last symbol of a word.
func (b *Builder) EndOfWordSuffix(suffix string) *Builder {
	b.config.suffix = suffix
	return b
}

// Build creates the BPE model.
func (b *Builder) Build() (*BPE, error) {
	if b.config.dropout < 0 || b.config.dropout > 1 {
		return nil, errors.Wrapf(api.ErrInvalidInput, "dropout must be in [0, 1], got %v", b.config.dropout)
	}
	vocab, merges := b.config.vocab, b.config.merges
	if b.config.vocabFile != "" || b.config.mergesFile != "" {
		var err error
		vocab, merges, err = ReadFiles(b.config.vocabFile, b.config.mergesFile)
		if err != nil {
			return nil, err
		}
	}
	if vocab == nil {
		vocab = Vocab{}
	}

	mergeMap, err := buildMerges(vocab, merges, b.config.prefix)
	if err != nil {
		return nil, err
	}
	vocabR := make(VocabR, len(vocab))
	for token, id := range vocab {
		vocabR[id] = token
	}
	return &BPE{
		vocab:                   vocab,
		vocabR:                  vocabR,
		merges:                  mergeMap,
		mergeOrder:              merges,
		cache:                   NewCache(b.config.cacheCapacity),
		dropout:                 b.config.dropout,
		unkToken:                b.config.unkToken,
		continuingSubwordPrefix: b.config.prefix,
		endOfWordSuffix:         b.config.suffix,
	}, nil
}

// New creates a BPE model from in-memory tables with default options.
func New(vocab Vocab, merges []string) (*BPE, error) {
	return NewBuilder().Vocab(vocab, merges).Build()
}

// FromFiles starts a Builder on a vocab.json and merges.txt pair.
func FromFiles(vocab, merges string) *Builder {
	return NewBuilder().Files(vocab, merges)
}

// buildMerges resolves the ordered "A B" merge list against the
// vocabulary. The merged token is A followed by B stripped of the
// continuing subword prefix.
func buildMerges(vocab Vocab, merges []string, prefix string) (map[pair]mergeTarget, error) {
	mergeMap := make(map[pair]mergeTarget, len(merges))
	for rank, m := range merges {
		left, right, ok := splitMerge(m)
		if !ok {
			return nil, errors.Wrapf(api.ErrVocabLoad, "invalid merge entry %q at rank %d", m, rank)
		}
		leftID, ok := vocab[left]
		if !ok {
			return nil, errors.Wrapf(api.ErrVocabLoad, "merge %q: token %q is not in the vocabulary", m, left)
		}
		rightID, ok := vocab[right]
		if !ok {
			return nil, errors.Wrapf(api.ErrVocabLoad, "merge %q: token %q is not in the vocabulary", m, right)
		}
		merged := left + trimPrefix(right, prefix)
		newID, ok := vocab[merged]
		if !ok {
			return nil, errors.Wrapf(api.ErrVocabLoad, "merge %q: merged token %q is not in the vocabulary", m, merged)
		}
		mergeMap[pair{left: leftID, right: rightID}] = mergeTarget{rank: uint32(rank), newID: newID}
	}
	return mergeMap, nil
}

func splitMerge(m string) (left, right string, ok bool) {
	for i := 0; i < len(m); i++ {
		if m[i] == ' ' {
			if i == 0 || i == len(m)-1 {
				return "", "", false
			}
			return m[:i], m[i+1:], true
		}
	}
	return "", "", false
}

func trimPrefix(s, prefix string) string {
	if prefix != "" && len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// Tokenize merges every pre-token independently and returns the resulting
// tokens with offsets shifted into the pre-token's position. Results for
// individual words are memoized unless dropout is active.
func (b *BPE) Tokenize(preTokens []api.PreToken) ([]api.Token, error) {
	if len(preTokens) == 0 {
		return nil, nil
	}

	useCache := b.dropout == 0 && b.cache.Capacity() > 0
	var cached [][]api.Token
	cacheRead := false
	keys := make([]string, len(preTokens))
	for i, pt := range preTokens {
		keys[i] = pt.Value
	}
	if useCache {
		cached, cacheRead = b.cache.GetValues(keys)
	}

	var output []api.Token
	computed := make([][]api.Token, len(preTokens))
	for i, pt := range preTokens {
		var wordTokens []api.Token
		if cacheRead && cached[i] != nil {
			wordTokens = cached[i]
		} else {
			var err error
			wordTokens, err = b.mergeWord(pt.Value)
			if err != nil {
				return nil, err
			}
			computed[i] = wordTokens
		}
		for _, t := range wordTokens {
			output = append(output, api.Token{
				ID:    t.ID,
				Value: t.Value,
				Offsets: api.Offsets{
					Start: pt.Offsets.Start + t.Offsets.Start,
					End:   pt.Offsets.Start + t.Offsets.End,
				},
				Word: uint32(i),
			})
		}
	}
	if useCache {
		b.cache.SetValues(keys, computed)
	}
	return output, nil
}

// mergeWord tokenizes a single word. The returned offsets are relative to
// the word so the result can be cached and re-positioned.
func (b *BPE) mergeWord(w string) ([]api.Token, error) {
	charCount := utf8.RuneCountInString(w)
	word := newWord(charCount)

	index := 0
	byteIdx := 0
	for _, r := range w {
		size := utf8.RuneLen(r)
		s := string(r)
		if index > 0 && b.continuingSubwordPrefix != "" {
			s = b.continuingSubwordPrefix + s
		}
		if index == charCount-1 && b.endOfWordSuffix != "" {
			s += b.endOfWordSuffix
		}

		if id, ok := b.vocab[s]; ok {
			word.add(id, byteIdx, byteIdx+size)
		} else if b.unkToken != "" {
			unkID, ok := b.vocab[b.unkToken]
			if !ok {
				return nil, errors.Wrapf(api.ErrMissingUnkToken, "unknown token %q is not in the BPE vocabulary", b.unkToken)
			}
			word.add(unkID, byteIdx, byteIdx+size)
		}
		// Without an unknown token the character is dropped.

		index++
		byteIdx += size
	}

	word.mergeAll(b.merges, b.dropout)

	tokens := make([]api.Token, 0, len(word.symbols))
	for _, sym := range word.symbols {
		tokens = append(tokens, api.Token{
			ID:      sym.id,
			Value:   b.vocabR[sym.id],
			Offsets: api.Offsets{Start: sym.start, End: sym.end},
		})
	}
	return tokens, nil
}

// TokenToID returns the id of a token in the vocabulary.
func (b *BPE) TokenToID(token string) (uint32, bool) {
	id, ok := b.vocab[token]
	return id, ok
}

// IDToToken returns the token string for an id.
func (b *BPE) IDToToken(id uint32) (string, bool) {
	token, ok := b.vocabR[id]
	return token, ok
}

// GetVocab returns the vocabulary.
func (b *BPE) GetVocab() Vocab { return b.vocab }

// GetVocabSize returns the number of entries in the vocabulary.
func (b *BPE) GetVocabSize() int { return len(b.vocab) }

// GetUnkToken returns the configured unknown token, "" if none.
func (b *BPE) GetUnkToken() string { return b.unkToken }

// GetContinuingSubwordPrefix returns the configured prefix, "" if none.
func (b *BPE) GetContinuingSubwordPrefix() string { return b.continuingSubwordPrefix }

// GetEndOfWordSuffix returns the configured suffix, "" if none.
func (b *BPE) GetEndOfWordSuffix() string { return b.endOfWordSuffix }

// GetDropout returns the configured dropout probability.
func (b *BPE) GetDropout() float64 { return b.dropout }

// Merges returns the ordered "A B" merge list.
func (b *BPE) Merges() []string { return b.mergeOrder }

// ClearCache drops every memoized word.
func (b *BPE) ClearCache() { b.cache.Clear() }
