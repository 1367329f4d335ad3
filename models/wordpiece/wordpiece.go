// Package wordpiece implements the WordPiece model used by BERT: greedy
// longest-match-first lookup of subword pieces, with non-leading pieces
// carrying a continuing subword prefix.
package wordpiece

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/models/bpe"
)

// Vocab maps token strings to their ids.
type Vocab = map[string]uint32

// VocabR maps token ids back to their strings.
type VocabR = map[uint32]string

const (
	// DefaultUnkToken is the unknown token used when none is configured.
	DefaultUnkToken = "[UNK]"
	// DefaultContinuingSubwordPrefix marks non-leading subword pieces.
	DefaultContinuingSubwordPrefix = "##"
	// DefaultMaxInputCharsPerWord bounds the per-word lookup work.
	DefaultMaxInputCharsPerWord = 100
)

// WordPiece is a WordPiece model. It is immutable after construction.
type WordPiece struct {
	vocab                   Vocab
	vocabR                  VocabR
	unkToken                string
	continuingSubwordPrefix string
	maxInputCharsPerWord    int
}

// Builder assembles a WordPiece model from a file or an in-memory table.
type Builder struct {
	vocabFile            string
	vocab                Vocab
	unkToken             string
	prefix               string
	maxInputCharsPerWord int
}

// NewBuilder returns a Builder with the BERT defaults.
func NewBuilder() *Builder {
	return &Builder{
		unkToken:             DefaultUnkToken,
		prefix:               DefaultContinuingSubwordPrefix,
		maxInputCharsPerWord: DefaultMaxInputCharsPerWord,
	}
}

// Files sets the vocab.txt path to load.
func (b *Builder) Files(vocab string) *Builder {
	b.vocabFile = vocab
	return b
}

// Vocab sets the vocabulary.
func (b *Builder) Vocab(vocab Vocab) *Builder {
	b.vocab = vocab
	return b
}

// UnkToken sets the unknown token.
func (b *Builder) UnkToken(unk string) *Builder {
	b.unkToken = unk
	return b
}

// ContinuingSubwordPrefix sets the prefix of non-leading pieces.
func (b *Builder) ContinuingSubwordPrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// MaxInputCharsPerWord sets the per-word character limit.
func (b *Builder) MaxInputCharsPerWord(max int) *Builder {
	b.maxInputCharsPerWord = max
	return b
}

// Build creates the WordPiece model.
func (b *Builder) Build() (*WordPiece, error) {
	vocab := b.vocab
	if b.vocabFile != "" {
		var err error
		vocab, err = ReadFile(b.vocabFile)
		if err != nil {
			return nil, err
		}
	}
	if vocab == nil {
		vocab = Vocab{}
	}
	vocabR := make(VocabR, len(vocab))
	for token, id := range vocab {
		vocabR[id] = token
	}
	return &WordPiece{
		vocab:                   vocab,
		vocabR:                  vocabR,
		unkToken:                b.unkToken,
		continuingSubwordPrefix: b.prefix,
		maxInputCharsPerWord:    b.maxInputCharsPerWord,
	}, nil
}

// New creates a WordPiece model over the vocabulary with default options.
func New(vocab Vocab) (*WordPiece, error) {
	return NewBuilder().Vocab(vocab).Build()
}

// FromFiles starts a Builder on a vocab.txt file.
func FromFiles(vocab string) *Builder {
	return NewBuilder().Files(vocab)
}

// FromBPE creates a WordPiece model sharing a BPE model's vocabulary,
// unknown token and subword prefix.
func FromBPE(b *bpe.BPE) *WordPiece {
	builder := NewBuilder().Vocab(b.GetVocab())
	if unk := b.GetUnkToken(); unk != "" {
		builder.UnkToken(unk)
	}
	if prefix := b.GetContinuingSubwordPrefix(); prefix != "" {
		builder.ContinuingSubwordPrefix(prefix)
	}
	wp, _ := builder.Build()
	return wp
}

// ReadFile loads a vocab.txt file: one token per line, the id is the
// 0-based line number.
func ReadFile(path string) (Vocab, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocab file %q", path)
	}
	defer file.Close()

	vocab := Vocab{}
	scanner := bufio.NewScanner(file)
	index := uint32(0)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if _, ok := vocab[token]; ok {
			return nil, errors.Wrapf(api.ErrVocabLoad, "vocab file %q: duplicate token %q", path, token)
		}
		vocab[token] = index
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocab file %q", path)
	}
	return vocab, nil
}

// Tokenize looks every pre-token up with greedy longest-match-first
// semantics. A word that cannot be fully covered becomes a single unknown
// token spanning the whole word.
func (wp *WordPiece) Tokenize(preTokens []api.PreToken) ([]api.Token, error) {
	var output []api.Token
	for index, pt := range preTokens {
		if utf8.RuneCountInString(pt.Value) > wp.maxInputCharsPerWord {
			unk, err := wp.unkFor(pt.Offsets)
			if err != nil {
				return nil, err
			}
			unk.Word = uint32(index)
			output = append(output, unk)
			continue
		}
		pieces, ok, err := wp.tokenizeWord(pt.Value)
		if err != nil {
			return nil, err
		}
		if !ok {
			unk, err := wp.unkFor(pt.Offsets)
			if err != nil {
				return nil, err
			}
			unk.Word = uint32(index)
			output = append(output, unk)
			continue
		}
		for _, p := range pieces {
			p.Offsets.Start += pt.Offsets.Start
			p.Offsets.End += pt.Offsets.Start
			p.Word = uint32(index)
			output = append(output, p)
		}
	}
	return output, nil
}

// tokenizeWord splits one word into pieces with offsets relative to the
// word. ok is false when some position has no matching piece.
func (wp *WordPiece) tokenizeWord(w string) ([]api.Token, bool, error) {
	var pieces []api.Token
	remaining := w
	for len(remaining) > 0 {
		pos := len(w) - len(remaining)
		cont := pos > 0
		seq := remaining
		prefixLen := 0
		if cont {
			seq = wp.continuingSubwordPrefix + remaining
			prefixLen = len(wp.continuingSubwordPrefix)
		}

		matched := false
		for end := len(seq); end > prefixLen; end = prevRuneStart(seq, end) {
			id, ok := wp.vocab[seq[:end]]
			if !ok {
				continue
			}
			consumed := end - prefixLen
			pieces = append(pieces, api.Token{
				ID:      id,
				Value:   seq[:end],
				Offsets: api.Offsets{Start: pos, End: pos + consumed},
			})
			remaining = remaining[consumed:]
			matched = true
			break
		}
		if !matched {
			return nil, false, nil
		}
	}
	return pieces, true, nil
}

// prevRuneStart returns the byte index of the rune preceding index end.
func prevRuneStart(s string, end int) int {
	end--
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return end
}

// unkFor returns the unknown token spanning the given offsets, or the
// missing-unk error when the token is not in the vocabulary.
func (wp *WordPiece) unkFor(offsets api.Offsets) (api.Token, error) {
	id, ok := wp.vocab[wp.unkToken]
	if !ok {
		return api.Token{}, errors.Wrapf(api.ErrMissingUnkToken, "unknown token %q is not in the WordPiece vocabulary", wp.unkToken)
	}
	return api.Token{ID: id, Value: wp.unkToken, Offsets: offsets}, nil
}

// TokenToID returns the id of a token in the vocabulary.
func (wp *WordPiece) TokenToID(token string) (uint32, bool) {
	id, ok := wp.vocab[token]
	return id, ok
}

// IDToToken returns the token string for an id.
func (wp *WordPiece) IDToToken(id uint32) (string, bool) {
	token, ok := wp.vocabR[id]
	return token, ok
}

// GetVocab returns the vocabulary.
func (wp *WordPiece) GetVocab() Vocab { return wp.vocab }

// GetVocabSize returns the number of entries in the vocabulary.
func (wp *WordPiece) GetVocabSize() int { return len(wp.vocab) }

// GetUnkToken returns the unknown token.
func (wp *WordPiece) GetUnkToken() string { return wp.unkToken }

// GetContinuingSubwordPrefix returns the subword prefix.
func (wp *WordPiece) GetContinuingSubwordPrefix() string { return wp.continuingSubwordPrefix }

// Save writes the vocabulary as vocab.txt in dir, one token per line in id
// order, optionally prefixed by name. It returns the written paths.
func (wp *WordPiece) Save(dir, name string) ([]string, error) {
	vocabName := "vocab.txt"
	if name != "" {
		vocabName = fmt.Sprintf("%s-vocab.txt", name)
	}
	vocabPath := filepath.Join(dir, vocabName)

	type entry struct {
		token string
		id    uint32
	}
	entries := make([]entry, 0, len(wp.vocab))
	for token, id := range wp.vocab {
		entries = append(entries, entry{token: token, id: id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.token)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(vocabPath, []byte(sb.String()), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write vocab file %q", vocabPath)
	}
	return []string{vocabPath}, nil
}
