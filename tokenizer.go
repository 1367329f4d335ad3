// Package tokenizers implements a subword tokenization pipeline: text is
// normalized, pre-tokenized, run through a model (BPE, WordPiece or
// WordLevel) and post-processed into an Encoding of token ids with full
// offset tracking back into the original input.
//
// A Tokenizer is read-only during Encode and Decode and safe for
// concurrent use; the setters and the token registration methods require
// exclusive access.
package tokenizers

import (
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/decoders"
	"github.com/sebpuetz/tokenizers/models"
	"github.com/sebpuetz/tokenizers/normalizers"
	"github.com/sebpuetz/tokenizers/pretokenizers"
	"github.com/sebpuetz/tokenizers/processors"
)

// InputSequence is one sequence to encode: either a raw string, or text
// the caller already split into words. Pre-split words are encoded one by
// one through the whole pipeline (added-token split, normalization,
// pre-tokenization and the model); their offsets stay relative to each word.
type InputSequence struct {
	raw          string
	preTokenized []string
	isPreSplit   bool
}

// NewInputSequence wraps a raw string.
func NewInputSequence(s string) InputSequence {
	return InputSequence{raw: s}
}

// NewPreTokenizedInputSequence wraps an already pre-tokenized sequence.
func NewPreTokenizedInputSequence(words []string) InputSequence {
	return InputSequence{preTokenized: words, isPreSplit: true}
}

func (s InputSequence) parts() []string {
	if s.isPreSplit {
		return s.preTokenized
	}
	return []string{s.raw}
}

// EncodeInput is the input of Encode: a single sequence or a pair.
type EncodeInput struct {
	sequence InputSequence
	pair     *InputSequence
}

// NewSingleEncodeInput encodes one sequence.
func NewSingleEncodeInput(sequence InputSequence) EncodeInput {
	return EncodeInput{sequence: sequence}
}

// NewDualEncodeInput encodes a sequence pair, the second with type id 1.
func NewDualEncodeInput(sequence, pair InputSequence) EncodeInput {
	return EncodeInput{sequence: sequence, pair: &pair}
}

// Tokenizer assembles the pipeline stages and drives encoding, decoding,
// batching, truncation, padding and (de)serialization.
type Tokenizer struct {
	normalizer    normalizers.Normalizer
	preTokenizer  pretokenizers.PreTokenizer
	model         models.Model
	postProcessor processors.PostProcessor
	decoder       decoders.Decoder

	addedVocabulary *AddedVocabulary

	truncation *TruncationParams
	padding    *PaddingParams
}

// NewTokenizer creates a Tokenizer around the given model, with no other
// stages configured.
func NewTokenizer(model models.Model) *Tokenizer {
	return &Tokenizer{
		model:           model,
		addedVocabulary: NewAddedVocabulary(),
	}
}

// WithNormalizer sets the normalizer.
func (t *Tokenizer) WithNormalizer(n normalizers.Normalizer) *Tokenizer {
	t.normalizer = n
	return t
}

// GetNormalizer returns the configured normalizer, nil if none.
func (t *Tokenizer) GetNormalizer() normalizers.Normalizer { return t.normalizer }

// WithPreTokenizer sets the pre-tokenizer.
func (t *Tokenizer) WithPreTokenizer(p pretokenizers.PreTokenizer) *Tokenizer {
	t.preTokenizer = p
	return t
}

// GetPreTokenizer returns the configured pre-tokenizer, nil if none.
func (t *Tokenizer) GetPreTokenizer() pretokenizers.PreTokenizer { return t.preTokenizer }

// WithModel replaces the model.
func (t *Tokenizer) WithModel(m models.Model) *Tokenizer {
	t.model = m
	return t
}

// GetModel returns the model.
func (t *Tokenizer) GetModel() models.Model { return t.model }

// WithPostProcessor sets the post-processor.
func (t *Tokenizer) WithPostProcessor(p processors.PostProcessor) *Tokenizer {
	t.postProcessor = p
	return t
}

// GetPostProcessor returns the configured post-processor, nil if none.
func (t *Tokenizer) GetPostProcessor() processors.PostProcessor { return t.postProcessor }

// WithDecoder sets the decoder.
func (t *Tokenizer) WithDecoder(d decoders.Decoder) *Tokenizer {
	t.decoder = d
	return t
}

// GetDecoder returns the configured decoder, nil if none.
func (t *Tokenizer) GetDecoder() decoders.Decoder { return t.decoder }

// WithTruncation sets the truncation parameters, nil disables truncation.
func (t *Tokenizer) WithTruncation(params *TruncationParams) *Tokenizer {
	t.truncation = params
	return t
}

// GetTruncation returns the truncation parameters, nil if disabled.
func (t *Tokenizer) GetTruncation() *TruncationParams { return t.truncation }

// WithPadding sets the padding parameters, nil disables padding.
func (t *Tokenizer) WithPadding(params *PaddingParams) *Tokenizer {
	t.padding = params
	return t
}

// GetPadding returns the padding parameters, nil if disabled.
func (t *Tokenizer) GetPadding() *PaddingParams { return t.padding }

// GetAddedVocabulary returns the added-token overlay.
func (t *Tokenizer) GetAddedVocabulary() *AddedVocabulary { return t.addedVocabulary }

// GetVocab returns the vocabulary, optionally including the overlay ids.
func (t *Tokenizer) GetVocab(withAddedTokens bool) map[string]uint32 {
	vocab := make(map[string]uint32, t.model.GetVocabSize()+t.addedVocabulary.Len())
	for token, id := range t.model.GetVocab() {
		vocab[token] = id
	}
	if withAddedTokens {
		for token, id := range t.addedVocabulary.GetVocab() {
			vocab[token] = id
		}
	}
	return vocab
}

// GetVocabSize returns the vocabulary size, optionally including the
// overlay ids.
func (t *Tokenizer) GetVocabSize(withAddedTokens bool) int {
	size := t.model.GetVocabSize()
	if withAddedTokens {
		size += t.addedVocabulary.Len()
	}
	return size
}

// TokenToID resolves a token, overlay first, model second.
func (t *Tokenizer) TokenToID(token string) (uint32, bool) {
	return t.addedVocabulary.TokenToID(token, t.model)
}

// IDToToken resolves an id, overlay first, model second.
func (t *Tokenizer) IDToToken(id uint32) (string, bool) {
	return t.addedVocabulary.IDToToken(id, t.model)
}

// AddTokens registers added tokens and returns how many were new.
func (t *Tokenizer) AddTokens(tokens []AddedToken) int {
	return t.addedVocabulary.AddTokens(tokens, t.model, t.normalizer)
}

// AddSpecialTokens registers special tokens and returns how many were new.
func (t *Tokenizer) AddSpecialTokens(tokens []AddedToken) int {
	return t.addedVocabulary.AddSpecialTokens(tokens, t.model, t.normalizer)
}

// preTokenize runs the pre-tokenizer, treating the whole string as one
// pre-token when none is configured.
func (t *Tokenizer) preTokenize(n *api.NormalizedString) ([]api.PreToken, error) {
	if t.preTokenizer == nil {
		return []api.PreToken{{Value: n.Get(), Offsets: api.Offsets{Start: 0, End: n.Len()}}}, nil
	}
	return t.preTokenizer.PreTokenize(n)
}

// Normalize runs the added-token extraction and normalization over a
// sentence and returns the merged normalized string.
func (t *Tokenizer) Normalize(sentence string) (*api.NormalizedString, error) {
	parts, err := t.addedVocabulary.ExtractAndNormalize(t.normalizer, sentence, t.model)
	if err != nil {
		return nil, err
	}
	merged := api.NewNormalizedString("")
	for _, part := range parts {
		if !part.matched {
			// Pre-tokenizers may rewrite the normalized text, keep that
			// visible in the result.
			if _, err := t.preTokenize(part.normalized); err != nil {
				return nil, err
			}
		}
		merged.MergeWith(part.normalized)
	}
	return merged, nil
}

// encodeSingleSequence runs one sequence through the added-vocabulary
// split, normalization, pre-tokenization and the model, then rewrites all
// offsets back into the original input.
func (t *Tokenizer) encodeSingleSequence(sequence InputSequence, typeID uint32) (api.Encoding, error) {
	var sequenceEncodings []api.Encoding
	for _, subseq := range sequence.parts() {
		parts, err := t.addedVocabulary.ExtractAndNormalize(t.normalizer, subseq, t.model)
		if err != nil {
			return api.Encoding{}, err
		}

		var merged api.Encoding
		offset := 0
		for _, part := range parts {
			var enc api.Encoding
			if part.matched {
				special := uint32(0)
				if part.special {
					special = 1
				}
				enc = api.Encoding{
					IDs:               []uint32{part.id},
					TypeIDs:           []uint32{typeID},
					Tokens:            []string{part.normalized.Get()},
					Words:             []int{0},
					Offsets:           []api.Offsets{{Start: 0, End: part.normalized.Len()}},
					SpecialTokensMask: []uint32{special},
					AttentionMask:     []uint32{1},
				}
			} else {
				preTokens, err := t.preTokenize(part.normalized)
				if err != nil {
					return api.Encoding{}, err
				}
				tokens, err := t.model.Tokenize(preTokens)
				if err != nil {
					return api.Encoding{}, err
				}
				enc = api.NewEncodingFromTokens(tokens, typeID)
			}

			// Convert offsets back into the original referential before
			// shifting by the chunk's position in the whole input.
			for i, o := range enc.Offsets {
				if converted, ok := part.normalized.ConvertOffsets(o); ok {
					o = converted
				}
				enc.Offsets[i] = api.Offsets{Start: o.Start + offset, End: o.End + offset}
			}
			offset += part.normalized.LenOriginal()
			merged.MergeWith(enc, false)
		}
		sequenceEncodings = append(sequenceEncodings, merged)
	}
	return api.MergeEncodings(sequenceEncodings, !sequence.isPreSplit), nil
}

// Encode runs the full pipeline over the input and returns the final
// encoding, truncated, post-processed and padded as configured.
func (t *Tokenizer) Encode(input EncodeInput, addSpecialTokens bool) (api.Encoding, error) {
	encoding, err := t.encodeSingleSequence(input.sequence, 0)
	if err != nil {
		return api.Encoding{}, err
	}
	var pairEncoding *api.Encoding
	if input.pair != nil {
		pe, err := t.encodeSingleSequence(*input.pair, 1)
		if err != nil {
			return api.Encoding{}, err
		}
		pairEncoding = &pe
	}
	return t.PostProcess(encoding, pairEncoding, addSpecialTokens)
}

// EncodeBatch encodes all inputs, in parallel when enabled, preserving the
// input order. With padding configured the whole batch is padded to a
// common length afterwards.
func (t *Tokenizer) EncodeBatch(inputs []EncodeInput, addSpecialTokens bool) ([]api.Encoding, error) {
	encodings := make([]api.Encoding, len(inputs))
	if parallelismEnabled() {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range inputs {
			i := i
			g.Go(func() error {
				enc, err := t.Encode(inputs[i], addSpecialTokens)
				if err != nil {
					return err
				}
				encodings[i] = enc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range inputs {
			enc, err := t.Encode(inputs[i], addSpecialTokens)
			if err != nil {
				return nil, err
			}
			encodings[i] = enc
		}
	}

	if t.padding != nil {
		PadEncodings(encodings, *t.padding)
	}
	return encodings, nil
}

// PostProcess truncates, post-processes and pads an encoding pair into the
// final encoding.
func (t *Tokenizer) PostProcess(encoding api.Encoding, pairEncoding *api.Encoding, addSpecialTokens bool) (api.Encoding, error) {
	if t.truncation != nil {
		params := *t.truncation
		if addSpecialTokens && t.postProcessor != nil {
			params.MaxLength -= t.postProcessor.AddedTokens(pairEncoding != nil)
		}
		var err error
		encoding, pairEncoding, err = TruncateEncodings(encoding, pairEncoding, params)
		if err != nil {
			return api.Encoding{}, err
		}
	}

	var final api.Encoding
	var err error
	if t.postProcessor != nil {
		final, err = t.postProcessor.Process(encoding, pairEncoding, addSpecialTokens)
	} else {
		final, err = processors.DefaultProcess(encoding, pairEncoding, addSpecialTokens)
	}
	if err != nil {
		return api.Encoding{}, err
	}

	if t.padding != nil {
		single := []api.Encoding{final}
		PadEncodings(single, *t.padding)
		final = single[0]
	}
	return final, nil
}

// Decode turns ids back into a string. The added-token overlay wins over
// the model, special tokens are dropped when requested, and the configured
// decoder joins the pieces (falling back to single spaces).
func (t *Tokenizer) Decode(ids []uint32, skipSpecialTokens bool) (string, error) {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		token, ok := t.addedVocabulary.IDToToken(id, t.model)
		if !ok {
			continue
		}
		if skipSpecialTokens && t.addedVocabulary.IsSpecialToken(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	if t.decoder != nil {
		return t.decoder.Decode(tokens)
	}
	return strings.Join(tokens, " "), nil
}

// DecodeBatch decodes all id sequences, in parallel when enabled,
// preserving the input order.
func (t *Tokenizer) DecodeBatch(sequences [][]uint32, skipSpecialTokens bool) ([]string, error) {
	sentences := make([]string, len(sequences))
	if parallelismEnabled() {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range sequences {
			i := i
			g.Go(func() error {
				s, err := t.Decode(sequences[i], skipSpecialTokens)
				if err != nil {
					return err
				}
				sentences[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return sentences, nil
	}
	for i := range sequences {
		s, err := t.Decode(sequences[i], skipSpecialTokens)
		if err != nil {
			return nil, err
		}
		sentences[i] = s
	}
	return sentences, nil
}
