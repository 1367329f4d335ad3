package tokenizers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/decoders"
	"github.com/sebpuetz/tokenizers/models/wordlevel"
	"github.com/sebpuetz/tokenizers/models/wordpiece"
	"github.com/sebpuetz/tokenizers/normalizers"
	"github.com/sebpuetz/tokenizers/pretokenizers"
	"github.com/sebpuetz/tokenizers/processors"
)

func bertTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	model, err := wordpiece.New(wordpiece.Vocab{
		"hello": 0, "world": 1, "test": 2, "##ing": 3, "[UNK]": 4,
	})
	require.NoError(t, err)
	return NewTokenizer(model).
		WithNormalizer(normalizers.NewBertNormalizer(true, false, boolPtr(false), true)).
		WithPreTokenizer(pretokenizers.BertPreTokenizer{})
}

func encodeString(t *testing.T, tok *Tokenizer, input string, addSpecial bool) api.Encoding {
	t.Helper()
	enc, err := tok.Encode(NewSingleEncodeInput(NewInputSequence(input)), addSpecial)
	require.NoError(t, err)
	return enc
}

func assertEncodingInvariants(t *testing.T, e *api.Encoding, input string) {
	t.Helper()
	n := e.Len()
	require.Len(t, e.TypeIDs, n)
	require.Len(t, e.Tokens, n)
	require.Len(t, e.Words, n)
	require.Len(t, e.Offsets, n)
	require.Len(t, e.SpecialTokensMask, n)
	require.Len(t, e.AttentionMask, n)
	for _, o := range e.Offsets {
		assert.LessOrEqual(t, o.Start, o.End)
		assert.LessOrEqual(t, o.End, len(input))
	}
}

func TestEncodeBasic(t *testing.T) {
	tok := bertTokenizer(t)
	enc := encodeString(t, tok, "Hello world", false)

	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)
	assert.Equal(t, []uint32{0, 1}, enc.IDs)
	// Offsets point back into the original, un-lowercased input.
	assert.Equal(t, []api.Offsets{{Start: 0, End: 5}, {Start: 6, End: 11}}, enc.Offsets)
	assert.Equal(t, []int{0, 1}, enc.Words)
	assertEncodingInvariants(t, &enc, "Hello world")
}

func TestEncodeSubwords(t *testing.T) {
	tok := bertTokenizer(t)
	enc := encodeString(t, tok, "testing", false)

	assert.Equal(t, []string{"test", "##ing"}, enc.Tokens)
	assert.Equal(t, []api.Offsets{{Start: 0, End: 4}, {Start: 4, End: 7}}, enc.Offsets)
	assert.Equal(t, []int{0, 0}, enc.Words)
}

func TestEncodeEmptyInput(t *testing.T) {
	tok := bertTokenizer(t)
	enc := encodeString(t, tok, "", false)
	assert.Equal(t, 0, enc.Len())
	assertEncodingInvariants(t, &enc, "")
}

func TestEncodePair(t *testing.T) {
	tok := bertTokenizer(t)
	enc, err := tok.Encode(NewDualEncodeInput(
		NewInputSequence("hello"),
		NewInputSequence("world"),
	), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)
	assert.Equal(t, []uint32{0, 1}, enc.TypeIDs)
}

func TestEncodePreTokenizedInput(t *testing.T) {
	tok := bertTokenizer(t)
	enc, err := tok.Encode(NewSingleEncodeInput(
		NewPreTokenizedInputSequence([]string{"Hello", "world"}),
	), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)
	assert.Equal(t, []int{0, 1}, enc.Words)
	// Offsets are per element for pre-tokenized input.
	assert.Equal(t, []api.Offsets{{Start: 0, End: 5}, {Start: 0, End: 5}}, enc.Offsets)
}

func TestAddedSpecialTokenShortCircuitsPipeline(t *testing.T) {
	tok := bertTokenizer(t)
	added := tok.AddSpecialTokens([]AddedToken{NewAddedToken("[SEP]", true)})
	require.Equal(t, 1, added)

	input := "hello[SEP]world"
	enc := encodeString(t, tok, input, false)

	require.Equal(t, []string{"hello", "[SEP]", "world"}, enc.Tokens)
	assert.Equal(t, []uint32{0, 1, 0}, enc.SpecialTokensMask)
	// The special token's offsets are its byte position in the input,
	// untouched by normalization.
	sepStart := strings.Index(input, "[SEP]")
	assert.Equal(t, api.Offsets{Start: sepStart, End: sepStart + len("[SEP]")}, enc.Offsets[1])
	assertEncodingInvariants(t, &enc, input)
}

func TestAddSpecialTokensTwice(t *testing.T) {
	tok := bertTokenizer(t)
	require.Equal(t, 1, tok.AddSpecialTokens([]AddedToken{NewAddedToken("[SEP]", true)}))
	require.Equal(t, 0, tok.AddSpecialTokens([]AddedToken{NewAddedToken("[SEP]", true)}))
	assert.Equal(t, tok.GetVocabSize(false)+1, tok.GetVocabSize(true))
}

func TestEncodeBatchMatchesEncode(t *testing.T) {
	tok := bertTokenizer(t)
	inputs := []string{"Hello world", "testing", "hello testing world", ""}
	batchInputs := make([]EncodeInput, len(inputs))
	for i, s := range inputs {
		batchInputs[i] = NewSingleEncodeInput(NewInputSequence(s))
	}

	batch, err := tok.EncodeBatch(batchInputs, false)
	require.NoError(t, err)
	require.Len(t, batch, len(inputs))
	for i, input := range inputs {
		single := encodeString(t, tok, input, false)
		assert.Equal(t, single, batch[i], "input %q", input)
	}
}

func TestEncodeBatchSequentialMatchesParallel(t *testing.T) {
	tok := bertTokenizer(t)
	inputs := []EncodeInput{
		NewSingleEncodeInput(NewInputSequence("Hello world")),
		NewSingleEncodeInput(NewInputSequence("testing")),
	}

	parallel, err := tok.EncodeBatch(inputs, false)
	require.NoError(t, err)

	t.Setenv(EnvParallelism, "false")
	sequential, err := tok.EncodeBatch(inputs, false)
	require.NoError(t, err)
	assert.Equal(t, parallel, sequential)
}

func TestBatchPadding(t *testing.T) {
	model, err := wordpiece.New(wordpiece.Vocab{
		"a": 1, "longer": 2, "string": 3, "[UNK]": 4, "[PAD]": 0,
	})
	require.NoError(t, err)
	tok := NewTokenizer(model).
		WithPreTokenizer(pretokenizers.Whitespace{}).
		WithPadding(&PaddingParams{
			Strategy:  BatchLongest(),
			Direction: api.PadRight,
			PadID:     0,
			PadTypeID: 0,
			PadToken:  "[PAD]",
		})

	batch, err := tok.EncodeBatch([]EncodeInput{
		NewSingleEncodeInput(NewInputSequence("a")),
		NewSingleEncodeInput(NewInputSequence("a longer string")),
	}, false)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, batch[1].Len(), batch[0].Len())
	assert.Equal(t, []uint32{1, 0, 0}, batch[0].IDs)
	assert.Equal(t, []uint32{1, 0, 0}, batch[0].AttentionMask)
	assert.Equal(t, []uint32{0, 1, 1}, batch[0].SpecialTokensMask)
	assert.Equal(t, []int{0, api.NoWord, api.NoWord}, batch[0].Words)
}

func TestFixedPaddingOnSingleEncode(t *testing.T) {
	tok := bertTokenizer(t).WithPadding(&PaddingParams{
		Strategy:  Fixed(5),
		Direction: api.PadRight,
		PadID:     9,
		PadToken:  "[PAD]",
	})
	enc := encodeString(t, tok, "hello", false)
	assert.Equal(t, 5, enc.Len())
	assert.Equal(t, []uint32{0, 9, 9, 9, 9}, enc.IDs)
}

func TestTruncationWithPostProcessorBudget(t *testing.T) {
	tok := bertTokenizer(t).
		WithPostProcessor(processors.NewBertProcessing(
			processors.SpecialToken{Value: "[SEP]", ID: 11},
			processors.SpecialToken{Value: "[CLS]", ID: 10},
		)).
		WithTruncation(&TruncationParams{MaxLength: 4, Strategy: LongestFirst})

	enc := encodeString(t, tok, "hello world testing hello world", true)
	// Two slots go to [CLS] and [SEP].
	assert.Equal(t, 4, enc.Len())
	assert.Equal(t, "[CLS]", enc.Tokens[0])
	assert.Equal(t, "[SEP]", enc.Tokens[3])
}

func TestDecode(t *testing.T) {
	tok := bertTokenizer(t)
	out, err := tok.Decode([]uint32{0, 1}, false)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestDecodeWithDecoder(t *testing.T) {
	tok := bertTokenizer(t).WithDecoder(decoders.NewWordPiece("##", false))
	out, err := tok.Decode([]uint32{2, 3}, false)
	require.NoError(t, err)
	assert.Equal(t, "testing", out)
}

func TestDecodeSkipsSpecialTokens(t *testing.T) {
	tok := bertTokenizer(t)
	tok.AddSpecialTokens([]AddedToken{NewAddedToken("[SEP]", true)})
	sepID, ok := tok.TokenToID("[SEP]")
	require.True(t, ok)

	out, err := tok.Decode([]uint32{0, sepID, 1}, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	out, err = tok.Decode([]uint32{0, sepID, 1}, false)
	require.NoError(t, err)
	assert.Equal(t, "hello [SEP] world", out)
}

func TestDecodeBatch(t *testing.T) {
	tok := bertTokenizer(t)
	out, err := tok.DecodeBatch([][]uint32{{0}, {1}, {0, 1}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world", "hello world"}, out)
}

func TestRoundTripIdentityPipeline(t *testing.T) {
	// With no normalizer and a character-preserving pre-tokenizer the
	// encode/decode round trip is the identity.
	vocab := wordlevel.Vocab{"the": 0, "quick": 1, "fox": 2, "<unk>": 3}
	tok := NewTokenizer(wordlevel.New(vocab, "")).
		WithPreTokenizer(pretokenizers.Whitespace{})

	input := "the quick fox"
	enc := encodeString(t, tok, input, false)
	out, err := tok.Decode(enc.IDs, true)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestTokenIDLookupsUseOverlay(t *testing.T) {
	tok := bertTokenizer(t)
	tok.AddTokens([]AddedToken{NewAddedToken("<tag>", false)})

	id, ok := tok.TokenToID("<tag>")
	require.True(t, ok)
	assert.Equal(t, uint32(tok.GetModel().GetVocabSize()), id)

	token, ok := tok.IDToToken(id)
	require.True(t, ok)
	assert.Equal(t, "<tag>", token)

	vocab := tok.GetVocab(true)
	assert.Contains(t, vocab, "<tag>")
	assert.NotContains(t, tok.GetVocab(false), "<tag>")
}

func TestNormalize(t *testing.T) {
	tok := bertTokenizer(t)
	ns, err := tok.Normalize("Hello WORLD")
	require.NoError(t, err)
	assert.Equal(t, "hello world", ns.Get())
	assert.Equal(t, "Hello WORLD", ns.GetOriginal())
}
