package wordpiece

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/models/bpe"
)

func testVocab() Vocab {
	return Vocab{"un": 0, "##aff": 1, "##able": 2, "[UNK]": 3}
}

func preToken(value string, start int) api.PreToken {
	return api.PreToken{Value: value, Offsets: api.Offsets{Start: start, End: start + len(value)}}
}

func TestGreedyLongestMatch(t *testing.T) {
	model, err := New(testVocab())
	require.NoError(t, err)

	tokens, err := model.Tokenize([]api.PreToken{preToken("unaffable", 0)})
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, "un", tokens[0].Value)
	assert.Equal(t, uint32(0), tokens[0].ID)
	assert.Equal(t, api.Offsets{Start: 0, End: 2}, tokens[0].Offsets)

	assert.Equal(t, "##aff", tokens[1].Value)
	assert.Equal(t, uint32(1), tokens[1].ID)
	assert.Equal(t, api.Offsets{Start: 2, End: 5}, tokens[1].Offsets)

	assert.Equal(t, "##able", tokens[2].Value)
	assert.Equal(t, uint32(2), tokens[2].ID)
	assert.Equal(t, api.Offsets{Start: 5, End: 9}, tokens[2].Offsets)
}

func TestUnknownWord(t *testing.T) {
	model, err := New(testVocab())
	require.NoError(t, err)

	tokens, err := model.Tokenize([]api.PreToken{preToken("unknowable", 0)})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "[UNK]", tokens[0].Value)
	assert.Equal(t, uint32(3), tokens[0].ID)
	assert.Equal(t, api.Offsets{Start: 0, End: 10}, tokens[0].Offsets)
}

func TestWordOffsetsShift(t *testing.T) {
	model, err := New(testVocab())
	require.NoError(t, err)

	tokens, err := model.Tokenize([]api.PreToken{
		preToken("un", 0),
		preToken("unaffable", 3),
	})
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, api.Offsets{Start: 3, End: 5}, tokens[1].Offsets)
	assert.Equal(t, api.Offsets{Start: 5, End: 8}, tokens[2].Offsets)
	assert.Equal(t, uint32(0), tokens[0].Word)
	assert.Equal(t, uint32(1), tokens[1].Word)
}

func TestMaxInputCharsPerWord(t *testing.T) {
	model, err := NewBuilder().Vocab(testVocab()).MaxInputCharsPerWord(5).Build()
	require.NoError(t, err)

	tokens, err := model.Tokenize([]api.PreToken{preToken("unaffable", 0)})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "[UNK]", tokens[0].Value)
	assert.Equal(t, api.Offsets{Start: 0, End: 9}, tokens[0].Offsets)
}

func TestMissingUnkToken(t *testing.T) {
	model, err := NewBuilder().Vocab(Vocab{"un": 0}).Build()
	require.NoError(t, err)

	_, err = model.Tokenize([]api.PreToken{preToken("xyz", 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrMissingUnkToken)
}

func TestMultiByteWord(t *testing.T) {
	vocab := Vocab{"日本": 0, "##語": 1, "[UNK]": 2}
	model, err := New(vocab)
	require.NoError(t, err)

	tokens, err := model.Tokenize([]api.PreToken{preToken("日本語", 0)})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "日本", tokens[0].Value)
	assert.Equal(t, api.Offsets{Start: 0, End: 6}, tokens[0].Offsets)
	assert.Equal(t, "##語", tokens[1].Value)
	assert.Equal(t, api.Offsets{Start: 6, End: 9}, tokens[1].Offsets)
}

func TestFromBPE(t *testing.T) {
	bpeModel, err := bpe.NewBuilder().
		Vocab(bpe.Vocab{"a": 0, "##b": 1, "<unk>": 2}, nil).
		UnkToken("<unk>").
		ContinuingSubwordPrefix("##").
		Build()
	require.NoError(t, err)

	wp := FromBPE(bpeModel)
	assert.Equal(t, "<unk>", wp.GetUnkToken())
	assert.Equal(t, "##", wp.GetContinuingSubwordPrefix())
	assert.Equal(t, 3, wp.GetVocabSize())
}

func TestReadFileAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	model, err := New(testVocab())
	require.NoError(t, err)

	paths, err := model.Save(dir, "")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	loaded, err := FromFiles(filepath.Join(dir, "vocab.txt")).Build()
	require.NoError(t, err)
	assert.Equal(t, model.GetVocab(), loaded.GetVocab())
}

func TestReadFileDuplicateToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\na\n"), 0o644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrVocabLoad)
}

func TestSerializationRoundTrip(t *testing.T) {
	model, err := New(testVocab())
	require.NoError(t, err)

	data, err := model.MarshalJSON()
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, model.GetVocab(), back.GetVocab())
	assert.Equal(t, "[UNK]", back.GetUnkToken())
	assert.Equal(t, "##", back.GetContinuingSubwordPrefix())
}
