package tokenizers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebpuetz/tokenizers/api"
)

func TestPadEncodingsBatchLongest(t *testing.T) {
	encodings := []api.Encoding{encodingOfLen(2), encodingOfLen(5), encodingOfLen(3)}
	PadEncodings(encodings, PaddingParams{
		Strategy:  BatchLongest(),
		Direction: api.PadRight,
		PadID:     0,
		PadToken:  "[PAD]",
	})
	for _, e := range encodings {
		assert.Equal(t, 5, e.Len())
	}
}

func TestPadEncodingsFixed(t *testing.T) {
	encodings := []api.Encoding{encodingOfLen(2)}
	PadEncodings(encodings, PaddingParams{
		Strategy:  Fixed(8),
		Direction: api.PadLeft,
		PadID:     7,
		PadToken:  "[PAD]",
	})
	assert.Equal(t, 8, encodings[0].Len())
	assert.Equal(t, uint32(7), encodings[0].IDs[0])
}

func TestPadEncodingsIncludesOverflowing(t *testing.T) {
	e := encodingOfLen(6)
	require.NoError(t, e.Truncate(4, 0))
	encodings := []api.Encoding{e}
	PadEncodings(encodings, PaddingParams{
		Strategy:  Fixed(4),
		Direction: api.PadRight,
		PadID:     0,
		PadToken:  "[PAD]",
	})
	require.Len(t, encodings[0].Overflowing, 1)
	assert.Equal(t, 4, encodings[0].Overflowing[0].Len())
}

func TestPaddingParamsJSON(t *testing.T) {
	params := PaddingParams{
		Strategy:  Fixed(32),
		Direction: api.PadLeft,
		PadID:     1,
		PadTypeID: 0,
		PadToken:  "[PAD]",
	}
	data, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategy":{"Fixed":32},"direction":"left","pad_id":1,"pad_type_id":0,"pad_token":"[PAD]"}`, string(data))

	var back PaddingParams
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, params, back)
}

func TestPaddingStrategyBatchLongestJSON(t *testing.T) {
	data, err := json.Marshal(BatchLongest())
	require.NoError(t, err)
	assert.Equal(t, `"BatchLongest"`, string(data))

	var s PaddingStrategy
	require.NoError(t, json.Unmarshal(data, &s))
	_, fixed := s.IsFixed()
	assert.False(t, fixed)
}

func TestPaddingStrategyInvalidJSON(t *testing.T) {
	var s PaddingStrategy
	err := json.Unmarshal([]byte(`"Sideways"`), &s)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrSerialization)
}
