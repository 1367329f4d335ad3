package tokenizers

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// TruncationStrategy selects which side of an input pair gives up tokens.
type TruncationStrategy int

const (
	// LongestFirst drops from the tail of whichever sequence is longer.
	LongestFirst TruncationStrategy = iota
	// OnlyFirst drops from the first sequence only.
	OnlyFirst
	// OnlySecond drops from the second sequence only.
	OnlySecond
)

var truncationStrategyNames = map[TruncationStrategy]string{
	LongestFirst: "longest_first",
	OnlyFirst:    "only_first",
	OnlySecond:   "only_second",
}

func (s TruncationStrategy) String() string { return truncationStrategyNames[s] }

// MarshalJSON writes the strategy in its serialized snake_case form.
func (s TruncationStrategy) MarshalJSON() ([]byte, error) {
	name, ok := truncationStrategyNames[s]
	if !ok {
		return nil, errors.Wrapf(api.ErrSerialization, "unknown truncation strategy %d", s)
	}
	return json.Marshal(name)
}

// UnmarshalJSON reads the serialized snake_case form.
func (s *TruncationStrategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.Wrap(api.ErrSerialization, err.Error())
	}
	for strategy, n := range truncationStrategyNames {
		if n == name {
			*s = strategy
			return nil
		}
	}
	return errors.Wrapf(api.ErrSerialization, "unknown truncation strategy %q", name)
}

// TruncationParams configures truncation of encoded sequences.
type TruncationParams struct {
	MaxLength int                `json:"max_length"`
	Strategy  TruncationStrategy `json:"strategy"`
	Stride    int                `json:"stride"`
}

// TruncateEncodings cuts the encoding (and its optional pair) down so the
// total length fits params.MaxLength. Dropped tails reappear as
// overflowing encodings of each truncated sequence, sliding by that
// sequence's truncated length minus Stride.
func TruncateEncodings(encoding api.Encoding, pair *api.Encoding, params TruncationParams) (api.Encoding, *api.Encoding, error) {
	if params.MaxLength <= 0 {
		return encoding, pair, errors.Wrapf(api.ErrTruncation, "max length must be positive, got %d", params.MaxLength)
	}
	totalLength := encoding.Len()
	if pair != nil {
		totalLength += pair.Len()
	}
	if totalLength <= params.MaxLength {
		return encoding, pair, nil
	}

	switch params.Strategy {
	case LongestFirst:
		lenA, lenB := encoding.Len(), 0
		if pair != nil {
			lenB = pair.Len()
		}
		for toRemove := totalLength - params.MaxLength; toRemove > 0; toRemove-- {
			if lenA >= lenB {
				lenA--
			} else {
				lenB--
			}
		}
		if err := encoding.Truncate(lenA, params.Stride); err != nil {
			return encoding, pair, err
		}
		if pair != nil {
			if err := pair.Truncate(lenB, params.Stride); err != nil {
				return encoding, pair, err
			}
		}
	case OnlyFirst, OnlySecond:
		target, other := &encoding, pair
		if params.Strategy == OnlySecond {
			if pair == nil {
				return encoding, pair, errors.Wrap(api.ErrTruncation, "only_second strategy requires a pair sequence")
			}
			target, other = pair, &encoding
		}
		otherLength := 0
		if other != nil {
			otherLength = other.Len()
		}
		if otherLength > params.MaxLength {
			return encoding, pair, errors.Wrapf(api.ErrTruncation,
				"sequence too short: the untruncated sequence holds %d tokens but only %d fit", otherLength, params.MaxLength)
		}
		if err := target.Truncate(params.MaxLength-otherLength, params.Stride); err != nil {
			return encoding, pair, err
		}
	}
	return encoding, pair, nil
}
