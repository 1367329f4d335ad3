package tokenizers

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// PaddingStrategy selects the length encodings are padded to: the longest
// encoding of the batch, or a fixed size.
type PaddingStrategy struct {
	fixed int
}

// BatchLongest pads every encoding of a batch to the longest one.
func BatchLongest() PaddingStrategy { return PaddingStrategy{fixed: 0} }

// Fixed pads every encoding to the given size.
func Fixed(size int) PaddingStrategy { return PaddingStrategy{fixed: size} }

// IsFixed returns the fixed size, ok=false for BatchLongest.
func (s PaddingStrategy) IsFixed() (int, bool) {
	return s.fixed, s.fixed > 0
}

// MarshalJSON writes either "BatchLongest" or {"Fixed": n}.
func (s PaddingStrategy) MarshalJSON() ([]byte, error) {
	if size, ok := s.IsFixed(); ok {
		return json.Marshal(map[string]int{"Fixed": size})
	}
	return json.Marshal("BatchLongest")
}

// UnmarshalJSON reads either "BatchLongest" or {"Fixed": n}.
func (s *PaddingStrategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name != "BatchLongest" {
			return errors.Wrapf(api.ErrSerialization, "unknown padding strategy %q", name)
		}
		*s = BatchLongest()
		return nil
	}
	var fixed struct {
		Fixed *int `json:"Fixed"`
	}
	if err := json.Unmarshal(data, &fixed); err != nil || fixed.Fixed == nil {
		return errors.Wrap(api.ErrSerialization, "invalid padding strategy")
	}
	*s = Fixed(*fixed.Fixed)
	return nil
}

// PaddingParams configures padding of encoded sequences.
type PaddingParams struct {
	Strategy  PaddingStrategy      `json:"strategy"`
	Direction api.PaddingDirection `json:"direction"`
	PadID     uint32               `json:"pad_id"`
	PadTypeID uint32               `json:"pad_type_id"`
	PadToken  string               `json:"pad_token"`
}

// PadEncodings pads every encoding of the batch (including overflowing
// entries) to the target length of the strategy.
func PadEncodings(encodings []api.Encoding, params PaddingParams) {
	if len(encodings) == 0 {
		return
	}
	target, fixed := params.Strategy.IsFixed()
	if !fixed {
		for i := range encodings {
			if l := encodings[i].Len(); l > target {
				target = l
			}
		}
	}
	for i := range encodings {
		encodings[i].Pad(target, params.PadID, params.PadTypeID, params.PadToken, params.Direction)
	}
}
