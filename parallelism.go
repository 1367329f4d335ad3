package tokenizers

import (
	"os"
	"strings"
)

// EnvParallelism is the environment variable gating batch parallelism.
// Setting it to "0", "false" or "off" makes EncodeBatch and DecodeBatch
// run sequentially; anything else (including unset) keeps them parallel.
const EnvParallelism = "TOKENIZERS_PARALLELISM"

func parallelismEnabled() bool {
	switch strings.ToLower(os.Getenv(EnvParallelism)) {
	case "0", "false", "off":
		return false
	}
	return true
}
