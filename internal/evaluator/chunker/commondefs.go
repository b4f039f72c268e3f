package evalchunker

import (
	"github.com/ipfs-shipyard/cdc-reuse/chunker"
)

type CommonConfig struct {
	GlobalMaxChunkSize int
}

type Initializer func(
	chunkerCLISubArgs []string,
	cfg *CommonConfig,
) (instance chunker.Chunker, initErrorStrings []string)
