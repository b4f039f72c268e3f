package fixedsize

import (
	"fmt"
	"strconv"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	evalchunker "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
)

func NewChunker(
	args []string,
	cfg *evalchunker.CommonConfig,
) (_ chunker.Chunker, initErrs []string) {

	// on nil-args the "error" is the help text to be incorporated into
	// the larger help display
	if args == nil {
		return nil, util.SubHelp(
			"Splits buffer into equally sized chunks, ignoring content. Serves as the\n"+
				"non-content-defined baseline: any insertion shifts every later boundary.\n"+
				"Requires a single parameter: the size of each chunk in bytes\n",
			nil,
		)
	}

	c := fixedSizeChunker{}

	if len(args) != 2 {
		initErrs = append(initErrs, "chunker requires an integer argument, the size of each chunk in bytes")
	} else {
		sizearg, err := strconv.ParseUint(
			args[1][2:], // stripping off '--'
			10,
			25,
		)
		if err != nil {
			initErrs = append(initErrs, fmt.Sprintf("argument parse failed: %s", err))
		} else if sizearg == 0 {
			initErrs = append(initErrs, "chunk size must be positive")
		} else {
			c.size = int(sizearg)
		}
	}

	if c.size > cfg.GlobalMaxChunkSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"provided chunk size '%s' exceeds specified maximum chunk size '%s'",
			util.Commify(c.size),
			util.Commify(cfg.GlobalMaxChunkSize),
		))
	}

	return &c, initErrs
}
