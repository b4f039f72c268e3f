package fastcdc

import (
	"fmt"
	"math/bits"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	evalchunker "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"
)

const minAvgSize = 64

func NewChunker(
	args []string,
	cfg *evalchunker.CommonConfig,
) (_ chunker.Chunker, initErrs []string) {

	c := fastcdcChunker{
		config: config{
			AvgSize:       32 * 1024,
			Normalization: 2,
		},
	}

	optSet := getopt.New()
	if err := options.RegisterSet("", &c.config, optSet); err != nil {
		return nil, []string{fmt.Sprintf("option set registration failed: %s", err)}
	}

	// on nil-args the "error" is the help text to be incorporated into
	// the larger help display
	if args == nil {
		return nil, util.SubHelp(
			"FastCDC: content defined chunking driven by a gear-based rolling hash.\n"+
				"Boundaries are searched with a stricter mask below the average size and\n"+
				"a looser one past it (normalized chunking), narrowing the size spread.",
			optSet,
		)
	}

	// bail early if getopt fails
	if initErrs = util.ArgParse(args, optSet); len(initErrs) > 0 {
		return nil, initErrs
	}

	if c.AvgSize < minAvgSize || c.AvgSize > cfg.GlobalMaxChunkSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"value for 'avg-size' must be in the range [%d:%d]",
			minAvgSize,
			cfg.GlobalMaxChunkSize,
		))
		return nil, initErrs
	}

	if !optSet.IsSet("min-size") {
		c.MinSize = c.AvgSize / 2
	}
	if !optSet.IsSet("max-size") {
		c.MaxSize = c.AvgSize * 2
	}

	if c.MinSize < 1 || c.MinSize >= c.AvgSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"value for 'min-size' must be in the range [1:%d)",
			c.AvgSize,
		))
	}
	if c.MaxSize <= c.AvgSize || c.MaxSize > cfg.GlobalMaxChunkSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"value for 'max-size' must be in the range (%d:%d]",
			c.AvgSize,
			cfg.GlobalMaxChunkSize,
		))
	}
	if c.Normalization < 0 || c.Normalization > 3 {
		initErrs = append(initErrs,
			"value for 'normalization' must be in the range [0:3]",
		)
	}

	if len(initErrs) > 0 {
		return nil, initErrs
	}

	avgBits := bits.Len(uint(c.AvgSize)) - 1
	c.maskS = spreadMask(avgBits + c.Normalization)
	c.maskL = spreadMask(avgBits - c.Normalization)

	return &c, nil
}

// spreadMask distributes n set bits evenly across a 64 bit word
func spreadMask(n int) uint64 {
	shift := (64-n)/(n-1) + 1

	mask := uint64(1)
	for i := 0; i < n-1; i++ {
		mask = (mask << uint(shift)) | 1
	}
	return mask
}
