package buzhash

import (
	"fmt"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	evalchunker "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"
)

func NewChunker(
	args []string,
	cfg *evalchunker.CommonConfig,
) (_ chunker.Chunker, initErrs []string) {

	c := buzhashChunker{
		config: config{
			MaskBits: 14,
		},
		xvName: "xorshift-32",
	}

	optSet := getopt.New()
	if err := options.RegisterSet("", &c.config, optSet); err != nil {
		return nil, []string{fmt.Sprintf("option set registration failed: %s", err)}
	}
	optSet.FlagLong(&c.xvName, "hash-table", 0, "The hash table to use, one of: "+util.AvailableMapKeys(hashTables), "name")

	// on nil-args the "error" is the help text to be incorporated into
	// the larger help display
	if args == nil {
		return nil, util.SubHelp(
			"Chunker based on hashing by cyclic polynomial over a 32 byte window,\n"+
				"similar to the one used in 'attic-backup'. As source of \"hashing\" uses\n"+
				"a predefined table of values selectable via the hash-table option.",
			optSet,
		)
	}

	// bail early if getopt fails
	if initErrs = util.ArgParse(args, optSet); len(initErrs) > 0 {
		return nil, initErrs
	}

	if c.MaskBits < 5 || c.MaskBits > 22 {
		initErrs = append(initErrs,
			"value for 'state-mask-bits' must be in the range [5:22]",
		)
		return nil, initErrs
	}
	c.mask = 1<<uint(c.MaskBits) - 1

	if c.TargetValue > uint64(c.mask) {
		initErrs = append(initErrs, fmt.Sprintf(
			"value for 'state-target' can not exceed the state mask %#x",
			c.mask,
		))
	}

	if !optSet.IsSet("min-size") {
		c.MinSize = 1 << uint(c.MaskBits-2)
		if c.MinSize < windowSize {
			c.MinSize = windowSize
		}
	}
	if !optSet.IsSet("max-size") {
		c.MaxSize = 1 << uint(c.MaskBits+2)
	}

	if c.MinSize < windowSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"value for 'min-size' must be at least the window size of %d bytes",
			windowSize,
		))
	}
	if c.MaxSize > cfg.GlobalMaxChunkSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"value for 'max-size' exceeds the maximum chunk size of %s",
			util.Commify(cfg.GlobalMaxChunkSize),
		))
	}
	if c.MinSize >= c.MaxSize {
		initErrs = append(initErrs,
			"value for 'max-size' must be larger than 'min-size'",
		)
	}

	var exists bool
	if c.xv, exists = hashTables[c.xvName]; !exists {
		initErrs = append(initErrs, fmt.Sprintf(
			"unknown hash-table '%s' requested, available names are: %s",
			c.xvName,
			util.AvailableMapKeys(hashTables),
		))
	}

	if len(initErrs) > 0 {
		return nil, initErrs
	}

	c.minSansPreheat = c.MinSize - windowSize

	return &c, nil
}
