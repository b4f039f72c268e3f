package ipfs

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	boxochunker "github.com/ipfs/boxo/chunker"
	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	evalchunker "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
)

// go-ipfs buzhash bounds, not exported by boxo
const (
	goIpfsBuzhashMin = 128 << 10
	goIpfsBuzhashMax = 512 << 10
)

type config struct {
	Spec string `getopt:"--spec=chunker-string  A go-ipfs chunker specification: 'size-{bytes}', 'rabin[-{min}-{avg}-{max}]' or 'buzhash' (default: buzhash)"`
}

func NewChunker(
	args []string,
	cfg *evalchunker.CommonConfig,
) (_ chunker.Chunker, initErrs []string) {

	c := ipfsChunker{config: config{Spec: "buzhash"}}

	optSet := getopt.New()
	if err := options.RegisterSet("", &c.config, optSet); err != nil {
		return nil, []string{fmt.Sprintf("option set registration failed: %s", err)}
	}

	// on nil-args the "error" is the help text to be incorporated into
	// the larger help display
	if args == nil {
		return nil, util.SubHelp(
			"Delegates to the splitters shipped with go-ipfs ( via boxo ), allowing\n"+
				"direct comparison with what 'ipfs add --chunker=...' would produce.",
			optSet,
		)
	}

	if initErrs = util.ArgParse(args, optSet); len(initErrs) > 0 {
		return nil, initErrs
	}

	// validate the spec once upfront, every Split() re-parses it
	if _, err := boxochunker.FromString(bytes.NewReader(nil), c.Spec); err != nil {
		return nil, []string{fmt.Sprintf("invalid go-ipfs chunker spec '%s': %s", c.Spec, err)}
	}

	_, max, err := specBounds(c.Spec)
	if err != nil {
		return nil, []string{fmt.Sprintf("invalid go-ipfs chunker spec '%s': %s", c.Spec, err)}
	}
	if max > cfg.GlobalMaxChunkSize {
		initErrs = append(initErrs, fmt.Sprintf(
			"go-ipfs chunker '%s' emits chunks of up to %s bytes, exceeding the maximum chunk size of %s",
			c.Spec,
			util.Commify(max),
			util.Commify(cfg.GlobalMaxChunkSize),
		))
	}

	return &c, initErrs
}

// specBounds returns the smallest and largest non-final chunk the given
// go-ipfs spec can emit. It mirrors the parsing boxo.FromString does.
func specBounds(spec string) (min, max int, err error) {
	switch {

	case spec == "" || spec == "default":
		return 1, int(boxochunker.DefaultBlockSize), nil

	case spec == "buzhash":
		return goIpfsBuzhashMin, goIpfsBuzhashMax, nil

	case strings.HasPrefix(spec, "size-"):
		n, err := strconv.Atoi(spec[len("size-"):])
		if err != nil {
			return 0, 0, err
		}
		return 1, n, nil

	case spec == "rabin" || strings.HasPrefix(spec, "rabin-"):
		parts := strings.Split(spec, "-")[1:]
		vals := make([]int, len(parts))
		for i := range parts {
			if vals[i], err = strconv.Atoi(parts[i]); err != nil {
				return 0, 0, err
			}
		}
		switch len(vals) {
		case 0:
			avg := int(boxochunker.DefaultBlockSize)
			return avg / 3, avg + avg/2, nil
		case 1:
			return vals[0] / 3, vals[0] + vals[0]/2, nil
		case 3:
			return vals[0], vals[2], nil
		}
	}

	return 0, 0, fmt.Errorf("unrecognized spec '%s'", spec)
}
