package evaluator

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"github.com/pborman/options"
	"github.com/sirupsen/logrus"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/constants"
	evalblock "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/block"
	evalchunker "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/buzhash"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/fastcdc"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/fixedsize"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/ipfs"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/dataset"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/encoder"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
)

var availableChunkers = map[string]evalchunker.Initializer{
	"fastcdc":    fastcdc.NewChunker,
	"buzhash":    buzhash.NewChunker,
	"fixed-size": fixedsize.NewChunker,
	"ipfs":       ipfs.NewChunker,
}

const (
	emNone         = "none"
	emStatsText    = "stats-text"
	emStatsJsonl   = "stats-jsonl"
	emReportsJsonl = "reports-jsonl"
)

// where the CLI initial error messages go
var argParseErrOut io.Writer = os.Stderr

type config struct {
	optSet *getopt.Set

	// where to output
	emitters map[string]io.Writer

	//
	// Bulk of CLI options definition starts here, the rest further down in initArgvParser()
	//

	Help    bool `getopt:"-h --help             Display basic help"`
	HelpAll bool `getopt:"--help-all            Display help including options of individual chunkers"`

	emittersStdErr []string // Emitter spec: option/helptext in initArgvParser
	emittersStdOut []string // Emitter spec: option/helptext in initArgvParser

	// no-option-attached, parsing error accumulator
	erroredChunkers []string

	ChangeSize         int    `getopt:"--change-size=count     Amount of materials appended, inserted or modified. Default:"`
	ChangeOffset       int    `getopt:"--change-offset=index   Position of inserted or modified materials, -1 selects the middle of the dataset. Default:"`
	Seed               uint64 `getopt:"--seed=uint64           Seed of the synthetic material generator. Default:"`
	Workers            int    `getopt:"--workers=count         Amount of before/after pairs evaluated concurrently. Default:"`
	GlobalMaxChunkSize int    `getopt:"--max-chunk-size=bytes  Maximum chunk size any chunker may be configured to emit. Default:"`
	HashBits           int    `getopt:"--hash-bits=bits        Amount of bits taken from *start* of the hash output. Default:"`
	StoreDir           string `getopt:"--store-dir=path        Persist blocks in a badger database at this location instead of memory"`
	PlotDir            string `getopt:"--plot-dir=path         Write one bar chart per dataset size and scenario into this directory"`
	PlotFormat         string `getopt:"--plot-format=ext       Chart file format, one of 'svg', 'png', 'pdf'. Default:"`
	PlanFile           string `getopt:"--plan=file.yaml        A YAML run plan serving as a basis config (any conflicting option will take precedence)"`
	BeforeFile         string `getopt:"--before=path           Instead of synthetic datasets compare this file ( requires --after )"`
	AfterFile          string `getopt:"--after=path            File compared against --before"`
	LogLevel           string `getopt:"--log-level=level       Diagnostic verbosity on stdERR, one of 'error', 'warn', 'info', 'debug'. Default:"`

	hashAlg            string   // hash algorithm to use: option/helptext in initArgvParser
	requestedChunkers  string   // Chunker chain: option/helptext in initArgvParser
	requestedCodecs    []string // Codec list: option/helptext in initArgvParser
	requestedScenarios []string // Scenario list: option/helptext in initArgvParser
	materialCounts     []string // Dataset sizes: option/helptext in initArgvParser
}

func defaultConfig() config {
	return config{
		ChangeSize:         constants.DefaultChangeSize,
		ChangeOffset:       -1,
		Workers:            runtime.NumCPU(),
		GlobalMaxChunkSize: constants.MaxChunkSize,
		HashBits:           256,
		PlotFormat:         "svg",
		LogLevel:           "warn",

		hashAlg:            "sha2-256",
		requestedChunkers:  "fastcdc:avg-size=16384::buzhash:state-mask-bits=14",
		requestedCodecs:    []string{"json", "msgpack", "msgpack+lz4", "msgpack+deflate"},
		requestedScenarios: []string{"append", "insert", "modify"},
		materialCounts:     intsToStrings(constants.DefaultMaterialCounts),

		emittersStdOut: []string{emReportsJsonl},
		emittersStdErr: []string{emStatsText},

		// not defaults but rather the list of known/configured emitters
		emitters: map[string]io.Writer{
			emNone:         nil,
			emStatsText:    nil,
			emStatsJsonl:   nil,
			emReportsJsonl: nil,
		},
	}
}

// NewFromArgv parses the command line and initializes everything. On any
// argument error it prints usage and all accumulated errors, then exits.
func NewFromArgv(argv []string) *Evaluator {
	e, argErrs := newFromArgv(argv)

	if e.cfg.Help || e.cfg.HelpAll {
		e.cfg.printUsage()
		os.Exit(0)
	}

	if len(argErrs) != 0 {
		fmt.Fprint(argParseErrOut, "\nFatal error parsing arguments:\n\n")
		e.cfg.printUsage()

		sort.Strings(argErrs)
		fmt.Fprintf(
			argParseErrOut,
			"Fatal error parsing arguments:\n\t%s\n",
			strings.Join(argErrs, "\n\t"),
		)
		os.Exit(1)
	}

	return e
}

func newFromArgv(argv []string) (e *Evaluator, argErrs []string) {

	e = &Evaluator{
		cfg: defaultConfig(),
		log: logrus.New(),
	}
	e.log.SetOutput(os.Stderr)

	// init some constants
	{
		s := &e.statSummary
		s.EventType = "summary"

		if len(argv) > 0 {
			s.SysStats.ArgvInitial = make([]string, len(argv)-1)
			copy(s.SysStats.ArgvInitial, argv[1:])
		}

		s.SysStats.NumCPU = runtime.NumCPU()
		s.SysStats.PageSize = os.Getpagesize()
		s.SysStats.GoVersion = runtime.Version()
	}

	cfg := &e.cfg
	cfg.initArgvParser()

	if err := cfg.optSet.Getopt(argv, nil); err != nil {
		argErrs = append(argErrs, err.Error())
	}
	if cfg.Help || cfg.HelpAll {
		return
	}

	unexpectedArgs := cfg.optSet.Args()
	if len(unexpectedArgs) != 0 {
		argErrs = append(argErrs, fmt.Sprintf(
			"Program does not take free-form arguments: '%s ...'",
			unexpectedArgs[0],
		))
	}

	// pre-populate from a run plan if one was supplied
	if cfg.optSet.IsSet("plan") {
		if errStrings := cfg.presetFromPlan(); len(errStrings) > 0 {
			argErrs = append(argErrs, errStrings...)
		}
	}

	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		argErrs = append(argErrs, fmt.Sprintf("Invalid --log-level '%s'", cfg.LogLevel))
	} else {
		e.log.SetLevel(lvl)
	}

	// has a default
	if cfg.GlobalMaxChunkSize < 1 || cfg.GlobalMaxChunkSize > constants.MaxBlockWireSize {
		argErrs = append(argErrs, fmt.Sprintf(
			"--max-chunk-size '%s' out of bounds [1:%s]",
			util.Commify(cfg.GlobalMaxChunkSize),
			util.Commify(constants.MaxBlockWireSize),
		))
	}

	// has a default
	if cfg.HashBits < 128 || (cfg.HashBits%8) != 0 {
		argErrs = append(argErrs, "The value of --hash-bits must be a minimum of 128 and be divisible by 8")
	} else {
		var errStr string
		if e.maker, errStr = evalblock.MakerFromConfig(cfg.hashAlg, cfg.HashBits/8); errStr != "" {
			argErrs = append(argErrs, errStr)
		}
	}

	if cfg.Workers < 1 {
		argErrs = append(argErrs, "The value of --workers must be at least 1")
	}

	if cfg.ChangeSize < 0 {
		argErrs = append(argErrs, "The value of --change-size can not be negative")
	}
	if cfg.ChangeOffset < -1 {
		argErrs = append(argErrs, "The value of --change-offset must be -1 ( middle ) or a position within the dataset")
	}

	switch cfg.PlotFormat {
	case "svg", "png", "pdf":
	default:
		argErrs = append(argErrs, fmt.Sprintf("Unsupported --plot-format '%s'", cfg.PlotFormat))
	}

	if (cfg.BeforeFile == "") != (cfg.AfterFile == "") {
		argErrs = append(argErrs, "Options --before and --after must be specified together")
	}

	if errorStrings := cfg.parseEmitterSpecs(); len(errorStrings) > 0 {
		argErrs = append(argErrs, errorStrings...)
	}

	for _, c := range cfg.materialCounts {
		n, err := strconv.ParseUint(strings.TrimSpace(c), 10, 31)
		if err != nil || n == 0 {
			argErrs = append(argErrs, fmt.Sprintf("Invalid --materials count '%s'", c))
			continue
		}
		e.materialCounts = append(e.materialCounts, int(n))
	}

	for _, name := range cfg.requestedScenarios {
		sc, exists := dataset.AvailableScenarios[name]
		if !exists {
			argErrs = append(argErrs, fmt.Sprintf(
				"Scenario '%s' not found. Available scenario names are: %s",
				name,
				util.AvailableMapKeys(dataset.AvailableScenarios),
			))
			continue
		}
		e.scenarios = append(e.scenarios, sc)
	}

	for _, spec := range cfg.requestedCodecs {
		c, errs := encoder.New(spec)
		if len(errs) > 0 {
			argErrs = append(argErrs, errs...)
			continue
		}
		e.codecs = append(e.codecs, c)
	}

	if cfg.BeforeFile == "" && (len(e.materialCounts) == 0 || len(e.scenarios) == 0 || len(e.codecs) == 0) {
		argErrs = append(argErrs, "At least one each of --materials, --scenarios and --codecs is required")
	}

	if cfg.requestedChunkers == "" {
		argErrs = append(argErrs,
			"You must specify at least one chunker via '--chunkers=algname1:opt1:opt2::algname2:...'. Available chunker names are: "+
				util.AvailableMapKeys(availableChunkers),
		)
	} else {
		var errorMessages []string
		if errorMessages, cfg.erroredChunkers = e.setupChunkers(); len(errorMessages) > 0 {
			argErrs = append(argErrs, errorMessages...)
		}
	}

	if len(argErrs) != 0 {
		return
	}

	// Opts are good - populate what we ended up with
	cfg.optSet.VisitAll(func(o getopt.Option) {
		switch o.LongName() {
		case "help", "help-all", "plan":
			// do nothing for these
		default:
			e.statSummary.SysStats.ArgvExpanded = append(
				e.statSummary.SysStats.ArgvExpanded, fmt.Sprintf(`--%s=%s`,
					o.LongName(),
					o.Value().String(),
				),
			)
		}
	})
	sort.Strings(e.statSummary.SysStats.ArgvExpanded)

	return
}

func (cfg *config) printUsage() {
	cfg.optSet.PrintUsage(argParseErrOut)
	if cfg.HelpAll || len(cfg.erroredChunkers) > 0 {
		printPluginUsage(
			argParseErrOut,
			cfg.erroredChunkers,
		)
	} else {
		fmt.Fprint(argParseErrOut, "\nTry --help-all for more info\n\n")
	}
}

func printPluginUsage(
	out io.Writer,
	listChunkers []string,
) {

	// if nothing was requested explicitly - list everything
	if len(listChunkers) == 0 {
		for name, initializer := range availableChunkers {
			if initializer != nil {
				listChunkers = append(listChunkers, name)
			}
		}
	}

	fmt.Fprint(out, "\n")
	sort.Strings(listChunkers)
	for _, name := range listChunkers {
		fmt.Fprintf(
			out,
			"[C]hunker '%s'\n",
			name,
		)
		_, h := availableChunkers[name](nil, nil)
		if len(h) == 0 {
			fmt.Fprint(out, "  -- no helptext available --\n\n")
		} else {
			fmt.Fprintln(out, strings.Join(h, "\n"))
		}
	}

	fmt.Fprint(out, "\n")
}

func (cfg *config) initArgvParser() {
	// The default documented way of using pborman/options is to muck with globals
	// Operate over objects instead, allowing us to re-parse argv multiple times
	o := getopt.New()
	if err := options.RegisterSet("", cfg, o); err != nil {
		logrus.Fatalf("Option set registration failed: %s", err)
	}
	cfg.optSet = o

	// program does not take freeform args
	// need to override this for sensible help render
	o.SetParameters("")

	// Several options have the help assembled programmatically
	o.FlagLong(&cfg.hashAlg, "hash", 0, "Hash algorithm to use, one of: "+util.AvailableMapKeys(evalblock.AvailableHashers), "algname")
	o.FlagLong(&cfg.requestedChunkers, "chunkers", 0,
		"Chunkers to evaluate, each one of: "+util.AvailableMapKeys(availableChunkers),
		"'ch1:o1.1:o1.2:...:o1.N::ch2:o2.1:o2.2:...:o2.N::ch3...'",
	)
	o.FlagLong(&cfg.requestedCodecs, "codecs", 0, fmt.Sprintf(
		"Codecs to evaluate, each in the form 'serializer[+transform...]'. Serializers are %s, transforms are %s",
		util.AvailableMapKeys(encoder.AvailableSerializers),
		util.AvailableMapKeys(encoder.AvailableTransforms),
	), "commaSepCodecs")
	o.FlagLong(&cfg.requestedScenarios, "scenarios", 0,
		"Dataset changes to evaluate, any of: "+util.AvailableMapKeys(dataset.AvailableScenarios),
		"commaSepScenarios",
	)
	o.FlagLong(&cfg.materialCounts, "materials", 0,
		"Dataset sizes to evaluate, in amount of material records",
		"commaSepCounts",
	)
	o.FlagLong(&cfg.emittersStdErr, "emit-stderr", 0, fmt.Sprintf(
		"One or more emitters to activate on stdERR. Available emitters are %s. Default: ",
		util.AvailableMapKeys(cfg.emitters),
	), "commaSepEmitters")
	o.FlagLong(&cfg.emittersStdOut, "emit-stdout", 0,
		"One or more emitters to activate on stdOUT. Available emitters same as above. Default: ",
		"commaSepEmitters",
	)
}

func (cfg *config) parseEmitterSpecs() (argErrs []string) {
	activeStderr := make(map[string]bool, len(cfg.emittersStdErr))
	for _, s := range cfg.emittersStdErr {
		activeStderr[s] = true
		if val, exists := cfg.emitters[s]; !exists {
			argErrs = append(argErrs, fmt.Sprintf("Invalid emitter '%s' specified with --emit-stderr", s))
		} else if s == emNone {
			continue
		} else if val != nil {
			argErrs = append(argErrs, fmt.Sprintf("Emitter '%s' specified more than once", s))
		} else {
			cfg.emitters[s] = os.Stderr
		}
	}
	activeStdout := make(map[string]bool, len(cfg.emittersStdOut))
	for _, s := range cfg.emittersStdOut {
		activeStdout[s] = true
		if val, exists := cfg.emitters[s]; !exists {
			argErrs = append(argErrs, fmt.Sprintf("Invalid emitter '%s' specified for --emit-stdout", s))
		} else if s == emNone {
			continue
		} else if val != nil {
			argErrs = append(argErrs, fmt.Sprintf("Emitter '%s' specified more than once", s))
		} else {
			cfg.emitters[s] = os.Stdout
		}
	}

	for _, exclusiveEmitter := range []string{
		emNone,
		emStatsText,
	} {
		if activeStderr[exclusiveEmitter] && len(activeStderr) > 1 {
			argErrs = append(argErrs, fmt.Sprintf(
				"When specified, emitter '%s' must be the sole argument to --emit-stderr",
				exclusiveEmitter,
			))
		}
		if activeStdout[exclusiveEmitter] && len(activeStdout) > 1 {
			argErrs = append(argErrs, fmt.Sprintf(
				"When specified, emitter '%s' must be the sole argument to --emit-stdout",
				exclusiveEmitter,
			))
		}
	}

	return argErrs
}

func (e *Evaluator) setupChunkers() (argErrs []string, initFailFor []string) {
	commonCfg := evalchunker.CommonConfig{
		GlobalMaxChunkSize: e.cfg.GlobalMaxChunkSize,
	}

	individualChunkers := strings.Split(e.cfg.requestedChunkers, "::")

	nameCounts := make(map[string]int, len(individualChunkers))
	for _, chunkerCmd := range individualChunkers {
		nameCounts[strings.SplitN(chunkerCmd, ":", 2)[0]]++
	}

	for _, chunkerCmd := range individualChunkers {
		chunkerArgs := strings.Split(chunkerCmd, ":")
		init, exists := availableChunkers[chunkerArgs[0]]
		if !exists {
			argErrs = append(argErrs, fmt.Sprintf(
				"Chunker '%s' not found. Available chunker names are: %s",
				chunkerArgs[0],
				util.AvailableMapKeys(availableChunkers),
			))
			continue
		}

		for n := range chunkerArgs {
			if n > 0 {
				chunkerArgs[n] = "--" + chunkerArgs[n]
			}
		}

		if chunkerInstance, initErrors := init(
			chunkerArgs,
			&commonCfg,
		); len(initErrors) > 0 {

			initFailFor = append(initFailFor, chunkerArgs[0])
			for _, e := range initErrors {
				argErrs = append(argErrs, fmt.Sprintf(
					"Initialization of chunker '%s' failed: %s",
					chunkerArgs[0],
					e,
				))
			}
		} else {
			// results are keyed by the bare name unless it is ambiguous
			label := chunkerArgs[0]
			if nameCounts[label] > 1 {
				label = chunkerCmd
			}
			e.chunkers = append(e.chunkers, namedChunker{
				name:    label,
				Chunker: chunkerInstance,
			})
		}
	}

	return argErrs, initFailFor
}

type namedChunker struct {
	name string
	chunker.Chunker
}

func intsToStrings(in []int) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strconv.Itoa(v)
	}
	return out
}
