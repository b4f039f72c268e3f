package evaluator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is the YAML form of a run configuration. Every field is optional,
// and any option given on the command line overrides its plan counterpart.
type Plan struct {
	Materials    []int    `yaml:"materials"`
	Scenarios    []string `yaml:"scenarios"`
	Codecs       []string `yaml:"codecs"`
	Chunkers     []string `yaml:"chunkers"`
	ChangeSize   *int     `yaml:"changeSize"`
	ChangeOffset *int     `yaml:"changeOffset"`
	Seed         *uint64  `yaml:"seed"`
	Hash         string   `yaml:"hash"`
	HashBits     int      `yaml:"hashBits"`
	Workers      int      `yaml:"workers"`
	StoreDir     string   `yaml:"storeDir"`
	PlotDir      string   `yaml:"plotDir"`
	PlotFormat   string   `yaml:"plotFormat"`
}

func loadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := new(Plan)
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("parsing plan '%s': %w", path, err)
	}
	return p, nil
}

func (cfg *config) presetFromPlan() (argErrs []string) {
	p, err := loadPlan(cfg.PlanFile)
	if err != nil {
		return []string{err.Error()}
	}

	isSet := cfg.optSet.IsSet

	if len(p.Materials) > 0 && !isSet("materials") {
		cfg.materialCounts = intsToStrings(p.Materials)
	}
	if len(p.Scenarios) > 0 && !isSet("scenarios") {
		cfg.requestedScenarios = p.Scenarios
	}
	if len(p.Codecs) > 0 && !isSet("codecs") {
		cfg.requestedCodecs = p.Codecs
	}
	if len(p.Chunkers) > 0 && !isSet("chunkers") {
		cfg.requestedChunkers = strings.Join(p.Chunkers, "::")
	}
	if p.ChangeSize != nil && !isSet("change-size") {
		cfg.ChangeSize = *p.ChangeSize
	}
	if p.ChangeOffset != nil && !isSet("change-offset") {
		cfg.ChangeOffset = *p.ChangeOffset
	}
	if p.Seed != nil && !isSet("seed") {
		cfg.Seed = *p.Seed
	}
	if p.Hash != "" && !isSet("hash") {
		cfg.hashAlg = p.Hash
	}
	if p.HashBits != 0 && !isSet("hash-bits") {
		cfg.HashBits = p.HashBits
	}
	if p.Workers != 0 && !isSet("workers") {
		cfg.Workers = p.Workers
	}
	if p.StoreDir != "" && !isSet("store-dir") {
		cfg.StoreDir = p.StoreDir
	}
	if p.PlotDir != "" && !isSet("plot-dir") {
		cfg.PlotDir = p.PlotDir
	}
	if p.PlotFormat != "" && !isSet("plot-format") {
		cfg.PlotFormat = p.PlotFormat
	}

	return nil
}
