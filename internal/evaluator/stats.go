package evaluator

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/plot"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

type statSummary struct {
	EventType string `json:"event"`
	Results   struct {
		Combinations int   `json:"combinations"`
		BytesBefore  int64 `json:"bytesBefore"`
		BytesAfter   int64 `json:"bytesAfter"`
		Plots        int   `json:"plots,omitempty"`
	} `json:"results"`
	SysStats struct {
		ArgvExpanded []string `json:"argvExpanded"`
		ArgvInitial  []string `json:"argvInitial"`
		ElapsedNsecs int64    `json:"elapsedNanoseconds"`

		// getrusage() section
		CpuUserNsecs int64 `json:"cpuUserNanoseconds"`
		CpuSysNsecs  int64 `json:"cpuSystemNanoseconds"`
		MaxRssBytes  int64 `json:"maxMemoryUsed"`
		MinFlt       int64 `json:"cacheMinorFaults"`
		MajFlt       int64 `json:"cacheMajorFaults"`
		BioRead      int64 `json:"blockIoReads,omitempty"`
		BioWrite     int64 `json:"blockIoWrites,omitempty"`
		Sigs         int64 `json:"signalsReceived,omitempty"`
		CtxSwYield   int64 `json:"contextSwitchYields"`
		CtxSwForced  int64 `json:"contextSwitchForced"`

		// for context
		PageSize  int    `json:"pageSize"`
		NumCPU    int    `json:"cpuCount"`
		GoVersion string `json:"goVersion"`
	} `json:"sys"`
}

type reportEvent struct {
	EventType string `json:"event"`
	reuse.Key
	reuse.Result
}

const mib = 1024 * 1024

// OutputSummary renders tab through every active emitter and writes the
// charts when --plot-dir was given.
func (e *Evaluator) OutputSummary(tab *reuse.Tabulation) error {

	smr := &e.statSummary
	keys := tab.Keys()

	smr.Results.Combinations = len(keys)
	for _, k := range keys {
		r, _ := tab.Get(k)
		smr.Results.BytesBefore += r.BytesBefore
		smr.Results.BytesAfter += r.BytesAfter
	}

	if e.cfg.PlotDir != "" {
		files, err := plot.Render(tab, e.cfg.PlotDir, e.cfg.PlotFormat)
		if err != nil {
			return err
		}
		smr.Results.Plots = len(files)
		e.log.WithField("files", len(files)).Info("charts written")
	}

	if out := e.cfg.emitters[emReportsJsonl]; out != nil {
		for _, k := range keys {
			r, _ := tab.Get(k)
			if err := emitJSONLine(out, emReportsJsonl, reportEvent{
				EventType: "reuse",
				Key:       k,
				Result:    r,
			}); err != nil {
				return err
			}
		}
	}

	if out := e.cfg.emitters[emStatsText]; out != nil {
		if err := e.writeStatsText(out, tab); err != nil {
			return fmt.Errorf("emitting '%s' failed: %w", emStatsText, err)
		}
	}

	// emit the JSON last, so that piping to e.g. `jq` works nicer
	if out := e.cfg.emitters[emStatsJsonl]; out != nil {
		if smr.SysStats.ArgvExpanded == nil {
			smr.SysStats.ArgvExpanded = []string{}
		}
		if smr.SysStats.ArgvInitial == nil {
			smr.SysStats.ArgvInitial = []string{}
		}
		if err := emitJSONLine(out, emStatsJsonl, smr); err != nil {
			return err
		}
	}

	return nil
}

func emitJSONLine(out io.Writer, emitter string, v interface{}) error {
	j, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s failed: %w", emitter, err)
	}
	if _, err := fmt.Fprintf(out, "%s\n", j); err != nil {
		return fmt.Errorf("emitting '%s' failed: %w", emitter, err)
	}
	return nil
}

func (e *Evaluator) writeStatsText(out io.Writer, tab *reuse.Tabulation) error {
	smr := &e.statSummary

	var vcpu float64
	if smr.SysStats.ElapsedNsecs > 0 {
		vcpu = float64(smr.SysStats.CpuUserNsecs+smr.SysStats.CpuSysNsecs) / float64(smr.SysStats.ElapsedNsecs)
	}

	descParts := make([]string, 0, 64)
	descParts = append(descParts, fmt.Sprintf(
		"\nEvaluated %s combinations in %0.2f seconds using %0.2f vCPU and %0.2f MiB peak memory"+
			"\nChunked a total of %s before and %s after\n",
		util.Commify(smr.Results.Combinations),
		float64(smr.SysStats.ElapsedNsecs)/1000000000,
		vcpu,
		float64(smr.SysStats.MaxRssBytes)/mib,
		humanize.IBytes(uint64(smr.Results.BytesBefore)),
		humanize.IBytes(uint64(smr.Results.BytesAfter)),
	))

	for _, c := range tab.Categories() {
		if c.Scenario == filesScenario {
			descParts = append(descParts, "\n  File pair\n")
		} else {
			descParts = append(descParts, fmt.Sprintf(
				"\n  %s materials, %s of %s\n",
				util.Commify(c.Materials), c.Scenario, util.Commify(e.cfg.ChangeSize),
			))
		}

		descParts = append(descParts, fmt.Sprintf(
			"    %-20s %-14s %8s %8s %8s %8s %8s %11s %11s\n",
			"Codec", "Chunker", "Before", "After", "New", "Reused", "Ratio", "MiB before", "MiB after",
		))

		for _, k := range tab.Filter(c) {
			r, _ := tab.Get(k)
			ratio := "n/a"
			if r.Report.RatioApplicable() {
				ratio = fmt.Sprintf("%.2f%%", r.Report.ReuseRatioPercent)
			}
			descParts = append(descParts, fmt.Sprintf(
				"    %-20s %-14s %8s %8s %8s %8s %8s %11.2f %11.2f\n",
				k.Codec,
				k.Chunker,
				util.Commify(r.Report.TotalBefore),
				util.Commify(r.Report.TotalAfter),
				util.Commify(r.Report.New),
				util.Commify(r.Report.Reused),
				ratio,
				float64(r.BytesBefore)/mib,
				float64(r.BytesAfter)/mib,
			))
		}
	}

	_, err := fmt.Fprintf(out, "%s\n", strings.Join(descParts, ""))
	return err
}
