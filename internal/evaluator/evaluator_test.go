package evaluator

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-shipyard/cdc-reuse/internal/constants"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

func mustEvaluator(t *testing.T, args ...string) *Evaluator {
	t.Helper()
	e, argErrs := newFromArgv(append([]string{"reuse-eval"}, args...))
	require.Empty(t, argErrs)
	return e
}

func TestDefaults(t *testing.T) {
	e := mustEvaluator(t)

	assert.Equal(t, []int{30, 300, 1200}, e.materialCounts)
	require.Len(t, e.scenarios, 3)
	require.Len(t, e.codecs, 4)
	require.Len(t, e.chunkers, 2)
	assert.Equal(t, "fastcdc", e.chunkers[0].name)
	assert.Equal(t, "buzhash", e.chunkers[1].name)
	assert.Equal(t, "msgpack+deflate", e.codecs[3].Name())
	assert.Equal(t, 3, e.cfg.ChangeSize)
	assert.Equal(t, -1, e.cfg.ChangeOffset)

	assert.Contains(t, e.statSummary.SysStats.ArgvExpanded, "--hash=sha2-256")
	assert.Equal(t, "summary", e.statSummary.EventType)
}

func TestArgErrorsAccumulate(t *testing.T) {
	_, argErrs := newFromArgv([]string{
		"reuse-eval",
		"--chunkers=nope",
		"--codecs=json+rot13",
		"--scenarios=shuffle",
		"--materials=0",
		"--hash-bits=100",
		"--emit-stderr=none,stats-text",
		"--before=/dev/null",
		"extra",
	})

	joined := strings.Join(argErrs, "\n")
	for _, expect := range []string{
		"Chunker 'nope' not found",
		"unknown transform 'rot13'",
		"Scenario 'shuffle' not found",
		"Invalid --materials count '0'",
		"--hash-bits must be a minimum of 128",
		"must be the sole argument to --emit-stderr",
		"--before and --after must be specified together",
		"free-form arguments: 'extra ...'",
	} {
		assert.Contains(t, joined, expect)
	}
}

func TestDuplicateChunkerNames(t *testing.T) {
	e := mustEvaluator(t, "--chunkers=fixed-size:512::fixed-size:1024::buzhash")
	require.Len(t, e.chunkers, 3)
	assert.Equal(t, "fixed-size:512", e.chunkers[0].name)
	assert.Equal(t, "fixed-size:1024", e.chunkers[1].name)
	assert.Equal(t, "buzhash", e.chunkers[2].name)
}

func TestPlanPrecedence(t *testing.T) {
	plan := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(`
materials: [7]
scenarios: [insert]
codecs: [cbor]
chunkers:
  - fixed-size:128
changeSize: 2
seed: 99
`), 0644))

	e := mustEvaluator(t, "--plan="+plan, "--codecs=json")

	assert.Equal(t, []int{7}, e.materialCounts)
	require.Len(t, e.scenarios, 1)
	assert.Equal(t, "insert", e.scenarios[0].Name())
	require.Len(t, e.codecs, 1)
	assert.Equal(t, "json", e.codecs[0].Name())
	require.Len(t, e.chunkers, 1)
	assert.Equal(t, "fixed-size", e.chunkers[0].name)
	assert.Equal(t, 2, e.cfg.ChangeSize)
	assert.Equal(t, uint64(99), e.cfg.Seed)

	require.NoError(t, os.WriteFile(plan, []byte("unknownKey: 1\n"), 0644))
	_, argErrs := newFromArgv([]string{"reuse-eval", "--plan=" + plan})
	require.NotEmpty(t, argErrs)
}

var smallRunArgs = []string{
	"--materials=5,20",
	"--scenarios=append,modify",
	"--codecs=json,msgpack+lz4",
	"--chunkers=fastcdc:avg-size=256:min-size=64:max-size=1024::fixed-size:512",
	"--workers=3",
}

func TestRun(t *testing.T) {
	e := mustEvaluator(t, smallRunArgs...)

	tab, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2*2*2*2, tab.Len())

	for _, k := range tab.Keys() {
		r, found := tab.Get(k)
		require.True(t, found)

		rep := r.Report
		assert.Equal(t, rep.TotalAfter, rep.Reused+rep.New, k.String())
		assert.True(t, rep.RatioApplicable(), k.String())
		assert.Greater(t, r.BytesBefore, int64(0))
		assert.LessOrEqual(t, r.StoredBefore, rep.TotalBefore)
		assert.GreaterOrEqual(t, r.StoredAfter, r.StoredBefore)
		// distinct new blocks can not outnumber new occurrences
		assert.LessOrEqual(t, r.StoredAfter-r.StoredBefore, rep.New, k.String())
	}

	// appending leaves the head of a json array untouched
	r, found := tab.Get(reuse.Key{Materials: 20, Scenario: "append", Codec: "json", Chunker: "fixed-size"})
	require.True(t, found)
	assert.Greater(t, r.Report.Reused, 0)
	assert.Greater(t, r.BytesAfter, r.BytesBefore)

	r, found = tab.Get(reuse.Key{Materials: 20, Scenario: "append", Codec: "json", Chunker: "fastcdc"})
	require.True(t, found)
	assert.Greater(t, r.Report.ReuseRatioPercent, 0.0)

	// same seed, same outcome
	again, err := mustEvaluator(t, smallRunArgs...).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, tab.Keys(), again.Keys())
	for _, k := range tab.Keys() {
		a, _ := tab.Get(k)
		b, _ := again.Get(k)
		assert.Equal(t, a, b, k.String())
	}
}

func TestRunCancelled(t *testing.T) {
	e := mustEvaluator(t, smallRunArgs...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPersistentStore(t *testing.T) {
	args := []string{
		"--materials=10",
		"--scenarios=insert",
		"--codecs=cbor",
		"--chunkers=buzhash:state-mask-bits=8",
		"--workers=1",
	}

	mem, err := mustEvaluator(t, args...).Run(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	e := mustEvaluator(t, append(args, "--store-dir="+dir)...)
	persisted, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, mem.Keys(), persisted.Keys())
	for _, k := range mem.Keys() {
		a, _ := mem.Get(k)
		b, _ := persisted.Get(k)
		assert.Equal(t, a, b)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	// blocks left in the directory by earlier runs are not counted again
	for _, rerun := range []*Evaluator{e, mustEvaluator(t, append(args, "--store-dir="+dir)...)} {
		again, err := rerun.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, mem.Keys(), again.Keys())
		for _, k := range mem.Keys() {
			a, _ := mem.Get(k)
			b, _ := again.Get(k)
			assert.Equal(t, a, b)
			assert.NotZero(t, b.StoredBefore)
		}
	}
}

func TestCompareFiles(t *testing.T) {
	rng := rand.New(rand.NewChaCha8([32]byte{7}))
	before := make([]byte, 64*1024)
	for i := range before {
		before[i] = byte(rng.Uint32())
	}
	after := append(append(append([]byte{}, before[:30000]...), []byte("a small insertion")...), before[30000:]...)

	dir := t.TempDir()
	bp, ap := filepath.Join(dir, "before.bin"), filepath.Join(dir, "after.bin")
	require.NoError(t, os.WriteFile(bp, before, 0644))
	require.NoError(t, os.WriteFile(ap, after, 0644))

	e := mustEvaluator(t,
		"--before="+bp,
		"--after="+ap,
		"--chunkers=fastcdc:avg-size=1024::fixed-size:1024",
	)
	b, a, isPair := e.FilePair()
	require.True(t, isPair)

	tab, err := e.CompareFiles(context.Background(), b, a)
	require.NoError(t, err)
	require.Equal(t, 2, tab.Len())

	cdc, found := tab.Get(reuse.Key{Scenario: "files", Codec: "raw", Chunker: "fastcdc"})
	require.True(t, found)
	fixed, found := tab.Get(reuse.Key{Scenario: "files", Codec: "raw", Chunker: "fixed-size"})
	require.True(t, found)

	assert.Equal(t, int64(len(after)), cdc.BytesAfter)
	assert.Greater(t, cdc.Report.ReuseRatioPercent, 50.0)
	assert.Greater(t, cdc.Report.ReuseRatioPercent, fixed.Report.ReuseRatioPercent)

	_, err = e.CompareFiles(context.Background(), filepath.Join(dir, "missing"), a)
	require.Error(t, err)

	// empty files are fine
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	tab, err = e.CompareFiles(context.Background(), empty, empty)
	require.NoError(t, err)
	r, _ := tab.Get(reuse.Key{Scenario: "files", Codec: "raw", Chunker: "fastcdc"})
	assert.Equal(t, 1, r.Report.TotalAfter) // the index block
}

func TestOutputSummary(t *testing.T) {
	plotDir := filepath.Join(t.TempDir(), "plots")
	e := mustEvaluator(t, append(smallRunArgs, "--plot-dir="+plotDir)...)

	tab, err := e.Run(context.Background())
	require.NoError(t, err)

	var reports, statsText, statsJsonl bytes.Buffer
	e.cfg.emitters[emReportsJsonl] = &reports
	e.cfg.emitters[emStatsText] = &statsText
	e.cfg.emitters[emStatsJsonl] = &statsJsonl

	require.NoError(t, e.OutputSummary(tab))

	lines := strings.Split(strings.TrimSpace(reports.String()), "\n")
	require.Len(t, lines, tab.Len())
	for _, l := range lines {
		var ev struct {
			Event     string `json:"event"`
			Materials int    `json:"materials"`
			Chunker   string `json:"chunker"`
			Report    struct {
				Ratio *float64 `json:"reuseRatioPercent"`
			} `json:"report"`
		}
		require.NoError(t, json.Unmarshal([]byte(l), &ev))
		assert.Equal(t, "reuse", ev.Event)
		assert.NotZero(t, ev.Materials)
		assert.NotEmpty(t, ev.Chunker)
		assert.NotNil(t, ev.Report.Ratio)
	}

	assert.Contains(t, statsText.String(), "Evaluated 16 combinations")
	assert.Contains(t, statsText.String(), "20 materials, append of 3")

	var smr struct {
		Event   string `json:"event"`
		Results struct {
			Combinations int `json:"combinations"`
			Plots        int `json:"plots"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(statsJsonl.Bytes(), &smr))
	assert.Equal(t, "summary", smr.Event)
	assert.Equal(t, 16, smr.Results.Combinations)
	assert.Equal(t, 4, smr.Results.Plots)

	_, err = os.Stat(filepath.Join(plotDir, "plot20-modify.svg"))
	require.NoError(t, err)
}

func TestRunDefaultMatrix(t *testing.T) {
	if !constants.LongTests {
		t.Skip("set TEST_REUSE_LONG to evaluate the default matrix")
	}

	var args []string
	if !constants.VeryLongTests {
		args = append(args, "--materials=30,300")
	}
	e := mustEvaluator(t, args...)

	tab, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(e.materialCounts)*3*4*2, tab.Len())

	for _, k := range tab.Keys() {
		r, _ := tab.Get(k)
		assert.Equal(t, r.Report.TotalAfter, r.Report.Reused+r.Report.New)
		assert.LessOrEqual(t, r.Report.ReuseRatioPercent, 100.0)
	}
}
