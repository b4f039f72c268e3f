// Package evaluator drives a block reuse evaluation: it generates synthetic
// datasets, mutates them according to the configured scenarios, serializes
// both versions with every configured codec, chunks and addresses the
// payloads with every configured chunker and finally compares the resulting
// block sequences.
package evaluator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"

	evalblock "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/block"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/blockstore"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/dataset"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/encoder"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

const (
	filesScenario = "files"
	filesCodec    = "raw"
)

type Evaluator struct {
	cfg config
	log *logrus.Logger

	materialCounts []int
	scenarios      []dataset.Scenario
	codecs         []encoder.Codec
	chunkers       []namedChunker
	maker          evalblock.Maker

	// nil unless --store-dir was given
	persistent *blockstore.Badger
	// separates the keys of every Run/CompareFiles in a reused --store-dir
	runID string

	statSummary statSummary
	timeStart   time.Time
}

// these are set via build-tagged init()s
var preProcessTasks, postProcessTasks func(e *Evaluator)

func (e *Evaluator) begin() error {
	if e.cfg.StoreDir != "" && e.persistent == nil {
		var err error
		if e.persistent, err = blockstore.OpenBadger(e.cfg.StoreDir, e.log); err != nil {
			return err
		}
	}
	e.runID = uuid.NewString()
	if preProcessTasks != nil {
		preProcessTasks(e)
	}
	e.timeStart = time.Now()
	return nil
}

func (e *Evaluator) end() error {
	e.statSummary.SysStats.ElapsedNsecs = time.Since(e.timeStart).Nanoseconds()
	if postProcessTasks != nil {
		postProcessTasks(e)
	}
	if e.persistent != nil {
		err := e.persistent.Close()
		e.persistent = nil
		return err
	}
	return nil
}

func (e *Evaluator) newStore(k reuse.Key) blockstore.Store {
	if e.persistent != nil {
		return e.persistent.Namespace(e.runID + "/" + k.String())
	}
	return blockstore.NewMemory()
}

// Run evaluates every combination of dataset size, scenario, codec and
// chunker. Combinations are processed concurrently, the first error
// cancels the remainder.
func (e *Evaluator) Run(ctx context.Context) (tab *reuse.Tabulation, err error) {
	if err = e.begin(); err != nil {
		return nil, err
	}
	defer func() {
		if endErr := e.end(); err == nil {
			err = endErr
		}
	}()

	tab = reuse.NewTabulation()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.Workers)

	root := dataset.NewGenerator(e.cfg.Seed)
	for _, n := range e.materialCounts {
		sizeGen := root.Fork(fmt.Sprintf("materials-%d", n))
		base := sizeGen.Materials(n)

		for _, sc := range e.scenarios {
			pair := dataset.Build(sizeGen, base, e.cfg.ChangeOffset, e.cfg.ChangeSize, sc)

			for _, codec := range e.codecs {
				eg.Go(func() error {
					if err := egCtx.Err(); err != nil {
						return err
					}

					before, err := codec.Encode(pair.Before)
					if err != nil {
						return fmt.Errorf("encoding %d materials with '%s': %w", n, codec.Name(), err)
					}
					after, err := codec.Encode(pair.After)
					if err != nil {
						return fmt.Errorf("encoding %d '%s' materials with '%s': %w", n, pair.Scenario, codec.Name(), err)
					}

					for _, ch := range e.chunkers {
						k := reuse.Key{
							Materials: n,
							Scenario:  pair.Scenario,
							Codec:     codec.Name(),
							Chunker:   ch.name,
						}
						res, err := e.evaluatePair(egCtx, k, ch, before, after)
						if err != nil {
							return err
						}
						tab.Set(k, res)
					}
					return nil
				})
			}
		}
	}

	if err = eg.Wait(); err != nil {
		return nil, err
	}

	return tab, nil
}

// CompareFiles evaluates every configured chunker over a pair of files,
// without any serialization step.
func (e *Evaluator) CompareFiles(ctx context.Context, beforePath, afterPath string) (tab *reuse.Tabulation, err error) {
	if err = e.begin(); err != nil {
		return nil, err
	}
	defer func() {
		if endErr := e.end(); err == nil {
			err = endErr
		}
	}()

	before, err := mapFile(beforePath)
	if err != nil {
		return nil, err
	}
	after, err := mapFile(afterPath)
	if err != nil {
		return nil, err
	}

	tab = reuse.NewTabulation()
	for _, ch := range e.chunkers {
		k := reuse.Key{
			Scenario: filesScenario,
			Codec:    filesCodec,
			Chunker:  ch.name,
		}
		res, err := e.evaluatePair(ctx, k, ch, before, after)
		if err != nil {
			return nil, err
		}
		tab.Set(k, res)
	}

	e.log.WithFields(logrus.Fields{
		"before": filepath.Base(beforePath),
		"after":  filepath.Base(afterPath),
	}).Info("compared files")

	return tab, nil
}

func mapFile(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping '%s': %w", path, err)
	}
	defer r.Close()

	buf := make([]byte, r.Len())
	if len(buf) > 0 {
		if _, err := r.ReadAt(buf, 0); err != nil {
			return nil, fmt.Errorf("reading '%s': %w", path, err)
		}
	}
	return buf, nil
}

func (e *Evaluator) evaluatePair(ctx context.Context, k reuse.Key, ch namedChunker, before, after []byte) (res reuse.Result, err error) {
	store := e.newStore(k)
	defer store.Close()

	res.BytesBefore = int64(len(before))
	res.BytesAfter = int64(len(after))

	cb, err := blockstore.Create(ctx, before, ch, e.maker, store)
	if err != nil {
		return res, fmt.Errorf("%s: before: %w", k, err)
	}
	if res.StoredBefore, err = store.Size(ctx); err != nil {
		return res, fmt.Errorf("%s: %w", k, err)
	}

	ca, err := blockstore.Create(ctx, after, ch, e.maker, store)
	if err != nil {
		return res, fmt.Errorf("%s: after: %w", k, err)
	}
	if res.StoredAfter, err = store.Size(ctx); err != nil {
		return res, fmt.Errorf("%s: %w", k, err)
	}

	if res.Report, err = reuse.Compare(cb.Sequence(), ca.Sequence()); err != nil {
		return res, fmt.Errorf("%s: %w", k, err)
	}

	e.log.WithFields(logrus.Fields{
		"materials": k.Materials,
		"scenario":  k.Scenario,
		"codec":     k.Codec,
		"chunker":   k.Chunker,
		"blocks":    res.Report.TotalAfter,
		"ratio":     res.Report.ReuseRatioPercent,
	}).Debug("evaluated pair")

	return res, nil
}

// FilePair returns the paths given via --before and --after, if any.
func (e *Evaluator) FilePair() (before, after string, isFilePair bool) {
	return e.cfg.BeforeFile, e.cfg.AfterFile, e.cfg.BeforeFile != ""
}
