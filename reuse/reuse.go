// Package reuse compares two content-addressed block sequences and reports
// how many blocks of the second one are already present in the first.
//
// The comparison is the measure used to judge a chunking configuration: the
// more blocks a modified payload shares with its predecessor, the less data
// has to be stored or transferred for the new version.
package reuse

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// RatioNotApplicable is the value of Report.ReuseRatioPercent when the
// after-sequence contains no blocks.
const RatioNotApplicable = -1.0

// ErrInvalidBlock is matched by every *InvalidBlockError via errors.Is.
var ErrInvalidBlock = errors.New("invalid block")

// Block is a single content-addressed unit. Identical bytes always produce an
// identical ID. Size is informational only and never takes part in matching.
type Block struct {
	ID   string `json:"cid"`
	Size int    `json:"size"`
}

// BlockSequence is ordered by source offset.
type BlockSequence []Block

// TotalSize sums the informational sizes of all blocks.
func (s BlockSequence) TotalSize() (total int64) {
	for _, b := range s {
		total += int64(b.Size)
	}
	return
}

type Report struct {
	TotalBefore       int
	TotalAfter        int
	Reused            int
	New               int
	ReuseRatioPercent float64

	// byte-weighted view of the same partition of the after-sequence
	ReusedBytes int64
	NewBytes    int64
}

// RatioApplicable is false when there were no after-blocks to measure.
func (r Report) RatioApplicable() bool { return r.TotalAfter > 0 }

func (r Report) String() string {
	ratio := "n/a"
	if r.RatioApplicable() {
		ratio = fmt.Sprintf("%.2f%%", r.ReuseRatioPercent)
	}
	return fmt.Sprintf(
		"before:%d after:%d reused:%d new:%d ratio:%s",
		r.TotalBefore, r.TotalAfter, r.Reused, r.New, ratio,
	)
}

type jsonReport struct {
	TotalBefore int      `json:"blocksBefore"`
	TotalAfter  int      `json:"blocksAfter"`
	Reused      int      `json:"blocksReused"`
	New         int      `json:"blocksNew"`
	Ratio       *float64 `json:"reuseRatioPercent"`
	ReusedBytes int64    `json:"bytesReused"`
	NewBytes    int64    `json:"bytesNew"`
}

// MarshalJSON renders a not-applicable ratio as null.
func (r Report) MarshalJSON() ([]byte, error) {
	jr := jsonReport{
		TotalBefore: r.TotalBefore,
		TotalAfter:  r.TotalAfter,
		Reused:      r.Reused,
		New:         r.New,
		ReusedBytes: r.ReusedBytes,
		NewBytes:    r.NewBytes,
	}
	if r.RatioApplicable() {
		ratio := r.ReuseRatioPercent
		jr.Ratio = &ratio
	}
	return json.Marshal(jr)
}

// InvalidBlockError reports a block lacking an identifier.
type InvalidBlockError struct {
	Sequence string // "before" or "after"
	Index    int
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("block #%d of the %s-sequence has no identifier", e.Index, e.Sequence)
}

func (e *InvalidBlockError) Is(target error) bool { return target == ErrInvalidBlock }

// Compare reports how many blocks of after are present anywhere in before.
// Every occurrence in after is tested on its own, so duplicates within after
// are each counted, while duplicates within before collapse. Order is
// irrelevant to the result. Compare has no side effects and is safe for
// concurrent use.
func Compare(before, after BlockSequence) (Report, error) {

	seen := make(map[string]struct{}, len(before))
	for i, b := range before {
		if b.ID == "" {
			return Report{}, &InvalidBlockError{Sequence: "before", Index: i}
		}
		seen[b.ID] = struct{}{}
	}

	r := Report{
		TotalBefore: len(before),
		TotalAfter:  len(after),
	}

	for i, b := range after {
		if b.ID == "" {
			return Report{}, &InvalidBlockError{Sequence: "after", Index: i}
		}
		if _, found := seen[b.ID]; found {
			r.Reused++
			r.ReusedBytes += int64(b.Size)
		} else {
			r.New++
			r.NewBytes += int64(b.Size)
		}
	}

	if r.TotalAfter == 0 {
		r.ReuseRatioPercent = RatioNotApplicable
	} else {
		r.ReuseRatioPercent = RoundPercent(float64(r.Reused) / float64(r.TotalAfter) * 100)
	}

	return r, nil
}

// RoundPercent rounds to two fractional digits, halves away from zero.
func RoundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
