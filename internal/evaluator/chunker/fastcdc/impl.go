package fastcdc

import (
	"github.com/ipfs-shipyard/cdc-reuse/chunker"
)

type config struct {
	AvgSize       int `getopt:"--avg-size=bytes       Desired average chunk size (default: 32768)"`
	MinSize       int `getopt:"--min-size=bytes       Minimum chunk size (default: avg-size / 2)"`
	MaxSize       int `getopt:"--max-size=bytes       Maximum chunk size (default: avg-size * 2)"`
	Normalization int `getopt:"--normalization=[0:3] Normalized chunking level, 0 disables (default: 2)"`
}

type fastcdcChunker struct {
	maskS uint64
	maskL uint64
	config
}

var gear [256]uint64

func init() {
	x := uint64(0x2545f4914f6cdd1d)
	for i := range gear {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		gear[i] = x
	}
}

func (c *fastcdcChunker) Split(
	buf []byte,
	useEntireBuffer bool,
	cb chunker.SplitResultCallback,
) error {

	postBufIdx := len(buf)
	var curIdx int

	for curIdx < postBufIdx {
		remaining := postBufIdx - curIdx

		if remaining < c.MaxSize && !useEntireBuffer {
			return nil
		}

		size := remaining
		if remaining > c.MinSize {
			if remaining > c.MaxSize {
				remaining = c.MaxSize
			}
			size = c.cutPoint(buf[curIdx : curIdx+remaining])
		}

		if err := cb(chunker.Chunk{Size: size}); err != nil {
			return err
		}
		curIdx += size
	}

	return nil
}

// data is never longer than MaxSize and always longer than MinSize
func (c *fastcdcChunker) cutPoint(data []byte) int {
	var fp uint64

	normalPoint := c.AvgSize
	if normalPoint > len(data) {
		normalPoint = len(data)
	}

	i := c.MinSize
	for ; i < normalPoint; i++ {
		fp = (fp << 1) + gear[data[i]]
		if fp&c.maskS == 0 {
			return i + 1
		}
	}
	for ; i < len(data); i++ {
		fp = (fp << 1) + gear[data[i]]
		if fp&c.maskL == 0 {
			return i + 1
		}
	}

	return len(data)
}
