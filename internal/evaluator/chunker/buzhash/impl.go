package buzhash

import (
	"math/bits"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
)

const windowSize = 32

type config struct {
	TargetValue uint64 `getopt:"--state-target=uint32     State value denoting a chunk boundary (default: 0)"`
	MaskBits    int    `getopt:"--state-mask-bits=[5:22]  Amount of bits of state to compare to target on every iteration. For random input average chunk size is about 2**m (default: 14)"`
	MaxSize     int    `getopt:"--max-size=bytes          Maximum data chunk size (default: 2**(mask-bits+2))"`
	MinSize     int    `getopt:"--min-size=bytes          Minimum data chunk size (default: 2**(mask-bits-2))"`
}

type buzhashChunker struct {
	mask           uint32
	minSansPreheat int
	xvName         string
	xv             *[256]uint32
	config
}

// With a 32 byte window over a 32 bit state the outgoing byte has been
// rotated a full circle: it is removed by xor-ing its table value as-is.
func (c *buzhashChunker) Split(
	buf []byte,
	useEntireBuffer bool,
	cb chunker.SplitResultCallback,
) (err error) {

	var state uint32
	var curIdx, lastIdx, nextRoundMax int
	postBufIdx := len(buf)
	target := uint32(c.TargetValue)

	for {
		lastIdx = curIdx
		nextRoundMax = lastIdx + c.MaxSize

		// we will be running out of data, but still *could* run a round
		if nextRoundMax > postBufIdx {
			// abort early if we are allowed to
			if !useEntireBuffer {
				return
			}
			// otherwise signify where we stop hard
			nextRoundMax = postBufIdx
		}

		// in case we will *NOT* be able to run another round at all
		if curIdx+c.MinSize >= postBufIdx {
			if useEntireBuffer && postBufIdx != curIdx {
				err = cb(chunker.Chunk{Size: postBufIdx - curIdx})
			}
			return
		}

		// reset
		state = 0

		// preheat
		curIdx += c.minSansPreheat
		for i := 0; i < windowSize; i++ {
			state = bits.RotateLeft32(state, 1) ^ c.xv[buf[curIdx]]
			curIdx++
		}

		// cycle
		for curIdx < nextRoundMax && ((state & c.mask) != target) {
			state = bits.RotateLeft32(state, 1) ^ c.xv[buf[curIdx-windowSize]] ^ c.xv[buf[curIdx]]
			curIdx++
		}

		// always a find at this point, we bailed on short buffers earlier
		err = cb(chunker.Chunk{Size: curIdx - lastIdx})
		if err != nil {
			return
		}
	}
}
