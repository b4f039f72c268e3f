package fixedsize

import (
	"github.com/ipfs-shipyard/cdc-reuse/chunker"
)

type fixedSizeChunker struct {
	size int
}

func (c *fixedSizeChunker) Split(
	buf []byte,
	useEntireBuffer bool,
	cb chunker.SplitResultCallback,
) error {

	var pos int
	for ; pos+c.size <= len(buf); pos += c.size {
		if err := cb(chunker.Chunk{Size: c.size}); err != nil {
			return err
		}
	}

	if pos < len(buf) && useEntireBuffer {
		return cb(chunker.Chunk{Size: len(buf) - pos})
	}
	return nil
}
