package ipfs

import (
	"bytes"
	"errors"
	"io"

	boxochunker "github.com/ipfs/boxo/chunker"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
)

type ipfsChunker struct {
	config
}

// The boxo splitters always consume their reader to EOF: when the entire
// buffer may not be used the final chunk is held back.
func (c *ipfsChunker) Split(
	buf []byte,
	useEntireBuffer bool,
	cb chunker.SplitResultCallback,
) error {

	splitter, err := boxochunker.FromString(bytes.NewReader(buf), c.Spec)
	if err != nil {
		return err
	}

	var pending int
	for {
		b, err := splitter.NextBytes()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}
		if len(b) == 0 {
			continue
		}

		if pending > 0 {
			if err := cb(chunker.Chunk{Size: pending}); err != nil {
				return err
			}
		}
		pending = len(b)
	}

	if pending > 0 && useEntireBuffer {
		return cb(chunker.Chunk{Size: pending})
	}
	return nil
}
