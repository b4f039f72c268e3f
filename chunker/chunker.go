// Package chunker defines the contract shared by every boundary-finding
// algorithm used for block reuse evaluation.
package chunker

import "fmt"

// Chunker splits a buffer into consecutive chunks. Identical input and
// configuration must always produce identical boundaries.
type Chunker interface {
	// Split invokes resultCallback for every chunk in offset order. When
	// useEntireBuffer is true the emitted sizes cover the buffer exactly,
	// otherwise a trailing remainder may be held back.
	Split(
		rawDataBuffer []byte,
		useEntireBuffer bool,
		resultCallback SplitResultCallback,
	) error
}

type SplitResultCallback func(
	singleChunkingResult Chunk,
) error

type Chunk struct {
	Size int
	Meta ChunkMeta
}
type ChunkMeta map[string]interface{}

func (cm ChunkMeta) Bool(name string) bool {
	if slot, exists := cm[name]; exists {
		if val, isBool := slot.(bool); isBool {
			return val
		}
	}
	return false
}

// SplitAll chunks the entire buffer and verifies the result covers it
// exactly with positive sizes.
func SplitAll(c Chunker, buf []byte) ([]Chunk, error) {
	chunks := make([]Chunk, 0, 1+len(buf)/4096)
	var pos int

	if err := c.Split(buf, true, func(ch Chunk) error {
		if ch.Size <= 0 {
			return fmt.Errorf("chunker emitted invalid size %d at offset %d", ch.Size, pos)
		}
		if pos+ch.Size > len(buf) {
			return fmt.Errorf(
				"chunk of size %d at offset %d overruns buffer of %d bytes",
				ch.Size, pos, len(buf),
			)
		}
		pos += ch.Size
		chunks = append(chunks, ch)
		return nil
	}); err != nil {
		return nil, err
	}

	if pos != len(buf) {
		return nil, fmt.Errorf("chunker covered %d out of %d bytes", pos, len(buf))
	}

	return chunks, nil
}
