package blockstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/constants"
	evalblock "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/block"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

var indexEncMode cbor.EncMode

func init() {
	var err error
	if indexEncMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("blockstore: CBOR encoder initialization failed: " + err.Error())
	}
}

// Index is the content of the root block describing how a payload was cut
type Index struct {
	StartOffsets []uint64 `cbor:"startOffsets"`
	LastOffset   uint64   `cbor:"lastOffset"`
	Cids         [][]byte `cbor:"blocks"`
}

// Chunked is a payload laid out as data blocks plus one or more index blocks.
type Chunked struct {
	Root  *evalblock.Header
	Index Index

	// data blocks in offset order, followed by the index blocks with the
	// root last
	Blocks []*evalblock.Header
}

// Sequence is the block list as seen by the reuse comparison, index blocks included.
func (c *Chunked) Sequence() reuse.BlockSequence {
	seq := make(reuse.BlockSequence, len(c.Blocks))
	for i, h := range c.Blocks {
		seq[i] = h.Block()
	}
	return seq
}

// maximum encoded size of a single index block
var maxIndexBlockSize = constants.MaxBlockWireSize

// Create chunks buf, stores every resulting block and finally the index.
// An index too large for a single block is split into a tree of index
// blocks: interior ones list dag-cbor CIDs of their children.
func Create(
	ctx context.Context,
	buf []byte,
	ch chunker.Chunker,
	mk evalblock.Maker,
	store Store,
) (*Chunked, error) {

	chunks, err := chunker.SplitAll(ch, buf)
	if err != nil {
		return nil, fmt.Errorf("chunking %d bytes: %w", len(buf), err)
	}

	c := &Chunked{
		Blocks: make([]*evalblock.Header, 0, len(chunks)+1),
	}

	leaves := Index{
		StartOffsets: make([]uint64, 0, len(chunks)),
		Cids:         make([][]byte, 0, len(chunks)),
		LastOffset:   uint64(len(buf)),
	}

	var pos int
	for _, chk := range chunks {
		data := buf[pos : pos+chk.Size]
		hdr, err := mk(data, evalblock.CodecRaw)
		if err != nil {
			return nil, fmt.Errorf("addressing block at offset %d: %w", pos, err)
		}

		if err := store.Put(ctx, hdr.CidBase32(), data); err != nil {
			return nil, fmt.Errorf("storing block at offset %d: %w", pos, err)
		}

		leaves.StartOffsets = append(leaves.StartOffsets, uint64(pos))
		leaves.Cids = append(leaves.Cids, hdr.Cid())
		c.Blocks = append(c.Blocks, hdr)
		pos += chk.Size
	}

	if c.Root, c.Index, err = c.storeIndex(ctx, leaves, mk, store); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Chunked) storeIndex(ctx context.Context, idx Index, mk evalblock.Maker, store Store) (*evalblock.Header, Index, error) {
	indexBytes, err := indexEncMode.Marshal(idx)
	if err != nil {
		return nil, idx, fmt.Errorf("encoding index block: %w", err)
	}

	if len(indexBytes) > maxIndexBlockSize && len(idx.Cids) > 1 {
		parts := 1 + len(indexBytes)/maxIndexBlockSize
		if parts > len(idx.Cids) {
			parts = len(idx.Cids)
		}
		per := (len(idx.Cids) + parts - 1) / parts

		parent := Index{LastOffset: idx.LastOffset}
		for from := 0; from < len(idx.Cids); from += per {
			to := from + per
			last := idx.LastOffset
			if to < len(idx.Cids) {
				last = idx.StartOffsets[to]
			} else {
				to = len(idx.Cids)
			}

			sub, _, err := c.storeIndex(ctx, Index{
				StartOffsets: idx.StartOffsets[from:to],
				Cids:         idx.Cids[from:to],
				LastOffset:   last,
			}, mk, store)
			if err != nil {
				return nil, idx, err
			}
			parent.StartOffsets = append(parent.StartOffsets, idx.StartOffsets[from])
			parent.Cids = append(parent.Cids, sub.Cid())
		}

		return c.storeIndex(ctx, parent, mk, store)
	}

	hdr, err := mk(indexBytes, evalblock.CodecDagCbor)
	if err != nil {
		return nil, idx, fmt.Errorf("addressing index block of %d entries: %w", len(idx.Cids), err)
	}
	if err := store.Put(ctx, hdr.CidBase32(), indexBytes); err != nil {
		return nil, idx, fmt.Errorf("storing index block: %w", err)
	}
	c.Blocks = append(c.Blocks, hdr)

	return hdr, idx, nil
}

// Read reassembles a payload from the index block addressed by root
func Read(ctx context.Context, root string, store Store) ([]byte, error) {
	out := new(bytes.Buffer)
	if err := readIndex(ctx, root, store, out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readIndex(ctx context.Context, id string, store Store, out *bytes.Buffer) error {
	indexBytes, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	var idx Index
	if err := cbor.Unmarshal(indexBytes, &idx); err != nil {
		return fmt.Errorf("decoding index block %s: %w", id, err)
	}
	if len(idx.StartOffsets) != len(idx.Cids) {
		return fmt.Errorf(
			"index block %s lists %d offsets for %d blocks",
			id, len(idx.StartOffsets), len(idx.Cids),
		)
	}

	if need := int(idx.LastOffset) - out.Len(); need > 0 {
		out.Grow(need)
	}
	for i, cid := range idx.Cids {
		if uint64(out.Len()) != idx.StartOffsets[i] {
			return fmt.Errorf(
				"block #%d of %s expected at offset %d, payload so far is %d bytes",
				i, id, idx.StartOffsets[i], out.Len(),
			)
		}

		codec, err := evalblock.CidCodec(cid)
		if err != nil {
			return err
		}
		if codec == evalblock.CodecDagCbor {
			if err := readIndex(ctx, evalblock.CidBase32(cid), store, out); err != nil {
				return err
			}
			continue
		}

		data, err := store.Get(ctx, evalblock.CidBase32(cid))
		if err != nil {
			return err
		}
		out.Write(data)
	}

	if uint64(out.Len()) != idx.LastOffset {
		return fmt.Errorf("reassembled %d bytes under %s, index claims %d", out.Len(), id, idx.LastOffset)
	}
	return nil
}
