package blockstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evalblock "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/block"
	evalchunker "github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/chunkertest"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/fastcdc"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/chunker/fixedsize"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

func stores(t *testing.T) map[string]Store {
	bdg, err := OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { bdg.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"badger": bdg.Namespace("test"),
	}
}

func TestStoreBasics(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "a", []byte("alpha")))
			require.NoError(t, s.Put(ctx, "a", []byte("alpha")))
			require.NoError(t, s.Put(ctx, "b", []byte("beta")))

			n, err := s.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			data, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, []byte("beta"), data)

			has, err := s.Has(ctx, "c")
			require.NoError(t, err)
			assert.False(t, has)

			_, err = s.Get(ctx, "c")
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.Contains(t, err.Error(), "c")

			require.NoError(t, s.Close())
		})
	}
}

func TestBadgerNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()

	bdg, err := OpenBadger(t.TempDir(), nil)
	require.NoError(t, err)
	defer bdg.Close()

	one, two := bdg.Namespace("one"), bdg.Namespace("two")
	require.NoError(t, one.Put(ctx, "x", []byte{1}))
	require.NoError(t, one.Put(ctx, "y", []byte{2}))
	require.NoError(t, two.Put(ctx, "x", []byte{3}))

	n, err := one.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = two.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	has, err := two.Has(ctx, "y")
	require.NoError(t, err)
	assert.False(t, has)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, one.Put(cancelled, "z", nil), context.Canceled)
}

func TestCreateAndRead(t *testing.T) {
	ctx := context.Background()
	cfg := &evalchunker.CommonConfig{GlobalMaxChunkSize: 1024 * 1024}

	ch, errs := fastcdc.NewChunker([]string{"fastcdc", "--avg-size=1024"}, cfg)
	require.Empty(t, errs)
	mk, errStr := evalblock.MakerFromConfig("sha2-256", 32)
	require.Empty(t, errStr)

	buf := chunkertest.RandomBuffer(11, 64*1024)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c, err := Create(ctx, buf, ch, mk, s)
			require.NoError(t, err)

			require.Greater(t, len(c.Blocks), 2)
			assert.Same(t, c.Root, c.Blocks[len(c.Blocks)-1])
			assert.Len(t, c.Index.Cids, len(c.Blocks)-1)
			assert.Equal(t, uint64(len(buf)), c.Index.LastOffset)
			assert.Equal(t, uint64(0), c.Index.StartOffsets[0])

			seq := c.Sequence()
			assert.Equal(t, int64(len(buf)), seq[:len(seq)-1].TotalSize())

			n, err := s.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, len(c.Blocks), n)

			back, err := Read(ctx, c.Root.CidBase32(), s)
			require.NoError(t, err)
			assert.Equal(t, buf, back)

			_, err = Read(ctx, "bnothere", s)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCreateIdenticalPayloads(t *testing.T) {
	ctx := context.Background()
	cfg := &evalchunker.CommonConfig{GlobalMaxChunkSize: 1024 * 1024}

	ch, errs := fixedsize.NewChunker([]string{"fixed-size", "--100"}, cfg)
	require.Empty(t, errs)
	mk, _ := evalblock.MakerFromConfig("sha2-256", 32)

	s := NewMemory()
	buf := chunkertest.RandomBuffer(12, 1000)

	first, err := Create(ctx, buf, ch, mk, s)
	require.NoError(t, err)
	second, err := Create(ctx, buf, ch, mk, s)
	require.NoError(t, err)

	r, err := reuse.Compare(first.Sequence(), second.Sequence())
	require.NoError(t, err)
	assert.Equal(t, 100.0, r.ReuseRatioPercent)
	assert.Equal(t, 11, r.TotalAfter)

	n, _ := s.Size(ctx)
	assert.Equal(t, 11, n)

	// empty payloads still produce an index block
	empty, err := Create(ctx, nil, ch, mk, s)
	require.NoError(t, err)
	require.Len(t, empty.Blocks, 1)
	back, err := Read(ctx, empty.Root.CidBase32(), s)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestCreateSplitsLargeIndex(t *testing.T) {
	ctx := context.Background()
	cfg := &evalchunker.CommonConfig{GlobalMaxChunkSize: 1024 * 1024}

	ch, errs := fixedsize.NewChunker([]string{"fixed-size", "--1"}, cfg)
	require.Empty(t, errs)
	mk, _ := evalblock.MakerFromConfig("sha2-256", 32)

	// 65536 single byte chunks do not fit one index block
	buf := chunkertest.RandomBuffer(13, 64*1024)

	s := NewMemory()
	c, err := Create(ctx, buf, ch, mk, s)
	require.NoError(t, err)

	var dataBlocks, indexBlocks int
	for _, h := range c.Blocks {
		assert.LessOrEqual(t, h.SizeBlock(), maxIndexBlockSize)
		codec, err := evalblock.CidCodec(h.Cid())
		require.NoError(t, err)
		if codec == evalblock.CodecDagCbor {
			indexBlocks++
		} else {
			dataBlocks++
		}
	}
	assert.Equal(t, len(buf), dataBlocks)
	assert.Greater(t, indexBlocks, 1)
	assert.Same(t, c.Root, c.Blocks[len(c.Blocks)-1])
	assert.Len(t, c.Index.Cids, indexBlocks-1)

	back, err := Read(ctx, c.Root.CidBase32(), s)
	require.NoError(t, err)
	assert.Equal(t, buf, back)

	// the same payload again is fully reused
	again, err := Create(ctx, buf, ch, mk, s)
	require.NoError(t, err)
	r, err := reuse.Compare(c.Sequence(), again.Sequence())
	require.NoError(t, err)
	assert.Equal(t, 100.0, r.ReuseRatioPercent)
}

func TestCreateSplitsIndexRecursively(t *testing.T) {
	defer func(prev int) { maxIndexBlockSize = prev }(maxIndexBlockSize)
	maxIndexBlockSize = 256

	ctx := context.Background()
	cfg := &evalchunker.CommonConfig{GlobalMaxChunkSize: 1024 * 1024}

	ch, errs := fixedsize.NewChunker([]string{"fixed-size", "--7"}, cfg)
	require.Empty(t, errs)
	mk, _ := evalblock.MakerFromConfig("sha2-256", 32)

	buf := chunkertest.RandomBuffer(14, 4000)

	s := NewMemory()
	c, err := Create(ctx, buf, ch, mk, s)
	require.NoError(t, err)

	for _, h := range c.Blocks {
		assert.LessOrEqual(t, h.SizeBlock(), maxIndexBlockSize)
	}

	back, err := Read(ctx, c.Root.CidBase32(), s)
	require.NoError(t, err)
	assert.Equal(t, buf, back)
}
