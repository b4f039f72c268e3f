// Package chunkertest holds assertions shared by the chunker test suites.
package chunkertest

import (
	"encoding/hex"
	"math/rand/v2"
	"testing"

	sha256 "github.com/minio/sha256-simd"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-shipyard/cdc-reuse/chunker"
	"github.com/ipfs-shipyard/cdc-reuse/maint/src/testhelpers"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

// RandomBuffer returns n reproducible pseudo-random bytes.
func RandomBuffer(seed uint64, n int) []byte {
	var s [32]byte
	s[0] = byte(seed)
	s[1] = byte(seed >> 8)
	buf := make([]byte, n)
	rand.NewChaCha8(s).Read(buf)
	return buf
}

// Blocks splits buf and addresses every chunk by its sha2-256 digest.
func Blocks(t testing.TB, c chunker.Chunker, buf []byte) reuse.BlockSequence {
	t.Helper()

	chunks, err := chunker.SplitAll(c, buf)
	if err != nil && len(buf) <= 64*1024 {
		t.Fatalf("splitting failed: %s%s", err, testhelpers.EncodeTestVector(buf))
	}
	require.NoError(t, err)

	seq := make(reuse.BlockSequence, len(chunks))
	var pos int
	for i, ch := range chunks {
		d := sha256.Sum256(buf[pos : pos+ch.Size])
		seq[i] = reuse.Block{ID: hex.EncodeToString(d[:]), Size: ch.Size}
		pos += ch.Size
	}
	return seq
}

// RequireBounds checks that every chunk but the last stays within [min:max].
func RequireBounds(t testing.TB, seq reuse.BlockSequence, min, max int) {
	t.Helper()
	for i, b := range seq {
		require.LessOrEqual(t, b.Size, max, "chunk #%d", i)
		if i < len(seq)-1 {
			require.GreaterOrEqual(t, b.Size, min, "chunk #%d", i)
		}
	}
}

// RequireShiftResistance inserts a few bytes in the middle of buf and checks
// that the re-chunked result shares at least minRatio percent of its blocks
// with the original.
func RequireShiftResistance(t testing.TB, c chunker.Chunker, buf []byte, minRatio float64) {
	t.Helper()

	mid := len(buf) / 2
	mutated := make([]byte, 0, len(buf)+7)
	mutated = append(mutated, buf[:mid]...)
	mutated = append(mutated, "INSERT!"...)
	mutated = append(mutated, buf[mid:]...)

	r, err := reuse.Compare(Blocks(t, c, buf), Blocks(t, c, mutated))
	require.NoError(t, err)
	require.GreaterOrEqual(t, r.ReuseRatioPercent, minRatio, "%s", r)
}
