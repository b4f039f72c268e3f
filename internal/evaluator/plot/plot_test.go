package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

func TestRender(t *testing.T) {
	tab := reuse.NewTabulation()
	for _, k := range []reuse.Key{
		{Materials: 30, Scenario: "append", Codec: "json", Chunker: "fastcdc"},
		{Materials: 30, Scenario: "append", Codec: "json", Chunker: "buzhash"},
		{Materials: 30, Scenario: "modify", Codec: "msgpack+lz4", Chunker: "fastcdc"},
		{Materials: 300, Scenario: "insert", Codec: "json", Chunker: "fastcdc"},
	} {
		r, err := reuse.Compare(
			reuse.BlockSequence{{ID: "a", Size: 1}, {ID: "b", Size: 1}},
			reuse.BlockSequence{{ID: "a", Size: 1}, {ID: "c", Size: 1}},
		)
		require.NoError(t, err)
		tab.Set(k, reuse.Result{Report: r})
	}

	// a not-applicable ratio still renders
	r, err := reuse.Compare(reuse.BlockSequence{{ID: "a", Size: 1}}, nil)
	require.NoError(t, err)
	tab.Set(reuse.Key{Materials: 300, Scenario: "insert", Codec: "json", Chunker: "buzhash"}, reuse.Result{Report: r})

	dir := filepath.Join(t.TempDir(), "charts")
	files, err := Render(tab, dir, "svg")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "plot30-append.svg"),
		filepath.Join(dir, "plot30-modify.svg"),
		filepath.Join(dir, "plot300-insert.svg"),
	}, files)

	for _, fn := range files {
		st, err := os.Stat(fn)
		require.NoError(t, err)
		assert.Greater(t, st.Size(), int64(0))
	}

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "<svg")
}

func TestRenderEmpty(t *testing.T) {
	files, err := Render(reuse.NewTabulation(), t.TempDir(), "png")
	require.NoError(t, err)
	assert.Empty(t, files)
}
