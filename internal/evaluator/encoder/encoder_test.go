package encoder

import (
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/shamaton/msgpack/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/dataset"
)

func materials() []dataset.Material {
	return dataset.NewGenerator(5).Materials(40)
}

func decodeTransform(t *testing.T, name string, in []byte) []byte {
	t.Helper()

	var r io.Reader
	var err error
	switch name {
	case "lz4":
		r = lz4.NewReader(bytes.NewReader(in))
	case "deflate":
		r, err = zlib.NewReader(bytes.NewReader(in))
	case "xz":
		r, err = xz.NewReader(bytes.NewReader(in))
	case "zstd":
		dec, derr := zstd.NewReader(nil)
		require.NoError(t, derr)
		defer dec.Close()
		out, derr := dec.DecodeAll(in, nil)
		require.NoError(t, derr)
		return out
	case "base64":
		out, derr := base64.StdEncoding.DecodeString(string(in))
		require.NoError(t, derr)
		return out
	default:
		t.Fatalf("no decoder for transform %s", name)
	}
	require.NoError(t, err)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestSerializersRoundtrip(t *testing.T) {
	in := materials()

	for name, decode := range map[string]func([]byte, any) error{
		"json":    json.Unmarshal,
		"msgpack": msgpack.Unmarshal,
		"cbor":    cbor.Unmarshal,
	} {
		t.Run(name, func(t *testing.T) {
			c, errs := New(name)
			require.Empty(t, errs)

			enc, err := c.Encode(in)
			require.NoError(t, err)

			var back []dataset.Material
			require.NoError(t, decode(enc, &back))
			assert.Equal(t, in, back)

			again, err := c.Encode(in)
			require.NoError(t, err)
			assert.Equal(t, enc, again, "encoding is not deterministic")
		})
	}
}

func TestTransformsRoundtrip(t *testing.T) {
	plain, err := AvailableSerializers["msgpack"].Serialize(materials())
	require.NoError(t, err)

	for name := range AvailableTransforms {
		t.Run(name, func(t *testing.T) {
			c, errs := New("msgpack+" + name)
			require.Empty(t, errs)
			assert.Equal(t, "msgpack+"+name, c.Name())

			enc, err := c.Encode(materials())
			require.NoError(t, err)
			assert.Equal(t, plain, decodeTransform(t, name, enc))
		})
	}
}

func TestChainedTransforms(t *testing.T) {
	c, errs := New("json+zstd+base64")
	require.Empty(t, errs)

	enc, err := c.Encode(materials())
	require.NoError(t, err)

	plain, err := json.Marshal(materials())
	require.NoError(t, err)
	assert.Equal(t, plain, decodeTransform(t, "zstd", decodeTransform(t, "base64", enc)))
}

func TestAliases(t *testing.T) {
	for alias, spec := range codecAliases {
		a, errs := New(alias)
		require.Empty(t, errs)
		assert.Equal(t, alias, a.Name())

		s, errs := New(spec)
		require.Empty(t, errs)

		ea, err := a.Encode(materials())
		require.NoError(t, err)
		es, err := s.Encode(materials())
		require.NoError(t, err)

		// lz4 frames and zlib streams carry no timestamps: identical input, identical output
		assert.Equal(t, es, ea, alias)
	}
}

func TestCodecErrors(t *testing.T) {
	_, errs := New("yaml")
	assert.Len(t, errs, 1)

	_, errs = New("json+gzip+rot13")
	assert.Len(t, errs, 2)

	_, errs = New("bson+brotli")
	assert.Len(t, errs, 2)
}
