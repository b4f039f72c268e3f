package encoder

import (
	"bytes"

	cristalbase64 "github.com/cristalhq/base64"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/shamaton/msgpack/v2"
	"github.com/ulikunitz/xz"
)

var (
	cborEncMode cbor.EncMode
	zstdEncoder *zstd.Encoder
)

func init() {
	var err error
	if cborEncMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("encoder: CBOR encoder initialization failed: " + err.Error())
	}

	// EncodeAll on a shared encoder is safe for concurrent use
	if zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic("encoder: zstd encoder initialization failed: " + err.Error())
	}
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(v any) ([]byte, error) { return json.Marshal(v) }

type msgpackSerializer struct{}

func (msgpackSerializer) Serialize(v any) ([]byte, error) { return msgpack.Marshal(v) }

type cborSerializer struct{}

func (cborSerializer) Serialize(v any) ([]byte, error) { return cborEncMode.Marshal(v) }

type lz4Transform struct{}

func (lz4Transform) Apply(in []byte) ([]byte, error) {
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// zlib-wrapped deflate, the framing produced by pako.deflate()
type deflateTransform struct{}

func (deflateTransform) Apply(in []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := zlib.NewWriterLevel(&out, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type zstdTransform struct{}

func (zstdTransform) Apply(in []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(in, make([]byte, 0, len(in)/2)), nil
}

type xzTransform struct{}

func (xzTransform) Apply(in []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := xz.NewWriter(&out)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type base64Transform struct{}

func (base64Transform) Apply(in []byte) ([]byte, error) {
	return []byte(cristalbase64.StdEncoding.EncodeToString(in)), nil
}
