package evalblock

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"sync"

	blake2b "github.com/minio/blake2b-simd"
	sha256 "github.com/minio/sha256-simd"
	"github.com/twmb/murmur3"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"

	"github.com/ipfs-shipyard/cdc-reuse/internal/constants"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

// multihash ids come from https://github.com/multiformats/multicodec/blob/master/table.csv
var AvailableHashers = map[string]hasher{
	"sha2-256": {
		multihashID: 0x12,
		hasherMaker: sha256.New,
	},
	"sha3-512": {
		multihashID: 0x14,
		hasherMaker: sha3.New512,
	},
	"blake2b-256": {
		multihashID: 0xb220,
		hasherMaker: blake2b.New256,
	},
	"blake3": {
		multihashID: 0x1e,
		hasherMaker: func() hash.Hash { return blake3.New() },
	},
	"murmur3-128": {
		multihashID: 0x22,
		hasherMaker: func() hash.Hash { return murmur3.New128() },
	},
}

type hasher struct {
	hasherMaker func() hash.Hash
	multihashID uint
}

const (
	CodecRaw     uint = 0x55
	CodecDagCbor uint = 0x71
)

type Header struct {
	sizeBlock int
	cid       []byte
}

func (h *Header) Cid() []byte    { return h.cid }
func (h *Header) SizeBlock() int { return h.sizeBlock }

var b32Encoder *base32.Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// CidBase32 renders a binary CID as multibase base32 ( 'b' prefix )
func CidBase32(cid []byte) string {
	return "b" + b32Encoder.EncodeToString(cid)
}

// CidFromBase32 is the inverse of CidBase32
func CidFromBase32(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != 'b' {
		return nil, fmt.Errorf("'%s' is not a base32 multibase string", s)
	}
	return b32Encoder.DecodeString(s[1:])
}

// CidCodec extracts the content codec of a binary CIDv1
func CidCodec(cid []byte) (uint, error) {
	if len(cid) < 2 || cid[0] != 1 {
		return 0, fmt.Errorf("not a CIDv1: %x", cid)
	}
	codec, n := binary.Uvarint(cid[1:])
	if n <= 0 {
		return 0, fmt.Errorf("malformed codec varint in CID %x", cid)
	}
	return uint(codec), nil
}

func (h *Header) CidBase32() string {
	if h == nil {
		return "N/A"
	}
	return CidBase32(h.cid)
}

func (h *Header) String() string { return h.CidBase32() }

// Block converts the header into the unit the reuse comparison works on
func (h *Header) Block() reuse.Block {
	return reuse.Block{ID: h.CidBase32(), Size: h.sizeBlock}
}

// ErrBlockTooLarge is returned by a Maker handed more than
// constants.MaxBlockWireSize bytes.
var ErrBlockTooLarge = errors.New("block exceeds the hard maximum block size")

// Maker is safe for concurrent use.
type Maker func(
	blockContent []byte,
	codecID uint,
) (*Header, error)

func MakerFromConfig(
	hashAlg string,
	cidHashSize int,
) (maker Maker, errString string) {

	hashopts, found := AvailableHashers[hashAlg]
	if !found {
		errString = fmt.Sprintf(
			"invalid hash function '%s'. Available hash names are %s",
			hashAlg,
			util.AvailableMapKeys(AvailableHashers),
		)
		return
	}

	nativeHashSize := hashopts.hasherMaker().Size()

	if nativeHashSize < cidHashSize {
		errString = fmt.Sprintf(
			"selected hash function '%s' does not produce a digest satisfying the requested amount of --hash-bits '%d'",
			hashAlg,
			cidHashSize*8,
		)
		return
	}

	hasherPool := sync.Pool{
		New: func() interface{} { return hashopts.hasherMaker() },
	}

	cidPrefix := func(codecID uint) (p []byte) {
		p = make([]byte, 0, 1+
			util.VarintWireSize(uint64(codecID))+
			util.VarintWireSize(uint64(hashopts.multihashID))+
			util.VarintWireSize(uint64(cidHashSize)),
		)
		p = append(p, byte(1))
		p = util.AppendVarint(p, uint64(codecID))
		p = util.AppendVarint(p, uint64(hashopts.multihashID))
		return util.AppendVarint(p, uint64(cidHashSize))
	}

	// prefixes of the codecs in actual use are computed once, read-only afterwards
	knownPrefixes := map[uint][]byte{
		CodecRaw:     cidPrefix(CodecRaw),
		CodecDagCbor: cidPrefix(CodecDagCbor),
	}

	maker = func(
		blockContent []byte,
		codecID uint,
	) (*Header, error) {

		if len(blockContent) > constants.MaxBlockWireSize {
			return nil, fmt.Errorf(
				"%w: %s bytes over a limit of %s",
				ErrBlockTooLarge,
				util.Commify(len(blockContent)),
				util.Commify(constants.MaxBlockWireSize),
			)
		}

		prefix, known := knownPrefixes[codecID]
		if !known {
			prefix = cidPrefix(codecID)
		}

		finLen := len(prefix) + cidHashSize
		cid := append(
			make([]byte, 0, len(prefix)+nativeHashSize),
			prefix...,
		)

		h := hasherPool.Get().(hash.Hash)
		h.Reset()
		h.Write(blockContent)
		cid = (h.Sum(cid))[0:finLen:finLen]
		hasherPool.Put(h)

		return &Header{
			sizeBlock: len(blockContent),
			cid:       cid,
		}, nil
	}

	return
}
