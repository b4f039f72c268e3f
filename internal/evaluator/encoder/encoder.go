// Package encoder turns a dataset into the byte payload that gets chunked.
// A codec is a serializer optionally followed by a chain of byte transforms,
// specified as e.g. 'msgpack+lz4' and resolved once at configuration time.
package encoder

import (
	"fmt"
	"strings"

	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
)

type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
}

type Serializer interface {
	Serialize(v any) ([]byte, error)
}

type Transform interface {
	Apply(in []byte) ([]byte, error)
}

var AvailableSerializers = map[string]Serializer{
	"json":    jsonSerializer{},
	"msgpack": msgpackSerializer{},
	"cbor":    cborSerializer{},
}

var AvailableTransforms = map[string]Transform{
	"lz4":     lz4Transform{},
	"deflate": deflateTransform{},
	"zstd":    zstdTransform{},
	"xz":      xzTransform{},
	"base64":  base64Transform{},
}

// aliases kept for result comparability with earlier evaluations
var codecAliases = map[string]string{
	"packr": "msgpack",
	"lz4":   "msgpack+lz4",
	"packo": "msgpack+deflate",
}

type pipeline struct {
	name       string
	serializer Serializer
	transforms []Transform
}

func (p *pipeline) Name() string { return p.name }

func (p *pipeline) Encode(v any) ([]byte, error) {
	out, err := p.serializer.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("codec '%s' serialization failed: %w", p.name, err)
	}
	for i, t := range p.transforms {
		if out, err = t.Apply(out); err != nil {
			return nil, fmt.Errorf("codec '%s' transform #%d failed: %w", p.name, i+1, err)
		}
	}
	return out, nil
}

// New resolves a codec spec 'serializer[+transform...]'
func New(spec string) (Codec, []string) {
	name := spec
	if expanded, isAlias := codecAliases[spec]; isAlias {
		spec = expanded
	}

	parts := strings.Split(spec, "+")
	p := &pipeline{name: name}

	var initErrs []string

	var found bool
	if p.serializer, found = AvailableSerializers[parts[0]]; !found {
		initErrs = append(initErrs, fmt.Sprintf(
			"codec '%s': unknown serializer '%s', available serializers are: %s",
			name, parts[0], util.AvailableMapKeys(AvailableSerializers),
		))
	}

	for _, tn := range parts[1:] {
		t, found := AvailableTransforms[tn]
		if !found {
			initErrs = append(initErrs, fmt.Sprintf(
				"codec '%s': unknown transform '%s', available transforms are: %s",
				name, tn, util.AvailableMapKeys(AvailableTransforms),
			))
			continue
		}
		p.transforms = append(p.transforms, t)
	}

	if len(initErrs) > 0 {
		return nil, initErrs
	}
	return p, nil
}
