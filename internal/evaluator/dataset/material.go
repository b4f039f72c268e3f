// Package dataset generates reproducible synthetic material records and the
// before/after variants evaluated for block reuse.
package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/twmb/murmur3"
)

type Component struct {
	Element  string  `json:"element" msgpack:"element" cbor:"element"`
	Fraction float64 `json:"fraction" msgpack:"fraction" cbor:"fraction"`
}

type Material struct {
	ID                  string      `json:"id" msgpack:"id" cbor:"id"`
	Name                string      `json:"name" msgpack:"name" cbor:"name"`
	Category            string      `json:"category" msgpack:"category" cbor:"category"`
	Description         string      `json:"description" msgpack:"description" cbor:"description"`
	Density             float64     `json:"density" msgpack:"density" cbor:"density"`
	MeltingPoint        float64     `json:"meltingPoint" msgpack:"meltingPoint" cbor:"meltingPoint"`
	TensileStrength     float64     `json:"tensileStrength" msgpack:"tensileStrength" cbor:"tensileStrength"`
	ElasticModulus      float64     `json:"elasticModulus" msgpack:"elasticModulus" cbor:"elasticModulus"`
	ThermalConductivity float64     `json:"thermalConductivity" msgpack:"thermalConductivity" cbor:"thermalConductivity"`
	Tags                []string    `json:"tags" msgpack:"tags" cbor:"tags"`
	Composition         []Component `json:"composition" msgpack:"composition" cbor:"composition"`
	CreatedMillis       int64       `json:"created" msgpack:"created" cbor:"created"`
}

var (
	categories = []string{"metal", "alloy", "polymer", "ceramic", "composite", "glass", "elastomer", "semiconductor"}
	prefixes   = []string{"Hyper", "Ultra", "Duro", "Flexi", "Thermo", "Cryo", "Nano", "Poly", "Ferro", "Lumi"}
	stems      = []string{"lite", "steel", "carb", "tex", "sil", "plast", "bond", "weave", "core", "flex"}
	elements   = []string{"Fe", "C", "Cr", "Ni", "Mo", "Al", "Si", "Ti", "Cu", "Zn", "Mn", "O", "H", "N", "B"}
	adjectives = []string{"lightweight", "corrosion resistant", "heat treated", "machinable", "brittle", "ductile", "transparent", "conductive", "insulating", "wear resistant"}
	uses       = []string{"aerospace structures", "medical implants", "consumer electronics", "marine hardware", "packaging", "automotive panels", "cutting tools", "thermal barriers"}
	tagPool    = []string{"certified", "recyclable", "rohs", "reach", "food-grade", "high-temp", "low-cost", "experimental", "legacy", "preferred"}
)

// epoch all generated timestamps count from: 2022-01-01T00:00:00Z
const createdEpochMillis = 1640995200000

// Generator is deterministic for a given seed. Not safe for concurrent use.
type Generator struct {
	key [32]byte
	src *rand.ChaCha8
	rng *rand.Rand
	seq int64
}

func NewGenerator(seed uint64) *Generator {
	var s [32]byte
	for i := 0; i < 8; i++ {
		s[i] = byte(seed >> (8 * i))
	}
	src := rand.NewChaCha8(s)
	return &Generator{key: s, src: src, rng: rand.New(src)}
}

// Fork derives an independent generator keyed on the parent's key and the
// label, so forks of different parents never coincide. The random stream
// does not depend on how much of the parent was consumed, creation times
// continue where the parent left off.
func (g *Generator) Fork(label string) *Generator {
	var s [32]byte
	h1, h2 := murmur3.Sum128(append(g.key[:], label...))
	h3, h4 := murmur3.Sum128(append([]byte(label), g.key[:]...))
	for i := 0; i < 8; i++ {
		s[i] = byte(h1 >> (8 * i))
		s[8+i] = byte(h2 >> (8 * i))
		s[16+i] = byte(h3 >> (8 * i))
		s[24+i] = byte(h4 >> (8 * i))
	}
	src := rand.NewChaCha8(s)
	return &Generator{key: s, src: src, rng: rand.New(src), seq: g.seq}
}

func (g *Generator) pick(from []string) string { return from[g.rng.IntN(len(from))] }

func (g *Generator) between(lo, hi float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round((lo+g.rng.Float64()*(hi-lo))*p) / p
}

func (g *Generator) Material() Material {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8 reads never fail
		panic(fmt.Sprintf("uuid generation failed: %s", err))
	}

	cat := g.pick(categories)
	m := Material{
		ID:            id.String(),
		Name:          fmt.Sprintf("%s%s %d", g.pick(prefixes), g.pick(stems), 100+g.rng.IntN(9900)),
		Category:      cat,
		CreatedMillis: createdEpochMillis + g.seq*3600*1000 + g.rng.Int64N(3600*1000),
	}
	g.seq++

	g.fillProperties(&m)
	return m
}

func (g *Generator) fillProperties(m *Material) {
	m.Description = fmt.Sprintf(
		"A %s, %s %s intended for %s.",
		g.pick(adjectives), g.pick(adjectives), m.Category, g.pick(uses),
	)
	m.Density = g.between(0.8, 22.5, 3)
	m.MeltingPoint = g.between(300, 3800, 1)
	m.TensileStrength = g.between(5, 2500, 1)
	m.ElasticModulus = g.between(0.01, 450, 2)
	m.ThermalConductivity = g.between(0.02, 420, 3)

	m.Tags = m.Tags[:0]
	for _, i := range g.rng.Perm(len(tagPool))[:1+g.rng.IntN(4)] {
		m.Tags = append(m.Tags, tagPool[i])
	}

	m.Composition = m.Composition[:0]
	remaining := 1.0
	picked := g.rng.Perm(len(elements))[:2+g.rng.IntN(4)]
	for n, i := range picked {
		frac := remaining
		if n < len(picked)-1 {
			frac = math.Round(remaining*g.rng.Float64()*1000) / 1000
		}
		remaining -= frac
		m.Composition = append(m.Composition, Component{Element: elements[i], Fraction: frac})
	}
}

// Materials returns n freshly generated records.
func (g *Generator) Materials(n int) []Material {
	out := make([]Material, n)
	for i := range out {
		out[i] = g.Material()
	}
	return out
}
