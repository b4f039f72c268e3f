package dataset

// Scenario is one way of deriving the after-dataset from the before-dataset.
// Apply never mutates base.
type Scenario interface {
	Name() string
	// DefaultOffset is where the change lands when no offset is requested
	DefaultOffset(baseLen int) int
	Apply(gen *Generator, base []Material, offset, size int) []Material
}

var AvailableScenarios = map[string]Scenario{
	"append": Append{},
	"insert": Insert{},
	"modify": Modify{},
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func middle(n int) int {
	if n < 1 {
		return 0
	}
	return (n - 1) / 2
}

// Append adds size new materials past the end, offset is ignored.
type Append struct{}

func (Append) Name() string                  { return "append" }
func (Append) DefaultOffset(baseLen int) int { return baseLen }
func (Append) Apply(gen *Generator, base []Material, _, size int) []Material {
	out := make([]Material, 0, len(base)+size)
	out = append(out, base...)
	return append(out, gen.Materials(size)...)
}

// Insert splices size new materials in at offset.
type Insert struct{}

func (Insert) Name() string                  { return "insert" }
func (Insert) DefaultOffset(baseLen int) int { return middle(baseLen) }
func (Insert) Apply(gen *Generator, base []Material, offset, size int) []Material {
	offset = clamp(offset, 0, len(base))

	out := make([]Material, 0, len(base)+size)
	out = append(out, base[:offset]...)
	out = append(out, gen.Materials(size)...)
	return append(out, base[offset:]...)
}

// Modify replaces size existing materials starting at offset with freshly
// generated ones. The change is truncated at the end of the dataset.
type Modify struct{}

func (Modify) Name() string                  { return "modify" }
func (Modify) DefaultOffset(baseLen int) int { return middle(baseLen) }
func (Modify) Apply(gen *Generator, base []Material, offset, size int) []Material {
	offset = clamp(offset, 0, len(base))
	end := clamp(offset+size, offset, len(base))

	out := make([]Material, len(base))
	copy(out, base)
	for i := offset; i < end; i++ {
		out[i] = gen.Material()
	}
	return out
}

// Pair is a dataset before and after a scenario was applied.
type Pair struct {
	Scenario string
	Offset   int
	Size     int
	Before   []Material
	After    []Material
}

// Build applies sc to base, using offset when non-negative and the
// scenario default otherwise. The change is drawn from a generator forked
// off gen under the scenario name.
func Build(gen *Generator, base []Material, offset, size int, sc Scenario) Pair {
	if offset < 0 {
		offset = sc.DefaultOffset(len(base))
	}
	return Pair{
		Scenario: sc.Name(),
		Offset:   offset,
		Size:     size,
		Before:   base,
		After:    sc.Apply(gen.Fork(sc.Name()), base, offset, size),
	}
}
