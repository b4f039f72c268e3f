package reuse

import (
	"fmt"
	"sort"
	"sync"
)

// Key identifies one cell of an evaluation matrix.
type Key struct {
	Materials int    `json:"materials"`
	Scenario  string `json:"scenario"`
	Codec     string `json:"codec"`
	Chunker   string `json:"chunker"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%s-%s-%s", k.Materials, k.Scenario, k.Codec, k.Chunker)
}

// Category is the grouping used for charts and text tables: one group per
// dataset size and mutation scenario.
type Category struct {
	Materials int
	Scenario  string
}

func (k Key) Category() Category { return Category{k.Materials, k.Scenario} }

// Result is the outcome of comparing one before/after pair.
type Result struct {
	Report Report `json:"report"`

	// sizes of the serialized payloads that were chunked
	BytesBefore int64 `json:"bytesBefore"`
	BytesAfter  int64 `json:"bytesAfter"`

	// distinct blocks held by the block store after ingesting each side
	StoredBefore int `json:"storedBefore"`
	StoredAfter  int `json:"storedAfter"`
}

// Tabulation accumulates results of a single evaluation run. It is created
// per run and handed explicitly to whoever needs the results. Safe for
// concurrent Set calls.
type Tabulation struct {
	mu      sync.Mutex
	results map[Key]Result
}

func NewTabulation() *Tabulation {
	return &Tabulation{results: make(map[Key]Result)}
}

func (t *Tabulation) Set(k Key, r Result) {
	t.mu.Lock()
	t.results[k] = r
	t.mu.Unlock()
}

func (t *Tabulation) Get(k Key) (r Result, found bool) {
	t.mu.Lock()
	r, found = t.results[k]
	t.mu.Unlock()
	return
}

func (t *Tabulation) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.results)
}

// Keys returns every key ordered by materials, scenario, codec and chunker.
func (t *Tabulation) Keys() []Key {
	t.mu.Lock()
	keys := make([]Key, 0, len(t.results))
	for k := range t.results {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	sortKeys(keys)
	return keys
}

// Categories returns the distinct categories present, in key order.
func (t *Tabulation) Categories() []Category {
	var cats []Category
	seen := make(map[Category]bool)
	for _, k := range t.Keys() {
		if c := k.Category(); !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	return cats
}

// Filter returns the ordered keys belonging to a single category.
func (t *Tabulation) Filter(c Category) []Key {
	var sel []Key
	for _, k := range t.Keys() {
		if k.Category() == c {
			sel = append(sel, k)
		}
	}
	return sel
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Materials != b.Materials {
			return a.Materials < b.Materials
		}
		if a.Scenario != b.Scenario {
			return a.Scenario < b.Scenario
		}
		if a.Codec != b.Codec {
			return a.Codec < b.Codec
		}
		return a.Chunker < b.Chunker
	})
}
