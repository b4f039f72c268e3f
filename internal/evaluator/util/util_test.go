package util

import (
	"testing"

	getopt "github.com/pborman/getopt/v2"
	"github.com/stretchr/testify/assert"
)

func TestCommify(t *testing.T) {
	for in, out := range map[int64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		-1234567:   "-1,234,567",
		1048576:    "1,048,576",
		1000000000: "1,000,000,000",
	} {
		assert.Equal(t, out, string(Commify64(in)))
	}
}

func TestVarint(t *testing.T) {
	assert.Equal(t, []byte{0x55}, AppendVarint(nil, 0x55))
	assert.Equal(t, []byte{0xa0, 0xe4, 0x02}, AppendVarint(nil, 0xb220))
	assert.Equal(t, 1, VarintWireSize(0))
	assert.Equal(t, 3, VarintWireSize(0xb220))
}

func TestAvailableMapKeys(t *testing.T) {
	assert.Equal(t, "'a', 'b', 'c'", AvailableMapKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Panics(t, func() { AvailableMapKeys([]string{"a"}) })
}

func TestArgParse(t *testing.T) {
	var size int
	o := getopt.New()
	o.FlagLong(&size, "size", 0, "a size")

	assert.Empty(t, ArgParse([]string{"plugin", "--size=42"}, o))
	assert.Equal(t, 42, size)

	o = getopt.New()
	o.FlagLong(&size, "size", 0, "a size")
	errs := ArgParse([]string{"plugin", "--size=1", "stray"}, o)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "stray")

	o = getopt.New()
	assert.Len(t, ArgParse([]string{"plugin", "--nope"}, o), 1)
}
