package buzhash

var hashTables = map[string]*[256]uint32{
	"xorshift-32": xorshiftTable(0x9e3779b9),
	"splitmix-32": splitmixTable(0x1f3d5b79),
}

func xorshiftTable(seed uint32) *[256]uint32 {
	var t [256]uint32
	x := seed
	for i := range t {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		t[i] = x
	}
	return &t
}

func splitmixTable(seed uint64) *[256]uint32 {
	var t [256]uint32
	x := seed
	for i := range t {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		t[i] = uint32((z ^ (z >> 31)) >> 32)
	}
	return &t
}
