package constants

import (
	"os"
	"strconv"
)

const (
	// upper bound for any single chunk a configured chunker may emit
	// https://github.com/ipfs/go-ipfs-chunker/pull/21#discussion_r369197120
	MaxChunkSize = 1024 * 1024

	// the chunky-bytes index block must fit a regular block as well
	MaxBlockWireSize = (2 * 1024 * 1024) - 1

	// how the reuse evaluation in the wild was originally tuned
	DefaultChangeSize = 3
)

// DefaultMaterialCounts are the dataset sizes evaluated when nothing else is requested
var DefaultMaterialCounts = []int{30, 300, 1200}

var LongTests bool
var VeryLongTests bool

func init() {
	VeryLongTests = isTruthy("TEST_REUSE_VERY_LONG")
	LongTests = VeryLongTests || isTruthy("TEST_REUSE_LONG")
}

func isTruthy(varname string) bool {
	envStr := os.Getenv(varname)
	if envStr != "" {
		if num, err := strconv.ParseUint(envStr, 10, 64); err != nil || num != 0 {
			return true
		}
	}
	return false
}
