package constants

import (
	"os"
	"strconv"
)

const (
	// The longest incomplete prefix of a UTF-8 character: a 4-byte
	// sequence missing its final byte
	MaxCarryLen = 3

	// Ceiling for a single decode region handed to a decoder instance
	MaxRegionPayloadSize = 512 * 1024
)

type Incomparabe [0]func()

var LongTests bool
var VeryLongTests bool

func init() {
	VeryLongTests = isTruthy("TEST_RUNELACE_VERY_LONG")
	LongTests = VeryLongTests || isTruthy("TEST_RUNELACE_LONG")
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

var PerformSanityChecks = true
