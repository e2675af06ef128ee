package logstream

import (
	"math/big"
	"regexp"
)

var completionPattern = regexp.MustCompile(`(?i)^all tests completed!?([+-]?[0-9]+)?$`)

// Completion inspects a finished console message for the sentinel the page
// prints when its run is over. The reported code is reduced to the 0-255
// range of a process exit status; a sentinel without a number reports 0.
func Completion(message string) (code int, ok bool) {
	m := completionPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return 0, true
	}
	n, valid := new(big.Int).SetString(m[1], 10)
	if !valid {
		return 0, true
	}
	// big.Int.And uses two's complement for negative values, so -1 becomes 255.
	return int(n.And(n, big.NewInt(0xff)).Int64()), true
}
