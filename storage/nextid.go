package storage

import (
	"strconv"
	"strings"
)

// NextSequentialID computes the next ID for the scheme <prefix><n> given the
// IDs currently present in a collection. Gaps are ignored: the result is
// always max+1, or <prefix>1 when no ID matches the prefix. Shared by the
// repository backends so they agree on allocation behavior.
func NextSequentialID(prefix string, existing []string) string {
	max := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(prefix):])
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1)
}
