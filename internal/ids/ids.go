// Package ids generates identifiers for tasks, steps, and tool executions.
//
// IDs are a millisecond timestamp plus a short random suffix. They are
// readable and sortable by creation time but only weakly unique; callers
// that need global uniqueness should use a UUID instead.
package ids

import (
	"fmt"
	"math/rand"
	"time"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// suffixLen is the number of random characters appended to each ID.
const suffixLen = 6

// New returns an ID of the form "<prefix>_<unix-ms>_<rand>".
func New(prefix string) string {
	suffix := make([]byte, suffixLen)
	for i := range suffix {
		suffix[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}
