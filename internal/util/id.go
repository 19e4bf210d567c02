package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns a time-ordered identifier with a random suffix. A collision
// needs two IDs minted in the same millisecond with the same 8 random bytes,
// which is negligible for this workload.
func NewID(prefix string) string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	suffix := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), hex.EncodeToString(bytes))
	if prefix == "" {
		return suffix
	}
	return prefix + "_" + suffix
}
