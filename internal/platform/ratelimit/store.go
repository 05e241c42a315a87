package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultWindow is used when callers pass a non-positive window.
const DefaultWindow = time.Minute

// Store counts requests per client key within a fixed window. Increment
// returns the count for the current window, including the call being counted;
// the window resets once it elapses.
type Store interface {
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

func documentID(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}
