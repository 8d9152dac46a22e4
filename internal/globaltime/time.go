// Package globaltime provides the process clock. Tests pin it with
// SetMockTime so sync timestamps are deterministic.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Stamp renders the current UTC instant in the millisecond ISO-8601 form
// used as the sync timestamp throughout the reconciliation engine.
func Stamp() string {
	return UTC().Format("2006-01-02T15:04:05.000Z")
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
