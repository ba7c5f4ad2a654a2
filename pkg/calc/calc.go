// Package calc holds small arithmetic helpers for progress reporting.
package calc

import (
	"math"
	"time"
)

// Progress returns downloaded as a rounded percentage of total, or 0 when total is unknown.
func Progress(downloaded, total int) int {
	if total <= 0 {
		return 0
	}

	return int(math.Round(float64(downloaded) / float64(total) * 100))
}

// ETA extrapolates the remaining time from the rate observed since started.
// It returns 0 until both sizes are known.
func ETA(downloaded, total int, started time.Time) time.Duration {
	if total <= 0 || downloaded == 0 {
		return 0
	}

	elapsed := time.Since(started)

	return time.Duration(float64(elapsed) * (float64(total)/float64(downloaded) - 1))
}
