//go:build !mono

package mono

import "time"

// NanoTime returns a monotonically increasing nanosecond counter. Absent the
// "mono" build tag (the runtime.nanotime linkname trick), time.Now()'s
// monotonic reading is used instead.
func NanoTime() int64 {
	return start.UnixNano() + int64(time.Since(start))
}

var start = time.Now()
