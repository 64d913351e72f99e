//go:build mono

// Package mono provides low-level monotonic time, reading straight off the
// runtime clock where the linkname trick is available (see fallback.go for
// the portable default).
package mono

import (
	_ "unsafe" // for go:linkname
)

// https://golang.org/pkg/runtime/?m=all#nanotime
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
