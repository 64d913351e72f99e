package cos

import "unsafe"

// UnsafeB and UnsafeS perform zero-copy []byte<->string conversions. Callers
// must not mutate the returned/source buffer afterward - used on hot paths
// (frame encode/decode, handle-table keys) where the allocation would
// otherwise dominate.

func UnsafeB(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func UnsafeS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
