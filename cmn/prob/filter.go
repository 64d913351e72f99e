// Package prob implements a dynamic probabilistic set membership filter: a
// fast, concurrency-safe negative pre-check ("definitely not present" with
// no false negatives, occasional false positives) backed by a cuckoo
// filter. Callers that need an authoritative answer always follow a filter
// hit with the real lookup; a filter miss lets them skip it entirely.
package prob

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// Filter wraps a cuckoo filter with a mutex: the upstream implementation
// is not safe for concurrent Insert/Delete.
type Filter struct {
	mu sync.RWMutex
	cf *cuckoo.Filter
}

// NewDefaultFilter creates a filter sized for roughly capacity elements.
func NewDefaultFilter(capacity uint) *Filter {
	return &Filter{cf: cuckoo.NewFilter(capacity)}
}

// Lookup reports whether key may be present. False means "definitely not
// present"; true means "probably present" (verify against the source of
// truth).
func (f *Filter) Lookup(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cf.Lookup([]byte(key))
}

// Insert adds key to the filter; call this after the authoritative source
// has produced a first positive answer for key.
func (f *Filter) Insert(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Insert([]byte(key))
}

// Delete removes key; call this when the authoritative source invalidates
// a previously-positive answer.
func (f *Filter) Delete(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Delete([]byte(key))
}

// Reset discards all entries.
func (f *Filter) Reset(capacity uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cf = cuckoo.NewFilter(capacity)
}
