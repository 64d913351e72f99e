package authz

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// CuckooClassFilter wraps an authoritative class-permitted map with a
// cuckoo-filter fast-reject cache ahead of it: a miss in the filter proves
// the class was never allow-listed and short-circuits straight to denial,
// so a flood of lookups for never-permitted classes (a common probing
// pattern) never consults the map. Both checks run under one read lock,
// which also guards the filter. A hit still falls through to the
// authoritative map, since a cuckoo filter's positives can be false.
type CuckooClassFilter struct {
	mu        sync.RWMutex
	allowed   map[string]bool
	filter    *cuckoo.Filter
	injection map[string]bool // nil means "same as allowed"
}

// NewCuckooClassFilter builds a filter seeded with the initially-permitted
// class names. Capacity should be sized to roughly the expected number of
// distinct permitted classes.
func NewCuckooClassFilter(capacity uint, initiallyAllowed []string) *CuckooClassFilter {
	f := &CuckooClassFilter{
		allowed: make(map[string]bool, len(initiallyAllowed)),
		filter:  cuckoo.NewFilter(capacity),
	}
	for _, name := range initiallyAllowed {
		f.Allow(name)
	}
	return f
}

// Allow adds className to the permitted set.
func (f *CuckooClassFilter) Allow(className string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed[className] = true
	f.filter.InsertUnique([]byte(className))
}

// Revoke removes className from the permitted set. The cuckoo filter keeps
// the (now stale) positive entry; IsClassPermitted's map check still
// denies correctly, at the cost of one wasted filter hit per lookup of a
// revoked name.
func (f *CuckooClassFilter) Revoke(className string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.allowed, className)
}

func (f *CuckooClassFilter) IsClassPermitted(className string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.filter.Lookup([]byte(className)) {
		return false
	}
	return f.allowed[className]
}

func (f *CuckooClassFilter) IsClassInjectionPermitted(className string) bool {
	return f.IsClassPermitted(className)
}
