package wpool

import (
	"sync"

	"github.com/pjrmi/pjrmi-go/lockmgr"
)

// VirtualThread is the persistent identity a client-thread-id maps onto:
// lock ownership (via lockmgr.ThreadID) and re-entrancy depth live here,
// independent of which pooled worker goroutine happens to execute any
// given call on its behalf.
type VirtualThread struct {
	TID lockmgr.ThreadID

	mu    sync.Mutex
	depth int
}

// enter marks one more nested call running as this logical thread (a
// client->host->client->host re-entrant chain keeps the same VirtualThread
// across every leg, even though each leg may run on a different worker).
func (vt *VirtualThread) enter() {
	vt.mu.Lock()
	vt.depth++
	vt.mu.Unlock()
}

func (vt *VirtualThread) exit() {
	vt.mu.Lock()
	vt.depth--
	vt.mu.Unlock()
}

// Depth reports the current re-entrancy depth, for diagnostics.
func (vt *VirtualThread) Depth() int {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.depth
}
