package lockmgr

import "fmt"

// ThreadID is a logical thread identity: a (connection, client-thread-id)
// pair materialised as a virtual thread that owns locks, independent of
// whichever OS goroutine/worker happens to execute its work. Comparable, so
// it doubles as a map key.
type ThreadID struct {
	Conn   string
	Client uint64
}

func (t ThreadID) String() string { return fmt.Sprintf("%s/%d", t.Conn, t.Client) }
