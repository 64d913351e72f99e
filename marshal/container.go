package marshal

// ListValue, SetValue and MapValue are the wire-level shapes of the three
// structural containers: a count followed by recursively-encoded typed
// entries. Ordering is preserved for List; Set and Map are unordered from
// the host's perspective but the wire still carries a stable iteration
// order for reproducible round-trips.
type ListValue struct{ Elems []Arg }

type SetValue struct{ Elems []Arg }

type MapValue struct {
	Keys   []Arg
	Values []Arg
}

// SliceTriple is a {start, stop, step} array-slice descriptor, each bound
// recursively encoded as its own typed integer value.
type SliceTriple struct{ Start, Stop, Step Arg }

// ClientObjectID names an object that lives only on the client side; the
// host holds no corresponding handle, just this opaque correlation ID.
// A negative value denotes the null client object.
type ClientObjectID int32

const NullClientObjectID ClientObjectID = -1

func (id ClientObjectID) IsNull() bool { return id < 0 }
