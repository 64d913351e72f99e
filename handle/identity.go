package handle

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/OneOfOne/xxhash"
)

// identity is the handle table's notion of object identity: pointer
// identity for reference-shaped values (pointers, maps, channels, funcs,
// slices), and a value-keyed "box" identity for everything else (the
// eight boxed primitives, strings, comparable structs) so that two wire
// round-trips of the same value return the same handle.
type identity struct {
	typ reflect.Type

	// reference-shaped
	ptr uintptr
	ln  int // slice length, to distinguish re-sliced views of one array

	// boxed (value-shaped)
	boxed      bool
	boxedValue any
}

func identityOf(obj any) identity {
	if obj == nil {
		return identity{}
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return identity{typ: rv.Type(), ptr: rv.Pointer()}
	case reflect.Slice:
		return identity{typ: rv.Type(), ptr: rv.Pointer(), ln: rv.Len()}
	default:
		return identity{typ: rv.Type(), boxed: true, boxedValue: obj}
	}
}

func (id identity) isNil() bool { return id.typ == nil }

// bytes renders id as a deterministic byte key, hashed below with xxhash
// rather than relied on as a Go map key directly: a map keyed on a struct
// that embeds an `any` routes every lookup through the runtime's dynamic
// interface-hashing path, which is markedly slower than hashing a flat byte
// key once up front - worthwhile here since object->handle lookups happen
// on every argument/return value crossing the wire.
func (id identity) bytes() []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, id.typ.String()...)
	buf = append(buf, 0)
	if id.boxed {
		buf = append(buf, fmt.Sprintf("%#v", id.boxedValue)...)
		return buf
	}
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(id.ptr))
	binary.LittleEndian.PutUint64(b[8:16], uint64(id.ln))
	return append(buf, b[:]...)
}

func (id identity) hash() uint64 { return xxhash.Checksum64(id.bytes()) }

func (id identity) equal(other identity) bool {
	if id.typ != other.typ || id.boxed != other.boxed {
		return false
	}
	if id.boxed {
		return id.boxedValue == other.boxedValue
	}
	return id.ptr == other.ptr && id.ln == other.ln
}
