package shm_test

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/shm"
	"github.com/pjrmi/pjrmi-go/typereg"
)

func init() { cos.InitShortID(1) }

func TestWriteThenReadArrayRoundTrip(t *testing.T) {
	store, err := shm.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []float64{1.5, -2.25, 3.0}
	filename, count, err := store.WriteArray(typereg.PrimDouble, want)
	if err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	if count != int32(len(want)) {
		t.Fatalf("expected count %d, got %d", len(want), count)
	}

	got, err := store.ReadArray(marshal.SharedMemRef{Filename: filename, Count: count, Elem: typereg.PrimDouble})
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	gotSlice, ok := got.([]float64)
	if !ok || len(gotSlice) != len(want) {
		t.Fatalf("unexpected result %#v", got)
	}
	for i := range want {
		if gotSlice[i] != want[i] {
			t.Fatalf("element %d: want %v got %v", i, want[i], gotSlice[i])
		}
	}
}

func TestDropRemovesSegment(t *testing.T) {
	store, err := shm.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	filename, count, err := store.WriteArray(typereg.PrimInt, []int32{1, 2, 3})
	if err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	if err := store.Drop(filename); err != nil {
		t.Fatalf("Drop: %v", err)
	}

	if _, err := store.ReadArray(marshal.SharedMemRef{Filename: filename, Count: count, Elem: typereg.PrimInt}); err == nil {
		t.Fatalf("expected ReadArray to fail after Drop")
	}
}

func TestEmptyArrayRoundTrip(t *testing.T) {
	store, err := shm.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	filename, count, err := store.WriteArray(typereg.PrimByte, []byte{})
	if err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}

	got, err := store.ReadArray(marshal.SharedMemRef{Filename: filename, Count: 0, Elem: typereg.PrimByte})
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	if got != nil {
		if b, ok := got.([]byte); !ok || len(b) != 0 {
			t.Fatalf("expected an empty byte slice, got %#v", got)
		}
	}
}

