package typereg_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pjrmi/pjrmi-go/typereg"
)

// countingSource builds each name exactly once and counts how many times
// Build was actually invoked, so tests can assert idempotence under
// concurrent callers.
type countingSource struct {
	builds int64
}

func (s *countingSource) Build(_ *typereg.Registry, id typereg.TypeID, name string) (*typereg.TypeDescriptor, error) {
	atomic.AddInt64(&s.builds, 1)
	return &typereg.TypeDescriptor{ID: id, Name: name}, nil
}

func TestRegistryIdempotence(t *testing.T) {
	src := &countingSource{}
	reg := typereg.New(src)

	const n = 64
	var wg sync.WaitGroup
	ids := make([]typereg.TypeID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			td, err := reg.GetByName("com.example.Widget")
			if err != nil {
				t.Errorf("GetByName: %v", err)
				return
			}
			ids[i] = td.ID
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&src.builds); got != 1 {
		t.Fatalf("expected exactly one Build call for N concurrent requests, got %d", got)
	}
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("expected every caller to observe the same type ID, got %d and %d", ids[0], ids[i])
		}
	}
}

func TestVoidTypeIDIsZero(t *testing.T) {
	reg := typereg.New(nil)
	td, ok := reg.GetByID(typereg.VoidTypeID)
	if !ok || td.Name != "void" {
		t.Fatalf("expected type 0 to be void, got %+v ok=%v", td, ok)
	}
}

func TestGetByNameUnknownWithoutSource(t *testing.T) {
	reg := typereg.New(nil)
	if _, err := reg.GetByName("no.such.Type"); err == nil {
		t.Fatal("expected an error for an unknown type with no source")
	}
}
