package shm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pjrmi/pjrmi-go/typereg"
)

func TestSweepReapsUntouchedSegments(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.MaxAge = 0 // everything not touched since "now" is immediately stale

	filename, _, err := s.WriteArray(typereg.PrimInt, []int32{1, 2, 3})
	if err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	time.Sleep(time.Millisecond)

	s.sweep()

	if _, err := os.Stat(filename); !os.IsNotExist(err) {
		t.Fatalf("expected the aged segment to be reaped, stat err = %v", err)
	}
	if _, ok := s.live[filepath.Base(filename)]; ok {
		t.Fatalf("expected the reaped segment to be forgotten")
	}
}

func TestSweepLeavesFreshSegments(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	filename, _, err := s.WriteArray(typereg.PrimInt, []int32{1})
	if err != nil {
		t.Fatalf("WriteArray: %v", err)
	}

	s.sweep()

	if _, err := os.Stat(filename); err != nil {
		t.Fatalf("expected the fresh segment to survive the sweep: %v", err)
	}
}
