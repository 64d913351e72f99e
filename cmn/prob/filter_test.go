package prob_test

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/cmn/prob"
)

func TestFilterInsertLookup(t *testing.T) {
	f := prob.NewDefaultFilter(1024)
	if f.Lookup("com.example.Foo") {
		t.Fatalf("unexpected hit before insert")
	}
	f.Insert("com.example.Foo")
	if !f.Lookup("com.example.Foo") {
		t.Fatalf("expected hit after insert")
	}
}

func TestFilterDelete(t *testing.T) {
	f := prob.NewDefaultFilter(1024)
	f.Insert("com.example.Bar")
	f.Delete("com.example.Bar")
	// no false-negative guarantee on delete of a non-colliding key, but a
	// clean insert/delete of a single key should clear it back out.
	if f.Lookup("com.example.Bar") {
		t.Fatalf("expected miss after delete")
	}
}
