package cos_test

import (
	"errors"
	"testing"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
)

func TestErrsDedupsAndCaps(t *testing.T) {
	var errs cos.Errs
	for i := 0; i < 10; i++ {
		errs.Add(errors.New("boom"))
	}
	if errs.Cnt() != 1 {
		t.Fatalf("expected dedup to collapse identical errors, got cnt=%d", errs.Cnt())
	}

	for i := 0; i < 10; i++ {
		errs.Add(errors.New("boom-" + string(rune('a'+i))))
	}
	if errs.Cnt() > 4 {
		t.Fatalf("expected cap at 4 distinct errors, got cnt=%d", errs.Cnt())
	}
}

func TestGenConnIDRoundtrip(t *testing.T) {
	cos.InitShortID(1)
	id := cos.GenConnID()
	if err := cos.ValidateConnID(id); err != nil {
		t.Fatalf("GenConnID produced an invalid ID %q: %v", id, err)
	}
}

func TestIsAlphaNice(t *testing.T) {
	cases := map[string]bool{
		"abc123":  true,
		"a-b_c":   true,
		"-abc":    false, // cannot start with a separator
		"abc-":    false, // cannot end with a separator
		"a.b":     false, // dot not permitted here
	}
	for s, want := range cases {
		if got := cos.IsAlphaNice(s); got != want {
			t.Errorf("IsAlphaNice(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestWireErrorKinds(t *testing.T) {
	var err error = &cos.ErrRecursionDepth{Max: 128}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}

	cause := errors.New("null pointer")
	wrapped := &cos.ErrReflection{Cause: cause}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected ErrReflection to unwrap to its cause")
	}
}
