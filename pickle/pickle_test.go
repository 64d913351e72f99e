package pickle_test

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/pickle"
)

func TestMarshalUnmarshalScalar(t *testing.T) {
	c := pickle.New()
	a := marshal.Arg{Kind: marshal.ArgValue, TypeID: 7, Value: int32(42)}

	b, err := c.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := c.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != a.Kind || got.TypeID != a.TypeID {
		t.Fatalf("kind/type mismatch: got %+v want %+v", got, a)
	}
	if got.Value.(int64) != 42 {
		t.Fatalf("expected decoded value 42, got %v", got.Value)
	}
}

func TestMarshalListValue(t *testing.T) {
	c := pickle.New()
	a := marshal.Arg{Kind: marshal.ArgValue, TypeID: 9, Value: marshal.ListValue{Elems: []marshal.Arg{
		{Kind: marshal.ArgValue, TypeID: 7, Value: int32(1)},
		{Kind: marshal.ArgValue, TypeID: 7, Value: int32(2)},
	}}}

	b, err := c.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := c.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	elems, ok := got.Value.([]any)
	if !ok || len(elems) != 2 {
		t.Fatalf("expected a 2-element generic slice, got %#v", got.Value)
	}
}

func TestBestEffortFallsBackOnUnsupportedValue(t *testing.T) {
	var gotInstanceID int64 = -1
	c := pickle.NewBestEffort(pickle.New(), func(v any) (int64, error) {
		gotInstanceID = 99
		return gotInstanceID, nil
	})

	a := marshal.Arg{Kind: marshal.ArgValue, TypeID: 1, Value: marshal.MethodHandleRef{CallableIndex: 1}}
	b, err := c.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if gotInstanceID != 99 {
		t.Fatalf("expected the construct callback to run, got instance id %d", gotInstanceID)
	}

	got, err := c.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	m, ok := got.Value.(map[string]any)
	if !ok {
		t.Fatalf("expected a construct-directive map, got %#v", got.Value)
	}
	if m["construct"].(int64) != 99 {
		t.Fatalf("expected construct id 99, got %v", m["construct"])
	}
}

func TestLZ4RoundTrip(t *testing.T) {
	in := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	compressed, err := pickle.CompressLZ4(in)
	if err != nil {
		t.Fatalf("CompressLZ4: %v", err)
	}
	out, err := pickle.DecompressLZ4(compressed)
	if err != nil {
		t.Fatalf("DecompressLZ4: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("round-tripped bytes mismatch")
	}
}
