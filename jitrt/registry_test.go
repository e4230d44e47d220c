package jitrt

import (
	"errors"
	"testing"

	"github.com/corejit/pyjit/ilgen/reftest"
)

func TestGlobalRegistryHasEveryToken(t *testing.T) {
	r := Global()
	for tok := Token(0); tok < tokenCount; tok++ {
		if _, _, ok := r.Lookup(tok); !ok {
			t.Fatalf("token %s has no registered prototype", tok)
		}
	}
}

func TestPopulateKeepsRegistryLookupIntact(t *testing.T) {
	r := Global()
	e := reftest.New()
	r.Populate(e)
	// Populate doesn't expose its own state, so this only checks that it
	// does not panic and that Registry.Lookup still finds a representative
	// token with a non-zero address afterwards.
	if _, addr, ok := r.Lookup(TrueDivide); !ok || addr == 0 {
		t.Fatalf("TrueDivide missing or zero address after Populate: addr=%d ok=%v", addr, ok)
	}
}

func TestBuildListFlattensSpread(t *testing.T) {
	r := Global()
	got, err := r.Call(BuildList, []any{int64(1), Spread{Elements: []any{int64(2)}}, int64(3), int64(4)})
	if err != nil {
		t.Fatalf("Call(BuildList) error = %v", err)
	}
	list, ok := got.([]any)
	if !ok {
		t.Fatalf("BuildList returned %T, want []any", got)
	}
	want := []any{int64(1), int64(2), int64(3), int64(4)}
	if len(list) != len(want) {
		t.Fatalf("BuildList = %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Fatalf("BuildList[%d] = %v, want %v", i, list[i], want[i])
		}
	}
}

func TestBuildDictPreservesFirstInsertionOrder(t *testing.T) {
	inner := NewOrderedDict()
	inner.Set("b", "banana")

	r := Global()
	got, err := r.Call(BuildDict, []any{
		KV{Key: "c", Value: "carrot"},
		DictMergeArg{Dict: inner},
		KV{Key: "a", Value: "apple"},
	})
	if err != nil {
		t.Fatalf("Call(BuildDict) error = %v", err)
	}
	d, ok := got.(*OrderedDict)
	if !ok {
		t.Fatalf("BuildDict returned %T, want *OrderedDict", got)
	}
	keys := d.Keys()
	want := []any{"c", "b", "a"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys()[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestAssertionErrorRaises(t *testing.T) {
	r := Global()
	_, err := r.Call(RaiseAssertionError, nil)
	if !errors.Is(err, ErrAssertionFailed) {
		t.Fatalf("Call(RaiseAssertionError) error = %v, want ErrAssertionFailed", err)
	}
}

func TestBytearrayGetItemOutOfRange(t *testing.T) {
	r := Global()
	_, err := r.Call(BytearrayGetItem, []any{[]byte("12"), int64(2)})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Call(BytearrayGetItem) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestSliceSubscriptNegativeStep(t *testing.T) {
	r := Global()
	s := "The train to Oxford leaves at 3pm"
	got, err := r.Call(SliceSubscript, []any{s, int64(-1), int64(3), int64(-2)})
	if err != nil {
		t.Fatalf("Call(SliceSubscript) error = %v", err)
	}
	want := "m3t ealdox tnat"
	if got != want {
		t.Fatalf("SliceSubscript = %q, want %q", got, want)
	}
}

func TestTrueDivide(t *testing.T) {
	r := Global()
	got, err := r.Call(TrueDivide, []any{int64(10), int64(5)})
	if err != nil {
		t.Fatalf("Call(TrueDivide) error = %v", err)
	}
	if got != 2.0 {
		t.Fatalf("TrueDivide(10, 5) = %v, want 2.0", got)
	}
}

func TestBinaryOpIntegerAdd(t *testing.T) {
	r := Global()
	got, err := r.Call(BinaryOp, []any{int64(3), int64(4), int32(0)})
	if err != nil {
		t.Fatalf("Call(BinaryOp add) error = %v", err)
	}
	if got != int64(7) {
		t.Fatalf("BinaryOp(3, 4, Add) = %v, want 7", got)
	}
}

func TestBinaryOpStringConcat(t *testing.T) {
	r := Global()
	got, err := r.Call(BinaryOp, []any{"foo", "bar", int32(0)})
	if err != nil {
		t.Fatalf("Call(BinaryOp concat) error = %v", err)
	}
	if got != "foobar" {
		t.Fatalf("BinaryOp(foo, bar, Add) = %v, want foobar", got)
	}
}

func TestBinaryOpFloorDivide(t *testing.T) {
	r := Global()
	got, err := r.Call(BinaryOp, []any{int64(7), int64(2), int32(4)})
	if err != nil {
		t.Fatalf("Call(BinaryOp floordiv) error = %v", err)
	}
	if got != 3.0 {
		t.Fatalf("BinaryOp(7, 2, FloorDiv) = %v, want 3.0", got)
	}
}

func TestBinaryOpBitwiseAnd(t *testing.T) {
	r := Global()
	got, err := r.Call(BinaryOp, []any{int64(6), int64(3), int32(9)})
	if err != nil {
		t.Fatalf("Call(BinaryOp and) error = %v", err)
	}
	if got != int64(2) {
		t.Fatalf("BinaryOp(6, 3, BitAnd) = %v, want 2", got)
	}
}

func TestGetIterAndIterNextExhausts(t *testing.T) {
	r := Global()
	itAny, err := r.Call(GetIter, []any{[]any{int64(1), int64(2)}})
	if err != nil {
		t.Fatalf("Call(GetIter) error = %v", err)
	}

	var got []any
	for {
		v, err := r.Call(IterNext, []any{itAny})
		if errors.Is(err, ErrStopIteration) {
			break
		}
		if err != nil {
			t.Fatalf("Call(IterNext) error = %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != int64(1) || got[1] != int64(2) {
		t.Fatalf("iterated values = %v, want [1 2]", got)
	}
}
