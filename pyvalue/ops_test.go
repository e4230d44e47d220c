package pyvalue

import "testing"

func TestBinaryResultKind(t *testing.T) {
	tests := []struct {
		op       BinOp
		a, b     Kind
		expected Kind
	}{
		{Add, KindInteger, KindFloat, KindFloat},
		{Add, KindFloat, KindInteger, KindFloat},
		{Add, KindInteger, KindInteger, KindInteger},
		{Add, KindStr, KindStr, KindStr},
		{Add, KindAny, KindInteger, KindAny},
		{TrueDiv, KindInteger, KindInteger, KindFloat},
		{TrueDiv, KindInteger, KindStr, KindAny},
		{Mul, KindStr, KindInteger, KindStr},
		{Mul, KindList, KindInteger, KindList},
		{BitOr, KindDict, KindDict, KindDict},
		{BitOr, KindInteger, KindInteger, KindInteger},
	}

	for i, tt := range tests {
		got := BinaryResultKind(tt.op, tt.a, tt.b)
		if got != tt.expected {
			t.Fatalf("test[%d] %v(%v,%v) = %v, want %v", i, tt.op, tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestMergeCommutativeAndIdempotent(t *testing.T) {
	kinds := []Kind{KindInteger, KindFloat, KindBool, KindStr, KindAny, KindUndefined, KindList}
	for _, a := range kinds {
		for _, b := range kinds {
			if Merge(a, a) != a {
				t.Fatalf("Merge(%v,%v) not idempotent: got %v", a, a, Merge(a, a))
			}
			if Merge(a, b) != Merge(b, a) {
				t.Fatalf("Merge(%v,%v)=%v != Merge(%v,%v)=%v", a, b, Merge(a, b), b, a, Merge(b, a))
			}
		}
	}
}

func TestMergeUndefinedIsIdentity(t *testing.T) {
	if Merge(KindUndefined, KindInteger) != KindInteger {
		t.Fatalf("Undefined should be identity element under merge")
	}
	if Merge(KindInteger, KindUndefined) != KindInteger {
		t.Fatalf("Undefined should be identity element under merge")
	}
}

func TestSubscriptResultKind(t *testing.T) {
	tests := []struct {
		container, index Kind
		expected         Kind
	}{
		{KindList, KindSlice, KindList},
		{KindStr, KindInteger, KindStr},
		{KindBytes, KindInteger, KindInteger},
		{KindBytearray, KindInteger, KindInteger},
		{KindDict, KindStr, KindAny},
	}
	for i, tt := range tests {
		got := SubscriptResultKind(tt.container, tt.index)
		if got != tt.expected {
			t.Fatalf("test[%d] SubscriptResultKind(%v,%v) = %v, want %v", i, tt.container, tt.index, got, tt.expected)
		}
	}
}

func TestKindProperties(t *testing.T) {
	if KindList.Hashable() {
		t.Fatalf("list must not be hashable")
	}
	if !KindTuple.Hashable() {
		t.Fatalf("tuple must be hashable")
	}
	if !KindList.Mutable() {
		t.Fatalf("list must be mutable")
	}
	if !KindFunction.AlwaysTruthy() {
		t.Fatalf("function objects are always truthy")
	}
	if KindList.AlwaysTruthy() {
		t.Fatalf("list is not always truthy ([] is falsy)")
	}
}

func TestOfReturnsSingleton(t *testing.T) {
	if Of(KindInteger) != Integer {
		t.Fatalf("Of(KindInteger) must return the Integer singleton")
	}
	if Of(KindInteger) != Of(KindInteger) {
		t.Fatalf("Of must be idempotent/interned")
	}
}
