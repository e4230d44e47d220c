package cowvec

import "testing"

func TestCloneIsIndependentAfterWrite(t *testing.T) {
	v := FromSlice([]int{1, 2, 3})
	c := v.Clone()

	c = c.Set(0, 99)

	if v.At(0) != 1 {
		t.Fatalf("writing to clone must not affect original, got %d", v.At(0))
	}
	if c.At(0) != 99 {
		t.Fatalf("clone write did not take effect, got %d", c.At(0))
	}
}

func TestSetOnExclusiveOwnerMutatesInPlace(t *testing.T) {
	v := New[int](3)
	v = v.Set(0, 1)
	v = v.Set(1, 2)
	v = v.Set(2, 3)

	if v.ToSlice()[0] != 1 || v.ToSlice()[1] != 2 || v.ToSlice()[2] != 3 {
		t.Fatalf("unexpected contents: %v", v.ToSlice())
	}
}

func TestMultipleClonesDiverge(t *testing.T) {
	base := FromSlice([]string{"a", "b"})
	left := base.Clone().Set(0, "left")
	right := base.Clone().Set(0, "right")

	if left.At(0) != "left" {
		t.Fatalf("left clone = %s, want left", left.At(0))
	}
	if right.At(0) != "right" {
		t.Fatalf("right clone = %s, want right", right.At(0))
	}
	if base.At(0) != "a" {
		t.Fatalf("base must be untouched, got %s", base.At(0))
	}
}

func TestLenAndToSlice(t *testing.T) {
	v := New[int](4)
	if v.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", v.Len())
	}
	var zero Vec[int]
	if zero.Len() != 0 {
		t.Fatalf("zero-value Vec should have Len() 0")
	}
}
