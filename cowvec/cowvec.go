// Package cowvec implements a copy-on-write sequence with structural
// sharing, used for per-state locals snapshots in the abstract
// interpreter: cloning a snapshot at a branch is O(1), and mutating one
// clone only copies the backing array the first time that particular
// clone (or any sibling clone) is written to after the branch.
package cowvec

// Vec is a value-semantics sequence of T. The zero Vec is an empty,
// usable vector. Assigning a Vec to another variable aliases the same
// backing storage; use Clone to make that sharing explicit at a branch
// point. Both copies see the shared array until either is written to,
// at which point that write copies the array first.
type Vec[T any] struct {
	data   *[]T
	shared *bool
}

func falsePtr() *bool {
	b := false
	return &b
}

// New returns an owned Vec of length n, all elements zero-valued.
func New[T any](n int) Vec[T] {
	d := make([]T, n)
	return Vec[T]{data: &d, shared: falsePtr()}
}

// FromSlice wraps an existing slice as an owned Vec. The Vec takes
// ownership of the slice header; the original slice variable should not
// be mutated directly after this call.
func FromSlice[T any](s []T) Vec[T] {
	return Vec[T]{data: &s, shared: falsePtr()}
}

// Len returns the number of elements.
func (v Vec[T]) Len() int {
	if v.data == nil {
		return 0
	}
	return len(*v.data)
}

// At returns the element at index i. It is O(1) and never copies.
func (v Vec[T]) At(i int) T {
	return (*v.data)[i]
}

// Clone returns a Vec sharing this Vec's backing storage. Both the
// receiver's underlying storage and the returned Vec are marked shared:
// the next Set on either copy (or any further clone of either) copies the
// backing array first, so no write is ever visible across the clone
// boundary.
func (v Vec[T]) Clone() Vec[T] {
	if v.shared == nil {
		v.shared = falsePtr()
	}
	*v.shared = true
	return Vec[T]{data: v.data, shared: v.shared}
}

// Set returns a Vec with index i replaced by val. If this Vec's backing
// array is exclusively owned (no clone has touched it since the last
// write), the array is mutated in place and the same Vec is returned;
// otherwise the array is copied first so the write is invisible to any
// sibling clone.
func (v Vec[T]) Set(i int, val T) Vec[T] {
	if v.shared == nil || !*v.shared {
		(*v.data)[i] = val
		if v.shared == nil {
			v.shared = falsePtr()
		}
		return v
	}
	newData := make([]T, len(*v.data))
	copy(newData, *v.data)
	newData[i] = val
	return Vec[T]{data: &newData, shared: falsePtr()}
}

// ToSlice returns a copy of the Vec's contents as a plain slice, safe to
// mutate independently of the Vec.
func (v Vec[T]) ToSlice() []T {
	if v.data == nil {
		return nil
	}
	out := make([]T, len(*v.data))
	copy(out, *v.data)
	return out
}
