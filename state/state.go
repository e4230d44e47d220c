// Package state defines the analyser's per-opcode interpreter state: an
// ordered abstract stack paired with a copy-on-write vector of local
// variable info, plus the merge operation used at every control-flow join.
package state

import (
	"fmt"

	"github.com/corejit/pyjit/cowvec"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
)

// ValueWithSource pairs an abstract value with the source that produced
// it. Source may be pysource.None only for synthesized stack pushes that
// are never observed (spec §3 invariant).
type ValueWithSource struct {
	Value  *pyvalue.Value
	Source pysource.Source
}

// LocalInfo is one local variable slot's state: its value+source plus
// whether it may still be undefined along some path reaching this point.
// The four-state semantics from spec §3 are:
//
//	definitely-assigned, known type:   MaybeUndefined=false, Value.Kind() != Undefined
//	definitely-assigned, unknown type: MaybeUndefined=false, Value.Kind() == Any
//	maybe-undefined:                   MaybeUndefined=true,  Value.Kind() != Undefined
//	definitely-undefined:              MaybeUndefined=true,  Value.Kind() == Undefined
type LocalInfo struct {
	VWS            ValueWithSource
	MaybeUndefined bool
}

// NewLocalInfo validates the invariant "not (kind==Undefined &&
// !maybeUndefined)" before constructing a LocalInfo: a slot whose value is
// definitely Undefined can never be marked definitely-assigned.
func NewLocalInfo(vws ValueWithSource, maybeUndefined bool) (LocalInfo, error) {
	if vws.Value.Kind() == pyvalue.KindUndefined && !maybeUndefined {
		return LocalInfo{}, fmt.Errorf("invalid local info: kind=Undefined requires maybeUndefined=true")
	}
	return LocalInfo{VWS: vws, MaybeUndefined: maybeUndefined}, nil
}

// Undefined returns the canonical definitely-undefined LocalInfo.
func Undefined() LocalInfo {
	return LocalInfo{
		VWS:            ValueWithSource{Value: pyvalue.Undefined, Source: pysource.None},
		MaybeUndefined: true,
	}
}

// Merge implements the pointwise four-state merge: the result's kind is
// the pyvalue join of both sides' kinds, MaybeUndefined is true unless
// both sides are definitely assigned, and the source is merged through
// the shared arena.
func (li LocalInfo) Merge(other LocalInfo, arena *pysource.Arena) LocalInfo {
	mergedKind := pyvalue.Merge(li.VWS.Value.Kind(), other.VWS.Value.Kind())
	maybeUndefined := li.MaybeUndefined || other.MaybeUndefined ||
		li.VWS.Value.Kind() == pyvalue.KindUndefined || other.VWS.Value.Kind() == pyvalue.KindUndefined

	var src pysource.Source
	switch {
	case li.VWS.Source == pysource.None:
		src = other.VWS.Source
	case other.VWS.Source == pysource.None:
		src = li.VWS.Source
	case li.VWS.Source == other.VWS.Source:
		src = li.VWS.Source
	default:
		src = arena.Merge(int(mergedKind), li.VWS.Source, other.VWS.Source)
	}

	return LocalInfo{
		VWS:            ValueWithSource{Value: pyvalue.Of(mergedKind), Source: src},
		MaybeUndefined: maybeUndefined,
	}
}

// State is the analyser's state at one reached opcode index: an ordered
// abstract stack and a CoW vector of per-local info.
type State struct {
	Stack  []ValueWithSource
	Locals cowvec.Vec[LocalInfo]
}

// New returns a state with an empty stack and numLocals local slots, all
// definitely-undefined.
func New(numLocals int) *State {
	locals := cowvec.New[LocalInfo](numLocals)
	for i := 0; i < numLocals; i++ {
		locals = locals.Set(i, Undefined())
	}
	return &State{Stack: nil, Locals: locals}
}

// Clone returns an independent copy of s: the stack is copied (it is a
// plain slice, mutated directly during simulation) and the locals vector
// is cloned in O(1) via copy-on-write.
func (s *State) Clone() *State {
	stack := make([]ValueWithSource, len(s.Stack))
	copy(stack, s.Stack)
	return &State{Stack: stack, Locals: s.Locals.Clone()}
}

// Push appends a value+source to the top of the stack.
func (s *State) Push(vws ValueWithSource) {
	s.Stack = append(s.Stack, vws)
}

// Pop removes and returns the top-of-stack entry. It panics on an empty
// stack: callers must check depth against the opcode's declared stack
// effect first, per the malformed-bytecode contract in spec §4.2.
func (s *State) Pop() ValueWithSource {
	n := len(s.Stack)
	top := s.Stack[n-1]
	s.Stack = s.Stack[:n-1]
	return top
}

// Merge merges b into a, returning a new State. Per spec §4.2: stacks
// of unequal depth cannot be merged — that is a malformed-bytecode error,
// fatal to analysis.
func Merge(a, b *State, arena *pysource.Arena) (*State, error) {
	if len(a.Stack) != len(b.Stack) {
		return nil, fmt.Errorf("%w: merge stack depth mismatch (%d vs %d)",
			errMalformed, len(a.Stack), len(b.Stack))
	}
	if a.Locals.Len() != b.Locals.Len() {
		return nil, fmt.Errorf("%w: merge locals count mismatch (%d vs %d)",
			errMalformed, a.Locals.Len(), b.Locals.Len())
	}

	stack := make([]ValueWithSource, len(a.Stack))
	for i := range a.Stack {
		av, bv := a.Stack[i], b.Stack[i]
		mergedKind := pyvalue.Merge(av.Value.Kind(), bv.Value.Kind())
		var src pysource.Source
		switch {
		case av.Source == pysource.None:
			src = bv.Source
		case bv.Source == pysource.None:
			src = av.Source
		case av.Source == bv.Source:
			src = av.Source
		default:
			src = arena.Merge(int(mergedKind), av.Source, bv.Source)
		}
		stack[i] = ValueWithSource{Value: pyvalue.Of(mergedKind), Source: src}
	}

	locals := cowvec.New[LocalInfo](a.Locals.Len())
	for i := 0; i < a.Locals.Len(); i++ {
		locals = locals.Set(i, a.Locals.At(i).Merge(b.Locals.At(i), arena))
	}

	return &State{Stack: stack, Locals: locals}, nil
}

// Equal reports whether two states agree on stack depth, stack kinds, and
// local kinds/undefined-ness. Sources are not compared: re-simulating an
// opcode allocates fresh source handles, so comparing them would make a
// loop's states look changed on every pass. Used by the analyser's
// fixed-point check (update_start_state) to decide whether a merged
// successor state actually changed.
func Equal(a, b *State) bool {
	if len(a.Stack) != len(b.Stack) || a.Locals.Len() != b.Locals.Len() {
		return false
	}
	for i := range a.Stack {
		if a.Stack[i].Value.Kind() != b.Stack[i].Value.Kind() {
			return false
		}
	}
	for i := 0; i < a.Locals.Len(); i++ {
		la, lb := a.Locals.At(i), b.Locals.At(i)
		if la.VWS.Value.Kind() != lb.VWS.Value.Kind() || la.MaybeUndefined != lb.MaybeUndefined {
			return false
		}
	}
	return true
}
