// Package pyvalue implements the closed abstract-value lattice the analyser
// reasons about: a small, interned family of Python value kinds plus the
// per-operation result tables that let the analyser infer a result kind from
// its operand kinds without ever touching a concrete runtime object.
package pyvalue

import "fmt"

// Kind identifies one member of the closed abstract-value family. Kind is
// the only thing that varies between abstract values; mutability and
// provenance live on the source attached at a use site, never here.
type Kind int

const (
	KindUndefined Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindBytes
	KindStr
	KindList
	KindTuple
	KindSet
	KindDict
	KindFunction
	KindSlice
	KindType
	KindNone
	KindComplex
	KindCode
	KindModule
	KindBytearray
	KindMemoryview
	KindIterable
	KindAny
)

var kindNames = [...]string{
	KindUndefined:  "Undefined",
	KindInteger:    "Integer",
	KindFloat:      "Float",
	KindBool:       "Bool",
	KindBytes:      "Bytes",
	KindStr:        "Str",
	KindList:       "List",
	KindTuple:      "Tuple",
	KindSet:        "Set",
	KindDict:       "Dict",
	KindFunction:   "Function",
	KindSlice:      "Slice",
	KindType:       "Type",
	KindNone:       "None",
	KindComplex:    "Complex",
	KindCode:       "Code",
	KindModule:     "Module",
	KindBytearray:  "Bytearray",
	KindMemoryview: "Memoryview",
	KindIterable:   "Iterable",
	KindAny:        "Any",
}

// String renders a Kind the way a debug dump or disassembly annotation
// would show it.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Value is an interned, process-lifetime abstract value. Two Values with
// the same Kind are always the same pointer: Values carry no per-use-site
// state, so there is never a reason to allocate more than one per Kind.
type Value struct {
	kind Kind
}

// Kind returns the value's kind.
func (v *Value) Kind() Kind { return v.kind }

func (v *Value) String() string { return v.kind.String() }

var singletons = make([]*Value, len(kindNames))

func intern(k Kind) *Value {
	v := &Value{kind: k}
	singletons[k] = v
	return v
}

// Process-lifetime singletons, one per Kind. Never construct a *Value any
// other way: Of(k) and these vars are the only valid sources.
var (
	Undefined  = intern(KindUndefined)
	Integer    = intern(KindInteger)
	Float      = intern(KindFloat)
	Bool       = intern(KindBool)
	Bytes      = intern(KindBytes)
	Str        = intern(KindStr)
	List       = intern(KindList)
	Tuple      = intern(KindTuple)
	Set        = intern(KindSet)
	Dict       = intern(KindDict)
	Function   = intern(KindFunction)
	Slice      = intern(KindSlice)
	Type       = intern(KindType)
	None       = intern(KindNone)
	Complex    = intern(KindComplex)
	Code       = intern(KindCode)
	Module     = intern(KindModule)
	Bytearray  = intern(KindBytearray)
	Memoryview = intern(KindMemoryview)
	Iterable   = intern(KindIterable)
	Any        = intern(KindAny)
)

// Of returns the process-wide singleton for k. It never allocates.
func Of(k Kind) *Value {
	if int(k) < 0 || int(k) >= len(singletons) || singletons[k] == nil {
		return Any
	}
	return singletons[k]
}

// Hashable reports whether values of this kind are known-hashable. Mutable
// containers (list, set, dict, bytearray) are never hashable; everything
// else the analyser can name is.
func (k Kind) Hashable() bool {
	switch k {
	case KindList, KindSet, KindDict, KindBytearray:
		return false
	default:
		return true
	}
}

// Mutable reports whether values of this kind support in-place mutation.
func (k Kind) Mutable() bool {
	switch k {
	case KindList, KindSet, KindDict, KindBytearray:
		return true
	default:
		return false
	}
}

// AlwaysTruthy reports whether every value of this kind is truthy
// regardless of its runtime contents (e.g. a function object is always
// truthy; a list is not, since `[]` is falsy).
func (k Kind) AlwaysTruthy() bool {
	switch k {
	case KindFunction, KindType, KindCode, KindModule, KindSlice:
		return true
	default:
		return false
	}
}
