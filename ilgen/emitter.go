// Package ilgen defines the IL emitter façade (spec §4.4): the narrow
// interface the driver program against to produce machine-typed
// intermediate-language code, independent of whatever real backend
// eventually consumes it. ilgen itself never generates native code — spec
// §1 treats the code generator as an external component; ilgen/reftest
// supplies an in-process reference implementation used by tests.
package ilgen

import "fmt"

// MachineKind is a local/value's machine-level representation, as opposed
// to a pyvalue.Kind's language-level one.
type MachineKind int

const (
	KindInt32 MachineKind = iota
	KindUint32
	KindInt64
	KindDouble
	KindObjectPointer
	KindValueClass
)

func (k MachineKind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindObjectPointer:
		return "object*"
	case KindValueClass:
		return "valueclass"
	default:
		return fmt.Sprintf("MachineKind<%d>", int(k))
	}
}

// Label identifies a branch target defined by DefineLabel and bound to an
// emission point by MarkLabel.
type Label int

// Local identifies a machine-typed local slot defined by DefineLocal.
type Local int

// Token is an opaque handle resolving, at EmitCall time, to a runtime
// helper's prototype and address. jitrt.Token shares this underlying type;
// ilgen itself never knows what a token means beyond "an emit_call operand".
type Token int

// BranchKind selects the condition under which Branch transfers control.
// Always is unconditional; the comparison kinds consume the two
// machine-typed values most recently pushed.
type BranchKind int

const (
	Always BranchKind = iota
	IfTrue
	IfFalse
	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	LessEqualUnsigned
)

func (k BranchKind) String() string {
	names := [...]string{
		"Always", "IfTrue", "IfFalse", "Equal", "NotEqual",
		"Less", "LessEqual", "Greater", "GreaterEqual", "LessEqualUnsigned",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return fmt.Sprintf("BranchKind<%d>", int(k))
	}
	return names[k]
}

// CallSite records one emit_call's position for the driver's and runtime's
// stack-walking/deopt bookkeeping, per spec §4.4's contract: "call sites
// must record (tokenId, nativeOffset, ilOffset)."
type CallSite struct {
	Token       Token
	NativeOffset int
	ILOffset     int
}

// JITMethod is the artifact Compile returns: a callable native method plus
// the metadata needed to walk its frames and resolve its call sites back to
// source positions.
type JITMethod struct {
	Address       uintptr
	CallSiteTable []CallSite
	SymbolTable   map[string]int
}

// Emitter is the pure IL-emission façade of spec §4.4. A real
// implementation lowers these calls to a native backend's IR; ilgen/reftest
// instead records a trace, for use in driver tests.
type Emitter interface {
	DefineLabel() Label
	MarkLabel(l Label)

	DefineLocal(kind MachineKind) Local

	LdI4(v int32)
	LdU4(v uint32)
	LdI8(v int64)
	LdR8(v float64)
	LdLoc(l Local)
	StLoc(l Local)

	Branch(kind BranchKind, target Label)

	// RegisterHelper binds token to the prototype and native entry point
	// addr, per spec §4.4/§6. jitrt calls this once per helper during
	// Registry population.
	RegisterHelper(token Token, proto Prototype, addr uintptr)
	EmitCall(token Token)

	Add()
	Sub()
	Mul()
	Div()
	Mod()
	Neg()
	And()
	Or()
	Xor()
	Not()
	LShift()
	RShift()

	Ret()

	// Compile finalizes emission and produces the callable artifact. jitInfo
	// identifies the function being compiled (used for symbol-table keys
	// and diagnostics); backend names the target code generator; budget
	// bounds the amount of IL Compile may emit internally (e.g. unrolled
	// helper stubs) before it must fail with ErrBudgetExceeded.
	Compile(jitInfo string, backend string, budget int) (*JITMethod, error)
}

// Prototype describes one runtime helper's calling convention: the machine
// kinds of its parameters and its result.
type Prototype struct {
	Token      Token
	ParamKinds []MachineKind
	Result     MachineKind
}
