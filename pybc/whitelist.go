package pybc

import "github.com/corejit/pyjit/pyvalue"

// unboxableOpcodes is the default unboxing whitelist: spec §9 leaves the
// exact opcode/kind-pair whitelist as a parameter read from a table in the
// source, rather than specified. This default table covers arithmetic,
// comparison, and unary operations on machine-representable numeric
// kinds — the combinations a native backend can plausibly execute without
// allocating a boxed object. LOAD_FAST/STORE_FAST are deliberately
// excluded here (spec §4.3: "excluding LOAD_FAST/STORE_FAST, deferred").
var unboxableOpcodes = map[Opcode]bool{
	OpBinaryAdd:         true,
	OpBinarySubtract:    true,
	OpBinaryMultiply:    true,
	OpBinaryTrueDivide:  true,
	OpBinaryFloorDivide: true,
	OpBinaryModulo:      true,
	OpBinaryLshift:      true,
	OpBinaryRshift:      true,
	OpBinaryAnd:         true,
	OpBinaryOr:          true,
	OpBinaryXor:         true,
	OpUnaryNegative:     true,
	OpUnaryPositive:     true,
	OpUnaryInvert:       true,
	OpUnaryNot:          true,
	OpCompareOp:         true,
}

// escapableKinds is the default set of kinds whose values may flow through
// an unboxed (machine-typed) representation. Only kinds with an obvious
// fixed-width machine encoding qualify.
var escapableKinds = map[pyvalue.Kind]bool{
	pyvalue.KindInteger: true,
	pyvalue.KindFloat:   true,
	pyvalue.KindBool:    true,
}

// SupportsUnboxing reports whether op is eligible to run on unboxed
// operands at all, independent of the operand kinds actually observed.
func SupportsUnboxing(op Opcode) bool {
	return unboxableOpcodes[op]
}

// SupportsEscaping reports whether values of kind k can flow through an
// unboxed machine representation.
func SupportsEscaping(k pyvalue.Kind) bool {
	return escapableKinds[k]
}

// SetUnboxableOpcodes overrides the unboxing whitelist, e.g. from tests.
// Passing nil restores nothing; callers that want to
// extend rather than replace the table should read the current table via
// SupportsUnboxing first.
func SetUnboxableOpcodes(table map[Opcode]bool) {
	if table != nil {
		unboxableOpcodes = table
	}
}

// SetEscapableKinds overrides the escapable-kinds table analogous to
// SetUnboxableOpcodes.
func SetEscapableKinds(table map[pyvalue.Kind]bool) {
	if table != nil {
		escapableKinds = table
	}
}
