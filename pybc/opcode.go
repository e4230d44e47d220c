// Package pybc decodes the host interpreter's bytecode stream into a
// sequence of Instructions and exposes the per-opcode metadata — stack
// effect, EXTENDED_ARG folding, and the unboxing whitelist — that the
// analyser, instruction graph, and driver all consume.
package pybc

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode is a single bytecode instruction's operation code. Values follow
// the host interpreter's wordcode layout: one byte of opcode, one byte of
// oparg, repeated EXTENDED_ARG-prefixed to widen the oparg when needed.
type Opcode uint8

//nolint:revive
const (
	OpNop Opcode = iota
	OpPopTop
	OpRotTwo
	OpDupTop
	OpLoadConst
	OpLoadFast
	OpStoreFast
	OpDeleteFast
	OpLoadGlobal
	OpStoreGlobal
	OpLoadName
	OpStoreName
	OpLoadAttr
	OpStoreAttr
	OpBinaryAdd
	OpBinarySubtract
	OpBinaryMultiply
	OpBinaryTrueDivide
	OpBinaryFloorDivide
	OpBinaryModulo
	OpBinaryPower
	OpBinaryLshift
	OpBinaryRshift
	OpBinaryAnd
	OpBinaryOr
	OpBinaryXor
	OpBinarySubscr
	OpStoreSubscr
	OpUnaryNegative
	OpUnaryPositive
	OpUnaryInvert
	OpUnaryNot
	OpCompareOp
	OpContainsOp
	OpIsOp
	OpJumpForward
	OpJumpAbsolute
	OpPopJumpIfFalse
	OpPopJumpIfTrue
	OpJumpIfFalseOrPop
	OpJumpIfTrueOrPop
	OpForIter
	OpGetIter
	OpSetupFinally
	OpSetupExcept
	OpPopBlock
	OpPopExcept
	OpBeginFinally
	OpEndFinally
	OpRaiseVarargs
	OpBreakLoop
	OpContinueLoop
	OpReturnValue
	OpBuildList
	OpBuildTuple
	OpBuildSet
	OpBuildMap
	OpBuildSlice
	OpListExtend
	OpDictMerge
	OpDictUpdate
	OpUnpackSequence
	OpUnpackEx
	OpCallFunction
	OpMakeFunction
	OpImportName
	OpImportFrom
	OpExtendedArg
	OpAssertionError
	opcodeCount
)

var opcodeNames = [...]string{
	OpNop:               "NOP",
	OpPopTop:            "POP_TOP",
	OpRotTwo:            "ROT_TWO",
	OpDupTop:            "DUP_TOP",
	OpLoadConst:         "LOAD_CONST",
	OpLoadFast:          "LOAD_FAST",
	OpStoreFast:         "STORE_FAST",
	OpDeleteFast:        "DELETE_FAST",
	OpLoadGlobal:        "LOAD_GLOBAL",
	OpStoreGlobal:       "STORE_GLOBAL",
	OpLoadName:          "LOAD_NAME",
	OpStoreName:         "STORE_NAME",
	OpLoadAttr:          "LOAD_ATTR",
	OpStoreAttr:         "STORE_ATTR",
	OpBinaryAdd:         "BINARY_ADD",
	OpBinarySubtract:    "BINARY_SUBTRACT",
	OpBinaryMultiply:    "BINARY_MULTIPLY",
	OpBinaryTrueDivide:  "BINARY_TRUE_DIVIDE",
	OpBinaryFloorDivide: "BINARY_FLOOR_DIVIDE",
	OpBinaryModulo:      "BINARY_MODULO",
	OpBinaryPower:       "BINARY_POWER",
	OpBinaryLshift:      "BINARY_LSHIFT",
	OpBinaryRshift:      "BINARY_RSHIFT",
	OpBinaryAnd:         "BINARY_AND",
	OpBinaryOr:          "BINARY_OR",
	OpBinaryXor:         "BINARY_XOR",
	OpBinarySubscr:      "BINARY_SUBSCR",
	OpStoreSubscr:       "STORE_SUBSCR",
	OpUnaryNegative:     "UNARY_NEGATIVE",
	OpUnaryPositive:     "UNARY_POSITIVE",
	OpUnaryInvert:       "UNARY_INVERT",
	OpUnaryNot:          "UNARY_NOT",
	OpCompareOp:         "COMPARE_OP",
	OpContainsOp:        "CONTAINS_OP",
	OpIsOp:              "IS_OP",
	OpJumpForward:       "JUMP_FORWARD",
	OpJumpAbsolute:      "JUMP_ABSOLUTE",
	OpPopJumpIfFalse:    "POP_JUMP_IF_FALSE",
	OpPopJumpIfTrue:     "POP_JUMP_IF_TRUE",
	OpJumpIfFalseOrPop:  "JUMP_IF_FALSE_OR_POP",
	OpJumpIfTrueOrPop:   "JUMP_IF_TRUE_OR_POP",
	OpForIter:           "FOR_ITER",
	OpGetIter:           "GET_ITER",
	OpSetupFinally:      "SETUP_FINALLY",
	OpSetupExcept:       "SETUP_EXCEPT",
	OpPopBlock:          "POP_BLOCK",
	OpPopExcept:         "POP_EXCEPT",
	OpBeginFinally:      "BEGIN_FINALLY",
	OpEndFinally:        "END_FINALLY",
	OpRaiseVarargs:      "RAISE_VARARGS",
	OpBreakLoop:         "BREAK_LOOP",
	OpContinueLoop:      "CONTINUE_LOOP",
	OpReturnValue:       "RETURN_VALUE",
	OpBuildList:         "BUILD_LIST",
	OpBuildTuple:        "BUILD_TUPLE",
	OpBuildSet:          "BUILD_SET",
	OpBuildMap:          "BUILD_MAP",
	OpBuildSlice:        "BUILD_SLICE",
	OpListExtend:        "LIST_EXTEND",
	OpDictMerge:         "DICT_MERGE",
	OpDictUpdate:        "DICT_UPDATE",
	OpUnpackSequence:    "UNPACK_SEQUENCE",
	OpUnpackEx:          "UNPACK_EX",
	OpCallFunction:      "CALL_FUNCTION",
	OpMakeFunction:      "MAKE_FUNCTION",
	OpImportName:        "IMPORT_NAME",
	OpImportFrom:        "IMPORT_FROM",
	OpExtendedArg:       "EXTENDED_ARG",
	OpAssertionError:    "ASSERTION_ERROR",
}

// String renders an Opcode using its mnemonic, matching the shape of
// CPython's dis output.
func (op Opcode) String() string {
	if int(op) < 0 || int(op) >= len(opcodeNames) || opcodeNames[op] == "" {
		return fmt.Sprintf("OPCODE<%d>", byte(op))
	}
	return opcodeNames[op]
}

// Instruction is one decoded bytecode unit. Index is the byte offset of
// the (possibly EXTENDED_ARG-prefixed) instruction's terminating opcode;
// Oparg is the fully-widened operand value. Escape records the
// instruction graph's escape decision and starts false.
type Instruction struct {
	Index  int
	Op     Opcode
	Oparg  int
	Escape bool
}

// Instructions is a raw bytecode stream: 2 bytes per unit, (opcode, oparg).
type Instructions []byte

// Decode walks the raw byte stream and produces the folded instruction
// sequence: EXTENDED_ARG is transparent, contributing its oparg's low
// byte as high-order bits of the following instruction's oparg, with only
// the terminating instruction getting a state entry (spec §4.2 tie-break:
// "EXTENDED_ARG is transparent").
func (ins Instructions) Decode() ([]Instruction, error) {
	if len(ins)%2 != 0 {
		return nil, fmt.Errorf("%w: instruction stream length %d is not a multiple of 2", ErrMalformedBytecode, len(ins))
	}

	var out []Instruction
	extended := 0
	for i := 0; i < len(ins); i += 2 {
		op := Opcode(ins[i])
		arg := int(ins[i+1])

		if op == OpExtendedArg {
			extended = (extended | arg) << 8
			continue
		}

		oparg := extended | arg
		extended = 0

		if _, err := Lookup(op); err != nil {
			return nil, err
		}

		out = append(out, Instruction{Index: i, Op: op, Oparg: oparg})
	}
	return out, nil
}

// Definition describes one opcode's static shape: how many stack slots it
// pops and pushes. For the variable-arity opcodes (BUILD_LIST,
// CALL_FUNCTION, UNPACK_SEQUENCE, ...) Variadic is set and StackEffect
// computes the effect from the oparg instead of from Pop/Push.
type Definition struct {
	Name string
	// Pop and Push are used directly when Variadic is false.
	Pop, Push int
	// Variadic opcodes compute their stack effect from the oparg via
	// StackEffect's switch, not from Pop/Push.
	Variadic bool
}

var definitions = map[Opcode]*Definition{
	OpNop:               {"NOP", 0, 0, false},
	OpPopTop:            {"POP_TOP", 1, 0, false},
	OpRotTwo:            {"ROT_TWO", 2, 2, false},
	OpDupTop:            {"DUP_TOP", 1, 2, false},
	OpLoadConst:         {"LOAD_CONST", 0, 1, false},
	OpLoadFast:          {"LOAD_FAST", 0, 1, false},
	OpStoreFast:         {"STORE_FAST", 1, 0, false},
	OpDeleteFast:        {"DELETE_FAST", 0, 0, false},
	OpLoadGlobal:        {"LOAD_GLOBAL", 0, 1, false},
	OpStoreGlobal:       {"STORE_GLOBAL", 1, 0, false},
	OpLoadName:          {"LOAD_NAME", 0, 1, false},
	OpStoreName:         {"STORE_NAME", 1, 0, false},
	OpLoadAttr:          {"LOAD_ATTR", 1, 1, false},
	OpStoreAttr:         {"STORE_ATTR", 2, 0, false},
	OpBinaryAdd:         {"BINARY_ADD", 2, 1, false},
	OpBinarySubtract:    {"BINARY_SUBTRACT", 2, 1, false},
	OpBinaryMultiply:    {"BINARY_MULTIPLY", 2, 1, false},
	OpBinaryTrueDivide:  {"BINARY_TRUE_DIVIDE", 2, 1, false},
	OpBinaryFloorDivide: {"BINARY_FLOOR_DIVIDE", 2, 1, false},
	OpBinaryModulo:      {"BINARY_MODULO", 2, 1, false},
	OpBinaryPower:       {"BINARY_POWER", 2, 1, false},
	OpBinaryLshift:      {"BINARY_LSHIFT", 2, 1, false},
	OpBinaryRshift:      {"BINARY_RSHIFT", 2, 1, false},
	OpBinaryAnd:         {"BINARY_AND", 2, 1, false},
	OpBinaryOr:          {"BINARY_OR", 2, 1, false},
	OpBinaryXor:         {"BINARY_XOR", 2, 1, false},
	OpBinarySubscr:      {"BINARY_SUBSCR", 2, 1, false},
	OpStoreSubscr:       {"STORE_SUBSCR", 3, 0, false},
	OpUnaryNegative:     {"UNARY_NEGATIVE", 1, 1, false},
	OpUnaryPositive:     {"UNARY_POSITIVE", 1, 1, false},
	OpUnaryInvert:       {"UNARY_INVERT", 1, 1, false},
	OpUnaryNot:          {"UNARY_NOT", 1, 1, false},
	OpCompareOp:         {"COMPARE_OP", 2, 1, false},
	OpContainsOp:        {"CONTAINS_OP", 2, 1, false},
	OpIsOp:              {"IS_OP", 2, 1, false},
	OpJumpForward:       {"JUMP_FORWARD", 0, 0, false},
	OpJumpAbsolute:      {"JUMP_ABSOLUTE", 0, 0, false},
	OpPopJumpIfFalse:    {"POP_JUMP_IF_FALSE", 1, 0, false},
	OpPopJumpIfTrue:     {"POP_JUMP_IF_TRUE", 1, 0, false},
	OpJumpIfFalseOrPop:  {"JUMP_IF_FALSE_OR_POP", 1, 1, false},
	OpJumpIfTrueOrPop:   {"JUMP_IF_TRUE_OR_POP", 1, 1, false},
	OpForIter:           {"FOR_ITER", 1, 2, false},
	OpGetIter:           {"GET_ITER", 1, 1, false},
	OpSetupFinally:      {"SETUP_FINALLY", 0, 0, false},
	OpSetupExcept:       {"SETUP_EXCEPT", 0, 0, false},
	OpPopBlock:          {"POP_BLOCK", 0, 0, false},
	OpPopExcept:         {"POP_EXCEPT", 3, 0, false},
	OpBeginFinally:      {"BEGIN_FINALLY", 0, 1, false},
	OpEndFinally:        {"END_FINALLY", 1, 0, false},
	OpRaiseVarargs:      {"RAISE_VARARGS", 0, 0, true},
	OpBreakLoop:         {"BREAK_LOOP", 0, 0, false},
	OpContinueLoop:      {"CONTINUE_LOOP", 0, 0, false},
	OpReturnValue:       {"RETURN_VALUE", 1, 0, false},
	OpBuildList:         {"BUILD_LIST", 0, 1, true},
	OpBuildTuple:        {"BUILD_TUPLE", 0, 1, true},
	OpBuildSet:          {"BUILD_SET", 0, 1, true},
	OpBuildMap:          {"BUILD_MAP", 0, 1, true},
	OpBuildSlice:        {"BUILD_SLICE", 0, 1, true},
	OpListExtend:        {"LIST_EXTEND", 2, 1, false},
	OpDictMerge:         {"DICT_MERGE", 2, 1, false},
	OpDictUpdate:        {"DICT_UPDATE", 2, 1, false},
	OpUnpackSequence:    {"UNPACK_SEQUENCE", 1, 0, true},
	OpUnpackEx:          {"UNPACK_EX", 1, 0, true},
	OpCallFunction:      {"CALL_FUNCTION", 0, 1, true},
	OpMakeFunction:      {"MAKE_FUNCTION", 2, 1, false},
	OpImportName:        {"IMPORT_NAME", 2, 1, false},
	OpImportFrom:        {"IMPORT_FROM", 1, 2, false},
	OpExtendedArg:       {"EXTENDED_ARG", 0, 0, false},
	OpAssertionError:    {"ASSERTION_ERROR", 1, 0, false},
}

// Lookup returns op's Definition, or ErrUnsupportedOpcode if op is not a
// recognised opcode.
func Lookup(op Opcode) (*Definition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("%w: opcode %d", ErrUnsupportedOpcode, byte(op))
	}
	return def, nil
}

// StackEffect returns the number of stack slots popped and pushed by op
// with operand oparg. Variadic opcodes (BUILD_LIST, CALL_FUNCTION,
// UNPACK_SEQUENCE, BUILD_SLICE, RAISE_VARARGS) derive their effect from
// oparg; everything else uses its Definition's fixed Pop/Push.
func StackEffect(op Opcode, oparg int) (pop, push int, err error) {
	def, err := Lookup(op)
	if err != nil {
		return 0, 0, err
	}
	if !def.Variadic {
		return def.Pop, def.Push, nil
	}

	switch op {
	case OpBuildList, OpBuildTuple, OpBuildSet:
		return oparg, 1, nil
	case OpBuildMap:
		return oparg * 2, 1, nil
	case OpBuildSlice:
		// oparg is 2 or 3: start:stop[:step]
		return oparg, 1, nil
	case OpUnpackSequence:
		return 1, oparg, nil
	case OpUnpackEx:
		// oparg packs (before, after) counts as low/high byte.
		before := oparg & 0xFF
		after := (oparg >> 8) & 0xFF
		return 1, before + after + 1, nil
	case OpCallFunction:
		// oparg positional args + the callable itself.
		return oparg + 1, 1, nil
	case OpRaiseVarargs:
		return oparg, 0, nil
	}
	return 0, 0, fmt.Errorf("%w: no stack-effect formula for variadic opcode %s", ErrMalformedBytecode, op)
}

// String renders a full instruction stream as a CPython-dis-style
// disassembly listing, one line per instruction.
func (ins Instructions) String() string {
	decoded, err := ins.Decode()
	if err != nil {
		return fmt.Sprintf("<malformed bytecode: %s>", err)
	}
	var out strings.Builder
	for _, in := range decoded {
		fmt.Fprintf(&out, "%4d %-22s %d\n", in.Index, in.Op, in.Oparg)
	}
	return out.String()
}

// ReadUint16 decodes the first two bytes of b as a big-endian uint16,
// used by callers that serialize oparg-wide fields (e.g. jump targets in
// assembled test fixtures) outside the one-byte-per-slot wordcode layout.
func ReadUint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}
