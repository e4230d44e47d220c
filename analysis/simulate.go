package analysis

import (
	"fmt"

	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
	"github.com/corejit/pyjit/state"
)

// popOperands pops n values off s, recording each popped source as a
// consumer of atPC at the operand's logical left-to-right position
// (position 0 is the operand deepest in the popped group, matching the
// instruction graph's edge-position invariant). If forceEscape is true
// (the opcode is not in the unboxing whitelist), every popped source is
// marked escaped immediately, per spec §4.2 step 2's tie-break.
func popOperands(s *state.State, arena *pysource.Arena, atPC, n int, forceEscape bool) []state.ValueWithSource {
	out := make([]state.ValueWithSource, n)
	for i := n - 1; i >= 0; i-- {
		v := s.Pop()
		out[i] = v
		if v.Source != pysource.None {
			arena.RecordConsumer(v.Source, atPC, i)
			if forceEscape {
				arena.MarkEscaped(v.Source)
			}
		}
	}
	return out
}

// pushResult pushes a freshly computed value onto s, allocating a new
// source tagged with the producing opcode index, and records it as the
// result source for that pc so ShouldBox can later inspect its consumers.
func (in *Interpreter) pushResult(s *state.State, atPC int, kind pyvalue.Kind) {
	src := in.arena.New(atPC, int(kind))
	in.resultSource[atPC] = src
	s.Push(state.ValueWithSource{Value: pyvalue.Of(kind), Source: src})
}

// applyLinear simulates one non-branching opcode in place on s, mutating
// the stack and locals and recording source edges. It never changes
// control flow; callers handle branches, FOR_ITER, RAISE_VARARGS,
// RETURN_VALUE, BREAK_LOOP, and CONTINUE_LOOP themselves.
func (in *Interpreter) applyLinear(pcI pybc.Instruction, s *state.State, code *pybc.Code) error {
	pc := pcI.Index
	op := pcI.Op
	oparg := pcI.Oparg
	forceEscape := !pybc.SupportsUnboxing(op)

	binary := func(bop pyvalue.BinOp) error {
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		kind := pyvalue.BinaryResultKind(bop, ops[0].Value.Kind(), ops[1].Value.Kind())
		in.pushResult(s, pc, kind)
		return nil
	}
	unary := func(uop pyvalue.UnaryOp) error {
		ops := popOperands(s, in.arena, pc, 1, forceEscape)
		kind := pyvalue.UnaryResultKind(uop, ops[0].Value.Kind())
		in.pushResult(s, pc, kind)
		return nil
	}

	switch op {
	case pybc.OpNop:
		return nil

	case pybc.OpPopTop:
		popOperands(s, in.arena, pc, 1, forceEscape)
		return nil

	case pybc.OpRotTwo:
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		s.Push(ops[1])
		s.Push(ops[0])
		return nil

	case pybc.OpDupTop:
		top := s.Stack[len(s.Stack)-1]
		s.Push(top)
		return nil

	case pybc.OpLoadConst:
		if oparg < 0 || oparg >= len(code.Constants) {
			return fmt.Errorf("%w: LOAD_CONST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		kind := code.Constants[oparg]
		src := in.arena.New(pysource.ProducerConst, int(kind))
		s.Push(state.ValueWithSource{Value: pyvalue.Of(kind), Source: src})
		return nil

	case pybc.OpLoadFast:
		if oparg < 0 || oparg >= s.Locals.Len() {
			return fmt.Errorf("%w: LOAD_FAST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		li := s.Locals.At(oparg)
		s.Push(li.VWS)
		return nil

	case pybc.OpStoreFast:
		ops := popOperands(s, in.arena, pc, 1, forceEscape)
		if oparg < 0 || oparg >= s.Locals.Len() {
			return fmt.Errorf("%w: STORE_FAST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		li, err := state.NewLocalInfo(ops[0], false)
		if err != nil {
			return err
		}
		s.Locals = s.Locals.Set(oparg, li)
		return nil

	case pybc.OpDeleteFast:
		if oparg < 0 || oparg >= s.Locals.Len() {
			return fmt.Errorf("%w: DELETE_FAST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		s.Locals = s.Locals.Set(oparg, state.Undefined())
		return nil

	case pybc.OpLoadGlobal, pybc.OpLoadName:
		src := in.arena.New(pysource.ProducerSynth, int(pyvalue.KindAny))
		s.Push(state.ValueWithSource{Value: pyvalue.Any, Source: src})
		return nil

	case pybc.OpStoreGlobal, pybc.OpStoreName:
		popOperands(s, in.arena, pc, 1, forceEscape)
		return nil

	case pybc.OpLoadAttr:
		popOperands(s, in.arena, pc, 1, forceEscape)
		in.pushResult(s, pc, pyvalue.KindAny)
		return nil

	case pybc.OpStoreAttr:
		popOperands(s, in.arena, pc, 2, forceEscape)
		return nil

	case pybc.OpBinaryAdd:
		return binary(pyvalue.Add)
	case pybc.OpBinarySubtract:
		return binary(pyvalue.Sub)
	case pybc.OpBinaryMultiply:
		return binary(pyvalue.Mul)
	case pybc.OpBinaryTrueDivide:
		return binary(pyvalue.TrueDiv)
	case pybc.OpBinaryFloorDivide:
		return binary(pyvalue.FloorDiv)
	case pybc.OpBinaryModulo:
		return binary(pyvalue.Mod)
	case pybc.OpBinaryPower:
		return binary(pyvalue.Pow)
	case pybc.OpBinaryLshift:
		return binary(pyvalue.LShift)
	case pybc.OpBinaryRshift:
		return binary(pyvalue.RShift)
	case pybc.OpBinaryAnd:
		return binary(pyvalue.BitAnd)
	case pybc.OpBinaryOr:
		return binary(pyvalue.BitOr)
	case pybc.OpBinaryXor:
		return binary(pyvalue.BitXor)

	case pybc.OpBinarySubscr:
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		kind := pyvalue.SubscriptResultKind(ops[0].Value.Kind(), ops[1].Value.Kind())
		in.pushResult(s, pc, kind)
		return nil

	case pybc.OpStoreSubscr:
		popOperands(s, in.arena, pc, 3, forceEscape)
		return nil

	case pybc.OpUnaryNegative:
		return unary(pyvalue.Neg)
	case pybc.OpUnaryPositive:
		return unary(pyvalue.Pos)
	case pybc.OpUnaryInvert:
		return unary(pyvalue.Invert)
	case pybc.OpUnaryNot:
		return unary(pyvalue.Not)

	case pybc.OpCompareOp:
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		kind := pyvalue.CompareResultKind(pyvalue.CompareOp(oparg), ops[0].Value.Kind(), ops[1].Value.Kind())
		in.pushResult(s, pc, kind)
		return nil

	case pybc.OpContainsOp:
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		kind := pyvalue.ContainsResultKind(ops[1].Value.Kind(), ops[0].Value.Kind())
		in.pushResult(s, pc, kind)
		return nil

	case pybc.OpIsOp:
		popOperands(s, in.arena, pc, 2, forceEscape)
		in.pushResult(s, pc, pyvalue.KindBool)
		return nil

	case pybc.OpGetIter:
		popOperands(s, in.arena, pc, 1, forceEscape)
		in.pushResult(s, pc, pyvalue.KindIterable)
		return nil

	case pybc.OpSetupFinally, pybc.OpSetupExcept, pybc.OpPopBlock:
		return nil

	case pybc.OpPopExcept:
		popOperands(s, in.arena, pc, 3, forceEscape)
		return nil

	case pybc.OpBeginFinally:
		in.pushResult(s, pc, pyvalue.KindAny)
		return nil

	case pybc.OpEndFinally:
		popOperands(s, in.arena, pc, 1, forceEscape)
		return nil

	case pybc.OpBuildList:
		popOperands(s, in.arena, pc, oparg, forceEscape)
		in.pushResult(s, pc, pyvalue.KindList)
		return nil
	case pybc.OpBuildTuple:
		popOperands(s, in.arena, pc, oparg, forceEscape)
		in.pushResult(s, pc, pyvalue.KindTuple)
		return nil
	case pybc.OpBuildSet:
		popOperands(s, in.arena, pc, oparg, forceEscape)
		in.pushResult(s, pc, pyvalue.KindSet)
		return nil
	case pybc.OpBuildMap:
		popOperands(s, in.arena, pc, oparg*2, forceEscape)
		in.pushResult(s, pc, pyvalue.KindDict)
		return nil
	case pybc.OpBuildSlice:
		popOperands(s, in.arena, pc, oparg, forceEscape)
		in.pushResult(s, pc, pyvalue.KindSlice)
		return nil

	case pybc.OpListExtend:
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		in.pushResult(s, pc, ops[0].Value.Kind())
		return nil
	case pybc.OpDictMerge, pybc.OpDictUpdate:
		ops := popOperands(s, in.arena, pc, 2, forceEscape)
		in.pushResult(s, pc, ops[0].Value.Kind())
		return nil

	case pybc.OpUnpackSequence:
		popOperands(s, in.arena, pc, 1, forceEscape)
		for i := 0; i < oparg; i++ {
			in.pushResult(s, pc, pyvalue.KindAny)
		}
		return nil
	case pybc.OpUnpackEx:
		popOperands(s, in.arena, pc, 1, forceEscape)
		before := oparg & 0xFF
		after := (oparg >> 8) & 0xFF
		total := before + after + 1
		for i := 0; i < total; i++ {
			kind := pyvalue.KindAny
			if i == before {
				kind = pyvalue.KindList
			}
			in.pushResult(s, pc, kind)
		}
		return nil

	case pybc.OpCallFunction:
		popOperands(s, in.arena, pc, oparg+1, forceEscape)
		in.pushResult(s, pc, pyvalue.KindAny)
		return nil

	case pybc.OpMakeFunction:
		popOperands(s, in.arena, pc, 2, forceEscape)
		in.pushResult(s, pc, pyvalue.KindFunction)
		return nil

	case pybc.OpImportName:
		popOperands(s, in.arena, pc, 2, forceEscape)
		in.pushResult(s, pc, pyvalue.KindModule)
		return nil

	case pybc.OpImportFrom:
		top := s.Stack[len(s.Stack)-1]
		if top.Source != pysource.None {
			in.arena.RecordConsumer(top.Source, pc, 0)
		}
		in.pushResult(s, pc, pyvalue.KindAny)
		return nil

	default:
		return fmt.Errorf("%w: opcode %s has no linear simulation rule", ErrUnsupportedOpcode, op)
	}
}
