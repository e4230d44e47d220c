package analysis

import (
	"fmt"

	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
	"github.com/corejit/pyjit/state"
)

// step simulates the single instruction cur against s (which is mutated
// in place for the fallthrough case), returning the outgoing successor
// edges and whether cur terminates this run (every branch, return and
// raise, and the last opcode of the stream).
//
// A non-terminal result with exactly one successor whose pc is cur's
// immediate successor pc is a "pure fallthrough": Run continues the same
// linear simulation without re-entering the worklist. Anything else — a
// real branch, a handler entry, a loop exit — goes through
// updateStartState and the worklist.
func (in *Interpreter) step(
	cur pybc.Instruction,
	s *state.State,
	code *pybc.Code,
	result *Result,
	pre *preprocessed,
	decoded []pybc.Instruction,
	idx int,
) ([]successor, bool, error) {
	switch cur.Op {
	case pybc.OpJumpForward:
		target := nextPC(cur) + cur.Oparg
		return []successor{{pc: target, s: s}}, true, nil

	case pybc.OpJumpAbsolute:
		return []successor{{pc: cur.Oparg, s: s}}, true, nil

	case pybc.OpPopJumpIfFalse, pybc.OpPopJumpIfTrue:
		popOperands(s, in.arena, cur.Index, 1, !pybc.SupportsUnboxing(cur.Op))
		fallthroughState := s.Clone()
		branchState := s.Clone()
		return []successor{
			{pc: nextPC(cur), s: fallthroughState},
			{pc: cur.Oparg, s: branchState},
		}, true, nil

	case pybc.OpJumpIfFalseOrPop, pybc.OpJumpIfTrueOrPop:
		// Branch-taken path keeps the condition value on the stack;
		// fallthrough pops it.
		branchState := s.Clone()
		fallthroughState := s.Clone()
		popOperands(fallthroughState, in.arena, cur.Index, 1, !pybc.SupportsUnboxing(cur.Op))
		return []successor{
			{pc: nextPC(cur), s: fallthroughState},
			{pc: cur.Oparg, s: branchState},
		}, true, nil

	case pybc.OpForIter:
		iterState := s.Clone()
		exitState := s.Clone()

		iterOps := popOperands(iterState, in.arena, cur.Index, 1, false)
		iterState.Push(iterOps[0])
		in.pushResult(iterState, cur.Index, pyvalue.KindAny)

		popOperands(exitState, in.arena, cur.Index, 1, false)

		exitPC := nextPC(cur) + cur.Oparg
		return []successor{
			{pc: nextPC(cur), s: iterState},
			{pc: exitPC, s: exitState},
		}, true, nil

	case pybc.OpBreakLoop:
		target, ok := pre.breakTargets[cur.Index]
		if !ok {
			return nil, false, fmt.Errorf("%w: BREAK_LOOP at %d has no enclosing loop", ErrMalformedBytecode, cur.Index)
		}
		// Leaving the loop drops its iterator (and anything above it), so
		// the exit is reached at the depth FOR_ITER's exhausted path leaves.
		for _, d := range decoded {
			if d.Op != pybc.OpForIter || nextPC(d)+d.Oparg != target {
				continue
			}
			if fs, ok := result.States[d.Index]; ok {
				for len(s.Stack) > 0 && len(s.Stack) > len(fs.Stack)-1 {
					popOperands(s, in.arena, cur.Index, 1, true)
				}
			}
			break
		}
		return []successor{{pc: target, s: s}}, true, nil

	case pybc.OpContinueLoop:
		return []successor{{pc: cur.Oparg, s: s}}, true, nil

	case pybc.OpRaiseVarargs, pybc.OpAssertionError:
		nargs := 0
		if cur.Op == pybc.OpRaiseVarargs {
			nargs = cur.Oparg
		} else {
			nargs = 1
		}
		popOperands(s, in.arena, cur.Index, nargs, true)
		return in.enterHandler(cur.Index, s, pre)

	case pybc.OpEndFinally:
		if err := in.applyLinear(cur, s, code); err != nil {
			return nil, false, err
		}
		// END_FINALLY may re-raise; conservatively also route into any
		// enclosing handler in addition to falling through.
		succs, _, err := in.enterHandler(cur.Index, s, pre)
		if err != nil {
			return nil, false, err
		}
		succs = append(succs, successor{pc: nextPC(cur), s: s})
		return succs, true, nil

	case pybc.OpReturnValue:
		popped := popOperands(s, in.arena, cur.Index, 1, true)
		result.ReturnKind = pyvalue.Merge(result.ReturnKind, popped[0].Value.Kind())
		return nil, true, nil

	default:
		if err := in.applyLinear(cur, s, code); err != nil {
			return nil, false, err
		}
		if idx+1 >= len(decoded) {
			return nil, true, nil
		}
		return []successor{{pc: nextPC(cur), s: s}}, false, nil
	}
}

// enterHandler routes a raise at pc into the nearest enclosing exception
// handler, per spec §4.2: "exception handler entry points always begin
// with a state whose stack has the exception triple pushed." If no
// handler encloses pc, the raise propagates out of the function (no
// successor; spec §7's function-epilogue rethrow).
func (in *Interpreter) enterHandler(pc int, s *state.State, pre *preprocessed) ([]successor, bool, error) {
	handlerPC, ok := nearestHandler(pc, pre)
	if !ok {
		return nil, true, nil
	}
	handlerState := s.Clone()
	handlerState.Stack = nil // the live operand stack is discarded on an unwind
	for i := 0; i < 3; i++ {
		src := in.arena.New(pysource.ProducerSynth, int(pyvalue.KindAny))
		handlerState.Push(state.ValueWithSource{Value: pyvalue.Any, Source: src})
	}
	return []successor{{pc: handlerPC, s: handlerState}}, true, nil
}

// nearestHandler finds the handler-entry offset of the innermost
// protected region containing pc, by scanning the precomputed
// blockStarts map for the handler whose SETUP_* offset precedes pc most
// closely among those whose protected region actually contains pc.
//
// blockStarts maps handler-entry-offset -> SETUP_*-offset; since SETUP_*
// offsets are always less than their own handler-entry offset and a
// region's protected body is the half-open range [setupPC, handlerPC),
// the nearest enclosing handler is the one with the largest setupPC that
// still satisfies setupPC <= pc < handlerPC.
func nearestHandler(pc int, pre *preprocessed) (int, bool) {
	bestHandler := -1
	bestSetup := -1
	for handlerPC, setupPC := range pre.blockStarts {
		if setupPC <= pc && pc < handlerPC && setupPC > bestSetup {
			bestSetup = setupPC
			bestHandler = handlerPC
		}
	}
	if bestHandler < 0 {
		return 0, false
	}
	return bestHandler, true
}
