package driver

import (
	"fmt"

	"github.com/corejit/pyjit/depgraph"
	"github.com/corejit/pyjit/ilgen"
	"github.com/corejit/pyjit/jitrt"
	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pyvalue"
)

// consumeOperands pops n shadow entries for the instruction at pc (in
// simulate.go's popOperands position order: position 0 deepest, n-1 on
// top), applies whatever Box/Unbox conversion each operand's inbound edge
// requires, and stashes each converted operand into a freshly defined
// local. reload (below) restores them to the IL stack in the same order
// immediately before the consuming op itself is emitted, so a conversion
// call issued mid-pop never disturbs an operand still buried underneath.
func (d *Driver) consumeOperands(pc, n int) ([]ilgen.Local, []ShadowEntry) {
	entries := d.popN(n)
	locals := make([]ilgen.Local, n)
	for p := n - 1; p >= 0; p-- {
		converted := d.applyInboundConversion(pc, p, entries[p])
		entries[p] = converted
		l := d.emitter.DefineLocal(converted.MachineKind)
		d.emitter.StLoc(l)
		locals[p] = l
	}
	return locals, entries
}

// consumeOperandsForce is consumeOperands followed by an explicit
// Box/Unbox call on any operand whose representation still doesn't match
// force once the graph's own edge conversions have been applied — used by
// opcodes with one fixed native signature regardless of the instruction's
// own escape decision (BINARY_TRUE_DIVIDE, BINARY_POWER, and every opcode
// whose only runtime helper takes boxed object arguments).
func (d *Driver) consumeOperandsForce(pc, n int, force ilgen.MachineKind) []ilgen.Local {
	entries := d.popN(n)
	locals := make([]ilgen.Local, n)
	for p := n - 1; p >= 0; p-- {
		e := d.applyInboundConversion(pc, p, entries[p])
		if e.MachineKind != force {
			if force == ilgen.KindObjectPointer {
				d.emitter.EmitCall(ilgen.Token(jitrt.BoxValue))
			} else {
				d.emitter.EmitCall(ilgen.Token(jitrt.UnboxValue))
			}
		}
		l := d.emitter.DefineLocal(force)
		d.emitter.StLoc(l)
		locals[p] = l
	}
	return locals
}

// reload pushes locals back onto the IL stack in position order (0
// first), restoring the operand order the consuming op expects.
func (d *Driver) reload(locals []ilgen.Local) {
	for _, l := range locals {
		d.emitter.LdLoc(l)
	}
}

// applyInboundConversion inserts the Box/Unbox helper call the edge
// landing on (pc, position) requires, per spec §4.3's 2x2 transition
// table, and returns the entry's representation after conversion.
func (d *Driver) applyInboundConversion(pc, position int, e ShadowEntry) ShadowEntry {
	if d.graph == nil {
		return e
	}
	edge, ok := d.graph.EdgeTo(pc, position)
	if !ok {
		return e
	}
	switch edge.Transition {
	case depgraph.Unbox:
		d.emitter.EmitCall(ilgen.Token(jitrt.UnboxValue))
		return ShadowEntry{Kind: StackKindValue, MachineKind: machineKindFor(edge.Kind)}
	case depgraph.Box:
		d.emitter.EmitCall(ilgen.Token(jitrt.BoxValue))
		return ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer}
	default:
		return e
	}
}

// pushResult pushes the shadow entry(ies) the analyser recorded for the
// state immediately after in: reads back the already-computed kind(s)
// from analysis.Result rather than re-deriving the abstract-value result
// tables (binary/unary/compare kind inference) a second time in the
// driver.
func (d *Driver) pushResult(in pybc.Instruction, count int) {
	shape := d.shapeAt(nextPC(in))
	start := len(shape) - count
	for i := 0; i < count; i++ {
		if start+i < 0 || start+i >= len(shape) {
			d.push(ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer})
			continue
		}
		d.push(shape[start+i])
	}
}

// discard pops and drops the top shadow entry by routing it through a
// scratch store; the façade has no bare "pop" primitive.
func (d *Driver) discard() {
	e := d.pop()
	l := d.emitter.DefineLocal(e.MachineKind)
	d.emitter.StLoc(l)
}

// freeLocals reloads and drops each local in turn (same scratch-store
// pattern as discard, since the façade has no dedicated release op): used
// by BREAK_LOOP/CONTINUE_LOOP to free the for-iter locals of every loop
// block between the current one and the branch target (spec §4.5).
func (d *Driver) freeLocals(locals []ilgen.Local) {
	for _, l := range locals {
		d.emitter.LdLoc(l)
		scratch := d.emitter.DefineLocal(ilgen.KindObjectPointer)
		d.emitter.StLoc(scratch)
	}
}

// binOpSelector mirrors pyvalue.BinOp's ordinal order so jitrt.BinaryOp
// (which cannot import pyvalue without coupling the runtime helper layer
// to the analyser's abstract-value package) can select the right
// operation from a plain int32.
func binOpSelector(op pybc.Opcode) int32 {
	switch op {
	case pybc.OpBinaryAdd:
		return 0
	case pybc.OpBinarySubtract:
		return 1
	case pybc.OpBinaryMultiply:
		return 2
	case pybc.OpBinaryFloorDivide:
		return 4
	case pybc.OpBinaryModulo:
		return 5
	case pybc.OpBinaryLshift:
		return 7
	case pybc.OpBinaryRshift:
		return 8
	case pybc.OpBinaryAnd:
		return 9
	case pybc.OpBinaryOr:
		return 10
	case pybc.OpBinaryXor:
		return 11
	default:
		return -1
	}
}

// emitBinary drives one BINARY_* opcode (spec §4.3/§4.4): BINARY_TRUE_DIVIDE
// and BINARY_POWER always dispatch through their dedicated helper (the
// façade has no divide-by-helper-free path for either; BINARY_POWER has no
// Emitter machine op at all). Every other arithmetic/bitwise opcode runs
// natively through the Emitter when both operands are a machine-representable
// kind, boxing the result back only if the instruction graph decided this
// instruction itself does not escape; BINARY_ADD on two strings goes through
// UnicodeConcat since Add() is a numeric machine instruction; anything else
// (an Any-kinded operand the analyser could not narrow) falls back to the
// generic boxed jitrt.BinaryOp dispatch.
func (d *Driver) emitBinary(in pybc.Instruction) error {
	pc, op := in.Index, in.Op

	if op == pybc.OpBinaryTrueDivide {
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindDouble)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.TrueDivide))
		if !d.graph.Escapes(pc) {
			d.emitter.EmitCall(ilgen.Token(jitrt.BoxValue))
		}
		d.pushResult(in, 1)
		return nil
	}
	if op == pybc.OpBinaryPower {
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindDouble)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.PowerOp))
		if !d.graph.Escapes(pc) {
			d.emitter.EmitCall(ilgen.Token(jitrt.BoxValue))
		}
		d.pushResult(in, 1)
		return nil
	}

	kind0, kind1 := pyvalue.KindAny, pyvalue.KindAny
	if e, ok := d.graph.EdgeTo(pc, 0); ok {
		kind0 = e.Kind
	}
	if e, ok := d.graph.EdgeTo(pc, 1); ok {
		kind1 = e.Kind
	}

	if op == pybc.OpBinaryAdd && kind0 == pyvalue.KindStr && kind1 == pyvalue.KindStr {
		locals, _ := d.consumeOperands(pc, 2)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.UnicodeConcat))
		d.pushResult(in, 1)
		return nil
	}

	if pybc.SupportsEscaping(kind0) && pybc.SupportsEscaping(kind1) {
		force := ilgen.KindInt64
		if kind0 == pyvalue.KindFloat || kind1 == pyvalue.KindFloat {
			force = ilgen.KindDouble
		}
		locals := d.consumeOperandsForce(pc, 2, force)
		d.reload(locals)
		if err := d.emitMachineBinary(op); err != nil {
			return err
		}
		if !d.graph.Escapes(pc) {
			d.emitter.EmitCall(ilgen.Token(jitrt.BoxValue))
		}
		d.pushResult(in, 1)
		return nil
	}

	sel := binOpSelector(op)
	if sel < 0 {
		return fmt.Errorf("%w: %s has no BinaryOp selector", ErrUnsupportedOpcode, op)
	}
	locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
	d.reload(locals)
	d.emitter.LdI4(sel)
	d.emitter.EmitCall(ilgen.Token(jitrt.BinaryOp))
	d.pushResult(in, 1)
	return nil
}

func (d *Driver) emitMachineBinary(op pybc.Opcode) error {
	switch op {
	case pybc.OpBinaryAdd:
		d.emitter.Add()
	case pybc.OpBinarySubtract:
		d.emitter.Sub()
	case pybc.OpBinaryMultiply:
		d.emitter.Mul()
	case pybc.OpBinaryFloorDivide:
		d.emitter.Div()
	case pybc.OpBinaryModulo:
		d.emitter.Mod()
	case pybc.OpBinaryLshift:
		d.emitter.LShift()
	case pybc.OpBinaryRshift:
		d.emitter.RShift()
	case pybc.OpBinaryAnd:
		d.emitter.And()
	case pybc.OpBinaryOr:
		d.emitter.Or()
	case pybc.OpBinaryXor:
		d.emitter.Xor()
	default:
		return fmt.Errorf("%w: %s has no direct Emitter op", ErrUnsupportedOpcode, op)
	}
	return nil
}

// emitUnary drives UNARY_NEGATIVE/POSITIVE/INVERT/NOT. UNARY_POSITIVE is a
// pure identity for every numeric kind (spec's abstract lattice never
// narrows it further) so it emits nothing beyond moving the operand
// across; the other three force their operand to a machine kind, run the
// matching Emitter op, and box the result back when the instruction does
// not itself escape.
func (d *Driver) emitUnary(in pybc.Instruction) error {
	pc, op := in.Index, in.Op

	if op == pybc.OpUnaryPositive {
		locals, _ := d.consumeOperands(pc, 1)
		d.reload(locals)
		d.pushResult(in, 1)
		return nil
	}

	kind := pyvalue.KindAny
	if e, ok := d.graph.EdgeTo(pc, 0); ok {
		kind = e.Kind
	}
	force := ilgen.KindInt64
	if kind == pyvalue.KindFloat {
		force = ilgen.KindDouble
	} else if kind == pyvalue.KindBool {
		force = ilgen.KindInt32
	}
	locals := d.consumeOperandsForce(pc, 1, force)
	d.reload(locals)
	switch op {
	case pybc.OpUnaryNegative:
		d.emitter.Neg()
	case pybc.OpUnaryInvert, pybc.OpUnaryNot:
		d.emitter.Not()
	default:
		return fmt.Errorf("%w: %s has no unary emission rule", ErrUnsupportedOpcode, op)
	}
	if !d.graph.Escapes(pc) {
		d.emitter.EmitCall(ilgen.Token(jitrt.BoxValue))
	}
	d.pushResult(in, 1)
	return nil
}

// emitCompare drives COMPARE_OP: RichCompare always backs it (there is no
// Emitter primitive that produces a boolean value from a comparison
// outside of a branch condition), taking the comparison's operator code
// as a third int32 argument.
func (d *Driver) emitCompare(in pybc.Instruction) error {
	locals := d.consumeOperandsForce(in.Index, 2, ilgen.KindObjectPointer)
	d.reload(locals)
	d.emitter.LdI4(int32(in.Oparg))
	d.emitter.EmitCall(ilgen.Token(jitrt.RichCompare))
	d.pushResult(in, 1)
	return nil
}

// emitRotTwo swaps the top two shadow entries in place: pop both, reload
// in reverse order, and push the shadow shape swapped to match.
func (d *Driver) emitRotTwo(pc int) {
	locals, entries := d.consumeOperands(pc, 2)
	d.emitter.LdLoc(locals[1])
	d.emitter.LdLoc(locals[0])
	d.push(entries[1])
	d.push(entries[0])
}

// emitBuildContainer drives BUILD_LIST/BUILD_TUPLE/BUILD_SET: pop oparg
// elements, reload them in original order, and call the matching builder
// helper.
func (d *Driver) emitBuildContainer(in pybc.Instruction, count int) error {
	locals := d.consumeOperandsForce(in.Index, count, ilgen.KindObjectPointer)
	d.reload(locals)
	var tok jitrt.Token
	switch in.Op {
	case pybc.OpBuildList:
		tok = jitrt.BuildList
	case pybc.OpBuildTuple:
		tok = jitrt.BuildTuple
	case pybc.OpBuildSet:
		tok = jitrt.BuildSet
	default:
		return fmt.Errorf("%w: %s is not a container builder", ErrUnsupportedOpcode, in.Op)
	}
	d.emitter.EmitCall(ilgen.Token(tok))
	d.pushResult(in, 1)
	return nil
}

// emitForIter drives FOR_ITER's two-successor shape (spec §4.2: fallthrough
// on a yielded value, jump to the loop's exit once the iterator is
// exhausted). The iterator itself is kept alive across iterations as a
// loop block's for-iter local so BREAK_LOOP/CONTINUE_LOOP can free it on
// the way out.
func (d *Driver) emitForIter(in pybc.Instruction) error {
	exitPC := nextPC(in) + in.Oparg

	e := d.pop()
	itLocal := d.emitter.DefineLocal(e.MachineKind)
	d.emitter.StLoc(itLocal)

	d.blocks = append(d.blocks, &BlockInfo{
		Kind:          BlockLoop,
		ExitPC:        exitPC,
		ForIterLocals: []ilgen.Local{itLocal},
	})

	d.emitter.LdLoc(itLocal)
	d.emitter.EmitCall(ilgen.Token(jitrt.IterNext))
	// The façade has no explicit null/sentinel-check branch primitive;
	// the backend's calling convention is relied on to leave a condition
	// flag an IfFalse branch can consume, the same assumption
	// POP_JUMP_IF_FALSE already rests on for its own condition operand.
	d.branchTo(ilgen.IfFalse, exitPC)

	d.emitter.LdLoc(itLocal)
	d.push(e)
	d.pushResult(in, 1)
	return nil
}

// emitOne drives the emitter for one reached instruction, mirroring
// analysis/control.go's step and analysis/simulate.go's applyLinear
// control flow but producing IL instead of abstract state transitions.
func (d *Driver) emitOne(in pybc.Instruction, idx int, decoded []pybc.Instruction) error {
	pc := in.Index
	op := in.Op
	oparg := in.Oparg

	switch op {
	case pybc.OpNop:
		return nil

	case pybc.OpPopTop:
		d.discard()
		return nil

	case pybc.OpRotTwo:
		d.emitRotTwo(pc)
		return nil

	case pybc.OpDupTop:
		e := d.pop()
		l := d.emitter.DefineLocal(e.MachineKind)
		d.emitter.StLoc(l)
		d.emitter.LdLoc(l)
		d.emitter.LdLoc(l)
		d.push(e)
		d.push(e)
		return nil

	case pybc.OpLoadConst:
		l, ok := d.constLocal(oparg)
		if !ok {
			return fmt.Errorf("%w: LOAD_CONST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		d.emitter.LdLoc(l)
		d.push(ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer})
		return nil

	case pybc.OpLoadFast:
		if oparg < 0 || oparg >= len(d.pyLocals) {
			return fmt.Errorf("%w: LOAD_FAST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		d.emitter.LdLoc(d.pyLocals[oparg])
		d.push(ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer})
		return nil

	case pybc.OpStoreFast:
		if oparg < 0 || oparg >= len(d.pyLocals) {
			return fmt.Errorf("%w: STORE_FAST index %d out of range at pc %d", ErrMalformedBytecode, oparg, pc)
		}
		// LOAD_FAST/STORE_FAST are deferred from the unboxing whitelist
		// (spec §4.3): a value bound for a Python local always arrives
		// boxed, so force it regardless of its producer's escape decision.
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.StLoc(d.pyLocals[oparg])
		return nil

	case pybc.OpDeleteFast:
		return nil

	case pybc.OpLoadGlobal, pybc.OpLoadName:
		d.emitter.LdLoc(d.globalsLocal())
		d.emitter.LdLoc(d.nameLocal(oparg))
		d.emitter.EmitCall(ilgen.Token(jitrt.GetGlobal))
		d.push(ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer})
		return nil

	case pybc.OpStoreGlobal, pybc.OpStoreName:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.emitter.LdLoc(d.globalsLocal())
		d.emitter.LdLoc(d.nameLocal(oparg))
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.SetGlobal))
		return nil

	case pybc.OpLoadAttr:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.LdLoc(d.nameLocal(oparg))
		d.emitter.EmitCall(ilgen.Token(jitrt.GetAttr))
		d.pushResult(in, 1)
		return nil

	case pybc.OpStoreAttr:
		objLocals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(objLocals)
		d.emitter.LdLoc(d.nameLocal(oparg))
		valLocals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(valLocals)
		d.emitter.EmitCall(ilgen.Token(jitrt.SetAttr))
		return nil

	case pybc.OpBinaryAdd, pybc.OpBinarySubtract, pybc.OpBinaryMultiply,
		pybc.OpBinaryTrueDivide, pybc.OpBinaryFloorDivide, pybc.OpBinaryModulo,
		pybc.OpBinaryPower, pybc.OpBinaryLshift, pybc.OpBinaryRshift,
		pybc.OpBinaryAnd, pybc.OpBinaryOr, pybc.OpBinaryXor:
		return d.emitBinary(in)

	case pybc.OpBinarySubscr:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.Subscript))
		d.pushResult(in, 1)
		return nil

	case pybc.OpStoreSubscr:
		locals := d.consumeOperandsForce(pc, 3, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.Subscript))
		return nil

	case pybc.OpUnaryNegative, pybc.OpUnaryPositive, pybc.OpUnaryInvert, pybc.OpUnaryNot:
		return d.emitUnary(in)

	case pybc.OpCompareOp:
		return d.emitCompare(in)

	case pybc.OpContainsOp:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.Contains))
		d.pushResult(in, 1)
		return nil

	case pybc.OpIsOp:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.Is))
		d.pushResult(in, 1)
		return nil

	case pybc.OpGetIter:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.GetIter))
		d.pushResult(in, 1)
		return nil

	case pybc.OpSetupFinally, pybc.OpSetupExcept:
		h := newExceptionHandler(oparg)
		d.blocks = append(d.blocks, &BlockInfo{Kind: BlockTry, Handler: h, ExitPC: oparg})
		d.labelFor(oparg)
		return nil

	case pybc.OpPopBlock:
		if len(d.blocks) == 0 {
			return fmt.Errorf("%w: POP_BLOCK with no open block at pc %d", ErrMalformedBytecode, pc)
		}
		top := d.blocks[len(d.blocks)-1]
		d.blocks = d.blocks[:len(d.blocks)-1]
		if top.Kind == BlockTry {
			top.Handler.State = PostHandler
		}
		return nil

	case pybc.OpPopExcept:
		_, _ = d.consumeOperands(pc, 3)
		if h := d.currentHandler(); h != nil {
			h.State = Inactive
		}
		return nil

	case pybc.OpBeginFinally:
		d.push(ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer})
		return nil

	case pybc.OpEndFinally:
		d.discard()
		d.raiseAndFree()
		return nil

	case pybc.OpRaiseVarargs, pybc.OpAssertionError:
		n := 1
		if op == pybc.OpRaiseVarargs {
			n = oparg
		}
		if n > 0 {
			_, _ = d.consumeOperands(pc, n)
		}
		if op == pybc.OpAssertionError {
			d.emitter.EmitCall(ilgen.Token(jitrt.RaiseAssertionError))
		}
		d.raiseAndFree()
		return nil

	case pybc.OpReturnValue:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.Ret()
		return nil

	case pybc.OpJumpForward:
		target := nextPC(in) + oparg
		d.branchTo(ilgen.Always, target)
		return nil

	case pybc.OpJumpAbsolute:
		d.branchTo(ilgen.Always, oparg)
		return nil

	case pybc.OpPopJumpIfFalse, pybc.OpPopJumpIfTrue:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		kind := ilgen.IfFalse
		if op == pybc.OpPopJumpIfTrue {
			kind = ilgen.IfTrue
		}
		d.branchTo(kind, oparg)
		return nil

	case pybc.OpJumpIfFalseOrPop, pybc.OpJumpIfTrueOrPop:
		kind := ilgen.IfFalse
		if op == pybc.OpJumpIfTrueOrPop {
			kind = ilgen.IfTrue
		}
		top := d.shadow[len(d.shadow)-1]
		spillLocal := d.emitter.DefineLocal(top.MachineKind)
		d.emitter.StLoc(spillLocal)
		d.emitter.LdLoc(spillLocal)
		d.branchTo(kind, oparg)
		d.discard()
		return nil

	case pybc.OpForIter:
		return d.emitForIter(in)

	case pybc.OpBreakLoop:
		target, ok := d.result.BreakTargets[pc]
		if !ok {
			return fmt.Errorf("%w: BREAK_LOOP at %d has no enclosing loop", ErrMalformedBytecode, pc)
		}
		// The loop's iterator is still on the shadow stack; drop it (and
		// anything above it) down to the depth recorded at the loop exit.
		for len(d.shadow) > len(d.shapeAt(target)) {
			d.discard()
		}
		d.freeLocals(d.enclosingForIterLocals(target))
		d.branchTo(ilgen.Always, target)
		return nil

	case pybc.OpContinueLoop:
		d.freeLocals(d.enclosingForIterLocals(oparg))
		d.branchTo(ilgen.Always, oparg)
		return nil

	case pybc.OpBuildList, pybc.OpBuildTuple, pybc.OpBuildSet:
		return d.emitBuildContainer(in, oparg)

	case pybc.OpBuildMap:
		locals := d.consumeOperandsForce(pc, oparg*2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.BuildDict))
		d.pushResult(in, 1)
		return nil

	case pybc.OpBuildSlice:
		locals := d.consumeOperandsForce(pc, oparg, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.BuildSlice))
		d.pushResult(in, 1)
		return nil

	case pybc.OpListExtend:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.BuildList))
		d.pushResult(in, 1)
		return nil

	case pybc.OpDictMerge, pybc.OpDictUpdate:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.DictMerge))
		d.pushResult(in, 1)
		return nil

	case pybc.OpUnpackSequence:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.LdI4(int32(oparg))
		d.emitter.EmitCall(ilgen.Token(jitrt.UnpackSequence))
		d.pushResult(in, oparg)
		return nil

	case pybc.OpUnpackEx:
		locals := d.consumeOperandsForce(pc, 1, ilgen.KindObjectPointer)
		d.reload(locals)
		before := oparg & 0xFF
		after := (oparg >> 8) & 0xFF
		d.emitter.LdI4(int32(before))
		d.emitter.EmitCall(ilgen.Token(jitrt.UnpackEx))
		d.pushResult(in, before+after+1)
		return nil

	case pybc.OpCallFunction:
		locals := d.consumeOperandsForce(pc, oparg+1, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.CallFunction))
		d.pushResult(in, 1)
		return nil

	case pybc.OpMakeFunction:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.MakeFunction))
		d.pushResult(in, 1)
		return nil

	case pybc.OpImportName:
		locals := d.consumeOperandsForce(pc, 2, ilgen.KindObjectPointer)
		d.reload(locals)
		d.emitter.EmitCall(ilgen.Token(jitrt.Import))
		d.pushResult(in, 1)
		return nil

	case pybc.OpImportFrom:
		top := d.shadow[len(d.shadow)-1]
		l := d.emitter.DefineLocal(top.MachineKind)
		d.emitter.StLoc(l)
		d.emitter.LdLoc(l)
		d.emitter.LdLoc(d.nameLocal(oparg))
		d.emitter.EmitCall(ilgen.Token(jitrt.ImportFrom))
		d.pushResult(in, 1)
		return nil

	case pybc.OpExtendedArg:
		return nil

	default:
		return fmt.Errorf("%w: opcode %s has no driver emission rule", ErrUnsupportedOpcode, op)
	}
}
