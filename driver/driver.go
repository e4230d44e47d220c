// Package driver implements the bytecode-to-IL driver (spec §4.5): the
// component that walks analysed bytecode in emission order and drives an
// ilgen.Emitter to produce a JITMethod, choosing boxed vs. unboxed operand
// representations from the instruction graph's escape decisions and
// maintaining the compile-time block stack and exception-handler state
// machine the interpreter itself maintains at run time.
package driver

import (
	"fmt"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/depgraph"
	"github.com/corejit/pyjit/ilgen"
	"github.com/corejit/pyjit/jitrt"
	"github.com/corejit/pyjit/pybc"
)

// pendingTail is a raise-and-free tail whose label has been allocated but
// whose body (spill locals already emitted at the raise site; only the
// branch to the handler/epilogue remains) is flushed once after the main
// per-pc emission loop, per spec §4.5's raise-and-free tail contract.
type pendingTail struct {
	label    ilgen.Label
	depth    int
	handler  *ExceptionHandler // nil means "no enclosing handler: branch to epilogue"
}

// Driver holds all per-compile state for one Emit run. A Driver is used
// exactly once; construct a fresh one per compile via New.
type Driver struct {
	emitter  ilgen.Emitter
	code     *pybc.Code
	result   *analysis.Result
	graph    *depgraph.Graph
	registry *jitrt.Registry

	labels    map[int]ilgen.Label
	reconcile map[int][]ilgen.Local
	shadow    []ShadowEntry

	pyLocals  []ilgen.Local
	constPool []ilgen.Local
	nameSlots map[int]ilgen.Local
	globals   ilgen.Local

	blocks []*BlockInfo

	epilogue    ilgen.Label
	epilogueSet bool

	pendingTails []pendingTail
}

// New constructs a Driver for one compile job.
func New(e ilgen.Emitter, code *pybc.Code, result *analysis.Result, graph *depgraph.Graph, registry *jitrt.Registry) *Driver {
	return &Driver{
		emitter:   e,
		code:      code,
		result:    result,
		graph:     graph,
		registry:  registry,
		labels:    make(map[int]ilgen.Label),
		reconcile: make(map[int][]ilgen.Local),
		nameSlots: make(map[int]ilgen.Local),
	}
}

// Emit walks code's decoded instructions in ascending pc order, driving
// the emitter through every reached opcode, and returns the compiled
// JITMethod. Any malformed-bytecode condition the analyser or graph
// construction did not already catch (branch to unreached offset,
// mismatched block nesting) is a compile-time fatal per spec §4.5's
// failure semantics.
func Emit(e ilgen.Emitter, code *pybc.Code, result *analysis.Result, graph *depgraph.Graph, registry *jitrt.Registry, jitInfo, backend string, budget int) (*ilgen.JITMethod, error) {
	d := New(e, code, result, graph, registry)
	return d.run(jitInfo, backend, budget)
}

func (d *Driver) run(jitInfo, backend string, budget int) (*ilgen.JITMethod, error) {
	decoded, err := d.code.Instructions.Decode()
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: empty instruction stream", ErrMalformedBytecode)
	}

	d.pyLocals = make([]ilgen.Local, d.code.NumLocals())
	for i := range d.pyLocals {
		d.pyLocals[i] = d.emitter.DefineLocal(ilgen.KindObjectPointer)
	}

	// The constant pool and the globals object are supplied by the host at
	// call time (spec §3: pybc.Code.Constants only tracks each constant's
	// Kind, never its value); the driver just reserves one object-pointer
	// local per constant slot, analogous to d.pyLocals.
	d.constPool = make([]ilgen.Local, len(d.code.Constants))
	for i := range d.constPool {
		d.constPool[i] = d.emitter.DefineLocal(ilgen.KindObjectPointer)
	}
	d.globals = d.emitter.DefineLocal(ilgen.KindObjectPointer)

	for i, in := range decoded {
		if _, reached := d.result.GetStackInfo(in.Index); !reached {
			continue // dead code: analysis never reached it, nothing to emit
		}

		// Mirror analysis/preprocess.go's auto-close of any loop block
		// whose lexical extent ends exactly at this pc (a FOR_ITER block
		// with no explicit POP_BLOCK).
		for len(d.blocks) > 0 && d.blocks[len(d.blocks)-1].Kind == BlockLoop && d.blocks[len(d.blocks)-1].ExitPC == in.Index {
			d.blocks = d.blocks[:len(d.blocks)-1]
		}

		if err := d.reconcileEntry(in.Index); err != nil {
			return nil, err
		}

		if err := d.emitOne(in, i, decoded); err != nil {
			return nil, err
		}
	}

	if err := d.flushPendingTails(); err != nil {
		return nil, err
	}

	return d.emitter.Compile(jitInfo, backend, budget)
}

// labelFor returns pc's label, allocating one on first request. Every jump
// target and every block handler entry goes through this so forward
// branches can reference a label before the driver has textually reached
// it.
func (d *Driver) labelFor(pc int) ilgen.Label {
	if l, ok := d.labels[pc]; ok {
		return l
	}
	l := d.emitter.DefineLabel()
	d.labels[pc] = l
	return l
}

// reconcileEntry marks pc's label (if it is a jump target) and, for a jump
// target, reloads the shadow stack from its reconcile locals so every
// predecessor's representation is unified at the merge point, per spec
// §4.5 step 2.
func (d *Driver) reconcileEntry(pc int) error {
	if !d.result.JumpTargets[pc] {
		return nil
	}
	d.emitter.MarkLabel(d.labelFor(pc))
	shape := d.shapeAt(pc)
	if _, ok := d.reconcile[pc]; !ok {
		// No predecessor has spilled yet (pc is reached purely by
		// fallthrough the first time the worklist walks it in analysis,
		// but some other predecessor branches to it later in program
		// order): allocate the locals now so the branch site can target
		// them, and treat the live shadow (already correct, since we
		// arrived by fallthrough) as authoritative.
		d.reconcileLocalsFor(pc, shape)
		d.shadow = append([]ShadowEntry(nil), shape...)
		return nil
	}
	d.reloadShadowFrom(pc, shape)
	return nil
}

// branchTo spills the current shadow stack into target's reconcile locals
// (so the predecessor matches whatever shape other predecessors already
// established or will establish) and emits the branch itself.
func (d *Driver) branchTo(kind ilgen.BranchKind, target int) {
	d.spillShadowTo(target)
	d.emitter.Branch(kind, d.labelFor(target))
}

// raiseTailFor returns the memoized raise-and-free tail label for h at the
// given shadow-stack depth, allocating one the first time this (handler,
// depth) pair is requested, per spec glossary "one tail per depth per
// handler". h may be nil, meaning "no enclosing handler" — the tail
// branches to the function epilogue instead.
func (d *Driver) raiseTailFor(h *ExceptionHandler, depth int) ilgen.Label {
	if h != nil {
		if l, ok := h.tails[depth]; ok {
			return l
		}
	}
	l := d.emitter.DefineLabel()
	if h != nil {
		h.tails[depth] = l
	}
	d.pendingTails = append(d.pendingTails, pendingTail{label: l, depth: depth, handler: h})
	return l
}

// epilogueLabel returns the function's single epilogue label (the target
// of an unhandled raise), allocating it on first use.
func (d *Driver) epilogueLabel() ilgen.Label {
	if !d.epilogueSet {
		d.epilogue = d.emitter.DefineLabel()
		d.epilogueSet = true
	}
	return d.epilogue
}

// raiseAndFree spills the live shadow stack (freeing each entry, per spec
// §4.5 "spill the live shadow stack into numbered locals") and branches
// into the current handler's raise-and-free tail at this depth, or the
// function epilogue if no handler encloses the current pc.
func (d *Driver) raiseAndFree() {
	depth := len(d.shadow)
	h := d.currentHandler()
	tail := d.raiseTailFor(h, depth)
	d.spillShadowForRaise(depth)
	d.emitter.Branch(ilgen.Always, tail)
}

// spillShadowForRaise spills every live shadow entry into freshly defined
// locals so the raise-and-free tail (emitted once, after the main loop)
// can release them in order; depth is recorded only for the tail's own
// bookkeeping; the locals themselves are discarded once spilled since a
// raise never resumes normal control flow from the spill site.
func (d *Driver) spillShadowForRaise(depth int) {
	for i := len(d.shadow) - 1; i >= 0; i-- {
		l := d.emitter.DefineLocal(d.shadow[i].MachineKind)
		d.emitter.StLoc(l)
	}
	d.shadow = d.shadow[:0]
	_ = depth
}

// flushPendingTails emits each raise-and-free tail's body: mark its label,
// then branch to its handler's entry (or the epilogue if h is nil),
// per spec §4.5's raise-and-free tail contract.
func (d *Driver) flushPendingTails() error {
	for _, t := range d.pendingTails {
		d.emitter.MarkLabel(t.label)
		if t.handler == nil {
			d.emitter.Branch(ilgen.Always, d.epilogueLabel())
			continue
		}
		d.emitter.Branch(ilgen.Always, d.labelFor(t.handler.EntryPC))
	}
	if d.epilogueSet {
		d.emitter.MarkLabel(d.epilogue)
		d.emitter.Ret()
	}
	return nil
}
