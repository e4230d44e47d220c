package driver

import (
	"github.com/corejit/pyjit/ilgen"
	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
)

// StackKind classifies one shadow-stack slot for the driver's own
// bookkeeping: whether it holds a refcounted object pointer or a
// machine-typed value, per spec §4.5 step 5.
type StackKind int

const (
	StackKindObject StackKind = iota
	StackKindValue
)

// ShadowEntry mirrors one slot of the analyser's abstract stack as the
// driver emits IL for it: its machine representation and, for reconciling
// merge points, the MachineKind used when it must be spilled to a local.
type ShadowEntry struct {
	Kind        StackKind
	MachineKind ilgen.MachineKind
}

func machineKindFor(k pyvalue.Kind) ilgen.MachineKind {
	switch k {
	case pyvalue.KindInteger:
		return ilgen.KindInt64
	case pyvalue.KindFloat:
		return ilgen.KindDouble
	case pyvalue.KindBool:
		return ilgen.KindInt32
	default:
		return ilgen.KindObjectPointer
	}
}

func shadowEntryFor(k pyvalue.Kind, escaped bool) ShadowEntry {
	if escaped && pybc.SupportsEscaping(k) {
		return ShadowEntry{Kind: StackKindValue, MachineKind: machineKindFor(k)}
	}
	return ShadowEntry{Kind: StackKindObject, MachineKind: ilgen.KindObjectPointer}
}

// push/pop operate on the driver's live shadow stack, kept in lockstep
// with what has actually been emitted onto the IL stack so far.
func (d *Driver) push(e ShadowEntry) {
	d.shadow = append(d.shadow, e)
}

func (d *Driver) pop() ShadowEntry {
	e := d.shadow[len(d.shadow)-1]
	d.shadow = d.shadow[:len(d.shadow)-1]
	return e
}

func (d *Driver) popN(n int) []ShadowEntry {
	out := make([]ShadowEntry, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = d.pop()
	}
	return out
}

// reconcileLocalsFor returns the numbered locals used to spill/reload the
// shadow stack shape expected at pc, allocating them from shape the first
// time any predecessor (a fallthrough arrival or a jump) reaches pc. Every
// subsequent arrival reuses the same locals: spec §3's stack-depth-equal
// invariant guarantees every predecessor's shape matches.
func (d *Driver) reconcileLocalsFor(pc int, shape []ShadowEntry) []ilgen.Local {
	if locs, ok := d.reconcile[pc]; ok {
		return locs
	}
	locs := make([]ilgen.Local, len(shape))
	for i, e := range shape {
		locs[i] = d.emitter.DefineLocal(e.MachineKind)
	}
	d.reconcile[pc] = locs
	return locs
}

// spillShadowTo spills the driver's current shadow stack into pc's
// reconcile locals, top of stack into the last local, so a later reload
// restores the same order.
func (d *Driver) spillShadowTo(pc int) {
	locs := d.reconcileLocalsFor(pc, d.shadow)
	for i := len(d.shadow) - 1; i >= 0; i-- {
		d.emitter.StLoc(locs[i])
	}
}

// reloadShadowFrom reloads the shadow stack from pc's reconcile locals (if
// any were ever allocated) and sets d.shadow to match their recorded shape.
func (d *Driver) reloadShadowFrom(pc int, shape []ShadowEntry) {
	locs, ok := d.reconcile[pc]
	if !ok {
		return
	}
	for _, l := range locs {
		d.emitter.LdLoc(l)
	}
	d.shadow = append([]ShadowEntry(nil), shape...)
}

// nextPC returns the byte offset immediately after in, mirroring
// analysis's own nextPC (every instruction occupies 2 bytes in the folded
// stream).
func nextPC(in pybc.Instruction) int {
	return in.Index + 2
}

// shapeAt derives the expected shadow shape at pc from the analyser's
// recorded state and the instruction graph's escape decisions. The driver
// uses this both to reconcile merge points and, for a linear instruction's
// result, to read back the exact kind the analyser already computed for
// it rather than re-deriving the abstract-value arithmetic a second time.
func (d *Driver) shapeAt(pc int) []ShadowEntry {
	s, ok := d.result.GetStackInfo(pc)
	if !ok {
		return nil
	}
	shape := make([]ShadowEntry, len(s.Stack))
	for i, vws := range s.Stack {
		escaped := false
		if vws.Source != pysource.None && d.graph != nil {
			escaped = d.graph.Escapes(d.result.Arena.Producer(vws.Source))
		}
		shape[i] = shadowEntryFor(vws.Value.Kind(), escaped)
	}
	return shape
}
