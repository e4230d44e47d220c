package depgraph

import "github.com/corejit/pyjit/pybc"

// FixInstructions runs the initial escape decision (spec §4.3): for every
// instruction whose opcode is in the unboxing whitelist — excluding
// LOAD_FAST/STORE_FAST, which are deferred to the driver's shadow-stack
// handling — mark it escaped iff every inbound and every outbound edge's
// kind supports unboxing.
func (g *Graph) FixInstructions() {
	for i := range g.Instructions {
		in := &g.Instructions[i]
		if !pybc.SupportsUnboxing(in.Op) {
			continue
		}
		in.Escape = g.allEdgesUnboxable(in.Index)
	}
}

func (g *Graph) allEdgesUnboxable(pc int) bool {
	for _, e := range g.edgesTo(pc) {
		if !pybc.SupportsEscaping(e.Kind) {
			return false
		}
	}
	for _, e := range g.edgesFrom(pc) {
		if !pybc.SupportsEscaping(e.Kind) {
			return false
		}
	}
	return true
}

// DeoptimizeInstructions runs the refinement pass that reverses an escape
// decision made by FixInstructions under any of the three conditions in
// spec §4.3:
//
//   - the opcode table's stack effect disagrees with the observed edge
//     counts (malformed bytecode, handled conservatively by reverting);
//   - the instruction has zero inputs and its one outbound edge's consumer
//     does not itself escape (no benefit: the unboxed value would have to
//     be boxed again immediately);
//   - the symmetric case: one inbound edge and no outbound edges, where the
//     producer does not escape.
//
// When g.opts.AllowCascadingDeopt is false (the default), this runs exactly
// one pass, per the spec's baseline. When true, it repeats until no further
// instruction is deoptimized, which spec §9 permits "if it never increases
// the escape set" — this pass only ever clears Escape, never sets it, so
// the monotonicity condition holds trivially.
func (g *Graph) DeoptimizeInstructions() error {
	for {
		changed, err := g.deoptimizePass()
		if err != nil {
			return err
		}
		if !changed || !g.opts.AllowCascadingDeopt {
			return nil
		}
	}
}

func (g *Graph) deoptimizePass() (bool, error) {
	changed := false
	for i := range g.Instructions {
		in := &g.Instructions[i]
		if !in.Escape {
			continue
		}

		inbound := g.edgesTo(in.Index)
		outbound := g.edgesFrom(in.Index)

		pop, push, err := pybc.StackEffect(in.Op, in.Oparg)
		if err != nil {
			return false, err
		}
		if pop != len(inbound) || push != len(outbound) {
			in.Escape = false
			changed = true
			continue
		}

		if len(inbound) == 0 && len(outbound) == 1 {
			consumer, ok := g.instructionAt(outbound[0].To)
			if ok && !consumer.Escape {
				in.Escape = false
				changed = true
				continue
			}
		}

		if len(inbound) == 1 && len(outbound) == 0 {
			producer, ok := g.instructionAt(inbound[0].From)
			if ok && !producer.Escape {
				in.Escape = false
				changed = true
				continue
			}
		}
	}
	return changed, nil
}

// FixEdges paints every edge's Transition from its endpoints' final escape
// decisions, per the 2x2 table in spec §4.3. An edge whose From is a
// Producer* sentinel (no real instruction node, e.g. a LOAD_CONST or an
// incoming argument) is treated as non-escaping: constants and frame slots
// are always materialized boxed under the current LOAD_FAST/STORE_FAST
// deferral.
func (g *Graph) FixEdges() {
	for i := range g.Edges {
		e := &g.Edges[i]

		fromEscape := false
		if producer, ok := g.instructionAt(e.From); ok {
			fromEscape = producer.Escape
		}
		toEscape := false
		if consumer, ok := g.instructionAt(e.To); ok {
			toEscape = consumer.Escape
		}

		switch {
		case !fromEscape && !toEscape:
			e.Transition = NoEscape
		case !fromEscape && toEscape:
			e.Transition = Unbox
		case fromEscape && !toEscape:
			e.Transition = Box
		default:
			e.Transition = Unboxed
		}
	}
}
