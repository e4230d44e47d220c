// Package analysis implements the abstract interpreter: a forward
// fixed-point dataflow analysis over decoded bytecode that infers
// per-opcode stack and local kinds and precomputes the block/handler
// structure the driver needs.
package analysis

import (
	"fmt"

	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
	"github.com/corejit/pyjit/state"
)

// Options parameterizes one analysis run.
type Options struct {
	// MaxSteps bounds the total number of opcode simulations performed
	// before the run aborts with ErrBudgetExceeded. Zero means unbounded.
	MaxSteps int
}

// Result is everything the analyser produces, consumed by depgraph and
// driver.
type Result struct {
	States       map[int]*state.State
	BlockStarts  map[int]int
	BreakTargets map[int]int
	JumpTargets  map[int]bool
	ReturnKind   pyvalue.Kind

	Arena *pysource.Arena

	instrByPC    map[int]pybc.Instruction
	resultSource map[int]pysource.Source
	order        []int // pcs in the order their state was first recorded
}

// GetStackInfo returns the state recorded before pc runs, if pc was
// reached.
func (r *Result) GetStackInfo(pc int) (*state.State, bool) {
	s, ok := r.States[pc]
	return s, ok
}

// GetLocalInfo returns local slot i's info in the state before pc runs.
func (r *Result) GetLocalInfo(pc, i int) (state.LocalInfo, bool) {
	s, ok := r.States[pc]
	if !ok || i < 0 || i >= s.Locals.Len() {
		return state.LocalInfo{}, false
	}
	return s.Locals.At(i), true
}

// ShouldBox reports whether the value produced at pc must be materialized
// in boxed form: true unless every recorded consumer of that value
// supports unboxed input (spec §4.2). An unconsumed or untracked result
// defaults to true (conservatively boxed).
func (r *Result) ShouldBox(pc int) bool {
	src, ok := r.resultSource[pc]
	if !ok {
		return true
	}
	consumers := r.Arena.Consumers(src)
	if len(consumers) == 0 {
		return true
	}
	for consumerPC := range consumers {
		in, ok := r.instrByPC[consumerPC]
		if !ok || !pybc.SupportsUnboxing(in.Op) {
			return true
		}
	}
	return false
}

// CanSkipLastiUpdate reports whether the opcode at pc can skip updating
// the frame's last-instruction marker before executing. Per spec §9's
// open question, the safest and only implemented answer is "no": which
// helpers the host inspects lasti from is not knowable here, so this
// always returns false.
func (r *Result) CanSkipLastiUpdate(_ int) bool {
	return false
}

// Order returns the pcs whose state was recorded, in the order first
// recorded. That is the worklist's discovery order, which is not always
// ascending: both targets of a branch are recorded before the pcs that
// follow the first of them.
func (r *Result) Order() []int {
	return append([]int(nil), r.order...)
}

// Interpreter runs one analysis pass over one function's bytecode.
type Interpreter struct {
	arena        *pysource.Arena
	resultSource map[int]pysource.Source
}

// New returns a fresh Interpreter with its own source arena.
func New() *Interpreter {
	return &Interpreter{
		arena:        pysource.NewArena(),
		resultSource: make(map[int]pysource.Source),
	}
}

// successor is one outgoing control-flow edge from a branch point: the
// target pc and the state to propagate into it.
type successor struct {
	pc int
	s  *state.State
}

// Run performs the fixed-point analysis described in spec §4.2 over code.
func (in *Interpreter) Run(code *pybc.Code, opts Options) (*Result, error) {
	decoded, err := code.Instructions.Decode()
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: empty instruction stream", ErrMalformedBytecode)
	}

	idxOf := make(map[int]int, len(decoded))
	instrByPC := make(map[int]pybc.Instruction, len(decoded))
	for i, d := range decoded {
		idxOf[d.Index] = i
		instrByPC[d.Index] = d
	}

	pre, err := preprocess(decoded)
	if err != nil {
		return nil, err
	}

	result := &Result{
		States:       make(map[int]*state.State),
		BlockStarts:  pre.blockStarts,
		BreakTargets: pre.breakTargets,
		JumpTargets:  pre.jumpTargets,
		ReturnKind:   pyvalue.KindUndefined,
		Arena:        in.arena,
		instrByPC:    instrByPC,
		resultSource: in.resultSource,
	}

	entry := state.New(code.NumLocals())
	for i := 0; i < code.ArgCount; i++ {
		src := in.arena.New(pysource.ProducerFrame, int(pyvalue.KindAny))
		li, err := state.NewLocalInfo(state.ValueWithSource{Value: pyvalue.Any, Source: src}, false)
		if err != nil {
			return nil, err
		}
		entry.Locals = entry.Locals.Set(i, li)
	}

	result.States[decoded[0].Index] = entry
	result.order = append(result.order, decoded[0].Index)
	worklist := []int{decoded[0].Index}

	steps := 0
	for len(worklist) > 0 {
		pc := worklist[0]
		worklist = worklist[1:]

		s := result.States[pc].Clone()
		idx, ok := idxOf[pc]
		if !ok {
			return nil, fmt.Errorf("%w: branch to unreached offset %d", ErrMalformedBytecode, pc)
		}

		for {
			steps++
			if opts.MaxSteps > 0 && steps > opts.MaxSteps {
				return nil, fmt.Errorf("%w: exceeded %d simulated opcodes", ErrBudgetExceeded, opts.MaxSteps)
			}

			cur := decoded[idx]

			successors, terminal, err := in.step(cur, s, code, result, pre, decoded, idx)
			if err != nil {
				return nil, err
			}

			pure := !terminal && len(successors) == 1 && successors[0].pc == nextPC(cur)
			fallthroughChanged := false
			for _, succ := range successors {
				changed, err := in.updateStartState(result, succ.pc, succ.s)
				if err != nil {
					return nil, err
				}
				if pure {
					fallthroughChanged = changed
				} else if changed {
					worklist = append(worklist, succ.pc)
				}
			}

			if !pure || !fallthroughChanged {
				break
			}

			// pure fallthrough: continue simulating in this same run
			// from a copy of the recorded successor state, without
			// re-entering the worklist.
			s = result.States[successors[0].pc].Clone()
			idx++
			if idx >= len(decoded) {
				return nil, fmt.Errorf("%w: fell off the end of the bytecode", ErrMalformedBytecode)
			}
		}
	}

	return result, nil
}

// updateStartState merges s into the existing recorded state at pc (or
// records it fresh if pc hasn't been reached yet), returning whether the
// recorded state changed and therefore whether pc must be (re)enqueued.
func (in *Interpreter) updateStartState(result *Result, pc int, s *state.State) (bool, error) {
	existing, ok := result.States[pc]
	if !ok {
		result.States[pc] = s.Clone()
		result.order = append(result.order, pc)
		return true, nil
	}
	merged, err := state.Merge(existing, s, in.arena)
	if err != nil {
		return false, fmt.Errorf("%w (at offset %d): %v", ErrMalformedBytecode, pc, err)
	}
	if state.Equal(merged, existing) {
		return false, nil
	}
	result.States[pc] = merged
	return true, nil
}
