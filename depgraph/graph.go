// Package depgraph builds the instruction dependency graph that drives the
// box/unbox escape decisions described in spec §4.3: which producer/consumer
// pairs can communicate through a native, unboxed representation instead of
// a fully materialized object.
package depgraph

import (
	"fmt"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pysource"
	"github.com/corejit/pyjit/pyvalue"
)

// BoxTransition is the boxing conversion an edge requires once both its
// endpoints' escape decisions are final.
type BoxTransition int

const (
	// NoEscape: neither endpoint escapes. The value stays boxed end to end.
	NoEscape BoxTransition = iota
	// Unbox: the producer is boxed but the consumer escapes, so the driver
	// must unbox the value before handing it to the consumer.
	Unbox
	// Box: the producer escapes but the consumer is boxed, so the driver
	// must box the value before handing it to the consumer.
	Box
	// Unboxed: both endpoints escape; the value flows through in its native
	// representation with no conversion.
	Unboxed
)

func (t BoxTransition) String() string {
	switch t {
	case NoEscape:
		return "NoEscape"
	case Unbox:
		return "Unbox"
	case Box:
		return "Box"
	case Unboxed:
		return "Unboxed"
	default:
		return fmt.Sprintf("BoxTransition<%d>", int(t))
	}
}

// Edge is one producer/consumer relationship between two instructions,
// mediated by a single pysource.Source.
type Edge struct {
	From       int // producer's pc, or a pysource.Producer* sentinel
	To         int // consumer's pc
	Position   int // stack position at which To consumes the value
	Kind       pyvalue.Kind
	Source     pysource.Source
	Transition BoxTransition
}

// Options parameterizes graph construction.
type Options struct {
	// AllowCascadingDeopt permits deoptimizeInstructions to run to a fixed
	// point instead of a single pass, per spec §9's open question: a
	// fixed-point variant is allowed "if it never increases the escape
	// set." Default false matches the spec's single-pass baseline.
	AllowCascadingDeopt bool
}

// Graph is the full instruction dependency graph for one compiled function.
type Graph struct {
	Instructions []pybc.Instruction
	Edges        []Edge

	arena *pysource.Arena
	byPC  map[int]int // pc -> index into Instructions
	opts  Options
}

// Build walks code's decoded instructions front to back and constructs the
// raw graph (spec §4.3 para 1): every instruction gets a node, and every
// stack element consumed at pc that carries tracked provenance gets an
// edge from its producer to pc.
func Build(code *pybc.Code, result *analysis.Result, opts Options) (*Graph, error) {
	decoded, err := code.Instructions.Decode()
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Instructions: make([]pybc.Instruction, len(decoded)),
		arena:        result.Arena,
		byPC:         make(map[int]int, len(decoded)),
		opts:         opts,
	}
	copy(g.Instructions, decoded)
	for i, in := range g.Instructions {
		g.byPC[in.Index] = i
	}

	for _, in := range decoded {
		s, ok := result.GetStackInfo(in.Index)
		if !ok {
			// pc was never reached by the analysis (dead code); it still
			// gets a node but contributes no edges.
			continue
		}
		for _, vws := range s.Stack {
			if vws.Source == pysource.None {
				continue
			}
			pos, consumed := g.arena.ConsumedPosition(vws.Source, in.Index)
			if !consumed {
				continue
			}
			g.Edges = append(g.Edges, Edge{
				From:     g.arena.Producer(vws.Source),
				To:       in.Index,
				Position: pos,
				Kind:     vws.Value.Kind(),
				Source:   vws.Source,
			})
		}
	}

	return g, nil
}

// instructionAt returns the instruction at pc and whether pc is in range.
func (g *Graph) instructionAt(pc int) (*pybc.Instruction, bool) {
	i, ok := g.byPC[pc]
	if !ok {
		return nil, false
	}
	return &g.Instructions[i], true
}

func (g *Graph) edgesFrom(pc int) []*Edge {
	var out []*Edge
	for i := range g.Edges {
		if g.Edges[i].From == pc {
			out = append(out, &g.Edges[i])
		}
	}
	return out
}

// Escapes reports whether the instruction at pc was decided to escape
// (produce/consume an unboxed value) after FixInstructions and
// DeoptimizeInstructions have both run. An unreached pc never escapes.
func (g *Graph) Escapes(pc int) bool {
	in, ok := g.instructionAt(pc)
	return ok && in.Escape
}

// EdgeTo returns the edge landing on consumer at the given stack position,
// if one was recorded.
func (g *Graph) EdgeTo(consumer, position int) (Edge, bool) {
	for _, e := range g.edgesTo(consumer) {
		if e.Position == position {
			return *e, true
		}
	}
	return Edge{}, false
}

func (g *Graph) edgesTo(pc int) []*Edge {
	var out []*Edge
	for i := range g.Edges {
		if g.Edges[i].To == pc {
			out = append(out, &g.Edges[i])
		}
	}
	return out
}
