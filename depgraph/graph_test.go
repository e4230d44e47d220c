package depgraph

import (
	"testing"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pyvalue"
)

func inst(op pybc.Opcode, arg byte) []byte {
	return []byte{byte(op), arg}
}

func concat(chunks ...[]byte) pybc.Instructions {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// numericAddFunc builds `def f(): return 1 + 2`. BINARY_ADD's two constant
// operands and its own result are all Integer-kind, so it escapes; its
// consumer RETURN_VALUE is never in the unboxing whitelist and so never
// escapes, giving a Box transition on the way out.
func numericAddFunc() *pybc.Code {
	code := concat(
		inst(pybc.OpLoadConst, 0),
		inst(pybc.OpLoadConst, 1),
		inst(pybc.OpBinaryAdd, 0),
		inst(pybc.OpReturnValue, 0),
	)
	return &pybc.Code{
		Name:         "f",
		Instructions: code,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger, pyvalue.KindInteger},
		ArgCount:     0,
	}
}

func buildAndFix(t *testing.T, code *pybc.Code, opts Options) *Graph {
	t.Helper()
	result, err := analysis.New().Run(code, analysis.Options{})
	if err != nil {
		t.Fatalf("analysis.Run() error = %v", err)
	}
	g, err := Build(code, result, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g.FixInstructions()
	if err := g.DeoptimizeInstructions(); err != nil {
		t.Fatalf("DeoptimizeInstructions() error = %v", err)
	}
	g.FixEdges()
	return g
}

func TestBuildProducesOneEdgePerStackSlot(t *testing.T) {
	code := numericAddFunc()
	g := buildAndFix(t, code, Options{})
	if len(g.Edges) != 3 {
		t.Fatalf("len(Edges) = %d, want 3 (two into BINARY_ADD, one into RETURN_VALUE)", len(g.Edges))
	}
}

func TestNumericAddEscapesWithBoxOnExit(t *testing.T) {
	code := numericAddFunc()
	g := buildAndFix(t, code, Options{})

	addPC := 4 // LOAD_CONST, LOAD_CONST, BINARY_ADD at offset 4
	in, ok := g.instructionAt(addPC)
	if !ok {
		t.Fatalf("no instruction at pc %d", addPC)
	}
	if !in.Escape {
		t.Fatalf("BINARY_ADD on two Integer constants should escape")
	}

	for _, e := range g.edgesTo(addPC) {
		if e.Transition != Unbox {
			t.Fatalf("edge into escaped BINARY_ADD from boxed constant has transition %s, want Unbox", e.Transition)
		}
	}
	for _, e := range g.edgesFrom(addPC) {
		if e.Transition != Box {
			t.Fatalf("edge out of escaped BINARY_ADD into boxed RETURN_VALUE has transition %s, want Box", e.Transition)
		}
	}
}

// TestDeoptimizeRevertsOnStackEffectMismatch exercises deopt condition 1
// directly: an opcode whose declared stack effect disagrees with the
// number of edges actually recorded for it is reverted to boxed, since
// that disagreement means the bytecode (or an upstream bug) is malformed.
func TestDeoptimizeRevertsOnStackEffectMismatch(t *testing.T) {
	g := &Graph{
		Instructions: []pybc.Instruction{{Index: 0, Op: pybc.OpBinaryAdd, Escape: true}},
		Edges: []Edge{
			{From: -2, To: 0, Position: 0, Kind: pyvalue.KindInteger},
		},
		byPC: map[int]int{0: 0},
	}
	if err := g.DeoptimizeInstructions(); err != nil {
		t.Fatalf("DeoptimizeInstructions() error = %v", err)
	}
	if g.Instructions[0].Escape {
		t.Fatalf("BINARY_ADD with only one recorded inbound edge (pop=2 expected) must be deoptimized")
	}
}

// chainedMathFunc builds `def f(a): return (a + 1) * 2`, where BINARY_ADD's
// result feeds directly into BINARY_MULTIPLY (both whitelisted).
func chainedMathFunc() *pybc.Code {
	code := concat(
		inst(pybc.OpLoadFast, 0),
		inst(pybc.OpLoadConst, 0),
		inst(pybc.OpBinaryAdd, 0),
		inst(pybc.OpLoadConst, 1),
		inst(pybc.OpBinaryMultiply, 0),
		inst(pybc.OpReturnValue, 0),
	)
	return &pybc.Code{
		Name:         "f",
		Instructions: code,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger, pyvalue.KindInteger},
		LocalNames:   []string{"a"},
		ArgCount:     1,
	}
}

func TestAddWithAnyOperandDoesNotEscape(t *testing.T) {
	code := chainedMathFunc()
	g := buildAndFix(t, code, Options{})

	// LOAD_FAST produces an Any-kind value (argument kind is unknown), so
	// BINARY_ADD's inbound edges are not all unboxable and it cannot
	// escape regardless of its consumer.
	addPC := 4
	in, ok := g.instructionAt(addPC)
	if !ok {
		t.Fatalf("no instruction at pc %d", addPC)
	}
	if in.Escape {
		t.Fatalf("BINARY_ADD with an Any-kind operand must not escape")
	}
}
