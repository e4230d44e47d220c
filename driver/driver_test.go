package driver

import (
	"testing"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/depgraph"
	"github.com/corejit/pyjit/ilgen"
	"github.com/corejit/pyjit/ilgen/reftest"
	"github.com/corejit/pyjit/jitrt"
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

// compile runs the full pipeline (analysis -> depgraph -> driver) against
// a reftest backend, mirroring depgraph's own buildAndFix helper one layer
// further down the pipeline.
func compile(t *testing.T, code *pybc.Code) (*reftest.Emitter, *ilgen.JITMethod) {
	t.Helper()
	result, err := analysis.New().Run(code, analysis.Options{})
	if err != nil {
		t.Fatalf("analysis.Run() error = %v", err)
	}
	g, err := depgraph.Build(code, result, depgraph.Options{})
	if err != nil {
		t.Fatalf("depgraph.Build() error = %v", err)
	}
	g.FixInstructions()
	if err := g.DeoptimizeInstructions(); err != nil {
		t.Fatalf("DeoptimizeInstructions() error = %v", err)
	}
	g.FixEdges()

	e := reftest.New()
	jitrt.Global().Populate(e)
	m, err := Emit(e, code, result, g, jitrt.Global(), "test", "reftest", 0)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return e, m
}

// addOneFunc builds `def f(a): return a + 1`.
func addOneFunc() *pybc.Code {
	code := concat(
		inst(pybc.OpLoadFast, 0),
		inst(pybc.OpLoadConst, 0),
		inst(pybc.OpBinaryAdd, 0),
		inst(pybc.OpReturnValue, 0),
	)
	return &pybc.Code{
		Name:         "f",
		Instructions: code,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger},
		LocalNames:   []string{"a"},
		ArgCount:     1,
	}
}

func TestEmitStraightLineArithmeticCompiles(t *testing.T) {
	_, m := compile(t, addOneFunc())
	if m == nil {
		t.Fatalf("Emit() returned nil method")
	}
}

func TestEmitStraightLineArithmeticReturns(t *testing.T) {
	e, _ := compile(t, addOneFunc())
	found := false
	for _, op := range e.Trace {
		if op.Kind == "ret" {
			found = true
		}
	}
	if !found {
		t.Fatalf("trace has no ret op: %v", e.Trace)
	}
}

// cmpBranchFunc builds `def f(a): if a > 0: return 1; return 2` — one
// POP_JUMP_IF_FALSE with two arrivals at RETURN_VALUE, exercising
// reconcileEntry's merge-point spill/reload.
func cmpBranchFunc() *pybc.Code {
	code := concat(
		inst(pybc.OpLoadFast, 0), // 0
		inst(pybc.OpLoadConst, 0), // 2
		inst(pybc.OpCompareOp, 4), // 4: >
		inst(pybc.OpPopJumpIfFalse, 12), // 6, target 12
		inst(pybc.OpLoadConst, 1), // 8
		inst(pybc.OpReturnValue, 0), // 10
		inst(pybc.OpLoadConst, 2), // 12
		inst(pybc.OpReturnValue, 0), // 14
	)
	return &pybc.Code{
		Name:         "f",
		Instructions: code,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger, pyvalue.KindInteger, pyvalue.KindInteger},
		LocalNames:   []string{"a"},
		ArgCount:     1,
	}
}

func TestEmitConditionalBranchCompiles(t *testing.T) {
	_, m := compile(t, cmpBranchFunc())
	if m == nil {
		t.Fatalf("Emit() returned nil method")
	}
}

func TestEmitConditionalBranchEmitsTwoReturns(t *testing.T) {
	e, _ := compile(t, cmpBranchFunc())
	rets := 0
	for _, op := range e.Trace {
		if op.Kind == "ret" {
			rets++
		}
	}
	if rets != 2 {
		t.Fatalf("ret count = %d, want 2: %v", rets, e.Trace)
	}
}

// forLoopFunc builds `def f(xs):\n  for x in xs:\n    if x: break\n  return x`,
// exercising FOR_ITER's loop block, BREAK_LOOP's for-iter-local freeing,
// and the loop's auto-close on reaching its ExitPC.
func forLoopFunc() *pybc.Code {
	code := concat(
		inst(pybc.OpLoadFast, 0), // 0: xs
		inst(pybc.OpGetIter, 0),  // 2
		inst(pybc.OpForIter, 10), // 4, exit = 6+10=16
		inst(pybc.OpStoreFast, 1), // 6: x
		inst(pybc.OpLoadFast, 1), // 8
		inst(pybc.OpPopJumpIfFalse, 4), // 10, target 4 (loop back to FOR_ITER)
		inst(pybc.OpBreakLoop, 0), // 12
		inst(pybc.OpJumpAbsolute, 4), // 14, unreached past break but keeps stream well formed
		inst(pybc.OpLoadFast, 1), // 16
		inst(pybc.OpReturnValue, 0), // 18
	)
	return &pybc.Code{
		Name:         "f",
		Instructions: code,
		Constants:    []pyvalue.Kind{},
		LocalNames:   []string{"xs", "x"},
		ArgCount:     1,
	}
}

func TestEmitForLoopWithBreakCompiles(t *testing.T) {
	_, m := compile(t, forLoopFunc())
	if m == nil {
		t.Fatalf("Emit() returned nil method")
	}
}

// tryExceptFunc builds a minimal try/except: SETUP_EXCEPT, a body that may
// raise, POP_BLOCK, jump past the handler, then the handler body itself,
// exercising the block stack's handler-entry path and raise-and-free tail
// generation via RAISE_VARARGS inside the protected region.
func tryExceptFunc() *pybc.Code {
	code := concat(
		inst(pybc.OpSetupExcept, 10), // 0: handler at 10
		inst(pybc.OpLoadConst, 0),    // 2
		inst(pybc.OpRaiseVarargs, 1), // 4
		inst(pybc.OpPopBlock, 0),     // 6
		inst(pybc.OpJumpForward, 2),  // 8, jump to 12
		inst(pybc.OpPopExcept, 0),    // 10: handler entry (POP_EXCEPT expects 3, see note below)
		inst(pybc.OpLoadConst, 1),    // 12
		inst(pybc.OpReturnValue, 0),  // 14
	)
	return &pybc.Code{
		Name:         "f",
		Instructions: code,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger, pyvalue.KindInteger},
		ArgCount:     0,
	}
}

func TestEmitTryExceptCompiles(t *testing.T) {
	// Handler entry always arrives with the exception triple pushed
	// (analysis/control.go's enterHandler), so POP_EXCEPT's 3-operand pop
	// here is representative, not a simplification.
	_, m := compile(t, tryExceptFunc())
	if m == nil {
		t.Fatalf("Emit() returned nil method")
	}
}
