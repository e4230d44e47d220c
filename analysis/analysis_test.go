package analysis

import (
	"testing"

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

func TestRunInfersReturnKind(t *testing.T) {
	code := addOneFunc()
	result, err := New().Run(code, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ReturnKind != pyvalue.KindAny {
		// a (Any, argument type unknown) + 1 (Integer) -> Any under our
		// promotion rules since 'a' isn't numeric-known.
		t.Fatalf("ReturnKind = %v, want Any", result.ReturnKind)
	}
}

func TestRunRecordsStateAtEveryPC(t *testing.T) {
	code := addOneFunc()
	result, err := New().Run(code, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, pc := range []int{0, 2, 4, 6} {
		if _, ok := result.GetStackInfo(pc); !ok {
			t.Fatalf("no state recorded at pc %d", pc)
		}
	}
}

func TestRunBudgetExceeded(t *testing.T) {
	code := addOneFunc()
	_, err := New().Run(code, Options{MaxSteps: 1})
	if err == nil {
		t.Fatalf("expected ErrBudgetExceeded with a 1-step budget")
	}
}

func TestCanSkipLastiUpdateAlwaysFalse(t *testing.T) {
	code := addOneFunc()
	result, err := New().Run(code, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CanSkipLastiUpdate(0) {
		t.Fatalf("CanSkipLastiUpdate must always be false")
	}
}

// branchingFunc builds an if/else that merges a constant-int path and a
// constant-float path into the same local, exercising POP_JUMP_IF_FALSE
// and the stack/local merge at the join point.
func branchingFunc() *pybc.Code {
	// 0: LOAD_FAST 0          (cond)
	// 2: POP_JUMP_IF_FALSE 8
	// 4: LOAD_CONST 0         (int)
	// 6: JUMP_FORWARD 2   -> 10
	// 8: LOAD_CONST 1         (float)
	// 10: RETURN_VALUE
	code := concat(
		inst(pybc.OpLoadFast, 0),
		inst(pybc.OpPopJumpIfFalse, 8),
		inst(pybc.OpLoadConst, 0),
		inst(pybc.OpJumpForward, 2),
		inst(pybc.OpLoadConst, 1),
		inst(pybc.OpReturnValue, 0),
	)
	return &pybc.Code{
		Name:         "g",
		Instructions: code,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger, pyvalue.KindFloat},
		LocalNames:   []string{"cond"},
		ArgCount:     1,
	}
}

func TestRunMergesBranchesAtJoinPoint(t *testing.T) {
	code := branchingFunc()
	result, err := New().Run(code, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ReturnKind != pyvalue.KindFloat {
		t.Fatalf("ReturnKind = %v, want Float (Integer promoted to Float on merge)", result.ReturnKind)
	}
	// pc 10 (RETURN_VALUE) is reached from both the int and float arms;
	// its recorded stack must reflect the merged kind.
	s, ok := result.GetStackInfo(10)
	if !ok {
		t.Fatalf("no state recorded at merge point pc 10")
	}
	if len(s.Stack) != 1 || s.Stack[0].Value.Kind() != pyvalue.KindFloat {
		t.Fatalf("merged stack at pc 10 = %+v, want single Float", s.Stack)
	}
}
