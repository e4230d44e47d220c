package jit

import (
	"errors"
	"testing"

	"github.com/corejit/pyjit/ilgen/reftest"
	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pyvalue"
)

// addOneFunc builds `def f(a): return a + 1`, mirroring driver's own
// fixture one layer down the stack.
func addOneFunc() *pybc.Code {
	raw := []byte{
		byte(pybc.OpLoadFast), 0,
		byte(pybc.OpLoadConst), 0,
		byte(pybc.OpBinaryAdd), 0,
		byte(pybc.OpReturnValue), 0,
	}
	return &pybc.Code{
		Name:         "f",
		Instructions: raw,
		Constants:    []pyvalue.Kind{pyvalue.KindInteger},
		LocalNames:   []string{"a"},
		ArgCount:     1,
	}
}

func TestCompileProducesMethod(t *testing.T) {
	e := reftest.New()
	m, err := Compile(e, addOneFunc(), Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if m == nil {
		t.Fatalf("Compile() returned nil method")
	}
}

func TestCompileBudgetExceededIsSentinel(t *testing.T) {
	e := reftest.New()
	_, err := Compile(e, addOneFunc(), Options{Budget: 1})
	if !errors.Is(err, pybc.ErrBudgetExceeded) {
		t.Fatalf("Compile() error = %v, want ErrBudgetExceeded", err)
	}
}

func TestCompileDoesNotMutateInput(t *testing.T) {
	code := addOneFunc()
	before := append(pybc.Instructions(nil), code.Instructions...)
	e := reftest.New()
	if _, err := Compile(e, code, Options{}); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if string(code.Instructions) != string(before) {
		t.Fatalf("Compile mutated code.Instructions")
	}
}
