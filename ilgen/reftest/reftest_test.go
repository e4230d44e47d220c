package reftest

import (
	"errors"
	"testing"

	"github.com/corejit/pyjit/ilgen"
)

func TestLdI4ThenRetTrace(t *testing.T) {
	e := New()
	e.LdI4(42)
	e.Ret()

	want := []string{"ld_i4 42", "ret"}
	if len(e.Trace) != len(want) {
		t.Fatalf("Trace = %v, want %d ops", e.Trace, len(want))
	}
	for i, op := range e.Trace {
		if op.String() != want[i] {
			t.Fatalf("Trace[%d] = %q, want %q", i, op.String(), want[i])
		}
	}
}

func TestStoreThenLoadRoundTrips(t *testing.T) {
	e := New()
	l := e.DefineLocal(ilgen.KindInt64)
	e.LdI8(7)
	e.StLoc(l)
	e.LdLoc(l)
	e.Ret()

	var stores, loads int
	for _, op := range e.Trace {
		switch op.Kind {
		case "st_loc":
			stores++
			if op.Local != l {
				t.Fatalf("st_loc local = %d, want %d", op.Local, l)
			}
		case "ld_loc":
			loads++
			if op.Local != l {
				t.Fatalf("ld_loc local = %d, want %d", op.Local, l)
			}
		}
	}
	if stores != 1 || loads != 1 {
		t.Fatalf("stores=%d loads=%d, want 1 and 1", stores, loads)
	}
}

func TestBranchRecordsKindAndTarget(t *testing.T) {
	e := New()
	e.LdR8(1.0)
	l := e.DefineLabel()
	e.Branch(ilgen.IfTrue, l)
	e.MarkLabel(l)
	e.Ret()

	var found bool
	for _, op := range e.Trace {
		if op.Kind == "branch" {
			found = true
			if op.Branch != ilgen.IfTrue || op.Label != l {
				t.Fatalf("branch op = %+v, want kind=IfTrue label=%d", op, l)
			}
		}
	}
	if !found {
		t.Fatalf("no branch op recorded")
	}
}

func TestEmitCallRecordsCallSite(t *testing.T) {
	e := New()
	const trueDivToken ilgen.Token = 1
	e.RegisterHelper(trueDivToken, ilgen.Prototype{
		Token:      trueDivToken,
		ParamKinds: []ilgen.MachineKind{ilgen.KindDouble, ilgen.KindDouble},
		Result:     ilgen.KindDouble,
	}, 0xdeadbeef)

	e.LdR8(10)
	e.LdR8(5)
	e.EmitCall(trueDivToken)
	e.Ret()

	method, err := e.Compile("f", "reftest", 0)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(method.CallSiteTable) != 1 {
		t.Fatalf("CallSiteTable = %v, want 1 entry", method.CallSiteTable)
	}
	if method.CallSiteTable[0].Token != trueDivToken {
		t.Fatalf("CallSiteTable[0].Token = %d, want %d", method.CallSiteTable[0].Token, trueDivToken)
	}
}

func TestCompileFailsOverBudget(t *testing.T) {
	e := New()
	e.LdI4(1)
	e.LdI4(2)
	e.Add()
	e.Ret()

	_, err := e.Compile("f", "reftest", 2)
	if !errors.Is(err, ilgen.ErrBudgetExceeded) {
		t.Fatalf("Compile() error = %v, want ErrBudgetExceeded", err)
	}
}

func TestShiftOperandsOverTriplet(t *testing.T) {
	// Spec's IL-emitter microtests call for shift coverage over {1,4,64};
	// this only checks the emitter records one lshift/rshift pair per
	// operand without erroring, since reftest has no native execution.
	for _, v := range []int32{1, 4, 64} {
		e := New()
		e.LdI4(v)
		e.LdI4(1)
		e.LShift()
		e.LdI4(v)
		e.LdI4(1)
		e.RShift()
		e.Ret()

		var lshifts, rshifts int
		for _, op := range e.Trace {
			switch op.Kind {
			case "lshift":
				lshifts++
			case "rshift":
				rshifts++
			}
		}
		if lshifts != 1 || rshifts != 1 {
			t.Fatalf("operand %d: lshifts=%d rshifts=%d, want 1 and 1", v, lshifts, rshifts)
		}
	}
}

var _ ilgen.Emitter = (*Emitter)(nil)
