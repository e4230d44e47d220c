// Package reftest is an in-process reference implementation of
// ilgen.Emitter. It is not a real native backend — spec §1 treats code
// generation as an external component — it exists purely so driver tests
// and the spec §8 IL-emitter microtests can run against something that
// records exactly what was emitted, without a JIT backend.
package reftest

import (
	"fmt"

	"github.com/corejit/pyjit/ilgen"
)

// Op is one recorded emission event. Fields not relevant to a given Kind
// are left at their zero value.
type Op struct {
	Kind   string
	Label  ilgen.Label
	Local  ilgen.Local
	Token  ilgen.Token
	Branch ilgen.BranchKind
	IntArg int64
	FltArg float64
}

func (o Op) String() string {
	switch o.Kind {
	case "label", "mark_label", "ld_loc", "st_loc":
		return fmt.Sprintf("%s l%d", o.Kind, o.Local)
	case "branch":
		return fmt.Sprintf("branch %s -> L%d", o.Branch, o.Label)
	case "ld_i4", "ld_u4", "ld_i8":
		return fmt.Sprintf("%s %d", o.Kind, o.IntArg)
	case "ld_r8":
		return fmt.Sprintf("%s %f", o.Kind, o.FltArg)
	case "call":
		return fmt.Sprintf("call token=%d", o.Token)
	default:
		return o.Kind
	}
}

// Emitter is a fully in-memory Emitter: every call appends to Trace, labels
// and locals are just counters, and Compile synthesizes a JITMethod whose
// Address is always 0 (there is no real code to point at).
type Emitter struct {
	Trace  []Op
	labels int
	locals int

	helpers map[ilgen.Token]helper
	calls   []ilgen.CallSite
}

type helper struct {
	proto ilgen.Prototype
	addr  uintptr
}

// New returns an empty reference Emitter.
func New() *Emitter {
	return &Emitter{helpers: make(map[ilgen.Token]helper)}
}

func (e *Emitter) DefineLabel() ilgen.Label {
	l := ilgen.Label(e.labels)
	e.labels++
	e.Trace = append(e.Trace, Op{Kind: "define_label", Label: l})
	return l
}

func (e *Emitter) MarkLabel(l ilgen.Label) {
	e.Trace = append(e.Trace, Op{Kind: "mark_label", Label: l})
}

func (e *Emitter) DefineLocal(kind ilgen.MachineKind) ilgen.Local {
	l := ilgen.Local(e.locals)
	e.locals++
	e.Trace = append(e.Trace, Op{Kind: "define_local:" + kind.String(), Local: l})
	return l
}

func (e *Emitter) LdI4(v int32)   { e.Trace = append(e.Trace, Op{Kind: "ld_i4", IntArg: int64(v)}) }
func (e *Emitter) LdU4(v uint32)  { e.Trace = append(e.Trace, Op{Kind: "ld_u4", IntArg: int64(v)}) }
func (e *Emitter) LdI8(v int64)   { e.Trace = append(e.Trace, Op{Kind: "ld_i8", IntArg: v}) }
func (e *Emitter) LdR8(v float64) { e.Trace = append(e.Trace, Op{Kind: "ld_r8", FltArg: v}) }

func (e *Emitter) LdLoc(l ilgen.Local) { e.Trace = append(e.Trace, Op{Kind: "ld_loc", Local: l}) }
func (e *Emitter) StLoc(l ilgen.Local) { e.Trace = append(e.Trace, Op{Kind: "st_loc", Local: l}) }

func (e *Emitter) Branch(kind ilgen.BranchKind, target ilgen.Label) {
	e.Trace = append(e.Trace, Op{Kind: "branch", Branch: kind, Label: target})
}

func (e *Emitter) RegisterHelper(token ilgen.Token, proto ilgen.Prototype, addr uintptr) {
	e.helpers[token] = helper{proto: proto, addr: addr}
}

func (e *Emitter) EmitCall(token ilgen.Token) {
	e.calls = append(e.calls, ilgen.CallSite{
		Token:        token,
		NativeOffset: len(e.calls),
		ILOffset:     len(e.Trace),
	})
	e.Trace = append(e.Trace, Op{Kind: "call", Token: token})
}

func (e *Emitter) Add()    { e.Trace = append(e.Trace, Op{Kind: "add"}) }
func (e *Emitter) Sub()    { e.Trace = append(e.Trace, Op{Kind: "sub"}) }
func (e *Emitter) Mul()    { e.Trace = append(e.Trace, Op{Kind: "mul"}) }
func (e *Emitter) Div()    { e.Trace = append(e.Trace, Op{Kind: "div"}) }
func (e *Emitter) Mod()    { e.Trace = append(e.Trace, Op{Kind: "mod"}) }
func (e *Emitter) Neg()    { e.Trace = append(e.Trace, Op{Kind: "neg"}) }
func (e *Emitter) And()    { e.Trace = append(e.Trace, Op{Kind: "and"}) }
func (e *Emitter) Or()     { e.Trace = append(e.Trace, Op{Kind: "or"}) }
func (e *Emitter) Xor()    { e.Trace = append(e.Trace, Op{Kind: "xor"}) }
func (e *Emitter) Not()    { e.Trace = append(e.Trace, Op{Kind: "not"}) }
func (e *Emitter) LShift() { e.Trace = append(e.Trace, Op{Kind: "lshift"}) }
func (e *Emitter) RShift() { e.Trace = append(e.Trace, Op{Kind: "rshift"}) }

func (e *Emitter) Ret() { e.Trace = append(e.Trace, Op{Kind: "ret"}) }

// Compile finalizes the trace. budget bounds the total recorded op count;
// exceeding it fails with ilgen.ErrBudgetExceeded rather than returning a
// method that silently dropped work.
func (e *Emitter) Compile(jitInfo, backend string, budget int) (*ilgen.JITMethod, error) {
	if budget > 0 && len(e.Trace) > budget {
		return nil, fmt.Errorf("%w: reftest backend %q recorded %d ops against a budget of %d for %q",
			ilgen.ErrBudgetExceeded, backend, len(e.Trace), budget, jitInfo)
	}
	return &ilgen.JITMethod{
		Address:       0,
		CallSiteTable: append([]ilgen.CallSite(nil), e.calls...),
		SymbolTable:   map[string]int{jitInfo: 0},
	}, nil
}

var _ ilgen.Emitter = (*Emitter)(nil)
