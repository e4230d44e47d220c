package jitrt

import (
	"fmt"
	"sync"

	"github.com/corejit/pyjit/ilgen"
)

// Prototype describes one helper's calling convention, mirroring
// ilgen.Prototype but keyed by jitrt.Token.
type Prototype struct {
	Token      Token
	ParamKinds []ilgen.MachineKind
	Result     ilgen.MachineKind
}

type registered struct {
	proto Prototype
	addr  uintptr
}

// Registry holds the full set of runtime helpers available to compiled
// code. Per spec §5 ("initialised once under a one-shot barrier; all
// subsequent access is read-only"), it is built exactly once by Global and
// is safe for concurrent Lookup thereafter without further locking.
type Registry struct {
	once    sync.Once
	entries map[Token]registered
}

// global is the process-wide registry every jit.Compile call shares,
// matching spec §5's "one-shot barrier" phrasing: there is exactly one
// helper table per process, not one per compile.
var global = &Registry{}

// Global returns the process-wide Registry, initializing it on first use.
func Global() *Registry {
	global.once.Do(global.init)
	return global
}

// Register records token's prototype and native entry point. Registry's
// init calls it from within the sync.Once. Register does not check whether
// that initialisation has finished: a later call still writes the table,
// without any locking against concurrent Lookup calls.
func (r *Registry) Register(proto Prototype, addr uintptr) {
	if r.entries == nil {
		r.entries = make(map[Token]registered)
	}
	r.entries[proto.Token] = registered{proto: proto, addr: addr}
}

// Lookup returns token's prototype and address, or ok=false if no helper
// was ever registered for it.
func (r *Registry) Lookup(token Token) (Prototype, uintptr, bool) {
	e, ok := r.entries[token]
	if !ok {
		return Prototype{}, 0, false
	}
	return e.proto, e.addr, true
}

// Populate registers every helper in r with emitter e, converting
// jitrt.Token to ilgen.Token at the call boundary so the driver can
// subsequently EmitCall using either token type interchangeably by value.
func (r *Registry) Populate(e ilgen.Emitter) {
	for tok, entry := range r.entries {
		e.RegisterHelper(ilgen.Token(tok), ilgen.Prototype{
			Token:      ilgen.Token(tok),
			ParamKinds: entry.proto.ParamKinds,
			Result:     entry.proto.Result,
		}, entry.addr)
	}
}

func (r *Registry) init() {
	for tok, fn := range semantics {
		r.Register(prototypeFor(tok), fnAddr(fn))
	}
	if len(r.entries) != int(tokenCount) {
		panic(fmt.Sprintf("jitrt: registry initialised with %d helpers, want %d (a token was added to the enum without a semantics entry)",
			len(r.entries), tokenCount))
	}
}
