package pybc

import "github.com/corejit/pyjit/pyvalue"

// Code is the host interpreter's code object, reduced to the fields the
// core actually consumes: the bytecode stream, the constant pool, local
// variable names (argument locals first), and the declared argument
// count. The embedding layer owns the real code object; this is the view
// Compile needs (spec §6: "bytecode bytes, constants, local names,
// argument count, flags").
type Code struct {
	Name         string
	Instructions Instructions
	Constants    []pyvalue.Kind
	LocalNames   []string
	ArgCount     int
	Flags        CodeFlags
}

// CodeFlags mirrors the handful of code-object flags the analyser cares
// about (notably whether the function itself is a generator, which
// changes how RETURN_VALUE and exception propagation behave — out of
// scope for this core, but the field is threaded through so an embedding
// layer can gate JIT eligibility on it).
type CodeFlags uint32

const (
	FlagGenerator CodeFlags = 1 << iota
	FlagVarargs
	FlagVarKeywords
)

// NumLocals returns the number of local variable slots, matching
// len(LocalNames).
func (c *Code) NumLocals() int { return len(c.LocalNames) }
