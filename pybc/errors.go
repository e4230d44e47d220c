package pybc

import "errors"

// The three compile-time error taxonomies from the error-handling design:
// malformed bytecode, unsupported opcodes (a special case of malformed),
// and the host-wide budget-exceeded signal shared with the analysis,
// depgraph, and driver packages.
var (
	ErrMalformedBytecode = errors.New("pyjit: malformed bytecode")
	ErrUnsupportedOpcode = errors.New("pyjit: unsupported opcode")
	ErrBudgetExceeded    = errors.New("pyjit: compile budget exceeded")
)
