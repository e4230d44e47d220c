package driver

import "github.com/corejit/pyjit/pybc"

// Re-exported so callers can errors.Is against one set of sentinels without
// importing pybc directly. Spec §7: malformed bytecode, unresolved
// branches, and mismatched block nesting are all compile-time fatal.
var (
	ErrMalformedBytecode = pybc.ErrMalformedBytecode
	ErrUnsupportedOpcode = pybc.ErrUnsupportedOpcode
	ErrBudgetExceeded    = pybc.ErrBudgetExceeded
)
