package analysis

import "github.com/corejit/pyjit/pybc"

// Re-exported so callers can errors.Is against a single set of sentinels
// without importing pybc directly.
var (
	ErrMalformedBytecode = pybc.ErrMalformedBytecode
	ErrUnsupportedOpcode = pybc.ErrUnsupportedOpcode
	ErrBudgetExceeded    = pybc.ErrBudgetExceeded
)
