package state

import "github.com/corejit/pyjit/pybc"

// errMalformed is an alias for the shared malformed-bytecode sentinel so
// callers can errors.Is against pybc.ErrMalformedBytecode regardless of
// which package surfaced it.
var errMalformed = pybc.ErrMalformedBytecode
