package ilgen

import "github.com/corejit/pyjit/pybc"

// ErrBudgetExceeded is returned by Compile when emission runs past the
// caller-supplied budget. Re-exported from pybc so every package in the
// compile pipeline shares one sentinel.
var ErrBudgetExceeded = pybc.ErrBudgetExceeded
