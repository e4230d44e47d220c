package driver

import "github.com/corejit/pyjit/ilgen"

// BlockKind distinguishes the two compile-time block-stack entries the
// driver mirrors from the analyser's preprocessing pass (spec §3's
// BlockInfo row): a protected try/except/finally region, or a for-loop.
type BlockKind int

const (
	BlockTry BlockKind = iota
	BlockLoop
)

// BlockInfo is one entry of the driver's compile-time block stack,
// mirroring the interpreter's own block stack at compile time (spec §4.5
// "Block-stack discipline").
type BlockInfo struct {
	Kind    BlockKind
	Handler *ExceptionHandler // non-nil only for BlockTry
	ExitPC  int               // the offset this block's SETUP_*/FOR_ITER targets on exit

	// ForIterLocals holds the locals BREAK_LOOP/CONTINUE_LOOP must free
	// (per spec §4.5, "free all for-iter locals from the current loop
	// outward") before branching out of or around this loop. Non-nil only
	// for BlockLoop.
	ForIterLocals []ilgen.Local
}

// HandlerState is one ExceptionHandler's position in the state machine
// spec §4.5 describes: Inactive -> TryBody -> InHandler -> PostHandler.
type HandlerState int

const (
	Inactive HandlerState = iota
	TryBody
	InHandler
	PostHandler
)

func (s HandlerState) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case TryBody:
		return "TryBody"
	case InHandler:
		return "InHandler"
	case PostHandler:
		return "PostHandler"
	default:
		return "HandlerState<?>"
	}
}

// ExceptionHandler is one SETUP_FINALLY/SETUP_EXCEPT's compiled
// representation: its entry label plus a memoized raise-and-free tail per
// spill depth (spec glossary: "one tail per depth per handler" — a raise
// at shadow-stack depth 3 and one at depth 1 need different numbers of
// StLoc spills before the branch, so each depth gets its own tail label).
type ExceptionHandler struct {
	EntryPC int
	State   HandlerState

	tails map[int]ilgen.Label // depth -> raise-and-free tail label
}

func newExceptionHandler(entryPC int) *ExceptionHandler {
	return &ExceptionHandler{
		EntryPC: entryPC,
		State:   TryBody,
		tails:   make(map[int]ilgen.Label),
	}
}

// currentHandler returns the innermost open try block's handler, or nil
// if pc is not currently inside any protected region.
func (d *Driver) currentHandler() *ExceptionHandler {
	for i := len(d.blocks) - 1; i >= 0; i-- {
		if d.blocks[i].Kind == BlockTry {
			return d.blocks[i].Handler
		}
	}
	return nil
}

// enclosingForIterLocals collects, from innermost to outermost loop block,
// the for-iter locals BREAK_LOOP/CONTINUE_LOOP must free before reaching
// target, stopping at the block whose ExitPC == target (spec §4.5).
func (d *Driver) enclosingForIterLocals(target int) []ilgen.Local {
	var out []ilgen.Local
	for i := len(d.blocks) - 1; i >= 0; i-- {
		b := d.blocks[i]
		if b.Kind == BlockLoop {
			if b.ExitPC == target {
				break
			}
			out = append(out, b.ForIterLocals...)
		}
	}
	return out
}
