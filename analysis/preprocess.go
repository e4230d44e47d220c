package analysis

import "github.com/corejit/pyjit/pybc"

// blockInfo tracks one open lexical region during the preprocessing scan:
// a protected try body (isLoop=false) or a for-loop (isLoop=true), each
// closing once the scan reaches exitPC.
type blockInfo struct {
	startPC, exitPC int
	isLoop          bool
}

// preprocessed holds the bytecode-wide metadata the abstract interpreter
// computes once, up front, before the fixed-point pass: where each
// exception handler begins, where BREAK_LOOP jumps to, and which offsets
// are the target of some jump (spec §4.2 step 1).
type preprocessed struct {
	blockStarts  map[int]int // handler-entry offset -> its SETUP_* offset
	breakTargets map[int]int // BREAK_LOOP offset -> its loop's exit offset
	jumpTargets  map[int]bool
}

// preprocess performs the single preprocessing scan spec §4.2 step 1
// describes: record block starts for every SETUP_*, record break targets,
// and collect every jump target so the driver can allocate a label for it.
func preprocess(ins []pybc.Instruction) (*preprocessed, error) {
	p := &preprocessed{
		blockStarts:  make(map[int]int),
		breakTargets: make(map[int]int),
		jumpTargets:  make(map[int]bool),
	}

	var openBlocks []blockInfo

	for _, in := range ins {
		for len(openBlocks) > 0 && openBlocks[len(openBlocks)-1].exitPC == in.Index {
			openBlocks = openBlocks[:len(openBlocks)-1]
		}

		switch in.Op {
		case pybc.OpSetupFinally, pybc.OpSetupExcept:
			handlerPC := in.Oparg
			p.blockStarts[handlerPC] = in.Index
			p.jumpTargets[handlerPC] = true
			openBlocks = append(openBlocks, blockInfo{startPC: in.Index, exitPC: handlerPC, isLoop: false})

		case pybc.OpForIter:
			exitPC := nextPC(in) + in.Oparg
			p.jumpTargets[exitPC] = true
			openBlocks = append(openBlocks, blockInfo{startPC: in.Index, exitPC: exitPC, isLoop: true})

		case pybc.OpPopBlock:
			if len(openBlocks) > 0 {
				openBlocks = openBlocks[:len(openBlocks)-1]
			}

		case pybc.OpBreakLoop:
			for j := len(openBlocks) - 1; j >= 0; j-- {
				if openBlocks[j].isLoop {
					p.breakTargets[in.Index] = openBlocks[j].exitPC
					break
				}
			}

		case pybc.OpJumpForward:
			target := nextPC(in) + in.Oparg
			p.jumpTargets[target] = true

		case pybc.OpJumpAbsolute, pybc.OpPopJumpIfFalse, pybc.OpPopJumpIfTrue,
			pybc.OpJumpIfFalseOrPop, pybc.OpJumpIfTrueOrPop:
			p.jumpTargets[in.Oparg] = true
		}
	}

	return p, nil
}

// nextPC returns the byte offset immediately after in (every instruction
// occupies exactly 2 bytes in the folded stream; EXTENDED_ARG prefixes
// were already consumed by Decode).
func nextPC(in pybc.Instruction) int {
	return in.Index + 2
}
