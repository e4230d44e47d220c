package depgraph

import (
	"fmt"
	"strings"
)

// Dump renders the graph as a human-readable listing: one line per
// instruction showing its escape decision, followed by its inbound edges,
// matching the disassembly style of pybc.Instructions.String().
func (g *Graph) Dump() string {
	var out strings.Builder
	for _, in := range g.Instructions {
		fmt.Fprintf(&out, "%4d %-22s %d  escape=%v\n", in.Index, in.Op, in.Oparg, in.Escape)
		for _, e := range g.edgesTo(in.Index) {
			fmt.Fprintf(&out, "       <- pc=%d pos=%d kind=%s %s\n", e.From, e.Position, e.Kind, e.Transition)
		}
	}
	return out.String()
}
