package dump

import (
	"fmt"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/depgraph"
	"github.com/corejit/pyjit/ilgen/reftest"
	"github.com/corejit/pyjit/jit"
)

// Panes holds the three rendered views of one compile attempt.
type Panes struct {
	Analysis string
	Graph    string
	IL       string
}

// Step assembles src, runs it through the same analysis -> depgraph -> jit
// pipeline jit.Compile itself uses, and renders the Analysis and Graph
// panes regardless of outcome so a compile failure still shows why. IL is
// only populated on success, since there is no trace to show otherwise.
func Step(src string) (Panes, error) {
	code, err := Assemble(src)
	if err != nil {
		return Panes{}, err
	}

	result, err := analysis.New().Run(code, analysis.Options{})
	if err != nil {
		return Panes{}, fmt.Errorf("analysis: %w", err)
	}

	graph, err := depgraph.Build(code, result, depgraph.Options{})
	if err != nil {
		return Panes{}, fmt.Errorf("graph build: %w", err)
	}
	graph.FixInstructions()
	if err := graph.DeoptimizeInstructions(); err != nil {
		return Panes{}, fmt.Errorf("deopt: %w", err)
	}
	graph.FixEdges()

	panes := Panes{Analysis: renderAnalysis(graph, result), Graph: renderGraph(graph)}

	e := reftest.New()
	if _, err := jit.Compile(e, code, jit.Options{Backend: "reftest", JITInfo: "pyjitdump"}); err != nil {
		return panes, err
	}
	panes.IL = renderTrace(e)
	return panes, nil
}
