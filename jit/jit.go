// Package jit wires analysis, depgraph, and driver into the single entry
// point an embedding interpreter calls: hand it a pybc.Code, get back a
// compiled ilgen.JITMethod or the reason compilation declined.
package jit

import (
	"fmt"

	"github.com/corejit/pyjit/analysis"
	"github.com/corejit/pyjit/depgraph"
	"github.com/corejit/pyjit/driver"
	"github.com/corejit/pyjit/ilgen"
	"github.com/corejit/pyjit/jitrt"
	"github.com/corejit/pyjit/pybc"
)

// Options configures a single Compile call. The zero value compiles with
// no instruction budget and cascading deopt disabled, matching the
// conservative default spec §5 describes for a first compilation attempt.
type Options struct {
	// Budget bounds the size of the emitted IL: driver.Emit passes it to
	// the emitter's Compile, which gives up and returns ErrBudgetExceeded
	// when the method is larger (0 means unbounded). Mirrors spec §5's "walk away rather than JIT a method
	// the backend can't finish quickly".
	Budget int

	// AllowCascadingDeopt lets depgraph.DeoptimizeInstructions widen a
	// single forced deopt into its full dependency fan-out instead of
	// stopping at the one instruction that triggered it (spec §4.4).
	AllowCascadingDeopt bool

	// JITInfo and Backend are passed straight through to driver.Emit's
	// matching parameters; they select which ilgen.Emitter profile and
	// backend identifier the compiled method is tagged with for
	// diagnostics, not anything Compile itself interprets.
	JITInfo string
	Backend string
}

// Compile runs the full pyjit pipeline over code and returns a method ready
// for ilgen to finish lowering and the embedder to install in place of the
// interpreted path. It never mutates code.
func Compile(e ilgen.Emitter, code *pybc.Code, opts Options) (*ilgen.JITMethod, error) {
	result, err := analysis.New().Run(code, analysis.Options{})
	if err != nil {
		return nil, fmt.Errorf("jit: analysis failed: %w", err)
	}

	graph, err := depgraph.Build(code, result, depgraph.Options{
		AllowCascadingDeopt: opts.AllowCascadingDeopt,
	})
	if err != nil {
		return nil, fmt.Errorf("jit: dependency graph build failed: %w", err)
	}
	graph.FixInstructions()
	if err := graph.DeoptimizeInstructions(); err != nil {
		return nil, fmt.Errorf("jit: deoptimization pass failed: %w", err)
	}
	graph.FixEdges()

	registry := jitrt.Global()
	registry.Populate(e)

	method, err := driver.Emit(e, code, result, graph, registry, opts.JITInfo, opts.Backend, opts.Budget)
	if err != nil {
		return nil, err
	}
	return method, nil
}
