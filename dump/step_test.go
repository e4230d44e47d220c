package dump

import (
	"strings"
	"testing"
)

func TestStepSucceedsOnStraightLineArithmetic(t *testing.T) {
	panes, err := Step(`
args 1
locals a
const int
LOAD_FAST 0
LOAD_CONST 0
BINARY_ADD 0
RETURN_VALUE 0
`)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !strings.Contains(panes.Analysis, "return kind:") {
		t.Fatalf("Analysis pane missing return kind: %q", panes.Analysis)
	}
	if panes.IL == "" {
		t.Fatalf("IL pane empty on success")
	}
}

func TestStepReportsAssembleFailure(t *testing.T) {
	_, err := Step("GARBAGE 0")
	if err == nil {
		t.Fatalf("Step() error = nil, want assemble failure")
	}
}
