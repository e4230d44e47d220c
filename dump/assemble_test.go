package dump

import (
	"strings"
	"testing"

	"github.com/corejit/pyjit/pybc"
)

func TestAssembleBuildsInstructionStream(t *testing.T) {
	code, err := Assemble(`
args 1
locals a
const int
LOAD_FAST 0
LOAD_CONST 0
BINARY_ADD 0
RETURN_VALUE 0
`)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if code.ArgCount != 1 {
		t.Fatalf("ArgCount = %d, want 1", code.ArgCount)
	}
	if len(code.LocalNames) != 1 || code.LocalNames[0] != "a" {
		t.Fatalf("LocalNames = %v, want [a]", code.LocalNames)
	}
	want := []byte{
		byte(pybc.OpLoadFast), 0,
		byte(pybc.OpLoadConst), 0,
		byte(pybc.OpBinaryAdd), 0,
		byte(pybc.OpReturnValue), 0,
	}
	if string(code.Instructions) != string(want) {
		t.Fatalf("Instructions = %v, want %v", []byte(code.Instructions), want)
	}
}

func TestAssembleIgnoresCommentsAndBlankLines(t *testing.T) {
	code, err := Assemble(`
# a comment

RETURN_VALUE 0
`)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(code.Instructions) != 2 {
		t.Fatalf("Instructions length = %d, want 2", len(code.Instructions))
	}
}

func TestAssembleRejectsUnknownMnemonic(t *testing.T) {
	_, err := Assemble("NOT_A_REAL_OP 0")
	if err == nil {
		t.Fatalf("Assemble() error = nil, want error for unknown opcode")
	}
	if !strings.Contains(err.Error(), "unknown opcode") {
		t.Fatalf("Assemble() error = %v, want unknown opcode message", err)
	}
}

func TestAssembleRejectsEmptyListing(t *testing.T) {
	_, err := Assemble("# nothing but comments\n")
	if err == nil {
		t.Fatalf("Assemble() error = nil, want error for empty listing")
	}
}

func TestAssembleRejectsUnknownConstKind(t *testing.T) {
	_, err := Assemble("const nonsense\nRETURN_VALUE 0")
	if err == nil {
		t.Fatalf("Assemble() error = nil, want error for unknown constant kind")
	}
}
