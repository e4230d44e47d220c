// Package dump implements pyjitdump's interactive stepper: it assembles a
// small textual bytecode listing into a pybc.Code, runs it through
// analysis -> depgraph -> driver exactly as jit.Compile does, and renders
// the return kind, the instruction graph's escape/edge decisions, and the
// emitted IL trace as three panes.
package dump

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/corejit/pyjit/pybc"
	"github.com/corejit/pyjit/pyvalue"
)

var mnemonicToOpcode map[string]pybc.Opcode

func init() {
	mnemonicToOpcode = make(map[string]pybc.Opcode)
	for i := 0; i < 256; i++ {
		op := pybc.Opcode(i)
		name := op.String()
		if strings.HasPrefix(name, "OPCODE<") {
			continue
		}
		mnemonicToOpcode[name] = op
	}
}

var mnemonicToKind = map[string]pyvalue.Kind{
	"int":    pyvalue.KindInteger,
	"float":  pyvalue.KindFloat,
	"bool":   pyvalue.KindBool,
	"str":    pyvalue.KindStr,
	"bytes":  pyvalue.KindBytes,
	"any":    pyvalue.KindAny,
	"none":   pyvalue.KindNone,
	"list":   pyvalue.KindList,
	"tuple":  pyvalue.KindTuple,
	"dict":   pyvalue.KindDict,
	"set":    pyvalue.KindSet,
}

// Assemble parses a pyjitdump listing into a *pybc.Code. The format is one
// directive or instruction per line:
//
//	args <n>                 number of positional parameters (default 0)
//	locals <name,name,...>   LOAD_FAST/STORE_FAST names (default none)
//	const <kind>             append one constant slot of the given kind
//	                          (int, float, bool, str, bytes, any, none,
//	                          list, tuple, dict, set); LOAD_CONST indexes
//	                          these in declaration order
//	<MNEMONIC> <oparg>       one instruction, e.g. "LOAD_FAST 0"
//
// Blank lines and lines starting with # are ignored.
func Assemble(src string) (*pybc.Code, error) {
	code := &pybc.Code{Name: "<pyjitdump>"}
	var raw []byte

	for lineNo, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "args":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: args wants one integer", lineNo+1)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			code.ArgCount = n
		case "locals":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: locals wants one comma-separated list", lineNo+1)
			}
			code.LocalNames = strings.Split(fields[1], ",")
		case "const":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: const wants one kind name", lineNo+1)
			}
			k, ok := mnemonicToKind[strings.ToLower(fields[1])]
			if !ok {
				return nil, fmt.Errorf("line %d: unknown constant kind %q", lineNo+1, fields[1])
			}
			code.Constants = append(code.Constants, k)
		default:
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: want \"MNEMONIC OPARG\", got %q", lineNo+1, line)
			}
			op, ok := mnemonicToOpcode[strings.ToUpper(fields[0])]
			if !ok {
				return nil, fmt.Errorf("line %d: unknown opcode %q", lineNo+1, fields[0])
			}
			arg, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			if arg < 0 || arg > 255 {
				return nil, fmt.Errorf("line %d: oparg %d out of byte range", lineNo+1, arg)
			}
			raw = append(raw, byte(op), byte(arg))
		}
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("empty instruction stream")
	}
	code.Instructions = raw
	return code, nil
}
