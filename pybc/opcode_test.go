package pybc

import "testing"

func TestDecodeFoldsExtendedArg(t *testing.T) {
	// EXTENDED_ARG 1 ; LOAD_CONST 2  ==> oparg = (1<<8)|2 = 258
	ins := Instructions{
		byte(OpExtendedArg), 1,
		byte(OpLoadConst), 2,
	}

	decoded, err := ins.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("Decode() produced %d instructions, want 1 (EXTENDED_ARG must be transparent)", len(decoded))
	}
	if decoded[0].Op != OpLoadConst {
		t.Fatalf("decoded op = %v, want LOAD_CONST", decoded[0].Op)
	}
	if decoded[0].Oparg != 258 {
		t.Fatalf("decoded oparg = %d, want 258", decoded[0].Oparg)
	}
	if decoded[0].Index != 2 {
		t.Fatalf("decoded index = %d, want 2 (the terminating instruction's offset)", decoded[0].Index)
	}
}

func TestDecodeRejectsOddLength(t *testing.T) {
	_, err := Instructions{byte(OpNop)}.Decode()
	if err == nil {
		t.Fatalf("expected error for odd-length instruction stream")
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	_, err := Instructions{0xFE, 0}.Decode()
	if err == nil {
		t.Fatalf("expected error for unknown opcode")
	}
}

func TestStackEffectFixed(t *testing.T) {
	pop, push, err := StackEffect(OpBinaryAdd, 0)
	if err != nil {
		t.Fatalf("StackEffect error = %v", err)
	}
	if pop != 2 || push != 1 {
		t.Fatalf("BINARY_ADD stack effect = (%d,%d), want (2,1)", pop, push)
	}
}

func TestStackEffectVariadic(t *testing.T) {
	tests := []struct {
		op           Opcode
		oparg        int
		wantPop      int
		wantPush     int
	}{
		{OpBuildList, 3, 3, 1},
		{OpBuildMap, 2, 4, 1},
		{OpCallFunction, 2, 3, 1},
		{OpUnpackSequence, 3, 1, 3},
	}
	for i, tt := range tests {
		pop, push, err := StackEffect(tt.op, tt.oparg)
		if err != nil {
			t.Fatalf("test[%d] StackEffect error = %v", i, err)
		}
		if pop != tt.wantPop || push != tt.wantPush {
			t.Fatalf("test[%d] %v(%d) = (%d,%d), want (%d,%d)", i, tt.op, tt.oparg, pop, push, tt.wantPop, tt.wantPush)
		}
	}
}

func TestLookupUnsupportedOpcode(t *testing.T) {
	_, err := Lookup(Opcode(250))
	if err == nil {
		t.Fatalf("expected error looking up an unassigned opcode")
	}
}
