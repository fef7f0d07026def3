package disassemble

import "testing"

func TestFormatDForm(t *testing.T) {
	// addi r3,r1,16 -> opcode 14, rD=3, rA=1, SIMM=16
	inst := uint32(14)<<26 | 3<<21 | 1<<16 | 16
	got := Format(0x1000, inst)
	want := "00001000: addi     r3,r1,16"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestFormatLoadStoreForm(t *testing.T) {
	// lwz r4,8(r5) -> opcode 32, rD=4, rA=5, d=8
	inst := uint32(32)<<26 | 4<<21 | 5<<16 | 8
	got := Format(0, inst)
	want := "00000000: lwz      r4,8(r5)"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestFormatXForm(t *testing.T) {
	// add r3,r4,r5 (xo 266, no OE/Rc) -> opcode 31
	inst := uint32(31)<<26 | 3<<21 | 4<<16 | 5<<11 | 266<<1
	got := Format(0, inst)
	want := "00000000: add      r3,r4,r5"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestFormatSPRForm(t *testing.T) {
	// mfspr r3, spr=8 (LR): spr is split into a low5 at bits 16-20 and a
	// high5 at bits 11-15, so spr=8 (low5=8, high5=0) sets the rA field
	// to 8 and leaves the rB field zero.
	inst := uint32(31)<<26 | 3<<21 | 8<<16 | 0<<11 | 339<<1
	got := Format(0, inst)
	want := "00000000: mfspr    r3,8"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestFormatUnknownOpcode(t *testing.T) {
	// opcode 1 is unused by any map.
	inst := uint32(1) << 26
	got := Format(0x2000, inst)
	want := "00002000: .long 0x04000000"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestFormatNoOperand(t *testing.T) {
	inst := uint32(17) << 26 // sc
	got := Format(0, inst)
	want := "00000000: sc"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}
