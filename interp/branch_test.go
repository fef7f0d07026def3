package interp

import "testing"

func TestBranchUnconditionalRelative(t *testing.T) {
	ip := newTestInterp()
	ip.S.PC = 0x1000

	// b +0x20
	if _, err := ip.ExecuteWord(0x48000020); err != nil {
		t.Fatalf("b: %v", err)
	}
	if ip.S.PC != 0x1020 {
		t.Fatalf("PC = %#x, want 0x1020", ip.S.PC)
	}
	if ip.S.LR != 0 {
		t.Fatal("LR written without LK")
	}
}

func TestBranchAndLinkWritesLR(t *testing.T) {
	ip := newTestInterp()
	ip.S.PC = 0x1000

	// bl +0x20
	if _, err := ip.ExecuteWord(0x48000021); err != nil {
		t.Fatalf("bl: %v", err)
	}
	if ip.S.LR != 0x1004 {
		t.Fatalf("LR = %#x, want the return address", ip.S.LR)
	}
}

func TestBranchBackward(t *testing.T) {
	ip := newTestInterp()
	ip.S.PC = 0x1000

	// b -8
	if _, err := ip.ExecuteWord(0x4bfffff8); err != nil {
		t.Fatalf("b: %v", err)
	}
	if ip.S.PC != 0xff8 {
		t.Fatalf("PC = %#x, want 0xff8", ip.S.PC)
	}
}

// bdnz: BO=16 (decrement CTR, branch if nonzero), BI=0.
func TestBdnzLoopsOnCTR(t *testing.T) {
	ip := newTestInterp()
	ip.S.PC = 0x1000
	ip.S.CTR = 2

	inst := uint32(16)<<26 | 16<<21 | uint32(-8&0xfffc)
	if _, err := ip.ExecuteWord(inst); err != nil {
		t.Fatalf("bdnz: %v", err)
	}
	if ip.S.CTR != 1 {
		t.Fatalf("CTR = %d, want decremented to 1", ip.S.CTR)
	}
	if ip.S.PC != 0xff8 {
		t.Fatalf("PC = %#x, want the taken backward target", ip.S.PC)
	}

	// Second pass: CTR hits zero, branch falls through.
	if _, err := ip.ExecuteWord(inst); err != nil {
		t.Fatalf("bdnz: %v", err)
	}
	if ip.S.CTR != 0 {
		t.Fatalf("CTR = %d, want 0", ip.S.CTR)
	}
	if ip.S.PC != 0xffc {
		t.Fatalf("PC = %#x, want fall-through", ip.S.PC)
	}
}

func TestBclrWritesLREvenWhenNotTaken(t *testing.T) {
	ip := newTestInterp()
	ip.S.PC = 0x1000
	ip.S.LR = 0x5000
	ip.S.CR = 0 // bit 0 (LT of CR0) clear

	// bclrl BO=12 (branch if CR bit set), BI=0, LK=1: not taken, but LR
	// still updates per the BO/LK contract.
	inst := uint32(19)<<26 | 12<<21 | 0<<16 | 16<<1 | 1
	if _, err := ip.ExecuteWord(inst); err != nil {
		t.Fatalf("bclrl: %v", err)
	}
	if ip.S.PC != 0x1004 {
		t.Fatalf("PC = %#x, want fall-through", ip.S.PC)
	}
	if ip.S.LR != 0x1004 {
		t.Fatalf("LR = %#x, want written even on a not-taken bclrl", ip.S.LR)
	}
}

func TestBcctrTakenOnCRBit(t *testing.T) {
	ip := newTestInterp()
	ip.S.PC = 0x1000
	ip.S.CTR = 0x2002
	ip.S.CR = 0x80000000 // CR0.LT set

	// bcctr BO=12, BI=0
	inst := uint32(19)<<26 | 12<<21 | 0<<16 | 528<<1
	if _, err := ip.ExecuteWord(inst); err != nil {
		t.Fatalf("bcctr: %v", err)
	}
	if ip.S.PC != 0x2000 {
		t.Fatalf("PC = %#x, want CTR with low bits cleared", ip.S.PC)
	}
}

func TestCROpsFullSet(t *testing.T) {
	// Each op computed on crb4 = a, crb5 = b, result into crb0.
	cases := []struct {
		xo   uint32
		a, b bool
		want bool
	}{
		{257, true, true, true},   // crand
		{257, true, false, false}, // crand
		{449, false, true, true},  // cror
		{193, true, true, false},  // crxor
		{225, true, true, false},  // crnand
		{33, false, false, true},  // crnor
		{289, true, true, true},   // creqv
		{129, true, false, true},  // crandc
		{417, false, false, true}, // crorc
	}
	for _, tc := range cases {
		ip := newTestInterp()
		if tc.a {
			ip.S.CR |= 1 << (31 - 4)
		}
		if tc.b {
			ip.S.CR |= 1 << (31 - 5)
		}
		inst := uint32(19)<<26 | 0<<21 | 4<<16 | 5<<11 | tc.xo<<1
		if _, err := ip.ExecuteWord(inst); err != nil {
			t.Fatalf("cr op %d: %v", tc.xo, err)
		}
		got := ip.S.CR&(1<<31) != 0
		if got != tc.want {
			t.Fatalf("cr op %d on (%v,%v): got %v, want %v", tc.xo, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMcrfCopiesField(t *testing.T) {
	ip := newTestInterp()
	ip.S.CR = 0x0000000a // field 7 = 0xa

	// mcrf cr2, cr7
	inst := uint32(19)<<26 | (2 << 23) | (7 << 18)
	if _, err := ip.ExecuteWord(inst); err != nil {
		t.Fatalf("mcrf: %v", err)
	}
	if got := (ip.S.CR >> ((7 - 2) * 4)) & 0xf; got != 0xa {
		t.Fatalf("CR field 2 = %#x, want 0xa", got)
	}
	if got := ip.S.CR & 0xf; got != 0xa {
		t.Fatalf("CR field 7 = %#x, want preserved", got)
	}
}
