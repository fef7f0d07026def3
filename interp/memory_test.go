package interp

import (
	"errors"
	"testing"

	"github.com/mattrisc/iss/arch"
	"github.com/mattrisc/iss/bus"
	"github.com/mattrisc/iss/cpu"
	"github.com/mattrisc/iss/devices/ram"
	"github.com/mattrisc/iss/mmu"
)

// newRAMInterp wires an interpreter over a real bus with RAM at physical 0,
// translation off, so memory-instruction tests exercise the full
// MMU-identity + bus + big-endian path.
func newRAMInterp(t *testing.T, size uint32) *Interp {
	t.Helper()
	b := bus.New(nil)
	if err := b.Attach("ram", 0, size, ram.New(size)); err != nil {
		t.Fatalf("attach ram: %v", err)
	}
	m := mmu.New(b)
	return New(cpu.New(m), b)
}

// xInst builds an X-form opcode-31 instruction word.
func xInst(rd, ra, rb, xo uint32) uint32 {
	return uint32(31)<<26 | rd<<21 | ra<<16 | rb<<11 | xo<<1
}

func TestLwzByteSwap(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	for i, b := range []uint8{0xaa, 0xbb, 0xcc, 0xdd} {
		_ = ip.Bus.Write8(uint32(i), b)
	}

	// lwz r3, 0(r0)
	branched, err := ip.ExecuteWord(0x80600000)
	if err != nil {
		t.Fatalf("lwz: %v", err)
	}
	if branched {
		t.Fatal("lwz reported as a branch")
	}
	if ip.S.GPR[3] != 0xaabbccdd {
		t.Fatalf("GPR[3] = %#x, want 0xaabbccdd", ip.S.GPR[3])
	}
	if ip.S.PC != 4 {
		t.Fatalf("PC = %#x, want 4", ip.S.PC)
	}
}

func TestLwarxStwcxRoundTrip(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	_ = ip.Bus.Write32(0x1000, 0xdead)
	ip.S.GPR[1] = 0x1000
	ip.S.GPR[4] = 0xbeef

	// lwarx r3, r0, r1
	if _, err := ip.ExecuteWord(xInst(3, 0, 1, 20)); err != nil {
		t.Fatalf("lwarx: %v", err)
	}
	if ip.S.GPR[3] != 0xdead {
		t.Fatalf("GPR[3] = %#x, want 0xdead", ip.S.GPR[3])
	}

	// stwcx. r4, r0, r1 -- must succeed and set CR0.EQ.
	if _, err := ip.ExecuteWord(xInst(4, 0, 1, 150) | 1); err != nil {
		t.Fatalf("stwcx: %v", err)
	}
	if v, _ := ip.Bus.Read32(0x1000); v != 0xbeef {
		t.Fatalf("memory = %#x, want 0xbeef", v)
	}
	if ip.S.CR>>28&0x2 == 0 {
		t.Fatalf("CR0 = %#x, want EQ set after successful stwcx", ip.S.CR>>28)
	}

	// A second stwcx. with no new reservation must fail and leave memory
	// untouched.
	ip.S.GPR[4] = 0x1234
	if _, err := ip.ExecuteWord(xInst(4, 0, 1, 150) | 1); err != nil {
		t.Fatalf("second stwcx: %v", err)
	}
	if v, _ := ip.Bus.Read32(0x1000); v != 0xbeef {
		t.Fatalf("memory = %#x after failed stwcx, want 0xbeef", v)
	}
	if ip.S.CR>>28&0x2 != 0 {
		t.Fatalf("CR0 = %#x, want EQ clear after blown reservation", ip.S.CR>>28)
	}
}

func TestStwcxFailsAfterMMUChange(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	ip.S.GPR[1] = 0x1000
	if _, err := ip.ExecuteWord(xInst(3, 0, 1, 20)); err != nil {
		t.Fatalf("lwarx: %v", err)
	}

	// tlbia bumps the MMU generation, which must blow the reservation.
	ip.S.MMU.TLBIA()

	ip.S.GPR[4] = 0xbeef
	if _, err := ip.ExecuteWord(xInst(4, 0, 1, 150) | 1); err != nil {
		t.Fatalf("stwcx: %v", err)
	}
	if ip.S.CR>>28&0x2 != 0 {
		t.Fatal("expected stwcx to fail after tlbia invalidated the reservation")
	}
}

func TestLoadCrossing8ByteBoundaryFaults(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	ip.S.GPR[1] = 6 // word at 6 straddles the 8-byte boundary

	// lwzx r3, r0, r1
	_, err := ip.ExecuteWord(xInst(3, 0, 1, 23))
	exc, ok := err.(*cpu.Exception)
	if !ok {
		t.Fatalf("expected alignment exception, got %v", err)
	}
	if exc.Vector != arch.ExcAlign {
		t.Fatalf("vector = %#x, want %#x", exc.Vector, arch.ExcAlign)
	}
	if ip.S.DAR != 6 {
		t.Fatalf("DAR = %#x, want 6", ip.S.DAR)
	}
	if ip.S.PC != arch.ExcAlign {
		t.Fatalf("PC = %#x, want the alignment vector", ip.S.PC)
	}
}

func TestUnalignedSameWordLoadDoesNotFault(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	_ = ip.Bus.Write32(0x1000, 0x11223344)
	ip.S.GPR[1] = 0x1001 // misaligned but within one 8-byte span

	if _, err := ip.ExecuteWord(xInst(3, 0, 1, 23)); err != nil {
		t.Fatalf("unaligned same-span lwzx: %v", err)
	}
}

func TestLwbrxStwbrx(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	_ = ip.Bus.Write32(0x100, 0xaabbccdd)
	ip.S.GPR[1] = 0x100

	if _, err := ip.ExecuteWord(xInst(3, 0, 1, 534)); err != nil {
		t.Fatalf("lwbrx: %v", err)
	}
	if ip.S.GPR[3] != 0xddccbbaa {
		t.Fatalf("GPR[3] = %#x, want 0xddccbbaa", ip.S.GPR[3])
	}

	ip.S.GPR[4] = 0x11223344
	if _, err := ip.ExecuteWord(xInst(4, 0, 1, 662)); err != nil {
		t.Fatalf("stwbrx: %v", err)
	}
	if v, _ := ip.Bus.Read32(0x100); v != 0x44332211 {
		t.Fatalf("memory = %#x, want 0x44332211", v)
	}
}

func TestDcbzZeroesLine(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	for off := uint32(0); off < 64; off += 4 {
		_ = ip.Bus.Write32(0x200+off, 0xffffffff)
	}
	ip.S.GPR[1] = 0x214 // mid-line EA; the whole 0x200..0x21f line clears

	if _, err := ip.ExecuteWord(xInst(0, 0, 1, 1014)); err != nil {
		t.Fatalf("dcbz: %v", err)
	}
	for off := uint32(0); off < 32; off += 4 {
		if v, _ := ip.Bus.Read32(0x200 + off); v != 0 {
			t.Fatalf("line word at %#x = %#x, want 0", 0x200+off, v)
		}
	}
	if v, _ := ip.Bus.Read32(0x220); v != 0xffffffff {
		t.Fatalf("word past the line = %#x, want untouched", v)
	}
}

func TestLswiPartialFinalRegister(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	for i, b := range []uint8{0x11, 0x22, 0x33, 0x44, 0x55, 0x66} {
		_ = ip.Bus.Write8(0x300+uint32(i), b)
	}
	ip.S.GPR[1] = 0x300

	// lswi r3, r1, 6 -- six bytes: r3 full, r4 carries two high bytes.
	inst := uint32(31)<<26 | 3<<21 | 1<<16 | 6<<11 | 597<<1
	if _, err := ip.ExecuteWord(inst); err != nil {
		t.Fatalf("lswi: %v", err)
	}
	if ip.S.GPR[3] != 0x11223344 {
		t.Fatalf("GPR[3] = %#x, want 0x11223344", ip.S.GPR[3])
	}
	if ip.S.GPR[4] != 0x55660000 {
		t.Fatalf("GPR[4] = %#x, want 0x55660000", ip.S.GPR[4])
	}
}

// TestUnmappedBusAccessIsFatal checks the bus-miss policy: an access that
// hits no device is a simulator-fatal error propagated to the runloop as a
// plain error, not synthesized into a guest-visible DSI.
func TestUnmappedBusAccessIsFatal(t *testing.T) {
	ip := newRAMInterp(t, 0x10000)
	ip.S.GPR[1] = 0x40000000 // far beyond the only attached device
	ip.S.PC = 0x100

	_, err := ip.ExecuteWord(xInst(3, 0, 1, 23)) // lwzx r3, r0, r1
	if err == nil {
		t.Fatal("expected an error for an unmapped physical address")
	}
	if _, ok := err.(*cpu.Exception); ok {
		t.Fatalf("unmapped access delivered a guest exception (%v), want a fatal error", err)
	}
	var unmapped *bus.UnmappedAccess
	if !errors.As(err, &unmapped) {
		t.Fatalf("err = %v, want the bus's unmapped-access error", err)
	}
	if unmapped.Addr != 0x40000000 {
		t.Fatalf("fault address = %#x, want the accessed PA", unmapped.Addr)
	}
	if ip.S.PC != 0x100 {
		t.Fatalf("PC = %#x, want unchanged by the fatal path", ip.S.PC)
	}
}
