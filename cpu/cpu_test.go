package cpu

import (
	"testing"

	"github.com/mattrisc/iss/arch"
	"github.com/mattrisc/iss/mmu"
)

func TestTakeExceptionSetsSRRAndVector(t *testing.T) {
	s := New(mmu.New(nil))
	s.PC = 0x1234
	s.MSR = arch.MsrEE | arch.MsrPR | arch.MsrIR | arch.MsrDR

	exc := s.RaiseSCException()
	if exc.Vector != arch.ExcSC {
		t.Fatalf("vector = %#x, want %#x", exc.Vector, arch.ExcSC)
	}
	if s.SRR0 != 0x1234 {
		t.Fatalf("SRR0 = %#x, want the faulting PC", s.SRR0)
	}
	if s.SRR1&(arch.MsrEE|arch.MsrPR) == 0 {
		t.Fatalf("SRR1 = %#x, want the pre-exception MSR preserved", s.SRR1)
	}
	if s.MSR&(arch.MsrEE|arch.MsrPR|arch.MsrIR|arch.MsrDR) != 0 {
		t.Fatalf("MSR = %#x, want EE/PR/IR/DR cleared on delivery", s.MSR)
	}
	if s.PC != arch.ExcSC {
		t.Fatalf("PC = %#x, want the SC vector", s.PC)
	}
}

func TestTakeExceptionHonoursIPPrefix(t *testing.T) {
	s := New(mmu.New(nil))
	s.PC = 0x1000
	s.MSR = arch.MsrIP

	s.RaiseDECException()
	if s.PC != 0xfff00000+arch.ExcDec {
		t.Fatalf("PC = %#x, want the high-prefix DEC vector", s.PC)
	}
	if s.MSR&arch.MsrIP == 0 {
		t.Fatal("expected MSR.IP to survive exception delivery")
	}
}

func TestTakeExceptionInvalidatesReservation(t *testing.T) {
	s := New(mmu.New(nil))
	s.Reservation = Reservation{Valid: true, Addr: 0x1000}

	s.RaiseSCException()
	if s.Reservation.Valid {
		t.Fatal("expected exception delivery to drop the reservation")
	}
}

func TestRFIRestoresPCAndMSR(t *testing.T) {
	s := New(mmu.New(nil))
	s.SRR0 = 0x2002 // low bits must be cleared on return
	s.SRR1 = arch.MsrEE | arch.MsrPR | arch.MsrIR | arch.MsrDR

	s.RFI()
	if s.PC != 0x2000 {
		t.Fatalf("PC = %#x, want SRR0 with low bits cleared", s.PC)
	}
	if s.MSR != arch.MsrEE|arch.MsrPR|arch.MsrIR|arch.MsrDR {
		t.Fatalf("MSR = %#x, want SRR1 restored", s.MSR)
	}
}

func TestExceptionThenRFIRoundTrip(t *testing.T) {
	s := New(mmu.New(nil))
	s.PC = 0x3000
	s.MSR = arch.MsrEE | arch.MsrPR

	s.RaiseSCException()
	s.RFI()
	if s.PC != 0x3000 {
		t.Fatalf("PC = %#x after rfi, want the interrupted PC", s.PC)
	}
	if s.MSR != arch.MsrEE|arch.MsrPR {
		t.Fatalf("MSR = %#x after rfi, want the interrupted MSR", s.MSR)
	}
}

func TestTickDecrementsDECEveryTBShiftRetires(t *testing.T) {
	s := New(mmu.New(nil))
	s.DEC = 10

	period := uint64(1) << arch.TBShift
	for i := uint64(0); i < 3*period; i++ {
		s.Tick(1)
	}
	if s.DEC != 7 {
		t.Fatalf("DEC = %d after %d retires, want 7", s.DEC, 3*period)
	}
	if s.InstCount != 3*period {
		t.Fatalf("InstCount = %d, want %d", s.InstCount, 3*period)
	}
	if s.TB() != 3 {
		t.Fatalf("TB = %d, want 3", s.TB())
	}
}

func TestDecrementerPendingNeedsEE(t *testing.T) {
	s := New(mmu.New(nil))
	s.DEC = 0x80000000

	if s.IsDecrementerPending() {
		t.Fatal("DEC must not be pending with EE clear")
	}
	s.MSR |= arch.MsrEE
	if !s.IsDecrementerPending() {
		t.Fatal("DEC must be pending with EE set and DEC bit 31 set")
	}
}

func TestMemExceptionDSISRReadVsWrite(t *testing.T) {
	s := New(mmu.New(nil))
	s.PC = 0x100

	s.RaiseMemException(false, false, 0x44, mmu.FaultNoPage, 0)
	if s.DAR != 0x44 {
		t.Fatalf("DAR = %#x, want the faulting EA", s.DAR)
	}
	if s.DSISR != 0x40000000 {
		t.Fatalf("DSISR = %#x for a read page fault, want 0x40000000", s.DSISR)
	}
	if s.PC != arch.ExcDSI {
		t.Fatalf("PC = %#x, want the DSI vector", s.PC)
	}

	s.PC = 0x200
	s.RaiseMemException(true, false, 0x48, mmu.FaultNoPage, 0)
	if s.DSISR != 0x42000000 {
		t.Fatalf("DSISR = %#x for a write page fault, want 0x42000000", s.DSISR)
	}
}

func TestISIFaultSetsSRR1Cause(t *testing.T) {
	s := New(mmu.New(nil))
	s.PC = 0x100

	s.RaiseMemException(false, true, 0x100, mmu.FaultNoPage, 0)
	if s.PC != arch.ExcISI {
		t.Fatalf("PC = %#x, want the ISI vector", s.PC)
	}
	if s.SRR1&0x40000000 == 0 {
		t.Fatalf("SRR1 = %#x, want the ISI page-fault cause bit", s.SRR1)
	}
}
