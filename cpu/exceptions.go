package cpu

import (
	"fmt"

	"github.com/mattrisc/iss/arch"
	"github.com/mattrisc/iss/mmu"
)

// Exception is returned by instruction execution (and by the runloop, for
// async events) to signal that an architected exception was delivered. By
// the time this is returned, PC/SRR0/SRR1/MSR already reflect the delivered
// exception — the interpreter and block cache treat this as a normal error
// that aborts the current block and returns control to the runloop, which
// is the Go-native replacement for the original's setjmp/longjmp escape.
type Exception struct {
	Vector uint32
}

func (e *Exception) Error() string {
	return fmt.Sprintf("exception vector %#x", e.Vector)
}

// takeException is the Go analogue of PPCCPUState::takeException: it
// updates SRR0/SRR1, clears MSR down to the IP bit, redirects PC to the
// vector (offset by the IP-selected prefix), re-synchronises the MMU's
// IR/DR view, and drops any outstanding reservation.
func (s *State) takeException(vector uint32, newSRR1 uint32) *Exception {
	s.SRR0 = s.PC &^ 3
	s.SRR1 = newSRR1

	s.MSR = s.MSR & arch.MsrIP
	s.PC = arch.VectorBase(s.MSR) + vector

	if s.MMU != nil {
		s.MMU.SetIRDR(s.MSR&arch.MsrIR != 0, s.MSR&arch.MsrDR != 0)
	}
	s.InvalidateReservation()

	return &Exception{Vector: vector}
}

// RaiseMemException delivers a DSI/ISI/alignment exception for a faulting
// memory access, following PPCCPUState::raiseMemException's DSISR/SRR1
// cause-bit encoding exactly.
func (s *State) RaiseMemException(write, instr bool, addr uint32, fault mmu.Fault, inst uint32) *Exception {
	var vector uint32
	srr1 := s.MSR

	switch fault {
	case mmu.FaultNoPage:
		if instr {
			vector = arch.ExcISI
			srr1 = (srr1 &^ 0xf8000000) | 0x40000000
		} else {
			vector = arch.ExcDSI
			s.DAR = addr
			cause := uint32(0x40000000)
			if write {
				cause |= 0x02000000
			}
			s.DSISR = cause
		}
	case mmu.FaultPerms:
		if instr {
			vector = arch.ExcISI
			srr1 = (srr1 &^ 0xf8000000) | 0x08000000
		} else {
			vector = arch.ExcDSI
			s.DAR = addr
			cause := uint32(0x08000000)
			if write {
				cause |= 0x02000000
			}
			s.DSISR = cause
		}
	case mmu.FaultPermsNX:
		vector = arch.ExcISI
		srr1 = (srr1 &^ 0xf8000000) | 0x10000000
	case mmu.FaultAlign:
		vector = arch.ExcAlign
		s.DAR = addr
		var dsisr uint32
		if inst&0x80000000 != 0 {
			dsisr = ((inst >> (26 - 14)) & 0x4000) | ((inst >> (27 - 10)) & 0x3c00)
		} else {
			dsisr = ((inst << (15 - 1)) & 0x18000) | ((inst << (14 - 6)) & 0x4000) | ((inst << (10 - 7)) & 0x3c00)
		}
		dsisr |= (inst >> (21 - 5)) & 0x3e0
		dsisr |= (inst >> 16) & 0x1f
		s.DSISR = dsisr
	default:
		vector = arch.ExcReset
	}

	return s.takeException(vector, srr1)
}

// RaiseIRQException delivers an external interrupt.
func (s *State) RaiseIRQException() *Exception {
	return s.takeException(arch.ExcExt, s.MSR)
}

// RaiseDECException delivers a decrementer exception.
func (s *State) RaiseDECException() *Exception {
	return s.takeException(arch.ExcDec, s.MSR)
}

// RaisePROGException delivers a program-check exception with the given
// cause bits (illegal instruction 0x80000, privilege violation 0x40000, trap
// 0x20000) ORed into SRR1 over the MSR bits it preserves (0x8000ffff),
// mirroring the original's reason-or'd SRR1.
func (s *State) RaisePROGException(reason uint32) *Exception {
	return s.takeException(arch.ExcProg, (s.MSR&0x8000ffff)|reason)
}

// RaiseSCException delivers a system-call exception.
func (s *State) RaiseSCException() *Exception {
	return s.takeException(arch.ExcSC, s.MSR)
}

// Program-check reason codes (SRR1 bits), used by the interpreter for
// illegal instructions, privileged-instruction violations and traps; bit
// numbering matches PEM Table 6-9.
const (
	ProgReasonIllegal uint32 = 1 << 19
	ProgReasonPriv    uint32 = 1 << 18
	ProgReasonTrap    uint32 = 1 << 17
)

// RFI performs the `rfi` instruction's register transfer: PC <- SRR0,
// MSR <- SRR1 (masked to valid bits), and re-syncs the MMU and drops the
// reservation, since exceptions (and rfi, which is exception-return)
// invalidate any outstanding lwarx per spec.
func (s *State) RFI() {
	s.PC = s.SRR0 &^ 3
	s.MSR = s.SRR1 & 0x87c0ff73
	if s.MMU != nil {
		s.MMU.SetIRDR(s.MSR&arch.MsrIR != 0, s.MSR&arch.MsrDR != 0)
	}
	s.InvalidateReservation()
}
