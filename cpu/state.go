// Package cpu holds the architected register state of a single MattRISC
// core and the exception-delivery logic that mutates it, grounded on
// original_source/PPCCPUState.h and PPCCPUState.cc.
package cpu

import (
	"fmt"

	"github.com/mattrisc/iss/arch"
	"github.com/mattrisc/iss/mmu"
)

// Reservation tracks the address/generation pair set by lwarx and checked
// by stwcx, per spec's reservation invariant: any exception, rfi, tlbie,
// tlbia or MMU reconfiguration must invalidate it.
type Reservation struct {
	Valid      bool
	Addr       uint32
	Generation uint32
}

// State is the architected register file. Unlike the original's
// PPCCPUState, there is no jmp_buf: exception delivery mutates PC/SRR0/
// SRR1/MSR here and returns an *Exception for the caller (interp/runloop)
// to propagate as a normal Go error, aborting the current block.
type State struct {
	MMU *mmu.MMU

	GPR [32]uint32
	PC  uint32
	CTR uint32
	LR  uint32
	XER uint32
	CR  uint32

	MSR   uint32
	SPRG0 uint32
	SPRG1 uint32
	SPRG2 uint32
	SPRG3 uint32
	SRR0  uint32
	SRR1  uint32
	DAR   uint32
	DSISR uint32
	DEC   uint32
	SDR1  uint32

	HID0 uint32
	HID1 uint32
	PIR  uint32
	EAR  uint32

	IRQFlag bool

	tb uint64 // stored pre-shifted by arch.TBShift, as the original does

	InstCount uint64

	Reservation Reservation

	// ExitRequested is set by a write to arch.SprDebug with the
	// DebugExit sub-value, the original's host-exit hook.
	ExitRequested bool
	// PutcPending is set by a write to arch.SprDebug with the
	// DebugPutc sub-value; the byte to emit is in GPR[3] low byte,
	// matching the original's calling convention for the hook.
	PutcPending bool
	PutcByte    byte

	// ICacheInvalidate is set by icbi or a write to arch.SprICInvSet;
	// the runloop clears the whole block cache by the next block entry
	// per spec §4.6's coarse invalidation policy, then clears this flag.
	ICacheInvalidate bool
}

// New creates a core with the decrementer at its architected reset value
// (all-ones, as PPCCPUState's constructor sets).
func New(m *mmu.MMU) *State {
	return &State{MMU: m, DEC: 0xffffffff}
}

func (s *State) IsPrivileged() bool { return s.MSR&arch.MsrPR == 0 }

// TB returns the visible (unshifted) timebase value.
func (s *State) TB() uint64 { return s.tb >> arch.TBShift }

// SetTB loads the timebase, pre-shifting as the original does so that
// Tick's coarse decrement cadence is preserved across a reload.
func (s *State) SetTB(v uint64) { s.tb = v << arch.TBShift }

// Tick advances the instruction counter and timebase by t (usually 1 per
// retired instruction, or the block length in block-execution mode), and
// decrements DEC once per 1<<TBShift ticks, matching CPUTick.
func (s *State) Tick(t uint32) {
	s.InstCount += uint64(t)
	old := s.tb
	s.tb += uint64(t)
	s.DEC -= uint32((s.tb >> arch.TBShift) - (old >> arch.TBShift))
}

// IsDecrementerPending reports whether EE is set and DEC's sign bit is 1.
func (s *State) IsDecrementerPending() bool {
	return s.MSR&arch.MsrEE != 0 && s.DEC&0x80000000 != 0
}

// IsIRQPending reports whether EE is set and an external interrupt line is
// asserted.
func (s *State) IsIRQPending() bool {
	return s.MSR&arch.MsrEE != 0 && s.IRQFlag
}

// InvalidateReservation drops any outstanding lwarx reservation; called on
// every exception, rfi, tlbie/tlbia and MMU reconfiguration per spec.
func (s *State) InvalidateReservation() { s.Reservation.Valid = false }

func (s *State) String() string {
	return fmt.Sprintf("PC=%08x LR=%08x CTR=%08x CR=%08x XER=%08x MSR=%08x DEC=%08x",
		s.PC, s.LR, s.CTR, s.CR, s.XER, s.MSR, s.DEC)
}
