// Package runloop drives a core through either of spec §4.7's two
// dispatch strategies -- single-step interpretation, or block-cached
// execution -- servicing pending IRQ/DEC and cancellation at each
// boundary. Grounded on original_source/runloop.cc, with the original's
// setjmp/longjmp abort escape replaced by ordinary Go error returns per
// the spec's redesign guidance.
package runloop

import (
	"github.com/mattrisc/iss/blockcache"
	"github.com/mattrisc/iss/cpu"
	"github.com/mattrisc/iss/disassemble"
	"github.com/mattrisc/iss/interp"
	"github.com/mattrisc/iss/mmu"
)

// maxBlockInstrs is the safety-valve instruction limit a block generation
// pass stops at even without hitting a control-flow instruction or a page
// boundary, per spec §4.6.
const maxBlockInstrs = 512

// IRQPoller reports whether the platform's interrupt controller currently
// wants to signal an external interrupt; the runloop samples it once per
// boundary and latches the result into CPU state's IRQFlag; (spec §5:
// async delivery is sampled only at instruction/block boundaries).
type IRQPoller interface {
	Pending() bool
}

// Loop owns one core's dispatch: its register state, the bus-bound
// interpreter, and (if non-nil) the block cache used in block mode.
type Loop struct {
	Interp *interp.Interp
	Cache  *blockcache.Cache
	IRQ    IRQPoller

	// InstrLimit halts the loop after this many retired instructions if
	// non-zero (spec §6's instr-limit flag).
	InstrLimit uint64
	// DumpEvery, if non-zero, invokes DumpState every N retired
	// instructions (spec §6's dump-state-period).
	DumpEvery uint64
	DumpState func(s *cpu.State)

	// Putc, if non-nil, is called with the byte requested by a write to
	// arch.SprDebug's DebugPutc sub-value (SPEC_FULL §13's host-putc
	// hook), letting bare-metal test images emit output with no UART.
	Putc func(b byte)

	// BreakRequested is polled at every boundary; setting it from
	// another goroutine causes a graceful exit at the next boundary
	// (spec §5's cancellation contract).
	BreakRequested bool
}

// New creates a runloop around an already-wired interpreter. Pass a
// non-nil cache to run in block mode; nil selects pure interpreter mode.
func New(ip *interp.Interp, cache *blockcache.Cache, irq IRQPoller) *Loop {
	return &Loop{Interp: ip, Cache: cache, IRQ: irq}
}

// serviceBoundary samples the IRQ controller and decrementer, delivering
// whichever exception (if any) is pending, and drops the boundary flag
// check for ExitRequested/break. Returns true if the loop should stop.
func (l *Loop) serviceBoundary() bool {
	s := l.Interp.S

	if l.IRQ != nil {
		s.IRQFlag = l.IRQ.Pending()
	}

	if s.PutcPending {
		if l.Putc != nil {
			l.Putc(s.PutcByte)
		}
		s.PutcPending = false
	}

	if s.IsDecrementerPending() {
		s.RaiseDECException()
	} else if s.IsIRQPending() {
		s.RaiseIRQException()
	}

	if s.ExitRequested || l.BreakRequested || l.Interp.BreakRequested {
		return true
	}
	if l.InstrLimit != 0 && s.InstCount >= l.InstrLimit {
		return true
	}
	return false
}

func (l *Loop) maybeDump() {
	if l.DumpEvery != 0 && l.DumpState != nil && l.Interp.S.InstCount%l.DumpEvery == 0 {
		l.DumpState(l.Interp.S)
	}
}

// RunInterpreted single-steps until a stop condition (exit request, break
// request, or instruction limit) is reached.
func (l *Loop) RunInterpreted() error {
	for {
		if l.serviceBoundary() {
			return nil
		}
		if _, _, err := l.Interp.Step(); err != nil {
			// Exceptions are not propagated as runloop failures:
			// PC already points at the vector; continue running.
			if _, ok := err.(*cpu.Exception); ok {
				continue
			}
			return err
		}
		l.Interp.S.Tick(1)
		l.maybeDump()
	}
}

// RunBlocked executes in block mode: at each boundary it looks up (or
// generates) the block for the current physical PC and MSR, runs it, then
// services IRQ/DEC as RunInterpreted does. An MMU-generation change since
// the cache was built invalidates it wholesale, matching spec §4.6's
// "blocks are reset en masse" policy.
func (l *Loop) RunBlocked() error {
	s := l.Interp.S
	lastMMUGen := s.MMU.GenCount()

	for {
		if l.serviceBoundary() {
			return nil
		}

		if s.MMU.GenCount() != lastMMUGen {
			l.Cache.Reset()
			lastMMUGen = s.MMU.GenCount()
		}
		if s.ICacheInvalidate {
			l.Cache.Reset()
			s.ICacheInvalidate = false
		}

		physPC, fault, ok := s.MMU.Translate(s.PC, true, false, s.IsPrivileged())
		if !ok {
			s.RaiseMemException(true, true, s.PC, fault, 0)
			continue
		}

		block, hit := l.Cache.Lookup(physPC, s.MSR)
		if !hit {
			block = l.generateBlock(physPC)
			if len(block.Words) == 0 {
				// Fetch faulted on the very first word: let Step
				// deliver the fault through the normal fetch path.
				if _, _, err := l.Interp.Step(); err != nil {
					if _, ok := err.(*cpu.Exception); !ok {
						return err
					}
				}
				continue
			}
			l.Cache.Insert(block)
		}

		retired, err := l.runBlock(block)
		s.Tick(retired)
		l.maybeDump()
		if err != nil {
			if _, ok := err.(*cpu.Exception); !ok {
				return err
			}
			// Exception already delivered into CPU state; resume
			// at the vector on the next boundary.
		}
	}
}

// generateBlock single-steps from the current PC, recording each fetched
// word, stopping at a control-flow instruction, a guest page-boundary
// crossing, or maxBlockInstrs -- spec §4.6's block termination rules.
func (l *Loop) generateBlock(startPA uint32) *blockcache.Block {
	s := l.Interp.S
	b := &blockcache.Block{PA: startPA, MSR: s.MSR}

	pc := s.PC
	for len(b.Words) < maxBlockInstrs {
		word, fault, err := l.Interp.FetchWord(pc)
		if err != nil || fault != mmu.FaultNone {
			// Stop the block here; the empty-block path re-runs the
			// first word through Step, which delivers the ISI or
			// surfaces the fatal bus error.
			break
		}
		b.Words = append(b.Words, word)
		if interp.IsBranch(word) {
			break
		}
		pc += 4
		if pc&0xfff == 0 {
			break
		}
	}
	return b
}

// runBlock replays a block's cached words directly (skipping the
// fetch/translate that generation performed), returning the number of
// instructions actually retired before any fault. Per spec's abort
// semantics, a faulting word's own tick is not counted, but prior words in
// the block already committed their effects and their tick.
func (l *Loop) runBlock(b *blockcache.Block) (uint32, error) {
	var retired uint32
	for i, word := range b.Words {
		if l.Interp.BreakRequested {
			break
		}
		if l.Interp.Disassemble != nil {
			l.Interp.Disassemble(b.PA+uint32(i)*4, word, disassemble.Format(b.PA+uint32(i)*4, word))
		}
		if _, err := l.Interp.ExecuteWord(word); err != nil {
			return retired, err
		}
		retired++
	}
	return retired, nil
}

// Run selects block mode when a cache is configured, else interpreter
// mode, matching the runloop's top-level dispatch choice in spec §4.7.
func (l *Loop) Run() error {
	if l.Cache != nil {
		return l.RunBlocked()
	}
	return l.RunInterpreted()
}
