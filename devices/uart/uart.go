// Package uart implements the memory-mapped UART device contract from
// spec §6: THR/RBR, a status register, a write-1-to-clear IRQ status
// register and an IRQ enable register. Grounded on original_source/
// DevSimpleUart.cc's minimal register model, rewritten against
// device.Device and wired to stdio instead of a pty.
package uart

import (
	"io"
	"log/slog"
	"sync"
)

// Register offsets, word-sized, matching the original's simple UART.
const (
	RegData   = 0x00 // read: RBR: pops one byte from the RX queue; write: THR
	RegStatus = 0x04 // bit0 RX-not-empty, bit1 TX-not-full (always 1: TX is synchronous)
	RegIRQ    = 0x08 // bit0 RX-has-data IRQ (W1C on write, level while set)
	RegIRQEn  = 0x0c // bit0 enables the RX-has-data IRQ
)

const (
	statusRXNotEmpty = 1 << 0
	statusTXNotFull  = 1 << 1
)

// UART is a simple polled/interrupt-capable serial port: writes to
// RegData go to Out immediately (the original's synchronous TX), and
// reads come from an internal queue fed by Inject (the host-side pty/TCP
// listener in the original; here, anything that calls Inject -- a test,
// or a REPL hooked to stdin).
type UART struct {
	mu  sync.Mutex
	log *slog.Logger
	Out io.Writer

	rx      []byte
	irqEn   bool
	irqFlag bool
}

func New(log *slog.Logger, out io.Writer) *UART {
	return &UART{log: log, Out: out}
}

func (u *UART) SetProps(base, size uint32) {}

// Inject appends a byte to the RX queue, as a host serial back-end would;
// it raises the RX IRQ status bit.
func (u *UART) Inject(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append(u.rx, b)
	u.irqFlag = true
}

func (u *UART) Read8(off uint32) uint8  { return uint8(u.read(off)) }
func (u *UART) Read16(off uint32) uint16 { return uint16(u.read(off)) }
func (u *UART) Read32(off uint32) uint32 { return u.read(off) }

func (u *UART) read(off uint32) uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch off &^ 3 {
	case RegData:
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		if len(u.rx) == 0 {
			u.irqFlag = false
		}
		return uint32(b)
	case RegStatus:
		st := uint32(statusTXNotFull)
		if len(u.rx) > 0 {
			st |= statusRXNotEmpty
		}
		return st
	case RegIRQ:
		if u.irqFlag {
			return 1
		}
		return 0
	case RegIRQEn:
		if u.irqEn {
			return 1
		}
		return 0
	}
	return 0
}

func (u *UART) Write8(off uint32, val uint8)   { u.write(off, uint32(val)) }
func (u *UART) Write16(off uint32, val uint16) { u.write(off, uint32(val)) }
func (u *UART) Write32(off uint32, val uint32) { u.write(off, val) }

func (u *UART) write(off uint32, val uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch off &^ 3 {
	case RegData:
		if u.Out != nil {
			_, _ = u.Out.Write([]byte{byte(val)})
		}
	case RegIRQ:
		if val&1 != 0 {
			u.irqFlag = false // write-1-to-clear
		}
	case RegIRQEn:
		u.irqEn = val&1 != 0
	}
}

// IRQAsserted reports the live interrupt line: RX data pending and the
// enable bit set.
func (u *UART) IRQAsserted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.irqFlag && u.irqEn
}
