// Package intc implements the platform's interrupt controller: it
// aggregates device.IRQSource lines into a single external-interrupt
// signal for the core, with a status and mask register, grounded on
// original_source/DevXpsIntc.cc's level-OR-of-sources design.
package intc

import "sync"

const (
	RegStatus = 0x00 // bit N: source N is asserted (read-only, live level)
	RegMask   = 0x04 // bit N: source N's interrupt is enabled
)

// Source pairs a device's live interrupt line with the IRQ number the
// platform wired it to.
type Source struct {
	IRQ    uint
	Source interface{ IRQAsserted() bool }
}

// Intc ORs together up to 32 masked interrupt sources into one core-level
// external interrupt flag, polled by the runloop at block/instruction
// boundaries per spec's asynchronous-delivery model.
type Intc struct {
	mu      sync.Mutex
	sources []Source
	mask    uint32
}

func New() *Intc { return &Intc{} }

// Attach registers a device's interrupt line under the given IRQ number.
func (c *Intc) Attach(irq uint, src interface{ IRQAsserted() bool }) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, Source{IRQ: irq, Source: src})
}

func (c *Intc) status() uint32 {
	var st uint32
	for _, s := range c.sources {
		if s.Source.IRQAsserted() {
			st |= 1 << s.IRQ
		}
	}
	return st
}

// Pending reports whether any unmasked source is currently asserted; the
// runloop samples this once per boundary to drive CPU state's IRQFlag.
func (c *Intc) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()&c.mask != 0
}

func (c *Intc) SetProps(base, size uint32) {}

func (c *Intc) Read8(off uint32) uint8   { return uint8(c.read(off)) }
func (c *Intc) Read16(off uint32) uint16 { return uint16(c.read(off)) }
func (c *Intc) Read32(off uint32) uint32 { return c.read(off) }

func (c *Intc) read(off uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch off &^ 3 {
	case RegStatus:
		return c.status()
	case RegMask:
		return c.mask
	}
	return 0
}

func (c *Intc) Write8(off uint32, val uint8)   { c.write(off, uint32(val)) }
func (c *Intc) Write16(off uint32, val uint16) { c.write(off, uint32(val)) }
func (c *Intc) Write32(off uint32, val uint32) { c.write(off, val) }

func (c *Intc) write(off uint32, val uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if off&^3 == RegMask {
		c.mask = val
	}
}
