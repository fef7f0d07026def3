// Package device defines the memory-mapped peripheral contract shared by
// everything attached to the bus: RAM, UART, the interrupt controller and
// the block devices.
package device

// Device is implemented by anything the bus can route a load or store to.
// Addresses passed to the accessors are already offset from the device's
// base (see bus.Bus.Attach), so a device never needs to know where in the
// physical address space it was placed.
type Device interface {
	// SetProps tells the device the base and size it was attached at, so
	// it can size internal backing storage (RAM) or validate offsets.
	SetProps(base, size uint32)

	Read8(off uint32) uint8
	Read16(off uint32) uint16
	Read32(off uint32) uint32

	Write8(off uint32, val uint8)
	Write16(off uint32, val uint16)
	Write32(off uint32, val uint32)
}

// DirectMappable is implemented by devices that can hand the bus a stable
// host-memory window for a range of their address space (RAM, ROM), letting
// bulk-copy paths skip the per-access dispatch.
type DirectMappable interface {
	// DirectMap returns the host byte slice backing [off, off+size), and
	// true if such a mapping exists for the whole range. Devices with
	// side-effecting registers (UART, intc) return false always.
	DirectMap(off, size uint32) ([]byte, bool)
}

// IRQSource is implemented by devices that can raise a level-triggered
// interrupt line into the interrupt controller.
type IRQSource interface {
	// IRQAsserted reports whether this device currently wants service.
	IRQAsserted() bool
}
