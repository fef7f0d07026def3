// Package bus implements the flat physical-address router that sits
// between the core/MMU and the attached devices.
package bus

import (
	"fmt"
	"log/slog"

	"github.com/mattrisc/iss/device"
)

// maxRegions bounds the routing table, matching the original's fixed-size
// device list (spec §4.2).
const maxRegions = 32

type region struct {
	base, size uint32
	dev        device.Device
	name       string
}

func (r *region) contains(addr uint32) bool {
	return addr >= r.base && addr < r.base+r.size
}

// Bus routes byte/half/word accesses to the device occupying each physical
// address range. Lookups use a one-entry "last hit" shortcut before
// falling back to a linear scan, following the original's region-list
// design (original_source/Bus.h, Bus.cc) rewritten against the Go
// device.Device interface.
type Bus struct {
	log     *slog.Logger
	regions []*region
	lastHit *region
}

// New creates an empty bus.
func New(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

// Attach registers a device over [base, base+size). Overlapping regions are
// rejected: the original treats overlapping device ranges as a
// configuration error, not something to silently shadow.
func (b *Bus) Attach(name string, base, size uint32, dev device.Device) error {
	if len(b.regions) >= maxRegions {
		return fmt.Errorf("bus: region table full, cannot attach %q", name)
	}
	for _, r := range b.regions {
		if base < r.base+r.size && r.base < base+size {
			return fmt.Errorf("bus: %q at [%#x,%#x) overlaps %q at [%#x,%#x)",
				name, base, base+size, r.name, r.base, r.base+r.size)
		}
	}
	dev.SetProps(base, size)
	r := &region{base: base, size: size, dev: dev, name: name}
	b.regions = append(b.regions, r)
	if b.log != nil {
		b.log.Debug("bus: attached device", "name", name, "base", fmt.Sprintf("%#08x", base), "size", size)
	}
	return nil
}

// find locates the region owning addr, consulting the last-hit shortcut
// first since real firmware tends to hammer one device (RAM or UART)
// across consecutive accesses.
func (b *Bus) find(addr uint32) *region {
	if b.lastHit != nil && b.lastHit.contains(addr) {
		return b.lastHit
	}
	for _, r := range b.regions {
		if r.contains(addr) {
			b.lastHit = r
			return r
		}
	}
	return nil
}

// UnmappedAccess is returned when an access hits no region. It is not an
// architectural fault: the interpreter propagates it as a plain error and
// the runloop terminates on it, the Go shape of the original's FATAL on a
// bus miss.
type UnmappedAccess struct {
	Addr  uint32
	Write bool
}

func (e *UnmappedAccess) Error() string {
	dir := "read"
	if e.Write {
		dir = "write"
	}
	return fmt.Sprintf("bus: unmapped %s at %#08x", dir, e.Addr)
}

func (b *Bus) Read8(addr uint32) (uint8, error) {
	r := b.find(addr)
	if r == nil {
		return 0, &UnmappedAccess{Addr: addr}
	}
	return r.dev.Read8(addr - r.base), nil
}

func (b *Bus) Read16(addr uint32) (uint16, error) {
	r := b.find(addr)
	if r == nil {
		return 0, &UnmappedAccess{Addr: addr}
	}
	return r.dev.Read16(addr - r.base), nil
}

func (b *Bus) Read32(addr uint32) (uint32, error) {
	r := b.find(addr)
	if r == nil {
		return 0, &UnmappedAccess{Addr: addr}
	}
	return r.dev.Read32(addr - r.base), nil
}

func (b *Bus) Write8(addr uint32, val uint8) error {
	r := b.find(addr)
	if r == nil {
		return &UnmappedAccess{Addr: addr, Write: true}
	}
	r.dev.Write8(addr-r.base, val)
	return nil
}

func (b *Bus) Write16(addr uint32, val uint16) error {
	r := b.find(addr)
	if r == nil {
		return &UnmappedAccess{Addr: addr, Write: true}
	}
	r.dev.Write16(addr-r.base, val)
	return nil
}

func (b *Bus) Write32(addr uint32, val uint32) error {
	r := b.find(addr)
	if r == nil {
		return &UnmappedAccess{Addr: addr, Write: true}
	}
	r.dev.Write32(addr-r.base, val)
	return nil
}

// DirectMap returns a host-backed slice for [addr, addr+size) when the
// owning device supports it (RAM/ROM) and the whole range falls within one
// region. The MMU uses this to tag RAM-backed pages in its micro-TLB, and
// statesave to copy RAM out in bulk.
func (b *Bus) DirectMap(addr, size uint32) ([]byte, bool) {
	r := b.find(addr)
	if r == nil || addr+size > r.base+r.size {
		return nil, false
	}
	dm, ok := r.dev.(device.DirectMappable)
	if !ok {
		return nil, false
	}
	return dm.DirectMap(addr-r.base, size)
}

// Devices returns the attached device names in attach order, used by the
// state-save and command packages to enumerate peripherals.
func (b *Bus) Devices() []string {
	names := make([]string, len(b.regions))
	for i, r := range b.regions {
		names[i] = r.name
	}
	return names
}
