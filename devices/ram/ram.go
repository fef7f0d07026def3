// Package ram implements a flat, host-backed RAM device: the common case
// for the bus's direct-map fast path, grounded on original_source/DevRAM.h
// and the teacher's now-retired emu/memory package's byte-addressed
// storage idiom.
package ram

import "encoding/binary"

// RAM is a big-endian-addressed block of host memory. PowerPC OEA is
// big-endian (little-endian is an explicit non-goal), so every multi-byte
// access is encoded/decoded through encoding/binary.BigEndian rather than
// reinterpreting host byte order.
type RAM struct {
	mem []byte
}

// New allocates size bytes of backing storage; size is typically fixed by
// the platform wiring (e.g. 512 MiB for Platform 1).
func New(size uint32) *RAM {
	return &RAM{mem: make([]byte, size)}
}

func (r *RAM) SetProps(base, size uint32) {
	if uint32(len(r.mem)) != size {
		r.mem = make([]byte, size)
	}
}

func (r *RAM) Read8(off uint32) uint8 { return r.mem[off] }
func (r *RAM) Read16(off uint32) uint16 {
	return binary.BigEndian.Uint16(r.mem[off:])
}
func (r *RAM) Read32(off uint32) uint32 {
	return binary.BigEndian.Uint32(r.mem[off:])
}

func (r *RAM) Write8(off uint32, val uint8) { r.mem[off] = val }
func (r *RAM) Write16(off uint32, val uint16) {
	binary.BigEndian.PutUint16(r.mem[off:], val)
}
func (r *RAM) Write32(off uint32, val uint32) {
	binary.BigEndian.PutUint32(r.mem[off:], val)
}

// DirectMap hands back the backing slice directly: RAM has no
// side-effecting registers, so bulk copies can read and write it without
// going through Read32/Write32.
func (r *RAM) DirectMap(off, size uint32) ([]byte, bool) {
	if uint64(off)+uint64(size) > uint64(len(r.mem)) {
		return nil, false
	}
	return r.mem[off : off+size], true
}

// LoadImage copies a ROM/firmware image into RAM starting at the given
// offset, used by platform setup to place a boot image before release.
func (r *RAM) LoadImage(off uint32, data []byte) {
	copy(r.mem[off:], data)
}
