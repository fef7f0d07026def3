// Package blockdev implements the synchronous-completion block device
// from spec §6: command / block-start / length / PA / completion
// registers, backed by a plain file, grounded on original_source/DevSBD.cc
// with the original's async DMA thread collapsed into an immediate
// same-call completion (spec §1 puts host back-ends out of scope; the
// only externally visible behaviour that matters is that the completion
// bit is set by the time the guest polls it).
package blockdev

import (
	"io"
	"log/slog"
)

// Register offsets.
const (
	RegCmd        = 0x00 // write: 1=read, 2=write; triggers the transfer
	RegBlockStart = 0x04 // block index (512-byte blocks)
	RegLength     = 0x08 // transfer length in blocks
	RegPA         = 0x0c // guest physical address of the transfer buffer
	RegStatus     = 0x10 // bit0: busy (always 0, synchronous); bit1: error
	RegIRQ        = 0x14 // bit0: completion IRQ, write-1-to-clear
	RegIRQEn      = 0x18
)

const blockSize = 512

const (
	cmdRead  = 1
	cmdWrite = 2
)

// Bus is the minimal physical-memory access the block device needs to
// DMA into/out of guest RAM; bus.Bus satisfies this directly.
type Bus interface {
	Read8(addr uint32) (uint8, error)
	Write8(addr uint32, val uint8) error
}

// BlockDevice backs a block-addressable image (disk image file, or any
// io.ReaderAt/WriterAt/Seeker) with the register contract above.
type BlockDevice struct {
	log   *slog.Logger
	bus   Bus
	image io.ReadWriteSeeker

	blockStart uint32
	length     uint32
	pa         uint32
	lastError  bool
	irqFlag    bool
	irqEn      bool
}

func New(log *slog.Logger, bus Bus, image io.ReadWriteSeeker) *BlockDevice {
	return &BlockDevice{log: log, bus: bus, image: image}
}

func (b *BlockDevice) SetProps(base, size uint32) {}

func (b *BlockDevice) Read8(off uint32) uint8   { return uint8(b.read(off)) }
func (b *BlockDevice) Read16(off uint32) uint16 { return uint16(b.read(off)) }
func (b *BlockDevice) Read32(off uint32) uint32 { return b.read(off) }

func (b *BlockDevice) read(off uint32) uint32 {
	switch off &^ 3 {
	case RegBlockStart:
		return b.blockStart
	case RegLength:
		return b.length
	case RegPA:
		return b.pa
	case RegStatus:
		var st uint32
		if b.lastError {
			st |= 2
		}
		return st
	case RegIRQ:
		if b.irqFlag {
			return 1
		}
	case RegIRQEn:
		if b.irqEn {
			return 1
		}
	}
	return 0
}

func (b *BlockDevice) Write8(off uint32, val uint8)   { b.write(off, uint32(val)) }
func (b *BlockDevice) Write16(off uint32, val uint16) { b.write(off, uint32(val)) }
func (b *BlockDevice) Write32(off uint32, val uint32) { b.write(off, val) }

func (b *BlockDevice) write(off uint32, val uint32) {
	switch off &^ 3 {
	case RegCmd:
		b.doCommand(val)
	case RegBlockStart:
		b.blockStart = val
	case RegLength:
		b.length = val
	case RegPA:
		b.pa = val
	case RegIRQ:
		if val&1 != 0 {
			b.irqFlag = false
		}
	case RegIRQEn:
		b.irqEn = val&1 != 0
	}
}

func (b *BlockDevice) doCommand(cmd uint32) {
	if b.image == nil {
		b.lastError = true
		b.irqFlag = true
		return
	}
	off := int64(b.blockStart) * blockSize
	n := int64(b.length) * blockSize

	b.lastError = false
	switch cmd {
	case cmdRead:
		if _, err := b.image.Seek(off, io.SeekStart); err != nil {
			b.lastError = true
			break
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(b.image, buf); err != nil && err != io.ErrUnexpectedEOF {
			b.lastError = true
			break
		}
		for i, by := range buf {
			if err := b.bus.Write8(b.pa+uint32(i), by); err != nil {
				b.lastError = true
				break
			}
		}
	case cmdWrite:
		buf := make([]byte, n)
		for i := range buf {
			v, err := b.bus.Read8(b.pa + uint32(i))
			if err != nil {
				b.lastError = true
				break
			}
			buf[i] = v
		}
		if !b.lastError {
			if _, err := b.image.Seek(off, io.SeekStart); err != nil {
				b.lastError = true
				break
			}
			if _, err := b.image.Write(buf); err != nil {
				b.lastError = true
			}
		}
	}
	b.irqFlag = true
}

func (b *BlockDevice) IRQAsserted() bool { return b.irqFlag && b.irqEn }
