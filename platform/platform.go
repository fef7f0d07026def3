// Package platform wires a complete system together: the bus, the MMU,
// core state, the interpreter, the block cache, and Platform 1's devices
// (spec §6 / SPEC_FULL.md §12). Grounded on the teacher's per-model
// construction in config/configparser's RegisterModel idiom, adapted here
// from a declarative file format to a single Go constructor since
// MattRISC has no file-based channel configuration to parse.
package platform

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattrisc/iss/arch"
	"github.com/mattrisc/iss/blockcache"
	"github.com/mattrisc/iss/bus"
	"github.com/mattrisc/iss/config"
	"github.com/mattrisc/iss/cpu"
	"github.com/mattrisc/iss/devices/blockdev"
	"github.com/mattrisc/iss/devices/intc"
	"github.com/mattrisc/iss/devices/ram"
	"github.com/mattrisc/iss/devices/uart"
	"github.com/mattrisc/iss/interp"
	"github.com/mattrisc/iss/mmu"
	"github.com/mattrisc/iss/runloop"
)

// Platform 1's physical memory map (SPEC_FULL.md §12).
const (
	RAMBase  = 0x00000000
	RAMSize  = 512 << 20
	UARTBase = 0x80000000
	IntcBase = 0x80010000
	BlkBase  = 0x80020000
	blkSize  = 0x100
	numBlkDevs = 4

	uartIRQ  = 0
	blk0IRQ  = 1
)

// System bundles every constructed piece a caller (main, tests) needs to
// drive or inspect a running platform.
type System struct {
	Bus    *bus.Bus
	MMU    *mmu.MMU
	State  *cpu.State
	Interp *interp.Interp
	Loop   *runloop.Loop
	UART   *uart.UART
	Intc   *intc.Intc
	RAM    *ram.RAM

	blockFiles []*os.File
}

// Close releases any open block device image files.
func (s *System) Close() {
	for _, f := range s.blockFiles {
		_ = f.Close()
	}
}

// New constructs Platform 1 from a parsed Config: RAM with the ROM image
// loaded at load-addr, a UART writing to consoleOut (stdout if nil; it has
// no input feed), an interrupt controller aggregating the UART and
// up to len(cfg.BlockPaths) block devices, and a runloop in interpreter or
// block-cache mode per cfg.BlockMode.
func New(cfg *config.Config, log *slog.Logger, consoleOut io.Writer) (*System, error) {
	b := bus.New(log)
	m := mmu.New(b)
	s := cpu.New(m)

	r := ram.New(RAMSize)
	if err := b.Attach("ram", RAMBase, RAMSize, r); err != nil {
		return nil, err
	}

	if cfg.ROMPath != "" {
		data, err := os.ReadFile(cfg.ROMPath)
		if err != nil {
			return nil, fmt.Errorf("platform: read rom-path: %w", err)
		}
		r.LoadImage(cfg.LoadAddr-RAMBase, data)
	}

	if consoleOut == nil {
		consoleOut = os.Stdout
	}
	u := uart.New(log, consoleOut)
	if err := b.Attach("uart", UARTBase, 0x1000, u); err != nil {
		return nil, err
	}

	ic := intc.New()
	if err := b.Attach("intc", IntcBase, 0x1000, ic); err != nil {
		return nil, err
	}
	ic.Attach(uartIRQ, u)

	var blockFiles []*os.File
	for i, path := range cfg.BlockPaths {
		if i >= numBlkDevs {
			log.Warn("platform: ignoring extra block-path beyond the platform's device count", "path", path)
			break
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("platform: open block-path %q: %w", path, err)
		}
		blockFiles = append(blockFiles, f)
		dev := blockdev.New(log, b, f)
		base := uint32(BlkBase + i*blkSize)
		if err := b.Attach(fmt.Sprintf("blockdev%d", i), base, blkSize, dev); err != nil {
			return nil, err
		}
		ic.Attach(uint(blk0IRQ+i), dev)
	}

	// cfg.GPIOInputs only has an effect on platforms with a GPIO device;
	// Platform 1 has none (spec §6), so it is accepted and ignored here.
	s.PC = cfg.StartAddr
	s.MSR = cfg.StartMSR
	m.SetIRDR(cfg.StartMSR&arch.MsrIR != 0, cfg.StartMSR&arch.MsrDR != 0)

	ip := interp.New(s, b)
	if cfg.Disassemble {
		ip.Disassemble = func(pc, inst uint32, mnemonic string) {
			log.Debug("disass", "line", mnemonic)
		}
	}

	var cache *blockcache.Cache
	if cfg.BlockMode {
		cache = blockcache.New()
	}

	loop := runloop.New(ip, cache, ic)
	loop.InstrLimit = cfg.InstrLimit
	loop.DumpEvery = cfg.DumpStatePeriod
	loop.DumpState = func(st *cpu.State) {
		log.Debug("state dump", "state", st.String())
	}
	loop.Putc = func(b byte) {
		_, _ = consoleOut.Write([]byte{b})
	}

	return &System{
		Bus: b, MMU: m, State: s, Interp: ip, Loop: loop,
		UART: u, Intc: ic, RAM: r,
		blockFiles: blockFiles,
	}, nil
}
