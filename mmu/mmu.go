// Package mmu implements the segmented hashed-page-table memory management
// unit: BATs, segment registers, the HTAB hash walk and a direct-mapped
// micro-TLB cache in front of it, grounded directly on
// original_source/PPCMMU.h, PPCMMU.cc and PPCMMU_utlb_dm.h.
package mmu

// Fault is the taxonomy of translation faults a memory access can take.
type Fault int

const (
	FaultNone Fault = iota
	FaultNoPage
	FaultNoSegment
	FaultPerms
	FaultPermsNX
	FaultAlign
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultNoPage:
		return "no-page"
	case FaultNoSegment:
		return "no-segment"
	case FaultPerms:
		return "perms"
	case FaultPermsNX:
		return "perms-nx"
	case FaultAlign:
		return "align"
	default:
		return "unknown"
	}
}

const numBATs = 8
const numSegs = 16

type bat struct {
	bepi    uint32
	blShift uint32
	vs, vp  bool
	brpn    uint32
	wimg    uint32
	pp      uint32
}

type seg struct {
	vsid   uint32
	ks, kp bool
	n      bool
}

type perms struct {
	r, w, clean bool
}

func (p perms) field() uint8 {
	var f uint8
	if p.r {
		f |= 1
	}
	if p.w {
		f |= 2
	}
	if p.clean {
		f |= 4
	}
	return f
}

func fieldPerms(f uint8) perms {
	return perms{r: f&1 != 0, w: f&2 != 0, clean: f&4 != 0}
}

const utlbEntries = 128
const utlbValid = 1 << 1
const utlbTR = 1 << 0

type utlbEntry struct {
	ea uint32 // bit0 TR, bit1 valid, rest is EA page tag
	pa uint64 // low byte carries perms field; bit63 marks "not direct-mapped"
}

const paIOBit = uint64(1) << 63

func (e utlbEntry) valid() bool  { return e.ea&utlbValid != 0 }
func (e utlbEntry) permsF() uint8 { return uint8(e.pa & 0xff) }
func (e utlbEntry) pa_() uint64  { return e.pa &^ 0xfff }

func idx(addr uint32) uint32 { return (addr >> 12) & (utlbEntries - 1) }

// DirectMapper is satisfied by bus.Bus. The MMU calls DirectMap only to tag
// each micro-TLB entry as RAM-backed or I/O; HTAB walks use the Read/Write
// methods.
type DirectMapper interface {
	DirectMap(addr, size uint32) ([]byte, bool)
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, val uint8) error
	Write16(addr uint32, val uint16) error
	Write32(addr uint32, val uint32) error
}

// MMU translates effective addresses to physical addresses for a single
// core, caching recent translations in a per-{I,D}x{priv,user} direct-mapped
// micro-TLB.
type MMU struct {
	bus DirectMapper

	enabledI, enabledD bool

	htabPhys uint32
	htabMask uint32

	ibat, dbat [numBATs]bat
	segs       [numSegs]seg

	piUTLB, pdUTLB, uiUTLB, udUTLB [utlbEntries]utlbEntry

	generation uint32
}

// New creates an MMU bound to the physical bus it translates into.
func New(b DirectMapper) *MMU {
	return &MMU{bus: b}
}

func (m *MMU) selectUTLB(instr, priv bool) *[utlbEntries]utlbEntry {
	switch {
	case priv && instr:
		return &m.piUTLB
	case priv && !instr:
		return &m.pdUTLB
	case !priv && instr:
		return &m.uiUTLB
	default:
		return &m.udUTLB
	}
}

func (m *MMU) invalidateI() { m.piUTLB = [utlbEntries]utlbEntry{}; m.uiUTLB = [utlbEntries]utlbEntry{} }
func (m *MMU) invalidateD() { m.pdUTLB = [utlbEntries]utlbEntry{}; m.udUTLB = [utlbEntries]utlbEntry{} }

// GenCount returns the MMU state generation, bumped on every operation that
// can change a translation; the block cache uses this to know when cached
// blocks may have become invalid.
func (m *MMU) GenCount() uint32 { return m.generation }

// SetIRDR updates the live MSR.IR/DR bits that gate whether translation is
// active at all.
func (m *MMU) SetIRDR(ir, dr bool) {
	m.enabledI = ir
	m.enabledD = dr
}

func (m *MMU) SetSDR1(val uint32) {
	m.htabPhys = val & 0xffff0000
	m.htabMask = val & 0x1ff
	m.invalidateI()
	m.invalidateD()
	m.generation++
}

func fls(x uint32) uint32 {
	if x == 0 {
		return 0
	}
	n := uint32(0)
	for x != 0 {
		x >>= 1
		n++
	}
	return n
}

func (m *MMU) SetIBATUpper(n uint, val uint32) {
	m.ibat[n].bepi = val & 0xfffe0000
	m.ibat[n].blShift = fls((val >> 2) & 0x7ff)
	m.ibat[n].vs = val&2 != 0
	m.ibat[n].vp = val&1 != 0
	m.invalidateI()
	m.generation++
}

func (m *MMU) SetIBATLower(n uint, val uint32) {
	m.ibat[n].brpn = val & 0xfffe0000
	m.ibat[n].wimg = val & 0x78
	m.ibat[n].pp = val & 3
	m.invalidateI()
	m.generation++
}

func (m *MMU) SetDBATUpper(n uint, val uint32) {
	m.dbat[n].bepi = val & 0xfffe0000
	m.dbat[n].blShift = fls((val >> 2) & 0x7ff)
	m.dbat[n].vs = val&2 != 0
	m.dbat[n].vp = val&1 != 0
	m.invalidateD()
	m.generation++
}

func (m *MMU) SetDBATLower(n uint, val uint32) {
	m.dbat[n].brpn = val & 0xfffe0000
	m.dbat[n].wimg = val & 0x78
	m.dbat[n].pp = val & 3
	m.invalidateD()
	m.generation++
}

func (m *MMU) GetIBATUpper(n uint) uint32 {
	b := m.ibat[n]
	r := b.bepi | ((1 << b.blShift) - 1) << 2
	if b.vs {
		r |= 2
	}
	if b.vp {
		r |= 1
	}
	return r
}

func (m *MMU) GetIBATLower(n uint) uint32 { b := m.ibat[n]; return b.brpn | b.wimg | b.pp }

func (m *MMU) GetDBATUpper(n uint) uint32 {
	b := m.dbat[n]
	r := b.bepi | ((1 << b.blShift) - 1) << 2
	if b.vs {
		r |= 2
	}
	if b.vp {
		r |= 1
	}
	return r
}

func (m *MMU) GetDBATLower(n uint) uint32 { b := m.dbat[n]; return b.brpn | b.wimg | b.pp }

func (m *MMU) SetSegmentReg(n uint, val uint32) {
	m.segs[n] = seg{
		vsid: val & 0x00ffffff,
		ks:   val&(1<<30) != 0,
		kp:   val&(1<<29) != 0,
		n:    val&(1<<28) != 0,
	}
	m.invalidateI()
	m.invalidateD()
	m.generation++
}

func (m *MMU) GetSegmentReg(n uint) uint32 {
	s := m.segs[n]
	r := s.vsid
	if s.ks {
		r |= 1 << 30
	}
	if s.kp {
		r |= 1 << 29
	}
	if s.n {
		r |= 1 << 28
	}
	return r
}

// TLBIA invalidates every micro-TLB entry (all HTAB/BAT translations).
func (m *MMU) TLBIA() {
	m.invalidateI()
	m.invalidateD()
	m.generation++
}

// TLBIE invalidates for a specific effective address. The micro-TLB is not
// tagged finely enough to target one entry cheaply, so (as the original
// notes as a FIXME) this conservatively flushes everything.
func (m *MMU) TLBIE(_ uint32) {
	m.invalidateI()
	m.invalidateD()
	m.generation++
}

func (m *MMU) checkPerms(p perms, write, instr bool) bool {
	if instr || !write {
		return p.r
	}
	return p.w && !p.clean
}

func (m *MMU) checkFaultWasCleanliness(p perms, write, instr bool) bool {
	return write && !instr && p.w && p.clean
}

// Translate resolves an effective address to a physical address for the
// given access (instr fetch vs data, read vs write, privileged vs not). It
// consults the micro-TLB, falling back to a full BAT/HTAB walk on a miss.
func (m *MMU) Translate(ea uint32, instr, write, priv bool) (pa uint32, fault Fault, ok bool) {
	pa64, f, ok := m.translateAddr(ea, instr, write, priv)
	if !ok {
		return 0, f, false
	}
	return uint32(pa64), FaultNone, true
}

func (m *MMU) translateAddr(ea uint32, instr, write, priv bool) (uint64, Fault, bool) {
	if pa, p, hit := m.utlbLookup(instr, priv, ea); hit {
		if !m.checkPerms(p, write, instr) {
			if m.checkFaultWasCleanliness(p, write, instr) {
				// Re-walk for write to pick up the C-bit update.
			} else {
				return 0, FaultPerms, false
			}
		} else {
			return pa, FaultNone, true
		}
	}

	pa, p, fault, ok := m.translateEA(ea, instr, write, priv)
	if !ok {
		return 0, fault, false
	}
	if !m.checkPerms(p, write, instr) {
		if m.checkFaultWasCleanliness(p, write, instr) {
			pa, p, fault, ok = m.translateEA(ea, instr, write, priv)
			if !ok {
				return 0, fault, false
			}
		} else {
			return 0, FaultPerms, false
		}
	}
	return pa, FaultNone, true
}

func (m *MMU) utlbLookup(instr, priv bool, ea uint32) (uint64, perms, bool) {
	tbl := m.selectUTLB(instr, priv)
	e := tbl[idx(ea)]
	tr := uint32(0)
	if instr && m.enabledI || !instr && m.enabledD {
		tr = utlbTR
	}
	findEA := (ea &^ 0xfff) | utlbValid | tr
	if e.ea != findEA {
		return 0, perms{}, false
	}
	return e.pa_() | uint64(ea&0xfff), fieldPerms(e.permsF()), true
}

func (m *MMU) utlbInsert(instr, priv bool, ea uint32, outAddr uint32, p perms) {
	tbl := m.selectUTLB(instr, priv)
	var hostPA uint64
	if _, ok := m.bus.DirectMap(outAddr&^0xfff, 0x1000); ok {
		hostPA = uint64(outAddr) &^ 0xfff
	} else {
		hostPA = (uint64(outAddr) &^ 0xfff) | paIOBit
	}
	tr := uint32(0)
	if instr && m.enabledI || !instr && m.enabledD {
		tr = utlbTR
	}
	tbl[idx(ea)] = utlbEntry{
		ea: (ea &^ 0xfff) | tr | utlbValid,
		pa: hostPA | uint64(p.field()),
	}
}

// translateEA performs the full BAT-then-HTAB walk described by
// original_source/PPCMMU.cc:translateEA, inserting the resulting
// translation into the micro-TLB on success.
func (m *MMU) translateEA(ea uint32, instr, write, priv bool) (uint64, perms, Fault, bool) {
	enabled := m.enabledD
	if instr {
		enabled = m.enabledI
	}
	if !enabled {
		p := perms{r: true, w: true}
		m.utlbInsert(instr, priv, ea, ea, p)
		return uint64(ea), p, FaultNone, true
	}

	if pa, p, hit := m.matchBAT(ea, instr, priv); hit {
		if !p.r && !p.w {
			return 0, perms{}, FaultPerms, false
		}
		m.utlbInsert(instr, priv, ea, pa, p)
		return uint64(pa), p, FaultNone, true
	}

	s := m.segs[(ea>>28)&0xf]
	if instr && s.n {
		return 0, perms{}, FaultPermsNX, false
	}

	pgidx := (ea >> 12) & 0xffff
	api := pgidx >> 10

	hashfn := (s.vsid & 0x7ffff) ^ pgidx
	wantH := uint32(0)

	for walk := 0; walk < 2; walk++ {
		priAddr := m.htabPhys | ((hashfn << 6) & ((m.htabMask << 16) | 0xffc0))

		for pte := 0; pte < 8; pte++ {
			pteAddr := priAddr + uint32(pte)*8
			ptel, err := m.bus.Read32(pteAddr)
			if err != nil {
				return 0, perms{}, FaultNoPage, false
			}
			const pteV = 0x80000000
			if ptel&pteV != 0 && (ptel&pteH) == wantH &&
				(ptel&0x7fffff80) == (s.vsid<<7) && (ptel&0x3f) == api {

				pteh, err := m.bus.Read32(pteAddr + 4)
				if err != nil {
					return 0, perms{}, FaultNoPage, false
				}
				r := pteh&0x100 != 0
				c := pteh&0x80 != 0
				pp := pteh & 3
				rpn := pteh & 0xfffff000

				uw := (!s.kp && pp < 3) || (s.kp && pp == 2)
				kw := (!s.ks && pp < 3) || (s.ks && pp == 2)

				var p perms
				if priv {
					p.r = !(s.ks && pp == 0)
					p.w = kw
				} else {
					p.r = !(s.kp && pp == 0)
					p.w = uw
				}
				p.clean = !c

				updateR := !r
				updateC := false
				if write && priv && kw && !c {
					updateC = true
					c = true
				}
				if write && !priv && uw && !c {
					updateC = true
					c = true
				}
				if updateR || updateC {
					if updateC {
						pteh |= 0x180
					} else {
						pteh |= 0x100
					}
					_ = m.bus.Write32(pteAddr+4, pteh)
				}

				out := rpn | (ea & 0xfff)
				m.utlbInsert(instr, priv, ea, out, p)
				return uint64(out), p, FaultNone, true
			}
		}
		hashfn = ^hashfn
		wantH = pteH
	}

	return 0, perms{}, FaultNoPage, false
}

const pteH = 0x00000040

// matchBAT checks the appropriate BAT array (IBAT for instruction fetches,
// DBAT otherwise) for a block match. A match with pp==0 still returns
// true/true-ish perms-all-false, which the caller turns into FAULT_PERMS.
func (m *MMU) matchBAT(ea uint32, instr, priv bool) (uint32, perms, bool) {
	tab := &m.dbat
	if instr {
		tab = &m.ibat
	}
	for i := 0; i < numBATs; i++ {
		b := &tab[i]
		if priv && !b.vs {
			continue
		}
		if !priv && !b.vp {
			continue
		}
		amask := uint32(0xfffe0000) << b.blShift
		if (ea^b.bepi)&amask != 0 {
			continue
		}
		if b.pp == 0 {
			return 0, perms{}, true
		}
		out := b.brpn | (ea &^ amask)
		p := perms{r: true}
		if b.pp == 2 {
			p.w = true
		}
		return out, p, true
	}
	return 0, perms{}, false
}
