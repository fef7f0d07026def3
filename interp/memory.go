package interp

import "github.com/mattrisc/iss/cpu"

func (ip *Interp) effectiveAddr(inst uint32, update bool) uint32 {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	return base + uint32(simm(inst))
}

// execLoad implements the d-form integer loads (lwz/lbz/lhz/lha and their
// update forms). signExtend applies to lha/lhau only.
func (ip *Interp) execLoad(inst uint32, size int, signExtend, update bool) (result, error) {
	s := ip.S
	ea := ip.effectiveAddr(inst, update)
	var val uint32
	switch size {
	case 1:
		v, exc := ip.load8(ea)
		if exc != nil {
			return result{}, exc
		}
		val = uint32(v)
	case 2:
		v, exc := ip.load16(ea)
		if exc != nil {
			return result{}, exc
		}
		if signExtend {
			val = uint32(int32(int16(v)))
		} else {
			val = uint32(v)
		}
	case 4:
		v, exc := ip.load32(ea)
		if exc != nil {
			return result{}, exc
		}
		val = v
	}
	s.GPR[rD(inst)] = val
	if update {
		s.GPR[rA(inst)] = ea
	}
	return result{}, nil
}

func (ip *Interp) execStore(inst uint32, size int, update bool) (result, error) {
	s := ip.S
	ea := ip.effectiveAddr(inst, update)
	val := s.GPR[rS(inst)]
	var exc error
	switch size {
	case 1:
		exc = ip.store8(ea, uint8(val))
	case 2:
		exc = ip.store16(ea, uint16(val))
	case 4:
		exc = ip.store32(ea, val)
	}
	if exc != nil {
		return result{}, exc
	}
	if update {
		s.GPR[rA(inst)] = ea
	}
	return result{}, nil
}

// execLoadX implements the x-form indexed loads (lwzx/lbzx/lhzx/lhax).
func (ip *Interp) execLoadX(inst uint32, size int, signExtend bool) (result, error) {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	ea := base + s.GPR[rB(inst)]
	var val uint32
	switch size {
	case 1:
		v, exc := ip.load8(ea)
		if exc != nil {
			return result{}, exc
		}
		val = uint32(v)
	case 2:
		v, exc := ip.load16(ea)
		if exc != nil {
			return result{}, exc
		}
		if signExtend {
			val = uint32(int32(int16(v)))
		} else {
			val = uint32(v)
		}
	case 4:
		v, exc := ip.load32(ea)
		if exc != nil {
			return result{}, exc
		}
		val = v
	}
	s.GPR[rD(inst)] = val
	return result{}, nil
}

func (ip *Interp) execStoreX(inst uint32, size int) (result, error) {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	ea := base + s.GPR[rB(inst)]
	val := s.GPR[rS(inst)]
	var exc error
	switch size {
	case 1:
		exc = ip.store8(ea, uint8(val))
	case 2:
		exc = ip.store16(ea, uint16(val))
	case 4:
		exc = ip.store32(ea, val)
	}
	if exc != nil {
		return result{}, exc
	}
	return result{}, nil
}

// execLwarx implements the load-and-reserve half of the atomic pair: it
// loads the word and records (addr, MMU generation) as the outstanding
// reservation, per spec's reservation invariant.
func (ip *Interp) execLwarx(inst uint32) (result, error) {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	ea := base + s.GPR[rB(inst)]
	v, exc := ip.load32(ea)
	if exc != nil {
		return result{}, exc
	}
	s.GPR[rD(inst)] = v
	s.Reservation = cpu.Reservation{Valid: true, Addr: ea, Generation: s.MMU.GenCount()}
	return result{}, nil
}

// execStwcx implements the conditional-store half: the store only commits
// if a reservation is still outstanding for this exact address and the MMU
// generation hasn't changed underneath it (any BAT/segment/HTAB/TLB
// maintenance bumps the generation and so invalidates the reservation).
// CR0 gets EQ set to reflect success, matching `stwcx.`'s mandatory Rc.
func (ip *Interp) execStwcx(inst uint32) (result, error) {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	ea := base + s.GPR[rB(inst)]

	ok := s.Reservation.Valid && s.Reservation.Addr == ea && s.Reservation.Generation == s.MMU.GenCount()
	if ok {
		if exc := ip.store32(ea, s.GPR[rS(inst)]); exc != nil {
			s.Reservation.Valid = false
			return result{}, exc
		}
	}
	s.Reservation.Valid = false

	// stwcx. sets CR0.EQ to reflect reservation success; LT/GT are 0.
	so := s.XER&0x80000000 != 0
	var f uint32
	if ok {
		f |= 2
	}
	if so {
		f |= 1
	}
	ip.writeCRField(0, f)
	return result{}, nil
}

func (ip *Interp) execLmw(inst uint32) (result, error) {
	s := ip.S
	ea := ip.effectiveAddr(inst, false)
	for r := rD(inst); r <= 31; r++ {
		v, exc := ip.load32(ea)
		if exc != nil {
			return result{}, exc
		}
		s.GPR[r] = v
		ea += 4
	}
	return result{}, nil
}

func (ip *Interp) execStmw(inst uint32) (result, error) {
	s := ip.S
	ea := ip.effectiveAddr(inst, false)
	for r := rS(inst); r <= 31; r++ {
		if exc := ip.store32(ea, s.GPR[r]); exc != nil {
			return result{}, exc
		}
		ea += 4
	}
	return result{}, nil
}

func (ip *Interp) indexedEA(inst uint32) uint32 {
	s := ip.S
	base := uint32(0)
	if a := rA(inst); a != 0 {
		base = s.GPR[a]
	}
	return base + s.GPR[rB(inst)]
}

func bswap32(v uint32) uint32 {
	return v<<24 | (v&0xff00)<<8 | (v>>8)&0xff00 | v>>24
}

func bswap16(v uint16) uint16 { return v<<8 | v>>8 }

// execLwbrx/execStwbrx and the halfword pair below are the byte-reversed
// accessors: the MMU-level helpers already big-endian-swap centrally, so
// these just swap once more on top.
func (ip *Interp) execLwbrx(inst uint32) (result, error) {
	v, exc := ip.load32(ip.indexedEA(inst))
	if exc != nil {
		return result{}, exc
	}
	ip.S.GPR[rD(inst)] = bswap32(v)
	return result{}, nil
}

func (ip *Interp) execStwbrx(inst uint32) (result, error) {
	if exc := ip.store32(ip.indexedEA(inst), bswap32(ip.S.GPR[rS(inst)])); exc != nil {
		return result{}, exc
	}
	return result{}, nil
}

func (ip *Interp) execLhbrx(inst uint32) (result, error) {
	v, exc := ip.load16(ip.indexedEA(inst))
	if exc != nil {
		return result{}, exc
	}
	ip.S.GPR[rD(inst)] = uint32(bswap16(v))
	return result{}, nil
}

func (ip *Interp) execSthbrx(inst uint32) (result, error) {
	if exc := ip.store16(ip.indexedEA(inst), bswap16(uint16(ip.S.GPR[rS(inst)]))); exc != nil {
		return result{}, exc
	}
	return result{}, nil
}

// cacheLineBytes is the architected dcbz line size.
const cacheLineBytes = 32

// execDcbz zeroes the cache line containing EA. With no data-cache model
// the line is simply stored as zero words through the normal store path,
// so a fault surfaces as an ordinary store DSI within the line.
func (ip *Interp) execDcbz(inst uint32) (result, error) {
	ea := ip.indexedEA(inst)
	line := ea &^ (cacheLineBytes - 1)
	for off := uint32(0); off < cacheLineBytes; off += 4 {
		if exc := ip.store32(line+off, 0); exc != nil {
			return result{}, exc
		}
	}
	return result{}, nil
}

// execIcbi implements icbi RA,RB: there is no separate I-cache model, so
// its only effect is to request a block-cache reset, per spec §4.6.
// The effective address itself is otherwise unused.
func (ip *Interp) execIcbi(inst uint32) (result, error) {
	ip.S.ICacheInvalidate = true
	return result{}, nil
}
