package interp

import "github.com/mattrisc/iss/arch"

// stringLoad (and stringStore below) walks nb bytes starting at ea into/out of GPRs starting at
// rt, big-endian-high within each register per spec §4.5's lswi/lswx/
// stswi/stswx contract: the final register of a non-multiple-of-4 transfer
// is partially filled, its remaining low-order bytes left at zero (load) or
// simply not transferred (store).
func (ip *Interp) stringLoad(rt, nb uint32, ea uint32) error {
	s := ip.S
	reg := rt
	shift := 24
	var cur uint32
	for i := uint32(0); i < nb; i++ {
		b, exc := ip.load8(ea)
		if exc != nil {
			return exc
		}
		cur |= uint32(b) << uint(shift)
		ea++
		shift -= 8
		if shift < 0 {
			s.GPR[reg] = cur
			cur = 0
			shift = 24
			reg = (reg + 1) % 32
		}
	}
	if shift != 24 {
		s.GPR[reg] = cur
	}
	return nil
}

func (ip *Interp) stringStore(rs, nb uint32, ea uint32) error {
	s := ip.S
	reg := rs
	shift := 24
	for i := uint32(0); i < nb; i++ {
		b := uint8(s.GPR[reg] >> uint(shift))
		if exc := ip.store8(ea, b); exc != nil {
			return exc
		}
		ea++
		shift -= 8
		if shift < 0 {
			shift = 24
			reg = (reg + 1) % 32
		}
	}
	return nil
}

// execLswi implements lswi RT,RA,NB: NB (0 means 32) bytes starting at EA
// (RA, or 0 if RA==0) load into consecutive GPRs starting at RT.
func (ip *Interp) execLswi(inst uint32) (result, error) {
	s := ip.S
	a := rA(inst)
	ea := uint32(0)
	if a != 0 {
		ea = s.GPR[a]
	}
	nb := crbB(inst)
	if nb == 0 {
		nb = 32
	}
	if exc := ip.stringLoad(rD(inst), nb, ea); exc != nil {
		return result{}, exc
	}
	return result{}, nil
}

// execLswx implements lswx RT,RA,RB: NB is taken from XER's low 7 bits
// (the STR field) rather than the instruction word.
func (ip *Interp) execLswx(inst uint32) (result, error) {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	ea := base + s.GPR[rB(inst)]
	nb := s.XER & arch.XerSTR
	if exc := ip.stringLoad(rD(inst), nb, ea); exc != nil {
		return result{}, exc
	}
	return result{}, nil
}

func (ip *Interp) execStswi(inst uint32) (result, error) {
	s := ip.S
	a := rA(inst)
	ea := uint32(0)
	if a != 0 {
		ea = s.GPR[a]
	}
	nb := crbB(inst)
	if nb == 0 {
		nb = 32
	}
	if exc := ip.stringStore(rS(inst), nb, ea); exc != nil {
		return result{}, exc
	}
	return result{}, nil
}

func (ip *Interp) execStswx(inst uint32) (result, error) {
	s := ip.S
	a := rA(inst)
	base := uint32(0)
	if a != 0 {
		base = s.GPR[a]
	}
	ea := base + s.GPR[rB(inst)]
	nb := s.XER & arch.XerSTR
	if exc := ip.stringStore(rS(inst), nb, ea); exc != nil {
		return result{}, exc
	}
	return result{}, nil
}
