package interp

// addOvCoCi mirrors inst_utility.h's ADD_OV_CO_CI: a 33-bit add producing
// carry-out and the PowerPC-specific signed-overflow test (both operands
// same sign, result differs).
func addOvCoCi(a, b, ci uint32) (val uint32, ov bool, co bool) {
	r := uint64(a) + uint64(b) + uint64(ci)
	co = r&0x100000000 != 0
	val = uint32(r)
	sa := a&0x80000000 != 0
	sb := b&0x80000000 != 0
	sr := val&0x80000000 != 0
	ov = (!sa && !sb && sr) || (sa && sb && !sr)
	return
}

func (ip *Interp) execAddi(inst uint32, shifted bool) (result, error) {
	s := ip.S
	a := rA(inst)
	var base int32
	if a != 0 {
		base = int32(s.GPR[a])
	}
	imm := simm(inst)
	if shifted {
		imm <<= 16
	}
	s.GPR[rD(inst)] = uint32(base + imm)
	return result{}, nil
}

func (ip *Interp) execAddic(inst uint32, dot bool) (result, error) {
	s := ip.S
	val, _, ca := addOvCoCi(s.GPR[rA(inst)], uint32(simm(inst)), 0)
	s.GPR[rD(inst)] = val
	ip.setXERCA(ca)
	if dot {
		ip.setCR0(val)
	}
	return result{}, nil
}

func (ip *Interp) execSubfic(inst uint32) (result, error) {
	s := ip.S
	val, _, ca := addOvCoCi(^s.GPR[rA(inst)], uint32(simm(inst)), 1)
	s.GPR[rD(inst)] = val
	ip.setXERCA(ca)
	return result{}, nil
}

func (ip *Interp) execMulli(inst uint32) (result, error) {
	s := ip.S
	s.GPR[rD(inst)] = uint32(int32(s.GPR[rA(inst)]) * simm(inst))
	return result{}, nil
}

func (ip *Interp) threeReg(inst uint32, compute func(a, b uint32) (uint32, bool)) (result, error) {
	s := ip.S
	v, ov := compute(s.GPR[rA(inst)], s.GPR[rB(inst)])
	s.GPR[rD(inst)] = v
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execAdd(inst uint32) (result, error) {
	return ip.threeReg(inst, func(a, b uint32) (uint32, bool) {
		v, ov, _ := addOvCoCi(a, b, 0)
		return v, ov
	})
}

func (ip *Interp) execAddc(inst uint32) (result, error) {
	s := ip.S
	v, ov, ca := addOvCoCi(s.GPR[rA(inst)], s.GPR[rB(inst)], 0)
	s.GPR[rD(inst)] = v
	ip.setXERCA(ca)
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execAdde(inst uint32) (result, error) {
	s := ip.S
	ci := uint32(0)
	if s.XER&0x20000000 != 0 {
		ci = 1
	}
	v, ov, ca := addOvCoCi(s.GPR[rA(inst)], s.GPR[rB(inst)], ci)
	s.GPR[rD(inst)] = v
	ip.setXERCA(ca)
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execSubf(inst uint32) (result, error) {
	return ip.threeReg(inst, func(a, b uint32) (uint32, bool) {
		v, ov, _ := addOvCoCi(^a, b, 1)
		return v, ov
	})
}

func (ip *Interp) execSubfc(inst uint32) (result, error) {
	s := ip.S
	v, ov, ca := addOvCoCi(^s.GPR[rA(inst)], s.GPR[rB(inst)], 1)
	s.GPR[rD(inst)] = v
	ip.setXERCA(ca)
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execSubfe(inst uint32) (result, error) {
	s := ip.S
	ci := uint32(0)
	if s.XER&0x20000000 != 0 {
		ci = 1
	}
	v, ov, ca := addOvCoCi(^s.GPR[rA(inst)], s.GPR[rB(inst)], ci)
	s.GPR[rD(inst)] = v
	ip.setXERCA(ca)
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

// carryArith is the shared body of the ze/me forms (addze/addme/subfze/
// subfme): rD = a + b + XER.CA, with the usual CA/OV/CR0 side effects.
func (ip *Interp) carryArith(inst uint32, a, b uint32) (result, error) {
	s := ip.S
	ci := uint32(0)
	if s.XER&0x20000000 != 0 {
		ci = 1
	}
	v, ov, ca := addOvCoCi(a, b, ci)
	s.GPR[rD(inst)] = v
	ip.setXERCA(ca)
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execAddze(inst uint32) (result, error) {
	return ip.carryArith(inst, ip.S.GPR[rA(inst)], 0)
}

func (ip *Interp) execAddme(inst uint32) (result, error) {
	return ip.carryArith(inst, ip.S.GPR[rA(inst)], 0xffffffff)
}

func (ip *Interp) execSubfze(inst uint32) (result, error) {
	return ip.carryArith(inst, ^ip.S.GPR[rA(inst)], 0)
}

func (ip *Interp) execSubfme(inst uint32) (result, error) {
	return ip.carryArith(inst, ^ip.S.GPR[rA(inst)], 0xffffffff)
}

func (ip *Interp) execNeg(inst uint32) (result, error) {
	s := ip.S
	a := s.GPR[rA(inst)]
	v := ^a + 1
	ov := a == 0x80000000
	s.GPR[rD(inst)] = v
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execMullw(inst uint32) (result, error) {
	return ip.threeReg(inst, func(a, b uint32) (uint32, bool) {
		r := int64(int32(a)) * int64(int32(b))
		v := uint32(r)
		ov := r != int64(int32(v))
		return v, ov
	})
}

func (ip *Interp) execMulhw(inst uint32) (result, error) {
	s := ip.S
	r := (int64(int32(s.GPR[rA(inst)])) * int64(int32(s.GPR[rB(inst)]))) >> 32
	v := uint32(r)
	s.GPR[rD(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execMulhwu(inst uint32) (result, error) {
	s := ip.S
	r := (uint64(s.GPR[rA(inst)]) * uint64(s.GPR[rB(inst)])) >> 32
	v := uint32(r)
	s.GPR[rD(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

// execDivw implements the 603-style results for the two signed-division
// edge cases (divide by zero, and MIN_INT/-1), per spec §4.5/§8: the
// MIN_INT/-1 overflow always yields 0x7FFFFFFF, while divide-by-zero
// yields 0x7FFFFFFF or 0x80000000 depending on the dividend's sign.
func (ip *Interp) execDivw(inst uint32) (result, error) {
	s := ip.S
	a := int32(s.GPR[rA(inst)])
	b := int32(s.GPR[rB(inst)])
	var v int32
	minOverMinus1 := a == -0x80000000 && b == -1
	ov := b == 0 || minOverMinus1
	switch {
	case b == 0:
		if a < 0 {
			v = -0x80000000
		} else {
			v = 0x7fffffff
		}
	case minOverMinus1:
		v = 0x7fffffff
	default:
		v = a / b
	}
	s.GPR[rD(inst)] = uint32(v)
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(uint32(v))
	}
	return result{}, nil
}

func (ip *Interp) execDivwu(inst uint32) (result, error) {
	s := ip.S
	a := s.GPR[rA(inst)]
	b := s.GPR[rB(inst)]
	var v uint32
	ov := b == 0
	if !ov {
		v = a / b
	}
	s.GPR[rD(inst)] = v
	if oeBit(inst) {
		ip.setXEROV(ov)
	}
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func cmpField(a, b int32, so bool) uint32 {
	var f uint32
	switch {
	case a < b:
		f = 8
	case a > b:
		f = 4
	default:
		f = 2
	}
	if so {
		f |= 1
	}
	return f
}

func cmpFieldU(a, b uint32, so bool) uint32 {
	var f uint32
	switch {
	case a < b:
		f = 8
	case a > b:
		f = 4
	default:
		f = 2
	}
	if so {
		f |= 1
	}
	return f
}

func (ip *Interp) writeCRField(n uint32, val uint32) {
	shift := (7 - n) * 4
	ip.S.CR = (ip.S.CR &^ (0xf << shift)) | ((val & 0xf) << shift)
}

func (ip *Interp) execCmpi(inst uint32) (result, error) {
	crf := rD(inst) >> 2
	so := ip.S.XER&0x80000000 != 0
	f := cmpField(int32(ip.S.GPR[rA(inst)]), int32(simm(inst)), so)
	ip.writeCRField(crf, f)
	return result{}, nil
}

func (ip *Interp) execCmpli(inst uint32) (result, error) {
	crf := rD(inst) >> 2
	so := ip.S.XER&0x80000000 != 0
	f := cmpFieldU(ip.S.GPR[rA(inst)], uimm(inst), so)
	ip.writeCRField(crf, f)
	return result{}, nil
}

func (ip *Interp) execCmp(inst uint32) (result, error) {
	crf := rD(inst) >> 2
	so := ip.S.XER&0x80000000 != 0
	f := cmpField(int32(ip.S.GPR[rA(inst)]), int32(ip.S.GPR[rB(inst)]), so)
	ip.writeCRField(crf, f)
	return result{}, nil
}

func (ip *Interp) execCmpl(inst uint32) (result, error) {
	crf := rD(inst) >> 2
	so := ip.S.XER&0x80000000 != 0
	f := cmpFieldU(ip.S.GPR[rA(inst)], ip.S.GPR[rB(inst)], so)
	ip.writeCRField(crf, f)
	return result{}, nil
}
