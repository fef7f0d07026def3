package interp

func (ip *Interp) logicalImm(inst uint32, shifted bool, op func(a, b uint32) uint32, dot bool) (result, error) {
	s := ip.S
	imm := uimm(inst)
	if shifted {
		imm <<= 16
	}
	v := op(s.GPR[rS(inst)], imm)
	s.GPR[rA(inst)] = v
	if dot {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execOri(inst uint32) (result, error) {
	return ip.logicalImm(inst, false, func(a, b uint32) uint32 { return a | b }, false)
}
func (ip *Interp) execOris(inst uint32) (result, error) {
	return ip.logicalImm(inst, true, func(a, b uint32) uint32 { return a | b }, false)
}
func (ip *Interp) execXori(inst uint32) (result, error) {
	return ip.logicalImm(inst, false, func(a, b uint32) uint32 { return a ^ b }, false)
}
func (ip *Interp) execXoris(inst uint32) (result, error) {
	return ip.logicalImm(inst, true, func(a, b uint32) uint32 { return a ^ b }, false)
}
func (ip *Interp) execAndiDot(inst uint32) (result, error) {
	return ip.logicalImm(inst, false, func(a, b uint32) uint32 { return a & b }, true)
}
func (ip *Interp) execAndisDot(inst uint32) (result, error) {
	return ip.logicalImm(inst, true, func(a, b uint32) uint32 { return a & b }, true)
}

func (ip *Interp) logicalReg(inst uint32, op func(a, b uint32) uint32) (result, error) {
	s := ip.S
	v := op(s.GPR[rS(inst)], s.GPR[rB(inst)])
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execAnd(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return a & b })
}
func (ip *Interp) execOr(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return a | b })
}
func (ip *Interp) execXor(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return a ^ b })
}
func (ip *Interp) execNand(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return ^(a & b) })
}
func (ip *Interp) execNor(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return ^(a | b) })
}
func (ip *Interp) execAndc(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return a &^ b })
}
func (ip *Interp) execOrc(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return a | ^b })
}
func (ip *Interp) execEqv(inst uint32) (result, error) {
	return ip.logicalReg(inst, func(a, b uint32) uint32 { return ^(a ^ b) })
}

func (ip *Interp) execExtsb(inst uint32) (result, error) {
	s := ip.S
	v := uint32(int32(int8(s.GPR[rS(inst)])))
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execExtsh(inst uint32) (result, error) {
	s := ip.S
	v := uint32(int32(int16(s.GPR[rS(inst)])))
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execCntlzw(inst uint32) (result, error) {
	s := ip.S
	x := s.GPR[rS(inst)]
	n := uint32(0)
	for n < 32 && x&(0x80000000>>n) == 0 {
		n++
	}
	s.GPR[rA(inst)] = n
	if rcBit(inst) {
		ip.setCR0(n)
	}
	return result{}, nil
}

func rotl32(x, s uint32) uint32 {
	s &= 31
	return (x << s) | (x >> (32 - s))
}

// maskFromMB_ME builds the PowerPC rotate-mask: a run of 1 bits from mb to
// me inclusive (IBM bit order), wrapping if mb > me, as used by
// rlwinm/rlwimi/rlwnm.
func maskFromMBME(mb, me uint32) uint32 {
	var m uint32
	if mb <= me {
		for i := mb; i <= me; i++ {
			m |= 0x80000000 >> i
		}
	} else {
		for i := uint32(0); i <= me; i++ {
			m |= 0x80000000 >> i
		}
		for i := mb; i < 32; i++ {
			m |= 0x80000000 >> i
		}
	}
	return m
}

func (ip *Interp) execRlwinm(inst uint32) (result, error) {
	s := ip.S
	sh := rB(inst)
	mb := (inst >> 6) & 0x1f
	me := (inst >> 1) & 0x1f
	v := rotl32(s.GPR[rS(inst)], sh) & maskFromMBME(mb, me)
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execRlwimi(inst uint32) (result, error) {
	s := ip.S
	sh := rB(inst)
	mb := (inst >> 6) & 0x1f
	me := (inst >> 1) & 0x1f
	mask := maskFromMBME(mb, me)
	rot := rotl32(s.GPR[rS(inst)], sh)
	v := (s.GPR[rA(inst)] &^ mask) | (rot & mask)
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execRlwnm(inst uint32) (result, error) {
	s := ip.S
	sh := s.GPR[rB(inst)] & 0x1f
	mb := (inst >> 6) & 0x1f
	me := (inst >> 1) & 0x1f
	v := rotl32(s.GPR[rS(inst)], sh) & maskFromMBME(mb, me)
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execSlw(inst uint32) (result, error) {
	s := ip.S
	sh := s.GPR[rB(inst)]
	var v uint32
	if sh&0x20 == 0 {
		v = s.GPR[rS(inst)] << (sh & 0x1f)
	}
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execSrw(inst uint32) (result, error) {
	s := ip.S
	sh := s.GPR[rB(inst)]
	var v uint32
	if sh&0x20 == 0 {
		v = s.GPR[rS(inst)] >> (sh & 0x1f)
	}
	s.GPR[rA(inst)] = v
	if rcBit(inst) {
		ip.setCR0(v)
	}
	return result{}, nil
}

func (ip *Interp) execSraw(inst uint32) (result, error) {
	s := ip.S
	sh := s.GPR[rB(inst)]
	src := int32(s.GPR[rS(inst)])
	var v int32
	var ca bool
	if sh&0x20 != 0 {
		if src < 0 {
			v = -1
			ca = true
		}
	} else {
		n := sh & 0x1f
		v = src >> n
		if src < 0 && (uint32(src)<<(32-n)) != 0 {
			ca = true
		}
	}
	s.GPR[rA(inst)] = uint32(v)
	ip.setXERCA(ca)
	if rcBit(inst) {
		ip.setCR0(uint32(v))
	}
	return result{}, nil
}

func (ip *Interp) execSrawi(inst uint32) (result, error) {
	s := ip.S
	n := rB(inst)
	src := int32(s.GPR[rS(inst)])
	v := src >> n
	ca := src < 0 && n > 0 && (uint32(src)<<(32-n)) != 0
	s.GPR[rA(inst)] = uint32(v)
	ip.setXERCA(ca)
	if rcBit(inst) {
		ip.setCR0(uint32(v))
	}
	return result{}, nil
}
