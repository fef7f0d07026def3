package interp

import "github.com/mattrisc/iss/arch"

// condTaken evaluates the BO/BI branch-condition encoding shared by bc,
// bclr and bcctr, including the CTR-decrement side effect.
func (ip *Interp) condTaken(bo, bi uint32) bool {
	s := ip.S
	ctrOK := true
	if bo&0x04 == 0 {
		s.CTR--
		ctrOK = (s.CTR != 0) == (bo&0x02 == 0)
	}
	crBit := (s.CR>>(31-bi))&1 != 0
	condOK := bo&0x10 != 0 || crBit == (bo&0x08 != 0)
	return ctrOK && condOK
}

// haltOnSelfBranch implements spec §8's "branch-to-self with no pending
// work terminates the simulation": a branch whose target is its own
// address, taken with MSR.EE clear, can never again make forward
// progress (no external interrupt or decrementer can reach it), so the
// runloop is asked to stop instead of spinning forever.
func (ip *Interp) haltOnSelfBranch(instrPC, target uint32) {
	if target == instrPC && ip.S.MSR&arch.MsrEE == 0 {
		ip.S.ExitRequested = true
	}
}

func (ip *Interp) execB(inst uint32) (result, error) {
	s := ip.S
	instrPC := s.PC
	target := uint32(liField(inst))
	if !aaBit(inst) {
		target += s.PC
	}
	if lkBit(inst) {
		s.LR = s.PC + 4
	}
	s.PC = target
	ip.haltOnSelfBranch(instrPC, target)
	return result{branched: true}, nil
}

func (ip *Interp) execBC(inst uint32) (result, error) {
	s := ip.S
	instrPC := s.PC
	bo, bi := boField(inst), biField(inst)
	taken := ip.condTaken(bo, bi)
	next := s.PC + 4
	if taken {
		target := uint32(bdField(inst))
		if !aaBit(inst) {
			target += s.PC
		}
		if lkBit(inst) {
			s.LR = next
		}
		s.PC = target
		ip.haltOnSelfBranch(instrPC, target)
		return result{branched: true}, nil
	}
	if lkBit(inst) {
		s.LR = next
	}
	s.PC = next
	return result{branched: true}, nil
}

func (ip *Interp) execBclr(inst uint32) (result, error) {
	s := ip.S
	bo, bi := boField(inst), biField(inst)
	taken := ip.condTaken(bo, bi)
	next := s.PC + 4
	if taken {
		target := s.LR &^ 3
		if lkBit(inst) {
			s.LR = next
		}
		s.PC = target
		return result{branched: true}, nil
	}
	if lkBit(inst) {
		s.LR = next
	}
	s.PC = next
	return result{branched: true}, nil
}

func (ip *Interp) execBcctr(inst uint32) (result, error) {
	s := ip.S
	bo, bi := boField(inst), biField(inst)
	// bcctr never decrements CTR (BO bit 2 is forced set architecturally).
	crBit := (s.CR>>(31-bi))&1 != 0
	condOK := bo&0x10 != 0 || crBit == (bo&0x08 != 0)
	next := s.PC + 4
	if condOK {
		target := s.CTR &^ 3
		if lkBit(inst) {
			s.LR = next
		}
		s.PC = target
		return result{branched: true}, nil
	}
	if lkBit(inst) {
		s.LR = next
	}
	s.PC = next
	return result{branched: true}, nil
}

func (ip *Interp) execSC(inst uint32) (result, error) {
	exc := ip.S.RaiseSCException()
	return result{branched: true}, exc
}

func (ip *Interp) execRfi(inst uint32) (result, error) {
	ip.S.RFI()
	return result{branched: true}, nil
}

func (ip *Interp) execCRand(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return a && b })
}
func (ip *Interp) execCRor(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return a || b })
}
func (ip *Interp) execCRxor(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return a != b })
}
func (ip *Interp) execCRnand(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return !(a && b) })
}
func (ip *Interp) execCRnor(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return !(a || b) })
}
func (ip *Interp) execCReqv(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return a == b })
}
func (ip *Interp) execCRandc(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return a && !b })
}
func (ip *Interp) execCRorc(inst uint32) (result, error) {
	return ip.crOp(inst, func(a, b bool) bool { return a || !b })
}

// execMcrf copies CR field S into CR field D.
func (ip *Interp) execMcrf(inst uint32) (result, error) {
	s := ip.S
	d := (inst >> 23) & 7
	src := (inst >> 18) & 7
	field := (s.CR >> ((7 - src) * 4)) & 0xf
	shift := (7 - d) * 4
	s.CR = (s.CR &^ (0xf << shift)) | (field << shift)
	return result{}, nil
}

func (ip *Interp) crOp(inst uint32, op func(a, b bool) bool) (result, error) {
	s := ip.S
	d, a, b := crbD(inst), crbA(inst), crbB(inst)
	ba := (s.CR>>(31-a))&1 != 0
	bb := (s.CR>>(31-b))&1 != 0
	r := op(ba, bb)
	if r {
		s.CR |= 1 << (31 - d)
	} else {
		s.CR &^= 1 << (31 - d)
	}
	return result{}, nil
}
