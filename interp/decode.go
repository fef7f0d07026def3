package interp

import "github.com/mattrisc/iss/cpu"

// Field extractors follow PowerPC's MSB-first bit numbering (bit 0 is the
// most-significant bit of the 32-bit instruction word), matching
// PPCInstructionFields.h's layout.

func opcd(inst uint32) uint32 { return inst >> 26 }
func rD(inst uint32) uint32   { return (inst >> 21) & 0x1f }
func rS(inst uint32) uint32   { return (inst >> 21) & 0x1f }
func rA(inst uint32) uint32   { return (inst >> 16) & 0x1f }
func rB(inst uint32) uint32   { return (inst >> 11) & 0x1f }
func xo10(inst uint32) uint32 { return (inst >> 1) & 0x3ff }
func xo9(inst uint32) uint32  { return (inst >> 1) & 0x1ff }
func xo5(inst uint32) uint32  { return (inst >> 1) & 0x1f }
func rcBit(inst uint32) bool  { return inst&1 != 0 }
func oeBit(inst uint32) bool  { return inst&(1<<10) != 0 }
func simm(inst uint32) int32  { return int32(int16(inst & 0xffff)) }
func uimm(inst uint32) uint32 { return inst & 0xffff }
func crbD(inst uint32) uint32 { return (inst >> 21) & 0x1f }
func crbA(inst uint32) uint32 { return (inst >> 16) & 0x1f }
func crbB(inst uint32) uint32 { return (inst >> 11) & 0x1f }

// bd/li/aa/lk for branch instructions.
func liField(inst uint32) int32 {
	v := int32(inst & 0x03fffffc)
	if v&0x02000000 != 0 {
		v |= ^int32(0x03ffffff)
	}
	return v
}
func bdField(inst uint32) int32 {
	v := int32(inst & 0xfffc)
	if v&0x8000 != 0 {
		v |= ^int32(0xffff)
	}
	return v
}
func aaBit(inst uint32) bool { return inst&2 != 0 }
func lkBit(inst uint32) bool { return inst&1 != 0 }
func boField(inst uint32) uint32 { return (inst >> 21) & 0x1f }
func biField(inst uint32) uint32 { return (inst >> 16) & 0x1f }

// execute dispatches on the primary opcode, following secondary tables for
// opcodes 19 and 31 (spec §4.4), invoking op_unk's Go equivalent — a
// PROG/illegal exception — for anything not implemented.
func (ip *Interp) execute(inst uint32) (result, error) {
	switch opcd(inst) {
	case 3:
		return ip.execTWI(inst)
	case 7:
		return ip.execMulli(inst)
	case 8:
		return ip.execSubfic(inst)
	case 10:
		return ip.execCmpli(inst)
	case 11:
		return ip.execCmpi(inst)
	case 12:
		return ip.execAddic(inst, false)
	case 13:
		return ip.execAddic(inst, true)
	case 14:
		return ip.execAddi(inst, false)
	case 15:
		return ip.execAddi(inst, true)
	case 16:
		return ip.execBC(inst)
	case 17:
		return ip.execSC(inst)
	case 18:
		return ip.execB(inst)
	case 19:
		return ip.execOp19(inst)
	case 20:
		return ip.execRlwimi(inst)
	case 21:
		return ip.execRlwinm(inst)
	case 23:
		return ip.execRlwnm(inst)
	case 24:
		return ip.execOri(inst)
	case 25:
		return ip.execOris(inst)
	case 26:
		return ip.execXori(inst)
	case 27:
		return ip.execXoris(inst)
	case 28:
		return ip.execAndiDot(inst)
	case 29:
		return ip.execAndisDot(inst)
	case 31:
		return ip.execOp31(inst)
	case 32:
		return ip.execLoad(inst, 4, false, false)
	case 33:
		return ip.execLoad(inst, 4, false, true)
	case 34:
		return ip.execLoad(inst, 1, false, false)
	case 35:
		return ip.execLoad(inst, 1, false, true)
	case 36:
		return ip.execStore(inst, 4, false)
	case 37:
		return ip.execStore(inst, 4, true)
	case 38:
		return ip.execStore(inst, 1, false)
	case 39:
		return ip.execStore(inst, 1, true)
	case 40:
		return ip.execLoad(inst, 2, false, false)
	case 41:
		return ip.execLoad(inst, 2, false, true)
	case 42:
		return ip.execLoad(inst, 2, true, false)
	case 43:
		return ip.execLoad(inst, 2, true, true)
	case 44:
		return ip.execStore(inst, 2, false)
	case 45:
		return ip.execStore(inst, 2, true)
	case 46:
		return ip.execLmw(inst)
	case 47:
		return ip.execStmw(inst)
	}
	return ip.illegal()
}

func (ip *Interp) illegal() (result, error) {
	return result{}, ip.S.RaisePROGException(cpu.ProgReasonIllegal)
}

// execOp19 covers the condition-register and branch-via-LR/CTR extended
// opcode space (primary opcode 19).
func (ip *Interp) execOp19(inst uint32) (result, error) {
	switch xo10(inst) {
	case 0:
		return ip.execMcrf(inst)
	case 16:
		return ip.execBclr(inst)
	case 33:
		return ip.execCRnor(inst)
	case 50:
		return ip.execRfi(inst)
	case 129:
		return ip.execCRandc(inst)
	case 150:
		return result{}, nil // isync: architectural barrier, no-op single-threaded
	case 193:
		return ip.execCRxor(inst)
	case 225:
		return ip.execCRnand(inst)
	case 257:
		return ip.execCRand(inst)
	case 289:
		return ip.execCReqv(inst)
	case 417:
		return ip.execCRorc(inst)
	case 449:
		return ip.execCRor(inst)
	case 528:
		return ip.execBcctr(inst)
	}
	return ip.illegal()
}

// execOp31 covers the large extended-arithmetic/logical/load-store/system
// opcode space (primary opcode 31).
func (ip *Interp) execOp31(inst uint32) (result, error) {
	switch xo10(inst) {
	case 0:
		return ip.execCmp(inst)
	case 4:
		return ip.execTW(inst)
	case 8:
		return ip.execSubfc(inst)
	case 10:
		return ip.execAddc(inst)
	case 11:
		return ip.execMulhwu(inst)
	case 19:
		return ip.execMfcr(inst)
	case 20:
		return ip.execLwarx(inst)
	case 23:
		return ip.execLoadX(inst, 4, false)
	case 24:
		return ip.execSlw(inst)
	case 533:
		return ip.execLswx(inst)
	case 597:
		return ip.execLswi(inst)
	case 661:
		return ip.execStswx(inst)
	case 725:
		return ip.execStswi(inst)
	case 26:
		return ip.execCntlzw(inst)
	case 28:
		return ip.execAnd(inst)
	case 54, 86, 246, 278:
		return result{}, nil // dcbst/dcbf/dcbtst/dcbt: no data-cache model
	case 32:
		return ip.execCmpl(inst)
	case 40:
		return ip.execSubf(inst)
	case 60:
		return ip.execAndc(inst)
	case 75:
		return ip.execMulhw(inst)
	case 83:
		return ip.execMfmsr(inst)
	case 87:
		return ip.execLoadX(inst, 1, false)
	case 104:
		return ip.execNeg(inst)
	case 124:
		return ip.execNor(inst)
	case 136:
		return ip.execSubfe(inst)
	case 138:
		return ip.execAdde(inst)
	case 144:
		return ip.execMtcrf(inst)
	case 146:
		return ip.execMtmsr(inst)
	case 200:
		return ip.execSubfze(inst)
	case 202:
		return ip.execAddze(inst)
	case 232:
		return ip.execSubfme(inst)
	case 234:
		return ip.execAddme(inst)
	case 242:
		return ip.execMtsrin(inst)
	case 150:
		return ip.execStwcx(inst)
	case 151:
		return ip.execStoreX(inst, 4)
	case 210:
		return ip.execMtsr(inst)
	case 215:
		return ip.execStoreX(inst, 1)
	case 235:
		return ip.execMullw(inst)
	case 266:
		return ip.execAdd(inst)
	case 279:
		return ip.execLoadX(inst, 2, false)
	case 284:
		return ip.execEqv(inst)
	case 306:
		if exc := ip.privCheck(); exc != nil {
			return result{}, exc
		}
		ip.S.MMU.TLBIE(ip.S.GPR[rB(inst)])
		ip.S.InvalidateReservation()
		return result{}, nil
	case 316:
		return ip.execXor(inst)
	case 339:
		return ip.execMfspr(inst)
	case 343:
		return ip.execLoadX(inst, 2, true)
	case 370:
		if exc := ip.privCheck(); exc != nil {
			return result{}, exc
		}
		ip.S.MMU.TLBIA()
		ip.S.InvalidateReservation()
		return result{}, nil
	case 371:
		return ip.execMftb(inst)
	case 407:
		return ip.execStoreX(inst, 2)
	case 412:
		return ip.execOrc(inst)
	case 444:
		return ip.execOr(inst)
	case 459:
		return ip.execDivwu(inst)
	case 467:
		return ip.execMtspr(inst)
	case 476:
		return ip.execNand(inst)
	case 491:
		return ip.execDivw(inst)
	case 512:
		return ip.execMcrxr(inst)
	case 534:
		return ip.execLwbrx(inst)
	case 566:
		return result{}, nil // tlbsync: no-op single-threaded
	case 595:
		return ip.execMfsr(inst)
	case 598:
		return result{}, nil // sync: no-op single-threaded
	case 659:
		return ip.execMfsrin(inst)
	case 662:
		return ip.execStwbrx(inst)
	case 790:
		return ip.execLhbrx(inst)
	case 824:
		return ip.execSrawi(inst)
	case 854:
		return result{}, nil // eieio: no-op single-threaded
	case 918:
		return ip.execSthbrx(inst)
	case 922:
		return ip.execExtsh(inst)
	case 536:
		return ip.execSrw(inst)
	case 792:
		return ip.execSraw(inst)
	case 954:
		return ip.execExtsb(inst)
	case 982:
		return ip.execIcbi(inst)
	case 470:
		if exc := ip.privCheck(); exc != nil {
			return result{}, exc
		}
		return result{}, nil // dcbi: no data-cache model
	case 1014:
		return ip.execDcbz(inst)
	}
	return ip.illegal()
}
