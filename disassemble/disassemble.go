// Package disassemble renders a best-effort mnemonic for one fetched
// instruction word, used by the `-disass` trace flag. Grounded on
// emu/disassemble's opcode-keyed-map idiom (teacher), generalised from
// S/370's byte-oriented RR/RX/SS forms to PowerPC's fixed 32-bit D/X/B/I
// forms, following original_source/PPCInterpreter_*.cc's pervasive
// per-routine DISASS() convention.
package disassemble

import "fmt"

// form selects how an opcode's operands are rendered.
type form int

const (
	formNone form = iota
	formD         // rD, rA, SIMM
	formDU        // rD, SIMM(rA) -- load/store d-form
	formX         // rD, rA, rB
	formXO        // rD, rA, rB, rendered like formX; OE/Rc suffixes are not shown
	formB         // mnemonic only; the branch target is not rendered
	formSPR       // rD, SPR
	formNoOperand
)

type opcode struct {
	name string
	f    form
}

// primary opcodes that don't extend into a secondary table.
var primaryMap = map[uint32]opcode{
	3:  {"twi", formD},
	7:  {"mulli", formD},
	8:  {"subfic", formD},
	10: {"cmpli", formD},
	11: {"cmpi", formD},
	12: {"addic", formD},
	13: {"addic.", formD},
	14: {"addi", formD},
	15: {"addis", formD},
	16: {"bc", formB},
	17: {"sc", formNoOperand},
	18: {"b", formB},
	20: {"rlwimi", formX},
	21: {"rlwinm", formX},
	23: {"rlwnm", formX},
	24: {"ori", formD},
	25: {"oris", formD},
	26: {"xori", formD},
	27: {"xoris", formD},
	28: {"andi.", formD},
	29: {"andis.", formD},
	32: {"lwz", formDU},
	33: {"lwzu", formDU},
	34: {"lbz", formDU},
	35: {"lbzu", formDU},
	36: {"stw", formDU},
	37: {"stwu", formDU},
	38: {"stb", formDU},
	39: {"stbu", formDU},
	40: {"lhz", formDU},
	41: {"lhzu", formDU},
	42: {"lha", formDU},
	43: {"lhau", formDU},
	44: {"sth", formDU},
	45: {"sthu", formDU},
	46: {"lmw", formDU},
	47: {"stmw", formDU},
}

// op19 maps the xo10 field under primary opcode 19.
var op19Map = map[uint32]opcode{
	0:   {"mcrf", formNoOperand},
	16:  {"bclr", formNoOperand},
	33:  {"crnor", formX},
	50:  {"rfi", formNoOperand},
	129: {"crandc", formX},
	150: {"isync", formNoOperand},
	193: {"crxor", formX},
	225: {"crnand", formX},
	257: {"crand", formX},
	289: {"creqv", formX},
	417: {"crorc", formX},
	449: {"cror", formX},
	528: {"bcctr", formNoOperand},
}

// op31 maps the xo10 field under primary opcode 31.
var op31Map = map[uint32]opcode{
	0:   {"cmp", formX},
	4:   {"tw", formX},
	8:   {"subfc", formXO},
	10:  {"addc", formXO},
	11:  {"mulhwu", formXO},
	19:  {"mfcr", formX},
	20:  {"lwarx", formX},
	23:  {"lwzx", formX},
	24:  {"slw", formXO},
	26:  {"cntlzw", formXO},
	28:  {"and", formXO},
	32:  {"cmpl", formX},
	40:  {"subf", formXO},
	54:  {"dcbst", formX},
	86:  {"dcbf", formX},
	60:  {"andc", formXO},
	75:  {"mulhw", formXO},
	83:  {"mfmsr", formX},
	87:  {"lbzx", formX},
	104: {"neg", formXO},
	124: {"nor", formXO},
	136: {"subfe", formXO},
	138: {"adde", formXO},
	144: {"mtcrf", formX},
	146: {"mtmsr", formX},
	150: {"stwcx.", formX},
	151: {"stwx", formX},
	200: {"subfze", formXO},
	202: {"addze", formXO},
	210: {"mtsr", formX},
	215: {"stbx", formX},
	232: {"subfme", formXO},
	234: {"addme", formXO},
	235: {"mullw", formXO},
	242: {"mtsrin", formX},
	246: {"dcbtst", formX},
	266: {"add", formXO},
	278: {"dcbt", formX},
	279: {"lhzx", formX},
	284: {"eqv", formXO},
	306: {"tlbie", formX},
	316: {"xor", formXO},
	339: {"mfspr", formSPR},
	343: {"lhax", formX},
	370: {"tlbia", formNoOperand},
	371: {"mftb", formSPR},
	407: {"sthx", formX},
	412: {"orc", formXO},
	444: {"or", formXO},
	459: {"divwu", formXO},
	467: {"mtspr", formSPR},
	470: {"dcbi", formX},
	476: {"nand", formXO},
	491: {"divw", formXO},
	512: {"mcrxr", formNoOperand},
	533: {"lswx", formX},
	534: {"lwbrx", formX},
	536: {"srw", formXO},
	566: {"tlbsync", formNoOperand},
	595: {"mfsr", formX},
	597: {"lswi", formX},
	598: {"sync", formNoOperand},
	659: {"mfsrin", formX},
	661: {"stswx", formX},
	662: {"stwbrx", formX},
	725: {"stswi", formX},
	790: {"lhbrx", formX},
	792: {"sraw", formXO},
	824: {"srawi", formXO},
	854: {"eieio", formNoOperand},
	918: {"sthbrx", formX},
	922: {"extsh", formXO},
	954: {"extsb", formXO},
	982: {"icbi", formX},
	1014: {"dcbz", formX},
}

func opcd(inst uint32) uint32  { return inst >> 26 }
func xo10(inst uint32) uint32  { return (inst >> 1) & 0x3ff }
func rD(inst uint32) uint32    { return (inst >> 21) & 0x1f }
func rA(inst uint32) uint32    { return (inst >> 16) & 0x1f }
func rB(inst uint32) uint32    { return (inst >> 11) & 0x1f }
func simm(inst uint32) int32   { return int32(int16(inst & 0xffff)) }
func sprNum(inst uint32) uint32 {
	return ((inst >> 16) & 0x1f) | ((inst >> 6) & 0x3e0)
}

// Format renders a best-effort mnemonic line for inst fetched at pc. Unknown
// opcodes render as a ".long" line carrying the raw instruction word rather
// than failing the trace.
func Format(pc, inst uint32) string {
	var op opcode
	var ok bool
	switch opcd(inst) {
	case 19:
		op, ok = op19Map[xo10(inst)]
	case 31:
		op, ok = op31Map[xo10(inst)]
	default:
		op, ok = primaryMap[opcd(inst)]
	}
	if !ok {
		return fmt.Sprintf("%08x: .long %#08x", pc, inst)
	}

	switch op.f {
	case formD:
		return fmt.Sprintf("%08x: %-8s r%d,r%d,%d", pc, op.name, rD(inst), rA(inst), simm(inst))
	case formDU:
		return fmt.Sprintf("%08x: %-8s r%d,%d(r%d)", pc, op.name, rD(inst), simm(inst), rA(inst))
	case formX, formXO:
		return fmt.Sprintf("%08x: %-8s r%d,r%d,r%d", pc, op.name, rD(inst), rA(inst), rB(inst))
	case formB:
		return fmt.Sprintf("%08x: %-8s", pc, op.name)
	case formSPR:
		return fmt.Sprintf("%08x: %-8s r%d,%d", pc, op.name, rD(inst), sprNum(inst))
	case formNoOperand:
		return fmt.Sprintf("%08x: %s", pc, op.name)
	default:
		return fmt.Sprintf("%08x: %s", pc, op.name)
	}
}
