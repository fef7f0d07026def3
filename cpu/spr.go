package cpu

import (
	"fmt"

	"github.com/mattrisc/iss/arch"
)

// GetSPR implements mfspr. BAT and segment registers are read through the
// MMU since it owns that state; everything else lives directly on State.
func (s *State) GetSPR(n uint32) (uint32, error) {
	switch n {
	case arch.SprXER:
		return s.XER, nil
	case arch.SprLR:
		return s.LR, nil
	case arch.SprCTR:
		return s.CTR, nil
	case arch.SprDSISR:
		return s.DSISR, nil
	case arch.SprDAR:
		return s.DAR, nil
	case arch.SprDEC:
		return s.DEC, nil
	case arch.SprSDR1:
		return s.SDR1, nil
	case arch.SprSRR0:
		return s.SRR0, nil
	case arch.SprSRR1:
		return s.SRR1, nil
	case arch.SprSPRG0:
		return s.SPRG0, nil
	case arch.SprSPRG1:
		return s.SPRG1, nil
	case arch.SprSPRG2:
		return s.SPRG2, nil
	case arch.SprSPRG3:
		return s.SPRG3, nil
	case arch.SprEAR:
		return s.EAR, nil
	case arch.SprTB:
		return uint32(s.TB()), nil
	case arch.SprTBU:
		return uint32(s.TB() >> 32), nil
	case arch.SprPVR:
		return arch.PVR, nil
	case arch.SprHID0:
		return s.HID0, nil
	case arch.SprHID1:
		return s.HID1, nil
	case arch.SprPIR:
		return s.PIR, nil
	}

	if bat, instr, upper, ok := batSPR(n); ok {
		switch {
		case instr && upper:
			return s.MMU.GetIBATUpper(bat), nil
		case instr:
			return s.MMU.GetIBATLower(bat), nil
		case upper:
			return s.MMU.GetDBATUpper(bat), nil
		default:
			return s.MMU.GetDBATLower(bat), nil
		}
	}

	return 0, fmt.Errorf("mfspr: unimplemented spr %d", n)
}

// SetSPR implements mtspr, including the host-debug hook
// (arch.SprDebug/arch.DebugExit/arch.DebugPutc) that lets bare-metal test
// images request a clean exit or emit a byte without a UART, preserved from
// the original's SIM_QUIT convention.
func (s *State) SetSPR(n uint32, val uint32) error {
	switch n {
	case arch.SprXER:
		s.XER = val & 0xe000007f
		return nil
	case arch.SprLR:
		s.LR = val
		return nil
	case arch.SprCTR:
		s.CTR = val
		return nil
	case arch.SprDSISR:
		s.DSISR = val
		return nil
	case arch.SprDAR:
		s.DAR = val
		return nil
	case arch.SprDEC:
		s.DEC = val
		return nil
	case arch.SprSDR1:
		s.SDR1 = val
		s.MMU.SetSDR1(val)
		return nil
	case arch.SprSRR0:
		s.SRR0 = val
		return nil
	case arch.SprSRR1:
		s.SRR1 = val
		return nil
	case arch.SprSPRG0:
		s.SPRG0 = val
		return nil
	case arch.SprSPRG1:
		s.SPRG1 = val
		return nil
	case arch.SprSPRG2:
		s.SPRG2 = val
		return nil
	case arch.SprSPRG3:
		s.SPRG3 = val
		return nil
	case arch.SprEAR:
		s.EAR = val
		return nil
	case arch.SprTBW:
		s.SetTB((s.TB() &^ 0xffffffff) | uint64(val))
		return nil
	case arch.SprTBUW:
		s.SetTB((s.TB() & 0xffffffff) | uint64(val)<<32)
		return nil
	case arch.SprHID0:
		s.HID0 = val
		return nil
	case arch.SprHID1:
		s.HID1 = val
		return nil
	case arch.SprICInvSet:
		// No separate I-cache model: request a coarse block-cache
		// reset, per spec §4.6's icbi/IC_INV_SET invalidation rule.
		s.ICacheInvalidate = true
		return nil
	case arch.SprDCInvSet:
		return nil // no data-cache model; architectural no-op here

	case arch.SprDebug:
		switch val & 0xff00 {
		case arch.DebugExit:
			s.ExitRequested = true
		case arch.DebugPutc:
			s.PutcPending = true
			s.PutcByte = byte(s.GPR[3])
		}
		return nil
	}

	if bat, instr, upper, ok := batSPR(n); ok {
		switch {
		case instr && upper:
			s.MMU.SetIBATUpper(bat, val)
		case instr:
			s.MMU.SetIBATLower(bat, val)
		case upper:
			s.MMU.SetDBATUpper(bat, val)
		default:
			s.MMU.SetDBATLower(bat, val)
		}
		return nil
	}

	return fmt.Errorf("mtspr: unimplemented spr %d", n)
}

// batSPR decodes a BAT register SPR number into (bat index, IBAT?, upper?).
// The first bank of four pairs sits at 528..543, the second (BATs 4..7) at
// the 750GX-style 560..575.
func batSPR(n uint32) (bat uint, instr, upper bool, ok bool) {
	var base, idx uint32
	switch {
	case n >= arch.SprIBAT0U && n <= arch.SprDBAT3L:
		base, idx = arch.SprIBAT0U, 0
	case n >= arch.SprIBAT4U && n <= arch.SprDBAT7L:
		base, idx = arch.SprIBAT4U, 4
	default:
		return 0, false, false, false
	}
	off := n - base
	instr = off < 8
	bat = uint(idx + off%8/2)
	upper = off%2 == 0
	return bat, instr, upper, true
}
