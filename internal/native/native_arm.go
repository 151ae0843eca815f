//go:build linux && arm

package native

import "etmcfg/internal/insn"

// Implemented in native_arm.s.
func readTRCPRGCTLR() uint32
func writeTRCPRGCTLR(v uint32)
func readTRCSTATR() uint32
func readTRCVICTLR() uint32
func writeTRCVICTLR(v uint32)
func readTRCEXTINSELR0() uint32
func writeTRCEXTINSELR0(v uint32)
func readTRCRSCTLR2() uint32
func writeTRCRSCTLR2(v uint32)
func readTRCEVENTCTL0R() uint32
func writeTRCEVENTCTL0R(v uint32)
func readTRCEVENTCTL1R() uint32
func writeTRCEVENTCTL1R(v uint32)
func readTRCIDR4() uint32
func readTRCIDR5() uint32

var archSet = insn.A32

func rw(read func() uint32, write func(uint32)) routine {
	rt := routine{read: func() uint64 { return uint64(read()) }}
	if write != nil {
		rt.write = func(v uint64) { write(uint32(v)) }
	}
	return rt
}

var archRoutines = map[string]routine{
	"TRCPRGCTLR":    rw(readTRCPRGCTLR, writeTRCPRGCTLR),
	"TRCSTATR":      rw(readTRCSTATR, nil),
	"TRCVICTLR":     rw(readTRCVICTLR, writeTRCVICTLR),
	"TRCEXTINSELR0": rw(readTRCEXTINSELR0, writeTRCEXTINSELR0),
	"TRCRSCTLR2":    rw(readTRCRSCTLR2, writeTRCRSCTLR2),
	"TRCEVENTCTL0R": rw(readTRCEVENTCTL0R, writeTRCEVENTCTL0R),
	"TRCEVENTCTL1R": rw(readTRCEVENTCTL1R, writeTRCEVENTCTL1R),
	"TRCIDR4":       rw(readTRCIDR4, nil),
	"TRCIDR5":       rw(readTRCIDR5, nil),
}
