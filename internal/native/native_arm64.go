//go:build linux && arm64

package native

import "etmcfg/internal/insn"

// Implemented in native_arm64.s.
func readTRCPRGCTLR() uint64
func writeTRCPRGCTLR(v uint64)
func readTRCSTATR() uint64
func readTRCVICTLR() uint64
func writeTRCVICTLR(v uint64)
func readTRCEXTINSELR0() uint64
func writeTRCEXTINSELR0(v uint64)
func readTRCRSCTLR2() uint64
func writeTRCRSCTLR2(v uint64)
func readTRCEVENTCTL0R() uint64
func writeTRCEVENTCTL0R(v uint64)
func readTRCEVENTCTL1R() uint64
func writeTRCEVENTCTL1R(v uint64)
func readTRCIDR4() uint64
func readTRCIDR5() uint64

var archSet = insn.A64

var archRoutines = map[string]routine{
	"TRCPRGCTLR":    {readTRCPRGCTLR, writeTRCPRGCTLR},
	"TRCSTATR":      {read: readTRCSTATR},
	"TRCVICTLR":     {readTRCVICTLR, writeTRCVICTLR},
	"TRCEXTINSELR0": {readTRCEXTINSELR0, writeTRCEXTINSELR0},
	"TRCRSCTLR2":    {readTRCRSCTLR2, writeTRCRSCTLR2},
	"TRCEVENTCTL0R": {readTRCEVENTCTL0R, writeTRCEVENTCTL0R},
	"TRCEVENTCTL1R": {readTRCEVENTCTL1R, writeTRCEVENTCTL1R},
	"TRCIDR4":       {read: readTRCIDR4},
	"TRCIDR5":       {read: readTRCIDR5},
}
