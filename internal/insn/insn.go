// Package insn encodes the register transfer instructions used to reach
// trace unit registers: AArch64 MRS/MSR and AArch32 CP14 MRC/MCR.
package insn

import (
	"fmt"

	"etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/regs"
)

// Word is one 32-bit instruction encoding.
type Word uint32

// Set is the instruction set a Word belongs to.
type Set int

const (
	A64 Set = iota
	A32
)

func (s Set) String() string {
	if s == A32 {
		return "A32"
	}
	return "A64"
}

// Dir is the transfer direction.
type Dir int

const (
	// Read moves register contents into a general purpose register.
	Read Dir = iota
	// Write moves a general purpose register into the register.
	Write
)

const (
	mrsBase Word = 0xD5300000
	msrBase Word = 0xD5100000
	a64Mask Word = 0xFFF00000

	mrcBase Word = 0xEE100E10 // cond=AL, p14
	mcrBase Word = 0xEE000E10
	a32Mask Word = 0xFF100F10 // cond, L, coproc and bit 4
)

// MRS encodes "mrs x<rt>, <sel>".
func MRS(sel regs.Selector, rt uint8) (Word, error) {
	return encodeA64(mrsBase, sel, rt)
}

// MSR encodes "msr <sel>, x<rt>".
func MSR(sel regs.Selector, rt uint8) (Word, error) {
	return encodeA64(msrBase, sel, rt)
}

func encodeA64(base Word, sel regs.Selector, rt uint8) (Word, error) {
	if sel.Op0 < 2 || sel.Op0 > 3 || sel.Op1 > 7 || sel.CRn > 15 || sel.CRm > 15 || sel.Op2 > 7 || rt > 30 {
		return 0, common.Errorf(etmdef.ErrConfig, "cannot encode system register %s with x%d", sel, rt)
	}
	return base |
		Word(sel.Op0&1)<<19 |
		Word(sel.Op1)<<16 |
		Word(sel.CRn)<<12 |
		Word(sel.CRm)<<8 |
		Word(sel.Op2)<<5 |
		Word(rt), nil
}

// MRC encodes "mrc p14, <op1>, r<rt>, c<CRn>, c<CRm>, <op2>". The AArch32
// view of a trace register reuses op1, CRn, CRm and op2 of its selector.
func MRC(sel regs.Selector, rt uint8) (Word, error) {
	return encodeA32(mrcBase, sel, rt)
}

// MCR encodes "mcr p14, <op1>, r<rt>, c<CRn>, c<CRm>, <op2>".
func MCR(sel regs.Selector, rt uint8) (Word, error) {
	return encodeA32(mcrBase, sel, rt)
}

func encodeA32(base Word, sel regs.Selector, rt uint8) (Word, error) {
	if sel.Op1 > 7 || sel.CRn > 15 || sel.CRm > 15 || sel.Op2 > 7 || rt > 14 {
		return 0, common.Errorf(etmdef.ErrConfig, "cannot encode p14 register %s with r%d", sel, rt)
	}
	return base |
		Word(sel.Op1)<<21 |
		Word(sel.CRn)<<16 |
		Word(rt)<<12 |
		Word(sel.Op2)<<5 |
		Word(sel.CRm), nil
}

// Decoded is the register transfer described by a Word.
type Decoded struct {
	Set Set
	Dir Dir
	Sel regs.Selector
	Rt  uint8
}

// Decode reverses MRS/MSR/MRC/MCR encodings. A32 decodes yield Op0 = 2,
// the trace register space, so selectors compare equal across sets.
func Decode(w Word) (Decoded, error) {
	switch {
	case w&a64Mask == mrsBase:
		return decodeA64(w, Read), nil
	case w&a64Mask == msrBase:
		return decodeA64(w, Write), nil
	case w&a32Mask == mrcBase:
		return decodeA32(w, Read), nil
	case w&a32Mask == mcrBase:
		return decodeA32(w, Write), nil
	}
	return Decoded{}, common.Errorf(etmdef.ErrConfig, "0x%08X is not a trace register transfer", uint32(w))
}

func decodeA64(w Word, dir Dir) Decoded {
	return Decoded{
		Set: A64,
		Dir: dir,
		Sel: regs.Selector{
			Op0: uint8(2 + (w>>19)&1),
			Op1: uint8((w >> 16) & 0x7),
			CRn: uint8((w >> 12) & 0xF),
			CRm: uint8((w >> 8) & 0xF),
			Op2: uint8((w >> 5) & 0x7),
		},
		Rt: uint8(w & 0x1F),
	}
}

func decodeA32(w Word, dir Dir) Decoded {
	return Decoded{
		Set: A32,
		Dir: dir,
		Sel: regs.Selector{
			Op0: 2,
			Op1: uint8((w >> 21) & 0x7),
			CRn: uint8((w >> 16) & 0xF),
			CRm: uint8(w & 0xF),
			Op2: uint8((w >> 5) & 0x7),
		},
		Rt: uint8((w >> 12) & 0xF),
	}
}

// String disassembles the word, or prints it as data when it is not a
// trace register transfer.
func (w Word) String() string {
	d, err := Decode(w)
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", uint32(w))
	}
	s := d.Sel
	if d.Set == A32 {
		mn := "mrc"
		if d.Dir == Write {
			mn = "mcr"
		}
		return fmt.Sprintf("%s p14, %d, r%d, c%d, c%d, %d", mn, s.Op1, d.Rt, s.CRn, s.CRm, s.Op2)
	}
	if d.Dir == Write {
		return fmt.Sprintf("msr %s, x%d", s, d.Rt)
	}
	return fmt.Sprintf("mrs x%d, %s", d.Rt, s)
}
