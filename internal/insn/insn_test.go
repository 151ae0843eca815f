package insn

import (
	"errors"
	"testing"

	"etmcfg/internal/common"
	"etmcfg/internal/regs"
)

func TestEncodeKnownWords(t *testing.T) {
	prg := regs.MustLookup("TRCPRGCTLR").Sys
	rs2 := regs.MustLookup("TRCRSCTLR2").Sys
	vic := regs.MustLookup("TRCVICTLR").Sys

	tests := []struct {
		name string
		enc  func(regs.Selector, uint8) (Word, error)
		sel  regs.Selector
		rt   uint8
		want Word
		text string
	}{
		{"mrs prgctlr", MRS, prg, 0, 0xD5310100, "mrs x0, S2_1_C0_C1_0"},
		{"msr prgctlr", MSR, prg, 0, 0xD5110100, "msr S2_1_C0_C1_0, x0"},
		{"mrs rsctlr2 x3", MRS, rs2, 3, 0xD5311203, "mrs x3, S2_1_C1_C2_0"},
		{"mrs victlr", MRS, vic, 0, 0xD5310040, "mrs x0, S2_1_C0_C0_2"},
		{"mrc prgctlr", MRC, prg, 0, 0xEE300E11, "mrc p14, 1, r0, c0, c1, 0"},
		{"mcr prgctlr", MCR, prg, 0, 0xEE200E11, "mcr p14, 1, r0, c0, c1, 0"},
		{"mrc victlr r2", MRC, vic, 2, 0xEE302E50, "mrc p14, 1, r2, c0, c0, 2"},
		{"mcr rsctlr2", MCR, rs2, 0, 0xEE210E12, "mcr p14, 1, r0, c1, c2, 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.enc(tt.sel, tt.rt)
			if err != nil {
				t.Fatalf("encode error: %v", err)
			}
			if got != tt.want {
				t.Errorf("encode = 0x%08X, want 0x%08X", uint32(got), uint32(tt.want))
			}
			if got.String() != tt.text {
				t.Errorf("String() = %q, want %q", got.String(), tt.text)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	encoders := []struct {
		set Set
		dir Dir
		enc func(regs.Selector, uint8) (Word, error)
	}{
		{A64, Read, MRS},
		{A64, Write, MSR},
		{A32, Read, MRC},
		{A32, Write, MCR},
	}
	for _, r := range regs.Default().All() {
		if !r.HasSys {
			continue
		}
		for _, e := range encoders {
			w, err := e.enc(r.Sys, 5)
			if err != nil {
				t.Fatalf("%s: encode error: %v", r.Name, err)
			}
			d, err := Decode(w)
			if err != nil {
				t.Fatalf("%s: Decode(0x%08X) error: %v", r.Name, uint32(w), err)
			}
			want := Decoded{Set: e.set, Dir: e.dir, Sel: r.Sys, Rt: 5}
			if d != want {
				t.Errorf("%s: Decode = %+v, want %+v", r.Name, d, want)
			}
		}
	}
}

func TestDecodeRejectsOtherInstructions(t *testing.T) {
	for _, w := range []Word{0xD503201F /* nop */, 0xE1A00000 /* mov r0, r0 */, 0xEE100F10 /* mrc p15 */, 0} {
		if _, err := Decode(w); !errors.Is(err, common.ErrConfig) {
			t.Errorf("Decode(0x%08X) err = %v, want ConfigurationError", uint32(w), err)
		}
		if got := w.String(); got[:5] != ".word" {
			t.Errorf("String(0x%08X) = %q", uint32(w), got)
		}
	}
}

func TestEncodeRange(t *testing.T) {
	if _, err := MRS(regs.Selector{Op0: 1}, 0); err == nil {
		t.Error("op0=1 is not a system register transfer")
	}
	if _, err := MSR(regs.Selector{Op0: 2, CRm: 16}, 0); err == nil {
		t.Error("CRm=16 should not encode")
	}
	if _, err := MRC(regs.Selector{Op0: 2}, 15); err == nil {
		t.Error("r15 is not a valid transfer register")
	}
	if A32.String() != "A32" || A64.String() != "A64" {
		t.Error("Set.String")
	}
}
