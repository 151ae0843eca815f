package sim

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"etmcfg/common"
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
	"etmcfg/internal/regs"
)

func word(t *testing.T, enc func(regs.Selector, uint8) (insn.Word, error), name string) insn.Word {
	t.Helper()
	w, err := enc(regs.MustLookup(name).Sys, 0)
	if err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return w
}

func TestExecReadWrite(t *testing.T) {
	u := New()
	if _, err := u.Exec(word(t, insn.MSR, "TRCVICTLR"), 0x000F0000); err != nil {
		t.Fatalf("MSR error: %v", err)
	}
	got, err := u.Exec(word(t, insn.MRC, "TRCVICTLR"), 0)
	if err != nil {
		t.Fatalf("MRC error: %v", err)
	}
	if got != 0x000F0000 {
		t.Errorf("TRCVICTLR = 0x%X, want 0xF0000", got)
	}

	want := []Access{
		{Reg: "TRCVICTLR", Dir: insn.Write, Value: 0xF0000, Path: "sysreg"},
		{Reg: "TRCVICTLR", Dir: insn.Read, Value: 0xF0000, Path: "coproc"},
	}
	if diff := cmp.Diff(want, u.Log()); diff != "" {
		t.Errorf("access log mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusFollowsEnable(t *testing.T) {
	u := New()
	if u.Peek("TRCSTATR") != 0x3 {
		t.Errorf("disabled unit TRCSTATR = 0x%X, want idle and stable", u.Peek("TRCSTATR"))
	}
	u.Poke("TRCPRGCTLR", 1)
	if u.Peek("TRCSTATR") != 0 {
		t.Errorf("enabled unit TRCSTATR = 0x%X, want 0", u.Peek("TRCSTATR"))
	}
}

func TestReadOnlyIgnoresWrites(t *testing.T) {
	u := New()
	if _, err := u.Exec(word(t, insn.MSR, "TRCIDR4"), 0); err != nil {
		t.Fatalf("MSR TRCIDR4 error: %v", err)
	}
	if u.Peek("TRCIDR4") != DefaultIDR4 {
		t.Errorf("TRCIDR4 changed to 0x%X", u.Peek("TRCIDR4"))
	}
}

func TestExecTraps(t *testing.T) {
	u := New(WithSysRegTrap())
	_, err := u.Exec(word(t, insn.MRS, "TRCPRGCTLR"), 0)
	if !errors.Is(err, errs.ErrAccessTrap) {
		t.Errorf("trapped MRS err = %v, want AccessTrap", err)
	}

	u = New()
	unalloc, _ := insn.MRS(regs.Selector{Op0: 2, Op1: 1, CRn: 7, CRm: 7, Op2: 7}, 0)
	if _, err := u.Exec(unalloc, 0); !errors.Is(err, errs.ErrAccessTrap) {
		t.Errorf("unallocated MRS err = %v, want AccessTrap", err)
	}
	if _, err := u.Exec(0xD503201F, 0); !errors.Is(err, errs.ErrAccessTrap) {
		t.Errorf("nop err = %v, want AccessTrap", err)
	}
}

func TestFailAfter(t *testing.T) {
	boom := errors.New("boom")
	u := New(WithFailAfter(2, boom))
	rd := word(t, insn.MRS, "TRCPRGCTLR")
	if _, err := u.Exec(rd, 0); err != nil {
		t.Fatalf("first access error: %v", err)
	}
	if _, err := u.Exec(rd, 0); !errors.Is(err, boom) {
		t.Fatalf("second access err = %v, want injected", err)
	}
	if _, err := u.Exec(rd, 0); err != nil {
		t.Fatalf("third access error: %v", err)
	}
}

func TestWindow(t *testing.T) {
	u := New()
	w, err := u.Map(etmdef.MMIOBase, etmdef.MMIOSize)
	if err != nil {
		t.Fatalf("Map error: %v", err)
	}
	if u.Mapped() != 1 || w.Base() != etmdef.MMIOBase {
		t.Fatalf("Mapped = %d, base 0x%X", u.Mapped(), w.Base())
	}
	if err := w.Write32(0x120, 0x60); err != nil {
		t.Fatalf("Write32 error: %v", err)
	}
	if got, _ := w.Read32(0x120); got != 0x60 {
		t.Errorf("Read32(0x120) = 0x%X", got)
	}
	if got, _ := w.Read32(0x1F0); uint64(got) != DefaultIDR4 {
		t.Errorf("Read32(TRCIDR4) = 0x%X", got)
	}
	if got, err := w.Read32(0x800); err != nil || got != 0 {
		t.Errorf("Read32(unimplemented) = 0x%X, %v", got, err)
	}
	if _, err := w.Read32(0x1000); !errors.Is(err, errs.ErrAccessTrap) {
		t.Errorf("Read32 past window err = %v", err)
	}
	if err := w.Write32(0x122, 0); !errors.Is(err, errs.ErrAccessTrap) {
		t.Errorf("misaligned Write32 err = %v", err)
	}

	w.Close()
	w.Close()
	if u.Mapped() != 0 {
		t.Errorf("Mapped after Close = %d", u.Mapped())
	}
	if _, err := w.Read32(0x120); !errors.Is(err, errs.ErrMappingFailure) {
		t.Errorf("Read32 after Close err = %v", err)
	}
}

func TestMapErrors(t *testing.T) {
	boom := errs.Errorf(etmdef.ErrMappingFailure, "no window")
	if _, err := New(WithMapError(boom)).Map(etmdef.MMIOBase, etmdef.MMIOSize); !errors.Is(err, errs.ErrMappingFailure) {
		t.Errorf("Map err = %v", err)
	}
	if _, err := New().Map(etmdef.MMIOBase, 0x2000); !errors.Is(err, errs.ErrMappingFailure) {
		t.Errorf("oversize Map err = %v", err)
	}
}

func TestUnmapError(t *testing.T) {
	u := New(WithUnmapError(errs.Errorf(etmdef.ErrMappingFailure, "munmap failed")))
	w, err := u.Map(etmdef.MMIOBase, etmdef.MMIOSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); !errors.Is(err, errs.ErrMappingFailure) {
		t.Errorf("Close err = %v", err)
	}
	if u.Mapped() != 0 {
		t.Errorf("Mapped = %d after a failed unmap", u.Mapped())
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close err = %v", err)
	}
}

func TestSoftwareLock(t *testing.T) {
	u := New(WithSoftwareLock())
	w, err := u.Map(etmdef.MMIOBase, etmdef.MMIOSize)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if lsr, _ := w.Read32(0xFB4); lsr != 0x3 {
		t.Errorf("TRCLSR = 0x%X, want implemented and locked", lsr)
	}
	w.Write32(0x004, 1)
	if u.Peek("TRCPRGCTLR") != 0 {
		t.Error("write went through while locked")
	}

	w.Write32(0xFB0, uint32(etmdef.CoreSightUnlockKey))
	if u.Locked() {
		t.Fatal("unit still locked after key write")
	}
	w.Write32(0x004, 1)
	if u.Peek("TRCPRGCTLR") != 1 {
		t.Error("write lost after unlock")
	}

	// Instruction access is not subject to the software lock.
	w.Write32(0xFB0, 0)
	if !u.Locked() {
		t.Fatal("unit not relocked")
	}
	if _, err := u.Exec(word(t, insn.MSR, "TRCPRGCTLR"), 0); err != nil {
		t.Fatal(err)
	}
	if u.Peek("TRCPRGCTLR") != 0 {
		t.Error("MSR blocked by software lock")
	}
}

func TestFromDeviceAndSnapshot(t *testing.T) {
	dev, err := common.ReadDeviceIni(strings.NewReader("[device]\nname=ETE_1\n[regs]\nTRCIDR4=0x0\nTRCIDR0=0x28000EA1\nTRCVICTLR=0x1\n"))
	if err != nil {
		t.Fatal(err)
	}
	u, ignored := FromDevice(dev)
	if diff := cmp.Diff([]string{"TRCIDR0"}, ignored); diff != "" {
		t.Errorf("ignored mismatch (-want +got):\n%s", diff)
	}
	if u.Peek("TRCIDR4") != 0 || u.Peek("TRCVICTLR") != 1 {
		t.Errorf("seeded values not applied")
	}

	snap := u.Snapshot("ETE_1")
	if snap.Regs["TRCVICTLR"] != 1 || snap.Regs["TRCSTATR"] != 3 {
		t.Errorf("snapshot regs = %v", snap.Regs)
	}
	if _, ok := snap.Regs["TRCLAR"]; ok {
		t.Error("write-only register in snapshot")
	}
	if _, ok := snap.Regs["TRCRSCTLR9"]; ok {
		t.Error("unset indexed register in snapshot")
	}
	if snap.Order[0] != "TRCPRGCTLR" {
		t.Errorf("snapshot not in offset order: %v", snap.Order)
	}
}
