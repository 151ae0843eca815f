package access

import (
	"etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/regs"
)

// Merge computes the read-modify-write result: bits in clear take their
// value from set, all other bits keep their value from v.
func Merge(v, clear, set uint64) uint64 {
	return (v &^ clear) | (set & clear)
}

// ApplyRMW reads r, replaces the clear bits with set and writes it back.
// Nothing is written if the read fails.
//
// Write-only registers cannot be read, so the write value is set & clear
// and before is reported as zero.
func ApplyRMW(a Accessor, r *regs.Register, clear, set uint64) (before, after uint64, err error) {
	if r.Access.Readable() {
		before, err = a.Read(r)
		if err != nil {
			return 0, 0, err
		}
	}
	after = Merge(before, clear, set)
	if err := a.Write(r, after); err != nil {
		return before, 0, err
	}
	return before, after, nil
}

// ReadField reads r and extracts one field.
func ReadField(a Accessor, r *regs.Register, field string) (uint64, error) {
	f, err := r.Field(field)
	if err != nil {
		return 0, err
	}
	v, err := a.Read(r)
	if err != nil {
		return 0, err
	}
	return f.Extract(v), nil
}

// Verify re-reads r and checks the bits under mask match want.
func Verify(a Accessor, r *regs.Register, mask, want uint64) (uint64, error) {
	if !r.Access.Readable() {
		return 0, nil
	}
	got, err := a.Read(r)
	if err != nil {
		return 0, err
	}
	if got&mask != want&mask {
		return got, common.AtStep(common.Errorf(etmdef.ErrVerify,
			"read back 0x%08X, wrote 0x%08X (mask 0x%08X)", got, want, mask), "", r.Name)
	}
	return got, nil
}
