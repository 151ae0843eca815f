package sim

import (
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
)

// Exec executes an MRS/MSR or MRC/MCR on the simulated unit.
// Instructions that the unit does not implement trap, as they would on
// hardware.
func (u *Unit) Exec(w insn.Word, in uint64) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.trapSys {
		return 0, errs.Errorf(etmdef.ErrAccessTrap, "%s trapped: trace register access disabled", w)
	}
	d, err := insn.Decode(w)
	if err != nil {
		return 0, errs.Wrap(etmdef.ErrAccessTrap, err, "undefined instruction")
	}
	r, ok := u.bySel[d.Sel]
	if !ok {
		return 0, errs.Errorf(etmdef.ErrAccessTrap, "%s: unallocated system register", w)
	}
	path := "sysreg"
	if d.Set == insn.A32 {
		path = "coproc"
	}
	return u.access(r, d.Dir, in, path)
}
