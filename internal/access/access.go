// Package access reads and writes logical trace unit registers through one
// of three physical paths: CP14 coprocessor instructions, the memory mapped
// register window, or AArch64 system register instructions.
package access

import (
	"etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
	"etmcfg/internal/regs"
)

// Accessor reads and writes logical registers. Implementations never cache
// values: every Read goes to the hardware.
type Accessor interface {
	Name() string
	Read(r *regs.Register) (uint64, error)
	Write(r *regs.Register, v uint64) error
}

// Executor issues a single register transfer instruction. For a read the
// result is the transferred value; for a write in is the value to store.
type Executor interface {
	Exec(w insn.Word, in uint64) (uint64, error)
}

// Window is a mapped trace unit register window.
type Window interface {
	Read32(off uint32) (uint32, error)
	Write32(off uint32, v uint32) error
	Size() uint32
	Close() error
}

// New returns the accessor for backend b. Instruction backends need exec,
// the memory mapped backend needs win.
func New(b etmdef.Backend, exec Executor, win Window) (Accessor, error) {
	switch b {
	case etmdef.BackendCoproc:
		if exec == nil {
			return nil, common.Errorf(etmdef.ErrConfig, "coproc backend needs an instruction executor")
		}
		return NewCoproc(exec), nil
	case etmdef.BackendSysReg:
		if exec == nil {
			return nil, common.Errorf(etmdef.ErrConfig, "sysreg backend needs an instruction executor")
		}
		return NewSysReg(exec), nil
	case etmdef.BackendMMIO:
		if win == nil {
			return nil, common.Errorf(etmdef.ErrConfig, "mmio backend needs a mapped window")
		}
		return NewMMIO(win), nil
	}
	return nil, common.Errorf(etmdef.ErrConfig, "unknown backend %v", b)
}

func checkRead(r *regs.Register) error {
	if !r.Access.Readable() {
		return common.Errorf(etmdef.ErrConfig, "%s is write-only", r.Name)
	}
	return nil
}

func checkWrite(r *regs.Register) error {
	if !r.Access.Writable() {
		e := common.Errorf(etmdef.ErrReadOnly, "%s is read-only", r.Name)
		e.Reg = r.Name
		return e
	}
	return nil
}

// instrAccessor is shared by the two instruction backends; only the
// encoders differ.
type instrAccessor struct {
	name     string
	exec     Executor
	encRead  func(regs.Selector, uint8) (insn.Word, error)
	encWrite func(regs.Selector, uint8) (insn.Word, error)
}

// NewCoproc returns the AArch32 accessor, issuing MRC/MCR on p14.
func NewCoproc(exec Executor) Accessor {
	return &instrAccessor{name: "coproc", exec: exec, encRead: insn.MRC, encWrite: insn.MCR}
}

// NewSysReg returns the AArch64 accessor, issuing MRS/MSR.
func NewSysReg(exec Executor) Accessor {
	return &instrAccessor{name: "sysreg", exec: exec, encRead: insn.MRS, encWrite: insn.MSR}
}

func (a *instrAccessor) Name() string { return a.name }

func (a *instrAccessor) Read(r *regs.Register) (uint64, error) {
	if err := a.check(r); err != nil {
		return 0, err
	}
	if err := checkRead(r); err != nil {
		return 0, err
	}
	w, err := a.encRead(r.Sys, 0)
	if err != nil {
		return 0, err
	}
	v, err := a.exec.Exec(w, 0)
	if err != nil {
		return 0, common.AtStep(err, "", r.Name)
	}
	return v & 0xFFFFFFFF, nil
}

func (a *instrAccessor) Write(r *regs.Register, v uint64) error {
	if err := a.check(r); err != nil {
		return err
	}
	if err := checkWrite(r); err != nil {
		return err
	}
	w, err := a.encWrite(r.Sys, 0)
	if err != nil {
		return err
	}
	if _, err := a.exec.Exec(w, v); err != nil {
		return common.AtStep(err, "", r.Name)
	}
	return nil
}

func (a *instrAccessor) check(r *regs.Register) error {
	if !r.HasSys {
		return common.Errorf(etmdef.ErrConfig, "%s has no %s encoding", r.Name, a.name)
	}
	return nil
}

type mmioAccessor struct {
	win Window
}

// NewMMIO returns the accessor that loads and stores through win.
func NewMMIO(win Window) Accessor {
	return &mmioAccessor{win: win}
}

func (a *mmioAccessor) Name() string { return "mmio" }

func (a *mmioAccessor) Read(r *regs.Register) (uint64, error) {
	if err := a.check(r); err != nil {
		return 0, err
	}
	if err := checkRead(r); err != nil {
		return 0, err
	}
	v, err := a.win.Read32(r.Offset)
	if err != nil {
		return 0, common.AtStep(err, "", r.Name)
	}
	return uint64(v), nil
}

func (a *mmioAccessor) Write(r *regs.Register, v uint64) error {
	if err := a.check(r); err != nil {
		return err
	}
	if err := checkWrite(r); err != nil {
		return err
	}
	if err := a.win.Write32(r.Offset, uint32(v)); err != nil {
		return common.AtStep(err, "", r.Name)
	}
	return nil
}

func (a *mmioAccessor) check(r *regs.Register) error {
	switch {
	case !r.HasOffset:
		return common.Errorf(etmdef.ErrConfig, "%s is not memory mapped", r.Name)
	case r.Offset%4 != 0:
		return common.Errorf(etmdef.ErrConfig, "%s offset 0x%X not word aligned", r.Name, r.Offset)
	case r.Offset+4 > a.win.Size():
		return common.Errorf(etmdef.ErrConfig, "%s offset 0x%X outside the 0x%X byte window", r.Name, r.Offset, a.win.Size())
	}
	return nil
}
