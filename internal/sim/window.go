package sim

import (
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
)

// Window is a mapping of the simulated register window. It satisfies the
// memory mapped accessor's window contract.
type Window struct {
	u      *Unit
	base   uint64
	size   uint32
	closed bool
}

// Map maps the register window. Every successful Map must be matched by
// a Close; Mapped reports the balance.
func (u *Unit) Map(base uint64, size uint32) (*Window, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.mapErr != nil {
		return nil, u.mapErr
	}
	if size == 0 || size > etmdef.MMIOSize {
		return nil, errs.Errorf(etmdef.ErrMappingFailure, "window size 0x%X not supported", size)
	}
	u.mapped++
	return &Window{u: u, base: base, size: size}, nil
}

func (w *Window) Base() uint64 { return w.base }
func (w *Window) Size() uint32 { return w.size }

// Read32 loads the word at off. Unimplemented offsets read as zero.
func (w *Window) Read32(off uint32) (uint32, error) {
	u := w.u
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := w.check(off); err != nil {
		return 0, err
	}
	r, ok := u.byOff[off]
	if !ok {
		return 0, nil
	}
	v, err := u.access(r, insn.Read, 0, "mmio")
	return uint32(v), err
}

// Write32 stores v at off. While the software lock is set, only the lock
// access register accepts writes.
func (w *Window) Write32(off uint32, v uint32) error {
	u := w.u
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := w.check(off); err != nil {
		return err
	}
	r, ok := u.byOff[off]
	if !ok {
		return nil
	}
	if u.locked && r.Name != "TRCLAR" {
		u.log = append(u.log, Access{Reg: r.Name, Dir: insn.Write, Value: uint64(v), Path: "mmio-locked"})
		return nil
	}
	_, err := u.access(r, insn.Write, uint64(v), "mmio")
	return err
}

// Close releases the mapping. Closing twice is harmless; only the first
// Close reports an injected unmap error.
func (w *Window) Close() error {
	u := w.u
	u.mu.Lock()
	defer u.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	u.mapped--
	return u.unmapErr
}

func (w *Window) check(off uint32) error {
	switch {
	case w.closed:
		return errs.Errorf(etmdef.ErrMappingFailure, "access to unmapped window at offset 0x%X", off)
	case off%4 != 0 || off+4 > w.size:
		return errs.Errorf(etmdef.ErrAccessTrap, "bus fault at offset 0x%X", off)
	}
	return nil
}
