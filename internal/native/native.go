// Package native executes trace register transfer instructions on the
// running CPU. Only the registers the configuration sequence touches have
// compiled-in routines; any other instruction word is refused.
//
// Trace registers are per CPU. Open pins the calling goroutine to its OS
// thread and that thread to one CPU, so Exec must be called from the
// goroutine that called Open, and Close must be called from it too.
//
// Access checks are made by the hardware. If trace register access is
// disabled for the current exception level, the instruction traps and the
// kernel delivers SIGILL; that is not recoverable here.
package native

import (
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
	"etmcfg/internal/regs"
)

type routine struct {
	read  func() uint64
	write func(uint64)
}

// Executor runs instruction words through the compiled-in routines.
type Executor struct {
	set     insn.Set
	words   map[insn.Word]func(uint64) uint64
	restore func() error
}

// Supported reports whether this build has native routines.
func Supported() bool { return len(archRoutines) > 0 }

// Set returns the instruction set the native routines use.
func Set() insn.Set { return archSet }

// Open prepares the executor and pins the caller to cpu. A negative cpu
// pins to the current thread without changing its affinity.
func Open(cpu int) (*Executor, error) {
	if !Supported() {
		return nil, errs.Errorf(etmdef.ErrUnsupportedFeature, "no native trace register access on this platform")
	}
	words, err := buildWords(archSet, archRoutines)
	if err != nil {
		return nil, err
	}
	restore, err := pin(cpu)
	if err != nil {
		return nil, err
	}
	return &Executor{set: archSet, words: words, restore: restore}, nil
}

// Exec runs the routine compiled for w.
func (e *Executor) Exec(w insn.Word, in uint64) (uint64, error) {
	fn, ok := e.words[w]
	if !ok {
		return 0, errs.Errorf(etmdef.ErrConfig, "no native routine for %s", w)
	}
	return fn(in), nil
}

// Close restores the thread's CPU affinity and unpins the goroutine.
func (e *Executor) Close() error {
	if e.restore == nil {
		return nil
	}
	restore := e.restore
	e.restore = nil
	if err := restore(); err != nil {
		return errs.Wrap(etmdef.ErrFail, err, "restore CPU affinity")
	}
	return nil
}

func buildWords(set insn.Set, routines map[string]routine) (map[insn.Word]func(uint64) uint64, error) {
	encRead, encWrite := insn.MRS, insn.MSR
	if set == insn.A32 {
		encRead, encWrite = insn.MRC, insn.MCR
	}
	words := make(map[insn.Word]func(uint64) uint64, 2*len(routines))
	for name, rt := range routines {
		r, err := regs.Lookup(name)
		if err != nil {
			return nil, err
		}
		if rt.read != nil {
			w, err := encRead(r.Sys, 0)
			if err != nil {
				return nil, err
			}
			read := rt.read
			words[w] = func(uint64) uint64 { return read() }
		}
		if rt.write != nil {
			w, err := encWrite(r.Sys, 0)
			if err != nil {
				return nil, err
			}
			write := rt.write
			words[w] = func(v uint64) uint64 { write(v); return 0 }
		}
	}
	return words, nil
}
