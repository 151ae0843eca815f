// Package etm configures the local trace unit to emit Event element 0 on
// every SVC exception.
//
// Run programs the unit through one access backend; Stop is the matching
// teardown and leaves the hardware as it is.
package etm

import (
	"errors"

	"etmcfg/common"
	"etmcfg/internal/access"
	errs "etmcfg/internal/common"
	"etmcfg/internal/devmem"
	"etmcfg/internal/diag"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
	"etmcfg/internal/native"
	"etmcfg/internal/regs"
	"etmcfg/internal/sequencer"
	"etmcfg/internal/sim"
)

// Options for Run and Dump.
type Options struct {
	Backend etmdef.Backend
	Strict  bool
	Verify  bool

	// CPU whose trace unit the instruction backends program. Negative
	// means the CPU the caller happens to run on.
	CPU int

	MMIOBase uint64
	MMIOSize uint32
	DevMem   string

	IdlePolls int
	Logger    common.Logger

	// Sim, when set, serves every backend instead of the hardware.
	Sim *sim.Unit
}

// DefaultOptions returns options for the memory mapped window at its
// standard address and the given backend.
func DefaultOptions(b etmdef.Backend) Options {
	return Options{
		Backend:  b,
		CPU:      -1,
		MMIOBase: etmdef.MMIOBase,
		MMIOSize: etmdef.MMIOSize,
		DevMem:   "/dev/mem",
		Logger:   common.NewNoOpLogger(),
	}
}

func (o *Options) fill() {
	if o.Logger == nil {
		o.Logger = common.NewNoOpLogger()
	}
	if o.MMIOSize == 0 {
		o.MMIOSize = etmdef.MMIOSize
	}
	if o.MMIOBase == 0 {
		o.MMIOBase = etmdef.MMIOBase
	}
}

// open acquires the backend. release must be called on every path once
// open succeeded.
func open(o Options) (acc access.Accessor, release func() error, err error) {
	switch o.Backend {
	case etmdef.BackendMMIO:
		var win access.Window
		if o.Sim != nil {
			win, err = o.Sim.Map(o.MMIOBase, o.MMIOSize)
		} else {
			win, err = devmem.Open(o.DevMem, o.MMIOBase, o.MMIOSize)
		}
		if err != nil {
			return nil, nil, err
		}
		o.Logger.Logf(common.SeverityDebug, "mapped trace unit window 0x%X+0x%X", o.MMIOBase, o.MMIOSize)
		return access.NewMMIO(win), win.Close, nil

	case etmdef.BackendCoproc, etmdef.BackendSysReg:
		if o.Sim != nil {
			acc, err = access.New(o.Backend, o.Sim, nil)
			return acc, func() error { return nil }, err
		}
		want := insn.A64
		if o.Backend == etmdef.BackendCoproc {
			want = insn.A32
		}
		if native.Supported() && native.Set() != want {
			return nil, nil, errs.Errorf(etmdef.ErrUnsupportedFeature,
				"%s backend needs %v instructions, this build issues %v", o.Backend, want, native.Set())
		}
		exec, err := native.Open(o.CPU)
		if err != nil {
			return nil, nil, err
		}
		acc, err = access.New(o.Backend, exec, nil)
		if err != nil {
			exec.Close()
			return nil, nil, err
		}
		return acc, exec.Close, nil
	}
	return nil, nil, errs.Errorf(etmdef.ErrConfig, "unknown backend %v", o.Backend)
}

// Run configures the trace unit. The report is returned even when the run
// fails part way; steps applied before the failure are not undone.
func Run(opts Options) (rep *diag.Report, err error) {
	opts.fill()
	acc, release, err := open(opts)
	if err != nil {
		err = errs.AtStep(err, "open", "")
		opts.Logger.Error(err)
		return &diag.Report{Backend: opts.Backend.String(), State: sequencer.Start.String(), Err: err}, err
	}
	defer func() { err = finish(opts.Logger, release, rep, err) }()

	seq := sequencer.New(acc, sequencer.Options{
		Backend:   opts.Backend,
		Strict:    opts.Strict,
		Verify:    opts.Verify,
		IdlePolls: opts.IdlePolls,
		Logger:    opts.Logger,
	})
	return seq.Run()
}

// finish releases the backend after a run. A release failure is logged
// and only replaces err when the run itself succeeded. rep is nil when
// the run panicked.
func finish(log common.Logger, release func() error, rep *diag.Report, err error) error {
	rerr := release()
	if rerr == nil {
		return err
	}
	log.Error(rerr)
	if err != nil {
		return err
	}
	if rep != nil {
		rep.Err = rerr
	}
	return rerr
}

// Stop is the teardown entry point. It does not unconfigure the unit.
func Stop(log common.Logger) {
	if log == nil {
		return
	}
	log.Info("Goodbye!")
}

// RegValue is one register read by Dump.
type RegValue struct {
	Name   string
	Value  uint64
	Fields []regs.FieldValue
	Err    error
}

// Dump reads every register the configuration touches, plus status and
// ID registers. A register that fails to read is reported with its error
// and the rest are still read; the returned error joins them with any
// failure to release the backend.
func Dump(opts Options) (_ []RegValue, err error) {
	opts.fill()
	acc, release, err := open(opts)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, release()) }()

	var out []RegValue
	var all []error
	seen := map[string]bool{}
	plan := sequencer.Plan(sequencer.PlanOptions{Backend: opts.Backend})
	names := []string{"TRCIDR4", "TRCIDR5", "TRCSTATR"}
	if opts.Backend == etmdef.BackendMMIO {
		names = append(names, "TRCLSR")
	}
	for _, st := range plan {
		names = append(names, st.Register.Name)
	}
	for _, name := range names {
		r := regs.MustLookup(name)
		if seen[r.Name] || !r.Access.Readable() {
			continue
		}
		seen[r.Name] = true
		v, err := acc.Read(r)
		if err != nil {
			all = append(all, err)
			out = append(out, RegValue{Name: r.Name, Err: err})
			continue
		}
		out = append(out, RegValue{Name: r.Name, Value: v, Fields: r.Decode(v)})
	}
	return out, errors.Join(all...)
}
