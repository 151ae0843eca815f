// Package sequencer drives a trace unit through the configuration steps:
// disable, program the event path, enable. Each step is checked by the
// precondition gate, applied as a read-modify-write and recorded.
//
// A failing step aborts the run. Steps already applied stay applied.
package sequencer

import (
	"fmt"
	"strings"
	"sync"

	"etmcfg/common"
	"etmcfg/internal/access"
	errs "etmcfg/internal/common"
	"etmcfg/internal/diag"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/gate"
)

// State of the trace unit as far as this run knows.
type State int

const (
	Start State = iota
	Disabled
	Configuring
	Enabled
	Failed
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case Disabled:
		return "Disabled"
	case Configuring:
		return "Configuring"
	case Enabled:
		return "Enabled"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options for a sequencer.
type Options struct {
	Backend   etmdef.Backend
	Strict    bool
	Verify    bool
	IdlePolls int
	Logger    common.Logger
}

// Sequencer runs the plan against one accessor.
type Sequencer struct {
	acc   access.Accessor
	gate  *gate.Gate
	opts  Options
	plan  []Step
	state State
	rec   *diag.Recorder
}

// runMu serialises runs in this process. The trace unit has no lock of its
// own against concurrent programming.
var runMu sync.Mutex

func New(acc access.Accessor, opts Options) *Sequencer {
	mode := gate.Optimistic
	if opts.Strict {
		mode = gate.Strict
	}
	if opts.Logger == nil {
		opts.Logger = common.NewNoOpLogger()
	}
	g := gate.New(acc, mode,
		gate.WithIdlePolls(opts.IdlePolls),
		gate.WithMMIO(opts.Backend == etmdef.BackendMMIO),
		gate.WithResourceSlot(etmdef.ResourceSlot))
	return &Sequencer{
		acc:  acc,
		gate: g,
		opts: opts,
		plan: Plan(PlanOptions{Backend: opts.Backend, Strict: opts.Strict}),
		rec:  diag.NewRecorder(opts.Logger),
	}
}

func (s *Sequencer) Plan() []Step { return s.plan }

func (s *Sequencer) State() State { return s.state }

func (s *Sequencer) Records() []diag.Record { return s.rec.Records() }

// Run applies every step of the plan in order. A Sequencer runs once; a
// second Run fails with a config error and touches nothing.
func (s *Sequencer) Run() (*diag.Report, error) {
	runMu.Lock()
	defer runMu.Unlock()

	if s.state != Start {
		err := errs.Errorf(etmdef.ErrConfig, "sequencer already ran, state %s", s.state)
		return s.report(err), err
	}

	s.opts.Logger.Logf(common.SeverityInfo, "configure trace unit (%s, %s)", s.acc.Name(), s.gate.Mode())
	var runErr error
	for _, st := range s.plan {
		if err := s.advance(st.Phase); err != nil {
			runErr = errs.AtStep(err, st.Name, st.Register.Name)
			break
		}
		if _, err := s.apply(st); err != nil {
			runErr = err
			break
		}
	}
	if runErr != nil {
		s.state = Failed
		s.opts.Logger.Error(runErr)
	}
	return s.report(runErr), runErr
}

// Step runs the named step on its own. The state machine is not advanced,
// so steps can be exercised out of order against the gate.
func (s *Sequencer) Step(name string) (diag.Record, error) {
	runMu.Lock()
	defer runMu.Unlock()
	for _, st := range s.plan {
		if st.Name == name {
			return s.apply(st)
		}
	}
	return diag.Record{}, errs.Errorf(etmdef.ErrConfig, "no step %q in plan (%s)", name, s.stepNames())
}

func (s *Sequencer) stepNames() string {
	names := make([]string, len(s.plan))
	for i, st := range s.plan {
		names[i] = st.Name
	}
	return strings.Join(names, ", ")
}

// advance moves to the given phase. Phases only move forward one at a time.
func (s *Sequencer) advance(to State) error {
	switch {
	case to == s.state:
		return nil
	case s.state != Failed && to == s.state+1:
		s.state = to
		return nil
	}
	return errs.Errorf(etmdef.ErrFail, "illegal transition %v -> %v", s.state, to)
}

func (s *Sequencer) apply(st Step) (diag.Record, error) {
	rec := diag.Record{Step: st.Name, Register: st.Register.Name}

	results, err := s.gate.CheckAll(st.Pre)
	for _, r := range results {
		rec.Gates = append(rec.Gates, r.String())
	}
	if err != nil {
		rec.Status = diag.Skipped
		rec.Err = errs.AtStep(err, st.Name, st.Register.Name)
		s.rec.Add(rec)
		return rec, rec.Err
	}
	if st.CheckOnly() {
		rec.Status = diag.Checked
		s.rec.Add(rec)
		return rec, nil
	}

	before, after, err := access.ApplyRMW(s.acc, st.Register, st.Clear, st.Set)
	rec.Before, rec.After = before, after
	if err != nil {
		rec.Status = diag.Failed
		rec.Err = errs.AtStep(err, st.Name, st.Register.Name)
		s.rec.Add(rec)
		return rec, rec.Err
	}
	if s.opts.Verify && st.Register.Access.Readable() {
		got, err := access.Verify(s.acc, st.Register, st.Clear, after)
		rec.Readback = &got
		if err != nil {
			rec.Status = diag.Failed
			rec.Err = errs.AtStep(err, st.Name, st.Register.Name)
			s.rec.Add(rec)
			return rec, rec.Err
		}
	}
	rec.Status = diag.Applied
	s.rec.Add(rec)
	return rec, nil
}

func (s *Sequencer) report(err error) *diag.Report {
	return &diag.Report{
		Backend: s.acc.Name(),
		Mode:    s.gate.Mode().String(),
		State:   s.state.String(),
		Records: s.rec.Records(),
		Err:     err,
	}
}
