// Package gate evaluates the architectural preconditions a configuration
// step depends on before the step writes anything.
//
// Feature checks read the ID registers and are enforced in every mode.
// State checks (trace disabled, idle, software lock) are only enforced in
// strict mode; otherwise they are assumed to hold, relying on the step
// order to keep the writes safe.
package gate

import (
	"fmt"

	"etmcfg/internal/access"
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/regs"
)

// Kind names a precondition.
type Kind int

const (
	None              Kind = iota
	TraceDisabled          // TRCPRGCTLR.EN == 0
	Idle                   // TRCSTATR.IDLE == 1
	TrapDisabled           // trace register access is not trapped at this EL
	ResourceSelectors      // TRCIDR4.NUMRSPAIR covers the resource slot
	ExtInSelectors         // TRCIDR5.NUMEXTINSEL covers the selector
	SoftwareUnlocked       // TRCLSR.SLK == 0, memory mapped access only
)

var kindNames = [...]string{
	None:              "none",
	TraceDisabled:     "trace-disabled",
	Idle:              "idle",
	TrapDisabled:      "trap-disabled",
	ResourceSelectors: "resource-selectors",
	ExtInSelectors:    "extin-selectors",
	SoftwareUnlocked:  "software-unlocked",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Mode selects which preconditions are enforced.
type Mode int

const (
	Optimistic Mode = iota
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "optimistic"
}

// Verdict is the outcome of one check.
type Verdict int

const (
	Pass   Verdict = iota // verified
	Assume                // not verified, proceeding
	Skip                  // does not apply to this backend
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Assume:
		return "assume"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Result of evaluating one precondition.
type Result struct {
	Kind    Kind
	Verdict Verdict
	Err     error
}

func (r Result) String() string {
	return r.Kind.String() + "=" + r.Verdict.String()
}

// DefaultIdlePolls is the number of TRCSTATR reads made waiting for Idle.
const DefaultIdlePolls = 100

// Gate checks preconditions through an accessor.
type Gate struct {
	acc       access.Accessor
	mode      Mode
	mmio      bool
	idlePolls int
	slot      int
	extInSel  int
}

// Option configures a Gate.
type Option func(*Gate)

// WithIdlePolls sets how many times TRCSTATR is read waiting for Idle.
// Values below one select the default.
func WithIdlePolls(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.idlePolls = n
		}
	}
}

// WithMMIO marks the accessor as memory mapped, which enables the software
// lock check.
func WithMMIO(mmio bool) Option {
	return func(g *Gate) { g.mmio = mmio }
}

// WithResourceSlot sets the resource selector the feature check covers.
// Slots outside etmdef.ResourceSlotMin-ResourceSlotMax fail the check.
func WithResourceSlot(n int) Option {
	return func(g *Gate) { g.slot = n }
}

func New(acc access.Accessor, mode Mode, opts ...Option) *Gate {
	g := &Gate{
		acc:       acc,
		mode:      mode,
		idlePolls: DefaultIdlePolls,
		slot:      etmdef.ResourceSlot,
		extInSel:  etmdef.ExtInSelector,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gate) Mode() Mode { return g.mode }

// Check evaluates one precondition.
func (g *Gate) Check(k Kind) Result {
	var v Verdict
	var err error
	switch k {
	case None:
		v = Pass
	case TrapDisabled:
		// Needs CPACR_EL1/CPTR_EL2, which are not readable from here.
		v = Assume
	case ResourceSelectors:
		v, err = g.resourceSelectors()
	case ExtInSelectors:
		v, err = g.extInSelectors()
	case TraceDisabled:
		v, err = g.strictOnly(g.traceDisabled)
	case Idle:
		v, err = g.strictOnly(g.idle)
	case SoftwareUnlocked:
		if !g.mmio {
			v = Skip
		} else {
			v, err = g.strictOnly(g.unlocked)
		}
	default:
		v, err = Fail, errs.Errorf(etmdef.ErrConfig, "unknown precondition %v", k)
	}
	if err != nil {
		v = Fail
	}
	return Result{Kind: k, Verdict: v, Err: err}
}

// CheckAll evaluates kinds in order and stops at the first failure.
func (g *Gate) CheckAll(kinds []Kind) ([]Result, error) {
	out := make([]Result, 0, len(kinds))
	for _, k := range kinds {
		r := g.Check(k)
		out = append(out, r)
		if r.Verdict == Fail {
			return out, r.Err
		}
	}
	return out, nil
}

func (g *Gate) strictOnly(check func() error) (Verdict, error) {
	if g.mode != Strict {
		return Assume, nil
	}
	if err := check(); err != nil {
		return Fail, err
	}
	return Pass, nil
}

func (g *Gate) resourceSelectors() (Verdict, error) {
	if g.slot < etmdef.ResourceSlotMin || g.slot > etmdef.ResourceSlotMax {
		return Fail, errs.Errorf(etmdef.ErrConfig, "resource selector %d outside %d-%d",
			g.slot, etmdef.ResourceSlotMin, etmdef.ResourceSlotMax)
	}
	r := regs.MustLookup("TRCIDR4")
	n, err := access.ReadField(g.acc, r, "NUMRSPAIR")
	if err != nil {
		return Fail, err
	}
	if n == 0 {
		return Fail, errs.AtStep(errs.Errorf(etmdef.ErrUnsupportedFeature,
			"no resource selector pairs implemented"), "", r.Name)
	}
	if max := 2 * (n + 1); uint64(g.slot) >= max {
		return Fail, errs.AtStep(errs.Errorf(etmdef.ErrUnsupportedFeature,
			"resource selector %d not implemented, %d available", g.slot, max), "", r.Name)
	}
	return Pass, nil
}

func (g *Gate) extInSelectors() (Verdict, error) {
	r := regs.MustLookup("TRCIDR5")
	n, err := access.ReadField(g.acc, r, "NUMEXTINSEL")
	if err != nil {
		return Fail, err
	}
	if n == 0 || uint64(g.extInSel) >= n {
		return Fail, errs.AtStep(errs.Errorf(etmdef.ErrUnsupportedFeature,
			"external input selector %d not implemented, %d available", g.extInSel, n), "", r.Name)
	}
	return Pass, nil
}

func (g *Gate) traceDisabled() error {
	r := regs.MustLookup("TRCPRGCTLR")
	en, err := access.ReadField(g.acc, r, "EN")
	if err != nil {
		return err
	}
	if en != 0 {
		return errs.AtStep(errs.Errorf(etmdef.ErrPrecondition, "trace unit is enabled"), "", r.Name)
	}
	return nil
}

func (g *Gate) idle() error {
	r := regs.MustLookup("TRCSTATR")
	for i := 0; i < g.idlePolls; i++ {
		idle, err := access.ReadField(g.acc, r, "IDLE")
		if err != nil {
			return err
		}
		if idle == 1 {
			return nil
		}
	}
	return errs.AtStep(errs.Errorf(etmdef.ErrBusy,
		"trace unit not idle after %d polls", g.idlePolls), "", r.Name)
}

func (g *Gate) unlocked() error {
	r := regs.MustLookup("TRCLSR")
	v, err := g.acc.Read(r)
	if err != nil {
		return err
	}
	if r.MustField("SLI").Extract(v) == 1 && r.MustField("SLK").Extract(v) == 1 {
		return errs.AtStep(errs.Errorf(etmdef.ErrPrecondition, "software lock is set"), "", r.Name)
	}
	return nil
}
