package sequencer

import (
	"etmcfg/internal/etmdef"
	"etmcfg/internal/gate"
	"etmcfg/internal/regs"
)

// Step is one read-modify-write of a register, guarded by preconditions.
// A step with an empty Clear mask only evaluates its preconditions.
type Step struct {
	Name      string
	Register  *regs.Register
	Clear     uint64
	Set       uint64
	Rationale string
	Pre       []gate.Kind
	Phase     State
}

// CheckOnly reports whether the step writes nothing.
func (s Step) CheckOnly() bool { return s.Clear == 0 }

// PlanOptions selects the optional steps of a plan.
type PlanOptions struct {
	Backend etmdef.Backend
	Strict  bool
}

func fieldMask(r *regs.Register, names ...string) uint64 {
	var m uint64
	for _, n := range names {
		m |= r.MustField(n).Mask()
	}
	return m
}

// Plan builds the ordered step list. The order is fixed: feature checks,
// unlock (memory mapped only), disable, configure, enable.
func Plan(opts PlanOptions) []Step {
	prgctlr := regs.MustLookup("TRCPRGCTLR")
	victlr := regs.MustLookup("TRCVICTLR")
	extinsel := mustIndexed("TRCEXTINSELR", etmdef.ExtInSelector)
	rsctlr := mustIndexed("TRCRSCTLR", etmdef.ResourceSlot)
	evctl0 := regs.MustLookup("TRCEVENTCTL0R")
	evctl1 := regs.MustLookup("TRCEVENTCTL1R")
	en := prgctlr.MustField("EN")

	var plan []Step
	plan = append(plan, Step{
		Name:      "check-features",
		Register:  regs.MustLookup("TRCIDR4"),
		Rationale: "resource selector pairs and external input selectors must exist",
		Pre:       []gate.Kind{gate.ResourceSelectors, gate.ExtInSelectors},
		Phase:     Start,
	})
	if opts.Backend == etmdef.BackendMMIO {
		lar := regs.MustLookup("TRCLAR")
		plan = append(plan, Step{
			Name:      "unlock",
			Register:  lar,
			Clear:     lar.MustField("KEY").Mask(),
			Set:       etmdef.CoreSightUnlockKey,
			Rationale: "clear the software lock so memory mapped writes take effect",
			Phase:     Start,
		})
	}
	plan = append(plan, Step{
		Name:      "disable",
		Register:  prgctlr,
		Clear:     en.Mask(),
		Set:       en.Place(0),
		Rationale: "trace unit must be disabled while it is programmed",
		Pre:       []gate.Kind{gate.TrapDisabled, gate.SoftwareUnlocked},
		Phase:     Disabled,
	})
	if opts.Strict {
		plan = append(plan, Step{
			Name:      "wait-idle",
			Register:  regs.MustLookup("TRCSTATR"),
			Rationale: "programming is only safe once the unit reports idle",
			Pre:       []gate.Kind{gate.Idle},
			Phase:     Disabled,
		})
	}

	exS := victlr.MustField("EXLEVEL_S_EL")
	exNS := victlr.MustField("EXLEVEL_NS_EL")
	evtCount := extinsel.MustField("evtCount")
	ev0Sel := evctl0.MustField("EVENT0_SEL")
	plan = append(plan,
		Step{
			Name:      "exlevel",
			Register:  victlr,
			Clear:     exS.Mask() | exNS.Mask(),
			Set:       exS.Place(exS.Max()) | exNS.Place(0),
			Rationale: "trace every non-secure exception level, exclude all secure ones",
			Pre:       []gate.Kind{gate.TraceDisabled, gate.Idle},
			Phase:     Configuring,
		},
		Step{
			Name:      "extinsel",
			Register:  extinsel,
			Clear:     evtCount.Mask(),
			Set:       evtCount.Place(etmdef.PMUEventSVC),
			Rationale: "feed the SVC exception PMU event into external input 0",
			Pre:       []gate.Kind{gate.ExtInSelectors, gate.TraceDisabled},
			Phase:     Configuring,
		},
		Step{
			Name:      "rsctlr",
			Register:  rsctlr,
			Clear:     fieldMask(rsctlr, "GROUP", "SELECT"),
			Set:       rsctlr.MustField("EXTIN").Place(1 << etmdef.ExtInSelector),
			Rationale: "resource selector watches external input 0",
			Pre:       []gate.Kind{gate.ResourceSelectors, gate.TraceDisabled, gate.Idle},
			Phase:     Configuring,
		},
		Step{
			Name:      "event0",
			Register:  evctl0,
			Clear:     fieldMask(evctl0, "EVENT0_SEL", "EVENT0_TYPE"),
			Set:       ev0Sel.Place(etmdef.ResourceSlot),
			Rationale: "event 0 fires on the bound resource selector",
			Pre:       []gate.Kind{gate.TraceDisabled},
			Phase:     Configuring,
		},
		Step{
			Name:      "insten",
			Register:  evctl1,
			Clear:     uint64(1) << (evctl1.MustField("INSTEN").Lsb + etmdef.EventChannel),
			Set:       uint64(1) << (evctl1.MustField("INSTEN").Lsb + etmdef.EventChannel),
			Rationale: "generate an Event element when event 0 fires",
			Pre:       []gate.Kind{gate.TraceDisabled, gate.Idle},
			Phase:     Configuring,
		},
		Step{
			Name:      "enable",
			Register:  prgctlr,
			Clear:     en.Mask(),
			Set:       en.Place(1),
			Rationale: "start tracing",
			Pre:       []gate.Kind{gate.TrapDisabled},
			Phase:     Enabled,
		},
	)
	return plan
}

func mustIndexed(base string, n int) *regs.Register {
	r, err := regs.LookupIndexed(base, n)
	if err != nil {
		panic(err)
	}
	return r
}
