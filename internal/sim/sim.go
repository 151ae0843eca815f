// Package sim is a software model of a trace unit. It stands in for the
// hardware behind every access path: it executes register transfer
// instructions and serves as a memory mapped register window.
package sim

import (
	"sort"
	"sync"

	"etmcfg/common"
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/insn"
	"etmcfg/internal/regs"
)

// Default ID register values: seven resource selector pairs and four
// external input selectors.
const (
	DefaultIDR4 uint64 = 0x11170004
	DefaultIDR5 uint64 = 0x00070804
)

// Access is one entry of the access log.
type Access struct {
	Reg   string
	Dir   insn.Dir
	Value uint64
	Path  string
}

// Unit is a simulated trace unit. The zero value is not usable; call New.
type Unit struct {
	mu sync.Mutex

	table *regs.Table
	vals  map[string]uint64
	bySel map[regs.Selector]*regs.Register
	byOff map[uint32]*regs.Register

	lockImpl bool
	locked   bool

	trapSys   bool
	failAfter int
	failErr   error
	mapErr    error
	unmapErr  error

	accesses int
	log      []Access
	mapped   int
}

// Option configures a Unit.
type Option func(*Unit)

// WithValue seeds a register value by name. Unknown names panic.
func WithValue(name string, v uint64) Option {
	return func(u *Unit) {
		r, err := u.table.Lookup(name)
		if err != nil {
			panic(err)
		}
		u.vals[r.Name] = v & 0xFFFFFFFF
	}
}

// WithSoftwareLock models a CoreSight software lock that starts locked.
func WithSoftwareLock() Option {
	return func(u *Unit) {
		u.lockImpl = true
		u.locked = true
	}
}

// WithSysRegTrap makes every instruction access trap, as when trace
// register access is disabled at a higher exception level.
func WithSysRegTrap() Option {
	return func(u *Unit) { u.trapSys = true }
}

// WithFailAfter makes access number n (counting from 1, all paths) fail
// with err. A nil err means an access trap.
func WithFailAfter(n int, err error) Option {
	return func(u *Unit) {
		u.failAfter = n
		u.failErr = err
	}
}

// WithMapError makes Map fail with err.
func WithMapError(err error) Option {
	return func(u *Unit) { u.mapErr = err }
}

// WithUnmapError makes Window.Close fail with err. The window is still
// released.
func WithUnmapError(err error) Option {
	return func(u *Unit) { u.unmapErr = err }
}

// New returns a unit with all control registers zero and the default ID
// register values.
func New(opts ...Option) *Unit {
	u := &Unit{
		table: regs.Default(),
		vals:  map[string]uint64{},
		bySel: map[regs.Selector]*regs.Register{},
		byOff: map[uint32]*regs.Register{},
	}
	for _, r := range u.table.All() {
		if r.HasSys {
			u.bySel[r.Sys] = r
		}
		if r.HasOffset {
			u.byOff[r.Offset] = r
		}
	}
	u.vals["TRCIDR4"] = DefaultIDR4
	u.vals["TRCIDR5"] = DefaultIDR5
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// FromDevice builds a unit seeded from a snapshot device description.
// Registers the model does not know are ignored and returned by name.
func FromDevice(dev common.DeviceIni, opts ...Option) (*Unit, []string) {
	u := New(opts...)
	var ignored []string
	for _, name := range dev.Order {
		r, err := u.table.Lookup(name)
		if err != nil {
			ignored = append(ignored, name)
			continue
		}
		u.vals[r.Name] = dev.Regs[name] & 0xFFFFFFFF
	}
	return u, ignored
}

// Peek returns a register value without counting as an access.
func (u *Unit) Peek(name string) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	r, err := u.table.Lookup(name)
	if err != nil {
		panic(err)
	}
	return u.value(r)
}

// Poke sets a register value directly, bypassing access rules.
func (u *Unit) Poke(name string, v uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	r, err := u.table.Lookup(name)
	if err != nil {
		panic(err)
	}
	u.vals[r.Name] = v & 0xFFFFFFFF
}

// Log returns a copy of the access log.
func (u *Unit) Log() []Access {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Access, len(u.log))
	copy(out, u.log)
	return out
}

// Touched reports whether any logged access hit the named register.
func (u *Unit) Touched(name string) bool {
	for _, a := range u.Log() {
		if a.Reg == name {
			return true
		}
	}
	return false
}

// Writes returns the logged writes only.
func (u *Unit) Writes() []Access {
	var out []Access
	for _, a := range u.Log() {
		if a.Dir == insn.Write {
			out = append(out, a)
		}
	}
	return out
}

// Mapped returns the number of live window mappings.
func (u *Unit) Mapped() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.mapped
}

// Locked reports the software lock state.
func (u *Unit) Locked() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.locked
}

// Snapshot returns the modelled register state as a device description.
func (u *Unit) Snapshot(name string) common.DeviceIni {
	u.mu.Lock()
	defer u.mu.Unlock()
	dev := common.DeviceIni{Name: name, Class: "trace_source", Type: "ETE", Regs: map[string]uint64{}}
	all := u.table.All()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Offset < all[j].Offset })
	for _, r := range all {
		if !r.Access.Readable() {
			continue
		}
		if _, set := u.vals[r.Name]; !set && r.Indexed() {
			continue
		}
		dev.Regs[r.Name] = u.value(r)
		dev.Order = append(dev.Order, r.Name)
	}
	return dev
}

// value returns what a read of r observes. Status registers are derived
// from the control state.
func (u *Unit) value(r *regs.Register) uint64 {
	switch r.Name {
	case "TRCSTATR":
		if u.vals["TRCPRGCTLR"]&1 == 0 {
			return 0x3 // IDLE | PMSTABLE
		}
		return 0
	case "TRCLSR":
		var v uint64
		if u.lockImpl {
			v |= 1
		}
		if u.locked {
			v |= 2
		}
		return v
	}
	return u.vals[r.Name]
}

// access applies one read or write. Callers hold u.mu.
func (u *Unit) access(r *regs.Register, dir insn.Dir, in uint64, path string) (uint64, error) {
	u.accesses++
	if u.failAfter > 0 && u.accesses == u.failAfter {
		err := u.failErr
		if err == nil {
			err = errs.Errorf(etmdef.ErrAccessTrap, "injected fault on %s", r.Name)
		}
		return 0, err
	}

	if dir == insn.Read {
		v := u.value(r)
		u.log = append(u.log, Access{Reg: r.Name, Dir: dir, Value: v, Path: path})
		return v, nil
	}

	in &= 0xFFFFFFFF
	u.log = append(u.log, Access{Reg: r.Name, Dir: dir, Value: in, Path: path})
	switch {
	case r.Name == "TRCLAR":
		if u.lockImpl {
			u.locked = in != etmdef.CoreSightUnlockKey
		}
	case !r.Access.Writable():
		// RO: write ignored
	default:
		u.vals[r.Name] = in
	}
	return 0, nil
}
