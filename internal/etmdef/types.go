package etmdef

import (
	"fmt"
	"strings"
)

// Compiled-in configuration. None of these are run-time inputs.
const (
	// PMUEventSVC is the PMU event number for an SVC exception taken.
	PMUEventSVC uint64 = 0x60

	// ResourceSlot is the resource selector bound to external input 0.
	// Selectors 0 and 1 are fixed by the architecture, so usable slots are 2-31.
	ResourceSlot    = 2
	ResourceSlotMin = 2
	ResourceSlotMax = 31

	// EventChannel is the event channel that generates the Event element.
	EventChannel = 0

	// ExtInSelector is the external input selector fed by the PMU event.
	ExtInSelector = 0
)

// Memory mapped trace unit window.
const (
	MMIOBase uint64 = 0xE0041000
	MMIOSize uint32 = 0x1000

	// CoreSightUnlockKey is written to TRCLAR to clear the software lock.
	CoreSightUnlockKey uint64 = 0xC5ACCE55
)

// Err represents the engine error code type.
type Err uint32

const (
	OK                    Err = 0
	ErrFail               Err = 1
	ErrConfig             Err = 2
	ErrUnsupportedFeature Err = 3
	ErrMappingFailure     Err = 4
	ErrAllocationFailure  Err = 5
	ErrAccessTrap         Err = 6
	ErrPrecondition       Err = 7
	ErrVerify             Err = 8
	ErrReadOnly           Err = 9
	ErrBusy               Err = 10
	ErrLast               Err = 11
)

// ErrSeverity is the severity attached to an error object.
type ErrSeverity uint32

const (
	ErrSevNone  ErrSeverity = 0
	ErrSevError ErrSeverity = 1
	ErrSevWarn  ErrSeverity = 2
	ErrSevInfo  ErrSeverity = 3
)

// Backend selects the physical path used to reach the trace unit registers.
type Backend uint32

const (
	BackendUnknown Backend = iota
	// BackendCoproc uses AArch32 CP14 MRC/MCR instructions.
	BackendCoproc
	// BackendMMIO uses loads and stores into the memory mapped register window.
	BackendMMIO
	// BackendSysReg uses AArch64 MRS/MSR instructions.
	BackendSysReg
)

var backendNames = map[Backend]string{
	BackendCoproc: "coproc",
	BackendMMIO:   "mmio",
	BackendSysReg: "sysreg",
}

func (b Backend) String() string {
	if s, ok := backendNames[b]; ok {
		return s
	}
	return "unknown"
}

// ParseBackend converts a backend name (coproc, mmio, sysreg) to a Backend.
func ParseBackend(s string) (Backend, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for b, n := range backendNames {
		if n == name {
			return b, nil
		}
	}
	return BackendUnknown, fmt.Errorf("unknown access backend %q (want coproc, mmio or sysreg)", s)
}

// Access describes what software may do with a register.
type Access uint32

const (
	AccessRW Access = iota
	AccessRO
	AccessWO
)

func (a Access) String() string {
	switch a {
	case AccessRW:
		return "RW"
	case AccessRO:
		return "RO"
	case AccessWO:
		return "WO"
	default:
		return "??"
	}
}

// Readable reports whether a read returns meaningful data.
func (a Access) Readable() bool { return a != AccessWO }

// Writable reports whether a write has an effect.
func (a Access) Writable() bool { return a != AccessRO }

// BitMask returns a mask with the low bits set.
func BitMask(bits int) uint64 {
	if bits <= 0 {
		return 0
	}
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}
