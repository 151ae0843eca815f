// Package config reads run settings from ETMCFG_* environment variables.
// Command line flags override them.
package config

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"

	"etmcfg/common"
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/gate"
)

// Settings for one configuration run.
type Settings struct {
	Backend   etmdef.Backend
	Simulate  bool
	SimIni    string
	Strict    bool
	Verify    bool
	CPU       int
	DevMem    string
	MMIOBase  uint64
	IdlePolls int
	LogLevel  common.Severity
}

type raw struct {
	backend   string
	simIni    string
	strict    bool
	verify    bool
	cpu       int
	devMem    string
	mmioBase  string
	idlePolls int
	logLevel  string
}

func readEnv() raw {
	return raw{
		backend:   env.Str("ETMCFG_BACKEND"),
		simIni:    env.Str("ETMCFG_SIM_INI"),
		strict:    env.Bool("ETMCFG_STRICT"),
		verify:    env.Bool("ETMCFG_VERIFY"),
		cpu:       env.Int("ETMCFG_CPU", -1),
		devMem:    env.Str("ETMCFG_DEVMEM", "/dev/mem"),
		mmioBase:  env.Str("ETMCFG_MMIO_BASE"),
		idlePolls: env.Int("ETMCFG_IDLE_POLLS", gate.DefaultIdlePolls),
		logLevel:  env.Str("ETMCFG_LOG_LEVEL", "info"),
	}
}

// Load reads the environment.
func Load() (Settings, error) {
	return resolve(readEnv(), runtime.GOARCH)
}

// DefaultBackend is the instruction backend native to goarch: system
// registers on arm64, CP14 on arm. Other architectures have no native
// path and default to the simulator.
func DefaultBackend(goarch string) (etmdef.Backend, bool) {
	switch goarch {
	case "arm64":
		return etmdef.BackendSysReg, false
	case "arm":
		return etmdef.BackendCoproc, false
	}
	return etmdef.BackendSysReg, true
}

// ParseBackend accepts the access backends plus "sim", which selects the
// simulator behind the architecture's instruction backend.
func ParseBackend(s, goarch string) (b etmdef.Backend, simulate bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		b, simulate = DefaultBackend(goarch)
		return b, simulate, nil
	case "sim":
		b, _ = DefaultBackend(goarch)
		return b, true, nil
	}
	b, err = etmdef.ParseBackend(s)
	if err != nil {
		return b, false, errs.Wrap(etmdef.ErrConfig, err, "ETMCFG_BACKEND")
	}
	return b, false, nil
}

// ParseAddress parses a physical address in decimal, 0x hex or 0 octal.
func ParseAddress(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, errs.Wrap(etmdef.ErrConfig, err, "bad address "+strconv.Quote(s))
	}
	if v%4 != 0 {
		return 0, errs.Errorf(etmdef.ErrConfig, "address 0x%X is not word aligned", v)
	}
	return v, nil
}

func resolve(r raw, goarch string) (Settings, error) {
	s := Settings{
		SimIni:    r.simIni,
		Strict:    r.strict,
		Verify:    r.verify,
		CPU:       r.cpu,
		DevMem:    r.devMem,
		MMIOBase:  etmdef.MMIOBase,
		IdlePolls: r.idlePolls,
	}
	var err error
	if s.Backend, s.Simulate, err = ParseBackend(r.backend, goarch); err != nil {
		return s, err
	}
	if s.SimIni != "" {
		s.Simulate = true
	}
	if r.mmioBase != "" {
		if s.MMIOBase, err = ParseAddress(r.mmioBase); err != nil {
			return s, err
		}
	}
	if s.IdlePolls < 1 {
		return s, errs.Errorf(etmdef.ErrConfig, "ETMCFG_IDLE_POLLS must be positive, got %d", s.IdlePolls)
	}
	if s.LogLevel, err = common.ParseSeverity(r.logLevel); err != nil {
		return s, errs.Wrap(etmdef.ErrConfig, err, "ETMCFG_LOG_LEVEL")
	}
	return s, nil
}
