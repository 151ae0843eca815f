// Command etmcfg configures the local ETM/ETE trace unit to emit an Event
// element on every SVC exception.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"etmcfg/common"
	"etmcfg/etm"
	"etmcfg/internal/config"
	"etmcfg/internal/sim"
)

var (
	rootOpts = struct {
		backend  string
		strict   bool
		verify   bool
		cpu      int
		devmem   string
		mmioBase string
		simIni   string
		logLevel string
	}{}

	settings config.Settings
	logger   common.Logger = common.NewNoOpLogger()

	rootCmd = &cobra.Command{
		Use:               "etmcfg",
		Short:             "Configure the trace unit to trace SVC exceptions",
		Long:              "Program the ETM/ETE trace unit so that every SVC exception raises trace Event element 0.\nSettings come from ETMCFG_* environment variables; flags override them.",
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootOpts.backend, "backend", "b", "", "access backend: sysreg, coproc, mmio or sim")
	f.BoolVar(&rootOpts.strict, "strict", false, "enforce trace-disabled, idle and software lock preconditions")
	f.BoolVar(&rootOpts.verify, "verify", false, "read back every register after writing it")
	f.IntVar(&rootOpts.cpu, "cpu", -1, "CPU whose trace unit is programmed (instruction backends)")
	f.StringVar(&rootOpts.devmem, "devmem", "/dev/mem", "physical memory device (mmio backend)")
	f.StringVar(&rootOpts.mmioBase, "mmio-base", "", "physical base of the trace unit window (default 0xE0041000)")
	f.StringVar(&rootOpts.simIni, "sim-ini", "", "seed the simulator from a device .ini file or snapshot directory")
	f.StringVar(&rootOpts.logLevel, "log-level", "", "debug, info, warning or error")

	rootCmd.AddCommand(runCmd, stopCmd, dumpCmd, regsCmd, errorsCmd)
}

// loadSettings reads the environment and applies any flags that were set.
func loadSettings(cmd *cobra.Command, args []string) error {
	s, err := config.Load()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("backend") {
		if s.Backend, s.Simulate, err = config.ParseBackend(rootOpts.backend, runtime.GOARCH); err != nil {
			return err
		}
	}
	if f.Changed("strict") {
		s.Strict = rootOpts.strict
	}
	if f.Changed("verify") {
		s.Verify = rootOpts.verify
	}
	if f.Changed("cpu") {
		s.CPU = rootOpts.cpu
	}
	if f.Changed("devmem") {
		s.DevMem = rootOpts.devmem
	}
	if f.Changed("mmio-base") {
		if s.MMIOBase, err = config.ParseAddress(rootOpts.mmioBase); err != nil {
			return err
		}
	}
	if f.Changed("sim-ini") {
		s.SimIni = rootOpts.simIni
		s.Simulate = true
	}
	if f.Changed("log-level") {
		if s.LogLevel, err = common.ParseSeverity(rootOpts.logLevel); err != nil {
			return err
		}
	}
	settings = s
	logger = common.NewStdLogger("etmcfg", s.LogLevel)
	return nil
}

// options turns the settings into run options. The returned unit is non-nil
// when the run is simulated.
func options(s config.Settings) (etm.Options, *sim.Unit, error) {
	opts := etm.DefaultOptions(s.Backend)
	opts.Strict = s.Strict
	opts.Verify = s.Verify
	opts.CPU = s.CPU
	opts.DevMem = s.DevMem
	opts.MMIOBase = s.MMIOBase
	opts.IdlePolls = s.IdlePolls
	opts.Logger = logger
	if !s.Simulate {
		return opts, nil, nil
	}

	u := sim.New()
	if s.SimIni != "" {
		dev, err := common.LoadDevice(s.SimIni)
		if err != nil {
			return opts, nil, err
		}
		var ignored []string
		u, ignored = sim.FromDevice(dev)
		for _, name := range ignored {
			logger.Logf(common.SeverityWarning, "%s: register %s not modelled, ignored", s.SimIni, name)
		}
	}
	opts.Sim = u
	logger.Logf(common.SeverityDebug, "simulating trace unit behind the %s backend", s.Backend)
	return opts, u, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
