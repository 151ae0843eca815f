package etm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"etmcfg/common"
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
	"etmcfg/internal/sim"
)

func TestRunEachBackend(t *testing.T) {
	for _, b := range []etmdef.Backend{etmdef.BackendSysReg, etmdef.BackendCoproc, etmdef.BackendMMIO} {
		t.Run(b.String(), func(t *testing.T) {
			u := sim.New(sim.WithSoftwareLock())
			opts := DefaultOptions(b)
			opts.Sim = u
			opts.Verify = true
			rep, err := Run(opts)
			if err != nil {
				t.Fatal(err)
			}
			if rep.State != "Enabled" || rep.Backend != b.String() {
				t.Errorf("report state %s backend %s", rep.State, rep.Backend)
			}
			if u.Peek("TRCPRGCTLR") != 1 {
				t.Error("trace unit not enabled")
			}
			if u.Mapped() != 0 {
				t.Errorf("%d windows still mapped", u.Mapped())
			}
		})
	}
}

func TestRunReleasesMappingOnFailure(t *testing.T) {
	u := sim.New(sim.WithValue("TRCIDR4", 0))
	opts := DefaultOptions(etmdef.BackendMMIO)
	opts.Sim = u
	rep, err := Run(opts)
	if !errors.Is(err, errs.ErrUnsupportedFeature) {
		t.Fatalf("err = %v", err)
	}
	if rep == nil || rep.State != "Failed" {
		t.Fatalf("report = %+v", rep)
	}
	if u.Mapped() != 0 {
		t.Errorf("%d windows still mapped", u.Mapped())
	}
}

func TestRunMappingFailure(t *testing.T) {
	u := sim.New(sim.WithMapError(errs.Errorf(etmdef.ErrMappingFailure, "no window")))
	opts := DefaultOptions(etmdef.BackendMMIO)
	opts.Sim = u
	rep, err := Run(opts)
	if !errors.Is(err, errs.ErrMappingFailure) {
		t.Fatalf("err = %v", err)
	}
	if rep.State != "Start" {
		t.Errorf("state %s", rep.State)
	}
	if len(u.Log()) != 0 {
		t.Error("registers accessed without a mapping")
	}
}

func TestRunReportsUnmapFailure(t *testing.T) {
	tests := []struct {
		name    string
		idr4    uint64
		wantErr error
		repErr  bool
	}{
		{"after success", sim.DefaultIDR4, errs.ErrMappingFailure, true},
		{"after failure", 0, errs.ErrUnsupportedFeature, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := sim.New(sim.WithValue("TRCIDR4", tt.idr4),
				sim.WithUnmapError(errs.Errorf(etmdef.ErrMappingFailure, "munmap: invalid argument")))
			opts := DefaultOptions(etmdef.BackendMMIO)
			opts.Sim = u
			rep, err := Run(opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := errors.Is(rep.Err, errs.ErrMappingFailure); got != tt.repErr {
				t.Errorf("report err = %v", rep.Err)
			}
			if u.Mapped() != 0 {
				t.Errorf("%d windows still mapped", u.Mapped())
			}
		})
	}
}

func TestFinishWithoutReport(t *testing.T) {
	rerr := errs.Errorf(etmdef.ErrMappingFailure, "munmap failed")
	release := func() error { return rerr }
	if err := finish(common.NewNoOpLogger(), release, nil, nil); !errors.Is(err, errs.ErrMappingFailure) {
		t.Errorf("err = %v, want the release error", err)
	}
	if err := finish(common.NewNoOpLogger(), func() error { return nil }, nil, nil); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestRunLogsSteps(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts := DefaultOptions(etmdef.BackendSysReg)
	opts.Sim = sim.New()
	opts.Logger = common.NewStdLoggerWithWriter("etmcfg", &stdout, &stderr, common.SeverityInfo)
	if _, err := Run(opts); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"step disable: TRCPRGCTLR 0x00000000 -> 0x00000000",
		"step exlevel: TRCVICTLR 0x00000000 -> 0x000F0000",
		"step extinsel: TRCEXTINSELR0 0x00000000 -> 0x00000060",
		"step rsctlr: TRCRSCTLR2 0x00000000 -> 0x00000001",
		"step event0: TRCEVENTCTL0R 0x00000000 -> 0x00000002",
		"step insten: TRCEVENTCTL1R 0x00000000 -> 0x00000001",
		"step enable: TRCPRGCTLR 0x00000000 -> 0x00000001",
	} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("log missing %q", want)
		}
	}
}

func TestStop(t *testing.T) {
	var stdout, stderr bytes.Buffer
	u := sim.New(sim.WithValue("TRCPRGCTLR", 1))
	Stop(common.NewStdLoggerWithWriter("etmcfg", &stdout, &stderr, common.SeverityInfo))
	if !strings.Contains(stdout.String(), "INFO Goodbye!") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if u.Peek("TRCPRGCTLR") != 1 || len(u.Log()) != 0 {
		t.Error("stop touched the unit")
	}
	Stop(nil)
}

func TestDump(t *testing.T) {
	u := sim.New(sim.WithValue("TRCVICTLR", 0x000F0000))
	opts := DefaultOptions(etmdef.BackendMMIO)
	opts.Sim = u
	vals, err := Dump(opts)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, v := range vals {
		names = append(names, v.Name)
	}
	want := []string{"TRCIDR4", "TRCIDR5", "TRCSTATR", "TRCLSR", "TRCPRGCTLR", "TRCVICTLR",
		"TRCEXTINSELR0", "TRCRSCTLR2", "TRCEVENTCTL0R", "TRCEVENTCTL1R"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("dumped registers (-want +got):\n%s", diff)
	}
	for _, v := range vals {
		if v.Name == "TRCVICTLR" && v.Value != 0x000F0000 {
			t.Errorf("TRCVICTLR = 0x%X", v.Value)
		}
	}
	if len(u.Writes()) != 0 {
		t.Error("dump wrote to the unit")
	}
	if u.Mapped() != 0 {
		t.Error("window left mapped")
	}
}

func TestDumpReadFailure(t *testing.T) {
	u := sim.New(sim.WithFailAfter(2, nil))
	opts := DefaultOptions(etmdef.BackendSysReg)
	opts.Sim = u
	vals, err := Dump(opts)
	if !errors.Is(err, errs.ErrAccessTrap) {
		t.Fatalf("err = %v", err)
	}
	if vals[1].Err == nil || vals[0].Err != nil {
		t.Errorf("per-register errors: %v, %v", vals[0].Err, vals[1].Err)
	}
}

func TestDumpJoinsUnmapFailure(t *testing.T) {
	unmap := errs.Errorf(etmdef.ErrMappingFailure, "munmap: invalid argument")
	tests := []struct {
		name string
		opts []sim.Option
		want []error
	}{
		{"unmap only", []sim.Option{sim.WithUnmapError(unmap)}, []error{errs.ErrMappingFailure}},
		{"read and unmap", []sim.Option{sim.WithUnmapError(unmap), sim.WithFailAfter(1, nil)},
			[]error{errs.ErrMappingFailure, errs.ErrAccessTrap}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := sim.New(tt.opts...)
			opts := DefaultOptions(etmdef.BackendMMIO)
			opts.Sim = u
			vals, err := Dump(opts)
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("err = %v, want it to match %v", err, want)
				}
			}
			if len(vals) == 0 {
				t.Error("no register values returned")
			}
			if u.Mapped() != 0 {
				t.Errorf("%d windows still mapped", u.Mapped())
			}
		})
	}
}

func TestUnknownBackend(t *testing.T) {
	opts := DefaultOptions(etmdef.BackendUnknown)
	opts.Sim = sim.New()
	if _, err := Run(opts); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("err = %v", err)
	}
}
