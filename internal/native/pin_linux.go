//go:build linux

package native

import (
	"runtime"

	"golang.org/x/sys/unix"

	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
)

func pin(cpu int) (func() error, error) {
	runtime.LockOSThread()
	if cpu < 0 {
		return func() error { runtime.UnlockOSThread(); return nil }, nil
	}

	var old unix.CPUSet
	if err := unix.SchedGetaffinity(0, &old); err != nil {
		runtime.UnlockOSThread()
		return nil, errs.Wrap(etmdef.ErrFail, err, "read CPU affinity")
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, errs.Wrap(etmdef.ErrConfig, err, "pin to CPU")
	}
	return func() error {
		err := unix.SchedSetaffinity(0, &old)
		runtime.UnlockOSThread()
		return err
	}, nil
}
