//go:build !linux

package devmem

import (
	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
)

const DefaultPath = "/dev/mem"

// Window is never returned on this platform.
type Window struct{}

func Open(path string, base uint64, size uint32) (*Window, error) {
	return nil, errs.Errorf(etmdef.ErrMappingFailure, "physical memory mapping is only supported on linux")
}

func (w *Window) Base() uint64                       { return 0 }
func (w *Window) Size() uint32                       { return 0 }
func (w *Window) Read32(off uint32) (uint32, error)  { return 0, errs.ErrMappingFailure }
func (w *Window) Write32(off uint32, v uint32) error { return errs.ErrMappingFailure }
func (w *Window) Close() error                       { return nil }
