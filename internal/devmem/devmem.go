//go:build linux

// Package devmem maps a physical register window through /dev/mem.
package devmem

import (
	"errors"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
)

// DefaultPath is the physical memory device.
const DefaultPath = "/dev/mem"

// Window is a live mapping of a physical register window.
type Window struct {
	base    uint64
	mapping []byte
	mem     []byte
}

// Open maps size bytes of physical memory at base. The mapping covers
// whole pages; base need not be page aligned. ENOMEM is reported as an
// allocation failure, everything else as a mapping failure.
func Open(path string, base uint64, size uint32) (*Window, error) {
	if path == "" {
		path = DefaultPath
	}
	if size == 0 || base%4 != 0 {
		return nil, errs.Errorf(etmdef.ErrMappingFailure, "bad register window 0x%X+0x%X", base, size)
	}
	page := uint64(os.Getpagesize())
	pageBase := base &^ (page - 1)
	delta := base - pageBase
	length := (delta + uint64(size) + page - 1) &^ (page - 1)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errs.Wrap(etmdef.ErrMappingFailure, &os.PathError{Op: "open", Path: path, Err: err}, "")
	}
	// The mapping stays valid after the descriptor is closed.
	defer unix.Close(fd)

	mapping, err := unix.Mmap(fd, int64(pageBase), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		code := etmdef.ErrMappingFailure
		if errors.Is(err, unix.ENOMEM) {
			code = etmdef.ErrAllocationFailure
		}
		return nil, errs.Wrap(code, err, "mmap register window")
	}
	return &Window{base: base, mapping: mapping, mem: mapping[delta : delta+uint64(size)]}, nil
}

func (w *Window) Base() uint64 { return w.base }
func (w *Window) Size() uint32 { return uint32(len(w.mem)) }

// Read32 performs one 32-bit load. The atomic load keeps the compiler
// from merging or dropping device accesses.
func (w *Window) Read32(off uint32) (uint32, error) {
	p, err := w.word(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Write32 performs one 32-bit store.
func (w *Window) Write32(off uint32, v uint32) error {
	p, err := w.word(off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, v)
	return nil
}

// Close unmaps the window. It is safe to call more than once.
func (w *Window) Close() error {
	if w.mapping == nil {
		return nil
	}
	mapping := w.mapping
	w.mapping, w.mem = nil, nil
	if err := unix.Munmap(mapping); err != nil {
		return errs.Wrap(etmdef.ErrMappingFailure, err, "munmap register window")
	}
	return nil
}

func (w *Window) word(off uint32) (*uint32, error) {
	switch {
	case w.mem == nil:
		return nil, errs.Errorf(etmdef.ErrMappingFailure, "register window is closed")
	case off%4 != 0 || uint64(off)+4 > uint64(len(w.mem)):
		return nil, errs.Errorf(etmdef.ErrConfig, "offset 0x%X outside the 0x%X byte window", off, len(w.mem))
	}
	return (*uint32)(unsafe.Pointer(&w.mem[off])), nil
}
