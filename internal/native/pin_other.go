//go:build !linux

package native

import "runtime"

func pin(cpu int) (func() error, error) {
	runtime.LockOSThread()
	return func() error { runtime.UnlockOSThread(); return nil }, nil
}
