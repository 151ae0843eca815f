//go:build !(linux && (arm64 || arm))

package native

import "etmcfg/internal/insn"

var (
	archSet      = insn.A64
	archRoutines map[string]routine
)
