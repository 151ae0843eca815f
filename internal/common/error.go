package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"etmcfg/internal/etmdef"
)

// Error represents the engine error object.
// Step and Reg locate the failure inside a configuration run when known.
type Error struct {
	Code    etmdef.Err
	Sev     etmdef.ErrSeverity
	Step    string
	Reg     string
	Message string
	Err     error
}

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrConfig             = NewError(etmdef.ErrSevError, etmdef.ErrConfig)
	ErrUnsupportedFeature = NewError(etmdef.ErrSevError, etmdef.ErrUnsupportedFeature)
	ErrMappingFailure     = NewError(etmdef.ErrSevError, etmdef.ErrMappingFailure)
	ErrAllocationFailure  = NewError(etmdef.ErrSevError, etmdef.ErrAllocationFailure)
	ErrAccessTrap         = NewError(etmdef.ErrSevError, etmdef.ErrAccessTrap)
	ErrPrecondition       = NewError(etmdef.ErrSevError, etmdef.ErrPrecondition)
	ErrVerify             = NewError(etmdef.ErrSevError, etmdef.ErrVerify)
	ErrReadOnly           = NewError(etmdef.ErrSevError, etmdef.ErrReadOnly)
	ErrBusy               = NewError(etmdef.ErrSevError, etmdef.ErrBusy)
)

func NewError(sev etmdef.ErrSeverity, code etmdef.Err) *Error {
	return &Error{Code: code, Sev: sev}
}

// Errorf builds an error-severity object with a formatted message.
func Errorf(code etmdef.Err, format string, args ...any) *Error {
	return &Error{Code: code, Sev: etmdef.ErrSevError, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying cause.
func Wrap(code etmdef.Err, cause error, msg string) *Error {
	return &Error{Code: code, Sev: etmdef.ErrSevError, Message: msg, Err: cause}
}

// AtStep returns err annotated with the step and register it failed in.
// Errors that are not *Error are wrapped as ErrFail.
func AtStep(err error, step, reg string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Step == "" {
			out.Step = step
		}
		if out.Reg == "" {
			out.Reg = reg
		}
		return &out
	}
	return &Error{Code: etmdef.ErrFail, Sev: etmdef.ErrSevError, Step: step, Reg: reg, Err: err}
}

// CodeOf returns the code carried by err, OK for nil and ErrFail for foreign errors.
func CodeOf(err error) etmdef.Err {
	if err == nil {
		return etmdef.OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return etmdef.ErrFail
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	switch e.Sev {
	case etmdef.ErrSevError:
		sb.WriteString("ERROR:")
	case etmdef.ErrSevWarn:
		sb.WriteString("WARN :")
	case etmdef.ErrSevInfo:
		sb.WriteString("INFO :")
	default:
		return "INTERNAL ERROR: Invalid Error Object"
	}

	fmt.Fprintf(&sb, "0x%04x ", uint32(e.Code))

	if desc, ok := errorCodeDesc[e.Code]; ok {
		fmt.Fprintf(&sb, "(%s) [%s]; ", desc.name, desc.msg)
	} else {
		sb.WriteString("(unknown); ")
	}

	if e.Step != "" {
		fmt.Fprintf(&sb, "step=%s; ", e.Step)
	}
	if e.Reg != "" {
		fmt.Fprintf(&sb, "reg=%s; ", e.Reg)
	}

	sb.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeDesc is a printable error code entry.
type CodeDesc struct {
	Code etmdef.Err
	Name string
	Msg  string
}

// Codes lists every known error code in code order.
func Codes() []CodeDesc {
	out := make([]CodeDesc, 0, len(errorCodeDesc))
	for code, d := range errorCodeDesc {
		out = append(out, CodeDesc{Code: code, Name: d.name, Msg: d.msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

type errDesc struct {
	name string
	msg  string
}

var errorCodeDesc = map[etmdef.Err]errDesc{
	etmdef.OK:                    {"ETMCFG_OK", "No Error."},
	etmdef.ErrFail:               {"ETMCFG_ERR_FAIL", "General failure."},
	etmdef.ErrConfig:             {"ETMCFG_ERR_CONFIG", "Undefined register, bitfield or invalid configuration value."},
	etmdef.ErrUnsupportedFeature: {"ETMCFG_ERR_UNSUPPORTED_FEATURE", "Trace unit does not implement a required resource."},
	etmdef.ErrMappingFailure:     {"ETMCFG_ERR_MAPPING_FAILURE", "Cannot map the trace unit register window."},
	etmdef.ErrAllocationFailure:  {"ETMCFG_ERR_ALLOCATION_FAILURE", "Cannot obtain scratch state for register access."},
	etmdef.ErrAccessTrap:         {"ETMCFG_ERR_ACCESS_TRAP", "Register access trapped: access level precondition violated."},
	etmdef.ErrPrecondition:       {"ETMCFG_ERR_PRECONDITION", "Architectural precondition for the write does not hold."},
	etmdef.ErrVerify:             {"ETMCFG_ERR_VERIFY", "Register read back does not match the value written."},
	etmdef.ErrReadOnly:           {"ETMCFG_ERR_READ_ONLY", "Attempted to write a read-only register."},
	etmdef.ErrBusy:               {"ETMCFG_ERR_BUSY", "Trace unit did not reach the idle state."},
	etmdef.ErrLast:               {"ETMCFG_ERR_LAST", "No error - error code end marker"},
}
