// Package errors defines the structured error used for every fatal condition
// raised inside a contract call.
//
// Inside a call, fatal conditions are raised with Abort, which panics with an *Error.
// The dispatcher recovers the panic and turns it into an ordinary error return, so
// embedding hosts never have to deal with unwinding themselves.
package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode   Phase = "encode"   // Go value to bytes
	PhaseDecode   Phase = "decode"   // bytes to Go value
	PhaseProxy    Phase = "proxy"    // object/key addressing
	PhaseDispatch Phase = "dispatch" // entry point routing
	PhaseHost     Phase = "host"     // host state store
	PhaseContract Phase = "contract" // contract-level checks
	PhaseLoad     Phase = "load"     // module loading
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds     Kind = "out_of_bounds"
	KindInvalidData     Kind = "invalid_data"
	KindTypeMismatch    Kind = "type_mismatch"
	KindNotFound        Kind = "not_found"
	KindPrecondition    Kind = "precondition"
	KindVersionMismatch Kind = "version_mismatch"
	KindUnsupported     Kind = "unsupported"
	KindOutOfGas        Kind = "out_of_gas"
)

// Error is the structured error type used throughout wasmlib
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// ErrVersionMismatch matches any version mismatch error through errors.Is
var ErrVersionMismatch = &Error{Phase: PhaseLoad, Kind: KindVersionMismatch}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Abort panics with the constructed error
func (b *Builder) Abort() {
	Abort(b.Build())
}

// Abort terminates the in-flight call with err
func Abort(err *Error) {
	panic(err)
}

// Abortf is shorthand for New(phase, kind).Detail(msg, args...).Abort()
func Abortf(phase Phase, kind Kind, msg string, args ...any) {
	New(phase, kind).Detail(msg, args...).Abort()
}

// Recover converts a value obtained from recover() into an error.
// Panics that did not originate from Abort are wrapped as contract errors.
func Recover(r any) error {
	switch v := r.(type) {
	case nil:
		return nil
	case *Error:
		return v
	case error:
		return &Error{Phase: PhaseContract, Kind: KindInvalidData, Cause: v}
	default:
		return &Error{Phase: PhaseContract, Kind: KindInvalidData, Detail: fmt.Sprint(v)}
	}
}

// Guard runs fn and returns any abort raised inside it as an error
func Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Recover(r)
		}
	}()
	fn()
	return nil
}
