package util

import (
	"fmt"

	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Violation is an internal invariant violation. Code generation of the current method is abandoned and the caller
// is expected to fall back to another execution path.
type Violation struct {
	Err error // Underlying error, carrying the stack trace of the failed check.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error returns the message of the underlying error.
func (v *Violation) Error() string {
	return "invariant violation: " + v.Err.Error()
}

// Cause returns the underlying error.
func (v *Violation) Cause() error {
	return v.Err
}

// Unwrap returns the underlying error.
func (v *Violation) Unwrap() error {
	return v.Err
}

// Format prints the stack trace of the underlying error with the %+v verb.
func (v *Violation) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprintf(s, "invariant violation: %+v", v.Err)
		return
	}
	_, _ = fmt.Fprint(s, v.Error())
}

// Violationf panics with a Violation holding the formatted message.
func Violationf(format string, args ...interface{}) {
	panic(&Violation{Err: errors.Errorf(format, args...)})
}

// Assert panics with a Violation holding the formatted message if cond is false.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(&Violation{Err: errors.Errorf(format, args...)})
	}
}

// IsViolation returns true if err, or an error it wraps, is an invariant violation.
func IsViolation(err error) bool {
	for err != nil {
		if _, ok := err.(*Violation); ok {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

// RecoverViolation recovers a Violation panic into *err. Other panics propagate.
func RecoverViolation(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if v, ok := r.(*Violation); ok {
		*err = v
		return
	}
	panic(r)
}
