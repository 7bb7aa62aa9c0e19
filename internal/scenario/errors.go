package scenario

import (
	"errors"
	"fmt"
)

// ErrAssertion marks a scenario expectation that did not hold.
var ErrAssertion = errors.New("assertion failed")

// AssertionError is returned when the application behaved, but not as the
// record expected.
type AssertionError struct {
	Msg string
	Err error
}

func (e *AssertionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAssertion, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAssertion, e.Msg)
}

func (e *AssertionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAssertion}
	}
	return []error{ErrAssertion, e.Err}
}

func failf(format string, args ...any) error {
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}
