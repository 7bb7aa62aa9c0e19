package interact

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout         = errors.New("timeout")
	ErrInteraction     = errors.New("interaction failed")
	ErrArtifactCapture = errors.New("artifact capture failed")
)

// TimeoutError reports a wait budget that ran out.
type TimeoutError struct {
	Op      string
	Target  Target
	Timeout time.Duration
	// Err is the last driver error seen while waiting, if any.
	Err error
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s after %s", ErrTimeout, e.Op, e.Timeout)
	if e.Target != "" {
		msg = fmt.Sprintf("%s: %s %q after %s", ErrTimeout, e.Op, e.Target, e.Timeout)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Err}
}

// InteractionError reports an action the driver refused on a target that
// had already been waited for.
type InteractionError struct {
	Op     string
	Target Target
	Err    error
}

func (e *InteractionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Target == "" {
		return fmt.Sprintf("%s: %s: %v", ErrInteraction, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %q: %v", ErrInteraction, e.Op, e.Target, e.Err)
}

func (e *InteractionError) Unwrap() []error { return []error{ErrInteraction, e.Err} }

// ArtifactCaptureError reports a diagnostic capture that could not be
// written. Callers record it; they never fail on it.
type ArtifactCaptureError struct {
	Checkpoint string
	Err        error
}

func (e *ArtifactCaptureError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: checkpoint %q: %v", ErrArtifactCapture, e.Checkpoint, e.Err)
}

func (e *ArtifactCaptureError) Unwrap() []error { return []error{ErrArtifactCapture, e.Err} }
