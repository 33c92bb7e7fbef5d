package browser

import (
	"fmt"
	"time"
)

// AttachError reports a failure while opening a page session: target
// creation, attachment, or domain enablement.
type AttachError struct {
	Stage    string
	TargetID string
	Err      error
}

func (e *AttachError) Error() string {
	if e.TargetID != "" {
		return fmt.Sprintf("browser: attach failed during %s (target %s): %v", e.Stage, e.TargetID, e.Err)
	}
	return fmt.Sprintf("browser: attach failed during %s: %v", e.Stage, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// NotAttachedError reports use of a session that is closed or was never
// fully attached.
type NotAttachedError struct {
	SessionID string
}

func (e *NotAttachedError) Error() string {
	return fmt.Sprintf("browser: session %s is not attached", e.SessionID)
}

// NavigationTimeoutError reports that a page did not reach its lifecycle
// milestone within the navigation deadline.
type NavigationTimeoutError struct {
	URL    string
	Waited time.Duration
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("browser: navigation to %s timed out after %s", e.URL, e.Waited)
}

// SelectorTimeoutError reports that a selector never matched within the
// polling deadline.
type SelectorTimeoutError struct {
	Selector string
	Waited   time.Duration
}

func (e *SelectorTimeoutError) Error() string {
	return fmt.Sprintf("browser: selector %q did not appear within %s", e.Selector, e.Waited)
}

// EvaluationError carries the description of an exception thrown by
// injected script.
type EvaluationError struct {
	Text string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("browser: evaluation failed: %s", e.Text)
}
