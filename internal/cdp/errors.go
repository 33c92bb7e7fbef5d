package cdp

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConnectionClosed is returned by operations on a connection that has
// been closed, either locally or because the browser went away.
var ErrConnectionClosed = errors.New("cdp: connection closed")

// ProtocolError is the error payload the browser returned for a command.
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
	Data    string
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp: %s: %s (code %d): %s", e.Method, e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("cdp: %s: %s (code %d)", e.Method, e.Message, e.Code)
}

// TimeoutError reports that an event wait exceeded its deadline before any
// of the awaited methods arrived.
type TimeoutError struct {
	Methods []string
	Waited  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cdp: timed out after %s waiting for %s", e.Waited, strings.Join(e.Methods, "|"))
}
