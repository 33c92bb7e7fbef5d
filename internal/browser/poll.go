package browser

import (
	"context"
	"time"
)

// WaitOptions tune a selector wait. Zero values fall back to the session's
// configured defaults.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForSelector polls the page until the selector matches at least one
// element. The selector is checked immediately, then once per interval
// until the deadline.
func (s *Session) WaitForSelector(ctx context.Context, selector string, opts WaitOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.selectorTimeout
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = s.pollInterval
	}

	deadline := time.Now().Add(timeout)
	for {
		found, err := s.Exists(ctx, selector)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &SelectorTimeoutError{Selector: selector, Waited: timeout}
		}
		if err := s.sleep(ctx, interval); err != nil {
			return err
		}
	}
}
