package browser

import (
	"context"
	"fmt"
	"time"
)

// WaitUntil selects the lifecycle milestone a navigation waits for.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
)

func (w WaitUntil) event() (string, error) {
	switch w {
	case WaitLoad:
		return "Page.loadEventFired", nil
	case WaitDOMContentLoaded:
		return "Page.domContentEventFired", nil
	default:
		return "", fmt.Errorf("browser: unknown wait condition %q", string(w))
	}
}

// GotoOptions tune a single navigation. Zero values fall back to the
// session's configured defaults.
type GotoOptions struct {
	Timeout   time.Duration
	WaitUntil WaitUntil
}

// Goto navigates to url and blocks until the requested lifecycle event
// fires, then pauses briefly so client side rendering can settle. The
// lifecycle listener is registered before the navigate command is sent, so
// a page that loads instantly cannot slip past it.
func (s *Session) Goto(ctx context.Context, url string, opts GotoOptions) error {
	if !s.attached.Load() {
		return &NotAttachedError{SessionID: s.id}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.navTimeout
	}
	waitUntil := opts.WaitUntil
	if waitUntil == "" {
		waitUntil = WaitLoad
	}
	eventMethod, err := waitUntil.event()
	if err != nil {
		return err
	}

	sub := s.conn.Subscribe(s.id, eventMethod)
	defer sub.Close()

	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := s.call(ctx, "Page.navigate", map[string]any{"url": url}, &nav); err != nil {
		return err
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("browser: navigate to %s: %s", url, nav.ErrorText)
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sub.Events():
	case <-timer.C:
		return &NavigationTimeoutError{URL: url, Waited: time.Since(start)}
	case <-s.done:
		return &NotAttachedError{SessionID: s.id}
	case <-s.conn.Done():
		return &NotAttachedError{SessionID: s.id}
	case <-ctx.Done():
		return ctx.Err()
	}

	// Fixed grace period for scripts that render after the load event.
	return s.sleep(ctx, s.settle)
}
