package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/0xjcr/chrome-osint-extension/internal/cdp"
)

// Session is an attached page target. A session is single use: it becomes
// attached once during Open and detached once during Close, and is never
// reattached.
type Session struct {
	targetID string
	id       string
	conn     *cdp.Conn
	log      *zap.Logger

	navTimeout      time.Duration
	settle          time.Duration
	selectorTimeout time.Duration
	pollInterval    time.Duration

	attached  atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// ID is the protocol session identifier.
func (s *Session) ID() string { return s.id }

// TargetID is the page target this session is attached to.
func (s *Session) TargetID() string { return s.targetID }

// Attached reports whether the session is currently usable.
func (s *Session) Attached() bool { return s.attached.Load() }

// Close detaches from the target and closes it. It is idempotent and always
// best effort: failures are logged, never returned, so teardown paths can
// call it unconditionally.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.attached.Store(false)
		close(s.done)

		if _, err := s.conn.Call(ctx, "", "Target.detachFromTarget", map[string]any{
			"sessionId": s.id,
		}); err != nil {
			s.log.Debug("detach from target", zap.Error(err))
		}
		if _, err := s.conn.Call(ctx, "", "Target.closeTarget", map[string]any{
			"targetId": s.targetID,
		}); err != nil {
			s.log.Debug("close target", zap.Error(err))
		}
		s.log.Debug("session closed")
	})
}

// call sends a session-scoped command, decoding the result into out when
// out is non-nil.
func (s *Session) call(ctx context.Context, method string, params any, out any) error {
	if !s.attached.Load() {
		return &NotAttachedError{SessionID: s.id}
	}
	raw, err := s.conn.Call(ctx, s.id, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("browser: decode %s result: %w", method, err)
	}
	return nil
}

// sleep pauses for d unless the context or the session ends first.
func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.done:
		return &NotAttachedError{SessionID: s.id}
	case <-ctx.Done():
		return ctx.Err()
	}
}
