package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// listenerBuffer is the per-subscription event buffer. Events beyond it are
// dropped rather than stalling the read loop.
const listenerBuffer = 16

// pendingKey identifies an in-flight command. IDs are allocated per session,
// so two sessions may both have a command 7 in flight at once.
type pendingKey struct {
	sessionID string
	id        int64
}

// Conn multiplexes commands and events for any number of sessions over a
// single transport. All methods are safe for concurrent use.
type Conn struct {
	transport Transport
	log       *zap.Logger

	mu       sync.Mutex
	counters map[string]int64
	pending  map[pendingKey]chan *Response

	lmu       sync.RWMutex
	listeners map[*Subscription]struct{}

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	readDone chan struct{}
}

// NewConn wraps a transport and starts its read loop.
func NewConn(transport Transport, log *zap.Logger) *Conn {
	c := &Conn{
		transport: transport,
		log:       log.Named("cdp"),
		counters:  make(map[string]int64),
		pending:   make(map[pendingKey]chan *Response),
		listeners: make(map[*Subscription]struct{}),
		closed:    make(chan struct{}),
		readDone:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends a command and blocks until its response, the context, or
// connection teardown. A non-nil result carries the raw result object.
func (c *Conn) Call(ctx context.Context, sessionID, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, c.err()
	default:
	}

	c.mu.Lock()
	c.counters[sessionID]++
	id := c.counters[sessionID]
	key := pendingKey{sessionID: sessionID, id: id}
	ch := make(chan *Response, 1)
	c.pending[key] = ch
	c.mu.Unlock()

	data, err := codec.Marshal(Command{ID: id, SessionID: sessionID, Method: method, Params: params})
	if err != nil {
		c.removePending(key)
		return nil, fmt.Errorf("cdp: encode %s: %w", method, err)
	}

	c.log.Debug("sending command",
		zap.Int64("id", id),
		zap.String("method", method),
		zap.String("session_id", sessionID))

	if err := c.transport.WriteFrame(data); err != nil {
		c.removePending(key)
		return nil, fmt.Errorf("cdp: write %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, &ProtocolError{
				Method:  method,
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
				Data:    resp.Error.Data,
			}
		}
		return resp.Result, nil
	case <-ctx.Done():
		// The id stays burned; a late response for it is dropped on the
		// floor by dispatchResponse.
		c.removePending(key)
		return nil, ctx.Err()
	case <-c.closed:
		c.removePending(key)
		return nil, c.err()
	}
}

// Subscription is a registered event listener. Close deregisters it and is
// safe to call more than once; only the first call has any effect.
type Subscription struct {
	conn      *Conn
	sessionID string
	methods   map[string]struct{}
	events    chan Event
	once      sync.Once
}

// Events yields matching events in arrival order. Nothing delivered before
// Subscribe appears here.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.conn.lmu.Lock()
		delete(s.conn.listeners, s)
		s.conn.lmu.Unlock()
	})
}

func (s *Subscription) matches(ev Event) bool {
	if ev.SessionID != s.sessionID {
		return false
	}
	if len(s.methods) == 0 {
		return true
	}
	_, ok := s.methods[ev.Method]
	return ok
}

// Subscribe registers a listener for the given methods on a session. No
// methods means every event for the session.
func (c *Conn) Subscribe(sessionID string, methods ...string) *Subscription {
	sub := &Subscription{
		conn:      c,
		sessionID: sessionID,
		methods:   make(map[string]struct{}, len(methods)),
		events:    make(chan Event, listenerBuffer),
	}
	for _, m := range methods {
		sub.methods[m] = struct{}{}
	}
	c.lmu.Lock()
	c.listeners[sub] = struct{}{}
	c.lmu.Unlock()
	return sub
}

// WaitForEvent blocks until one of the methods fires on the session, the
// timeout lapses, or the context ends. The transient listener is always
// removed before returning.
func (c *Conn) WaitForEvent(ctx context.Context, sessionID string, methods []string, timeout time.Duration) (Event, error) {
	sub := c.Subscribe(sessionID, methods...)
	defer sub.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-sub.Events():
		return ev, nil
	case <-timer.C:
		return Event{}, &TimeoutError{Methods: methods, Waited: timeout}
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-c.closed:
		return Event{}, c.err()
	}
}

// Done is closed when the connection tears down.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Close tears the connection down and fails every in-flight call with
// ErrConnectionClosed. It waits for the read loop to exit.
func (c *Conn) Close() error {
	c.shutdown(ErrConnectionClosed)
	<-c.readDone
	return nil
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closed)
		if cerr := c.transport.Close(); cerr != nil {
			c.log.Debug("transport close", zap.Error(cerr))
		}
		c.lmu.Lock()
		c.listeners = make(map[*Subscription]struct{})
		c.lmu.Unlock()
	})
}

// err reports why the connection closed. Only valid after closed is closed.
func (c *Conn) err() error { return c.closeErr }

func (c *Conn) readLoop() {
	defer close(c.readDone)
	for {
		data, err := c.transport.ReadFrame()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Debug("read loop ending", zap.Error(err))
			}
			c.shutdown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}

		var f frame
		if err := codec.Unmarshal(data, &f); err != nil {
			c.log.Warn("discarding malformed frame", zap.Error(err))
			continue
		}

		switch {
		case f.ID != 0:
			c.dispatchResponse(&Response{
				ID:        f.ID,
				SessionID: f.SessionID,
				Result:    f.Result,
				Error:     f.Error,
			})
		case f.Method != "":
			c.dispatchEvent(Event{
				SessionID: f.SessionID,
				Method:    f.Method,
				Params:    f.Params,
			})
		default:
			c.log.Warn("discarding frame with neither id nor method")
		}
	}
}

func (c *Conn) dispatchResponse(resp *Response) {
	key := pendingKey{sessionID: resp.SessionID, id: resp.ID}
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debug("response with no waiter",
			zap.Int64("id", resp.ID),
			zap.String("session_id", resp.SessionID))
		return
	}
	ch <- resp
}

func (c *Conn) dispatchEvent(ev Event) {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	for sub := range c.listeners {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			c.log.Warn("listener buffer full, dropping event",
				zap.String("method", ev.Method),
				zap.String("session_id", ev.SessionID))
		}
	}
}

func (c *Conn) removePending(key pendingKey) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func (c *Conn) listenerCount() int {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	return len(c.listeners)
}
