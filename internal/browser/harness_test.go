package browser

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/0xjcr/chrome-osint-extension/internal/cdp"
	"github.com/0xjcr/chrome-osint-extension/internal/config"
)

// fakeChrome implements cdp.Transport with canned browser behavior: targets
// attach instantly, navigations fire lifecycle events after loadDelay, and
// Runtime.evaluate defers to evalFn.
type fakeChrome struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	loadDelay time.Duration // negative means the load event never fires
	evalFn    func(expression string) string
	exprs     []string
	calls     map[string]int
	failWith  map[string]string
	targetSeq int
}

func newFakeChrome() *fakeChrome {
	return &fakeChrome{
		in:       make(chan []byte, 128),
		closed:   make(chan struct{}),
		calls:    make(map[string]int),
		failWith: make(map[string]string),
		evalFn: func(string) string {
			return `{"result":{"type":"undefined"}}`
		},
	}
}

func (f *fakeChrome) WriteFrame(data []byte) error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}

	var cmd struct {
		ID        int64           `json:"id"`
		SessionID string          `json:"sessionId"`
		Method    string          `json:"method"`
		Params    json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}

	f.mu.Lock()
	f.calls[cmd.Method]++
	failMsg := f.failWith[cmd.Method]
	loadDelay := f.loadDelay
	evalFn := f.evalFn
	f.mu.Unlock()

	if failMsg != "" {
		f.reply(fmt.Sprintf(`{"id":%d,"sessionId":%q,"error":{"code":-32000,"message":%q}}`, cmd.ID, cmd.SessionID, failMsg))
		return nil
	}

	switch cmd.Method {
	case "Target.createTarget":
		f.mu.Lock()
		f.targetSeq++
		target := fmt.Sprintf("target-%d", f.targetSeq)
		f.mu.Unlock()
		f.reply(fmt.Sprintf(`{"id":%d,"result":{"targetId":%q}}`, cmd.ID, target))
	case "Target.attachToTarget":
		var p struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(cmd.Params, &p)
		f.reply(fmt.Sprintf(`{"id":%d,"result":{"sessionId":"session-for-%s"}}`, cmd.ID, p.TargetID))
	case "Page.navigate":
		f.reply(fmt.Sprintf(`{"id":%d,"sessionId":%q,"result":{"frameId":"frame-1"}}`, cmd.ID, cmd.SessionID))
		if loadDelay >= 0 {
			session := cmd.SessionID
			time.AfterFunc(loadDelay, func() {
				f.reply(fmt.Sprintf(`{"method":"Page.domContentEventFired","sessionId":%q,"params":{}}`, session))
				f.reply(fmt.Sprintf(`{"method":"Page.loadEventFired","sessionId":%q,"params":{}}`, session))
			})
		}
	case "Runtime.evaluate":
		var p struct {
			Expression string `json:"expression"`
		}
		_ = json.Unmarshal(cmd.Params, &p)
		f.mu.Lock()
		f.exprs = append(f.exprs, p.Expression)
		f.mu.Unlock()
		f.reply(fmt.Sprintf(`{"id":%d,"sessionId":%q,"result":%s}`, cmd.ID, cmd.SessionID, evalFn(p.Expression)))
	default:
		f.reply(fmt.Sprintf(`{"id":%d,"sessionId":%q,"result":{}}`, cmd.ID, cmd.SessionID))
	}
	return nil
}

func (f *fakeChrome) ReadFrame() ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeChrome) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeChrome) reply(raw string) {
	select {
	case f.in <- []byte(raw):
	case <-f.closed:
	}
}

func (f *fakeChrome) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeChrome) fail(method, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith[method] = msg
}

func (f *fakeChrome) setEval(fn func(expression string) string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalFn = fn
}

func (f *fakeChrome) expressions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.exprs))
	copy(out, f.exprs)
	return out
}

func testNetworkConfig() config.NetworkConfig {
	return config.NetworkConfig{
		NavigationTimeout: 2 * time.Second,
		PostLoadWait:      10 * time.Millisecond,
		SelectorTimeout:   time.Second,
		PollInterval:      20 * time.Millisecond,
	}
}

func newTestManager(t *testing.T, fc *fakeChrome, ncfg config.NetworkConfig) *Manager {
	t.Helper()
	conn := cdp.NewConn(fc, zaptest.NewLogger(t))
	t.Cleanup(func() { conn.Close() })
	return NewManager(conn, ncfg, zaptest.NewLogger(t))
}
