package browser

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/0xjcr/chrome-osint-extension/internal/cdp"
	"github.com/0xjcr/chrome-osint-extension/internal/config"
)

// enabledDomains are switched on for every new session before it is handed
// to callers.
var enabledDomains = []string{"Page.enable", "Runtime.enable", "DOM.enable"}

// Manager owns the browser connection and mints page sessions from it.
type Manager struct {
	conn *cdp.Conn
	log  *zap.Logger
	cfg  config.NetworkConfig
}

// Connect discovers the browser's debugger endpoint, dials it, and returns
// a manager ready to open sessions.
func Connect(ctx context.Context, bcfg config.BrowserConfig, ncfg config.NetworkConfig, log *zap.Logger) (*Manager, error) {
	wsURL, err := cdp.DiscoverWebSocketURL(ctx, bcfg.Host, bcfg.Port)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, bcfg.DialTimeout)
	defer cancel()

	transport, err := cdp.Dial(dialCtx, wsURL)
	if err != nil {
		return nil, err
	}

	log.Info("connected to browser", zap.String("endpoint", wsURL))
	return NewManager(cdp.NewConn(transport, log), ncfg, log), nil
}

// NewManager wraps an established connection.
func NewManager(conn *cdp.Conn, ncfg config.NetworkConfig, log *zap.Logger) *Manager {
	return &Manager{
		conn: conn,
		log:  log.Named("browser"),
		cfg:  ncfg,
	}
}

// Open creates a blank page target, attaches to it in flat mode, and
// enables the domains sessions depend on. On any failure the half-built
// target is torn down best effort and an AttachError is returned.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	var created struct {
		TargetID string `json:"targetId"`
	}
	raw, err := m.conn.Call(ctx, "", "Target.createTarget", map[string]any{
		"url": "about:blank",
	})
	if err != nil {
		return nil, &AttachError{Stage: "createTarget", Err: err}
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, &AttachError{Stage: "createTarget", Err: err}
	}

	var attach struct {
		SessionID string `json:"sessionId"`
	}
	raw, err = m.conn.Call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": created.TargetID,
		"flatten":  true,
	})
	if err != nil {
		m.discardTarget(ctx, created.TargetID)
		return nil, &AttachError{Stage: "attachToTarget", TargetID: created.TargetID, Err: err}
	}
	if err := json.Unmarshal(raw, &attach); err != nil {
		m.discardTarget(ctx, created.TargetID)
		return nil, &AttachError{Stage: "attachToTarget", TargetID: created.TargetID, Err: err}
	}

	s := &Session{
		targetID:        created.TargetID,
		id:              attach.SessionID,
		conn:            m.conn,
		log:             m.log.With(zap.String("session_id", attach.SessionID)),
		navTimeout:      m.cfg.NavigationTimeout,
		settle:          m.cfg.PostLoadWait,
		selectorTimeout: m.cfg.SelectorTimeout,
		pollInterval:    m.cfg.PollInterval,
		done:            make(chan struct{}),
	}
	s.attached.Store(true)

	for _, method := range enabledDomains {
		if err := s.call(ctx, method, nil, nil); err != nil {
			s.Close(ctx)
			return nil, &AttachError{Stage: method, TargetID: created.TargetID, Err: err}
		}
	}

	s.log.Debug("session opened", zap.String("target_id", created.TargetID))
	return s, nil
}

// Close shuts the underlying connection down.
func (m *Manager) Close() error {
	return m.conn.Close()
}

func (m *Manager) discardTarget(ctx context.Context, targetID string) {
	if _, err := m.conn.Call(ctx, "", "Target.closeTarget", map[string]any{
		"targetId": targetID,
	}); err != nil {
		m.log.Debug("discard target", zap.String("target_id", targetID), zap.Error(err))
	}
}
