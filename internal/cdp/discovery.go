package cdp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VersionInfo is the payload served by the debugger's /json/version endpoint.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverWebSocketURL asks a running browser's debugging port for the
// browser-level websocket endpoint.
func DiscoverWebSocketURL(ctx context.Context, host string, port int) (string, error) {
	endpoint := fmt.Sprintf("http://%s:%d/json/version", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("cdp: build discovery request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cdp: query %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cdp: query %s: unexpected status %s", endpoint, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("cdp: read discovery response: %w", err)
	}

	var info VersionInfo
	if err := codec.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("cdp: decode discovery response: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("cdp: %s returned no webSocketDebuggerUrl", endpoint)
	}
	return info.WebSocketDebuggerURL, nil
}
