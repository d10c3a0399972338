package cdpcore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// DefaultDiscoveryEndpoint is the default /json endpoint exposed by a
// Chrome instance started with --remote-debugging-port.
const DefaultDiscoveryEndpoint = "http://localhost:9222/json"

// TargetInfo is one entry returned by the discovery endpoint's target
// list. Browser launching itself is out of scope (an external
// collaborator); this is only the minimal lookup needed to resolve a
// target's websocket debugger URL so a Tab can dial it.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoveryClient queries a running Chrome instance's HTTP discovery
// endpoint for its list of attachable targets.
type DiscoveryClient struct {
	endpoint string
	http     *http.Client
}

// NewDiscoveryClient builds a DiscoveryClient against endpoint (an
// http://host:port/json URL). An empty endpoint uses DefaultDiscoveryEndpoint.
func NewDiscoveryClient(endpoint string) *DiscoveryClient {
	if endpoint == "" {
		endpoint = DefaultDiscoveryEndpoint
	}
	return &DiscoveryClient{endpoint: endpoint, http: &http.Client{Timeout: 10 * time.Second}}
}

// ListTargets fetches the current set of attachable targets.
func (c *DiscoveryClient) ListTargets(ctx context.Context) ([]TargetInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	var targets []TargetInfo
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, &SerializationError{Cause: err}
	}
	return targets, nil
}

// FindPage returns the first target of type "page", which is the common
// case for a caller that just wants to attach to the one open tab.
func (c *DiscoveryClient) FindPage(ctx context.Context) (*TargetInfo, error) {
	targets, err := c.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		if targets[i].Type == "page" {
			return &targets[i], nil
		}
	}
	return nil, Error("no page target found")
}
