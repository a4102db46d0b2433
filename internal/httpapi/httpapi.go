// Package httpapi implements the four outbound calls to an entry node's
// HOPR REST API (spec.md §4.3). Each call function is a one-shot blocking
// worker: it performs exactly one HTTP round trip and returns a typed
// result, never touching reducer state itself (the reducer decides what to
// do with the result).
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
	"github.com/gnosisvpn/gnosisvpnd/internal/remote"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
)

// Deadline is the hard per-call timeout, spec.md §4.3.
const Deadline = 30 * time.Second

// Client issues the four entry-node calls against a single base endpoint.
// Grounded on original_source/gnosis_vpn/src/session.rs (open, close) and
// original_source/gnosis-vpn/src/entry_node.rs (query_addresses); no
// ecosystem HTTP client library appears anywhere in the retrieved example
// pack for this role, so the stdlib net/http client is used directly
// (see DESIGN.md).
type Client struct {
	httpClient *http.Client
	base       *url.URL
	apiToken   string
}

// NewClient returns a Client targeting base with apiToken sent as the
// x-auth-token header on every request.
func NewClient(base *url.URL, apiToken string) *Client {
	return &Client{
		httpClient: &http.Client{},
		base:       base,
		apiToken:   apiToken,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	u := *c.base
	u.Path = joinPath(u.Path, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("httpapi: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-auth-token", c.apiToken)

	//nolint:bodyclose // caller reads and closes the response body.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by the caller into a *remote.CallError.
	}

	return resp, nil
}

func joinPath(base, add string) string {
	switch {
	case base == "" || base == "/":
		return add
	default:
		return base + add
	}
}

// GetAddresses performs GET /api/v3/account/addresses.
func (c *Client) GetAddresses(ctx context.Context) (session.Addresses, *remote.CallError) {
	var out session.Addresses

	err := c.call(ctx, http.MethodGet, "/api/v3/account/addresses", nil, &out)

	return out, err
}

// openSessionBody is the literal wire shape of the open_session request
// body, spec.md §4.3.
type openSessionBody struct {
	Destination  string            `json:"destination"`
	Target       map[string]string `json:"target"`
	Path         json.RawMessage   `json:"path"`
	Capabilities []string          `json:"capabilities"`
	ListenHost   string            `json:"listenHost,omitempty"`
}

// OpenSessionRequest collects the parameters needed to build an
// open_session request body.
type OpenSessionRequest struct {
	Destination  peerid.ID
	Target       session.Target
	Path         session.Path
	Capabilities []session.Capability
	ListenHost   string
}

// OpenSession performs POST /api/v3/session/udp.
func (c *Client) OpenSession(ctx context.Context, req OpenSessionRequest) (session.Session, *remote.CallError) {
	body, err := json.Marshal(buildOpenSessionBody(req))
	if err != nil {
		return session.Session{}, &remote.CallError{Err: fmt.Errorf("httpapi: encode open_session body: %w", err)}
	}

	var out session.Session

	callErr := c.call(ctx, http.MethodPost, "/api/v3/session/udp", body, &out)

	return out, callErr
}

func buildOpenSessionBody(req OpenSessionRequest) openSessionBody {
	targetType := req.Target.Type
	if targetType == "" {
		targetType = session.TargetPlain
	}

	host := req.Target.Host
	if host == "" {
		host = session.DefaultTargetHost
	}

	port := req.Target.Port
	if port == 0 {
		port = session.DefaultTargetPort
	}

	caps := req.Capabilities
	if len(caps) == 0 {
		caps = session.DefaultCapabilities()
	}

	capStrs := make([]string, len(caps))
	for i, cp := range caps {
		capStrs[i] = string(cp)
	}

	return openSessionBody{
		Destination: req.Destination.String(),
		Target: map[string]string{
			string(targetType): host + ":" + strconv.Itoa(int(port)),
		},
		Path:         pathJSON(req.Path),
		Capabilities: capStrs,
		ListenHost:   req.ListenHost,
	}
}

func pathJSON(p session.Path) json.RawMessage {
	if p.IsHop() {
		raw, _ := json.Marshal(struct {
			Hops uint8 `json:"Hops"`
		}{Hops: *p.Hops})

		return raw
	}

	ids := make([]string, len(p.Intermediates))
	for i, id := range p.Intermediates {
		ids[i] = id.String()
	}

	raw, _ := json.Marshal(struct {
		IntermediatePath []string `json:"IntermediatePath"`
	}{IntermediatePath: ids})

	return raw
}

// ListSessions performs GET /api/v3/session/udp.
func (c *Client) ListSessions(ctx context.Context) ([]session.Session, *remote.CallError) {
	var out []session.Session

	err := c.call(ctx, http.MethodGet, "/api/v3/session/udp", nil, &out)

	return out, err
}

// CloseSession performs DELETE /api/v3/session/udp/{ip}/{port}.
func (c *Client) CloseSession(ctx context.Context, ip string, port uint16) *remote.CallError {
	path := fmt.Sprintf("/api/v3/session/udp/%s/%d", ip, port)

	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return &remote.CallError{Err: err}
	}

	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return &remote.CallError{Status: resp.StatusCode, Body: decodeErrorBody(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var discard any
	if jsonErr := json.Unmarshal(raw, &discard); jsonErr != nil {
		return &remote.CallError{Status: resp.StatusCode, Err: jsonErr}
	}

	return nil
}

// call performs a GET-shaped (or provided-body) request and decodes a 2xx
// JSON response into out, per the "status.is_success() && body decodes"
// success rule in spec.md §4.3.
func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) *remote.CallError {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return &remote.CallError{Err: err}
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &remote.CallError{Status: resp.StatusCode, Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		return &remote.CallError{Status: resp.StatusCode, Body: decodeErrorBody(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &remote.CallError{Status: resp.StatusCode, Err: fmt.Errorf("httpapi: decode response: %w", err)}
	}

	return nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func decodeErrorBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	return v
}

