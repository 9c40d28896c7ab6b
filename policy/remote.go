package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RemoteBackend is backend 2: a JSON-over-HTTP policy service, modeled on
// the request/response shape of runtime/a2a/httpclient.Client in the
// broader codebase.
type RemoteBackend struct {
	endpoint string
	http     *http.Client
	headers  http.Header
}

// RemoteOption configures a RemoteBackend.
type RemoteOption func(*RemoteBackend)

// WithRemoteHTTPClient overrides the underlying *http.Client.
func WithRemoteHTTPClient(c *http.Client) RemoteOption {
	return func(b *RemoteBackend) { b.http = c }
}

// WithRemoteHeader adds a static header to every outgoing request (e.g. an
// auth token for the remote policy service).
func WithRemoteHeader(name, value string) RemoteOption {
	return func(b *RemoteBackend) {
		if b.headers == nil {
			b.headers = make(http.Header)
		}
		b.headers.Add(name, value)
	}
}

// NewRemoteBackend constructs a RemoteBackend that queries endpoint for
// policy documents, one GET per (name, ctx).
func NewRemoteBackend(endpoint string, opts ...RemoteOption) *RemoteBackend {
	b := &RemoteBackend{
		endpoint: endpoint,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type remotePolicyEnvelope struct {
	Found  bool           `json:"found"`
	Policy map[string]any `json:"policy"`
}

// Get issues "GET {endpoint}/{name}?ctx=<json-encoded policyCtx>" and decodes
// a remotePolicyEnvelope. A 404 response is reported as ok=false with no
// error. Any other non-2xx response or a transport error is returned as an
// error so the caller (normally a circuit breaker) can count it as a failure.
func (b *RemoteBackend) Get(ctx context.Context, name string, policyCtx map[string]any) (Policy, bool, error) {
	ctxJSON, err := json.Marshal(policyCtx)
	if err != nil {
		return nil, false, fmt.Errorf("encode policy ctx: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s?ctx=%s", b.endpoint, url.PathEscape(name), url.QueryEscape(string(ctxJSON)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build remote policy request: %w", err)
	}
	for k, vs := range b.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("remote policy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("remote policy backend returned status %d", resp.StatusCode)
	}

	var envelope remotePolicyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, false, fmt.Errorf("decode remote policy response: %w", err)
	}
	if !envelope.Found || len(envelope.Policy) == 0 {
		return nil, false, nil
	}
	return Policy(envelope.Policy), true, nil
}
