package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Defaults for the SDP exchange.
const (
	DefaultRealtimeURL = "https://api.openai.com/v1/realtime"
	DefaultModel       = "gpt-4o-realtime-preview-2024-12-17"
)

// Negotiator trades a local SDP offer for the remote answer.
type Negotiator interface {
	Negotiate(ctx context.Context, cred Credential, offer string) (answer string, err error)
}

// SDPNegotiator posts the offer straight to the realtime service,
// authenticated with the ephemeral credential.
type SDPNegotiator struct {
	endpoint string
	client   *http.Client
}

var _ Negotiator = (*SDPNegotiator)(nil)

// NewSDPNegotiator creates an [SDPNegotiator]. Empty baseURL or model select
// the defaults; a nil client uses an otelhttp-instrumented default.
func NewSDPNegotiator(baseURL, model string, client *http.Client) *SDPNegotiator {
	if baseURL == "" {
		baseURL = DefaultRealtimeURL
	}
	if model == "" {
		model = DefaultModel
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 30 * time.Second}
	}
	return &SDPNegotiator{
		endpoint: strings.TrimRight(baseURL, "/") + "?model=" + url.QueryEscape(model),
		client:   client,
	}
}

// Negotiate implements [Negotiator].
func (n *SDPNegotiator) Negotiate(ctx context.Context, cred Credential, offer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("build SDP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Value)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("SDP exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("SDP exchange failed: %d", resp.StatusCode)
	}
	answer, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("SDP exchange failed: read answer: %w", err)
	}
	return string(answer), nil
}
