package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Credential is a short-lived secret for one realtime call. It is used for a
// single SDP exchange and never stored.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether c has a known expiry before now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CredentialSource obtains a fresh [Credential].
type CredentialSource interface {
	Credential(ctx context.Context) (Credential, error)
}

// ProxyCredentials asks the strategydeck server for an ephemeral credential
// through POST /api/voice-agent.
type ProxyCredentials struct {
	endpoint string
	client   *http.Client
}

var _ CredentialSource = (*ProxyCredentials)(nil)

// NewProxyCredentials creates a [ProxyCredentials] for the server at baseURL.
// A nil client uses an otelhttp-instrumented default.
func NewProxyCredentials(baseURL string, client *http.Client) *ProxyCredentials {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 30 * time.Second}
	}
	return &ProxyCredentials{endpoint: strings.TrimRight(baseURL, "/") + "/api/voice-agent", client: client}
}

type tokenResponse struct {
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Credential implements [CredentialSource].
func (p *ProxyCredentials) Credential(ctx context.Context) (Credential, error) {
	body, _ := json.Marshal(map[string]string{"action": "get-ephemeral-token"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Credential{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := tr.Details
		if msg == "" {
			msg = tr.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return Credential{}, fmt.Errorf("token request failed: %s", msg)
	}
	if decodeErr != nil {
		return Credential{}, fmt.Errorf("token request failed: decode response: %w", decodeErr)
	}
	if tr.ClientSecret.Value == "" {
		return Credential{}, errors.New("token request failed: response has no client_secret.value")
	}

	c := Credential{Value: tr.ClientSecret.Value}
	if tr.ClientSecret.ExpiresAt > 0 {
		c.ExpiresAt = time.Unix(tr.ClientSecret.ExpiresAt, 0)
	}
	return c, nil
}
