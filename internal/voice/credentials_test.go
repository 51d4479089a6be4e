package voice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/strategydeck/internal/voice"
)

func TestProxyCredentials_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/voice-agent" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["action"] != "get-ephemeral-token" {
			t.Errorf("action = %q", body["action"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sess_1","client_secret":{"value":"ek_abc","expires_at":1767225600}}`))
	}))
	defer srv.Close()

	cred, err := voice.NewProxyCredentials(srv.URL+"/", srv.Client()).Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential: %v", err)
	}
	if cred.Value != "ek_abc" {
		t.Errorf("Value = %q, want ek_abc", cred.Value)
	}
	if want := time.Unix(1767225600, 0); !cred.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, want)
	}
}

func TestProxyCredentials_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"details preferred", 500, `{"error":"Internal server error","details":"OpenAI API error: 401"}`, "token request failed: OpenAI API error: 401"},
		{"error only", 400, `{"error":"Invalid action"}`, "token request failed: Invalid action"},
		{"no body", 502, ``, "token request failed: 502 Bad Gateway"},
		{"missing value", 200, `{"client_secret":{}}`, "no client_secret.value"},
		{"bad json", 200, `{`, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := voice.NewProxyCredentials(srv.URL, srv.Client()).Credential(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCredential_Expired(t *testing.T) {
	t.Parallel()
	now := time.Now()
	if (voice.Credential{}).Expired(now) {
		t.Error("credential without expiry reported expired")
	}
	if !(voice.Credential{ExpiresAt: now}).Expired(now) {
		t.Error("credential expiring now not reported expired")
	}
	if (voice.Credential{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Error("future expiry reported expired")
	}
}
