package observe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

func TestInitProvider_ServesPrometheus(t *testing.T) {
	origMP := otel.GetMeterProvider()
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	tel, err := InitProvider(context.Background(), ProviderConfig{ServiceName: "strategydeck-test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordAuthAttempt(context.Background(), true)

	rec := httptest.NewRecorder()
	tel.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	if !strings.Contains(text, "strategydeck_auth_attempts") {
		t.Error("exposition missing strategydeck_auth_attempts")
	}
	if !strings.Contains(text, "go_goroutines") {
		t.Error("exposition missing Go runtime collector output")
	}
}

func TestNewResource_KeepsSDKSchema(t *testing.T) {
	res, err := newResource(ProviderConfig{ServiceName: "strategydeck", ServiceVersion: "1.2.3"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if got, want := res.SchemaURL(), resource.Default().SchemaURL(); got != want {
		t.Errorf("SchemaURL() = %q, want %q", got, want)
	}
	set := res.Set()
	for key, want := range map[attribute.Key]string{
		"service.name":    "strategydeck",
		"service.version": "1.2.3",
	} {
		if v, ok := set.Value(key); !ok || v.AsString() != want {
			t.Errorf("%s = %q, want %q", key, v.AsString(), want)
		}
	}
}
