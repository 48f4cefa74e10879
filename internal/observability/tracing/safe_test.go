package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesKeepsAllowList(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/download/:assetId"),
		attribute.String("storage_key", "products/secret.zip"),
		attribute.Int("http.status_code", 302),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "storage_key" {
			t.Fatal("expected storage_key to be dropped")
		}
	}
}

func TestSafeErrorHidesMessage(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	err := SafeError(errors.New("whsec_abc leaked"))
	if err.Error() != "request failed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
