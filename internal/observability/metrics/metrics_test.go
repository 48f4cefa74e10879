package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_type", "checkout.session.completed"),
		attribute.String("account_id", "456"),
		attribute.String("outcome", "processed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "account_id" {
			t.Fatal("expected account_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordWebhookEvent(context.Background(), "stripe", "checkout.session.completed", "processed")
	m.RecordDownload(context.Background(), "granted")
	m.RecordEntitlementGrant(context.Background(), "checkout")
	m.RecordCheckoutSession(context.Background(), "catalog", "created")
	m.RecordRateLimitDenied(context.Background(), "login")
}
