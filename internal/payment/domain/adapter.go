package domain

import (
	"context"
	"net/http"
)

// Adapter authenticates and decodes a provider's webhook deliveries.
// Verify must run over the untouched request body.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}
