package domain

import (
	"context"
	"net/http"
)

const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeSkipped   = "skipped"
)

type IngestResult struct {
	EventID   string
	EventType string
	Outcome   string
}

// Service reconciles provider webhooks. payload must be the raw request body.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) (*IngestResult, error)
}
