package pdf

import (
	"context"
	"io"
)

// Provider renders customer-facing documents.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}
