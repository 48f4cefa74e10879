package domain

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrUpstream         = errors.New("payment_provider_error")
)

// Business errors. The reconciler logs and acknowledges these so a single
// malformed event never blocks later deliveries.
var (
	ErrUnknownProduct   = errors.New("unknown_product")
	ErrMissingEmail     = errors.New("missing_customer_email")
	ErrInvalidProductID = errors.New("invalid_product_id")
)

// IsBusinessError reports whether err should be acknowledged rather than retried.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrUnknownProduct) ||
		errors.Is(err, ErrMissingEmail) ||
		errors.Is(err, ErrInvalidProductID)
}

// UpstreamError carries the provider's message for a failed API call.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return ErrUpstream.Error()
	}
	return ErrUpstream.Error() + ": " + e.Message
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
