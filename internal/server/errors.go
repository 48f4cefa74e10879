package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	authdomain "github.com/smallbiznis/storefront/internal/auth/domain"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	downloaddomain "github.com/smallbiznis/storefront/internal/download/domain"
	entitlementdomain "github.com/smallbiznis/storefront/internal/entitlement/domain"
	historydomain "github.com/smallbiznis/storefront/internal/history/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type        string            `json:"type"`
	Message     string            `json:"message"`
	Errors      []ValidationError `json:"errors,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Details     map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var owned *checkoutdomain.AlreadyOwnedError
	var storage *downloaddomain.StorageUnavailableError

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "authentication required",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid webhook signature",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload",
			Message: "invalid webhook payload",
		}
	case errors.Is(err, downloaddomain.ErrAssetGone):
		return http.StatusGone, errorPayload{
			Type:    "gone",
			Message: "this asset is no longer available",
		}
	case errors.Is(err, downloaddomain.ErrNotEntitled):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "you do not own this product",
		}
	case errors.Is(err, downloaddomain.ErrEntitlementExpired):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "your access has expired",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.As(err, &owned):
		return http.StatusConflict, errorPayload{
			Type:        "conflict",
			Message:     "you already own this product",
			RedirectURL: owned.RedirectURL,
		}
	case errors.Is(err, accountdomain.ErrAccountExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "an account with this email already exists",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.As(err, &storage):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "downloads are temporarily unavailable",
			Details: map[string]any{
				"asset_id":   storage.AssetID.String(),
				"asset_name": storage.AssetName,
				"missing":    storage.Missing,
			},
		}
	case errors.Is(err, checkoutdomain.ErrCheckoutDisabled):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "checkout is currently disabled",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, paymentdomain.ErrUpstream):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "payment provider request failed",
		}
	case errors.Is(err, downloaddomain.ErrPresignFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "could not create a download link",
		}
	case errors.Is(err, accountdomain.ErrDeliveryFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "verification email could not be sent",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidName),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidPassword),
		errors.Is(err, accountdomain.ErrInvalidVerification),
		errors.Is(err, accountdomain.ErrVerificationExpired),
		errors.Is(err, checkoutdomain.ErrPriceRequired),
		errors.Is(err, checkoutdomain.ErrProductInactive),
		errors.Is(err, checkoutdomain.ErrInvalidProduct),
		errors.Is(err, checkoutdomain.ErrInvalidMode),
		errors.Is(err, entitlementdomain.ErrInvalidRequest):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound),
		errors.Is(err, catalogdomain.ErrAssetNotFound),
		errors.Is(err, checkoutdomain.ErrProductNotFound),
		errors.Is(err, downloaddomain.ErrAssetNotFound),
		errors.Is(err, entitlementdomain.ErrNotFound),
		errors.Is(err, historydomain.ErrPurchaseNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, checkoutdomain.ErrPriceRequired):
		return "invalid_price_id"
	case errors.Is(err, checkoutdomain.ErrProductInactive):
		return "invalid_product"
	case errors.Is(err, checkoutdomain.ErrInvalidMode):
		return "invalid_mode"
	case errors.Is(err, accountdomain.ErrVerificationExpired):
		return "invalid_token"
	case errors.Is(err, accountdomain.ErrInvalidVerification):
		return "invalid_token"
	case errors.Is(err, entitlementdomain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return rootError(err).Error()
	}
}

func rootError(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_password":
		return "password must be at least 8 characters"
	case "invalid_email":
		return "a valid email address is required"
	case "invalid_name":
		return "name is required"
	case "invalid_price_id":
		return "priceId is required"
	case "invalid_product":
		return "this product is not available for purchase"
	case "invalid_mode":
		return "mode must be payment or subscription"
	case "invalid_token":
		return "the verification link is invalid or has expired"
	default:
		return "invalid value"
	}
}
