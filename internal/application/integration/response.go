package integration

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
	"github.com/pos/backend/internal/domain/shared"
)

// Error codes carried by a failed ServiceResponse
const (
	CodeNotFound            = "NOT_FOUND"
	CodeNotADeliveryOrder   = "NOT_A_DELIVERY_ORDER"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidState        = "INVALID_STATE"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeOrderLocked         = "ORDER_LOCKED"
	CodeIntegrationInactive = "INTEGRATION_INACTIVE"
	CodePlatformError       = "PLATFORM_ERROR"
	CodeJobFailed           = "JOB_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DetailPlatformCode is the Details key holding the provider-level error code
const DetailPlatformCode = "platform_code"

// ServiceResponse is the envelope every RegistryService operation returns.
// Business failures never surface as Go errors above this layer.
type ServiceResponse[T any] struct {
	Success   bool           `json:"success"`
	Data      T              `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// OK wraps a successful result
func OK[T any](data T) ServiceResponse[T] {
	return ServiceResponse[T]{Success: true, Data: data}
}

// Fail builds a failed response
func Fail[T any](code, message string, details map[string]any) ServiceResponse[T] {
	return ServiceResponse[T]{Error: message, ErrorCode: code, Details: details}
}

// FailFrom converts err into a failed response. Provider failures keep the provider's
// literal message; their own code goes into Details.
func FailFrom[T any](err error) ServiceResponse[T] {
	code, details := classify(err)
	return Fail[T](code, integration.ErrorMessage(err), details)
}

func classify(err error) (string, map[string]any) {
	var pe *integration.PlatformError
	if errors.As(err, &pe) {
		details := map[string]any{
			DetailPlatformCode: pe.Code,
			"provider":         string(pe.Provider),
		}
		if pe.StatusCode != 0 {
			details["status_code"] = pe.StatusCode
		}
		return CodePlatformError, details
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return CodeValidation, map[string]any{"fields": fields}
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code, nil
	}

	switch {
	case errors.Is(err, integration.ErrIntegrationNotFound),
		errors.Is(err, integration.ErrWebhookEntryNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return CodeNotFound, nil
	case errors.Is(err, order.ErrNotADeliveryOrder):
		return CodeNotADeliveryOrder, nil
	case errors.Is(err, order.ErrLockNotAcquired):
		return CodeOrderLocked, nil
	case errors.Is(err, order.ErrStatusConflict):
		return CodeConcurrencyConflict, nil
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, integration.ErrWebhookEntryNotExhausted),
		errors.Is(err, integration.ErrWebhookEntryAlreadyComplete),
		errors.Is(err, integration.ErrUnsupportedTransition):
		return CodeInvalidState, nil
	case errors.Is(err, integration.ErrIntegrationInactive):
		return CodeIntegrationInactive, nil
	case errors.Is(err, integration.ErrUnsupportedProvider),
		errors.Is(err, integration.ErrInvalidOrganizationID),
		errors.Is(err, integration.ErrMissingStoreID),
		errors.Is(err, integration.ErrInvalidDenyReason),
		errors.Is(err, integration.ErrInvalidCredentials),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, integration.ErrEmptyMenu),
		errors.Is(err, integration.ErrInvalidMenuItem),
		errors.Is(err, integration.ErrDuplicateMenuItem),
		errors.Is(err, integration.ErrInvalidModifierGroup):
		return CodeInvalidInput, nil
	}
	return CodeInternal, nil
}
