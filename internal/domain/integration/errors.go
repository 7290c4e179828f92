package integration

import (
	"errors"
	"fmt"
)

var (
	// Provider / client errors
	ErrUnsupportedProvider     = errors.New("integration: unsupported provider")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformOrderNotFound   = errors.New("integration: platform order not found")
	ErrUnsupportedTransition   = errors.New("integration: status transition not supported by provider")
	ErrInvalidSignature        = errors.New("integration: invalid webhook signature")
	ErrInvalidWebhookPayload   = errors.New("integration: invalid webhook payload")

	// Menu errors
	ErrEmptyMenu            = errors.New("integration: menu has no categories")
	ErrInvalidMenuItem      = errors.New("integration: invalid menu item")
	ErrDuplicateMenuItem    = errors.New("integration: duplicate menu item ID")
	ErrInvalidModifierGroup = errors.New("integration: invalid modifier group bounds")

	// Integration record errors
	ErrIntegrationNotFound         = errors.New("integration: integration not found")
	ErrInvalidOrganizationID       = errors.New("integration: invalid organization ID")
	ErrIntegrationInactive         = errors.New("integration: integration is not active")
	ErrInvalidDenyReason           = errors.New("integration: invalid deny reason")
	ErrInvalidCredentials          = errors.New("integration: invalid credentials")
	ErrMissingStoreID              = errors.New("integration: store ID is required")
	ErrWebhookEntryNotFound        = errors.New("integration: webhook entry not found")
	ErrWebhookEntryNotExhausted    = errors.New("integration: webhook entry is not exhausted")
	ErrWebhookEntryAlreadyComplete = errors.New("integration: webhook entry already processed")

	// ErrPermanentFailure marks a webhook processing failure that retrying cannot fix
	ErrPermanentFailure = errors.New("integration: permanent webhook failure")
)

// Platform error codes carried by PlatformError
const (
	CodeAuthFailed            = "AUTH_FAILED"
	CodeNetworkError          = "NETWORK_ERROR"
	CodeInvalidResponse       = "INVALID_RESPONSE"
	CodeUnsupportedTransition = "UNSUPPORTED_TRANSITION"
	CodeSyncStatusFailed      = "SYNC_STATUS_FAILED"
	CodeNotFound              = "NOT_FOUND"
	codeHTTPPrefix            = "HTTP_"
)

// PlatformError is the tagged failure of a provider call.
// Message carries the provider's literal message when one was returned.
type PlatformError struct {
	Provider   Provider
	Code       string
	Message    string
	StatusCode int
	Body       string
}

// NewPlatformError creates a platform error
func NewPlatformError(provider Provider, code, message string) *PlatformError {
	return &PlatformError{Provider: provider, Code: code, Message: message}
}

// HTTPErrorCode returns the code used for a non-2xx response without a provider error code
func HTTPErrorCode(status int) string {
	return fmt.Sprintf("%s%d", codeHTTPPrefix, status)
}

// Error implements the error interface
func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap maps the code onto the matching sentinel so callers can use errors.Is
func (e *PlatformError) Unwrap() error {
	switch e.Code {
	case CodeAuthFailed:
		return ErrPlatformAuthFailed
	case CodeInvalidResponse:
		return ErrPlatformInvalidResponse
	case CodeUnsupportedTransition:
		return ErrUnsupportedTransition
	case CodeNotFound:
		return ErrPlatformOrderNotFound
	default:
		return ErrPlatformRequestFailed
	}
}

// IsAuthFailure returns true if err is an authentication failure
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrPlatformAuthFailed)
}

// ErrorMessage returns the most specific human-readable message carried by err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PlatformError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
