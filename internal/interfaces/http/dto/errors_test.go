package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeNotADeliveryOrder, http.StatusUnprocessableEntity},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeOrderLocked, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodePlatformError, http.StatusBadGateway},
		{ErrCodeJobFailed, http.StatusBadGateway},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a"}, 41, 2, 20)

	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)

	empty := NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Zero(t, empty.Meta.TotalPages)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(ErrCodePlatformError, "Store is closed", "req-1", map[string]any{"platform_code": "STORE_CLOSED"})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodePlatformError, resp.Error.Code)
	assert.Equal(t, "Store is closed", resp.Error.Message)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, "STORE_CLOSED", resp.Error.Details["platform_code"])
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{}
	p.Normalize()
	assert.Equal(t, PageRequest{Page: 1, PageSize: 20}, p)

	p = PageRequest{Page: 3, PageSize: 50}
	p.Normalize()
	assert.Equal(t, PageRequest{Page: 3, PageSize: 50}, p)
}
