// Package handler exposes the delivery integration operations over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/pos/backend/internal/application/integration"
	"github.com/pos/backend/internal/interfaces/http/dto"
	"github.com/pos/backend/internal/interfaces/http/middleware"
)

// requestID returns the ID assigned by the logging middleware
func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// respond writes a service envelope. Failures take their HTTP status from the error code.
func respond[T any](c *gin.Context, okStatus int, resp integrationapp.ServiceResponse[T]) {
	if resp.Success {
		c.JSON(okStatus, dto.NewSuccessResponse(resp.Data))
		return
	}
	fail(c, resp.ErrorCode, resp.Error, resp.Details)
}

// respondErr classifies err the way the service layer does
func respondErr(c *gin.Context, err error) {
	respond(c, http.StatusOK, integrationapp.FailFrom[struct{}](err))
}

func fail(c *gin.Context, code, message string, details map[string]any) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, requestID(c), details))
}

// bindJSON decodes the body into obj, answering 400 on failure
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if details := middleware.ValidationDetails(err); details != nil {
			fail(c, dto.ErrCodeValidation, "Request validation failed", details)
			return false
		}
		fail(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON", nil)
		return false
	}
	return true
}

// uuidParam parses a UUID path parameter, answering 400 when malformed
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, dto.ErrCodeInvalidInput, "Invalid "+name+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// uuidQuery parses a required UUID query parameter
func uuidQuery(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		fail(c, dto.ErrCodeValidation, name+" is required", map[string]any{"fields": map[string]any{name: "This field is required"}})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		fail(c, dto.ErrCodeInvalidInput, "Invalid "+name+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}
