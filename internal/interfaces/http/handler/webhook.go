package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/pos/backend/internal/interfaces/http/dto"
)

// headers never persisted with a webhook entry
var droppedHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
}

// WebhookHandler ingests provider webhooks and exposes the dead-letter operations
type WebhookHandler struct {
	queue  WebhookQueue
	runner BatchRunner
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(queue WebhookQueue, runner BatchRunner) *WebhookHandler {
	return &WebhookHandler{queue: queue, runner: runner}
}

// IngestResponse acknowledges a stored webhook
type IngestResponse struct {
	Received bool      `json:"received"`
	ID       uuid.UUID `json:"id"`
}

// WebhookEntryResponse describes a queued webhook without its payload
type WebhookEntryResponse struct {
	ID             uuid.UUID            `json:"id"`
	Provider       integration.Provider `json:"provider"`
	OrganizationID string               `json:"organization_id"`
	RetryCount     int                  `json:"retry_count"`
	MaxRetries     int                  `json:"max_retries"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	PayloadBytes   int                  `json:"payload_bytes"`
	NextAttemptAt  time.Time            `json:"next_attempt_at"`
	CreatedAt      time.Time            `json:"created_at"`
}

func toWebhookEntryResponse(e *integration.WebhookEntry) WebhookEntryResponse {
	return WebhookEntryResponse{
		ID:             e.ID,
		Provider:       e.Provider,
		OrganizationID: e.OrganizationID,
		RetryCount:     e.RetryCount,
		MaxRetries:     e.MaxRetries,
		ErrorMessage:   e.ErrorMessage,
		PayloadBytes:   len(e.Payload),
		NextAttemptAt:  e.NextAttemptAt,
		CreatedAt:      e.CreatedAt,
	}
}

// RegisterIngest mounts one POST /<provider>-webhook route per supported provider
// on the root group. Extra handlers run before ingestion.
func (h *WebhookHandler) RegisterIngest(rg gin.IRoutes, pre ...gin.HandlerFunc) {
	for _, p := range integration.AllProviders() {
		handlers := append(append([]gin.HandlerFunc{}, pre...), h.Ingest(p))
		rg.POST("/"+string(p)+"-webhook", handlers...)
	}
}

// RegisterRoutes mounts the queue operations under /webhooks
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/webhooks")
	g.GET("/exhausted", h.ListExhausted)
	g.POST("/process", h.Process)
	g.POST("/:id/requeue", h.Requeue)
}

// Ingest stores the delivery exactly as received and acknowledges it with 202.
// The org query parameter is stored verbatim; a bad value fails at processing time,
// so the payload is kept either way.
func (h *WebhookHandler) Ingest(provider integration.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			fail(c, dto.ErrCodeBadRequest, "Failed to read request body", nil)
			return
		}
		if len(payload) == 0 {
			fail(c, dto.ErrCodeBadRequest, "Request body is empty", nil)
			return
		}

		entry, err := h.queue.Enqueue(c.Request.Context(), provider, c.Query("org"), captureHeaders(c.Request.Header), payload)
		if err != nil {
			logger.GetGinLogger(c).Error("webhook not stored",
				zap.String("provider", string(provider)),
				zap.Error(err))
			fail(c, dto.ErrCodeInternal, "Failed to store webhook", nil)
			return
		}
		c.JSON(http.StatusAccepted, IngestResponse{Received: true, ID: entry.ID})
	}
}

func captureHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		key := http.CanonicalHeaderKey(k)
		if _, drop := droppedHeaders[key]; drop || len(v) == 0 {
			continue
		}
		out[key] = strings.Join(v, ",")
	}
	return out
}

// ListExhausted pages through entries that ran out of retries
func (h *WebhookHandler) ListExhausted(c *gin.Context) {
	var page dto.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		fail(c, dto.ErrCodeInvalidInput, "Invalid pagination parameters", nil)
		return
	}
	page.Normalize()

	entries, total, err := h.queue.ListExhausted(c.Request.Context(), page.Page, page.PageSize)
	if err != nil {
		respondErr(c, err)
		return
	}
	items := make([]WebhookEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toWebhookEntryResponse(e))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(items, total, page.Page, page.PageSize))
}

// Requeue re-arms an exhausted entry
func (h *WebhookHandler) Requeue(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.queue.Requeue(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(toWebhookEntryResponse(entry)))
}

// Process runs one batch of due entries; used by external schedulers
func (h *WebhookHandler) Process(c *gin.Context) {
	result, err := h.runner.ProcessDue(c.Request.Context())
	if err != nil {
		logger.GetGinLogger(c).Error("webhook batch failed", zap.Error(err))
		fail(c, dto.ErrCodeInternal, "Webhook batch failed", nil)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}
