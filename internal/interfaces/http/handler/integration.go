package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	integrationapp "github.com/pos/backend/internal/application/integration"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/interfaces/http/dto"
)

// defaultReconcileWindow is how far back reconcile looks when since is omitted
const defaultReconcileWindow = 24 * time.Hour

// IntegrationHandler serves integration configuration, menu sync and reconciliation
type IntegrationHandler struct {
	service IntegrationService
	now     func() time.Time
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(service IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{service: service, now: time.Now}
}

// ToggleActiveRequest is the body of PATCH /integrations/:id/active
type ToggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// AvailabilityRequest is the body of PUT /integrations/:id/availability
type AvailabilityRequest struct {
	IsOpen *bool `json:"is_open" binding:"required"`
}

// RegisterRoutes mounts the handler under /integrations
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/integrations")
	g.PUT("", h.Upsert)
	g.GET("", h.List)
	g.POST("/sync-menu", h.SyncMenuAll)
	g.POST("/reconcile", h.Reconcile)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/active", h.ToggleActive)
	g.POST("/:id/test", h.TestConnection)
	g.POST("/:id/sync-menu", h.SyncMenu)
	g.PUT("/:id/menu", h.PushMenu)
	g.PUT("/:id/availability", h.SetAvailability)
}

// Upsert creates or replaces the organization's integration for a provider
func (h *IntegrationHandler) Upsert(c *gin.Context) {
	var in integrationapp.UpsertIntegrationInput
	if !bindJSON(c, &in) {
		return
	}
	respond(c, http.StatusOK, h.service.Upsert(c.Request.Context(), in))
}

// List returns the organization's integrations
func (h *IntegrationHandler) List(c *gin.Context) {
	orgID, ok := uuidQuery(c, "organization_id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.service.ListForOrganization(c.Request.Context(), orgID))
}

// Get returns one integration
func (h *IntegrationHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.service.Get(c.Request.Context(), id))
}

// Delete removes an integration
func (h *IntegrationHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp := h.service.Delete(c.Request.Context(), id)
	if resp.Success {
		c.Status(http.StatusNoContent)
		return
	}
	respond(c, http.StatusNoContent, resp)
}

// ToggleActive activates or deactivates an integration
func (h *IntegrationHandler) ToggleActive(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req ToggleActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.service.ToggleActive(c.Request.Context(), id, *req.IsActive))
}

// TestConnection checks the stored credentials against the provider
func (h *IntegrationHandler) TestConnection(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.service.TestConnection(c.Request.Context(), id))
}

// SyncMenu syncs the menu to one integration
func (h *IntegrationHandler) SyncMenu(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.service.SyncMenuToPlatform(c.Request.Context(), id))
}

// SyncMenuAll syncs the menu to every active integration of the organization
func (h *IntegrationHandler) SyncMenuAll(c *gin.Context) {
	orgID, ok := uuidQuery(c, "organization_id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.service.SyncMenuToAllPlatforms(c.Request.Context(), orgID))
}

// PushMenu sends a built menu through the provider client
func (h *IntegrationHandler) PushMenu(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var menu integration.Menu
	if !bindJSON(c, &menu) {
		return
	}
	respond(c, http.StatusOK, h.service.PushMenu(c.Request.Context(), id, &menu))
}

// SetAvailability opens or closes the store on the provider
func (h *IntegrationHandler) SetAvailability(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req AvailabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.service.SetStoreAvailability(c.Request.Context(), id, *req.IsOpen))
}

// Reconcile reports orders whose provider status drifted from the internal one.
// since is RFC 3339 and defaults to 24 hours ago.
func (h *IntegrationHandler) Reconcile(c *gin.Context) {
	orgID, ok := uuidQuery(c, "organization_id")
	if !ok {
		return
	}
	since := h.now().UTC().Add(-defaultReconcileWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, dto.ErrCodeInvalidInput, "since must be an RFC 3339 timestamp", nil)
			return
		}
		since = parsed
	}
	respond(c, http.StatusOK, h.service.ReconcileOrders(c.Request.Context(), orgID, since))
}
