package integration

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials is the opaque per-provider credential blob (client_id, client_secret, api_token, ...)
type Credentials map[string]any

// String returns the string value stored under key, or "" when it is missing or not a string
func (c Credentials) String(key string) string {
	if c == nil {
		return ""
	}
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Settings is the free-form per-integration configuration (auto_accept, webhook_secret, ...)
type Settings map[string]any

// Bool returns the boolean stored under key, false when missing
func (s Settings) Bool(key string) bool {
	if s == nil {
		return false
	}
	v, _ := s[key].(bool)
	return v
}

// String returns the string stored under key, "" when missing
func (s Settings) String(key string) string {
	if s == nil {
		return ""
	}
	v, _ := s[key].(string)
	return v
}

// Well-known settings keys
const (
	SettingAutoAccept         = "auto_accept"
	SettingWebhookSecret      = "webhook_secret"
	SettingDefaultPrepMinutes = "default_prep_minutes"
)

// Integration is one organization's connection to one provider.
// An organization has at most one integration per provider.
type Integration struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Provider         Provider
	StoreID          string
	Credentials      Credentials
	Settings         Settings
	WebhookURL       string
	IsActive         bool
	LastSyncAt       *time.Time
	LastConnectionAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewIntegration creates an inactive integration record with its webhook URL derived
// from the public base URL, provider, and organization.
func NewIntegration(organizationID uuid.UUID, provider Provider, storeID string, credentials Credentials, settings Settings, publicBaseURL string) (*Integration, error) {
	if organizationID == uuid.Nil {
		return nil, ErrInvalidOrganizationID
	}
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if strings.TrimSpace(storeID) == "" {
		return nil, ErrMissingStoreID
	}
	now := time.Now()
	return &Integration{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Provider:       provider,
		StoreID:        strings.TrimSpace(storeID),
		Credentials:    credentials,
		Settings:       settings,
		WebhookURL:     BuildWebhookURL(publicBaseURL, provider, organizationID),
		IsActive:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// BuildWebhookURL returns the deterministic callback URL for a provider and organization
func BuildWebhookURL(publicBaseURL string, provider Provider, organizationID uuid.UUID) string {
	base := strings.TrimRight(publicBaseURL, "/")
	q := url.Values{}
	q.Set("org", organizationID.String())
	return fmt.Sprintf("%s/%s-webhook?%s", base, provider, q.Encode())
}

// UpdateConnection replaces the store, credentials and settings of an existing record.
// The active flag is reset: changed credentials must pass a connectivity test again.
func (i *Integration) UpdateConnection(storeID string, credentials Credentials, settings Settings, publicBaseURL string) error {
	if strings.TrimSpace(storeID) == "" {
		return ErrMissingStoreID
	}
	i.StoreID = strings.TrimSpace(storeID)
	i.Credentials = credentials
	i.Settings = settings
	i.WebhookURL = BuildWebhookURL(publicBaseURL, i.Provider, i.OrganizationID)
	i.IsActive = false
	i.UpdatedAt = time.Now()
	return nil
}

// SetActive sets the active flag
func (i *Integration) SetActive(active bool) {
	i.IsActive = active
	i.UpdatedAt = time.Now()
}

// RecordConnectionTest stamps the last connectivity test and activates the record on success
func (i *Integration) RecordConnectionTest(connected bool, at time.Time) {
	i.LastConnectionAt = &at
	if connected {
		i.IsActive = true
	}
	i.UpdatedAt = at
}

// RecordMenuSync stamps the last successful menu sync
func (i *Integration) RecordMenuSync(at time.Time) {
	i.LastSyncAt = &at
	i.UpdatedAt = at
}

// AutoAccept returns true if orders should be accepted as soon as they arrive
func (i *Integration) AutoAccept() bool {
	return i.Settings.Bool(SettingAutoAccept)
}

// WebhookSecret returns the shared secret used to verify webhook signatures, "" if unset
func (i *Integration) WebhookSecret() string {
	return i.Settings.String(SettingWebhookSecret)
}

// DefaultPrepMinutes returns the configured preparation time hint, 0 when unset
func (i *Integration) DefaultPrepMinutes() int {
	switch v := i.Settings[SettingDefaultPrepMinutes].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// IntegrationRepository persists integration records
type IntegrationRepository interface {
	// FindByID returns ErrIntegrationNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)
	// FindByOrganizationAndProvider returns ErrIntegrationNotFound when absent
	FindByOrganizationAndProvider(ctx context.Context, organizationID uuid.UUID, provider Provider) (*Integration, error)
	FindByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*Integration, error)
	FindActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*Integration, error)
	// ListActiveOrganizations returns every organization with at least one active integration
	ListActiveOrganizations(ctx context.Context) ([]uuid.UUID, error)
	// Save inserts or updates the record keyed by (organization, provider)
	Save(ctx context.Context, integration *Integration) error
	// Delete returns ErrIntegrationNotFound when nothing was deleted
	Delete(ctx context.Context, id uuid.UUID) error
}
