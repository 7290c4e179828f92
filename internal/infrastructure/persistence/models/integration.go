package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
)

// IntegrationModel is the persistence model for the Integration domain entity.
// One row per (organization, provider).
type IntegrationModel struct {
	ID               uuid.UUID            `gorm:"type:uuid;primary_key"`
	OrganizationID   uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_integrations_org_provider,priority:1"`
	Provider         integration.Provider `gorm:"type:varchar(20);not null;uniqueIndex:idx_integrations_org_provider,priority:2"`
	StoreID          string               `gorm:"type:varchar(100);not null"`
	CredentialsJSON  string               `gorm:"type:jsonb;column:credentials"`
	SettingsJSON     string               `gorm:"type:jsonb;column:settings"`
	WebhookURL       string               `gorm:"type:varchar(500)"`
	IsActive         bool                 `gorm:"not null;default:false;index"`
	LastSyncAt       *time.Time
	LastConnectionAt *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the persistence model to a domain Integration entity.
func (m *IntegrationModel) ToDomain() *integration.Integration {
	i := &integration.Integration{
		ID:               m.ID,
		OrganizationID:   m.OrganizationID,
		Provider:         m.Provider,
		StoreID:          m.StoreID,
		Credentials:      integration.Credentials{},
		Settings:         integration.Settings{},
		WebhookURL:       m.WebhookURL,
		IsActive:         m.IsActive,
		LastSyncAt:       m.LastSyncAt,
		LastConnectionAt: m.LastConnectionAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}

	if m.CredentialsJSON != "" {
		var creds integration.Credentials
		if err := json.Unmarshal([]byte(m.CredentialsJSON), &creds); err == nil && creds != nil {
			i.Credentials = creds
		}
	}
	if m.SettingsJSON != "" {
		var settings integration.Settings
		if err := json.Unmarshal([]byte(m.SettingsJSON), &settings); err == nil && settings != nil {
			i.Settings = settings
		}
	}

	return i
}

// FromDomain populates the persistence model from a domain Integration entity.
func (m *IntegrationModel) FromDomain(i *integration.Integration) {
	m.ID = i.ID
	m.OrganizationID = i.OrganizationID
	m.Provider = i.Provider
	m.StoreID = i.StoreID
	m.WebhookURL = i.WebhookURL
	m.IsActive = i.IsActive
	m.LastSyncAt = i.LastSyncAt
	m.LastConnectionAt = i.LastConnectionAt
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt

	m.CredentialsJSON = marshalObject(i.Credentials)
	m.SettingsJSON = marshalObject(i.Settings)
}

// IntegrationModelFromDomain creates a new persistence model from a domain Integration entity.
func IntegrationModelFromDomain(i *integration.Integration) *IntegrationModel {
	m := &IntegrationModel{}
	m.FromDomain(i)
	return m
}

// marshalObject encodes a free-form map, "{}" for nil or unencodable values
func marshalObject[M ~map[string]any](v M) string {
	if len(v) == 0 {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
