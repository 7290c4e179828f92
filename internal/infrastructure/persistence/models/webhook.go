package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
)

// WebhookEntryModel is the persistence model for one inbound webhook in the ingestion queue
type WebhookEntryModel struct {
	ID             uuid.UUID            `gorm:"type:uuid;primary_key"`
	Provider       integration.Provider `gorm:"type:varchar(20);not null"`
	OrganizationID string               `gorm:"type:varchar(64)"`
	HeadersJSON    string               `gorm:"type:jsonb;column:headers"`
	Payload        string               `gorm:"type:text;not null"`
	Processed      bool                 `gorm:"not null;default:false;index:idx_webhook_queue_due,priority:1"`
	RetryCount     int                  `gorm:"not null;default:0"`
	MaxRetries     int                  `gorm:"not null;default:5"`
	NextAttemptAt  time.Time            `gorm:"not null;index:idx_webhook_queue_due,priority:2"`
	ErrorMessage   string               `gorm:"type:text"`
	CreatedAt      time.Time            `gorm:"not null"`
	ProcessedAt    *time.Time           `gorm:"index"`
}

// TableName returns the table name for GORM
func (WebhookEntryModel) TableName() string {
	return "webhook_queue"
}

// ToDomain converts the persistence model to a domain WebhookEntry
func (m *WebhookEntryModel) ToDomain() *integration.WebhookEntry {
	e := &integration.WebhookEntry{
		ID:             m.ID,
		Provider:       m.Provider,
		OrganizationID: m.OrganizationID,
		Headers:        map[string]string{},
		Payload:        []byte(m.Payload),
		Processed:      m.Processed,
		RetryCount:     m.RetryCount,
		MaxRetries:     m.MaxRetries,
		NextAttemptAt:  m.NextAttemptAt,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
		ProcessedAt:    m.ProcessedAt,
	}
	if m.HeadersJSON != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(m.HeadersJSON), &headers); err == nil && headers != nil {
			e.Headers = headers
		}
	}
	return e
}

// FromDomain populates the persistence model from a domain WebhookEntry.
// Times are stored in UTC so due-time comparisons are consistent across drivers.
func (m *WebhookEntryModel) FromDomain(e *integration.WebhookEntry) {
	m.ID = e.ID
	m.Provider = e.Provider
	m.OrganizationID = e.OrganizationID
	m.Payload = string(e.Payload)
	m.Processed = e.Processed
	m.RetryCount = e.RetryCount
	m.MaxRetries = e.MaxRetries
	m.NextAttemptAt = e.NextAttemptAt.UTC()
	m.ErrorMessage = e.ErrorMessage
	m.CreatedAt = e.CreatedAt.UTC()
	m.ProcessedAt = nil
	if e.ProcessedAt != nil {
		t := e.ProcessedAt.UTC()
		m.ProcessedAt = &t
	}

	m.HeadersJSON = "{}"
	if len(e.Headers) > 0 {
		if b, err := json.Marshal(e.Headers); err == nil {
			m.HeadersJSON = string(b)
		}
	}
}
