package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
	"github.com/shopspring/decimal"
)

// DeliveryOrderModel is the persistence model for the internal Order record
type DeliveryOrderModel struct {
	ID                  uuid.UUID            `gorm:"type:uuid;primary_key"`
	OrganizationID      uuid.UUID            `gorm:"type:uuid;not null;index:idx_delivery_orders_org_updated,priority:1"`
	IntegrationID       *uuid.UUID           `gorm:"type:uuid;uniqueIndex:idx_delivery_orders_provider_order,priority:1"`
	Provider            integration.Provider `gorm:"type:varchar(20)"`
	ProviderOrderID     string               `gorm:"type:varchar(100);uniqueIndex:idx_delivery_orders_provider_order,priority:2"`
	DisplayID           string               `gorm:"type:varchar(50)"`
	Status              order.Status         `gorm:"type:varchar(20);not null;index"`
	CustomerName        string               `gorm:"type:varchar(200)"`
	CustomerPhone       string               `gorm:"type:varchar(50)"`
	CustomerEmail       string               `gorm:"type:varchar(200)"`
	ItemsJSON           string               `gorm:"type:jsonb;column:items"`
	DeliveryAddressJSON string               `gorm:"type:jsonb;column:delivery_address"`
	Subtotal            decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0"`
	Tax                 decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0"`
	DeliveryFee         decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0"`
	ServiceFee          decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0"`
	Tip                 decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0"`
	Total               decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0"`
	Currency            string               `gorm:"type:varchar(3)"`
	Instructions        string               `gorm:"type:text"`
	RawPayload          string               `gorm:"type:text"`
	RejectionReason     string               `gorm:"type:text"`
	PlacedAt            time.Time            `gorm:"not null"`
	CreatedAt           time.Time            `gorm:"not null"`
	UpdatedAt           time.Time            `gorm:"not null;index:idx_delivery_orders_org_updated,priority:2"`
	ScheduledFor        *time.Time
}

// TableName returns the table name for GORM
func (DeliveryOrderModel) TableName() string {
	return "delivery_orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *DeliveryOrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:              m.ID,
		OrganizationID:  m.OrganizationID,
		IntegrationID:   m.IntegrationID,
		Provider:        m.Provider,
		ProviderOrderID: m.ProviderOrderID,
		DisplayID:       m.DisplayID,
		Status:          m.Status,
		CustomerName:    m.CustomerName,
		CustomerPhone:   m.CustomerPhone,
		CustomerEmail:   m.CustomerEmail,
		Items:           make([]integration.OrderItem, 0),
		Subtotal:        m.Subtotal,
		Tax:             m.Tax,
		DeliveryFee:     m.DeliveryFee,
		ServiceFee:      m.ServiceFee,
		Tip:             m.Tip,
		Total:           m.Total,
		Currency:        m.Currency,
		Instructions:    m.Instructions,
		RawPayload:      m.RawPayload,
		RejectionReason: m.RejectionReason,
		PlacedAt:        m.PlacedAt,
		ScheduledFor:    m.ScheduledFor,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}

	if m.ItemsJSON != "" {
		var items []integration.OrderItem
		if err := json.Unmarshal([]byte(m.ItemsJSON), &items); err == nil {
			o.Items = items
		}
	}
	if m.DeliveryAddressJSON != "" && m.DeliveryAddressJSON != "null" {
		var addr integration.Address
		if err := json.Unmarshal([]byte(m.DeliveryAddressJSON), &addr); err == nil {
			o.DeliveryAddress = &addr
		}
	}

	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *DeliveryOrderModel) FromDomain(o *order.Order) error {
	m.ID = o.ID
	m.OrganizationID = o.OrganizationID
	m.IntegrationID = o.IntegrationID
	m.Provider = o.Provider
	m.ProviderOrderID = o.ProviderOrderID
	m.DisplayID = o.DisplayID
	m.Status = o.Status
	m.CustomerName = o.CustomerName
	m.CustomerPhone = o.CustomerPhone
	m.CustomerEmail = o.CustomerEmail
	m.Subtotal = o.Subtotal
	m.Tax = o.Tax
	m.DeliveryFee = o.DeliveryFee
	m.ServiceFee = o.ServiceFee
	m.Tip = o.Tip
	m.Total = o.Total
	m.Currency = o.Currency
	m.Instructions = o.Instructions
	m.RawPayload = o.RawPayload
	m.RejectionReason = o.RejectionReason
	m.PlacedAt = o.PlacedAt.UTC()
	m.ScheduledFor = nil
	if o.ScheduledFor != nil {
		at := o.ScheduledFor.UTC()
		m.ScheduledFor = &at
	}
	m.CreatedAt = o.CreatedAt.UTC()
	m.UpdatedAt = o.UpdatedAt.UTC()

	items, err := o.ItemsJSON()
	if err != nil {
		return err
	}
	m.ItemsJSON = items

	m.DeliveryAddressJSON = "null"
	if o.DeliveryAddress != nil {
		b, err := json.Marshal(o.DeliveryAddress)
		if err != nil {
			return err
		}
		m.DeliveryAddressJSON = string(b)
	}
	return nil
}
