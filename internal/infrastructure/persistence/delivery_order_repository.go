package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/order"
	"github.com/pos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: tx}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.DeliveryOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProviderOrderID finds the order recorded for a provider order on an integration
func (r *GormOrderRepository) FindByProviderOrderID(ctx context.Context, integrationID uuid.UUID, providerOrderID string) (*order.Order, error) {
	var model models.DeliveryOrderModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND provider_order_id = ?", integrationID, providerOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUpdatedSince lists delivery orders of an organization in the given statuses updated at or after since
func (r *GormOrderRepository) FindUpdatedSince(ctx context.Context, organizationID uuid.UUID, statuses []order.Status, since time.Time) ([]*order.Order, error) {
	query := r.db.WithContext(ctx).
		Where("organization_id = ? AND integration_id IS NOT NULL AND updated_at >= ?", organizationID, since.UTC())
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var orderModels []models.DeliveryOrderModel
	if err := query.Order("updated_at ASC").Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]*order.Order, len(orderModels))
	for i := range orderModels {
		orders[i] = orderModels[i].ToDomain()
	}
	return orders, nil
}

// Create inserts a new order
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	var model models.DeliveryOrderModel
	if err := model.FromDomain(o); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return order.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// UpdateStatusIfCurrent moves the order to next only while its status is one of expected.
// The check and the write are a single conditional UPDATE.
func (r *GormOrderRepository) UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, expected []order.Status, next order.Status, rejectionReason string) error {
	if len(expected) == 0 {
		return order.ErrStatusConflict
	}

	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now().UTC(),
	}
	if rejectionReason != "" {
		updates["rejection_reason"] = rejectionReason
	}

	result := r.db.WithContext(ctx).
		Model(&models.DeliveryOrderModel{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrStatusConflict
	}
	return nil
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
