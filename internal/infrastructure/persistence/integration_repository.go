package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIntegrationRepository implements IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormIntegrationRepository) WithTx(tx *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: tx}
}

// FindByID finds an integration by its ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrganizationAndProvider finds the single integration of an organization for a provider
func (r *GormIntegrationRepository) FindByOrganizationAndProvider(ctx context.Context, organizationID uuid.UUID, provider integration.Provider) (*integration.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND provider = ?", organizationID, provider).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrganization lists every integration of an organization
func (r *GormIntegrationRepository) FindByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*integration.Integration, error) {
	return r.find(r.db.WithContext(ctx).Where("organization_id = ?", organizationID))
}

// FindActiveByOrganization lists the active integrations of an organization
func (r *GormIntegrationRepository) FindActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*integration.Integration, error) {
	return r.find(r.db.WithContext(ctx).Where("organization_id = ? AND is_active = ?", organizationID, true))
}

func (r *GormIntegrationRepository) find(query *gorm.DB) ([]*integration.Integration, error) {
	var integrationModels []models.IntegrationModel
	if err := query.Order("provider ASC").Find(&integrationModels).Error; err != nil {
		return nil, err
	}

	integrations := make([]*integration.Integration, len(integrationModels))
	for i := range integrationModels {
		integrations[i] = integrationModels[i].ToDomain()
	}
	return integrations, nil
}

// ListActiveOrganizations returns every organization with at least one active integration
func (r *GormIntegrationRepository) ListActiveOrganizations(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("is_active = ?", true).
		Distinct().
		Order("organization_id ASC").
		Pluck("organization_id", &ids).Error
	return ids, err
}

// Save inserts or updates the integration keyed by (organization, provider).
// On conflict the stored ID is kept and copied back into the entity.
func (r *GormIntegrationRepository) Save(ctx context.Context, i *integration.Integration) error {
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = time.Now()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = i.UpdatedAt
	}
	model := models.IntegrationModelFromDomain(i)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "organization_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"store_id", "credentials", "settings", "webhook_url", "is_active",
				"last_sync_at", "last_connection_at", "updated_at",
			}),
		}).Create(model).Error; err != nil {
			return err
		}

		var stored models.IntegrationModel
		if err := tx.Select("id", "created_at").
			Where("organization_id = ? AND provider = ?", i.OrganizationID, i.Provider).
			First(&stored).Error; err != nil {
			return err
		}
		i.ID = stored.ID
		i.CreatedAt = stored.CreatedAt
		return nil
	})
}

// Delete removes an integration by ID
func (r *GormIntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.IntegrationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrIntegrationNotFound
	}
	return nil
}

// Ensure GormIntegrationRepository implements IntegrationRepository
var _ integration.IntegrationRepository = (*GormIntegrationRepository)(nil)
