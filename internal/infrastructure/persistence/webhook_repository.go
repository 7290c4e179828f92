package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// Pagination defaults for exhausted entry listings
const (
	defaultWebhookPageSize = 20
	maxWebhookPageSize     = 100
)

// GormWebhookRepository implements WebhookRepository using GORM
type GormWebhookRepository struct {
	db *gorm.DB
}

// NewGormWebhookRepository creates a new GORM-based webhook queue repository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormWebhookRepository) WithTx(tx *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: tx}
}

// Save persists a new entry
func (r *GormWebhookRepository) Save(ctx context.Context, entry *integration.WebhookEntry) error {
	var model models.WebhookEntryModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID retrieves a single entry by ID
func (r *GormWebhookRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.WebhookEntry, error) {
	var model models.WebhookEntryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrWebhookEntryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue retrieves entries eligible for processing at now, oldest first
func (r *GormWebhookRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*integration.WebhookEntry, error) {
	var entryModels []models.WebhookEntryModel
	err := r.db.WithContext(ctx).
		Where("processed = ? AND retry_count < max_retries AND next_attempt_at <= ?", false, now.UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&entryModels).Error
	if err != nil {
		return nil, err
	}
	return toWebhookEntries(entryModels), nil
}

// Claim leases a due entry until leaseUntil with a conditional update.
// Only one of several concurrent workers sees a matched row.
func (r *GormWebhookRepository) Claim(ctx context.Context, id uuid.UUID, now, leaseUntil time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEntryModel{}).
		Where("id = ? AND processed = ? AND retry_count < max_retries AND next_attempt_at <= ?", id, false, now.UTC()).
		Update("next_attempt_at", leaseUntil.UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update persists the processing outcome of an entry
func (r *GormWebhookRepository) Update(ctx context.Context, entry *integration.WebhookEntry) error {
	var model models.WebhookEntryModel
	model.FromDomain(entry)

	result := r.db.WithContext(ctx).
		Model(&models.WebhookEntryModel{}).
		Where("id = ?", entry.ID).
		Select("processed", "retry_count", "max_retries", "next_attempt_at", "error_message", "processed_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrWebhookEntryNotFound
	}
	return nil
}

// FindExhausted retrieves exhausted entries with pagination, newest first
func (r *GormWebhookRepository) FindExhausted(ctx context.Context, page, pageSize int) ([]*integration.WebhookEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultWebhookPageSize
	}
	if pageSize > maxWebhookPageSize {
		pageSize = maxWebhookPageSize
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEntryModel{}).
		Where("processed = ? AND retry_count >= max_retries", false).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entryModels []models.WebhookEntryModel
	offset := (page - 1) * pageSize
	if err := r.db.WithContext(ctx).
		Where("processed = ? AND retry_count >= max_retries", false).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}

	return toWebhookEntries(entryModels), total, nil
}

// DeleteProcessedBefore deletes processed entries whose processed_at is before cutoff
func (r *GormWebhookRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed = ? AND processed_at < ?", true, cutoff.UTC()).
		Delete(&models.WebhookEntryModel{})
	return result.RowsAffected, result.Error
}

func toWebhookEntries(entryModels []models.WebhookEntryModel) []*integration.WebhookEntry {
	entries := make([]*integration.WebhookEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries
}

// Ensure GormWebhookRepository implements WebhookRepository
var _ integration.WebhookRepository = (*GormWebhookRepository)(nil)
