package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
)

// Repository persists and drains outbox rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes the event row using the caller's transaction.
func (r *Repository) Insert(tx *gorm.DB, row models.OutboxEvent) error {
	return tx.Create(&row).Error
}

// FetchPending returns the oldest pending events up to limit.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPublished stamps the event as dispatched.
func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.OutboxStatusPublished,
			"published_at": &now,
		}).Error
}

// MarkFailed bumps the attempt counter; events past maxAttempts park as failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, maxAttempts int) error {
	tx := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1"))
	if tx.Error != nil {
		return tx.Error
	}
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND attempts >= ?", id, maxAttempts).
		Update("status", enums.OutboxStatusFailed).Error
}
