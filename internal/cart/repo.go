package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

// Repository persists customer cart lines.
type Repository interface {
	Upsert(ctx context.Context, item *models.CartItem) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error)
	DeleteLines(ctx context.Context, customerID uuid.UUID, variantIDs []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Upsert inserts the line or replaces the quantity for an existing
// customer+variant pair.
func (r *repository) Upsert(ctx context.Context, item *models.CartItem) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upserting cart item")
	}
	return nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing cart items")
	}
	return items, nil
}

// DeleteLines removes the given variants from the customer's cart and
// reports how many rows went away. Missing lines are not an error.
func (r *repository) DeleteLines(ctx context.Context, customerID uuid.UUID, variantIDs []uuid.UUID) (int64, error) {
	if len(variantIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("customer_id = ? AND variant_id IN ?", customerID, variantIDs).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deleting cart items")
	}
	return res.RowsAffected, nil
}
