package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

// Totals carries the accumulated money fields written back after the order
// lines are created.
type Totals struct {
	ProductCost decimal.Decimal
	SubTotal    decimal.Decimal
	Total       decimal.Decimal
}

// Repository persists orders, their lines and the audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	UpdateTotals(ctx context.Context, orderID uuid.UUID, totals Totals) error
	AppendAuditEvent(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, note string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetPaid(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
	}
	return order, nil
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&lines).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order lines")
	}
	return nil
}

func (r *repository) UpdateTotals(ctx context.Context, orderID uuid.UUID, totals Totals) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"product_cost": totals.ProductCost,
			"sub_total":    totals.SubTotal,
			"total":        totals.Total,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order totals")
	}
	return nil
}

func (r *repository) AppendAuditEvent(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, note string) error {
	event := models.OrderAuditEvent{
		OrderID: orderID,
		Status:  status,
		Note:    note,
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending audit event")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return &order, nil
}

func (r *repository) SetPaid(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", id, false).
		Update("is_paid", true)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "marking order paid")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
	}
	return nil
}
