package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

// Request asks for a quantity of one variant.
type Request struct {
	VariantID uuid.UUID
	Quantity  int
}

// Item is the priced reservation result for one variant. It lives only for
// the duration of the enclosing checkout.
type Item struct {
	VariantID  uuid.UUID
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	UnitCost   decimal.Decimal
}

// ShortfallDetail reports one line that exceeded availability.
type ShortfallDetail struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Reserve validates the whole batch under exclusive variant row locks and, only
// when every line fits, decrements the variant quantity plus the product and
// category counters. Any shortfall aborts before a single write. The caller
// owns the transaction boundary.
//
// Variants are locked in ascending id order so two overlapping batches always
// acquire locks in the same total order.
func Reserve(ctx context.Context, tx *gorm.DB, requests []Request) ([]Item, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	merged, err := mergeRequests(requests)
	if err != nil {
		return nil, err
	}

	variants := make(map[uuid.UUID]*models.ProductVariant, len(merged))
	var shortfalls []ShortfallDetail
	var shortfallErr error

	for _, req := range merged {
		variant, err := lockVariant(ctx, tx, req.VariantID)
		if err != nil {
			return nil, err
		}
		variants[req.VariantID] = variant
		if variant.Quantity < req.Quantity {
			shortfalls = append(shortfalls, ShortfallDetail{
				VariantID: req.VariantID,
				Requested: req.Quantity,
				Available: variant.Quantity,
			})
			shortfallErr = multierr.Append(shortfallErr, fmt.Errorf(
				"variant %s: requested %d, available %d",
				req.VariantID, req.Quantity, variant.Quantity,
			))
		}
	}
	if len(shortfalls) > 0 {
		return nil, pkgerrors.
			Wrap(pkgerrors.CodeInsufficientStock, shortfallErr, "insufficient stock").
			WithDetails(shortfalls)
	}

	products, err := loadProducts(ctx, tx, variants)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(merged))
	for _, req := range merged {
		variant := variants[req.VariantID]
		product, ok := products[variant.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "variant references missing product")
		}
		if err := applyDecrement(ctx, tx, variant, product, req.Quantity); err != nil {
			return nil, err
		}
		items = append(items, Item{
			VariantID:  variant.ID,
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			Quantity:   req.Quantity,
			UnitPrice:  product.Price,
			UnitCost:   product.Cost,
		})
	}
	return items, nil
}

func mergeRequests(requests []Request) ([]Request, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	byVariant := make(map[uuid.UUID]int, len(requests))
	for _, req := range requests {
		if req.VariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
		}
		if req.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"variant_id": req.VariantID})
		}
		byVariant[req.VariantID] += req.Quantity
	}
	merged := make([]Request, 0, len(byVariant))
	for id, qty := range byVariant {
		merged = append(merged, Request{VariantID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].VariantID.String() < merged[j].VariantID.String()
	})
	return merged, nil
}

func lockVariant(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProductVariant, error) {
	query := tx.WithContext(ctx)
	// SQLite has no row locks; its single-writer transaction covers the tests.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var variant models.ProductVariant
	if err := query.Where("id = ?", id).First(&variant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading variant")
	}
	return &variant, nil
}

func loadProducts(ctx context.Context, tx *gorm.DB, variants map[uuid.UUID]*models.ProductVariant) (map[uuid.UUID]*models.Product, error) {
	ids := make([]uuid.UUID, 0, len(variants))
	seen := map[uuid.UUID]bool{}
	for _, variant := range variants {
		if !seen[variant.ProductID] {
			seen[variant.ProductID] = true
			ids = append(ids, variant.ProductID)
		}
	}
	var rows []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading products")
	}
	products := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return products, nil
}

func applyDecrement(ctx context.Context, tx *gorm.DB, variant *models.ProductVariant, product *models.Product, qty int) error {
	res := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND quantity >= ?", variant.ID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrementing variant stock")
	}
	if res.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeConflict, "variant stock changed during reservation")
	}

	err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"total":    gorm.Expr("CASE WHEN total - ? < 0 THEN 0 ELSE total - ? END", qty, qty),
			"in_stock": gorm.Expr("CASE WHEN total - ? > 0 THEN ? ELSE ? END", qty, true, false),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating product total")
	}

	err = tx.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", product.CategoryID).
		Update("stock", gorm.Expr("CASE WHEN stock - ? < 0 THEN 0 ELSE stock - ? END", qty, qty)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating category stock")
	}
	return nil
}
