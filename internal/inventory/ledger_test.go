package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

type fixture struct {
	db       *gorm.DB
	category models.Category
	product  models.Product
	variantA models.ProductVariant
	variantB models.ProductVariant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Category{}, &models.Product{}, &models.ProductVariant{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	category := models.Category{ID: uuid.New(), Name: "Shirts", Stock: 8}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := models.Product{
		ID:         uuid.New(),
		CategoryID: category.ID,
		Name:       "Oxford Shirt",
		Price:      decimal.NewFromInt(50),
		Cost:       decimal.NewFromInt(30),
		Total:      8,
		InStock:    true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variantA := models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Color: "white", Size: "M", Quantity: 5}
	variantB := models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Color: "blue", Size: "L", Quantity: 3}
	for _, v := range []*models.ProductVariant{&variantA, &variantB} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed variant: %v", err)
		}
	}
	return &fixture{db: db, category: category, product: product, variantA: variantA, variantB: variantB}
}

func (f *fixture) variantQty(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var v models.ProductVariant
	if err := f.db.First(&v, "id = ?", id).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return v.Quantity
}

func (f *fixture) reload(t *testing.T) (models.Product, models.Category) {
	t.Helper()
	var p models.Product
	var c models.Category
	if err := f.db.First(&p, "id = ?", f.product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if err := f.db.First(&c, "id = ?", f.category.ID).Error; err != nil {
		t.Fatalf("load category: %v", err)
	}
	return p, c
}

func TestReserveDecrementsAllLevels(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	var items []Item
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		items, terr = Reserve(ctx, tx, []Request{
			{VariantID: f.variantA.ID, Quantity: 2},
			{VariantID: f.variantB.ID, Quantity: 1},
		})
		return terr
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, item := range items {
		if !item.UnitPrice.Equal(decimal.NewFromInt(50)) || !item.UnitCost.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("unexpected pricing on item %+v", item)
		}
	}

	if got := f.variantQty(t, f.variantA.ID); got != 3 {
		t.Fatalf("variant A quantity = %d, want 3", got)
	}
	if got := f.variantQty(t, f.variantB.ID); got != 2 {
		t.Fatalf("variant B quantity = %d, want 2", got)
	}
	product, category := f.reload(t)
	if product.Total != 5 || !product.InStock {
		t.Fatalf("unexpected product aggregate %+v", product)
	}
	if category.Stock != 5 {
		t.Fatalf("category stock = %d, want 5", category.Stock)
	}
}

func TestReserveFailsWholeBatchWithoutMutation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, []Request{
			{VariantID: f.variantA.ID, Quantity: 2},
			{VariantID: f.variantB.ID, Quantity: 4},
		})
		return terr
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	shortfalls, ok := typed.Details().([]ShortfallDetail)
	if !ok || len(shortfalls) != 1 {
		t.Fatalf("unexpected details: %+v", typed.Details())
	}
	if shortfalls[0].VariantID != f.variantB.ID || shortfalls[0].Requested != 4 || shortfalls[0].Available != 3 {
		t.Fatalf("unexpected shortfall %+v", shortfalls[0])
	}

	if got := f.variantQty(t, f.variantA.ID); got != 5 {
		t.Fatalf("variant A mutated on failed batch: %d", got)
	}
	if got := f.variantQty(t, f.variantB.ID); got != 3 {
		t.Fatalf("variant B mutated on failed batch: %d", got)
	}
	product, category := f.reload(t)
	if product.Total != 8 || category.Stock != 8 {
		t.Fatalf("aggregates mutated on failed batch: %+v / %+v", product, category)
	}
}

func TestReserveClampsAggregatesAtZero(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	// Aggregates drifted below the variant sum; draining the variant must
	// clamp rather than go negative.
	if err := f.db.Model(&models.Product{}).Where("id = ?", f.product.ID).Update("total", 4).Error; err != nil {
		t.Fatalf("drift product: %v", err)
	}
	if err := f.db.Model(&models.Category{}).Where("id = ?", f.category.ID).Update("stock", 4).Error; err != nil {
		t.Fatalf("drift category: %v", err)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, []Request{{VariantID: f.variantA.ID, Quantity: 5}})
		return terr
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	product, category := f.reload(t)
	if product.Total != 0 || product.InStock {
		t.Fatalf("expected clamped out-of-stock product, got %+v", product)
	}
	if category.Stock != 0 {
		t.Fatalf("expected clamped category stock, got %d", category.Stock)
	}
}

func TestReserveMergesDuplicateLines(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		items, terr := Reserve(ctx, tx, []Request{
			{VariantID: f.variantA.ID, Quantity: 2},
			{VariantID: f.variantA.ID, Quantity: 2},
		})
		if terr != nil {
			return terr
		}
		if len(items) != 1 || items[0].Quantity != 4 {
			t.Fatalf("expected merged reservation, got %+v", items)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := f.variantQty(t, f.variantA.ID); got != 1 {
		t.Fatalf("variant A quantity = %d, want 1", got)
	}
}

func TestReserveRejectsInvalidQuantity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := Reserve(context.Background(), f.db, []Request{{VariantID: f.variantA.ID, Quantity: 0}})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveUnknownVariant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(context.Background(), tx, []Request{{VariantID: uuid.New(), Quantity: 1}})
		return terr
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveConcurrentBatchesNeverOversell(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// A single pooled connection serializes the competing transactions the
	// way row locks do on postgres.
	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.db.Transaction(func(tx *gorm.DB) error {
				_, terr := Reserve(context.Background(), tx, []Request{{VariantID: f.variantA.ID, Quantity: 1}})
				return terr
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
			t.Fatalf("unexpected failure: %v", err)
		}
	}

	// Stock 5, eight competing single-unit reservations: exactly five may win.
	if succeeded != 5 {
		t.Fatalf("expected 5 successful reservations, got %d", succeeded)
	}
	if qty := f.variantQty(t, f.variantA.ID); qty != 0 {
		t.Fatalf("variant quantity = %d, want 0", qty)
	}
	product, category := f.reload(t)
	if product.Total != 3 {
		t.Fatalf("product total = %d, want 3", product.Total)
	}
	if category.Stock != 3 {
		t.Fatalf("category stock = %d, want 3", category.Stock)
	}
}
