package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	"github.com/dmtri/stylehub-backend/pkg/outbox"
	"github.com/dmtri/stylehub-backend/pkg/outbox/payloads"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUpsertReplacesQuantity(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	customerID := uuid.New()
	variantID := uuid.New()

	if err := repo.Upsert(ctx, &models.CartItem{CustomerID: customerID, VariantID: variantID, Quantity: 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, &models.CartItem{CustomerID: customerID, VariantID: variantID, Quantity: 3}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	items, err := repo.ListByCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single line, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", items[0].Quantity)
	}
}

func TestDeleteLinesLeavesOtherCustomersAlone(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	customerID := uuid.New()
	otherCustomer := uuid.New()
	variantA := uuid.New()
	variantB := uuid.New()

	for _, item := range []models.CartItem{
		{CustomerID: customerID, VariantID: variantA, Quantity: 2},
		{CustomerID: customerID, VariantID: variantB, Quantity: 1},
		{CustomerID: otherCustomer, VariantID: variantA, Quantity: 4},
	} {
		line := item
		if err := repo.Upsert(ctx, &line); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	removed, err := repo.DeleteLines(ctx, customerID, []uuid.UUID{variantA, variantB, uuid.New()})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 rows removed, got %d", removed)
	}

	remaining, err := repo.ListByCustomer(ctx, otherCustomer)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("other customer's cart should be intact, got %d lines", len(remaining))
	}
}

func TestConsumerClearsOrderedVariants(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	customerID := uuid.New()
	variantID := uuid.New()
	keptVariant := uuid.New()

	for _, item := range []models.CartItem{
		{CustomerID: customerID, VariantID: variantID, Quantity: 2},
		{CustomerID: customerID, VariantID: keptVariant, Quantity: 1},
	} {
		line := item
		if err := repo.Upsert(ctx, &line); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	event := payloads.OrderPlacedEvent{
		OrderID:    uuid.New(),
		CustomerID: customerID,
		VariantIDs: []uuid.UUID{variantID},
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version: 1,
		EventID: uuid.NewString(),
		Data:    data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	consumer, err := NewConsumer(repo, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if !consumer.Handles(enums.EventOrderPlaced) {
		t.Fatal("consumer should handle order.placed")
	}
	if consumer.Handles(enums.EventOrderPaid) {
		t.Fatal("consumer should not handle order.paid")
	}

	row := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID,
		Payload:       payload,
		Status:        enums.OutboxStatusPending,
	}
	if err := consumer.Consume(ctx, row); err != nil {
		t.Fatalf("consume: %v", err)
	}

	items, err := repo.ListByCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].VariantID != keptVariant {
		t.Fatalf("expected only the unordered variant to remain, got %+v", items)
	}
}
