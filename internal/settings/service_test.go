package settings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:settings_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGetMissingKeyReportsAbsent(t *testing.T) {
	t.Parallel()

	svc, err := NewService(newTestDB(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, ok, err := svc.Get(context.Background(), "frontend.url")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected absent key")
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	t.Parallel()

	svc, err := NewService(newTestDB(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	if err := svc.Set(ctx, "gateway.merchant_code", "STYLEHUB01"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := svc.Get(ctx, "gateway.merchant_code")
	if err != nil || !ok {
		t.Fatalf("get: %q %v %v", value, ok, err)
	}
	if value != "STYLEHUB01" {
		t.Fatalf("unexpected value %q", value)
	}

	// Overwrite updates in place.
	if err := svc.Set(ctx, "gateway.merchant_code", "STYLEHUB02"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _, _ = svc.Get(ctx, "gateway.merchant_code")
	if value != "STYLEHUB02" {
		t.Fatalf("unexpected value after overwrite %q", value)
	}
}
