package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/pkg/enums"
)

// Order is created in status NEW and unpaid; IsPaid flips at most once, on a
// verified gateway callback.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'NEW'"`
	IsPaid        bool                `gorm:"column:is_paid;not null;default:false"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	RecipientName string              `gorm:"column:recipient_name;not null"`
	Phone         string              `gorm:"column:phone;not null"`
	Address       string              `gorm:"column:address;not null"`
	ProductCost   decimal.Decimal     `gorm:"column:product_cost;type:numeric(12,2);not null"`
	SubTotal      decimal.Decimal     `gorm:"column:sub_total;type:numeric(12,2);not null"`
	ShippingCost  decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Lines         []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
