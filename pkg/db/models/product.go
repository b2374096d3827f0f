package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the aggregate view over its variants. Total is the incrementally
// maintained sum of variant quantities, never recomputed on write; InStock is
// derived as total > 0.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID uuid.UUID        `gorm:"column:category_id;type:uuid;not null"`
	Name       string           `gorm:"column:name;not null"`
	Price      decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Cost       decimal.Decimal  `gorm:"column:cost;type:numeric(12,2);not null"`
	Total      int              `gorm:"column:total;not null;default:0"`
	InStock    bool             `gorm:"column:in_stock;not null;default:false"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
