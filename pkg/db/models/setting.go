package models

import "time"

// Setting is one row of the mutable configuration store. Absent keys fall
// back to deployment defaults.
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
