package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmtri/stylehub-backend/pkg/db/models"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

// Service reads the mutable configuration store. Absent keys are reported,
// not defaulted; callers decide the fallback.
type Service interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	return &service{db: db}, nil
}

func (s *service) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, pkgerrors.New(pkgerrors.CodeValidation, "setting key required")
	}
	var row models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading setting")
	}
	return row.Value, true, nil
}

func (s *service) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key required")
	}
	row := models.Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing setting")
	}
	return nil
}
