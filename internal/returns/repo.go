package returns

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Repository persists return transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ret *models.ReturnTransaction) error
	ExistsReturnID(ctx context.Context, returnID string) (bool, error)
	FindByReturnID(ctx context.Context, returnID string) (*models.ReturnTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a returns repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ret *models.ReturnTransaction) error {
	return r.db.WithContext(ctx).Omit("Store", "Origin").Create(ret).Error
}

func (r *repository) ExistsReturnID(ctx context.Context, returnID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnTransaction{}).
		Where("return_id = ?", returnID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindByReturnID(ctx context.Context, returnID string) (*models.ReturnTransaction, error) {
	var ret models.ReturnTransaction
	err := r.db.WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Store").
		Preload("Origin").
		Where("return_id = ?", returnID).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}
