package apikeys

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Repository persists issued API keys.
type Repository interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Revoke(ctx context.Context, prefix string, at time.Time) (bool, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an API key repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, key *models.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *repository) FindByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).Where("prefix = ?", prefix).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repository) List(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&keys).Error
	return keys, err
}

func (r *repository) Revoke(ctx context.Context, prefix string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("prefix = ? AND revoked_at IS NULL", prefix).
		UpdateColumn("revoked_at", at)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}
