package changelog

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Repository manages persistence for change log rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LatestRevision(ctx context.Context, entity enums.ChangeEntity, entityID string) (int, error)
	Create(ctx context.Context, entry *models.ChangeLogEntry) error
	ListByEntity(ctx context.Context, entity enums.ChangeEntity, entityID string) ([]models.ChangeLogEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a change log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LatestRevision(ctx context.Context, entity enums.ChangeEntity, entityID string) (int, error) {
	var latest int
	err := r.db.WithContext(ctx).
		Model(&models.ChangeLogEntry{}).
		Where("entity_type = ? AND entity_id = ?", entity, entityID).
		Select("COALESCE(MAX(revision), 0)").
		Scan(&latest).Error
	return latest, err
}

func (r *repository) Create(ctx context.Context, entry *models.ChangeLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByEntity(ctx context.Context, entity enums.ChangeEntity, entityID string) ([]models.ChangeLogEntry, error) {
	var rows []models.ChangeLogEntry
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entity, entityID).
		Order("revision ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
