package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

// listQuery is the repository form of ListParams.
type listQuery struct {
	StoreID *uuid.UUID
	From    *time.Time
	To      *time.Time
	Cursor  *pagination.Cursor
	Limit   int
}

// Repository persists sale transactions and their frozen line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	ExistsSaleID(ctx context.Context, saleID string) (bool, error)
	FindBySaleID(ctx context.Context, saleID string) (*models.Transaction, error)
	FindBySaleIDForUpdate(ctx context.Context, saleID string) (*models.Transaction, error)
	UpdateType(ctx context.Context, id uuid.UUID, kind enums.TransactionType) error
	List(ctx context.Context, q listQuery) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Omit("Store").Create(txn).Error
}

func (r *repository) ExistsSaleID(ctx context.Context, saleID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("sale_id = ?", saleID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindBySaleID(ctx context.Context, saleID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.withLines(r.db.WithContext(ctx)).
		Where("sale_id = ?", saleID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindBySaleIDForUpdate locks the transaction row for the rest of the unit of work.
func (r *repository) FindBySaleIDForUpdate(ctx context.Context, saleID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.withLines(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sale_id = ?", saleID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateType(ctx context.Context, id uuid.UUID, kind enums.TransactionType) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{"sale_type": kind, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Preload("Store")
	if q.StoreID != nil {
		query = query.Where("store_id = ?", *q.StoreID)
	}
	if q.From != nil {
		query = query.Where("sale_date >= ?", q.From.UTC())
	}
	if q.To != nil {
		query = query.Where("sale_date < ?", q.To.UTC())
	}
	if q.Cursor != nil {
		at := q.Cursor.At.UTC()
		query = query.Where("(sale_date < ? OR (sale_date = ? AND id < ?))", at, at, q.Cursor.ID)
	}

	var rows []models.Transaction
	if err := query.Order("sale_date DESC, id DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) withLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Store")
}
