package stock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Pair identifies one stock entry by its store and product.
type Pair struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
}

// Filter narrows stock listings. Empty fields match everything.
type Filter struct {
	StoreCode    string
	JAN          string
	NegativeOnly bool
	Limit        int
	Offset       int
}

// Repository manages persistence for stock entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForUpdate(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error)
	Find(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error)
	FindByPairs(ctx context.Context, pairs []Pair) ([]models.StockEntry, error)
	InsertMissing(ctx context.Context, pairs []Pair) ([]Pair, error)
	UpsertZero(ctx context.Context, pairs []Pair) error
	AddQuantity(ctx context.Context, id uuid.UUID, delta int) error
	SetQuantity(ctx context.Context, id uuid.UUID, qty int) error
	List(ctx context.Context, filter Filter) ([]models.StockEntry, error)
	StoreIDs(ctx context.Context, codes []string) ([]uuid.UUID, error)
	ProductIDs(ctx context.Context, jans []string) ([]uuid.UUID, error)
	CountNegative(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindForUpdate(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) Find(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByPairs(ctx context.Context, pairs []Pair) ([]models.StockEntry, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(pairs))
	args := make([]any, 0, len(pairs)*2)
	for _, p := range pairs {
		clauses = append(clauses, "(store_id = ? AND product_id = ?)")
		args = append(args, p.StoreID, p.ProductID)
	}
	var rows []models.StockEntry
	err := r.db.WithContext(ctx).
		Where(strings.Join(clauses, " OR "), args...).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertMissing creates zero-quantity entries for pairs that have none and
// returns the pairs it actually inserted.
func (r *repository) InsertMissing(ctx context.Context, pairs []Pair) ([]Pair, error) {
	existing, err := r.FindByPairs(ctx, pairs)
	if err != nil {
		return nil, err
	}
	have := make(map[Pair]bool, len(existing))
	for _, e := range existing {
		have[Pair{StoreID: e.StoreID, ProductID: e.ProductID}] = true
	}

	var rows []models.StockEntry
	var created []Pair
	for _, p := range pairs {
		if have[p] {
			continue
		}
		have[p] = true
		rows = append(rows, models.StockEntry{StoreID: p.StoreID, ProductID: p.ProductID})
		created = append(created, p)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) UpsertZero(ctx context.Context, pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	rows := make([]models.StockEntry, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, models.StockEntry{StoreID: p.StoreID, ProductID: p.ProductID})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   0,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&rows).Error
}

func (r *repository) AddQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) SetQuantity(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   qty,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.StockEntry, error) {
	q := r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Joins("JOIN stores ON stores.id = stock_entries.store_id").
		Joins("JOIN products ON products.id = stock_entries.product_id")
	if filter.StoreCode != "" {
		q = q.Where("stores.code = ?", filter.StoreCode)
	}
	if filter.JAN != "" {
		q = q.Where("products.jan = ?", filter.JAN)
	}
	if filter.NegativeOnly {
		q = q.Where("stock_entries.quantity < 0")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []models.StockEntry
	if err := q.
		Preload("Store").
		Preload("Product").
		Order("stores.code ASC").
		Order("products.jan ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) StoreIDs(ctx context.Context, codes []string) ([]uuid.UUID, error) {
	q := r.db.WithContext(ctx).Model(&models.Store{})
	if len(codes) > 0 {
		q = q.Where("code IN ?", codes)
	}
	var ids []uuid.UUID
	err := q.Order("code ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) ProductIDs(ctx context.Context, jans []string) ([]uuid.UUID, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if len(jans) > 0 {
		q = q.Where("jan IN ?", jans)
	}
	var ids []uuid.UUID
	err := q.Order("jan ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) CountNegative(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Where("quantity < 0").
		Count(&count).Error
	return count, err
}
