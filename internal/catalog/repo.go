package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Repository persists products and stores.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	FindProductByJAN(ctx context.Context, jan string) (*models.Product, error)
	ProductReferenced(ctx context.Context, productID uuid.UUID) (bool, error)
	ProductsByJANs(ctx context.Context, jans []string) ([]models.Product, error)
	ListProducts(ctx context.Context, query string, limit, offset int) ([]models.Product, error)
	CreateStore(ctx context.Context, store *models.Store) error
	FindStoreByCode(ctx context.Context, code string) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a catalog repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":     product.Name,
			"price":    product.Price,
			"tax_rate": product.TaxRate,
		}).Error
}

func (r *repository) FindProductByJAN(ctx context.Context, jan string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("jan = ?", jan).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductReferenced reports whether any sale or return line points at the product.
func (r *repository) ProductReferenced(ctx context.Context, productID uuid.UUID) (bool, error) {
	for _, model := range []any{&models.SaleLineItem{}, &models.ReturnLineItem{}} {
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Where("product_id = ?", productID).Limit(1).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *repository) ProductsByJANs(ctx context.Context, jans []string) ([]models.Product, error) {
	if len(jans) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("jan IN ?", jans).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ListProducts(ctx context.Context, query string, limit, offset int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("name LIKE ? OR jan LIKE ?", like, like)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var products []models.Product
	if err := q.Order("jan ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) CreateStore(ctx context.Context, store *models.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *repository) FindStoreByCode(ctx context.Context, code string) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) ListStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}
