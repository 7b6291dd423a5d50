package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/pkg/checkdigit"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockSyncer creates the zero stock rows a new store or product needs.
type stockSyncer interface {
	SyncStore(ctx context.Context, tx *gorm.DB, storeID uuid.UUID) (int, error)
	SyncProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error)
}

// ProductInput carries a new product.
type ProductInput struct {
	JAN     string          `json:"jan" validate:"required,jan"`
	Name    string          `json:"name" validate:"required,max=255"`
	Price   decimal.Decimal `json:"price"`
	TaxRate int             `json:"tax_rate" validate:"taxrate"`
}

// ProductUpdate carries optional product changes.
type ProductUpdate struct {
	Name    *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	TaxRate *int             `json:"tax_rate,omitempty" validate:"omitempty,taxrate"`
}

// StoreInput carries a new store.
type StoreInput struct {
	Code string `json:"code" validate:"required,numeric,max=16"`
	Name string `json:"name" validate:"required,max=255"`
}

// Service manages the product and store masters.
type Service interface {
	CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, jan string, input ProductUpdate) (*models.Product, error)
	GetProductByJAN(ctx context.Context, jan string) (*models.Product, error)
	ProductsByJAN(ctx context.Context, tx *gorm.DB, jans []string) (map[string]models.Product, error)
	ListProducts(ctx context.Context, query string, limit, offset int) ([]models.Product, error)
	CreateStore(ctx context.Context, input StoreInput) (*models.Store, error)
	GetStoreByCode(ctx context.Context, code string) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	stock    stockSyncer
	recorder changelog.Recorder
}

// NewService wires the catalog service.
func NewService(repo Repository, tx txRunner, stock stockSyncer, recorder changelog.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock syncer required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("changelog recorder required")
	}
	return &service{repo: repo, tx: tx, stock: stock, recorder: recorder}, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	jan := strings.TrimSpace(input.JAN)
	if !checkdigit.ValidProductCode(jan) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jan code is invalid").
			WithDetails(map[string]any{"jan": jan})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if !checkdigit.ValidTaxRate(input.TaxRate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax_rate must be one of 0, 8 or 10")
	}

	product := &models.Product{
		JAN:     jan,
		Name:    name,
		Price:   input.Price.Round(2),
		TaxRate: input.TaxRate,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "ux_products_jan") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already exists").
					WithDetails(map[string]any{"jan": jan})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		if err := s.record(ctx, tx, enums.ChangeEntityProduct, product.ID, enums.ChangeActionCreated, product); err != nil {
			return err
		}
		_, err := s.stock.SyncProduct(ctx, tx, product.ID)
		return err
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, jan string, input ProductUpdate) (*models.Product, error) {
	var product *models.Product
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindProductByJAN(ctx, jan)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		referenced, err := repo.ProductReferenced(ctx, found.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check product references")
		}
		if referenced {
			return pkgerrors.New(pkgerrors.CodeConflict, "product is referenced by a transaction").
				WithDetails(map[string]any{"jan": found.JAN})
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
			}
			found.Name = name
		}
		if input.Price != nil {
			if err := validatePrice(*input.Price); err != nil {
				return err
			}
			found.Price = input.Price.Round(2)
		}
		if input.TaxRate != nil {
			if !checkdigit.ValidTaxRate(*input.TaxRate) {
				return pkgerrors.New(pkgerrors.CodeValidation, "tax_rate must be one of 0, 8 or 10")
			}
			found.TaxRate = *input.TaxRate
		}
		if err := repo.UpdateProduct(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		product = found
		return s.record(ctx, tx, enums.ChangeEntityProduct, found.ID, enums.ChangeActionUpdated, found)
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

func (s *service) GetProductByJAN(ctx context.Context, jan string) (*models.Product, error) {
	product, err := s.repo.FindProductByJAN(ctx, strings.TrimSpace(jan))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"jan": jan})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return product, nil
}

// ProductsByJAN loads the products for jans keyed by code. Missing codes are
// simply absent from the map.
func (s *service) ProductsByJAN(ctx context.Context, tx *gorm.DB, jans []string) (map[string]models.Product, error) {
	rows, err := s.repo.WithTx(tx).ProductsByJANs(ctx, jans)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
	}
	out := make(map[string]models.Product, len(rows))
	for _, row := range rows {
		out[row.JAN] = row
	}
	return out, nil
}

func (s *service) ListProducts(ctx context.Context, query string, limit, offset int) ([]models.Product, error) {
	rows, err := s.repo.ListProducts(ctx, strings.TrimSpace(query), limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return rows, nil
}

func (s *service) CreateStore(ctx context.Context, input StoreInput) (*models.Store, error) {
	code := strings.TrimSpace(input.Code)
	if _, err := strconv.ParseUint(code, 10, 64); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store code must be numeric").
			WithDetails(map[string]any{"code": code})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	store := &models.Store{Code: code, Name: name}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateStore(ctx, store); err != nil {
			if db.IsUniqueViolation(err, "ux_stores_code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "store already exists").
					WithDetails(map[string]any{"code": code})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert store")
		}
		if err := s.record(ctx, tx, enums.ChangeEntityStore, store.ID, enums.ChangeActionCreated, store); err != nil {
			return err
		}
		_, err := s.stock.SyncStore(ctx, tx, store.ID)
		return err
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create store")
	}
	return store, nil
}

func (s *service) GetStoreByCode(ctx context.Context, code string) (*models.Store, error) {
	store, err := s.repo.FindStoreByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found").
				WithDetails(map[string]any{"store_code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load store")
	}
	return store, nil
}

func (s *service) ListStores(ctx context.Context) ([]models.Store, error) {
	rows, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stores")
	}
	return rows, nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, entity enums.ChangeEntity, id uuid.UUID, action enums.ChangeAction, snapshot any) error {
	if _, err := s.recorder.Record(ctx, tx, changelog.Entry{
		Entity:   entity,
		EntityID: id.String(),
		Action:   action,
		Snapshot: snapshot,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record change")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return nil
}
