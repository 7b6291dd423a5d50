package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const (
	// BatchSize bounds how many rows one bulk transaction touches.
	BatchSize = 50
	// DefaultRestock is the quantity AddQuantity applies when none is given.
	DefaultRestock = 10
)

// Selection picks stock entries for bulk operations. Empty slices select everything.
type Selection struct {
	StoreCodes []string
	JANs       []string
}

// BulkResult reports the outcome of a batched bulk operation.
type BulkResult struct {
	Affected int `json:"affected"`
	Batches  int `json:"batches"`
	Failed   int `json:"failed"`
}

// Service exposes the stock ledger. Methods taking a tx participate in the
// caller's unit of work; the bulk operations manage their own transactions.
type Service interface {
	Ensure(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID) (*models.StockEntry, error)
	SyncStore(ctx context.Context, tx *gorm.DB, storeID uuid.UUID) (int, error)
	SyncProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error)
	CreateOrReset(ctx context.Context, tx *gorm.DB, pairs []Pair) error
	Adjust(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, delta int) (*models.StockEntry, error)
	Decrement(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, qty int) (*models.StockEntry, error)
	Increment(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, qty int) (*models.StockEntry, error)

	Regenerate(ctx context.Context, sel Selection) (BulkResult, error)
	AddQuantity(ctx context.Context, sel Selection, n int) (BulkResult, error)
	Reset(ctx context.Context, sel Selection) (BulkResult, error)

	List(ctx context.Context, filter Filter) ([]models.StockEntry, error)
	CountNegative(ctx context.Context) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     Repository
	recorder changelog.Recorder
	tx       txRunner
	logg     *logger.Logger
}

// NewService wires the stock ledger.
func NewService(repo Repository, recorder changelog.Recorder, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("changelog recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, recorder: recorder, tx: tx, logg: logg}, nil
}

func (s *service) Ensure(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID) (*models.StockEntry, error) {
	repo := s.repo.WithTx(tx)
	created, err := repo.InsertMissing(ctx, []Pair{{StoreID: storeID, ProductID: productID}})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: ensure stock entry")
	}
	entry, err := repo.Find(ctx, storeID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load stock entry")
	}
	if len(created) > 0 {
		if err := s.record(ctx, tx, entry, enums.ChangeActionCreated); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// SyncStore creates a zero entry for every product the store lacks.
func (s *service) SyncStore(ctx context.Context, tx *gorm.DB, storeID uuid.UUID) (int, error) {
	productIDs, err := s.repo.WithTx(tx).ProductIDs(ctx, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	pairs := make([]Pair, 0, len(productIDs))
	for _, id := range productIDs {
		pairs = append(pairs, Pair{StoreID: storeID, ProductID: id})
	}
	return s.insertMissing(ctx, tx, pairs)
}

// SyncProduct creates a zero entry in every store that lacks the product.
func (s *service) SyncProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	storeIDs, err := s.repo.WithTx(tx).StoreIDs(ctx, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stores")
	}
	pairs := make([]Pair, 0, len(storeIDs))
	for _, id := range storeIDs {
		pairs = append(pairs, Pair{StoreID: id, ProductID: productID})
	}
	return s.insertMissing(ctx, tx, pairs)
}

func (s *service) insertMissing(ctx context.Context, tx *gorm.DB, pairs []Pair) (int, error) {
	repo := s.repo.WithTx(tx)
	total := 0
	for _, chunk := range chunk(pairs, BatchSize) {
		created, err := repo.InsertMissing(ctx, chunk)
		if err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock entries")
		}
		if len(created) == 0 {
			continue
		}
		rows, err := repo.FindByPairs(ctx, created)
		if err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load stock entries")
		}
		for i := range rows {
			if err := s.record(ctx, tx, &rows[i], enums.ChangeActionCreated); err != nil {
				return total, err
			}
		}
		total += len(created)
	}
	return total, nil
}

func (s *service) CreateOrReset(ctx context.Context, tx *gorm.DB, pairs []Pair) error {
	repo := s.repo.WithTx(tx)
	for _, chunk := range chunk(pairs, BatchSize) {
		if err := repo.UpsertZero(ctx, chunk); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert stock entries")
		}
		rows, err := repo.FindByPairs(ctx, chunk)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load stock entries")
		}
		for i := range rows {
			if err := s.record(ctx, tx, &rows[i], enums.ChangeActionUpdated); err != nil {
				return err
			}
		}
	}
	return nil
}

// Adjust applies delta to a locked stock row. The row must exist; the
// resulting quantity may be negative.
func (s *service) Adjust(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, delta int) (*models.StockEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock adjustments require a transaction")
	}
	repo := s.repo.WithTx(tx)
	entry, err := repo.FindForUpdate(ctx, storeID, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found").
				WithDetails(map[string]any{"store_id": storeID, "product_id": productID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock stock entry")
	}
	if delta == 0 {
		return entry, nil
	}
	if err := repo.AddQuantity(ctx, entry.ID, delta); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update stock quantity")
	}
	entry.Quantity += delta
	if err := s.record(ctx, tx, entry, enums.ChangeActionUpdated); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Decrement(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, qty int) (*models.StockEntry, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.Adjust(ctx, tx, storeID, productID, -qty)
}

func (s *service) Increment(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, qty int) (*models.StockEntry, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.Adjust(ctx, tx, storeID, productID, qty)
}

// Regenerate upserts a zero entry for every selected (store, product) pair.
func (s *service) Regenerate(ctx context.Context, sel Selection) (BulkResult, error) {
	storeIDs, err := s.repo.StoreIDs(ctx, sel.StoreCodes)
	if err != nil {
		return BulkResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stores")
	}
	productIDs, err := s.repo.ProductIDs(ctx, sel.JANs)
	if err != nil {
		return BulkResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	pairs := make([]Pair, 0, len(storeIDs)*len(productIDs))
	for _, productID := range productIDs {
		for _, storeID := range storeIDs {
			pairs = append(pairs, Pair{StoreID: storeID, ProductID: productID})
		}
	}
	return s.runBatches(ctx, "regenerate", pairs, func(tx *gorm.DB, batch []Pair) error {
		return s.CreateOrReset(ctx, tx, batch)
	})
}

func (s *service) AddQuantity(ctx context.Context, sel Selection, n int) (BulkResult, error) {
	if n == 0 {
		n = DefaultRestock
	}
	pairs, err := s.selectPairs(ctx, sel)
	if err != nil {
		return BulkResult{}, err
	}
	return s.runBatches(ctx, "add_quantity", pairs, func(tx *gorm.DB, batch []Pair) error {
		for _, p := range batch {
			if _, err := s.Adjust(ctx, tx, p.StoreID, p.ProductID, n); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) Reset(ctx context.Context, sel Selection) (BulkResult, error) {
	pairs, err := s.selectPairs(ctx, sel)
	if err != nil {
		return BulkResult{}, err
	}
	return s.runBatches(ctx, "reset", pairs, func(tx *gorm.DB, batch []Pair) error {
		return s.CreateOrReset(ctx, tx, batch)
	})
}

func (s *service) selectPairs(ctx context.Context, sel Selection) ([]Pair, error) {
	var pairs []Pair
	codes := sel.StoreCodes
	if len(codes) == 0 {
		codes = []string{""}
	}
	jans := sel.JANs
	if len(jans) == 0 {
		jans = []string{""}
	}
	for _, code := range codes {
		for _, jan := range jans {
			rows, err := s.repo.List(ctx, Filter{StoreCode: code, JAN: jan})
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stock entries")
			}
			for _, row := range rows {
				pairs = append(pairs, Pair{StoreID: row.StoreID, ProductID: row.ProductID})
			}
		}
	}
	return pairs, nil
}

// runBatches commits each batch on its own. A failed batch is logged and
// reported while later batches still run.
func (s *service) runBatches(ctx context.Context, op string, pairs []Pair, fn func(tx *gorm.DB, batch []Pair) error) (BulkResult, error) {
	var (
		result BulkResult
		errs   error
	)
	for i, batch := range chunk(pairs, BatchSize) {
		result.Batches++
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return fn(tx, batch)
		})
		if err != nil {
			result.Failed += len(batch)
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"operation": op,
				"batch":     i,
				"size":      len(batch),
			}), "stock batch failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s batch %d: %w", op, i, err))
			continue
		}
		result.Affected += len(batch)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"operation": op,
		"affected":  result.Affected,
		"batches":   result.Batches,
		"failed":    result.Failed,
	}), "stock bulk operation finished")
	return result, errs
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.StockEntry, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stock entries")
	}
	return rows, nil
}

func (s *service) CountNegative(ctx context.Context) (int64, error) {
	count, err := s.repo.CountNegative(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count negative stock")
	}
	return count, nil
}

type snapshot struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"store_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func (s *service) record(ctx context.Context, tx *gorm.DB, entry *models.StockEntry, action enums.ChangeAction) error {
	if tx == nil {
		return nil
	}
	_, err := s.recorder.Record(ctx, tx, changelog.Entry{
		Entity:   enums.ChangeEntityStock,
		EntityID: entry.ID.String(),
		Action:   action,
		Snapshot: snapshot{
			ID:        entry.ID,
			StoreID:   entry.StoreID,
			ProductID: entry.ProductID,
			Quantity:  entry.Quantity,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock change")
	}
	return nil
}

func chunk(pairs []Pair, size int) [][]Pair {
	var out [][]Pair
	for size < len(pairs) {
		out = append(out, pairs[:size:size])
		pairs = pairs[size:]
	}
	if len(pairs) > 0 {
		out = append(out, pairs)
	}
	return out
}
