package sales

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/internal/pricing"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
	"github.com/angelmondragon/pos-backend/pkg/txid"
)

const maxIDAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type storeLoader interface {
	GetStoreByCode(ctx context.Context, code string) (*models.Store, error)
}

type productLoader interface {
	ProductsByJAN(ctx context.Context, tx *gorm.DB, jans []string) (map[string]models.Product, error)
}

type stockMutator interface {
	Decrement(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, qty int) (*models.StockEntry, error)
}

type couponResolver interface {
	Redeemable(ctx context.Context, tx *gorm.DB, code string, now time.Time) (*models.Coupon, pricing.Policy, error)
}

type idGenerator interface {
	New(at time.Time, storeCode, staffCode uint64) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type receiptDeliverer interface {
	DeliverSale(ctx context.Context, txn *models.Transaction) error
}

type saleObserver interface {
	ObserveSale(storeCode string, total decimal.Decimal)
}

// LineInput is one requested product and quantity.
type LineInput struct {
	JAN      string `json:"jan" validate:"required,jan"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// SaleInput is a checkout request from a register.
type SaleInput struct {
	StoreCode  string          `json:"store_code" validate:"required,numeric"`
	StaffCode  uint64          `json:"staff_code" validate:"required"`
	Deposit    decimal.Decimal `json:"deposit"`
	CouponCode string          `json:"coupon_code,omitempty"`
	Lines      []LineInput     `json:"items" validate:"required,min=1,dive"`
}

// SaleResult carries the committed transaction. ReceiptErr is set when the
// sale committed but the receipt could not be delivered.
type SaleResult struct {
	Transaction *models.Transaction
	ReceiptErr  error
}

// ListParams filters transaction listings.
type ListParams struct {
	StoreCode string
	From      *time.Time
	To        *time.Time
	pagination.Params
}

// ListResult is one page of transactions.
type ListResult struct {
	Items  []models.Transaction
	Cursor string
}

// Service records sales and serves them back.
type Service interface {
	Create(ctx context.Context, input SaleInput) (*SaleResult, error)
	Get(ctx context.Context, saleID string) (*models.Transaction, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Reprint(ctx context.Context, saleID string) error
	LockForReturn(ctx context.Context, tx *gorm.DB, saleID string) (*models.Transaction, error)
	MarkReturned(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error
}

// ServiceParams bundles the collaborators of the sale workflow.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Stores   storeLoader
	Products productLoader
	Stock    stockMutator
	Coupons  couponResolver
	Engine   *pricing.Engine
	IDs      idGenerator
	Recorder changelog.Recorder
	Outbox   outboxPublisher
	Receipts receiptDeliverer
	Metrics  saleObserver
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	stores   storeLoader
	products productLoader
	stock    stockMutator
	coupons  couponResolver
	engine   *pricing.Engine
	ids      idGenerator
	recorder changelog.Recorder
	outbox   outboxPublisher
	receipts receiptDeliverer
	metrics  saleObserver
	logg     *logger.Logger
	now      func() time.Time
}

// NewService validates the collaborators and builds the sale service.
// Receipts and Metrics are optional.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("sales repository is required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner is required")
	case params.Stores == nil:
		return nil, fmt.Errorf("store loader is required")
	case params.Products == nil:
		return nil, fmt.Errorf("product loader is required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock mutator is required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon resolver is required")
	case params.Engine == nil:
		return nil, fmt.Errorf("pricing engine is required")
	case params.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case params.Recorder == nil:
		return nil, fmt.Errorf("changelog recorder is required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher is required")
	}
	s := &service{
		repo:     params.Repo,
		tx:       params.Tx,
		stores:   params.Stores,
		products: params.Products,
		stock:    params.Stock,
		coupons:  params.Coupons,
		engine:   params.Engine,
		ids:      params.IDs,
		recorder: params.Recorder,
		outbox:   params.Outbox,
		receipts: params.Receipts,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      params.Clock,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *service) Create(ctx context.Context, input SaleInput) (*SaleResult, error) {
	lines, err := MergeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	if !input.Deposit.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit must be positive")
	}
	rawStoreCode := strings.TrimSpace(input.StoreCode)
	storeCode, err := strconv.ParseUint(rawStoreCode, 10, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store code must be numeric").
			WithDetails(map[string]any{"store_code": input.StoreCode})
	}
	store, err := s.stores.GetStoreByCode(ctx, rawStoreCode)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithStoreCode(ctx, store.Code)
	ctx = s.logg.WithStaffCode(ctx, input.StaffCode)

	var txn *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products, err := s.loadProducts(ctx, tx, lines)
		if err != nil {
			return err
		}

		var coupon *models.Coupon
		var policy pricing.Policy
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			coupon, policy, err = s.coupons.Redeemable(ctx, tx, code, s.now().UTC())
			if err != nil {
				return err
			}
		}

		items := make([]models.SaleLineItem, 0, len(lines))
		priced := make([]pricing.Line, 0, len(lines))
		for i, line := range lines {
			product := products[line.JAN]
			if _, err := s.stock.Decrement(ctx, tx, store.ID, product.ID, line.Quantity); err != nil {
				return err
			}
			items = append(items, models.SaleLineItem{
				Position:  i + 1,
				ProductID: product.ID,
				JAN:       product.JAN,
				Name:      product.Name,
				Price:     product.Price,
				TaxRate:   product.TaxRate,
				Quantity:  line.Quantity,
			})
			priced = append(priced, pricing.Line{
				JAN:      product.JAN,
				Quantity: line.Quantity,
				Price:    product.Price,
				TaxRate:  product.TaxRate,
			})
		}

		sum := s.price(priced, policy)
		if input.Deposit.LessThan(sum.Total) {
			return pkgerrors.New(pkgerrors.CodeValidation, "deposit is less than the total").
				WithDetails(map[string]any{"deposit": input.Deposit.String(), "total": sum.Total.String()})
		}
		change := input.Deposit.Sub(sum.Total)
		if change.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "change cannot be negative")
		}

		saleID, soldAt, err := s.nextID(ctx, tx, storeCode, input.StaffCode)
		if err != nil {
			return err
		}

		txn = &models.Transaction{
			SaleID:         saleID,
			Type:           enums.TransactionTypeSale,
			SoldAt:         soldAt,
			StoreID:        store.ID,
			StaffCode:      input.StaffCode,
			Deposit:        input.Deposit,
			PurchasePoints: purchasePoints(lines),
			Tax10:          sum.Tax.Rate(10),
			Tax8:           sum.Tax.Rate(8),
			TaxAmount:      sum.Tax.Total,
			TotalAmount:    sum.Total,
			DiscountAmount: sum.Discount,
			Change:         change,
			Lines:          items,
		}
		if coupon != nil {
			code := coupon.Code
			txn.CouponCode = &code
		}
		if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
			if db.IsUniqueViolation(err, "ux_transactions_sale_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sale id collision").
					WithDetails(map[string]any{"sale_id": saleID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert transaction")
		}
		txn.Store = store

		if _, err := s.recorder.Record(ctx, tx, changelog.Entry{
			Entity:   enums.ChangeEntityTransaction,
			EntityID: txn.SaleID,
			Action:   enums.ChangeActionCreated,
			Snapshot: txn,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction change")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.SaleID,
			Actor:         &outbox.ActorRef{Name: changelog.ActorFromContext(ctx), StoreCode: store.Code, StaffCode: input.StaffCode},
			Data:          saleEvent(txn, store.Code),
			OccurredAt:    soldAt,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
	}

	ctx = s.logg.WithSaleID(ctx, txn.SaleID)
	s.logg.Info(ctx, "sale recorded")
	if s.metrics != nil {
		s.metrics.ObserveSale(store.Code, txn.TotalAmount)
	}

	result := &SaleResult{Transaction: txn}
	if s.receipts != nil {
		result.ReceiptErr = s.receipts.DeliverSale(ctx, txn)
	}
	return result, nil
}

// loadProducts resolves every line inside tx and checks the sellable tax rates.
func (s *service) loadProducts(ctx context.Context, tx *gorm.DB, lines []LineInput) (map[string]models.Product, error) {
	jans := make([]string, 0, len(lines))
	for _, line := range lines {
		jans = append(jans, line.JAN)
	}
	products, err := s.products.ProductsByJAN(ctx, tx, jans)
	if err != nil {
		return nil, err
	}
	for _, jan := range jans {
		product, ok := products[jan]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"jan": jan})
		}
		if !s.engine.Config().HasBracket(product.TaxRate) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product tax rate cannot be sold").
				WithDetails(map[string]any{"jan": jan, "tax_rate": product.TaxRate})
		}
	}
	return products, nil
}

// totals is the priced outcome of a basket.
type totals struct {
	Brackets pricing.Brackets
	Tax      pricing.TaxSplit
	Total    decimal.Decimal
	Discount decimal.Decimal
}

func (s *service) price(lines []pricing.Line, policy pricing.Policy) totals {
	before := pricing.BracketsOf(lines)
	d := s.engine.ApplyDiscount(before.Sum(), policy, lines)
	brackets := s.engine.Reapportion(lines, d, targetOf(policy))
	return totals{
		Brackets: brackets,
		Tax:      s.engine.Split(brackets),
		Total:    brackets.Sum(),
		Discount: d.Amount,
	}
}

func targetOf(policy pricing.Policy) string {
	switch p := policy.(type) {
	case pricing.ProductPolicy:
		return p.TargetJAN
	case pricing.MultiPolicy:
		return p.TargetJAN
	}
	return ""
}

// nextID generates a sale id that is not yet taken. A taken id is retried
// one clock tick later so the fraction part can change.
func (s *service) nextID(ctx context.Context, tx *gorm.DB, storeCode, staffCode uint64) (string, time.Time, error) {
	repo := s.repo.WithTx(tx)
	var last string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if attempt > 0 {
			if err := txid.WaitTick(ctx); err != nil {
				return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "wait for sale id")
			}
		}
		at := s.now().UTC()
		id, err := s.ids.New(at, storeCode, staffCode)
		if err != nil {
			return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate sale id")
		}
		exists, err := repo.ExistsSaleID(ctx, id)
		if err != nil {
			return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check sale id")
		}
		if !exists {
			return id, at, nil
		}
		last = id
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "sale id collision")
	}
	return "", time.Time{}, pkgerrors.New(pkgerrors.CodeConflict, "sale id collision").
		WithDetails(map[string]any{"sale_id": last})
}

func (s *service) Get(ctx context.Context, saleID string) (*models.Transaction, error) {
	txn, err := s.repo.FindBySaleID(ctx, strings.TrimSpace(saleID))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found").
				WithDetails(map[string]any{"sale_id": saleID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load transaction")
	}
	return txn, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listQuery{
		From:  params.From,
		To:    params.To,
		Limit: pagination.LimitWithBuffer(params.Limit),
	}
	if code := strings.TrimSpace(params.StoreCode); code != "" {
		store, err := s.stores.GetStoreByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		query.StoreID = &store.ID
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list transactions")
	}
	items, next := pagination.Trim(rows, params.Limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{At: t.SoldAt, ID: t.ID}
	})
	return &ListResult{Items: items, Cursor: next}, nil
}

// Reprint delivers the receipt of an already committed sale again.
func (s *service) Reprint(ctx context.Context, saleID string) error {
	if s.receipts == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "receipt printing is disabled")
	}
	txn, err := s.Get(ctx, saleID)
	if err != nil {
		return err
	}
	return s.receipts.DeliverSale(s.logg.WithSaleID(ctx, txn.SaleID), txn)
}

// LockForReturn loads a sale with its lines, locked for the surrounding tx,
// and checks that a return may be recorded against it.
func (s *service) LockForReturn(ctx context.Context, tx *gorm.DB, saleID string) (*models.Transaction, error) {
	txn, err := s.repo.WithTx(tx).FindBySaleIDForUpdate(ctx, strings.TrimSpace(saleID))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "origin transaction not found").
				WithDetails(map[string]any{"sale_id": saleID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load origin transaction")
	}
	if !txn.Type.Returnable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin transaction cannot be returned").
			WithDetails(map[string]any{"sale_id": saleID, "sale_type": txn.Type})
	}
	return txn, nil
}

// MarkReturned flips the sale to returned and records the change.
func (s *service) MarkReturned(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	if err := s.repo.WithTx(tx).UpdateType(ctx, txn.ID, enums.TransactionTypeReturned); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark transaction returned")
	}
	txn.Type = enums.TransactionTypeReturned
	if _, err := s.recorder.Record(ctx, tx, changelog.Entry{
		Entity:   enums.ChangeEntityTransaction,
		EntityID: txn.SaleID,
		Action:   enums.ChangeActionUpdated,
		Snapshot: map[string]any{"sale_id": txn.SaleID, "sale_type": txn.Type},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction change")
	}
	return nil
}

// MergeLines sums the quantities of repeated codes, keeping first-seen order.
func MergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	index := make(map[string]int, len(lines))
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		jan := strings.TrimSpace(line.JAN)
		if jan == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "jan is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"jan": jan, "quantity": line.Quantity})
		}
		if i, ok := index[jan]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[jan] = len(out)
		out = append(out, LineInput{JAN: jan, Quantity: line.Quantity})
	}
	return out, nil
}

func purchasePoints(lines []LineInput) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

func saleEvent(txn *models.Transaction, storeCode string) payloads.SaleCompletedEvent {
	lines := make([]payloads.LineItem, 0, len(txn.Lines))
	for _, line := range txn.Lines {
		lines = append(lines, payloads.LineItem{
			JAN:      line.JAN,
			Name:     line.Name,
			Price:    line.Price,
			TaxRate:  line.TaxRate,
			Quantity: line.Quantity,
		})
	}
	return payloads.SaleCompletedEvent{
		SaleID:         txn.SaleID,
		StoreCode:      storeCode,
		StaffCode:      txn.StaffCode,
		SoldAt:         txn.SoldAt,
		TotalAmount:    txn.TotalAmount,
		DiscountAmount: txn.DiscountAmount,
		TaxAmount:      txn.TaxAmount,
		CouponCode:     txn.CouponCode,
		Lines:          lines,
	}
}
