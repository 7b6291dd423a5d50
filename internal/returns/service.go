package returns

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/internal/pricing"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pos-backend/pkg/txid"
)

const maxIDAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type originStore interface {
	LockForReturn(ctx context.Context, tx *gorm.DB, saleID string) (*models.Transaction, error)
	MarkReturned(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error
}

type stockMutator interface {
	Increment(ctx context.Context, tx *gorm.DB, storeID, productID uuid.UUID, qty int) (*models.StockEntry, error)
}

type idGenerator interface {
	New(at time.Time, storeCode, staffCode uint64) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type receiptDeliverer interface {
	DeliverReturn(ctx context.Context, ret *models.ReturnTransaction) error
}

type returnObserver interface {
	ObserveReturn(storeCode, returnType string)
}

// ReturnInput is a return request against a committed sale. Lines are only
// read for partial returns. StaffCode defaults to the staff of the sale.
type ReturnInput struct {
	OriginSaleID string             `json:"sale_id" validate:"required"`
	ReturnType   enums.ReturnType   `json:"return_type" validate:"required"`
	Reason       enums.ReturnReason `json:"reason"`
	StaffCode    *uint64            `json:"staff_code,omitempty"`
	Lines        []sales.LineInput  `json:"items,omitempty" validate:"omitempty,dive"`
}

// ReturnResult carries the committed return. ReceiptErr is set when the
// return committed but the receipt could not be delivered.
type ReturnResult struct {
	Return     *models.ReturnTransaction
	ReceiptErr error
}

// Service records returns.
type Service interface {
	Create(ctx context.Context, input ReturnInput) (*ReturnResult, error)
	Get(ctx context.Context, returnID string) (*models.ReturnTransaction, error)
}

// ServiceParams bundles the collaborators of the return workflow.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Origins  originStore
	Stock    stockMutator
	Engine   *pricing.Engine
	IDs      idGenerator
	Recorder changelog.Recorder
	Outbox   outboxPublisher
	Receipts receiptDeliverer
	Metrics  returnObserver
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	origins  originStore
	stock    stockMutator
	engine   *pricing.Engine
	ids      idGenerator
	recorder changelog.Recorder
	outbox   outboxPublisher
	receipts receiptDeliverer
	metrics  returnObserver
	logg     *logger.Logger
	now      func() time.Time
}

// NewService validates the collaborators and builds the return service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("returns repository is required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner is required")
	case params.Origins == nil:
		return nil, fmt.Errorf("origin store is required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock mutator is required")
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
		origins:  params.Origins,
		stock:    params.Stock,
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

func (s *service) Create(ctx context.Context, input ReturnInput) (*ReturnResult, error) {
	if strings.TrimSpace(input.OriginSaleID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	if !input.ReturnType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return type must be full or partial").
			WithDetails(map[string]any{"return_type": input.ReturnType})
	}
	if input.Reason == "" {
		input.Reason = enums.ReturnReasonCustomer
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason must be customer or company").
			WithDetails(map[string]any{"reason": input.Reason})
	}
	var requested []sales.LineInput
	if input.ReturnType == enums.ReturnTypePartial {
		merged, err := sales.MergeLines(input.Lines)
		if err != nil {
			return nil, err
		}
		requested = merged
	}

	ctx = s.logg.WithSaleID(ctx, input.OriginSaleID)

	var ret *models.ReturnTransaction
	var storeCode string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		origin, err := s.origins.LockForReturn(ctx, tx, input.OriginSaleID)
		if err != nil {
			return err
		}
		if origin.Store != nil {
			storeCode = origin.Store.Code
		}

		lines, err := selectLines(origin, input.ReturnType, requested)
		if err != nil {
			return err
		}

		items := make([]models.ReturnLineItem, 0, len(lines))
		priced := make([]pricing.Line, 0, len(lines))
		points := 0
		for i, line := range lines {
			if _, err := s.stock.Increment(ctx, tx, origin.StoreID, line.ProductID, line.Quantity); err != nil {
				return err
			}
			items = append(items, models.ReturnLineItem{
				Position:  i + 1,
				ProductID: line.ProductID,
				JAN:       line.JAN,
				Name:      line.Name,
				Price:     line.Price,
				TaxRate:   line.TaxRate,
				Quantity:  line.Quantity,
			})
			priced = append(priced, pricing.Line{
				JAN:      line.JAN,
				Quantity: line.Quantity,
				Price:    line.Price,
				TaxRate:  line.TaxRate,
			})
			points += line.Quantity
		}

		brackets := pricing.BracketsOf(priced)
		tax := s.engine.Split(brackets)

		staff := origin.StaffCode
		if input.StaffCode != nil {
			staff = *input.StaffCode
		}
		returnID, returnedAt, err := s.nextID(ctx, tx, storeCode, staff)
		if err != nil {
			return err
		}

		ret = &models.ReturnTransaction{
			ReturnID:            returnID,
			OriginTransactionID: origin.ID,
			ReturnType:          input.ReturnType,
			Reason:              input.Reason,
			ReturnedAt:          returnedAt,
			StoreID:             origin.StoreID,
			StaffCode:           staff,
			ReturnPoints:        points,
			Tax10:               tax.Rate(10),
			Tax8:                tax.Rate(8),
			TaxAmount:           tax.Total,
			ReturnAmount:        brackets.Sum().Sub(origin.DiscountAmount),
			Lines:               items,
		}
		if err := s.repo.WithTx(tx).Create(ctx, ret); err != nil {
			if db.IsUniqueViolation(err, "ux_return_transactions_return_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "return id collision").
					WithDetails(map[string]any{"return_id": returnID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert return transaction")
		}
		ret.Origin = origin
		ret.Store = origin.Store

		if err := s.origins.MarkReturned(ctx, tx, origin); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx, changelog.Entry{
			Entity:   enums.ChangeEntityReturn,
			EntityID: ret.ReturnID,
			Action:   enums.ChangeActionCreated,
			Snapshot: returnEvent(ret, origin.SaleID, storeCode),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record return change")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnCompleted,
			AggregateType: enums.AggregateReturnTransaction,
			AggregateID:   ret.ReturnID,
			Actor:         &outbox.ActorRef{Name: changelog.ActorFromContext(ctx), StoreCode: storeCode, StaffCode: staff},
			Data:          returnEvent(ret, origin.SaleID, storeCode),
			OccurredAt:    returnedAt,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return")
	}

	ctx = s.logg.WithField(ctx, "return_id", ret.ReturnID)
	s.logg.Info(ctx, "return recorded")
	if s.metrics != nil {
		s.metrics.ObserveReturn(storeCode, ret.ReturnType.String())
	}

	result := &ReturnResult{Return: ret}
	if s.receipts != nil {
		result.ReceiptErr = s.receipts.DeliverReturn(ctx, ret)
	}
	return result, nil
}

// selectLines picks the origin lines being returned. A full return takes every
// line as sold; a partial return takes the requested codes, each of which must
// appear on the sale with at least the requested quantity.
func selectLines(origin *models.Transaction, kind enums.ReturnType, requested []sales.LineInput) ([]models.SaleLineItem, error) {
	if kind == enums.ReturnTypeFull {
		if len(origin.Lines) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin transaction has no items")
		}
		return origin.Lines, nil
	}

	sold := make(map[string]models.SaleLineItem, len(origin.Lines))
	for _, line := range origin.Lines {
		if existing, ok := sold[line.JAN]; ok {
			existing.Quantity += line.Quantity
			sold[line.JAN] = existing
			continue
		}
		sold[line.JAN] = line
	}

	out := make([]models.SaleLineItem, 0, len(requested))
	for _, req := range requested {
		line, ok := sold[req.JAN]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item was not part of the original sale").
				WithDetails(map[string]any{"jan": req.JAN})
		}
		if req.Quantity > line.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return quantity exceeds the quantity sold").
				WithDetails(map[string]any{"jan": req.JAN, "sold": line.Quantity, "requested": req.Quantity})
		}
		line.Quantity = req.Quantity
		out = append(out, line)
	}
	return out, nil
}

func (s *service) nextID(ctx context.Context, tx *gorm.DB, storeCode string, staffCode uint64) (string, time.Time, error) {
	code, err := strconv.ParseUint(storeCode, 10, 64)
	if err != nil {
		return "", time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "store code must be numeric").
			WithDetails(map[string]any{"store_code": storeCode})
	}
	repo := s.repo.WithTx(tx)
	var last string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if attempt > 0 {
			if err := txid.WaitTick(ctx); err != nil {
				return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "wait for return id")
			}
		}
		at := s.now().UTC()
		id, err := s.ids.New(at, code, staffCode)
		if err != nil {
			return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate return id")
		}
		exists, err := repo.ExistsReturnID(ctx, id)
		if err != nil {
			return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check return id")
		}
		if !exists {
			return id, at, nil
		}
		last = id
	}
	return "", time.Time{}, pkgerrors.New(pkgerrors.CodeConflict, "return id collision").
		WithDetails(map[string]any{"return_id": last})
}

func (s *service) Get(ctx context.Context, returnID string) (*models.ReturnTransaction, error) {
	ret, err := s.repo.FindByReturnID(ctx, strings.TrimSpace(returnID))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return transaction not found").
				WithDetails(map[string]any{"return_id": returnID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load return transaction")
	}
	return ret, nil
}

func returnEvent(ret *models.ReturnTransaction, originSaleID, storeCode string) payloads.ReturnCompletedEvent {
	lines := make([]payloads.LineItem, 0, len(ret.Lines))
	for _, line := range ret.Lines {
		lines = append(lines, payloads.LineItem{
			JAN:      line.JAN,
			Name:     line.Name,
			Price:    line.Price,
			TaxRate:  line.TaxRate,
			Quantity: line.Quantity,
		})
	}
	return payloads.ReturnCompletedEvent{
		ReturnID:     ret.ReturnID,
		OriginSaleID: originSaleID,
		StoreCode:    storeCode,
		ReturnType:   ret.ReturnType,
		Reason:       ret.Reason,
		ReturnedAt:   ret.ReturnedAt,
		ReturnAmount: ret.ReturnAmount,
		TaxAmount:    ret.TaxAmount,
		Lines:        lines,
	}
}
