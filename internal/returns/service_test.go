package returns

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/internal/coupons"
	"github.com/angelmondragon/pos-backend/internal/pricing"
	"github.com/angelmondragon/pos-backend/internal/receipts"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/txid"
)

const (
	janA = "4900000000016"
	janB = "4900000000023"
)

type printerFunc func(ctx context.Context, doc receipts.Document) error

func (f printerFunc) Print(ctx context.Context, doc receipts.Document) error { return f(ctx, doc) }

type fixture struct {
	svc     Service
	sales   sales.Service
	client  *db.Client
	store   *models.Store
	a, b    *models.Product
	printed []receipts.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()

	recorder, err := changelog.NewService(changelog.NewRepository(conn))
	require.NoError(t, err)
	stockSvc, err := stock.NewService(stock.NewRepository(conn), recorder, client, logger.Nop())
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), client, stockSvc, recorder)
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn), client, catalogSvc, recorder, publisher)
	require.NoError(t, err)
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	require.NoError(t, err)
	ids, err := txid.NewGenerator()
	require.NoError(t, err)

	n := 0
	clock := func() time.Time {
		n++
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Millisecond)
	}

	f := &fixture{client: client}
	f.store = dbtest.MustCreateStore(t, conn, "3")
	f.a = dbtest.MustCreateProduct(t, conn, janA, "Kettle", 1100, 10)
	f.b = dbtest.MustCreateProduct(t, conn, janB, "Rice ball", 108, 8)
	dbtest.MustCreateStock(t, conn, f.store.ID, f.a.ID, 10)
	dbtest.MustCreateStock(t, conn, f.store.ID, f.b.ID, 5)

	deliverer := receipts.NewService(receipts.NewRenderer("Test Mart", 32), printerFunc(func(_ context.Context, doc receipts.Document) error {
		f.printed = append(f.printed, doc)
		return nil
	}), nil, logger.Nop())

	f.sales, err = sales.NewService(sales.ServiceParams{
		Repo:     sales.NewRepository(conn),
		Tx:       client,
		Stores:   catalogSvc,
		Products: catalogSvc,
		Stock:    stockSvc,
		Coupons:  couponSvc,
		Engine:   engine,
		IDs:      ids,
		Recorder: recorder,
		Outbox:   publisher,
		Clock:    clock,
	})
	require.NoError(t, err)

	f.svc, err = NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       client,
		Origins:  f.sales,
		Stock:    stockSvc,
		Engine:   engine,
		IDs:      ids,
		Recorder: recorder,
		Outbox:   publisher,
		Receipts: deliverer,
		Clock:    clock,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) sell(t *testing.T, coupon string) *models.Transaction {
	t.Helper()
	result, err := f.sales.Create(context.Background(), sales.SaleInput{
		StoreCode:  "3",
		StaffCode:  7,
		Deposit:    decimal.NewFromInt(3000),
		CouponCode: coupon,
		Lines:      []sales.LineInput{{JAN: janA, Quantity: 2}, {JAN: janB, Quantity: 1}},
	})
	require.NoError(t, err)
	return result.Transaction
}

func (f *fixture) quantity(t *testing.T, p *models.Product) int {
	t.Helper()
	return dbtest.Quantity(t, f.client.DB(), f.store.ID, p.ID)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestFullReturnRestoresStockAndCopiesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale := f.sell(t, "")
	require.Equal(t, 8, f.quantity(t, f.a))

	result, err := f.svc.Create(ctx, ReturnInput{OriginSaleID: sale.SaleID, ReturnType: enums.ReturnTypeFull})
	require.NoError(t, err)
	require.NoError(t, result.ReceiptErr)

	ret := result.Return
	assert.Equal(t, 10, f.quantity(t, f.a))
	assert.Equal(t, 5, f.quantity(t, f.b))
	assertDecimal(t, "200", ret.Tax10)
	assertDecimal(t, "8", ret.Tax8)
	assertDecimal(t, "208", ret.TaxAmount)
	assertDecimal(t, "2308", ret.ReturnAmount)
	assert.Equal(t, 3, ret.ReturnPoints)
	assert.Equal(t, enums.ReturnReasonCustomer, ret.Reason)
	assert.Equal(t, uint64(7), ret.StaffCode)

	stored, err := f.svc.Get(ctx, ret.ReturnID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, len(sale.Lines))
	for i, line := range sale.Lines {
		assert.Equal(t, line.ProductID, stored.Lines[i].ProductID)
		assert.Equal(t, line.Quantity, stored.Lines[i].Quantity)
		assert.Equal(t, line.TaxRate, stored.Lines[i].TaxRate)
		assert.True(t, line.Price.Equal(stored.Lines[i].Price))
	}
	require.NotNil(t, stored.Origin)
	assert.Equal(t, sale.SaleID, stored.Origin.SaleID)

	origin, err := f.sales.Get(ctx, sale.SaleID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionTypeReturned, origin.Type)

	require.Len(t, f.printed, 1)
	assert.Equal(t, receipts.KindReturn, f.printed[0].Kind)

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReturnCompleted).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestFullReturnSubtractsOriginDiscount(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.client.DB().Create(&models.Coupon{
		Code:          "2804000000012",
		Type:          enums.CouponTypeAmount,
		ExpiresAt:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		DiscountValue: decimal.NewFromInt(100),
	}).Error)
	sale := f.sell(t, "2804000000012")
	assertDecimal(t, "100", sale.DiscountAmount)

	result, err := f.svc.Create(context.Background(), ReturnInput{OriginSaleID: sale.SaleID, ReturnType: enums.ReturnTypeFull, Reason: enums.ReturnReasonCompany})
	require.NoError(t, err)
	assertDecimal(t, "2208", result.Return.ReturnAmount)
	assertDecimal(t, "200", result.Return.Tax10)
	assert.Equal(t, enums.ReturnReasonCompany, result.Return.Reason)
}

func TestPartialReturn(t *testing.T) {
	f := newFixture(t)
	sale := f.sell(t, "")
	staff := uint64(9)

	result, err := f.svc.Create(context.Background(), ReturnInput{
		OriginSaleID: sale.SaleID,
		ReturnType:   enums.ReturnTypePartial,
		StaffCode:    &staff,
		Lines:        []sales.LineInput{{JAN: janB, Quantity: 1}},
	})
	require.NoError(t, err)

	ret := result.Return
	require.Len(t, ret.Lines, 1)
	assert.Equal(t, janB, ret.Lines[0].JAN)
	assertDecimal(t, "0", ret.Tax10)
	assertDecimal(t, "8", ret.Tax8)
	assertDecimal(t, "108", ret.ReturnAmount)
	assert.Equal(t, uint64(9), ret.StaffCode)
	assert.Equal(t, 8, f.quantity(t, f.a))
	assert.Equal(t, 5, f.quantity(t, f.b))
}

func TestPartialReturnValidation(t *testing.T) {
	f := newFixture(t)
	sale := f.sell(t, "")

	cases := map[string][]sales.LineInput{
		"no items":         nil,
		"foreign item":     {{JAN: "4901234567894", Quantity: 1}},
		"too many":         {{JAN: janA, Quantity: 3}},
		"merged too many":  {{JAN: janB, Quantity: 1}, {JAN: janB, Quantity: 1}},
		"invalid quantity": {{JAN: janA, Quantity: 0}},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), ReturnInput{
				OriginSaleID: sale.SaleID,
				ReturnType:   enums.ReturnTypePartial,
				Lines:        lines,
			})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, 8, f.quantity(t, f.a))
	assert.Equal(t, 4, f.quantity(t, f.b))

	origin, err := f.sales.Get(context.Background(), sale.SaleID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionTypeSale, origin.Type)
}

func TestReturnRequiresReturnableOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale := f.sell(t, "")

	_, err := f.svc.Create(ctx, ReturnInput{OriginSaleID: sale.SaleID, ReturnType: enums.ReturnTypeFull})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, ReturnInput{OriginSaleID: sale.SaleID, ReturnType: enums.ReturnTypeFull})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 10, f.quantity(t, f.a))

	_, err = f.svc.Create(ctx, ReturnInput{OriginSaleID: "MISSING123", ReturnType: enums.ReturnTypeFull})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReturnInputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, ReturnInput{ReturnType: enums.ReturnTypeFull})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, ReturnInput{OriginSaleID: "X", ReturnType: "exchange"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, ReturnInput{OriginSaleID: "X", ReturnType: enums.ReturnTypeFull, Reason: "other"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Get(ctx, "NOPE")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
