package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/coupons"
	"github.com/angelmondragon/pos-backend/internal/reports"
	"github.com/angelmondragon/pos-backend/internal/returns"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const testJAN = "4901234567894"

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Warnings []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"warnings"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type stubCatalog struct {
	product  *models.Product
	products []models.Product
	store    *models.Store
	err      error

	gotQuery  string
	gotInput  catalog.ProductInput
	gotUpdate catalog.ProductUpdate
	gotJAN    string
}

func (s *stubCatalog) CreateProduct(_ context.Context, input catalog.ProductInput) (*models.Product, error) {
	s.gotInput = input
	return s.product, s.err
}

func (s *stubCatalog) UpdateProduct(_ context.Context, jan string, input catalog.ProductUpdate) (*models.Product, error) {
	s.gotJAN = jan
	s.gotUpdate = input
	return s.product, s.err
}

func (s *stubCatalog) GetProductByJAN(_ context.Context, jan string) (*models.Product, error) {
	s.gotJAN = jan
	return s.product, s.err
}

func (s *stubCatalog) ListProducts(_ context.Context, query string, _, _ int) ([]models.Product, error) {
	s.gotQuery = query
	return s.products, s.err
}

func (s *stubCatalog) CreateStore(_ context.Context, input catalog.StoreInput) (*models.Store, error) {
	return s.store, s.err
}

func (s *stubCatalog) GetStoreByCode(_ context.Context, code string) (*models.Store, error) {
	return s.store, s.err
}

func (s *stubCatalog) ListStores(context.Context) ([]models.Store, error) {
	if s.store == nil {
		return nil, s.err
	}
	return []models.Store{*s.store}, s.err
}

func sampleProduct() *models.Product {
	return &models.Product{ID: uuid.New(), JAN: testJAN, Name: "Green tea", Price: decimal.NewFromInt(150), TaxRate: 8}
}

func TestItemLookupByJAN(t *testing.T) {
	svc := &stubCatalog{product: sampleProduct()}
	rec := httptest.NewRecorder()
	ItemLookup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?jan="+testJAN, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotJAN != testJAN {
		t.Fatalf("expected lookup of %s got %q", testJAN, svc.gotJAN)
	}
	var item struct {
		JAN     string `json:"jan"`
		TaxRate int    `json:"tax_rate"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.JAN != testJAN || item.TaxRate != 8 {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestItemLookupNotFound(t *testing.T) {
	svc := &stubCatalog{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	rec := httptest.NewRecorder()
	ItemLookup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?jan="+testJAN, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestItemLookupListsWithQuery(t *testing.T) {
	svc := &stubCatalog{products: []models.Product{*sampleProduct()}}
	rec := httptest.NewRecorder()
	ItemLookup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?q=tea&limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotQuery != "tea" {
		t.Fatalf("expected query tea got %q", svc.gotQuery)
	}
	var items []map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item got %d", len(items))
	}
}

func TestItemCreateValidatesBody(t *testing.T) {
	svc := &stubCatalog{product: sampleProduct()}

	rec := httptest.NewRecorder()
	ItemCreate(svc, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/items", `{"jan":"4901234567890","name":"Tea","price":"150","tax_rate":8}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad check digit got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ItemCreate(svc, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/items", `{"jan":"`+testJAN+`","name":"Tea","price":"150","tax_rate":8}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if !svc.gotInput.Price.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected price %s", svc.gotInput.Price)
	}
}

func TestItemUpdateUsesPathJAN(t *testing.T) {
	svc := &stubCatalog{product: sampleProduct()}
	req := withURLParam(jsonRequest(http.MethodPatch, "/api/v1/items/"+testJAN, `{"tax_rate":10}`), "jan", testJAN)
	rec := httptest.NewRecorder()
	ItemUpdate(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotJAN != testJAN || svc.gotUpdate.TaxRate == nil || *svc.gotUpdate.TaxRate != 10 {
		t.Fatalf("unexpected update %q %+v", svc.gotJAN, svc.gotUpdate)
	}
}

func TestStoreCreateRejectsNonNumericCode(t *testing.T) {
	svc := &stubCatalog{store: &models.Store{ID: uuid.New(), Code: "12", Name: "Shibuya"}}

	rec := httptest.NewRecorder()
	StoreCreate(svc, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/stores", `{"code":"A1","name":"Shibuya"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	StoreCreate(svc, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/stores", `{"code":"12","name":"Shibuya"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
}

type stubStock struct {
	rows      []models.StockEntry
	filter    stock.Filter
	selection stock.Selection
	quantity  int
	err       error
}

func (s *stubStock) List(_ context.Context, filter stock.Filter) ([]models.StockEntry, error) {
	s.filter = filter
	return s.rows, s.err
}

func (s *stubStock) Regenerate(_ context.Context, sel stock.Selection) (stock.BulkResult, error) {
	s.selection = sel
	return stock.BulkResult{Affected: 4, Batches: 1}, s.err
}

func (s *stubStock) AddQuantity(_ context.Context, sel stock.Selection, n int) (stock.BulkResult, error) {
	s.selection = sel
	s.quantity = n
	return stock.BulkResult{Affected: 2, Batches: 1}, s.err
}

func (s *stubStock) Reset(_ context.Context, sel stock.Selection) (stock.BulkResult, error) {
	s.selection = sel
	return stock.BulkResult{Affected: 2, Batches: 1}, s.err
}

func TestStockLookupPassesFilters(t *testing.T) {
	svc := &stubStock{rows: []models.StockEntry{{
		Quantity: -2,
		Store:    &models.Store{Code: "3"},
		Product:  &models.Product{JAN: testJAN, Name: "Green tea"},
	}}}
	rec := httptest.NewRecorder()
	StockLookup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stocks?jan="+testJAN+"&storecode=3&negative=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.filter.JAN != testJAN || svc.filter.StoreCode != "3" || !svc.filter.NegativeOnly {
		t.Fatalf("unexpected filter %+v", svc.filter)
	}
	var rows []struct {
		StoreCode string `json:"store_code"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].StoreCode != "3" || rows[0].Quantity != -2 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestAdminStockAddDefaultsToEmptySelection(t *testing.T) {
	svc := &stubStock{}
	rec := httptest.NewRecorder()
	AdminStockAdd(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/stocks/add", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(svc.selection.StoreCodes) != 0 || svc.quantity != 0 {
		t.Fatalf("unexpected selection %+v quantity %d", svc.selection, svc.quantity)
	}

	rec = httptest.NewRecorder()
	AdminStockAdd(svc, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/admin/stocks/add", `{"store_codes":["3"],"quantity":5}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.quantity != 5 || svc.selection.StoreCodes[0] != "3" {
		t.Fatalf("unexpected selection %+v quantity %d", svc.selection, svc.quantity)
	}
}

type stubCoupons struct {
	coupon  *models.Coupon
	input   coupons.CreateInput
	deleted int64
	err     error
}

func (s *stubCoupons) Create(_ context.Context, input coupons.CreateInput) (*models.Coupon, error) {
	s.input = input
	return s.coupon, s.err
}

func (s *stubCoupons) Get(context.Context, string) (*models.Coupon, error) { return s.coupon, s.err }

func (s *stubCoupons) List(context.Context, bool) ([]models.Coupon, error) {
	return []models.Coupon{*s.coupon}, s.err
}

func (s *stubCoupons) PurgeExpired(context.Context, time.Time) (int64, error) {
	return s.deleted, s.err
}

func TestCouponCreateReturnsCode(t *testing.T) {
	svc := &stubCoupons{coupon: &models.Coupon{
		Code:          "2804000000012",
		Type:          enums.CouponTypeProduct,
		DiscountValue: decimal.NewFromInt(50),
		TargetProduct: sampleProduct(),
	}}
	body := `{"type":"product","expires_at":"2030-01-01T00:00:00Z","discount_value":"50","target_jan":"` + testJAN + `"}`
	rec := httptest.NewRecorder()
	CouponCreate(svc, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/coupons", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var coupon struct {
		Code      string `json:"code"`
		TargetJAN string `json:"target_jan"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &coupon); err != nil {
		t.Fatalf("decode coupon: %v", err)
	}
	if coupon.Code != "2804000000012" || coupon.TargetJAN != testJAN {
		t.Fatalf("unexpected coupon %+v", coupon)
	}
	if svc.input.TargetJAN != testJAN {
		t.Fatalf("target not forwarded: %+v", svc.input)
	}
}

func TestAdminCouponPurge(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminCouponPurge(&stubCoupons{deleted: 3}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons/purge", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"deleted":3`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

type stubSales struct {
	result    *sales.SaleResult
	txn       *models.Transaction
	page      *sales.ListResult
	params    sales.ListParams
	input     sales.SaleInput
	reprinted string
	err       error
}

func (s *stubSales) Create(_ context.Context, input sales.SaleInput) (*sales.SaleResult, error) {
	s.input = input
	return s.result, s.err
}

func (s *stubSales) Get(context.Context, string) (*models.Transaction, error) { return s.txn, s.err }

func (s *stubSales) List(_ context.Context, params sales.ListParams) (*sales.ListResult, error) {
	s.params = params
	return s.page, s.err
}

func (s *stubSales) Reprint(_ context.Context, saleID string) error {
	s.reprinted = saleID
	return s.err
}

func sampleTransaction() *models.Transaction {
	return &models.Transaction{
		SaleID:      "K3T9QX0A2B",
		Type:        enums.TransactionTypeSale,
		Store:       &models.Store{Code: "3"},
		StaffCode:   7,
		Deposit:     decimal.NewFromInt(1000),
		TotalAmount: decimal.NewFromInt(150),
		Change:      decimal.NewFromInt(850),
		Lines: []models.SaleLineItem{{
			JAN: testJAN, Name: "Green tea", Price: decimal.NewFromInt(150), TaxRate: 8, Quantity: 1,
		}},
	}
}

const saleBody = `{"store_code":"3","staff_code":7,"deposit":"1000","items":[{"jan":"` + testJAN + `","quantity":1}]}`

func TestTransactionCreate(t *testing.T) {
	svc := &stubSales{result: &sales.SaleResult{Transaction: sampleTransaction()}}
	rec := httptest.NewRecorder()
	TransactionCreate(svc, logger.Nop()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/transactions", saleBody))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if len(env.Warnings) != 0 {
		t.Fatalf("unexpected warnings %+v", env.Warnings)
	}
	var txn struct {
		SaleID string `json:"sale_id"`
		Change string `json:"change"`
		Items  []any  `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &txn); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if txn.SaleID != "K3T9QX0A2B" || txn.Change != "850" || len(txn.Items) != 1 {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if svc.input.StoreCode != "3" || len(svc.input.Lines) != 1 {
		t.Fatalf("unexpected input %+v", svc.input)
	}
}

func TestTransactionCreateReceiptFailureIsWarning(t *testing.T) {
	svc := &stubSales{result: &sales.SaleResult{
		Transaction: sampleTransaction(),
		ReceiptErr:  pkgerrors.Wrap(pkgerrors.CodeExternalService, errors.New("printer offline"), "receipt printer unavailable"),
	}}
	rec := httptest.NewRecorder()
	TransactionCreate(svc, logger.Nop()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/transactions", saleBody))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if len(env.Warnings) != 1 || env.Warnings[0].Code != string(pkgerrors.CodeExternalService) {
		t.Fatalf("expected receipt warning, got %+v", env.Warnings)
	}
}

func TestTransactionCreateMapsServiceErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"short deposit": {pkgerrors.New(pkgerrors.CodeValidation, "deposit is less than the total"), http.StatusBadRequest},
		"unknown store": {pkgerrors.New(pkgerrors.CodeNotFound, "store not found"), http.StatusNotFound},
		"id collision":  {pkgerrors.New(pkgerrors.CodeConflict, "sale id collision"), http.StatusConflict},
		"database down": {pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("refused"), "db: insert"), http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			TransactionCreate(&stubSales{err: tc.err}, logger.Nop()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/transactions", saleBody))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestTransactionCreateRejectsEmptyBasket(t *testing.T) {
	rec := httptest.NewRecorder()
	TransactionCreate(&stubSales{}, logger.Nop()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/transactions", `{"store_code":"3","staff_code":7,"deposit":"0","items":[]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestTransactionLookupListsWithInclusiveRange(t *testing.T) {
	svc := &stubSales{page: &sales.ListResult{Items: []models.Transaction{*sampleTransaction()}, Cursor: "next"}}
	rec := httptest.NewRecorder()
	TransactionLookup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?storecode=3&from=2024-06-01&to=2024-06-01&limit=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.params.From == nil || svc.params.To == nil || svc.params.To.Sub(*svc.params.From) != 24*time.Hour {
		t.Fatalf("unexpected range %+v", svc.params)
	}
	if svc.params.Limit != 10 || svc.params.StoreCode != "3" {
		t.Fatalf("unexpected params %+v", svc.params)
	}
	var page struct {
		Items      []any  `json:"items"`
		NextCursor string `json:"next_cursor"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestTransactionLookupRejectsInvertedRange(t *testing.T) {
	rec := httptest.NewRecorder()
	TransactionLookup(&stubSales{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?from=2024-06-02&to=2024-06-01", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestTransactionReceiptReprints(t *testing.T) {
	svc := &stubSales{}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/transactions/K3T9QX0A2B/receipt", nil), "saleID", "K3T9QX0A2B")
	rec := httptest.NewRecorder()
	TransactionReceipt(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.reprinted != "K3T9QX0A2B" {
		t.Fatalf("unexpected reprint %q", svc.reprinted)
	}
}

type stubReturns struct {
	result *returns.ReturnResult
	ret    *models.ReturnTransaction
	input  returns.ReturnInput
	err    error
}

func (s *stubReturns) Create(_ context.Context, input returns.ReturnInput) (*returns.ReturnResult, error) {
	s.input = input
	return s.result, s.err
}

func (s *stubReturns) Get(context.Context, string) (*models.ReturnTransaction, error) {
	return s.ret, s.err
}

func sampleReturn() *models.ReturnTransaction {
	return &models.ReturnTransaction{
		ReturnID:     "R8X2M4K0Q1",
		ReturnType:   enums.ReturnTypeFull,
		Reason:       enums.ReturnReasonCustomer,
		Origin:       sampleTransaction(),
		Store:        &models.Store{Code: "3"},
		ReturnAmount: decimal.NewFromInt(150),
	}
}

func TestReturnCreate(t *testing.T) {
	svc := &stubReturns{result: &returns.ReturnResult{Return: sampleReturn()}}
	rec := httptest.NewRecorder()
	ReturnCreate(svc, logger.Nop()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/returntransactions", `{"sale_id":"K3T9QX0A2B","return_type":"full"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.input.OriginSaleID != "K3T9QX0A2B" || svc.input.ReturnType != enums.ReturnTypeFull {
		t.Fatalf("unexpected input %+v", svc.input)
	}
	var ret struct {
		ReturnID string `json:"return_id"`
		SaleID   string `json:"sale_id"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &ret); err != nil {
		t.Fatalf("decode return: %v", err)
	}
	if ret.ReturnID != "R8X2M4K0Q1" || ret.SaleID != "K3T9QX0A2B" {
		t.Fatalf("unexpected return %+v", ret)
	}
}

func TestReturnLookupRequiresID(t *testing.T) {
	rec := httptest.NewRecorder()
	ReturnLookup(&stubReturns{ret: sampleReturn()}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/returntransactions", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ReturnLookup(&stubReturns{ret: sampleReturn()}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/returntransactions?return_id=R8X2M4K0Q1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

type stubReports struct {
	params reports.SummaryParams
	err    error
}

func (s *stubReports) SaleSummary(_ context.Context, params reports.SummaryParams) (*reports.Summary, error) {
	s.params = params
	return &reports.Summary{}, s.err
}

func TestSalesSummaryForwardsFilters(t *testing.T) {
	svc := &stubReports{}
	rec := httptest.NewRecorder()
	SalesSummary(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales-summary?storecode=3&from=2024-06-01&to=2024-06-30", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.params != (reports.SummaryParams{StoreCode: "3", From: "2024-06-01", To: "2024-06-30"}) {
		t.Fatalf("unexpected params %+v", svc.params)
	}
}

type stubHistory struct {
	entity enums.ChangeEntity
	id     string
}

func (s *stubHistory) History(_ context.Context, entity enums.ChangeEntity, entityID string) ([]models.ChangeLogEntry, error) {
	s.entity = entity
	s.id = entityID
	return []models.ChangeLogEntry{{EntityType: entity, EntityID: entityID, Revision: 1, Action: enums.ChangeActionCreated, Snapshot: json.RawMessage(`{}`)}}, nil
}

func TestChangeHistory(t *testing.T) {
	svc := &stubHistory{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/product/"+testJAN, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("entity", "product")
	rctx.URLParams.Add("entityID", testJAN)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	ChangeHistory(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.entity != enums.ChangeEntityProduct || svc.id != testJAN {
		t.Fatalf("unexpected lookup %s %s", svc.entity, svc.id)
	}

	rec = httptest.NewRecorder()
	ChangeHistory(svc, nil).ServeHTTP(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/history/user/1", nil), "entity", "user"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "test"

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, Dependency{Name: "db", Pinger: stubPinger{}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil,
		Dependency{Name: "db", Pinger: stubPinger{}},
		Dependency{Name: "redis", Pinger: stubPinger{err: errors.New("down")}},
	).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
