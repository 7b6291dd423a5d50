package receipts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

func sampleSale() *models.Transaction {
	coupon := "2804123456784"
	return &models.Transaction{
		SaleID:         "K3T9QX0A2B",
		Type:           enums.TransactionTypeSale,
		SoldAt:         time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC),
		Store:          &models.Store{Code: "1"},
		StaffCode:      42,
		Deposit:        decimal.NewFromInt(3000),
		PurchasePoints: 3,
		Tax10:          decimal.RequireFromString("200.00"),
		Tax8:           decimal.RequireFromString("8.00"),
		TaxAmount:      decimal.RequireFromString("208.00"),
		TotalAmount:    decimal.NewFromInt(2308),
		DiscountAmount: decimal.Zero,
		CouponCode:     &coupon,
		Change:         decimal.NewFromInt(692),
		Lines: []models.SaleLineItem{
			{JAN: "4006381333931", Name: "Notebook", Price: decimal.NewFromInt(1100), TaxRate: 10, Quantity: 2},
			{JAN: "4901234567894", Name: "Green tea", Price: decimal.NewFromInt(108), TaxRate: 8, Quantity: 1},
		},
	}
}

func TestRenderSale(t *testing.T) {
	r := NewRenderer("Corner Shop", 32)
	r.Location = time.UTC
	out := r.Sale(sampleSale())

	for _, want := range []string{"Corner Shop", "K3T9QX0A2B", "*Green tea", "¥2308", "¥200.00", "¥8.00", "¥692", "Store 1", "2024-04-01 09:30"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in receipt:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Coupon") {
		t.Errorf("zero discount is not printed:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if width(line) > 32 {
			t.Errorf("line wider than 32 columns: %q", line)
		}
	}
}

func TestRenderReturn(t *testing.T) {
	r := NewRenderer("", 10)
	if r.Width != 24 {
		t.Fatalf("expected width clamped to 24, got %d", r.Width)
	}
	out := r.Return(&models.ReturnTransaction{
		ReturnID:     "R7Q2M0XZ1A",
		Origin:       &models.Transaction{SaleID: "K3T9QX0A2B"},
		ReturnType:   enums.ReturnTypeFull,
		Reason:       enums.ReturnReasonCustomer,
		ReturnAmount: decimal.NewFromInt(108),
		Tax8:         decimal.RequireFromString("8.00"),
		ReturnPoints: 1,
		Lines: []models.ReturnLineItem{
			{JAN: "4901234567894", Name: "Green tea", Price: decimal.NewFromInt(108), TaxRate: 8, Quantity: 1},
		},
	})
	for _, want := range []string{"RETURN", "K3T9QX0A2B", "¥108", "-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in receipt:\n%s", want, out)
		}
	}
}

func TestHTTPPrinterPostsPlainText(t *testing.T) {
	var captured *http.Request
	var body string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = string(data)
		return &http.Response{StatusCode: http.StatusAccepted, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	})

	printer, err := NewHTTPPrinter("http://printer.local/", time.Second, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new printer: %v", err)
	}
	if err := printer.Print(context.Background(), Document{Kind: KindSale, ID: "K3T9QX0A2B", Body: "hello"}); err != nil {
		t.Fatalf("print: %v", err)
	}

	if got := captured.URL.String(); got != "http://printer.local/receipts/sale" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := captured.Header.Get("X-Receipt-ID"); got != "K3T9QX0A2B" {
		t.Fatalf("unexpected receipt id header %q", got)
	}
	if ct := captured.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body != "hello" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHTTPPrinterMapsFailures(t *testing.T) {
	failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(strings.NewReader("paper jam")), Header: http.Header{}}, nil
	})
	printer, err := NewHTTPPrinter("http://printer.local", 0, WithHTTPClient(&http.Client{Transport: failing}))
	if err != nil {
		t.Fatalf("new printer: %v", err)
	}

	err = printer.Print(context.Background(), Document{Kind: KindReturn, ID: "R1"})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected pkgerrors.Error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeExternalService {
		t.Fatalf("expected code %s, got %s", pkgerrors.CodeExternalService, typed.Code())
	}
	want := map[string]any{"status": 503, "body": "paper jam"}
	if !reflect.DeepEqual(typed.Details(), want) {
		t.Fatalf("expected details %v, got %v", want, typed.Details())
	}

	unreachable := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	printer, err = NewHTTPPrinter("http://printer.local", 0, WithHTTPClient(&http.Client{Transport: unreachable}))
	if err != nil {
		t.Fatalf("new printer: %v", err)
	}
	if err := printer.Print(context.Background(), Document{Kind: KindSale, ID: "S1"}); !pkgerrors.IsCode(err, pkgerrors.CodeExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}

	if _, err := NewHTTPPrinter("  ", time.Second); err == nil {
		t.Fatal("expected error for blank printer url")
	}
}

type countingMetrics struct{ kinds []string }

func (c *countingMetrics) IncReceiptFailure(kind string) { c.kinds = append(c.kinds, kind) }

type stubPrinter struct{ err error }

func (s stubPrinter) Print(context.Context, Document) error { return s.err }

func TestServiceWrapsPrinterErrors(t *testing.T) {
	metrics := &countingMetrics{}
	svc := NewService(NewRenderer("Shop", 32), stubPrinter{err: errors.New("offline")}, metrics, nil)

	if err := svc.DeliverSale(context.Background(), sampleSale()); !pkgerrors.IsCode(err, pkgerrors.CodeExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if len(metrics.kinds) != 1 || metrics.kinds[0] != KindSale {
		t.Fatalf("expected one sale failure, got %v", metrics.kinds)
	}

	ok := NewService(NewRenderer("Shop", 32), nil, metrics, nil)
	if err := ok.DeliverReturn(context.Background(), &models.ReturnTransaction{ReturnID: "R1"}); err != nil {
		t.Fatalf("deliver with nop printer: %v", err)
	}
	if len(metrics.kinds) != 1 {
		t.Fatalf("nop printer must not count failures, got %v", metrics.kinds)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
