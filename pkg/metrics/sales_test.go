package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestSalesMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSalesMetrics(reg)
	m.ObserveSale("1", decimal.NewFromInt(2308))
	m.ObserveSale("1", decimal.NewFromInt(500))
	m.ObserveReturn("1", "full")
	m.IncReceiptFailure("sale")
	m.SetNegativeStock(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	if sales, err := fetchCounterValue(mfs, "pos_sales_total", "store", "1"); err != nil || sales != 2 {
		t.Fatalf("expected 2 sales, got %v (%v)", sales, err)
	}
	if returns, err := fetchCounterValue(mfs, "pos_returns_total", "type", "full"); err != nil || returns != 1 {
		t.Fatalf("expected 1 return, got %v (%v)", returns, err)
	}
	if sum, err := fetchHistogramSum(mfs, "pos_sale_amount_yen", "store", "1"); err != nil || sum != 2808 {
		t.Fatalf("expected amount sum 2808, got %v (%v)", sum, err)
	}

	gauge := findMetricFamily(mfs, "pos_negative_stock_entries")
	if gauge == nil {
		t.Fatal("negative stock gauge not exported")
	}
	if v := gauge.GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Fatalf("expected gauge 3, got %v", v)
	}
}

func TestNilSalesMetricsIsNoop(t *testing.T) {
	var m *SalesMetrics
	m.ObserveSale("1", decimal.NewFromInt(1))
	m.ObserveReturn("1", "partial")
	m.IncReceiptFailure("return")
	m.SetNegativeStock(1)

	NewSalesMetrics(nil).ObserveSale("", decimal.Zero)
}
