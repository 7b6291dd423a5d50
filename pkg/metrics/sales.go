package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SalesMetrics counts committed sales and returns, receipt delivery failures
// and the current number of negative stock rows.
type SalesMetrics struct {
	sales           *prometheus.CounterVec
	returns         *prometheus.CounterVec
	saleAmount      *prometheus.HistogramVec
	receiptFailures *prometheus.CounterVec
	negativeStock   prometheus.Gauge
}

// NewSalesMetrics registers the sales metrics on reg. A nil registerer yields
// a no-op recorder.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_total",
		Help: "Committed sale transactions.",
	}, []string{"store"})
	returns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_returns_total",
		Help: "Committed return transactions.",
	}, []string{"store", "type"})
	saleAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_sale_amount_yen",
		Help:    "Grand total of committed sales.",
		Buckets: []float64{100, 500, 1000, 3000, 5000, 10000, 30000, 100000},
	}, []string{"store"})
	receiptFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_receipt_failures_total",
		Help: "Receipts that could not be delivered to the printer service.",
	}, []string{"kind"})
	negativeStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_negative_stock_entries",
		Help: "Stock entries whose quantity is below zero.",
	})
	reg.MustRegister(sales, returns, saleAmount, receiptFailures, negativeStock)
	return &SalesMetrics{
		sales:           sales,
		returns:         returns,
		saleAmount:      saleAmount,
		receiptFailures: receiptFailures,
		negativeStock:   negativeStock,
	}
}

func (m *SalesMetrics) ObserveSale(storeCode string, total decimal.Decimal) {
	if m == nil || m.sales == nil {
		return
	}
	store := normalizeLabel(storeCode)
	m.sales.WithLabelValues(store).Inc()
	m.saleAmount.WithLabelValues(store).Observe(total.InexactFloat64())
}

func (m *SalesMetrics) ObserveReturn(storeCode, returnType string) {
	if m == nil || m.returns == nil {
		return
	}
	m.returns.WithLabelValues(normalizeLabel(storeCode), normalizeLabel(returnType)).Inc()
}

func (m *SalesMetrics) IncReceiptFailure(kind string) {
	if m == nil || m.receiptFailures == nil {
		return
	}
	m.receiptFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *SalesMetrics) SetNegativeStock(count int64) {
	if m == nil || m.negativeStock == nil {
		return
	}
	m.negativeStock.Set(float64(count))
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
