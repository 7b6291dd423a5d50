package receipts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Renderer lays out plain-text receipts for a fixed paper width.
type Renderer struct {
	ShopName string
	Width    int
	Location *time.Location
}

// NewRenderer returns a renderer; widths below 24 columns are raised to 24.
func NewRenderer(shopName string, width int) Renderer {
	if width < 24 {
		width = 24
	}
	if strings.TrimSpace(shopName) == "" {
		shopName = "POS"
	}
	return Renderer{ShopName: shopName, Width: width, Location: time.Local}
}

// Sale renders a committed sale.
func (r Renderer) Sale(tx *models.Transaction) string {
	var b strings.Builder
	r.header(&b, "RECEIPT", tx.SoldAt, storeCode(tx.Store))
	r.pair(&b, "Sale ID", tx.SaleID)
	r.pair(&b, "Staff", fmt.Sprintf("%d", tx.StaffCode))
	r.rule(&b)
	for _, line := range tx.Lines {
		r.line(&b, line.Name, line.JAN, line.TaxRate, line.Price, line.Quantity)
	}
	r.rule(&b)
	if !tx.DiscountAmount.IsZero() {
		label := "Discount"
		if tx.CouponCode != nil {
			label = "Coupon " + *tx.CouponCode
		}
		r.pair(&b, label, "-"+yen(tx.DiscountAmount))
	}
	r.pair(&b, "Total", yen(tx.TotalAmount))
	r.pair(&b, "  (10% tax)", yen2(tx.Tax10))
	r.pair(&b, "  (8% tax)", yen2(tx.Tax8))
	r.pair(&b, "Deposit", yen(tx.Deposit))
	r.pair(&b, "Change", yen(tx.Change))
	r.pair(&b, "Points", fmt.Sprintf("%d", tx.PurchasePoints))
	r.rule(&b)
	r.center(&b, "Thank you")
	return b.String()
}

// Return renders a committed return.
func (r Renderer) Return(ret *models.ReturnTransaction) string {
	var b strings.Builder
	r.header(&b, "RETURN", ret.ReturnedAt, storeCode(ret.Store))
	r.pair(&b, "Return ID", ret.ReturnID)
	if ret.Origin != nil {
		r.pair(&b, "Original sale", ret.Origin.SaleID)
	}
	r.pair(&b, "Type", string(ret.ReturnType))
	r.pair(&b, "Reason", string(ret.Reason))
	r.rule(&b)
	for _, line := range ret.Lines {
		r.line(&b, line.Name, line.JAN, line.TaxRate, line.Price, line.Quantity)
	}
	r.rule(&b)
	r.pair(&b, "Refund", yen(ret.ReturnAmount))
	r.pair(&b, "  (10% tax)", yen2(ret.Tax10))
	r.pair(&b, "  (8% tax)", yen2(ret.Tax8))
	r.pair(&b, "Points", fmt.Sprintf("-%d", ret.ReturnPoints))
	return b.String()
}

func (r Renderer) header(b *strings.Builder, title string, at time.Time, store string) {
	r.center(b, r.ShopName)
	r.center(b, title)
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	r.pair(b, at.In(loc).Format("2006-01-02 15:04"), "Store "+store)
	r.rule(b)
}

func (r Renderer) line(b *strings.Builder, name, jan string, rate int, price decimal.Decimal, qty int) {
	marker := ""
	if rate == 8 {
		marker = "*"
	}
	b.WriteString(truncate(marker+name, r.Width))
	b.WriteByte('\n')
	total := price.Mul(decimal.NewFromInt(int64(qty)))
	r.pair(b, fmt.Sprintf("  %s x%d @%s", jan, qty, yen(price)), yen(total))
}

func (r Renderer) pair(b *strings.Builder, left, right string) {
	gap := r.Width - width(left) - width(right)
	if gap < 1 {
		left = truncate(left, r.Width-width(right)-1)
		gap = 1
	}
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(right)
	b.WriteByte('\n')
}

func (r Renderer) center(b *strings.Builder, text string) {
	text = truncate(text, r.Width)
	pad := (r.Width - width(text)) / 2
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(text)
	b.WriteByte('\n')
}

func (r Renderer) rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", r.Width))
	b.WriteByte('\n')
}

func storeCode(store *models.Store) string {
	if store == nil {
		return "-"
	}
	return store.Code
}

func yen(d decimal.Decimal) string {
	return "¥" + d.StringFixed(0)
}

func yen2(d decimal.Decimal) string {
	return "¥" + d.StringFixed(2)
}

func width(s string) int {
	return utf8.RuneCountInString(s)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
