// Package dbtest opens migrated in-memory sqlite databases for package tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Open returns a client over a fresh, fully migrated in-memory database.
func Open(t *testing.T) *db.Client {
	t.Helper()
	dsn := "file:pos_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	client := db.NewFromGorm(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// MustCreateStore inserts a store with the given numeric code.
func MustCreateStore(t *testing.T, conn *gorm.DB, code string) *models.Store {
	t.Helper()
	store := &models.Store{Code: code, Name: "Store " + code}
	require.NoError(t, conn.Create(store).Error)
	return store
}

// MustCreateProduct inserts a product priced at price yen, tax included.
func MustCreateProduct(t *testing.T, conn *gorm.DB, jan, name string, price int64, taxRate int) *models.Product {
	t.Helper()
	product := &models.Product{
		JAN:     jan,
		Name:    name,
		Price:   decimal.NewFromInt(price),
		TaxRate: taxRate,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

// MustCreateStock inserts a stock entry with the given quantity.
func MustCreateStock(t *testing.T, conn *gorm.DB, storeID, productID uuid.UUID, qty int) *models.StockEntry {
	t.Helper()
	entry := &models.StockEntry{StoreID: storeID, ProductID: productID, Quantity: qty}
	require.NoError(t, conn.Create(entry).Error)
	return entry
}

// Quantity reads the current stock level for a pair.
func Quantity(t *testing.T, conn *gorm.DB, storeID, productID uuid.UUID) int {
	t.Helper()
	var entry models.StockEntry
	require.NoError(t, conn.Where("store_id = ? AND product_id = ?", storeID, productID).First(&entry).Error)
	return entry.Quantity
}
