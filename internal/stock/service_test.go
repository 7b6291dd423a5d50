package stock

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

func newTestService(t *testing.T) (Service, *db.Client, changelog.Recorder) {
	t.Helper()
	client := dbtest.Open(t)
	recorder, err := changelog.NewService(changelog.NewRepository(client.DB()))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), recorder, client, logger.Nop())
	require.NoError(t, err)
	return svc, client, recorder
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestDecrementAllowsNegativeStock(t *testing.T) {
	svc, client, recorder := newTestService(t)
	conn := client.DB()
	store := dbtest.MustCreateStore(t, conn, "1")
	product := dbtest.MustCreateProduct(t, conn, "4901234567894", "Tea", 120, 8)
	entry := dbtest.MustCreateStock(t, conn, store.ID, product.ID, 1)

	ctx := context.Background()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := svc.Decrement(ctx, tx, store.ID, product.ID, 3)
		if err != nil {
			return err
		}
		assert.Equal(t, -2, updated.Quantity)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, -2, dbtest.Quantity(t, conn, store.ID, product.ID))

	history, err := recorder.History(ctx, enums.ChangeEntityStock, entry.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.ChangeActionUpdated, history[0].Action)
}

func TestAdjustMissingEntryIsNotFound(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.Increment(ctx, tx, uuid.New(), uuid.New(), 1)
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Decrement(ctx, client.DB(), uuid.New(), uuid.New(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFailedUnitOfWorkLeavesStockUntouched(t *testing.T) {
	svc, client, _ := newTestService(t)
	conn := client.DB()
	store := dbtest.MustCreateStore(t, conn, "1")
	product := dbtest.MustCreateProduct(t, conn, "4901234567894", "Tea", 120, 8)
	dbtest.MustCreateStock(t, conn, store.ID, product.ID, 5)

	ctx := context.Background()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := svc.Decrement(ctx, tx, store.ID, product.ID, 2); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "tendered amount is insufficient")
	})
	require.Error(t, err)
	assert.Equal(t, 5, dbtest.Quantity(t, conn, store.ID, product.ID))
}

func TestSyncCreatesMissingEntriesOnce(t *testing.T) {
	svc, client, _ := newTestService(t)
	conn := client.DB()
	ctx := context.Background()

	p1 := dbtest.MustCreateProduct(t, conn, "4901234567894", "Tea", 120, 8)
	p2 := dbtest.MustCreateProduct(t, conn, "4006381333931", "Pen", 200, 10)
	store := dbtest.MustCreateStore(t, conn, "7")
	dbtest.MustCreateStock(t, conn, store.ID, p1.ID, 4)

	var created int
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = svc.SyncStore(ctx, tx, store.ID)
		return err
	}))
	assert.Equal(t, 1, created)
	assert.Equal(t, 4, dbtest.Quantity(t, conn, store.ID, p1.ID))
	assert.Equal(t, 0, dbtest.Quantity(t, conn, store.ID, p2.ID))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = svc.SyncProduct(ctx, tx, p2.ID)
		return err
	}))
	assert.Zero(t, created)

	var count int64
	require.NoError(t, conn.Model(&models.StockEntry{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc, client, _ := newTestService(t)
	conn := client.DB()
	ctx := context.Background()
	store := dbtest.MustCreateStore(t, conn, "1")
	product := dbtest.MustCreateProduct(t, conn, "4901234567894", "Tea", 120, 8)

	var first, second *models.StockEntry
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if first, err = svc.Ensure(ctx, tx, store.ID, product.ID); err != nil {
			return err
		}
		second, err = svc.Ensure(ctx, tx, store.ID, product.ID)
		return err
	}))
	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, second.Quantity)
}

func TestBulkOperationsBatchAcrossStores(t *testing.T) {
	svc, client, _ := newTestService(t)
	conn := client.DB()
	ctx := context.Background()

	product := dbtest.MustCreateProduct(t, conn, "4901234567894", "Tea", 120, 8)
	other := dbtest.MustCreateProduct(t, conn, "4006381333931", "Pen", 200, 10)
	for i := 1; i <= 60; i++ {
		dbtest.MustCreateStore(t, conn, strconv.Itoa(i))
	}

	result, err := svc.Regenerate(ctx, Selection{JANs: []string{product.JAN}})
	require.NoError(t, err)
	assert.Equal(t, 60, result.Affected)
	assert.Equal(t, 2, result.Batches)

	result, err = svc.AddQuantity(ctx, Selection{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 60, result.Affected)

	rows, err := svc.List(ctx, Filter{JAN: product.JAN})
	require.NoError(t, err)
	require.Len(t, rows, 60)
	for _, row := range rows {
		assert.Equal(t, DefaultRestock, row.Quantity)
		require.NotNil(t, row.Store)
		require.NotNil(t, row.Product)
	}

	otherRows, err := svc.List(ctx, Filter{JAN: other.JAN})
	require.NoError(t, err)
	assert.Empty(t, otherRows)

	result, err = svc.Reset(ctx, Selection{StoreCodes: []string{"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Affected)

	rows, err = svc.List(ctx, Filter{StoreCode: "1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].Quantity)
}

func TestListNegativeOnly(t *testing.T) {
	svc, client, _ := newTestService(t)
	conn := client.DB()
	ctx := context.Background()
	store := dbtest.MustCreateStore(t, conn, "1")
	p1 := dbtest.MustCreateProduct(t, conn, "4901234567894", "Tea", 120, 8)
	p2 := dbtest.MustCreateProduct(t, conn, "4006381333931", "Pen", 200, 10)
	dbtest.MustCreateStock(t, conn, store.ID, p1.ID, -3)
	dbtest.MustCreateStock(t, conn, store.ID, p2.ID, 2)

	rows, err := svc.List(ctx, Filter{NegativeOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, p1.JAN, rows[0].Product.JAN)

	count, err := svc.CountNegative(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestChunk(t *testing.T) {
	pairs := make([]Pair, 101)
	chunks := chunk(pairs, BatchSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 50)
	assert.Len(t, chunks[2], 1)
	assert.Empty(t, chunk(nil, BatchSize))
}
