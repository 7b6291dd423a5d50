package changelog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:changelog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ChangeLogEntry{}))
	return db
}

func TestRecordAssignsIncreasingRevisions(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	ctx := WithActor(context.Background(), "register-01")
	for i, qty := range []int{0, -2, 5} {
		row, err := svc.Record(ctx, db, Entry{
			Entity:   enums.ChangeEntityStock,
			EntityID: "stock-1",
			Action:   enums.ChangeActionUpdated,
			Snapshot: map[string]int{"quantity": qty},
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, row.Revision)
		assert.Equal(t, "register-01", row.Actor)
	}

	other, err := svc.Record(context.Background(), db, Entry{
		Entity:   enums.ChangeEntityStock,
		EntityID: "stock-2",
		Action:   enums.ChangeActionCreated,
		Snapshot: map[string]int{"quantity": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, other.Revision)
	assert.Equal(t, "system", other.Actor)

	history, err := svc.History(context.Background(), enums.ChangeEntityStock, "stock-1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	var last map[string]int
	require.NoError(t, json.Unmarshal(history[2].Snapshot, &last))
	assert.Equal(t, 5, last["quantity"])
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_ = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Record(context.Background(), tx, Entry{
			Entity:   enums.ChangeEntityProduct,
			EntityID: "4901234567894",
			Action:   enums.ChangeActionCreated,
			Snapshot: map[string]string{"name": "tea"},
		})
		require.NoError(t, err)
		return assert.AnError
	})

	history, err := svc.History(context.Background(), enums.ChangeEntityProduct, "4901234567894")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordValidation(t *testing.T) {
	svc, err := NewService(NewRepository(newTestDB(t)))
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), nil, Entry{Entity: enums.ChangeEntityStore, EntityID: "1", Action: enums.ChangeActionCreated})
	assert.Error(t, err)

	_, err = NewService(nil)
	assert.Error(t, err)
}
