package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type capturedInsert struct {
	sql  string
	vars []interface{}
}

// DBに繋がずにINSERT文とバインド値だけ取り出す
func dryRunDB(t *testing.T) (*gorm.DB, *capturedInsert) {
	t.Helper()
	gdb, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=postgres dbname=storefront sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	captured := &capturedInsert{}
	err = gdb.Callback().Create().After("gorm:create").Register("test:capture", func(db *gorm.DB) {
		captured.sql = db.Statement.SQL.String()
		captured.vars = append([]interface{}(nil), db.Statement.Vars...)
	})
	require.NoError(t, err)
	return gdb, captured
}

func TestInventoryGormRepository_Create_WritesFalseFlags(t *testing.T) {
	gdb, ins := dryRunDB(t)
	r := NewInventoryGormRepository(gdb)

	err := r.Create(context.Background(), model.InventoryRecord{
		ProductID:      7,
		TrackQuantity:  false,
		AllowBackorder: false,
		UpdatedAt:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Contains(t, ins.sql, `"track_quantity"`)
	assert.Contains(t, ins.sql, `"allow_backorder"`)
	require.NotEmpty(t, ins.vars)
	assert.NotContains(t, ins.vars, true)
}
