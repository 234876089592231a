package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/idempotency/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (domain.Ledger, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	db.Exec(`CREATE TABLE IF NOT EXISTS idempotency_records (
		key TEXT PRIMARY KEY,
		command_type TEXT NOT NULL,
		product_id TEXT NOT NULL,
		result TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return ProvideGorm(db, fakeClock), fakeClock
}

func newRecord(key, productID string, now time.Time, ttl time.Duration) *domain.Record {
	return &domain.Record{
		Key:         key,
		CommandType: "update",
		ProductID:   productID,
		Result:      datatypes.JSON(`{"product_id":"` + productID + `","version":2}`),
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
}

func TestRecordAndLookup(t *testing.T) {
	ledger, clk := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, newRecord("k1", "100", clk.Now(), time.Hour)))

	rec, err := ledger.Lookup(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "100", rec.ProductID)
	assert.Equal(t, "update", rec.CommandType)

	t.Run("unknown key misses", func(t *testing.T) {
		rec, err := ledger.Lookup(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestFirstWriterWins(t *testing.T) {
	ledger, clk := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, newRecord("k1", "100", clk.Now(), time.Hour)))
	require.NoError(t, ledger.Record(ctx, newRecord("k1", "200", clk.Now(), time.Hour)))

	rec, err := ledger.Lookup(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "100", rec.ProductID)
}

func TestExpiry(t *testing.T) {
	ledger, clk := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, newRecord("k1", "100", clk.Now(), time.Hour)))
	clk.Advance(2 * time.Hour)

	t.Run("expired keys miss", func(t *testing.T) {
		rec, err := ledger.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("expired rows are reclaimed", func(t *testing.T) {
		require.NoError(t, ledger.Record(ctx, newRecord("k1", "200", clk.Now(), time.Hour)))

		rec, err := ledger.Lookup(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "200", rec.ProductID)
	})
}

func TestDeleteExpired(t *testing.T) {
	ledger, clk := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, newRecord("old-1", "100", clk.Now(), time.Minute)))
	require.NoError(t, ledger.Record(ctx, newRecord("old-2", "200", clk.Now(), time.Minute)))
	require.NoError(t, ledger.Record(ctx, newRecord("live", "300", clk.Now(), time.Hour)))

	clk.Advance(10 * time.Minute)

	purged, err := ledger.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	rec, err := ledger.Lookup(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}
