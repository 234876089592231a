package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	db.Exec(`CREATE TABLE IF NOT EXISTS products (
		id BIGINT PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		price_cents BIGINT NOT NULL,
		status TEXT NOT NULL,
		version BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS product_events (
		id TEXT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		version BIGINT NOT NULL,
		payload TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		UNIQUE (product_id, version)
	)`)
	return db
}

var testNode, _ = snowflake.NewNode(2)

func seedProduct(t *testing.T, db *gorm.DB, repo domain.Repository, sku string) domain.Product {
	t.Helper()
	now := time.Now().UTC()
	p, evt, err := domain.NewProduct(testNode.Generate(), sku, "Lamp", nil, 1999, now)
	require.NoError(t, err)
	require.NoError(t, repo.Append(context.Background(), db, &p, []domain.Event{evt}, 0))
	return p
}

func TestAppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	p := seedProduct(t, db, repo, "abc-123")

	loaded, err := repo.Load(ctx, db, p.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "ABC-123", loaded.SKU)
	assert.Equal(t, int64(1), loaded.Version)

	t.Run("unknown id yields nil", func(t *testing.T) {
		missing, err := repo.Load(ctx, db, testNode.Generate())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("find by sku", func(t *testing.T) {
		found, err := repo.FindBySKU(ctx, db, "ABC-123")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, p.ID, found.ID)

		none, err := repo.FindBySKU(ctx, db, "NOPE-1")
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestAppendDuplicateSKU(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	seedProduct(t, db, repo, "abc-123")

	now := time.Now().UTC()
	dup, evt, err := domain.NewProduct(testNode.Generate(), "ABC-123", "Other Lamp", nil, 999, now)
	require.NoError(t, err)

	err = repo.Append(ctx, db, &dup, []domain.Event{evt}, 0)
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)

	// the transaction rolled back: no orphan events remain
	events, err := repo.History(ctx, db, dup.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendVersionConflict(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	p := seedProduct(t, db, repo, "abc-123")
	now := time.Now().UTC()

	winner, evtA, err := p.Update("Winner", nil, 1, now)
	require.NoError(t, err)
	loser, evtB, err := p.Update("Loser", nil, 1, now)
	require.NoError(t, err)

	require.NoError(t, repo.Append(ctx, db, &winner, []domain.Event{*evtA}, 1))

	err = repo.Append(ctx, db, &loser, []domain.Event{*evtB}, 1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	loaded, err := repo.Load(ctx, db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Winner", loaded.Name)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestHistoryOrderedByVersion(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	p := seedProduct(t, db, repo, "abc-123")
	now := time.Now().UTC()

	next, evt, err := p.ChangePrice(2999, 1, false, domain.DefaultPriceChangeThresholdPercent, now)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, db, &next, []domain.Event{*evt}, 1))

	next2, evt2, err := next.Activate(2, now)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, db, &next2, []domain.Event{*evt2}, 2))

	events, err := repo.History(ctx, db, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, evt := range events {
		assert.Equal(t, int64(i+1), evt.Version)
	}
	assert.Equal(t, domain.EventProductCreated, events[0].EventType)
}

func TestLoadFallsBackToReplay(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	p := seedProduct(t, db, repo, "abc-123")
	now := time.Now().UTC()

	next, evt, err := p.Activate(1, now)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, db, &next, []domain.Event{*evt}, 1))

	// drop the snapshot row; the stream must still answer loads
	require.NoError(t, db.Exec(`DELETE FROM products WHERE id = ?`, p.ID.Int64()).Error)

	rebuilt, err := repo.Load(ctx, db, p.ID)
	require.NoError(t, err)
	require.NotNil(t, rebuilt)
	assert.Equal(t, domain.StatusActive, rebuilt.Status)
	assert.Equal(t, int64(2), rebuilt.Version)
	assert.Equal(t, "ABC-123", rebuilt.SKU)
}
