package fills

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

func testFill(levelID string, price string) domain.FillRecord {
	return domain.FillRecord{
		ID:      uuid.New().String(),
		LevelID: levelID,
		Side:    domain.SideBuy,
		Price:   decimal.RequireFromString(price),
		Amount:  decimal.NewFromInt(10),
		Profit:  decimal.RequireFromString("-0.1"),
		At:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestWALStore_SaveAndReadBack(t *testing.T) {
	store := newTestStore(t)

	first := testFill("buy-0", "0.94")
	second := testFill("buy-1", "0.92")
	require.NoError(t, store.SaveFill(first))
	require.NoError(t, store.SaveFill(second))

	records, err := store.FillsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, first.ID, records[0].Fill.ID)
	assert.Equal(t, second.ID, records[1].Fill.ID)
	assert.True(t, records[0].Fill.Price.Equal(first.Price))
	assert.Equal(t, first.LevelID, records[0].Fill.LevelID)
	assert.True(t, records[0].Fill.Profit.Equal(first.Profit))
}

func TestWALStore_FillsAfterSkipsConsumed(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveFill(testFill("buy-0", "0.94")))
	require.NoError(t, store.SaveFill(testFill("buy-1", "0.92")))

	index := store.CurrentIndex()
	require.NoError(t, store.SaveFill(testFill("buy-2", "0.90")))

	records, err := store.FillsAfter(index)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "buy-2", records[0].Fill.LevelID)

	records, err = store.FillsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStore_RejectsFillWithoutID(t *testing.T) {
	store := newTestStore(t)

	fill := testFill("buy-0", "0.94")
	fill.ID = ""
	assert.Error(t, store.SaveFill(fill))
}

func TestWALStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	saved := testFill("sell-0", "1.08")
	require.NoError(t, store.SaveFill(saved))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.FillsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, saved.ID, records[0].Fill.ID)
}

func TestWALStore_UninitializedStore(t *testing.T) {
	var store *WALStore
	assert.Error(t, store.SaveFill(testFill("buy-0", "1")))
	_, err := store.FillsAfter(0)
	assert.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
}
