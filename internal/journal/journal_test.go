package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
	"github.com/Cryptoprojectsfun/stocktrade/internal/storage"
)

func TestJournal_RecordAssignsIDAndTimestamp(t *testing.T) {
	jnl := New(storage.NewMemoryStore())

	txn := &models.Transaction{
		UserID:    "u1",
		Symbol:    "AAPL",
		Quantity:  10,
		FillPrice: 150,
		Status:    models.TransactionSuccess,
	}
	require.NoError(t, jnl.Record(context.Background(), txn))

	assert.NotEqual(t, uuid.Nil, txn.ID)
	assert.False(t, txn.Timestamp.IsZero())
}

func TestJournal_RejectsPreassignedID(t *testing.T) {
	jnl := New(storage.NewMemoryStore())

	txn := &models.Transaction{ID: uuid.New(), UserID: "u1", Symbol: "AAPL"}
	err := jnl.Record(context.Background(), txn)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))
}

func TestJournal_Get(t *testing.T) {
	jnl := New(storage.NewMemoryStore())
	ctx := context.Background()

	txn := &models.Transaction{UserID: "u1", Symbol: "AAPL", Quantity: 10, Status: models.TransactionFailed, Reason: "VENDOR_UNAVAILABLE"}
	require.NoError(t, jnl.Record(ctx, txn))

	got, err := jnl.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, models.TransactionFailed, got.Status)
	assert.Equal(t, "VENDOR_UNAVAILABLE", got.Reason)
	assert.Zero(t, got.FillPrice)

	_, err = jnl.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestJournal_ListByUserPreservesOrder(t *testing.T) {
	jnl := New(storage.NewMemoryStore())
	ctx := context.Background()

	symbols := []string{"AAPL", "MSFT", "TSLA"}
	for _, symbol := range symbols {
		require.NoError(t, jnl.Record(ctx, &models.Transaction{
			UserID: "u1",
			Symbol: symbol,
			Status: models.TransactionSuccess,
		}))
	}
	require.NoError(t, jnl.Record(ctx, &models.Transaction{
		UserID: "u2",
		Symbol: "JPM",
		Status: models.TransactionSuccess,
	}))

	txns, err := jnl.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for i, symbol := range symbols {
		assert.Equal(t, symbol, txns[i].Symbol)
	}

	other, err := jnl.ListByUser(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJournal_RecordsBothOutcomes(t *testing.T) {
	jnl := New(storage.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, jnl.Record(ctx, &models.Transaction{
		UserID: "u1", Symbol: "AAPL", Quantity: 10, FillPrice: 150, Status: models.TransactionSuccess,
	}))
	require.NoError(t, jnl.Record(ctx, &models.Transaction{
		UserID: "u1", Symbol: "AAPL", Quantity: 10, Status: models.TransactionFailed, Reason: "ORDER_REJECTED",
	}))

	txns, err := jnl.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, models.TransactionSuccess, txns[0].Status)
	assert.Equal(t, models.TransactionFailed, txns[1].Status)
}
