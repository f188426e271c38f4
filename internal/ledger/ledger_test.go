package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/storage"
)

func TestLedger_GetEmptyPortfolio(t *testing.T) {
	ldg := New(storage.NewMemoryStore())

	portfolio, err := ldg.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", portfolio.UserID)
	assert.Empty(t, portfolio.Holdings)
	assert.Zero(t, portfolio.TotalValue)
}

func TestLedger_WeightedAverageCost(t *testing.T) {
	ldg := New(storage.NewMemoryStore())
	ctx := context.Background()

	_, err := ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t1", Symbol: "AAPL", Quantity: 10, Price: 100})
	require.NoError(t, err)

	portfolio, err := ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t2", Symbol: "AAPL", Quantity: 10, Price: 200})
	require.NoError(t, err)

	holding := portfolio.Holdings["AAPL"]
	assert.Equal(t, 20.0, holding.Quantity)
	assert.InDelta(t, 150.0, holding.AverageCost, 0.0001)
	assert.InDelta(t, 3000.0, portfolio.TotalValue, 0.0001)
}

func TestLedger_DuplicateFillIsAbsorbedOnce(t *testing.T) {
	ldg := New(storage.NewMemoryStore())
	ctx := context.Background()

	fill := Fill{TransactionID: "t1", Symbol: "AAPL", Quantity: 10, Price: 100}
	_, err := ldg.ApplyBuy(ctx, "u1", fill)
	require.NoError(t, err)

	// Replays of the same fill change nothing, however often retried.
	for i := 0; i < 5; i++ {
		portfolio, err := ldg.ApplyBuy(ctx, "u1", fill)
		require.NoError(t, err)
		assert.Equal(t, 10.0, portfolio.Holdings["AAPL"].Quantity)
		assert.InDelta(t, 100.0, portfolio.Holdings["AAPL"].AverageCost, 0.0001)
	}
}

func TestLedger_ConcurrentSameSymbolBuys(t *testing.T) {
	ldg := New(storage.NewMemoryStore())
	ctx := context.Background()

	const buyers = 20
	var wg sync.WaitGroup
	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := ldg.ApplyBuy(ctx, "u1", Fill{
				TransactionID: fmt.Sprintf("t%d", i),
				Symbol:        "AAPL",
				Quantity:      10,
				Price:         150,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	portfolio, err := ldg.Get(ctx, "u1")
	require.NoError(t, err)
	holding := portfolio.Holdings["AAPL"]
	assert.Equal(t, float64(buyers*10), holding.Quantity)
	assert.InDelta(t, 150.0, holding.AverageCost, 0.0001)
}

func TestLedger_MultipleSymbols(t *testing.T) {
	ldg := New(storage.NewMemoryStore())
	ctx := context.Background()

	_, err := ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t1", Symbol: "AAPL", Quantity: 10, Price: 100})
	require.NoError(t, err)
	portfolio, err := ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t2", Symbol: "MSFT", Quantity: 5, Price: 300})
	require.NoError(t, err)

	assert.Len(t, portfolio.Holdings, 2)
	assert.InDelta(t, 10*100+5*300, portfolio.TotalValue, 0.0001)

	list := portfolio.HoldingsList()
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Symbol)
	assert.Equal(t, "MSFT", list[1].Symbol)
}

func TestLedger_UsersAreIsolated(t *testing.T) {
	ldg := New(storage.NewMemoryStore())
	ctx := context.Background()

	_, err := ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t1", Symbol: "AAPL", Quantity: 10, Price: 100})
	require.NoError(t, err)

	portfolio, err := ldg.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, portfolio.Holdings)
}

func TestLedger_RejectsInvalidFills(t *testing.T) {
	ldg := New(storage.NewMemoryStore())
	ctx := context.Background()

	_, err := ldg.ApplyBuy(ctx, "u1", Fill{Symbol: "AAPL", Quantity: 10, Price: 100})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t1", Symbol: "AAPL", Quantity: 0, Price: 100})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = ldg.ApplyBuy(ctx, "u1", Fill{TransactionID: "t1", Symbol: "AAPL", Quantity: 10, Price: -1})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))
}
