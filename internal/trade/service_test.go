package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cryptoprojectsfun/stocktrade/internal/cache"
	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/journal"
	"github.com/Cryptoprojectsfun/stocktrade/internal/ledger"
	"github.com/Cryptoprojectsfun/stocktrade/internal/logger"
	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
	"github.com/Cryptoprojectsfun/stocktrade/internal/storage"
)

type fakeVendor struct {
	quote      *models.Quote
	quoteErr   error
	conf       *models.OrderConfirmation
	buyErr     error
	onBuy      func()
	quoteCalls int
	buyCalls   int
}

func (f *fakeVendor) ListStocks(ctx context.Context) ([]models.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return []models.Quote{*f.quote}, nil
}

func (f *fakeVendor) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	f.quoteCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeVendor) ExecuteBuy(ctx context.Context, symbol string, quantity, price float64) (*models.OrderConfirmation, error) {
	f.buyCalls++
	if f.onBuy != nil {
		f.onBuy()
	}
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	return f.conf, nil
}

// failingUpdateStore breaks the atomic update path while leaving plain
// reads and appends working, so journaling still succeeds.
type failingUpdateStore struct {
	storage.KV
}

func (s *failingUpdateStore) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	return errors.New("disk full")
}

type fixture struct {
	service *Service
	vendor  *fakeVendor
	journal *journal.Journal
	store   storage.KV
	quotes  cache.QuoteCache
}

func newFixture(t *testing.T, vnd *fakeVendor, store storage.KV) *fixture {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	quotes := cache.NewMemoryQuoteCache(time.Minute)
	jnl := journal.New(store)
	service := NewService(vnd, ledger.New(store), jnl, quotes, nil, Config{
		TolerancePct:      2,
		MaxStorageRetries: 2,
		StorageRetryDelay: time.Millisecond,
	}, logger.NewNop(), nil)
	return &fixture{service: service, vendor: vnd, journal: jnl, store: store, quotes: quotes}
}

func TestService_BuyStockSuccess(t *testing.T) {
	vnd := &fakeVendor{
		quote: &models.Quote{Symbol: "AAPL", Price: 150},
		conf:  &models.OrderConfirmation{OrderID: "order-1", FillPrice: 151},
	}
	fx := newFixture(t, vnd, nil)
	ctx := context.Background()

	result, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, result.Status)
	assert.NotEmpty(t, result.TransactionID)
	assert.InDelta(t, 1510.0, result.TotalCost, 0.0001)
	require.Len(t, result.Holdings, 1)
	assert.Equal(t, 10.0, result.Holdings[0].Quantity)
	assert.InDelta(t, 151.0, result.Holdings[0].AverageCost, 0.0001)

	txns, err := fx.service.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionSuccess, txns[0].Status)
	assert.Equal(t, 151.0, txns[0].FillPrice)
	assert.Equal(t, "order-1", txns[0].OrderID)
}

func TestService_ToleranceBreachSkipsVendor(t *testing.T) {
	vnd := &fakeVendor{quote: &models.Quote{Symbol: "AAPL", Price: 100}}
	fx := newFixture(t, vnd, nil)
	ctx := context.Background()

	// 3% away from the quote with a 2% tolerance.
	_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 103)
	assert.True(t, errors.Is(err, apperrors.ErrToleranceExceeded))
	assert.Zero(t, vnd.buyCalls, "breach must not reach the vendor")

	txns, err := fx.service.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionFailed, txns[0].Status)
	assert.Equal(t, "PRICE_TOLERANCE_EXCEEDED", txns[0].Reason)
	assert.Zero(t, txns[0].FillPrice)

	portfolio, err := fx.service.GetPortfolio(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, portfolio.Holdings)
}

func TestService_BoundaryDeviationExecutes(t *testing.T) {
	vnd := &fakeVendor{
		quote: &models.Quote{Symbol: "AAPL", Price: 100},
		conf:  &models.OrderConfirmation{OrderID: "order-1", FillPrice: 100},
	}
	fx := newFixture(t, vnd, nil)

	// Exactly 2% away passes a 2% tolerance.
	_, err := fx.service.BuyStock(context.Background(), "u1", "AAPL", 10, 102)
	require.NoError(t, err)
	assert.Equal(t, 1, vnd.buyCalls)
}

func TestService_QuoteFailureJournalsFailed(t *testing.T) {
	vnd := &fakeVendor{quoteErr: apperrors.NewVendorUnavailableError("quote", errors.New("timeout"))}
	fx := newFixture(t, vnd, nil)
	ctx := context.Background()

	_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	assert.True(t, errors.Is(err, apperrors.ErrVendorUnavailable))

	txns, err := fx.service.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionFailed, txns[0].Status)
	assert.Equal(t, "VENDOR_UNAVAILABLE", txns[0].Reason)
}

func TestService_BuyFailureLeavesPortfolioClean(t *testing.T) {
	vnd := &fakeVendor{
		quote:  &models.Quote{Symbol: "AAPL", Price: 150},
		buyErr: apperrors.NewOrderRejectedError("AAPL", 422, errors.New("insufficient funds")),
	}
	fx := newFixture(t, vnd, nil)
	ctx := context.Background()

	_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	assert.True(t, errors.Is(err, apperrors.ErrOrderRejected))

	portfolio, err := fx.service.GetPortfolio(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, portfolio.Holdings, "failed buys must not touch the ledger")

	txns, err := fx.service.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionFailed, txns[0].Status)
	assert.Equal(t, "ORDER_REJECTED", txns[0].Reason)
}

func TestService_LedgerExhaustionEscalatesInconsistency(t *testing.T) {
	vnd := &fakeVendor{
		quote: &models.Quote{Symbol: "AAPL", Price: 150},
		conf:  &models.OrderConfirmation{OrderID: "order-1", FillPrice: 151},
	}
	store := &failingUpdateStore{KV: storage.NewMemoryStore()}
	fx := newFixture(t, vnd, store)
	ctx := context.Background()

	_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	assert.True(t, errors.Is(err, apperrors.ErrInconsistency))
	assert.Equal(t, 1, vnd.buyCalls, "the filled vendor call must not be retried")

	// The fill is still journaled for reconciliation.
	txns, err := fx.service.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "INCONSISTENCY_DETECTED", txns[0].Reason)
	assert.Equal(t, "order-1", txns[0].OrderID)
	assert.Equal(t, 151.0, txns[0].FillPrice)
}

func TestService_CancellationBeforeExecutingHasNoSideEffects(t *testing.T) {
	vnd := &fakeVendor{quote: &models.Quote{Symbol: "AAPL", Price: 150}}
	fx := newFixture(t, vnd, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, vnd.buyCalls)

	txns, err := fx.service.ListTransactions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, txns, "pure cancellation must not journal")
}

func TestService_CancellationAfterExecutingStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	vnd := &fakeVendor{
		quote: &models.Quote{Symbol: "AAPL", Price: 150},
		conf:  &models.OrderConfirmation{OrderID: "order-1", FillPrice: 150},
	}
	// The caller disconnects while the vendor is executing.
	vnd.onBuy = cancel
	fx := newFixture(t, vnd, nil)

	result, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	require.NoError(t, err, "a vendor-confirmed fill must not be lost on disconnect")
	assert.Equal(t, models.TransactionSuccess, result.Status)

	portfolio, err := fx.service.GetPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, portfolio.Holdings["AAPL"].Quantity)

	txns, err := fx.service.ListTransactions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionSuccess, txns[0].Status)
}

func TestService_QuoteServedFromCache(t *testing.T) {
	vnd := &fakeVendor{
		quote: &models.Quote{Symbol: "AAPL", Price: 150},
		conf:  &models.OrderConfirmation{OrderID: "order-1", FillPrice: 150},
	}
	fx := newFixture(t, vnd, nil)
	ctx := context.Background()

	require.NoError(t, fx.quotes.Put(ctx, "AAPL", &models.Quote{Symbol: "AAPL", Price: 150}))

	_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 150)
	require.NoError(t, err)
	assert.Zero(t, vnd.quoteCalls, "a warm cache must not hit the vendor")
}

func TestService_InvalidRequest(t *testing.T) {
	vnd := &fakeVendor{quote: &models.Quote{Symbol: "AAPL", Price: 150}}
	fx := newFixture(t, vnd, nil)
	ctx := context.Background()

	for name, run := range map[string]func() error{
		"zero quantity": func() error {
			_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 0, 150)
			return err
		},
		"negative quantity": func() error {
			_, err := fx.service.BuyStock(ctx, "u1", "AAPL", -1, 150)
			return err
		},
		"empty symbol": func() error {
			_, err := fx.service.BuyStock(ctx, "u1", "", 10, 150)
			return err
		},
		"zero expected price": func() error {
			_, err := fx.service.BuyStock(ctx, "u1", "AAPL", 10, 0)
			return err
		},
		"missing user": func() error {
			_, err := fx.service.BuyStock(ctx, "", "AAPL", 10, 150)
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := run()
			assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))
		})
	}

	// Malformed input is rejected before any pipeline step runs.
	assert.Zero(t, vnd.quoteCalls)
	txns, err := fx.service.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, txns)
}
