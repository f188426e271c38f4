package trade

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cryptoprojectsfun/stocktrade/internal/cache"
	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/events"
	"github.com/Cryptoprojectsfun/stocktrade/internal/journal"
	"github.com/Cryptoprojectsfun/stocktrade/internal/ledger"
	"github.com/Cryptoprojectsfun/stocktrade/internal/logger"
	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
	"github.com/Cryptoprojectsfun/stocktrade/internal/monitoring"
	"github.com/Cryptoprojectsfun/stocktrade/internal/pricing"
)

// Vendor is the slice of the vendor adapter the orchestrator needs.
type Vendor interface {
	ListStocks(ctx context.Context) ([]models.Quote, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	ExecuteBuy(ctx context.Context, symbol string, quantity, price float64) (*models.OrderConfirmation, error)
}

// Config tunes the buy pipeline.
type Config struct {
	// TolerancePct is the max allowed deviation between the quoted price
	// and the caller's expected price, in percent.
	TolerancePct float64
	// MaxStorageRetries bounds ledger/journal retries after a confirmed
	// fill. The vendor call is never retried at this stage.
	MaxStorageRetries int
	// StorageRetryDelay is the pause between those retries.
	StorageRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.TolerancePct <= 0 {
		c.TolerancePct = 2
	}
	if c.MaxStorageRetries <= 0 {
		c.MaxStorageRetries = 3
	}
	if c.StorageRetryDelay <= 0 {
		c.StorageRetryDelay = 100 * time.Millisecond
	}
	return c
}

// Service runs the buy pipeline and serves portfolio reads. One
// instance per process, shared across request handlers.
type Service struct {
	vendor    Vendor
	ledger    *ledger.Ledger
	journal   *journal.Journal
	quotes    cache.QuoteCache
	publisher events.Publisher
	cfg       Config
	log       *logger.Logger
	metrics   *monitoring.Metrics
}

func NewService(vendor Vendor, ldg *ledger.Ledger, jnl *journal.Journal, quotes cache.QuoteCache, publisher events.Publisher, cfg Config, log *logger.Logger, metrics *monitoring.Metrics) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		vendor:    vendor,
		ledger:    ldg,
		journal:   jnl,
		quotes:    quotes,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   metrics,
	}
}

// BuyStock runs one buy attempt through quoting, tolerance check,
// vendor execution, ledger update and journaling. Every attempt that
// got past input validation yields a journaled transaction, success or
// failure; the portfolio is only ever touched after the vendor
// confirmed the fill.
func (s *Service) BuyStock(ctx context.Context, userID, symbol string, quantity, expectedPrice float64) (*models.TradeResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := validateBuy(userID, symbol, quantity, expectedPrice); err != nil {
		return nil, err
	}

	// QUOTING
	quote, err := s.currentQuote(ctx, symbol)
	if err != nil {
		// A caller that walked away before any side effects gets a clean
		// abort with nothing journaled.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.LogTradeOperation(userID, symbol, "quoting", err)
		s.journalFailure(ctx, userID, symbol, quantity, err)
		return nil, err
	}

	// TOLERANCE_CHECK
	if err := pricing.CheckTolerance(symbol, quote.Price, expectedPrice, s.cfg.TolerancePct); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.LogTradeOperation(userID, symbol, "tolerance_check", err)
		s.journalFailure(ctx, userID, symbol, quantity, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// From here on the vendor may move money, so the rest of the
	// pipeline must finish even if the caller disconnects. The adapter's
	// per-call timeouts still bound each step.
	detached := context.WithoutCancel(ctx)

	// EXECUTING
	conf, err := s.vendor.ExecuteBuy(detached, symbol, quantity, quote.Price)
	if err != nil {
		s.log.LogTradeOperation(userID, symbol, "executing", err)
		s.journalFailure(detached, userID, symbol, quantity, err)
		return nil, err
	}
	s.log.LogTradeOperation(userID, symbol, "executing", nil)

	// LEDGER_UPDATE. The trade is filled; only the ledger write is
	// retried here.
	fill := ledger.Fill{
		TransactionID: conf.OrderID,
		Symbol:        symbol,
		Quantity:      quantity,
		Price:         conf.FillPrice,
	}
	portfolio, err := s.applyWithRetry(detached, userID, fill)
	if err != nil {
		return nil, s.escalateInconsistency(detached, userID, symbol, quantity, conf, err)
	}

	// JOURNALED
	txn := &models.Transaction{
		UserID:     userID,
		Symbol:     symbol,
		Quantity:   quantity,
		FillPrice:  conf.FillPrice,
		TotalValue: quantity * conf.FillPrice,
		Status:     models.TransactionSuccess,
		OrderID:    conf.OrderID,
	}
	if err := s.recordWithRetry(detached, txn); err != nil {
		return nil, s.escalateInconsistency(detached, userID, symbol, quantity, conf, err)
	}

	s.metrics.ObserveTrade(string(models.TransactionSuccess), "")
	s.metrics.ObserveJournalEntry(string(models.TransactionSuccess))
	s.publish(detached, txn)
	s.log.LogTradeOperation(userID, symbol, "journaled", nil)

	return &models.TradeResult{
		TransactionID: txn.ID.String(),
		Status:        models.TransactionSuccess,
		Holdings:      portfolio.HoldingsList(),
		TotalCost:     quantity * conf.FillPrice,
	}, nil
}

// GetPortfolio returns the user's current holdings.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidRequestError("user id is required", nil)
	}
	return s.ledger.Get(ctx, userID)
}

// ListTransactions returns the user's journal in insertion order.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidRequestError("user id is required", nil)
	}
	return s.journal.ListByUser(ctx, userID)
}

// ListStocks returns the vendor's listing, cache first.
func (s *Service) ListStocks(ctx context.Context) ([]models.Quote, error) {
	cached, err := s.quotes.GetAll(ctx)
	if err != nil {
		s.log.Warnw("Quote cache read failed", "error", err)
	}
	if cached != nil {
		s.metrics.ObserveCacheHit("stocks")
		return cached, nil
	}
	s.metrics.ObserveCacheMiss("stocks")

	quotes, err := s.vendor.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.quotes.PutAll(ctx, quotes); err != nil {
		s.log.Warnw("Quote cache write failed", "error", err)
	}
	return quotes, nil
}

// GetQuote returns the current price for one symbol, cache first.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, apperrors.NewInvalidRequestError("symbol is required", nil)
	}
	return s.currentQuote(ctx, symbol)
}

// currentQuote reads the price cache, falling back to the vendor on a
// miss. Vendor prices are cached; vendor failures never are.
func (s *Service) currentQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	cached, err := s.quotes.Get(ctx, symbol)
	if err != nil {
		s.log.Warnw("Quote cache read failed", "symbol", symbol, "error", err)
	}
	if cached != nil {
		s.metrics.ObserveCacheHit("quote")
		return cached, nil
	}
	s.metrics.ObserveCacheMiss("quote")

	quote, err := s.vendor.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.quotes.Put(ctx, symbol, quote); err != nil {
		s.log.Warnw("Quote cache write failed", "symbol", symbol, "error", err)
	}
	return quote, nil
}

// applyWithRetry retries the ledger update with a bounded budget.
func (s *Service) applyWithRetry(ctx context.Context, userID string, fill ledger.Fill) (*models.Portfolio, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxStorageRetries; attempt++ {
		portfolio, err := s.ledger.ApplyBuy(ctx, userID, fill)
		if err == nil {
			return portfolio, nil
		}
		lastErr = err
		s.log.LogTradeOperation(userID, fill.Symbol, "ledger_update", err)
		if attempt < s.cfg.MaxStorageRetries {
			time.Sleep(s.cfg.StorageRetryDelay)
		}
	}
	return nil, lastErr
}

// recordWithRetry retries journaling with the same bounded budget.
func (s *Service) recordWithRetry(ctx context.Context, txn *models.Transaction) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxStorageRetries; attempt++ {
		// Each attempt is a fresh entry; a half-written one keeps its id.
		txn.ID = uuid.Nil
		if err := s.journal.Record(ctx, txn); err == nil {
			return nil
		} else {
			lastErr = err
		}
		s.log.LogTradeOperation(txn.UserID, txn.Symbol, "journaled", lastErr)
		if attempt < s.cfg.MaxStorageRetries {
			time.Sleep(s.cfg.StorageRetryDelay)
		}
	}
	return lastErr
}

// escalateInconsistency handles the fatal case: the vendor confirmed a
// fill but storage would not absorb it. Loud log, dedicated metric, and
// a best-effort journal entry carrying the real fill for reconciliation.
func (s *Service) escalateInconsistency(ctx context.Context, userID, symbol string, quantity float64, conf *models.OrderConfirmation, cause error) error {
	s.log.LogInconsistency(userID, symbol, conf.OrderID, cause)
	s.metrics.ObserveInconsistency()
	s.metrics.ObserveTrade(string(models.TransactionFailed), "INCONSISTENCY_DETECTED")

	txn := &models.Transaction{
		UserID:     userID,
		Symbol:     symbol,
		Quantity:   quantity,
		FillPrice:  conf.FillPrice,
		TotalValue: quantity * conf.FillPrice,
		Status:     models.TransactionFailed,
		OrderID:    conf.OrderID,
		Reason:     "INCONSISTENCY_DETECTED",
	}
	if err := s.journal.Record(ctx, txn); err != nil {
		s.log.Errorw("Journal write failed for inconsistent fill",
			"user_id", userID, "symbol", symbol, "order_id", conf.OrderID, "error", err)
	} else {
		s.metrics.ObserveJournalEntry(string(models.TransactionFailed))
		s.publish(ctx, txn)
	}

	return apperrors.NewInconsistencyError(userID, symbol, conf.OrderID, cause)
}

// journalFailure records a FAILED attempt. Best effort: a journal
// outage must not mask the original failure handed to the caller.
func (s *Service) journalFailure(ctx context.Context, userID, symbol string, quantity float64, cause error) {
	reason := "UNKNOWN_ERROR"
	var appErr *apperrors.Error
	if errors.As(cause, &appErr) {
		reason = appErr.ErrorCode
	}
	s.metrics.ObserveTrade(string(models.TransactionFailed), reason)

	txn := &models.Transaction{
		UserID:   userID,
		Symbol:   symbol,
		Quantity: quantity,
		Status:   models.TransactionFailed,
		Reason:   reason,
	}
	if err := s.journal.Record(ctx, txn); err != nil {
		s.log.Errorw("Journal write failed for failed attempt",
			"user_id", userID, "symbol", symbol, "error", err)
		return
	}
	s.metrics.ObserveJournalEntry(string(models.TransactionFailed))
	s.publish(ctx, txn)
}

// publish emits a trade event; failures are logged, never surfaced.
func (s *Service) publish(ctx context.Context, txn *models.Transaction) {
	if err := s.publisher.PublishTrade(ctx, txn); err != nil {
		s.log.Warnw("Trade event publish failed",
			"transaction_id", txn.ID.String(), "error", err)
	}
}

func validateBuy(userID, symbol string, quantity, expectedPrice float64) error {
	validationErrors := make(map[string]string)
	if userID == "" {
		validationErrors["user_id"] = "required"
	}
	if symbol == "" {
		validationErrors["symbol"] = "required"
	}
	if quantity <= 0 {
		validationErrors["quantity"] = "must be greater than zero"
	}
	if expectedPrice <= 0 {
		validationErrors["expected_price"] = "must be greater than zero"
	}
	if len(validationErrors) > 0 {
		return apperrors.NewInvalidRequestError("invalid buy request", validationErrors)
	}
	return nil
}
