package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
	"github.com/Cryptoprojectsfun/stocktrade/internal/storage"
)

// Fill is a vendor-confirmed execution to be absorbed into a portfolio.
type Fill struct {
	TransactionID string
	Symbol        string
	Quantity      float64
	Price         float64
}

func portfolioKey(userID string) string {
	return "portfolio:" + userID
}

// Ledger owns portfolio records. All mutation goes through the store's
// atomic Update, so concurrent buys for the same user serialize on the
// portfolio key.
type Ledger struct {
	store storage.KV
	now   func() time.Time
}

func New(store storage.KV) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Get returns the user's portfolio. Users who never traded get an empty
// portfolio rather than an error; holdings exist only once bought.
func (l *Ledger) Get(ctx context.Context, userID string) (*models.Portfolio, error) {
	data, err := l.store.Get(ctx, portfolioKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return emptyPortfolio(userID), nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("portfolio read", err)
	}

	portfolio, err := decode(data, userID)
	if err != nil {
		return nil, apperrors.NewStorageError("portfolio decode", err)
	}
	return portfolio, nil
}

// ApplyBuy folds a fill into the portfolio under the user's key:
// quantity accumulates and average cost is the quantity-weighted mean
// of the old position and the new fill. Replays of the same
// transaction id are absorbed without changing anything, so a retried
// call after a lost response cannot double-count shares.
func (l *Ledger) ApplyBuy(ctx context.Context, userID string, fill Fill) (*models.Portfolio, error) {
	if fill.TransactionID == "" {
		return nil, apperrors.NewInvalidRequestError("fill requires a transaction id", nil)
	}
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return nil, apperrors.NewInvalidRequestError(
			fmt.Sprintf("fill for %s has non-positive quantity or price", fill.Symbol), nil)
	}

	var result *models.Portfolio
	err := l.store.Update(ctx, portfolioKey(userID), func(current []byte) ([]byte, error) {
		portfolio, err := decode(current, userID)
		if err != nil {
			return nil, err
		}

		if portfolio.AppliedFills[fill.TransactionID] {
			result = portfolio
			return nil, storage.ErrNoChange
		}

		holding := portfolio.Holdings[fill.Symbol]
		holding.Symbol = fill.Symbol

		newQty := holding.Quantity + fill.Quantity
		holding.AverageCost = (holding.Quantity*holding.AverageCost + fill.Quantity*fill.Price) / newQty
		holding.Quantity = newQty

		portfolio.Holdings[fill.Symbol] = holding
		portfolio.AppliedFills[fill.TransactionID] = true
		portfolio.LastUpdated = l.now()

		total := 0.0
		for _, h := range portfolio.Holdings {
			total += h.Quantity * h.AverageCost
		}
		portfolio.TotalValue = total

		result = portfolio
		return json.Marshal(portfolio)
	})
	if err != nil && !errors.Is(err, storage.ErrNoChange) {
		return nil, apperrors.NewStorageError("portfolio update", err)
	}

	return result, nil
}

func emptyPortfolio(userID string) *models.Portfolio {
	return &models.Portfolio{
		UserID:       userID,
		Holdings:     make(map[string]models.Holding),
		AppliedFills: make(map[string]bool),
	}
}

// decode unmarshals a stored portfolio, tolerating a missing record and
// nil maps from older encodings.
func decode(data []byte, userID string) (*models.Portfolio, error) {
	if len(data) == 0 {
		return emptyPortfolio(userID), nil
	}

	var portfolio models.Portfolio
	if err := json.Unmarshal(data, &portfolio); err != nil {
		return nil, err
	}
	if portfolio.UserID == "" {
		portfolio.UserID = userID
	}
	if portfolio.Holdings == nil {
		portfolio.Holdings = make(map[string]models.Holding)
	}
	if portfolio.AppliedFills == nil {
		portfolio.AppliedFills = make(map[string]bool)
	}
	return &portfolio, nil
}
