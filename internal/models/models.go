package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Quote is an immutable snapshot of a vendor price. A refresh replaces the
// whole value; quotes are never mutated in place.
type Quote struct {
	Symbol string    `json:"symbol" db:"symbol"`
	Name   string    `json:"name,omitempty" db:"name"`
	Price  float64   `json:"price" db:"price"`
	Market string    `json:"market" db:"market"`
	AsOf   time.Time `json:"as_of" db:"as_of"`
}

// Holding is one position inside a portfolio. AverageCost is the
// quantity-weighted mean of every buy fill for the symbol.
type Holding struct {
	Symbol      string  `json:"symbol" db:"symbol"`
	Quantity    float64 `json:"quantity" db:"quantity"`
	AverageCost float64 `json:"average_cost" db:"average_cost"`
}

type Portfolio struct {
	UserID      string             `json:"user_id" db:"user_id"`
	Holdings    map[string]Holding `json:"holdings" db:"holdings"`
	TotalValue  float64            `json:"total_value" db:"total_value"`
	LastUpdated time.Time          `json:"last_updated" db:"last_updated"`

	// AppliedFills tracks transaction ids already folded into the holdings
	// so a retried fill never changes the average twice.
	AppliedFills map[string]bool `json:"applied_fills,omitempty" db:"applied_fills"`
}

// HoldingsList returns the holdings as a slice for response snapshots,
// ordered by symbol.
func (p *Portfolio) HoldingsList() []Holding {
	holdings := make([]Holding, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings
}

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// Transaction is one journaled trade attempt. Immutable once recorded;
// corrections are new transactions.
type Transaction struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	UserID     string            `json:"user_id" db:"user_id"`
	Symbol     string            `json:"symbol" db:"symbol"`
	Quantity   float64           `json:"quantity" db:"quantity"`
	FillPrice  float64           `json:"fill_price" db:"fill_price"`
	TotalValue float64           `json:"total_value" db:"total_value"`
	Status     TransactionStatus `json:"status" db:"status"`
	OrderID    string            `json:"order_id,omitempty" db:"order_id"`
	Reason     string            `json:"reason,omitempty" db:"reason"`
	Timestamp  time.Time         `json:"timestamp" db:"timestamp"`
}

// OrderConfirmation is the vendor's answer to a buy order.
type OrderConfirmation struct {
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
}

// TradeResult is what the buy-stock operation hands back to the HTTP layer.
type TradeResult struct {
	TransactionID string            `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
	Holdings      []Holding         `json:"holdings"`
	TotalCost     float64           `json:"total_cost"`
}
