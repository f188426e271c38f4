package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/middleware"
	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
	"github.com/Cryptoprojectsfun/stocktrade/internal/validator"
)

// TradeService is the slice of the trade pipeline the HTTP layer needs.
type TradeService interface {
	BuyStock(ctx context.Context, userID, symbol string, quantity, expectedPrice float64) (*models.TradeResult, error)
	GetPortfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	ListStocks(ctx context.Context) ([]models.Quote, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

type TradeHandler struct {
	service TradeService
}

func NewTradeHandler(service TradeService) *TradeHandler {
	return &TradeHandler{service: service}
}

// RegisterRoutes mounts the trade API on the router. All routes assume
// the auth middleware already ran.
func (h *TradeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stocks", h.ListStocks).Methods(http.MethodGet)
	r.HandleFunc("/stocks/{symbol}", h.GetQuote).Methods(http.MethodGet)
	r.HandleFunc("/stocks/{symbol}/buy", h.BuyStock).Methods(http.MethodPost)
	r.HandleFunc("/portfolio", h.GetPortfolio).Methods(http.MethodGet)
	r.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
}

type BuyStockRequest struct {
	Quantity      float64 `json:"quantity"`
	ExpectedPrice float64 `json:"expected_price"`
}

func (h *TradeHandler) BuyStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	var req BuyStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.NewInvalidRequestError("Invalid request body", nil))
		return
	}

	v := validator.New()
	v.ValidateSymbol(symbol)
	v.ValidatePositive(req.Quantity, "quantity")
	v.ValidatePositive(req.ExpectedPrice, "expected_price")
	if !v.Valid() {
		writeError(w, r, apperrors.NewInvalidRequestError("Invalid buy request", v.Errors))
		return
	}

	result, err := h.service.BuyStock(r.Context(), userID, symbol, req.Quantity, req.ExpectedPrice)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TradeHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	portfolio, err := h.service.GetPortfolio(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      portfolio.UserID,
		"holdings":     portfolio.HoldingsList(),
		"total_value":  portfolio.TotalValue,
		"last_updated": portfolio.LastUpdated,
	})
}

func (h *TradeHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txns})
}

func (h *TradeHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.service.ListStocks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stocks": quotes})
}

func (h *TradeHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	v := validator.New()
	v.ValidateSymbol(symbol)
	if !v.Valid() {
		writeError(w, r, apperrors.NewInvalidRequestError("Invalid symbol", v.Errors))
		return
	}

	quote, err := h.service.GetQuote(r.Context(), symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}
