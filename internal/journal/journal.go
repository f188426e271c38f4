package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Cryptoprojectsfun/stocktrade/internal/errors"
	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
	"github.com/Cryptoprojectsfun/stocktrade/internal/storage"
)

func transactionKey(id uuid.UUID) string {
	return "txn:" + id.String()
}

func userJournalKey(userID string) string {
	return "journal:" + userID
}

// Journal is the append-only transaction history. Every buy attempt
// that reached the vendor pipeline lands here exactly once, successful
// or not; entries are never updated or deleted.
type Journal struct {
	store storage.KV
	now   func() time.Time
}

func New(store storage.KV) *Journal {
	return &Journal{store: store, now: time.Now}
}

// Record persists a transaction and appends it to the user's history.
// Assigns the id and timestamp; a transaction that already carries an
// id is rejected, entries are written once.
func (j *Journal) Record(ctx context.Context, txn *models.Transaction) error {
	if txn.ID != uuid.Nil {
		return apperrors.NewInvalidRequestError(
			fmt.Sprintf("transaction %s already journaled", txn.ID), nil)
	}
	if txn.UserID == "" {
		return apperrors.NewInvalidRequestError("transaction requires a user id", nil)
	}

	txn.ID = uuid.New()
	txn.Timestamp = j.now()

	data, err := json.Marshal(txn)
	if err != nil {
		return apperrors.NewStorageError("journal encode", err)
	}

	if err := j.store.Put(ctx, transactionKey(txn.ID), data); err != nil {
		return apperrors.NewStorageError("journal write", err)
	}
	if err := j.store.Append(ctx, userJournalKey(txn.UserID), data); err != nil {
		return apperrors.NewStorageError("journal append", err)
	}
	return nil
}

// Get looks up a single transaction by id.
func (j *Journal) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	data, err := j.store.Get(ctx, transactionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Transaction %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("journal read", err)
	}

	var txn models.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, apperrors.NewStorageError("journal decode", err)
	}
	return &txn, nil
}

// ListByUser returns the user's transactions in the order they were
// recorded. A user with no history gets an empty list.
func (j *Journal) ListByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	entries, err := j.store.List(ctx, userJournalKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return []models.Transaction{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("journal list", err)
	}

	txns := make([]models.Transaction, 0, len(entries))
	for _, data := range entries {
		var txn models.Transaction
		if err := json.Unmarshal(data, &txn); err != nil {
			return nil, apperrors.NewStorageError("journal decode", err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}
