package repository

import (
	"context"

	"tokenshop-backend/internal/domain"
)

// Transactor runs fn in a database transaction carried by the context it
// passes to fn. Repository calls made with that context join the transaction;
// a nested WithTx joins the outer one.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

type ShopItemRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ShopItem, error)
	// GetForUpdate row-locks the item until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.ShopItem, error)
	SetRecordStoreID(ctx context.Context, id, recordID string) error
}

type LedgerRepository interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	// GetBalanceForUpdate locks the user row, then computes the balance.
	GetBalanceForUpdate(ctx context.Context, userID string) (int64, error)
	GetSummary(ctx context.Context, userID string) (*domain.LedgerSummary, error)
	CreateEntry(ctx context.Context, entry *domain.LedgerEntry) error
	ListEntries(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*domain.LedgerEntry, error)
	Revoke(ctx context.Context, id, memo string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.ShopOrder) error
	GetByID(ctx context.Context, id string) (*domain.ShopOrder, error)
	GetForUpdate(ctx context.Context, id string) (*domain.ShopOrder, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, memo *string) error
	ListByUser(ctx context.Context, userID string) ([]domain.ShopOrder, error)
	List(ctx context.Context, status *domain.OrderStatus) ([]domain.ShopOrder, error)

	// ListPendingMoneyBacked returns pending orders whose item is money-backed, oldest first.
	ListPendingMoneyBacked(ctx context.Context) ([]domain.PendingGrantOrder, error)
	// ApprovePending moves every listed order from pending to approved, or none of them.
	ApprovePending(ctx context.Context, ids []string) error

	ListUnmirrored(ctx context.Context, limit int) ([]domain.ShopOrder, error)
	SetRecordStoreID(ctx context.Context, id, recordID string) error
}
