package service

import (
	"context"

	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
)

type LedgerService interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	GetLedgerSummary(ctx context.Context, userID string) (*domain.LedgerSummary, error)
	ListEntries(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
	CreditTokens(ctx context.Context, userID string, tokens int64, memo string, submissionID *string) (*domain.LedgerEntry, error)
	RevokeSubmissionEntry(ctx context.Context, submissionID, reason string) (*domain.LedgerEntry, error)
}

type OrderService interface {
	ReserveOrder(ctx context.Context, userID, shopItemID string) (*domain.ReserveResult, error)
	SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, memo *string) (*domain.ShopOrder, error)
	GetOrder(ctx context.Context, orderID string) (*domain.ShopOrder, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.ShopOrder, error)
	ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.ShopOrder, error)
}

// PlanOptions controls a grant planning run. A nil Budget means "use the
// provider's organization balance".
type PlanOptions struct {
	Budget       *decimal.Decimal
	ApprovedOnly bool
}

type GrantService interface {
	PlanGrants(ctx context.Context, opts PlanOptions) (*domain.AllocationPlan, error)
	Disburse(ctx context.Context, alloc domain.GrantAllocation) (*domain.GrantResult, error)
	RunDisbursementBatch(ctx context.Context, plan *domain.AllocationPlan) *domain.DisbursementSummary
}

type MirrorService interface {
	// MirrorOrder pushes the order's current state to the record store.
	// newReservation also bumps the user's redeemed-points counter when enabled.
	MirrorOrder(ctx context.Context, orderID string, newReservation bool) error
	RetryUnmirrored(ctx context.Context, limit int) (int, error)
}

type OrderNotification struct {
	Status   domain.OrderStatus
	ItemName string
	OrderID  string
	Memo     string
}

type EmailService interface {
	SendOrderStatusEmail(ctx context.Context, to string, n OrderNotification) error
}
