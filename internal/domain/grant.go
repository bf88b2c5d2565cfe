package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingGrantOrder is a pending order for a money-backed item, joined with its item.
type PendingGrantOrder struct {
	OrderID      string
	UserID       string
	ShopItemID   string
	ItemName     string
	USDCost      decimal.Decimal
	PriceAtOrder int64
	MerchantIDs  []string
	CategoryLock *string
	CreatedAt    time.Time
}

// GrantGroup aggregates a user's pending orders for one item. A group is
// funded or skipped as a whole.
type GrantGroup struct {
	UserID       string          `json:"user_id"`
	Email        string          `json:"email"`
	ShopItemID   string          `json:"shop_item_id"`
	ItemName     string          `json:"item_name"`
	Quantity     int             `json:"quantity"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TokensSpent  int64           `json:"tokens_spent"`
	OrderIDs     []string        `json:"order_ids"`
	MerchantIDs  []string        `json:"merchant_ids,omitempty"`
	CategoryLock *string         `json:"category_lock,omitempty"`
}

// GrantRequest is the wire payload sent to the disbursement provider.
type GrantRequest struct {
	AmountCents  int64   `json:"amount_cents"`
	Email        string  `json:"email"`
	MerchantLock *string `json:"merchant_lock"`
	CategoryLock *string `json:"category_lock"`
	KeywordLock  *string `json:"keyword_lock"`
	Purpose      string  `json:"purpose"`
}

type GrantAllocation struct {
	Request GrantRequest `json:"request"`
	Group   GrantGroup   `json:"group"`
}

type AllocationPlan struct {
	Budget          decimal.Decimal   `json:"budget"`
	RemainingBudget decimal.Decimal   `json:"remaining_budget"`
	TotalRequested  decimal.Decimal   `json:"total_requested"`
	TotalAllocated  decimal.Decimal   `json:"total_allocated"`
	Allocations     []GrantAllocation `json:"allocations"`
	Unallocated     []GrantGroup      `json:"unallocated"`
	DroppedOrderIDs []string          `json:"dropped_order_ids,omitempty"`
	FilteredOut     int               `json:"filtered_out"`
}

// GrantResult is the provider's acknowledgement of a created grant.
type GrantResult struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Email       string `json:"email"`
	Status      string `json:"status"`
}

type GrantOutcome struct {
	Allocation GrantAllocation `json:"allocation"`
	Result     *GrantResult    `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (o GrantOutcome) Succeeded() bool {
	return o.Result != nil && o.Error == ""
}

type DisbursementSummary struct {
	Total           int             `json:"total"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	OrdersApproved  int             `json:"orders_approved"`
	SucceededAmount decimal.Decimal `json:"succeeded_amount"`
	FailedAmount    decimal.Decimal `json:"failed_amount"`
	Outcomes        []GrantOutcome  `json:"outcomes"`
}
