package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusRejected OrderStatus = "rejected"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusApproved || s == OrderStatusRejected
}

// HoldsTokens reports whether an order in status s counts against the balance.
func (s OrderStatus) HoldsTokens() bool {
	return s == OrderStatusPending || s == OrderStatusApproved
}

// ShopOrder is a reservation of tokens against a shop item.
type ShopOrder struct {
	ID            string      `json:"id" db:"id"`
	UserID        string      `json:"user_id" db:"user_id"`
	ShopItemID    string      `json:"shop_item_id" db:"shop_item_id"`
	PriceAtOrder  int64       `json:"price_at_order" db:"price_at_order"`
	Status        OrderStatus `json:"status" db:"status"`
	Memo          *string     `json:"memo,omitempty" db:"memo"`
	RecordStoreID *string     `json:"-" db:"record_store_id"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

type ReserveResult struct {
	Order            *ShopOrder `json:"order"`
	RemainingBalance int64      `json:"remaining_tokens"`
}

// OrderMirror carries what the record store needs to mirror an order.
type OrderMirror struct {
	Order *ShopOrder
	User  *User
	Item  *ShopItem
}
