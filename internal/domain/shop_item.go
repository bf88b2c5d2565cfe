package domain

import "github.com/shopspring/decimal"

type ShopItemType string

const (
	ShopItemTypeHCB        ShopItemType = "hcb"
	ShopItemTypeThirdParty ShopItemType = "third_party"
)

type ShopItem struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	ImageURL      string           `json:"image_url"`
	Price         int64            `json:"price"`
	USDCost       *decimal.Decimal `json:"usd_cost,omitempty"`
	Type          *ShopItemType    `json:"type,omitempty"`
	MerchantIDs   []string         `json:"merchant_ids,omitempty"`
	CategoryLock  *string          `json:"category_lock,omitempty"`
	RecordStoreID *string          `json:"-"`
}

// IsMoneyBacked reports whether fulfilling the item disburses real money.
func (i *ShopItem) IsMoneyBacked() bool {
	return i.Type != nil && *i.Type == ShopItemTypeHCB && i.USDCost != nil && i.USDCost.IsPositive()
}
