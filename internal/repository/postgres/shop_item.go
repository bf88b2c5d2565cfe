package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

const shopItemColumns = `id, name, description, image_url, price, usd_cost, type, merchant_ids, category_lock, record_store_id`

type shopItemRow struct {
	ID            string              `db:"id"`
	Name          string              `db:"name"`
	Description   string              `db:"description"`
	ImageURL      string              `db:"image_url"`
	Price         int64               `db:"price"`
	USDCost       decimal.NullDecimal `db:"usd_cost"`
	Type          sql.NullString      `db:"type"`
	MerchantIDs   pq.StringArray      `db:"merchant_ids"`
	CategoryLock  sql.NullString      `db:"category_lock"`
	RecordStoreID sql.NullString      `db:"record_store_id"`
}

func (row *shopItemRow) toDomain() *domain.ShopItem {
	item := &domain.ShopItem{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		ImageURL:    row.ImageURL,
		Price:       row.Price,
		MerchantIDs: []string(row.MerchantIDs),
	}
	if row.USDCost.Valid {
		cost := row.USDCost.Decimal
		item.USDCost = &cost
	}
	if row.Type.Valid {
		t := domain.ShopItemType(row.Type.String)
		item.Type = &t
	}
	item.CategoryLock = nullableString(row.CategoryLock)
	item.RecordStoreID = nullableString(row.RecordStoreID)
	return item
}

type shopItemRepository struct {
	db *sqlx.DB
}

func NewShopItemRepository(db *sqlx.DB) repository.ShopItemRepository {
	return &shopItemRepository{db: db}
}

func (r *shopItemRepository) GetByID(ctx context.Context, id string) (*domain.ShopItem, error) {
	return r.get(ctx, `SELECT `+shopItemColumns+` FROM shop_items WHERE id = $1`, id)
}

func (r *shopItemRepository) GetForUpdate(ctx context.Context, id string) (*domain.ShopItem, error) {
	logger.EnterMethod("shopItemRepository.GetForUpdate", "itemID", id)
	if !inTx(ctx) {
		return nil, errors.New("shopItemRepository.GetForUpdate requires a transaction")
	}
	item, err := r.get(ctx, `SELECT `+shopItemColumns+` FROM shop_items WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		logger.ExitMethodWithError("shopItemRepository.GetForUpdate", err, "itemID", id)
		return nil, err
	}
	logger.ExitMethod("shopItemRepository.GetForUpdate", "itemID", id, "price", item.Price)
	return item, nil
}

func (r *shopItemRepository) get(ctx context.Context, query, id string) (*domain.ShopItem, error) {
	var row shopItemRow
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrShopItemNotFound
		}
		return nil, fmt.Errorf("get shop item %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *shopItemRepository) SetRecordStoreID(ctx context.Context, id, recordID string) error {
	query := `UPDATE shop_items SET record_store_id = $1 WHERE id = $2`
	res, err := queryer(ctx, r.db).ExecContext(ctx, query, recordID, id)
	if err != nil {
		return fmt.Errorf("set shop item record id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrShopItemNotFound
	}
	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
