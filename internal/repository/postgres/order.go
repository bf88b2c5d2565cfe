package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

const orderColumns = `id, user_id, shop_item_id, price_at_order, status, memo, record_store_id, created_at`

type orderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *domain.ShopOrder) error {
	logger.EnterMethod("orderRepository.Create", "userID", o.UserID, "itemID", o.ShopItemID, "price", o.PriceAtOrder)

	query := `INSERT INTO shop_orders (id, user_id, shop_item_id, price_at_order, status, memo, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	logger.DatabaseCall("InsertOrder", query, "orderID", o.ID)
	res, err := queryer(ctx, r.db).ExecContext(ctx, query,
		o.ID, o.UserID, o.ShopItemID, o.PriceAtOrder, o.Status, o.Memo, o.CreatedAt)
	var n int64
	if err == nil {
		n, _ = res.RowsAffected()
	}
	logger.DatabaseResult("InsertOrder", n, err)
	if err != nil {
		logger.ExitMethodWithError("orderRepository.Create", err, "orderID", o.ID)
		return fmt.Errorf("insert order: %w", err)
	}

	logger.ExitMethod("orderRepository.Create", "orderID", o.ID)
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.ShopOrder, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM shop_orders WHERE id = $1`, id)
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (*domain.ShopOrder, error) {
	if !inTx(ctx) {
		return nil, errors.New("orderRepository.GetForUpdate requires a transaction")
	}
	return r.get(ctx, `SELECT `+orderColumns+` FROM shop_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepository) get(ctx context.Context, query, id string) (*domain.ShopOrder, error) {
	var o domain.ShopOrder
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &o, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, memo *string) error {
	logger.EnterMethod("orderRepository.UpdateStatus", "orderID", id, "status", status)

	query := `UPDATE shop_orders SET status = $1, memo = COALESCE($2, memo) WHERE id = $3`
	res, err := queryer(ctx, r.db).ExecContext(ctx, query, status, memo, id)
	if err != nil {
		logger.ExitMethodWithError("orderRepository.UpdateStatus", err, "orderID", id)
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound
	}

	logger.ExitMethod("orderRepository.UpdateStatus", "orderID", id)
	return nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]domain.ShopOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM shop_orders WHERE user_id = $1 ORDER BY created_at DESC, id`
	orders := []domain.ShopOrder{}
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &orders, query, userID); err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) List(ctx context.Context, status *domain.OrderStatus) ([]domain.ShopOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM shop_orders WHERE ($1::text IS NULL OR status = $1) ORDER BY created_at DESC, id`
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	orders := []domain.ShopOrder{}
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &orders, query, statusArg); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

type pendingGrantRow struct {
	OrderID      string          `db:"order_id"`
	UserID       string          `db:"user_id"`
	ShopItemID   string          `db:"shop_item_id"`
	ItemName     string          `db:"item_name"`
	USDCost      decimal.Decimal `db:"usd_cost"`
	PriceAtOrder int64           `db:"price_at_order"`
	MerchantIDs  pq.StringArray  `db:"merchant_ids"`
	CategoryLock sql.NullString  `db:"category_lock"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r *orderRepository) ListPendingMoneyBacked(ctx context.Context) ([]domain.PendingGrantOrder, error) {
	logger.EnterMethod("orderRepository.ListPendingMoneyBacked")

	query := `
		SELECT o.id AS order_id, o.user_id, o.shop_item_id, i.name AS item_name, i.usd_cost,
		       o.price_at_order, i.merchant_ids, i.category_lock, o.created_at
		FROM shop_orders o
		JOIN shop_items i ON i.id = o.shop_item_id
		WHERE o.status = 'pending' AND i.type = 'hcb' AND i.usd_cost IS NOT NULL AND i.usd_cost > 0
		ORDER BY o.created_at, o.id`
	logger.DatabaseCall("ListPendingMoneyBacked", query)
	var rows []pendingGrantRow
	err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &rows, query)
	logger.DatabaseResult("ListPendingMoneyBacked", int64(len(rows)), err)
	if err != nil {
		logger.ExitMethodWithError("orderRepository.ListPendingMoneyBacked", err)
		return nil, fmt.Errorf("list pending money-backed orders: %w", err)
	}

	orders := make([]domain.PendingGrantOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, domain.PendingGrantOrder{
			OrderID:      row.OrderID,
			UserID:       row.UserID,
			ShopItemID:   row.ShopItemID,
			ItemName:     row.ItemName,
			USDCost:      row.USDCost,
			PriceAtOrder: row.PriceAtOrder,
			MerchantIDs:  []string(row.MerchantIDs),
			CategoryLock: nullableString(row.CategoryLock),
			CreatedAt:    row.CreatedAt,
		})
	}

	logger.ExitMethod("orderRepository.ListPendingMoneyBacked", "count", len(orders))
	return orders, nil
}

// ApprovePending runs in its own transaction unless ctx already carries one.
// If any listed order is no longer pending nothing is approved.
func (r *orderRepository) ApprovePending(ctx context.Context, ids []string) error {
	logger.EnterMethod("orderRepository.ApprovePending", "count", len(ids))
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil
	}

	err := NewTransactor(r.db).WithTx(ctx, func(ctx context.Context) error {
		query := `UPDATE shop_orders SET status = 'approved' WHERE id = ANY($1) AND status = 'pending'`
		logger.DatabaseCall("ApprovePending", query, "count", len(unique))
		res, err := queryer(ctx, r.db).ExecContext(ctx, query, pq.Array(unique))
		if err != nil {
			logger.DatabaseResult("ApprovePending", 0, err)
			return fmt.Errorf("approve orders: %w", err)
		}
		n, err := res.RowsAffected()
		logger.DatabaseResult("ApprovePending", n, err)
		if err != nil {
			return fmt.Errorf("approve orders: %w", err)
		}
		if n != int64(len(unique)) {
			return fmt.Errorf("%w: approved %d of %d", domain.ErrOrderStateChanged, n, len(unique))
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("orderRepository.ApprovePending", err)
		return err
	}

	logger.ExitMethod("orderRepository.ApprovePending", "approved", len(unique))
	return nil
}

func (r *orderRepository) ListUnmirrored(ctx context.Context, limit int) ([]domain.ShopOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM shop_orders WHERE record_store_id IS NULL ORDER BY created_at LIMIT $1`
	orders := []domain.ShopOrder{}
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &orders, query, limit); err != nil {
		return nil, fmt.Errorf("list unmirrored orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) SetRecordStoreID(ctx context.Context, id, recordID string) error {
	res, err := queryer(ctx, r.db).ExecContext(ctx, `UPDATE shop_orders SET record_store_id = $1 WHERE id = $2`, recordID, id)
	if err != nil {
		return fmt.Errorf("set order record id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
