package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tokenshop-backend/internal/clock"
	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

// balanceQuery recomputes the balance from the ledger and the token-holding orders.
const balanceQuery = `
	SELECT GREATEST(
		COALESCE((SELECT SUM(tokens) FROM payouts WHERE user_id = $1), 0)
		- COALESCE((SELECT SUM(price_at_order) FROM shop_orders
		            WHERE user_id = $1 AND status IN ('pending', 'approved')), 0),
		0)`

type ledgerRepository struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewLedgerRepository(db *sqlx.DB, clk clock.Clock) repository.LedgerRepository {
	return &ledgerRepository{db: db, clock: clk}
}

func (r *ledgerRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	logger.EnterMethod("ledgerRepository.GetBalance", "userID", userID)
	q := queryer(ctx, r.db)

	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		logger.ExitMethodWithError("ledgerRepository.GetBalance", err, "userID", userID)
		return 0, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		logger.ExitMethod("ledgerRepository.GetBalance", "userID", userID, "found", false)
		return 0, domain.ErrUserNotFound
	}

	balance, err := r.sumBalance(ctx, q, userID)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.GetBalance", err, "userID", userID)
		return 0, err
	}
	logger.ExitMethod("ledgerRepository.GetBalance", "userID", userID, "balance", balance)
	return balance, nil
}

// GetBalanceForUpdate takes the user row lock first and sums in a second
// statement, so the sums see every order committed before the lock was granted.
func (r *ledgerRepository) GetBalanceForUpdate(ctx context.Context, userID string) (int64, error) {
	logger.EnterMethod("ledgerRepository.GetBalanceForUpdate", "userID", userID)
	if !inTx(ctx) {
		return 0, errors.New("ledgerRepository.GetBalanceForUpdate requires a transaction")
	}
	q := queryer(ctx, r.db)

	var id string
	if err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.ExitMethod("ledgerRepository.GetBalanceForUpdate", "userID", userID, "found", false)
			return 0, domain.ErrUserNotFound
		}
		logger.ExitMethodWithError("ledgerRepository.GetBalanceForUpdate", err, "userID", userID)
		return 0, fmt.Errorf("lock user %s: %w", userID, err)
	}

	balance, err := r.sumBalance(ctx, q, userID)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.GetBalanceForUpdate", err, "userID", userID)
		return 0, err
	}
	logger.ExitMethod("ledgerRepository.GetBalanceForUpdate", "userID", userID, "balance", balance)
	return balance, nil
}

func (r *ledgerRepository) sumBalance(ctx context.Context, q sqlx.QueryerContext, userID string) (int64, error) {
	logger.DatabaseCall("SumBalance", balanceQuery, "userID", userID)
	var balance int64
	err := sqlx.GetContext(ctx, q, &balance, balanceQuery, userID)
	logger.DatabaseResult("SumBalance", 1, err)
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}

func (r *ledgerRepository) GetSummary(ctx context.Context, userID string) (*domain.LedgerSummary, error) {
	query := `
		SELECT
			COALESCE((SELECT SUM(tokens) FROM payouts WHERE user_id = u.id), 0) AS earned,
			COALESCE((SELECT SUM(price_at_order) FROM shop_orders WHERE user_id = u.id AND status = 'pending'), 0) AS reserved,
			COALESCE((SELECT SUM(price_at_order) FROM shop_orders WHERE user_id = u.id AND status = 'approved'), 0) AS spent
		FROM users u WHERE u.id = $1`

	var row struct {
		Earned   int64 `db:"earned"`
		Reserved int64 `db:"reserved"`
		Spent    int64 `db:"spent"`
	}
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("ledger summary: %w", err)
	}

	balance := row.Earned - row.Reserved - row.Spent
	if balance < 0 {
		balance = 0
	}
	return &domain.LedgerSummary{
		UserID:   userID,
		Earned:   row.Earned,
		Reserved: row.Reserved,
		Spent:    row.Spent,
		Balance:  balance,
	}, nil
}

func (r *ledgerRepository) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	logger.EnterMethod("ledgerRepository.CreateEntry", "userID", entry.UserID, "tokens", entry.Tokens)
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.Now()
	}

	query := `INSERT INTO payouts (id, user_id, tokens, memo, submission_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := queryer(ctx, r.db).ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Tokens, entry.Memo, entry.SubmissionID, entry.CreatedAt)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.CreateEntry", err, "userID", entry.UserID)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSubmission
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	logger.ExitMethod("ledgerRepository.CreateEntry", "entryID", entry.ID)
	return nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	query := `SELECT id, user_id, tokens, memo, submission_id, created_at FROM payouts WHERE user_id = $1 ORDER BY created_at DESC, id`
	entries := []domain.LedgerEntry{}
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.LedgerEntry, error) {
	query := `SELECT id, user_id, tokens, memo, submission_id, created_at FROM payouts WHERE submission_id = $1`
	var e domain.LedgerEntry
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &e, query, submissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLedgerEntryNotFound
		}
		return nil, fmt.Errorf("get ledger entry by submission: %w", err)
	}
	return &e, nil
}

// Revoke zeroes an entry's tokens and replaces its memo. The row is kept.
func (r *ledgerRepository) Revoke(ctx context.Context, id, memo string) error {
	logger.EnterMethod("ledgerRepository.Revoke", "entryID", id)
	res, err := queryer(ctx, r.db).ExecContext(ctx, `UPDATE payouts SET tokens = 0, memo = $1 WHERE id = $2`, memo, id)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.Revoke", err, "entryID", id)
		return fmt.Errorf("revoke ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrLedgerEntryNotFound
	}
	logger.ExitMethod("ledgerRepository.Revoke", "entryID", id)
	return nil
}
