package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

const userColumns = `id, email, display_name, country, is_admin, record_store_id, created_at`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	logger.EnterMethod("userRepository.GetByID", "userID", id)

	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.ExitMethod("userRepository.GetByID", "userID", id, "found", false)
			return nil, domain.ErrUserNotFound
		}
		logger.ExitMethodWithError("userRepository.GetByID", err, "userID", id)
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	logger.ExitMethod("userRepository.GetByID", "userID", id)
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	logger.EnterMethod("userRepository.ListByIDs", "count", len(ids))
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	logger.DatabaseCall("ListUsersByIDs", query, "count", len(ids))
	users := []domain.User{}
	err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &users, query, pq.Array(ids))
	logger.DatabaseResult("ListUsersByIDs", int64(len(users)), err)
	if err != nil {
		logger.ExitMethodWithError("userRepository.ListByIDs", err)
		return nil, fmt.Errorf("list users: %w", err)
	}

	logger.ExitMethod("userRepository.ListByIDs", "found", len(users))
	return users, nil
}
