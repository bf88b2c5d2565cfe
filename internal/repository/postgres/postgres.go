package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tokenshop-backend/internal/clock"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

const uniqueViolation = "23505"

type txKey struct{}

// Store bundles every repository over a single connection pool.
type Store struct {
	db *sqlx.DB
	repository.Transactor
	repository.UserRepository
	repository.ShopItemRepository
	repository.LedgerRepository
	repository.OrderRepository
}

func NewStore(db *sqlx.DB, clk clock.Clock) *Store {
	return &Store{
		db:                 db,
		Transactor:         NewTransactor(db),
		UserRepository:     NewUserRepository(db),
		ShopItemRepository: NewShopItemRepository(db),
		LedgerRepository:   NewLedgerRepository(db, clk),
		OrderRepository:    NewOrderRepository(db),
	}
}

// DB exposes the pool for health checks and migrations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

type transactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) repository.Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("Failed to roll back transaction", "error", rbErr)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queryer returns the transaction carried by ctx, or the pool.
func queryer(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
