package recordstore

import (
	"context"
	"errors"
	"fmt"

	"tokenshop-backend/internal/domain"
)

var ErrNotConfigured = errors.New("record store is not configured")

// OrderRecord is the record-store projection of a shop order.
type OrderRecord struct {
	ItemName         string
	Email            string
	UserRecordID     *string
	ShopItemRecordID *string
	PriceAtOrder     int64
	Status           domain.OrderStatus
}

// Client mirrors shop state into the external record store and reads the
// submission review state back. Every write is best-effort from the caller's side.
type Client interface {
	// ApprovedEmails returns the lowercased emails of users with an approved submission.
	ApprovedEmails(ctx context.Context) (map[string]struct{}, error)
	// UpsertOrder creates the order record, or updates it when existingID is set.
	UpsertOrder(ctx context.Context, rec OrderRecord, existingID *string) (string, error)
	// FindShopItemRecordID returns "" when no record matches name.
	FindShopItemRecordID(ctx context.Context, name string) (string, error)
	AddPointsRedeemed(ctx context.Context, userRecordID string, points int64) error
}

type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return domain.ErrExternalService
}

// NoopClient is used when no record store is configured.
type NoopClient struct{}

func (NoopClient) ApprovedEmails(ctx context.Context) (map[string]struct{}, error) {
	return nil, ErrNotConfigured
}

func (NoopClient) UpsertOrder(ctx context.Context, rec OrderRecord, existingID *string) (string, error) {
	return "", nil
}

func (NoopClient) FindShopItemRecordID(ctx context.Context, name string) (string, error) {
	return "", nil
}

func (NoopClient) AddPointsRedeemed(ctx context.Context, userRecordID string, points int64) error {
	return nil
}
