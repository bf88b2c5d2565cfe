package disbursement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
)

// Client creates spending grants with the disbursement provider.
// Implementations: HCBClient (HTTP API) and MockClient (in-memory).
type Client interface {
	// CreateGrant issues one card grant. It is not idempotent on the provider side.
	CreateGrant(ctx context.Context, req domain.GrantRequest) (*domain.GrantResult, error)

	// OrganizationBalance returns the funds available for grants, in dollars.
	OrganizationBalance(ctx context.Context) (decimal.Decimal, error)
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hcb %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return domain.ErrExternalService
}
