package disbursement

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
)

// MockClient records grants in memory and draws them from a fixed balance.
// It backs the "mock" provider type for local runs and tests.
type MockClient struct {
	mu       sync.Mutex
	balance  decimal.Decimal
	failFor  map[string]error
	requests []domain.GrantRequest
}

func NewMockClient(balance decimal.Decimal) *MockClient {
	return &MockClient{balance: balance, failFor: make(map[string]error)}
}

// FailFor makes every CreateGrant for email return err.
func (m *MockClient) FailFor(email string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[strings.ToLower(email)] = err
}

func (m *MockClient) CreateGrant(ctx context.Context, req domain.GrantRequest) (*domain.GrantResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if err, ok := m.failFor[strings.ToLower(req.Email)]; ok {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	amount := decimal.New(req.AmountCents, -2)
	if amount.GreaterThan(m.balance) {
		return nil, &APIError{Operation: "CreateGrant", StatusCode: 422, Body: "insufficient organization balance"}
	}
	m.balance = m.balance.Sub(amount)

	res := &domain.GrantResult{
		ID:          "cdg_" + uuid.NewString()[:8],
		AmountCents: req.AmountCents,
		Email:       req.Email,
		Status:      "active",
	}
	logger.Info("Mock grant created", "email", req.Email, "amount_cents", req.AmountCents, "grant_id", res.ID)
	return res, nil
}

func (m *MockClient) OrganizationBalance(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

// Requests returns a copy of every CreateGrant request received.
func (m *MockClient) Requests() []domain.GrantRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.GrantRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
