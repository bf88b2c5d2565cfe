package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/service"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) GetLedgerSummary(ctx context.Context, userID string) (*domain.LedgerSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerSummary), args.Error(1)
}

func (m *MockLedgerService) ListEntries(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerService) CreditTokens(ctx context.Context, userID string, tokens int64, memo string, submissionID *string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, userID, tokens, memo, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerService) RevokeSubmissionEntry(ctx context.Context, submissionID, reason string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, submissionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) ReserveOrder(ctx context.Context, userID, shopItemID string) (*domain.ReserveResult, error) {
	args := m.Called(ctx, userID, shopItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReserveResult), args.Error(1)
}

func (m *MockOrderService) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, memo *string) (*domain.ShopOrder, error) {
	args := m.Called(ctx, orderID, status, memo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopOrder), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID string) (*domain.ShopOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopOrder), args.Error(1)
}

func (m *MockOrderService) ListUserOrders(ctx context.Context, userID string) ([]domain.ShopOrder, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.ShopOrder), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.ShopOrder, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]domain.ShopOrder), args.Error(1)
}

type MockGrantService struct {
	mock.Mock
}

func (m *MockGrantService) PlanGrants(ctx context.Context, opts service.PlanOptions) (*domain.AllocationPlan, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AllocationPlan), args.Error(1)
}

func (m *MockGrantService) Disburse(ctx context.Context, alloc domain.GrantAllocation) (*domain.GrantResult, error) {
	args := m.Called(ctx, alloc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GrantResult), args.Error(1)
}

func (m *MockGrantService) RunDisbursementBatch(ctx context.Context, plan *domain.AllocationPlan) *domain.DisbursementSummary {
	return m.Called(ctx, plan).Get(0).(*domain.DisbursementSummary)
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.User), args.Error(1)
}
