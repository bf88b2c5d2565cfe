package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenshop-backend/internal/disbursement"
	"tokenshop-backend/internal/domain"
)

type grantFixture struct {
	orderRepo *MockOrderRepo
	userRepo  *MockUserRepo
	records   *MockRecordStore
	mirror    *MockMirrorService
	emailSvc  *MockEmailService
}

func newGrantFixture() *grantFixture {
	return &grantFixture{
		orderRepo: new(MockOrderRepo),
		userRepo:  new(MockUserRepo),
		records:   new(MockRecordStore),
		mirror:    new(MockMirrorService),
		emailSvc:  new(MockEmailService),
	}
}

func (f *grantFixture) service(client disbursement.Client) GrantService {
	return NewGrantService(f.orderRepo, f.userRepo, client, f.records, f.mirror, f.emailSvc, InlineSideEffects{}, 0)
}

func grantOrder(orderID, userID, itemID, cost string) domain.PendingGrantOrder {
	return domain.PendingGrantOrder{
		OrderID:    orderID,
		UserID:     userID,
		ShopItemID: itemID,
		ItemName:   "Item " + itemID,
		USDCost:    decimal.RequireFromString(cost),
	}
}

func planFixtureOrders() []domain.PendingGrantOrder {
	return []domain.PendingGrantOrder{
		grantOrder("o1", "u1", "i1", "10"),
		grantOrder("o2", "u1", "i1", "10"),
		grantOrder("o3", "u2", "i2", "35"),
		grantOrder("o4", "u3", "i1", "5"),
	}
}

func planFixtureUsers() []domain.User {
	return []domain.User{
		{ID: "u1", Email: "one@example.com"},
		{ID: "u2", Email: "two@example.com"},
		{ID: "u3", Email: "Three@Example.com"},
	}
}

func TestGrantService_PlanGrants_ExplicitBudget(t *testing.T) {
	ctx := context.Background()
	f := newGrantFixture()
	f.orderRepo.On("ListPendingMoneyBacked", ctx).Return(planFixtureOrders(), nil)
	f.userRepo.On("ListByIDs", ctx, []string{"u1", "u2", "u3"}).Return(planFixtureUsers(), nil)

	client := new(MockGrantClient)
	budget := decimal.NewFromInt(30)
	plan, err := f.service(client).PlanGrants(ctx, PlanOptions{Budget: &budget})
	require.NoError(t, err)

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, "u3", plan.Allocations[0].Group.UserID)
	assert.Equal(t, "u1", plan.Allocations[1].Group.UserID)
	assert.Equal(t, []string{"o1", "o2"}, plan.Allocations[1].Group.OrderIDs)
	assert.Equal(t, int64(2000), plan.Allocations[1].Request.AmountCents)
	require.Len(t, plan.Unallocated, 1)
	assert.Equal(t, "u2", plan.Unallocated[0].UserID)
	assert.True(t, plan.RemainingBudget.Equal(decimal.NewFromInt(5)))
	client.AssertNotCalled(t, "OrganizationBalance", mock.Anything)
	client.AssertNotCalled(t, "CreateGrant", mock.Anything, mock.Anything)
}

func TestGrantService_PlanGrants_BudgetFromProvider(t *testing.T) {
	ctx := context.Background()
	f := newGrantFixture()
	f.orderRepo.On("ListPendingMoneyBacked", ctx).Return(planFixtureOrders(), nil)
	f.userRepo.On("ListByIDs", ctx, mock.Anything).Return(planFixtureUsers(), nil)

	plan, err := f.service(disbursement.NewMockClient(decimal.NewFromInt(100))).PlanGrants(ctx, PlanOptions{})
	require.NoError(t, err)
	assert.Len(t, plan.Allocations, 3)
	assert.True(t, plan.TotalAllocated.Equal(decimal.NewFromInt(60)))
}

func TestGrantService_PlanGrants_ApprovedOnly(t *testing.T) {
	ctx := context.Background()
	f := newGrantFixture()
	f.orderRepo.On("ListPendingMoneyBacked", ctx).Return(planFixtureOrders(), nil)
	f.userRepo.On("ListByIDs", ctx, mock.Anything).Return(planFixtureUsers(), nil)
	f.records.On("ApprovedEmails", ctx).Return(map[string]struct{}{"three@example.com": {}}, nil)

	budget := decimal.NewFromInt(1000)
	plan, err := f.service(new(MockGrantClient)).PlanGrants(ctx, PlanOptions{Budget: &budget, ApprovedOnly: true})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "u3", plan.Allocations[0].Group.UserID)
	assert.Equal(t, 3, plan.FilteredOut)
}

func TestGrantService_PlanGrants_ApprovedOnlyWithoutRecordStore(t *testing.T) {
	ctx := context.Background()
	f := newGrantFixture()
	f.orderRepo.On("ListPendingMoneyBacked", ctx).Return(planFixtureOrders(), nil)
	f.userRepo.On("ListByIDs", ctx, mock.Anything).Return(planFixtureUsers(), nil)
	f.records.On("ApprovedEmails", ctx).Return(nil, errors.New("record store is not configured"))

	budget := decimal.NewFromInt(10)
	_, err := f.service(new(MockGrantClient)).PlanGrants(ctx, PlanOptions{Budget: &budget, ApprovedOnly: true})
	assert.Error(t, err)
}

func TestGrantService_PlanGrants_NegativeBudget(t *testing.T) {
	f := newGrantFixture()
	budget := decimal.NewFromInt(-1)
	_, err := f.service(new(MockGrantClient)).PlanGrants(context.Background(), PlanOptions{Budget: &budget})
	assert.ErrorIs(t, err, domain.ErrInvalidBudget)
	f.orderRepo.AssertNotCalled(t, "ListPendingMoneyBacked", mock.Anything)
}

func TestGrantService_PlanGrants_NoPendingOrders(t *testing.T) {
	ctx := context.Background()
	f := newGrantFixture()
	f.orderRepo.On("ListPendingMoneyBacked", ctx).Return([]domain.PendingGrantOrder{}, nil)

	budget := decimal.NewFromInt(10)
	plan, err := f.service(new(MockGrantClient)).PlanGrants(ctx, PlanOptions{Budget: &budget})
	require.NoError(t, err)
	assert.Empty(t, plan.Allocations)
	f.userRepo.AssertNotCalled(t, "ListByIDs", mock.Anything, mock.Anything)
}

func allocation(userID, email string, cost int64, orderIDs ...string) domain.GrantAllocation {
	g := domain.GrantGroup{
		UserID:     userID,
		Email:      email,
		ShopItemID: "i1",
		ItemName:   "Laptop stand",
		Quantity:   len(orderIDs),
		TotalCost:  decimal.NewFromInt(cost),
		OrderIDs:   orderIDs,
	}
	return domain.GrantAllocation{
		Request: domain.GrantRequest{AmountCents: cost * 100, Email: email, Purpose: g.ItemName},
		Group:   g,
	}
}

func (f *grantFixture) expectPending(ids ...string) {
	for _, id := range ids {
		f.orderRepo.On("GetByID", mock.Anything, id).Return(&domain.ShopOrder{ID: id, Status: domain.OrderStatusPending}, nil)
	}
}

func TestGrantService_Disburse(t *testing.T) {
	ctx := context.Background()

	t.Run("ApprovesOrdersOnSuccess", func(t *testing.T) {
		f := newGrantFixture()
		f.expectPending("o1", "o2")
		f.orderRepo.On("ApprovePending", ctx, []string{"o1", "o2"}).Return(nil)
		f.emailSvc.On("SendOrderStatusEmail", mock.Anything, "a@x.io", mock.MatchedBy(func(n OrderNotification) bool {
			return n.Status == domain.OrderStatusApproved && n.OrderID == "o1" && n.ItemName == "Laptop stand"
		})).Return(nil)
		f.mirror.On("MirrorOrder", mock.Anything, "o1", false).Return(nil)
		f.mirror.On("MirrorOrder", mock.Anything, "o2", false).Return(nil)

		client := disbursement.NewMockClient(decimal.NewFromInt(100))
		res, err := f.service(client).Disburse(ctx, allocation("u1", "a@x.io", 20, "o1", "o2"))
		require.NoError(t, err)
		assert.Equal(t, int64(2000), res.AmountCents)
		assert.Len(t, client.Requests(), 1)
		f.orderRepo.AssertExpectations(t)
		f.mirror.AssertExpectations(t)
	})

	t.Run("ProviderFailureLeavesOrdersPending", func(t *testing.T) {
		f := newGrantFixture()
		f.expectPending("o1")
		client := new(MockGrantClient)
		client.On("CreateGrant", ctx, mock.Anything).Return(nil, domain.ErrExternalService)

		_, err := f.service(client).Disburse(ctx, allocation("u1", "a@x.io", 20, "o1"))
		assert.ErrorIs(t, err, domain.ErrExternalService)
		f.orderRepo.AssertNotCalled(t, "ApprovePending", mock.Anything, mock.Anything)
	})

	t.Run("StalePlanIsNotPaid", func(t *testing.T) {
		f := newGrantFixture()
		f.orderRepo.On("GetByID", mock.Anything, "o1").Return(&domain.ShopOrder{ID: "o1", Status: domain.OrderStatusRejected}, nil)
		client := new(MockGrantClient)

		_, err := f.service(client).Disburse(ctx, allocation("u1", "a@x.io", 20, "o1"))
		assert.ErrorIs(t, err, domain.ErrOrderStateChanged)
		client.AssertNotCalled(t, "CreateGrant", mock.Anything, mock.Anything)
	})

	t.Run("ApprovalFailureReturnsGrant", func(t *testing.T) {
		f := newGrantFixture()
		f.expectPending("o1")
		f.orderRepo.On("ApprovePending", ctx, []string{"o1"}).Return(domain.ErrOrderStateChanged)

		res, err := f.service(disbursement.NewMockClient(decimal.NewFromInt(100))).Disburse(ctx, allocation("u1", "a@x.io", 20, "o1"))
		assert.ErrorIs(t, err, domain.ErrOrderStateChanged)
		require.NotNil(t, res)
		f.emailSvc.AssertNotCalled(t, "SendOrderStatusEmail", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGrantService_RunDisbursementBatch_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newGrantFixture()
	f.expectPending("o1", "o2", "o3")
	f.orderRepo.On("ApprovePending", ctx, mock.Anything).Return(nil)
	f.emailSvc.On("SendOrderStatusEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.mirror.On("MirrorOrder", mock.Anything, mock.Anything, false).Return(nil)

	client := disbursement.NewMockClient(decimal.NewFromInt(100))
	client.FailFor("bad@x.io", errors.New("card holder blocked"))

	plan := &domain.AllocationPlan{Allocations: []domain.GrantAllocation{
		allocation("u1", "a@x.io", 10, "o1"),
		allocation("u2", "bad@x.io", 15, "o2"),
		allocation("u3", "c@x.io", 20, "o3"),
	}}

	summary := f.service(client).RunDisbursementBatch(ctx, plan)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.OrdersApproved)
	assert.True(t, summary.SucceededAmount.Equal(decimal.NewFromInt(30)))
	assert.True(t, summary.FailedAmount.Equal(decimal.NewFromInt(15)))
	require.Len(t, summary.Outcomes, 3)
	assert.False(t, summary.Outcomes[1].Succeeded())
	assert.Contains(t, summary.Outcomes[1].Error, "card holder blocked")
	assert.Len(t, client.Requests(), 3)
	f.orderRepo.AssertNotCalled(t, "ApprovePending", mock.Anything, []string{"o2"})
}

func TestGrantService_RunDisbursementBatch_CancelledContext(t *testing.T) {
	f := newGrantFixture()
	client := new(MockGrantClient)
	svc := NewGrantService(f.orderRepo, f.userRepo, client, f.records, f.mirror, f.emailSvc, InlineSideEffects{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := svc.RunDisbursementBatch(ctx, &domain.AllocationPlan{Allocations: []domain.GrantAllocation{
		allocation("u1", "a@x.io", 10, "o1"),
	}})
	assert.Equal(t, 1, summary.Failed)
	client.AssertNotCalled(t, "CreateGrant", mock.Anything, mock.Anything)
}
