package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tokenshop-backend/internal/disbursement"
	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/recordstore"
	"tokenshop-backend/internal/repository"
	"tokenshop-backend/internal/utils"
)

type grantService struct {
	orderRepo repository.OrderRepository
	userRepo  repository.UserRepository
	client    disbursement.Client
	records   recordstore.Client
	mirror    MirrorService
	emailSvc  EmailService
	effects   SideEffects
	limiter   *rate.Limiter
}

// NewGrantService wires grant planning and disbursement. Consecutive grant
// creations are spaced by at least delay; zero disables pacing.
func NewGrantService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	client disbursement.Client,
	records recordstore.Client,
	mirror MirrorService,
	emailSvc EmailService,
	effects SideEffects,
	delay time.Duration,
) GrantService {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &grantService{
		orderRepo: orderRepo,
		userRepo:  userRepo,
		client:    client,
		records:   records,
		mirror:    mirror,
		emailSvc:  emailSvc,
		effects:   effects,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// PlanGrants builds an allocation plan from the live pending money-backed
// orders. It has no side effects.
func (s *grantService) PlanGrants(ctx context.Context, opts PlanOptions) (*domain.AllocationPlan, error) {
	logger.EnterMethod("grantService.PlanGrants", "approvedOnly", opts.ApprovedOnly)

	if opts.Budget != nil && opts.Budget.IsNegative() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidBudget, opts.Budget.String())
	}

	orders, err := s.orderRepo.ListPendingMoneyBacked(ctx)
	if err != nil {
		logger.ExitMethodWithError("grantService.PlanGrants", err)
		return nil, err
	}

	users, err := s.resolveUsers(ctx, orders)
	if err != nil {
		logger.ExitMethodWithError("grantService.PlanGrants", err)
		return nil, err
	}

	var approved map[string]struct{}
	if opts.ApprovedOnly {
		approved, err = s.records.ApprovedEmails(ctx)
		if err != nil {
			logger.ExitMethodWithError("grantService.PlanGrants", err)
			return nil, fmt.Errorf("failed to load approved submissions: %w", err)
		}
	}

	var budget decimal.Decimal
	if opts.Budget != nil {
		budget = *opts.Budget
	} else {
		budget, err = s.client.OrganizationBalance(ctx)
		if err != nil {
			logger.ExitMethodWithError("grantService.PlanGrants", err)
			return nil, fmt.Errorf("failed to read organization balance: %w", err)
		}
	}

	plan, err := utils.OptimizeAllocations(utils.AllocationInput{
		Budget:         budget,
		Orders:         orders,
		Users:          users,
		ApprovedEmails: approved,
	})
	if err != nil {
		logger.ExitMethodWithError("grantService.PlanGrants", err)
		return nil, err
	}

	if len(plan.DroppedOrderIDs) > 0 {
		logger.Warn("Pending orders dropped, user not found", "order_ids", plan.DroppedOrderIDs)
	}
	logger.Info("Grant plan built",
		"pending_orders", len(orders),
		"budget", utils.FormatDollars(plan.Budget),
		"allocations", len(plan.Allocations),
		"unallocated", len(plan.Unallocated),
		"filtered_out", plan.FilteredOut,
		"total_allocated", utils.FormatDollars(plan.TotalAllocated),
	)
	logger.ExitMethod("grantService.PlanGrants")
	return plan, nil
}

func (s *grantService) resolveUsers(ctx context.Context, orders []domain.PendingGrantOrder) (map[string]domain.User, error) {
	seen := make(map[string]struct{}, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.UserID]; ok {
			continue
		}
		seen[o.UserID] = struct{}{}
		ids = append(ids, o.UserID)
	}

	users := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	list, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}

// Disburse issues the grant for one allocation and approves its orders.
// Orders are re-checked first so a stale plan never pays for an order that has
// since been rejected. If the grant is created but the approval fails, both the
// result and the error are returned.
func (s *grantService) Disburse(ctx context.Context, alloc domain.GrantAllocation) (*domain.GrantResult, error) {
	g := alloc.Group
	log := logger.WithComponent("grants").With("user_id", g.UserID, "shop_item_id", g.ShopItemID)

	for _, id := range g.OrderIDs {
		o, err := s.orderRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status != domain.OrderStatusPending {
			return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderStateChanged, id, o.Status)
		}
	}

	logger.ExternalServiceCall("hcb", "CreateGrant", "email", alloc.Request.Email, "amount_cents", alloc.Request.AmountCents)
	res, err := s.client.CreateGrant(ctx, alloc.Request)
	logger.ExternalServiceResult("hcb", "CreateGrant", err)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.ApprovePending(ctx, g.OrderIDs); err != nil {
		log.Error("Grant created but orders were not approved, reconcile manually",
			"grant_id", res.ID, "order_ids", g.OrderIDs, "error", err)
		return res, fmt.Errorf("grant %s created but orders not approved: %w", res.ID, err)
	}

	memo := fmt.Sprintf("Grant of %s issued for %dx %s", utils.FormatDollars(g.TotalCost), g.Quantity, g.ItemName)
	email := g.Email
	s.effects.Dispatch(ctx, "grant_approval_email", func(ctx context.Context) error {
		return s.emailSvc.SendOrderStatusEmail(ctx, email, OrderNotification{
			Status:   domain.OrderStatusApproved,
			ItemName: g.ItemName,
			OrderID:  g.OrderIDs[0],
			Memo:     memo,
		})
	})
	for _, id := range g.OrderIDs {
		orderID := id
		s.effects.Dispatch(ctx, "mirror_granted_order", func(ctx context.Context) error {
			return s.mirror.MirrorOrder(ctx, orderID, false)
		})
	}

	log.Info("Grant disbursed", "grant_id", res.ID, "amount_cents", res.AmountCents, "orders", len(g.OrderIDs))
	return res, nil
}

// RunDisbursementBatch disburses every allocation in plan order, one at a
// time. A failed allocation is recorded and the batch moves on.
func (s *grantService) RunDisbursementBatch(ctx context.Context, plan *domain.AllocationPlan) *domain.DisbursementSummary {
	summary := &domain.DisbursementSummary{
		Total:           len(plan.Allocations),
		SucceededAmount: decimal.Zero,
		FailedAmount:    decimal.Zero,
		Outcomes:        make([]domain.GrantOutcome, 0, len(plan.Allocations)),
	}

	for _, alloc := range plan.Allocations {
		outcome := domain.GrantOutcome{Allocation: alloc}

		if err := s.limiter.Wait(ctx); err != nil {
			outcome.Error = err.Error()
		} else {
			res, err := s.Disburse(ctx, alloc)
			outcome.Result = res
			if err != nil {
				outcome.Error = err.Error()
			}
		}

		if outcome.Succeeded() {
			summary.Succeeded++
			summary.OrdersApproved += len(alloc.Group.OrderIDs)
			summary.SucceededAmount = summary.SucceededAmount.Add(alloc.Group.TotalCost)
		} else {
			summary.Failed++
			summary.FailedAmount = summary.FailedAmount.Add(alloc.Group.TotalCost)
			if errors.Is(ctx.Err(), context.Canceled) {
				logger.Warn("Disbursement cancelled", "email", alloc.Request.Email)
			} else {
				logger.Warn("Grant disbursement failed", "email", alloc.Request.Email,
					"amount_cents", alloc.Request.AmountCents, "error", outcome.Error)
			}
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	logger.Info("Disbursement batch finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"orders_approved", summary.OrdersApproved,
		"succeeded_amount", utils.FormatDollars(summary.SucceededAmount),
	)
	return summary
}
