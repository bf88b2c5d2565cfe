package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tokenshop-backend/internal/clock"
	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

type orderService struct {
	tx         repository.Transactor
	ledgerRepo repository.LedgerRepository
	itemRepo   repository.ShopItemRepository
	orderRepo  repository.OrderRepository
	userRepo   repository.UserRepository
	mirror     MirrorService
	emailSvc   EmailService
	effects    SideEffects
	clock      clock.Clock
	newID      func() string
}

type OrderServiceOption func(*orderService)

// WithSideEffects replaces the default asynchronous runner.
func WithSideEffects(effects SideEffects) OrderServiceOption {
	return func(s *orderService) { s.effects = effects }
}

func WithClock(c clock.Clock) OrderServiceOption {
	return func(s *orderService) { s.clock = c }
}

func WithIDGenerator(fn func() string) OrderServiceOption {
	return func(s *orderService) { s.newID = fn }
}

func NewOrderService(
	tx repository.Transactor,
	ledgerRepo repository.LedgerRepository,
	itemRepo repository.ShopItemRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	mirror MirrorService,
	emailSvc EmailService,
	opts ...OrderServiceOption,
) OrderService {
	s := &orderService{
		tx:         tx,
		ledgerRepo: ledgerRepo,
		itemRepo:   itemRepo,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		mirror:     mirror,
		emailSvc:   emailSvc,
		effects:    NewAsyncSideEffects(defaultSideEffectTimeout),
		clock:      clock.NewSystem(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReserveOrder places a pending order for one unit of the item, paying its
// current price in tokens. The balance check and insert run under the user's
// row lock so concurrent reservations cannot overdraw.
func (s *orderService) ReserveOrder(ctx context.Context, userID, shopItemID string) (*domain.ReserveResult, error) {
	logger.EnterMethod("orderService.ReserveOrder", "userID", userID, "shopItemID", shopItemID)

	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	if shopItemID == "" {
		return nil, domain.ErrInvalidID
	}

	var result *domain.ReserveResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		balance, err := s.ledgerRepo.GetBalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		item, err := s.itemRepo.GetForUpdate(ctx, shopItemID)
		if err != nil {
			return err
		}

		if balance < item.Price {
			return &domain.InsufficientBalanceError{Required: item.Price, Available: balance}
		}

		order := &domain.ShopOrder{
			ID:           s.newID(),
			UserID:       userID,
			ShopItemID:   item.ID,
			PriceAtOrder: item.Price,
			Status:       domain.OrderStatusPending,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.orderRepo.Create(ctx, order); err != nil {
			return err
		}

		result = &domain.ReserveResult{Order: order, RemainingBalance: balance - item.Price}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.ReserveOrder", err, "userID", userID)
		return nil, err
	}

	orderID := result.Order.ID
	s.effects.Dispatch(ctx, "mirror_new_order", func(ctx context.Context) error {
		return s.mirror.MirrorOrder(ctx, orderID, true)
	})

	logger.Info("Order reserved", "order_id", orderID, "user_id", userID, "shop_item_id", shopItemID,
		"price", result.Order.PriceAtOrder, "remaining", result.RemainingBalance)
	logger.ExitMethod("orderService.ReserveOrder")
	return result, nil
}

// SetOrderStatus approves or rejects a pending order. Repeating the current
// status is a no-op apart from the memo. Rejection returns the tokens to the
// balance because rejected orders no longer count against it.
func (s *orderService) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, memo *string) (*domain.ShopOrder, error) {
	logger.EnterMethod("orderService.SetOrderStatus", "orderID", orderID, "status", status)

	if orderID == "" {
		return nil, domain.ErrInvalidID
	}
	if !status.IsTerminal() {
		return nil, domain.ErrInvalidOrderStatus
	}

	var (
		order   *domain.ShopOrder
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status == status {
			if memo != nil {
				if err := s.orderRepo.UpdateStatus(ctx, order.ID, status, memo); err != nil {
					return err
				}
				order.Memo = memo
			}
			return nil
		}
		if order.Status.IsTerminal() {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStatusTransition, order.ID, order.Status)
		}

		if err := s.orderRepo.UpdateStatus(ctx, order.ID, status, memo); err != nil {
			return err
		}
		order.Status = status
		if memo != nil {
			order.Memo = memo
		}
		changed = true
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.SetOrderStatus", err, "orderID", orderID)
		return nil, err
	}

	if changed {
		updated := *order
		s.effects.Dispatch(ctx, "order_status_email", func(ctx context.Context) error {
			return s.notifyStatus(ctx, &updated)
		})
		s.effects.Dispatch(ctx, "mirror_order_status", func(ctx context.Context) error {
			return s.mirror.MirrorOrder(ctx, updated.ID, false)
		})
		logger.Info("Order status changed", "order_id", order.ID, "user_id", order.UserID, "status", status)
	}

	logger.ExitMethod("orderService.SetOrderStatus")
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.ShopOrder, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

func (s *orderService) ListUserOrders(ctx context.Context, userID string) ([]domain.ShopOrder, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.orderRepo.ListByUser(ctx, userID)
}

func (s *orderService) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.ShopOrder, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidOrderStatus, *status)
	}
	return s.orderRepo.List(ctx, status)
}

func (s *orderService) notifyStatus(ctx context.Context, order *domain.ShopOrder) error {
	user, err := s.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return err
	}
	item, err := s.itemRepo.GetByID(ctx, order.ShopItemID)
	if err != nil {
		return err
	}
	n := OrderNotification{Status: order.Status, ItemName: item.Name, OrderID: order.ID}
	if order.Memo != nil {
		n.Memo = *order.Memo
	}
	return s.emailSvc.SendOrderStatusEmail(ctx, user.Email, n)
}
