package service

import (
	"context"
	"fmt"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/recordstore"
	"tokenshop-backend/internal/repository"
)

type mirrorService struct {
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	itemRepo    repository.ShopItemRepository
	records     recordstore.Client
	trackPoints bool
}

// NewMirrorService mirrors orders into the record store. With trackPoints set,
// a new reservation also increments the user's "Points Redeemed" counter.
func NewMirrorService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	itemRepo repository.ShopItemRepository,
	records recordstore.Client,
	trackPoints bool,
) MirrorService {
	return &mirrorService{
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		itemRepo:    itemRepo,
		records:     records,
		trackPoints: trackPoints,
	}
}

func (s *mirrorService) MirrorOrder(ctx context.Context, orderID string, newReservation bool) error {
	m, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	log := logger.WithOrder(m.Order.ID, m.Order.UserID)

	rec := recordstore.OrderRecord{
		ItemName:         m.Item.Name,
		Email:            m.User.Email,
		UserRecordID:     m.User.RecordStoreID,
		ShopItemRecordID: s.itemRecordID(ctx, m.Item),
		PriceAtOrder:     m.Order.PriceAtOrder,
		Status:           m.Order.Status,
	}

	recordID, err := s.records.UpsertOrder(ctx, rec, m.Order.RecordStoreID)
	if err != nil {
		return fmt.Errorf("failed to mirror order %s: %w", m.Order.ID, err)
	}
	if recordID != "" && m.Order.RecordStoreID == nil {
		if err := s.orderRepo.SetRecordStoreID(ctx, m.Order.ID, recordID); err != nil {
			log.Warn("Failed to save order record id", "record_id", recordID, "error", err)
		}
	}

	if newReservation && s.trackPoints && m.User.RecordStoreID != nil {
		if err := s.records.AddPointsRedeemed(ctx, *m.User.RecordStoreID, m.Order.PriceAtOrder); err != nil {
			return fmt.Errorf("failed to update points redeemed: %w", err)
		}
	}

	log.Debug("Order mirrored", "status", m.Order.Status, "record_id", recordID)
	return nil
}

// RetryUnmirrored mirrors orders that never received a record id. It returns
// how many succeeded; individual failures are logged and skipped.
func (s *mirrorService) RetryUnmirrored(ctx context.Context, limit int) (int, error) {
	orders, err := s.orderRepo.ListUnmirrored(ctx, limit)
	if err != nil {
		return 0, err
	}

	mirrored := 0
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return mirrored, err
		}
		if err := s.MirrorOrder(ctx, o.ID, false); err != nil {
			logger.Warn("Order mirror retry failed", "order_id", o.ID, "error", err)
			continue
		}
		mirrored++
	}
	return mirrored, nil
}

func (s *mirrorService) load(ctx context.Context, orderID string) (*domain.OrderMirror, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	item, err := s.itemRepo.GetByID(ctx, order.ShopItemID)
	if err != nil {
		return nil, err
	}
	return &domain.OrderMirror{Order: order, User: user, Item: item}, nil
}

// itemRecordID returns the item's record id, looking it up by name and caching
// it on the item the first time. A failed lookup leaves the link empty.
func (s *mirrorService) itemRecordID(ctx context.Context, item *domain.ShopItem) *string {
	if item.RecordStoreID != nil {
		return item.RecordStoreID
	}
	id, err := s.records.FindShopItemRecordID(ctx, item.Name)
	if err != nil {
		logger.Warn("Shop item record lookup failed", "shop_item_id", item.ID, "error", err)
		return nil
	}
	if id == "" {
		return nil
	}
	if err := s.itemRepo.SetRecordStoreID(ctx, item.ID, id); err != nil {
		logger.Warn("Failed to cache shop item record id", "shop_item_id", item.ID, "error", err)
	}
	return &id
}
