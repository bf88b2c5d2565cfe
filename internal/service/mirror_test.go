package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/recordstore"
)

type mirrorFixture struct {
	orderRepo *MockOrderRepo
	userRepo  *MockUserRepo
	itemRepo  *MockShopItemRepo
	records   *MockRecordStore
}

func newMirrorFixture(order *domain.ShopOrder, user *domain.User, item *domain.ShopItem) *mirrorFixture {
	f := &mirrorFixture{
		orderRepo: new(MockOrderRepo),
		userRepo:  new(MockUserRepo),
		itemRepo:  new(MockShopItemRepo),
		records:   new(MockRecordStore),
	}
	f.orderRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil)
	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.itemRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	return f
}

func TestMirrorService_NewReservation(t *testing.T) {
	ctx := context.Background()
	order := &domain.ShopOrder{ID: "o1", UserID: "u1", ShopItemID: "i1", PriceAtOrder: 40, Status: domain.OrderStatusPending}
	user := &domain.User{ID: "u1", Email: "a@x.io", RecordStoreID: strPtr("recUser")}
	item := &domain.ShopItem{ID: "i1", Name: "Sticker"}
	f := newMirrorFixture(order, user, item)

	f.records.On("FindShopItemRecordID", ctx, "Sticker").Return("recItem", nil)
	f.itemRepo.On("SetRecordStoreID", ctx, "i1", "recItem").Return(nil)
	f.records.On("UpsertOrder", ctx, recordstore.OrderRecord{
		ItemName:         "Sticker",
		Email:            "a@x.io",
		UserRecordID:     strPtr("recUser"),
		ShopItemRecordID: strPtr("recItem"),
		PriceAtOrder:     40,
		Status:           domain.OrderStatusPending,
	}, (*string)(nil)).Return("recOrder", nil)
	f.orderRepo.On("SetRecordStoreID", ctx, "o1", "recOrder").Return(nil)
	f.records.On("AddPointsRedeemed", ctx, "recUser", int64(40)).Return(nil)

	svc := NewMirrorService(f.orderRepo, f.userRepo, f.itemRepo, f.records, true)
	require.NoError(t, svc.MirrorOrder(ctx, "o1", true))
	f.records.AssertExpectations(t)
	f.itemRepo.AssertExpectations(t)
	f.orderRepo.AssertExpectations(t)
}

func TestMirrorService_StatusUpdateUsesCachedIDs(t *testing.T) {
	ctx := context.Background()
	order := &domain.ShopOrder{ID: "o1", UserID: "u1", ShopItemID: "i1", PriceAtOrder: 40,
		Status: domain.OrderStatusApproved, RecordStoreID: strPtr("recOrder")}
	user := &domain.User{ID: "u1", Email: "a@x.io", RecordStoreID: strPtr("recUser")}
	item := &domain.ShopItem{ID: "i1", Name: "Sticker", RecordStoreID: strPtr("recItem")}
	f := newMirrorFixture(order, user, item)

	f.records.On("UpsertOrder", ctx, mock.MatchedBy(func(r recordstore.OrderRecord) bool {
		return r.Status == domain.OrderStatusApproved && *r.ShopItemRecordID == "recItem"
	}), strPtr("recOrder")).Return("recOrder", nil)

	svc := NewMirrorService(f.orderRepo, f.userRepo, f.itemRepo, f.records, true)
	require.NoError(t, svc.MirrorOrder(ctx, "o1", false))
	f.records.AssertNotCalled(t, "FindShopItemRecordID", mock.Anything, mock.Anything)
	f.records.AssertNotCalled(t, "AddPointsRedeemed", mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "SetRecordStoreID", mock.Anything, mock.Anything, mock.Anything)
}

func TestMirrorService_PointsTrackingDisabled(t *testing.T) {
	ctx := context.Background()
	order := &domain.ShopOrder{ID: "o1", UserID: "u1", ShopItemID: "i1", PriceAtOrder: 40, Status: domain.OrderStatusPending}
	user := &domain.User{ID: "u1", Email: "a@x.io", RecordStoreID: strPtr("recUser")}
	item := &domain.ShopItem{ID: "i1", Name: "Sticker"}
	f := newMirrorFixture(order, user, item)

	f.records.On("FindShopItemRecordID", ctx, "Sticker").Return("", nil)
	f.records.On("UpsertOrder", ctx, mock.Anything, (*string)(nil)).Return("recOrder", nil)
	f.orderRepo.On("SetRecordStoreID", ctx, "o1", "recOrder").Return(nil)

	svc := NewMirrorService(f.orderRepo, f.userRepo, f.itemRepo, f.records, false)
	require.NoError(t, svc.MirrorOrder(ctx, "o1", true))
	f.records.AssertNotCalled(t, "AddPointsRedeemed", mock.Anything, mock.Anything, mock.Anything)
	f.itemRepo.AssertNotCalled(t, "SetRecordStoreID", mock.Anything, mock.Anything, mock.Anything)
}

func TestMirrorService_UpsertFailure(t *testing.T) {
	ctx := context.Background()
	order := &domain.ShopOrder{ID: "o1", UserID: "u1", ShopItemID: "i1", Status: domain.OrderStatusPending}
	user := &domain.User{ID: "u1", Email: "a@x.io"}
	item := &domain.ShopItem{ID: "i1", Name: "Sticker", RecordStoreID: strPtr("recItem")}
	f := newMirrorFixture(order, user, item)

	f.records.On("UpsertOrder", ctx, mock.Anything, (*string)(nil)).
		Return("", &recordstore.APIError{Operation: "UpsertOrder", StatusCode: 503})

	svc := NewMirrorService(f.orderRepo, f.userRepo, f.itemRepo, f.records, true)
	err := svc.MirrorOrder(ctx, "o1", true)
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestMirrorService_RetryUnmirrored(t *testing.T) {
	ctx := context.Background()
	f := &mirrorFixture{
		orderRepo: new(MockOrderRepo),
		userRepo:  new(MockUserRepo),
		itemRepo:  new(MockShopItemRepo),
		records:   new(MockRecordStore),
	}
	f.orderRepo.On("ListUnmirrored", ctx, 50).Return([]domain.ShopOrder{{ID: "o1"}, {ID: "o2"}}, nil)
	f.orderRepo.On("GetByID", ctx, "o1").Return(&domain.ShopOrder{ID: "o1", UserID: "u1", ShopItemID: "i1"}, nil)
	f.orderRepo.On("GetByID", ctx, "o2").Return(nil, errors.New("connection reset"))
	f.userRepo.On("GetByID", ctx, "u1").Return(&domain.User{ID: "u1"}, nil)
	f.itemRepo.On("GetByID", ctx, "i1").Return(&domain.ShopItem{ID: "i1", RecordStoreID: strPtr("recItem")}, nil)
	f.records.On("UpsertOrder", ctx, mock.Anything, (*string)(nil)).Return("recOrder", nil)
	f.orderRepo.On("SetRecordStoreID", ctx, "o1", "recOrder").Return(nil)

	svc := NewMirrorService(f.orderRepo, f.userRepo, f.itemRepo, f.records, false)
	n, err := svc.RetryUnmirrored(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
