package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/recordstore"
)

// passthroughTx runs fn directly; tests that need real locking use memStore.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
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

type MockShopItemRepo struct {
	mock.Mock
}

func (m *MockShopItemRepo) GetByID(ctx context.Context, id string) (*domain.ShopItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopItem), args.Error(1)
}

func (m *MockShopItemRepo) GetForUpdate(ctx context.Context, id string) (*domain.ShopItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopItem), args.Error(1)
}

func (m *MockShopItemRepo) SetRecordStoreID(ctx context.Context, id, recordID string) error {
	return m.Called(ctx, id, recordID).Error(0)
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) GetBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepo) GetBalanceForUpdate(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepo) GetSummary(ctx context.Context, userID string) (*domain.LedgerSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerSummary), args.Error(1)
}

func (m *MockLedgerRepo) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockLedgerRepo) ListEntries(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepo) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepo) Revoke(ctx context.Context, id, memo string) error {
	return m.Called(ctx, id, memo).Error(0)
}

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Create(ctx context.Context, order *domain.ShopOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, id string) (*domain.ShopOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopOrder), args.Error(1)
}

func (m *MockOrderRepo) GetForUpdate(ctx context.Context, id string) (*domain.ShopOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopOrder), args.Error(1)
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, memo *string) error {
	return m.Called(ctx, id, status, memo).Error(0)
}

func (m *MockOrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.ShopOrder, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.ShopOrder), args.Error(1)
}

func (m *MockOrderRepo) List(ctx context.Context, status *domain.OrderStatus) ([]domain.ShopOrder, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]domain.ShopOrder), args.Error(1)
}

func (m *MockOrderRepo) ListPendingMoneyBacked(ctx context.Context) ([]domain.PendingGrantOrder, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.PendingGrantOrder), args.Error(1)
}

func (m *MockOrderRepo) ApprovePending(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockOrderRepo) ListUnmirrored(ctx context.Context, limit int) ([]domain.ShopOrder, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.ShopOrder), args.Error(1)
}

func (m *MockOrderRepo) SetRecordStoreID(ctx context.Context, id, recordID string) error {
	return m.Called(ctx, id, recordID).Error(0)
}

type MockMirrorService struct {
	mock.Mock
}

func (m *MockMirrorService) MirrorOrder(ctx context.Context, orderID string, newReservation bool) error {
	return m.Called(ctx, orderID, newReservation).Error(0)
}

func (m *MockMirrorService) RetryUnmirrored(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendOrderStatusEmail(ctx context.Context, to string, n OrderNotification) error {
	return m.Called(ctx, to, n).Error(0)
}

type MockGrantClient struct {
	mock.Mock
}

func (m *MockGrantClient) CreateGrant(ctx context.Context, req domain.GrantRequest) (*domain.GrantResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GrantResult), args.Error(1)
}

func (m *MockGrantClient) OrganizationBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) ApprovedEmails(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockRecordStore) UpsertOrder(ctx context.Context, rec recordstore.OrderRecord, existingID *string) (string, error) {
	args := m.Called(ctx, rec, existingID)
	return args.String(0), args.Error(1)
}

func (m *MockRecordStore) FindShopItemRecordID(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockRecordStore) AddPointsRedeemed(ctx context.Context, userRecordID string, points int64) error {
	return m.Called(ctx, userRecordID, points).Error(0)
}

func strPtr(s string) *string {
	return &s
}
