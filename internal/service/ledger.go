package service

import (
	"context"
	"errors"
	"fmt"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
)

type ledgerService struct {
	ledgerRepo repository.LedgerRepository
	userRepo   repository.UserRepository
}

func NewLedgerService(ledgerRepo repository.LedgerRepository, userRepo repository.UserRepository) LedgerService {
	return &ledgerService{ledgerRepo: ledgerRepo, userRepo: userRepo}
}

func (s *ledgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrInvalidID
	}
	return s.ledgerRepo.GetBalance(ctx, userID)
}

func (s *ledgerService) GetLedgerSummary(ctx context.Context, userID string) (*domain.LedgerSummary, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.ledgerRepo.GetSummary(ctx, userID)
}

func (s *ledgerService) ListEntries(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.ledgerRepo.ListEntries(ctx, userID)
}

// CreditTokens records earned tokens. A submission id may be credited only once.
func (s *ledgerService) CreditTokens(ctx context.Context, userID string, tokens int64, memo string, submissionID *string) (*domain.LedgerEntry, error) {
	logger.EnterMethod("ledgerService.CreditTokens", "user_id", userID, "tokens", tokens)

	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	if tokens < 0 {
		return nil, domain.ErrInvalidTokens
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		logger.ExitMethodWithError("ledgerService.CreditTokens", err)
		return nil, err
	}

	entry := &domain.LedgerEntry{
		UserID:       userID,
		Tokens:       tokens,
		Memo:         memo,
		SubmissionID: submissionID,
	}
	if err := s.ledgerRepo.CreateEntry(ctx, entry); err != nil {
		logger.ExitMethodWithError("ledgerService.CreditTokens", err)
		return nil, err
	}

	logger.Info("Tokens credited", "user_id", userID, "tokens", tokens, "entry_id", entry.ID)
	logger.ExitMethod("ledgerService.CreditTokens")
	return entry, nil
}

// RevokeSubmissionEntry zeroes the payout for a submission and marks its memo.
// Revoking an already revoked entry returns it unchanged.
func (s *ledgerService) RevokeSubmissionEntry(ctx context.Context, submissionID, reason string) (*domain.LedgerEntry, error) {
	if submissionID == "" {
		return nil, domain.ErrInvalidID
	}

	entry, err := s.ledgerRepo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	if entry.IsRevoked() {
		return entry, nil
	}

	memo := domain.RevokedMemo(entry.Memo, reason)
	if err := s.ledgerRepo.Revoke(ctx, entry.ID, memo); err != nil {
		return nil, err
	}
	entry.Tokens = 0
	entry.Memo = memo

	logger.Info("Ledger entry revoked", "entry_id", entry.ID, "submission_id", submissionID, "user_id", entry.UserID)
	return entry, nil
}
