package domain

import (
	"strings"
	"time"
)

// RevokedMemoPrefix tags ledger entries whose tokens were withdrawn.
const RevokedMemoPrefix = "[REMOVED] "

// LedgerEntry is a single token credit (a "payout"). Entries are never deleted;
// revocation zeroes the tokens and tags the memo instead.
type LedgerEntry struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Tokens       int64     `json:"tokens" db:"tokens"`
	Memo         string    `json:"memo" db:"memo"`
	SubmissionID *string   `json:"submission_id,omitempty" db:"submission_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (e *LedgerEntry) IsRevoked() bool {
	return e.Tokens == 0 && strings.HasPrefix(e.Memo, RevokedMemoPrefix)
}

// RevokedMemo returns memo tagged with RevokedMemoPrefix, appending reason when given.
func RevokedMemo(memo, reason string) string {
	if !strings.HasPrefix(memo, RevokedMemoPrefix) {
		memo = RevokedMemoPrefix + memo
	}
	if reason != "" && !strings.HasSuffix(memo, "("+reason+")") {
		memo = memo + " (" + reason + ")"
	}
	return memo
}

type LedgerSummary struct {
	UserID   string `json:"user_id"`
	Earned   int64  `json:"earned"`
	Reserved int64  `json:"reserved"` // pending orders
	Spent    int64  `json:"spent"`    // approved orders
	Balance  int64  `json:"balance"`
}
