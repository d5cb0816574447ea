// Package services – CreditService
//
// Read views over the wallet and the credit ledger, plus the dev/ops grant
// entry point. All queries are scoped to the calling user.

package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Balance is the wallet snapshot for one user. UpdatedAt is nil when the
// user has never had a credit-affecting operation.
type Balance struct {
	UserID    string     `json:"user_id"`
	Balance   int        `json:"balance"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GrantResult reports one grant attempt. Applied is false when an earlier
// grant under the same key already credited the wallet.
type GrantResult struct {
	Transaction *domain.CreditTransaction
	Applied     bool
}

// CreditService exposes wallet and ledger reads and the idempotent grant.
type CreditService struct {
	DB     *gorm.DB
	Ledger *CreditLedger
}

// Balance returns the user's current wallet snapshot. A user without a
// wallet row reads as zero credits rather than an error.
func (s *CreditService) Balance(ctx context.Context, userID string) (*Balance, error) {
	tr := otel.Tracer("services/CreditService")
	ctx, span := tr.Start(ctx, "Balance",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	w, err := repo.GetWallet(ctx, s.DB, userID)
	if err != nil {
		if err == repo.ErrNotFound {
			return &Balance{UserID: userID, Balance: 0}, nil
		}
		return nil, err
	}
	updated := w.UpdatedAt
	return &Balance{UserID: userID, Balance: w.Balance, UpdatedAt: &updated}, nil
}

// Transactions returns one page of the user's ledger, newest first, plus
// the total row count for pagination.
func (s *CreditService) Transactions(ctx context.Context, userID string, limit, offset int) ([]domain.CreditTransaction, int64, error) {
	tr := otel.Tracer("services/CreditService")
	ctx, span := tr.Start(ctx, "Transactions",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	total, err := repo.CountTransactions(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CreditTransaction{}, 0, nil
	}

	items, err := repo.ListTransactionsPage(ctx, s.DB, userID, offset, limit)
	return items, total, err
}

// Grant credits the user's wallet exactly once per key. It exists for
// development and operational top-ups; the handler layer keeps it out of
// production deployments.
func (s *CreditService) Grant(ctx context.Context, userID string, amount int, key, reason string) (*GrantResult, error) {
	tr := otel.Tracer("services/CreditService")
	ctx, span := tr.Start(ctx, "Grant",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("amount", amount),
		),
	)
	defer span.End()

	if amount <= 0 {
		return nil, ErrInvalidGrantAmount
	}
	key = strings.TrimSpace(key)
	if utf8.RuneCountInString(key) > maxIdempotencyKeyLen {
		return nil, ErrKeyTooLong
	}
	if key == "" {
		key = uuid.NewString()
	}
	if strings.TrimSpace(reason) == "" {
		reason = ReasonDevGrant
	}

	row, applied, err := s.Ledger.Credit(ctx, repo.Effect{
		UserID:         userID,
		Action:         domain.ActionGrant,
		Amount:         amount,
		ReasonCode:     reason,
		IdempotencyKey: key,
		RequestID:      uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return &GrantResult{Transaction: row, Applied: applied}, nil
}
