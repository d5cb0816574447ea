// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the credit ledger repository: wallet
// rows plus the append-only credit_transactions log.
//
// Error semantics:
//   - ErrDuplicate is returned when an effect with the same
//     (user_id, action, idempotency_key) already exists. Callers must treat
//     it as "another concurrent or prior attempt already recorded this
//     effect" and re-read the existing effect instead of failing.
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated raw.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elinhq/go-ask-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a ledger effect already exists for the
// given (user_id, action, idempotency_key) triple.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// Effect describes one ledger entry to record. Amount carries its sign
// (negative for reserve/capture, positive for refund/grant/purchase).
type Effect struct {
	UserID         string
	QuestionID     *string
	OrderID        *string
	Action         string
	Amount         int
	ReasonCode     string
	IdempotencyKey string
	RequestID      string
}

// RecordEffect appends one transaction to the credit ledger. It returns
// ErrDuplicate when the (user, action, key) triple was already recorded,
// turning the unique index into the idempotency guard. It does not touch
// the wallet balance; callers mutate balance and record the effect inside
// the same transaction.
func RecordEffect(ctx context.Context, db *gorm.DB, e Effect) (*domain.CreditTransaction, error) {
	tx := &domain.CreditTransaction{
		ID:             uuid.NewString(),
		UserID:         e.UserID,
		QuestionID:     e.QuestionID,
		OrderID:        e.OrderID,
		Action:         e.Action,
		Amount:         e.Amount,
		ReasonCode:     e.ReasonCode,
		IdempotencyKey: e.IdempotencyKey,
		RequestID:      e.RequestID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return tx, nil
}

// GetEffect fetches a prior ledger effect by (user, action, key), or
// ErrNotFound. Used to branch after an ErrDuplicate from RecordEffect.
func GetEffect(ctx context.Context, db *gorm.DB, userID, action, key string) (*domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("user_id = ? AND action = ? AND idempotency_key = ?", userID, action, key).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetOrCreateWallet returns the wallet row for userID, creating a
// zero-balance row first when none exists. The insert-or-ignore-then-read
// shape avoids the check-then-insert race on concurrent first-time access.
func GetOrCreateWallet(ctx context.Context, db *gorm.DB, userID string) (*domain.Wallet, error) {
	seed := &domain.Wallet{UserID: userID, Balance: 0, UpdatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error; err != nil && !isUniqueViolation(err) {
		return nil, err
	}
	var w domain.Wallet
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWallet returns the wallet for userID, or ErrNotFound when the user
// has never had a credit-affecting operation.
func GetWallet(ctx context.Context, db *gorm.DB, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// AddToWalletBalance shifts the wallet balance by delta and refreshes
// updated_at. The caller is responsible for holding the per-user lock and
// for having verified the resulting balance stays non-negative; the DB
// check constraint is the backstop.
func AddToWalletBalance(ctx context.Context, db *gorm.DB, userID string, delta int) error {
	res := db.WithContext(ctx).
		Model(&domain.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountTransactions returns the number of ledger rows for userID.
func CountTransactions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListTransactionsPage returns a page of the user's ledger, newest first.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CreditTransaction, error) {
	var out []domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SumCapturedByQuestion returns, per question id, the absolute sum of
// "capture" amounts for the given questions. Questions with no capture
// simply do not appear in the map.
func SumCapturedByQuestion(ctx context.Context, db *gorm.DB, userID string, questionIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}
	type row struct {
		QuestionID *string
		Total      int
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Select("question_id, SUM(amount) AS total").
		Where("user_id = ? AND action = ? AND question_id IN ?", userID, domain.ActionCapture, questionIDs).
		Group("question_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.QuestionID == nil {
			continue
		}
		total := r.Total
		if total < 0 {
			total = -total
		}
		out[*r.QuestionID] = total
	}
	return out, nil
}

// ListSettlementsForQuestions returns every capture/refund effect linked to
// the given questions, oldest first. This is the flat audit log that
// accompanies a thread detail view.
func ListSettlementsForQuestions(ctx context.Context, db *gorm.DB, userID string, questionIDs []string) ([]domain.CreditTransaction, error) {
	if len(questionIDs) == 0 {
		return []domain.CreditTransaction{}, nil
	}
	var out []domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("user_id = ? AND question_id IN ? AND action IN ?",
			userID, questionIDs, []string{domain.ActionCapture, domain.ActionRefund}).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// ListOrphanedReserves returns reserve effects created before cutoff that
// have no matching capture or refund under the same (user, key). These are
// reservations whose generation step died without reaching a terminal
// ledger effect.
func ListOrphanedReserves(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.CreditTransaction, error) {
	var out []domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("action = ? AND created_at < ?", domain.ActionReserve, cutoff).
		Where(`NOT EXISTS (
			SELECT 1 FROM credit_transactions settled
			WHERE settled.user_id = credit_transactions.user_id
			  AND settled.idempotency_key = credit_transactions.idempotency_key
			  AND settled.action IN (?, ?)
		)`, domain.ActionCapture, domain.ActionRefund).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
