// Package services – CreditLedger
//
// This file implements CreditLedger, the shared primitive every credit
// mutation goes through. It owns the per-user wallet locks and wraps the
// balance update plus the ledger append in a single DB transaction, so a
// reserve, refund, grant or purchase is either fully recorded or absent.
//
// SQLite has no row-level SELECT ... FOR UPDATE, so wallet mutations for a
// given user are serialized with an in-process keyed mutex instead. The
// unique (user_id, action, idempotency_key) index on the ledger remains the
// cross-process idempotency guard.

package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Ledger reason codes written to credit_transactions.reason_code.
const (
	ReasonAskReserved   = "ASK_RESERVED"
	ReasonAskCaptured   = "ASK_CAPTURED"
	ReasonAskRefunded   = "ASK_REFUNDED"
	ReasonAskReconciled = "ASK_RECONCILED"
	ReasonOrderPaid     = "ORDER_PAID"
	ReasonDevGrant      = "DEV_GRANT"
)

// CreditLedger serializes wallet mutations per user and records them in the
// append-only credit ledger.
type CreditLedger struct {
	DB *gorm.DB

	// Cost is the credit price of one ask. Zero means the default of 1.
	Cost int

	locks    *walletLocks
	inflight *inflightKeys
}

// NewCreditLedger builds a ledger over db with the given per-ask cost.
func NewCreditLedger(db *gorm.DB, cost int) *CreditLedger {
	return &CreditLedger{DB: db, Cost: cost, locks: newWalletLocks(), inflight: newInflightKeys()}
}

// EnterInflight registers an ask attempt for (userID, key) in this process.
// The returned func must be called when the attempt reaches a terminal
// outcome. While two attempts share a key, the later one must report a
// conflict; once no local attempt owns the key, a held reservation without
// a terminal effect belongs to a dead process and may be adopted.
func (l *CreditLedger) EnterInflight(userID, key string) func() {
	return l.inflight.enter(userID + "\x00" + key)
}

// InflightShared reports whether more than one local attempt currently
// holds (userID, key).
func (l *CreditLedger) InflightShared(userID, key string) bool {
	return l.inflight.shared(userID + "\x00" + key)
}

// AskCost returns the effective credit price of one ask.
func (l *CreditLedger) AskCost() int {
	if l.Cost > 0 {
		return l.Cost
	}
	return 1
}

// Reserve debits the ask cost from the user's wallet and appends the
// matching "reserve" row, atomically. It returns ErrInsufficientCredit when
// the balance cannot cover the cost, and repo.ErrDuplicate when a reserve
// with the same key was already recorded (the caller re-reads and branches).
func (l *CreditLedger) Reserve(ctx context.Context, userID, key, requestID string) error {
	tr := otel.Tracer("services/CreditLedger")
	ctx, span := tr.Start(ctx, "Reserve",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	unlock := l.locks.lock(userID)
	defer unlock()

	cost := l.AskCost()
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := repo.GetOrCreateWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		if w.Balance < cost {
			return ErrInsufficientCredit
		}
		if err := repo.AddToWalletBalance(ctx, tx, userID, -cost); err != nil {
			return err
		}
		_, err = repo.RecordEffect(ctx, tx, repo.Effect{
			UserID:         userID,
			Action:         domain.ActionReserve,
			Amount:         -cost,
			ReasonCode:     ReasonAskReserved,
			IdempotencyKey: key,
			RequestID:      requestID,
		})
		return err
	})
}

// RefundReservation is the compensating half of a failed ask: it credits the
// reserved cost back and appends a "refund" row under the same key. A refund
// that already exists for (user, key) makes the call a no-op, so concurrent
// compensation paths and the reconciliation sweep never double-refund.
func (l *CreditLedger) RefundReservation(ctx context.Context, userID, key, requestID, reason string, questionID *string) error {
	tr := otel.Tracer("services/CreditLedger")
	ctx, span := tr.Start(ctx, "RefundReservation",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("reason", reason),
		),
	)
	defer span.End()

	unlock := l.locks.lock(userID)
	defer unlock()

	cost := l.AskCost()
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A terminal effect under this key, refund or capture, means the
		// reservation was already settled; refunding again would double-pay.
		for _, action := range []string{domain.ActionRefund, domain.ActionCapture} {
			if _, err := repo.GetEffect(ctx, tx, userID, action, key); err == nil {
				return repo.ErrDuplicate
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}
		if _, err := repo.GetOrCreateWallet(ctx, tx, userID); err != nil {
			return err
		}
		if err := repo.AddToWalletBalance(ctx, tx, userID, cost); err != nil {
			return err
		}
		_, err := repo.RecordEffect(ctx, tx, repo.Effect{
			UserID:         userID,
			QuestionID:     questionID,
			Action:         domain.ActionRefund,
			Amount:         cost,
			ReasonCode:     reason,
			IdempotencyKey: key,
			RequestID:      requestID,
		})
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Credit applies a positive wallet effect (grant or purchase) exactly once.
// The returned bool reports whether this call applied the credit; false
// means an effect with the same (user, action, key) was already recorded.
func (l *CreditLedger) Credit(ctx context.Context, e repo.Effect) (*domain.CreditTransaction, bool, error) {
	tr := otel.Tracer("services/CreditLedger")
	ctx, span := tr.Start(ctx, "Credit",
		trace.WithAttributes(
			attribute.String("user.id", e.UserID),
			attribute.String("action", e.Action),
			attribute.Int("amount", e.Amount),
		),
	)
	defer span.End()

	unlock := l.locks.lock(e.UserID)
	defer unlock()

	var recorded *domain.CreditTransaction
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetOrCreateWallet(ctx, tx, e.UserID); err != nil {
			return err
		}
		if err := repo.AddToWalletBalance(ctx, tx, e.UserID, e.Amount); err != nil {
			return err
		}
		row, err := repo.RecordEffect(ctx, tx, e)
		if err != nil {
			return err
		}
		recorded = row
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		prior, gerr := repo.GetEffect(ctx, l.DB, e.UserID, e.Action, e.IdempotencyKey)
		if gerr != nil {
			return nil, false, gerr
		}
		return prior, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return recorded, true, nil
}
