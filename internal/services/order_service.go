// Package services – OrderService
//
// Credit purchase orders. Creation is idempotent per (user, key); payment
// is simulated only outside production, crediting the wallet through the
// same exactly-once ledger path as every other credit mutation.

package services

import (
	"context"
	"errors"
	"fmt"
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

// creditPackages maps package size (credits) to its fixed TWD price.
var creditPackages = map[int]int{
	1: 168,
	3: 358,
	5: 518,
}

// OrderResult reports one order lookup or creation. Created is false when
// the order was replayed from an earlier attempt under the same key.
type OrderResult struct {
	Order   *domain.Order
	Created bool
}

// OrderService owns the purchase order lifecycle.
type OrderService struct {
	DB     *gorm.DB
	Ledger *CreditLedger

	// Production disables the simulated payment path entirely.
	Production bool
}

// Create places an order for one of the fixed credit packages. A retried
// creation under the same key returns the existing order instead of a
// second one.
func (s *OrderService) Create(ctx context.Context, userID string, packageSize int, key string) (*OrderResult, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("package.size", packageSize),
		),
	)
	defer span.End()

	amount, ok := creditPackages[packageSize]
	if !ok {
		return nil, ErrInvalidPackage
	}

	key = strings.TrimSpace(key)
	if utf8.RuneCountInString(key) > maxIdempotencyKeyLen {
		return nil, ErrKeyTooLong
	}
	if key == "" {
		key = uuid.NewString()
	}

	// Find-first keeps the common retry cheap; the unique index stays the
	// guard for the race between two concurrent creations.
	if prior, err := repo.GetOrderByKey(ctx, s.DB, userID, key); err == nil {
		return &OrderResult{Order: prior, Created: false}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	o := &domain.Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		PackageSize:    packageSize,
		AmountTWD:      amount,
		Status:         domain.OrderPending,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	err := repo.CreateOrder(ctx, s.DB, o)
	if errors.Is(err, repo.ErrDuplicate) {
		prior, gerr := repo.GetOrderByKey(ctx, s.DB, userID, key)
		if gerr != nil {
			return nil, ErrOrderConflict
		}
		return &OrderResult{Order: prior, Created: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: o, Created: true}, nil
}

// Get returns the user's order by id, or ErrOrderNotFound.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// SimulatePaid marks a pending order as paid and credits its package size
// to the wallet. The purchase ledger row keyed "order:<id>:purchase" makes
// the credit exactly-once even when two simulate calls race; a replayed
// call on an already paid order returns the current state unchanged.
func (s *OrderService) SimulatePaid(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "SimulatePaid",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("order.id", orderID),
		),
	)
	defer span.End()

	if s.Production {
		return nil, ErrForbiddenInProduction
	}

	o, err := repo.GetOrder(ctx, s.DB, orderID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	switch o.Status {
	case domain.OrderPaid:
		return o, nil
	case domain.OrderPending:
		// proceed
	default:
		return nil, ErrOrderNotPayable
	}

	purchaseKey := fmt.Sprintf("order:%s:purchase", o.ID)
	_, _, err = s.Ledger.Credit(ctx, repo.Effect{
		UserID:         userID,
		OrderID:        &o.ID,
		Action:         domain.ActionPurchase,
		Amount:         o.PackageSize,
		ReasonCode:     ReasonOrderPaid,
		IdempotencyKey: purchaseKey,
		RequestID:      uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := repo.MarkOrderPaid(ctx, s.DB, o.ID, now); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return repo.GetOrder(ctx, s.DB, orderID, userID)
}
