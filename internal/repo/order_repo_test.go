package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
)

func seedOrder(t *testing.T, db *gorm.DB, id, userID, key string) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:             id,
		UserID:         userID,
		PackageSize:    3,
		AmountTWD:      358,
		Status:         domain.OrderPending,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	if err := CreateOrder(context.Background(), db, o); err != nil {
		t.Fatalf("seed order %s: %v", id, err)
	}
	return o
}

func TestCreateOrder_DuplicateKey(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	seedOrder(t, db, "o1", "u1", "k1")

	dup := &domain.Order{
		ID:             "o2",
		UserID:         "u1",
		PackageSize:    1,
		AmountTWD:      168,
		Status:         domain.OrderPending,
		IdempotencyKey: "k1",
	}
	if err := CreateOrder(context.Background(), db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	// Same key under another user is a different order.
	other := &domain.Order{
		ID:             "o3",
		UserID:         "u2",
		PackageSize:    1,
		AmountTWD:      168,
		Status:         domain.OrderPending,
		IdempotencyKey: "k1",
	}
	if err := CreateOrder(context.Background(), db, other); err != nil {
		t.Fatalf("cross-user create: %v", err)
	}
}

func TestGetOrder_ScopedToUser(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	seedOrder(t, db, "o1", "u1", "k1")

	if _, err := GetOrder(context.Background(), db, "o1", "u1"); err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if _, err := GetOrder(context.Background(), db, "o1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign user err = %v, want ErrNotFound", err)
	}
}

func TestGetOrderByKey(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	seedOrder(t, db, "o1", "u1", "k1")

	got, err := GetOrderByKey(context.Background(), db, "u1", "k1")
	if err != nil {
		t.Fatalf("GetOrderByKey: %v", err)
	}
	if got.ID != "o1" {
		t.Fatalf("id = %s, want o1", got.ID)
	}
	if _, err := GetOrderByKey(context.Background(), db, "u1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key err = %v, want ErrNotFound", err)
	}
}

func TestMarkOrderPaid_KeepsFirstPaidAt(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	seedOrder(t, db, "o1", "u1", "k1")

	first := time.Now().UTC().Add(-time.Minute)
	if err := MarkOrderPaid(context.Background(), db, "o1", first); err != nil {
		t.Fatalf("first MarkOrderPaid: %v", err)
	}
	if err := MarkOrderPaid(context.Background(), db, "o1", time.Now().UTC()); err != nil {
		t.Fatalf("second MarkOrderPaid: %v", err)
	}

	got, err := GetOrder(context.Background(), db, "o1", "u1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != domain.OrderPaid || got.PaidAt == nil {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got.PaidAt.Unix() != first.Unix() {
		t.Fatalf("paid_at = %v, want first timestamp %v", got.PaidAt, first)
	}
}
