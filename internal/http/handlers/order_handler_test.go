package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/services"
)

func TestPostOrder_CreatesThenReplays(t *testing.T) {
	order := &domain.Order{
		ID:          uuid.NewString(),
		PackageSize: 3,
		AmountTWD:   358,
		Status:      domain.OrderPending,
	}
	created := true
	h := New(stubAskSvc{}, stubHistorySvc{}, stubCreditSvc{}, stubOrderSvc{
		create: func(_ context.Context, _ string, packageSize int, key string) (*services.OrderResult, error) {
			if packageSize != 3 || key != "order-key" {
				t.Fatalf("service saw size=%d key=%q", packageSize, key)
			}
			res := &services.OrderResult{Order: order, Created: created}
			created = false
			return res, nil
		},
	}, false)
	r := newTestRouter(h)

	body := CreateOrderRequest{PackageSize: 3, IdempotencyKey: "order-key"}

	w := doJSON(t, r, http.MethodPost, "/orders", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first status=%d body=%s", w.Code, w.Body.String())
	}
	var got domain.Order
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != order.ID || got.AmountTWD != 358 {
		t.Fatalf("unexpected order: %+v", got)
	}

	// Same key replays with 200.
	w = doJSON(t, r, http.MethodPost, "/orders", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status=%d", w.Code)
	}
}

func TestPostOrder_Validation(t *testing.T) {
	h := New(stubAskSvc{}, stubHistorySvc{}, stubCreditSvc{}, stubOrderSvc{
		create: func(_ context.Context, _ string, packageSize int, _ string) (*services.OrderResult, error) {
			if packageSize == 2 {
				return nil, services.ErrInvalidPackage
			}
			return nil, services.ErrOrderConflict
		},
	}, false)
	r := newTestRouter(h)

	// Binding rejects a missing key outright.
	w := doJSON(t, r, http.MethodPost, "/orders", map[string]int{"package_size": 3}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing key status=%d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/orders", CreateOrderRequest{PackageSize: 2, IdempotencyKey: "k"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad package status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeInvalidPackageSize {
		t.Fatalf("code=%q", er.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/orders", CreateOrderRequest{PackageSize: 3, IdempotencyKey: "k"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("conflict status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeOrderIdempotencyConflict {
		t.Fatalf("code=%q", er.Code)
	}
}

func TestPostOrderSimulatePaid_Success(t *testing.T) {
	oid := uuid.NewString()
	h := New(stubAskSvc{}, stubHistorySvc{}, stubCreditSvc{
		balance: func(_ context.Context, _ string) (*services.Balance, error) {
			return &services.Balance{Balance: 8}, nil
		},
	}, stubOrderSvc{
		simulatePaid: func(_ context.Context, _, orderID string) (*domain.Order, error) {
			return &domain.Order{ID: orderID, PackageSize: 5, Status: domain.OrderPaid}, nil
		},
	}, false)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/orders/"+oid+"/simulate-paid", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var resp SimulatePaidResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order == nil || resp.Order.Status != domain.OrderPaid || resp.WalletBalance != 8 {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestPostOrderSimulatePaid_Errors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"prod", services.ErrForbiddenInProduction, http.StatusForbidden, ErrCodeForbiddenInProduction},
		{"missing", services.ErrOrderNotFound, http.StatusNotFound, ErrCodeOrderNotFound},
		{"not payable", services.ErrOrderNotPayable, http.StatusConflict, ErrCodeOrderStatusInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(stubAskSvc{}, stubHistorySvc{}, stubCreditSvc{}, stubOrderSvc{
				simulatePaid: func(_ context.Context, _, _ string) (*domain.Order, error) {
					return nil, tc.err
				},
			}, false)
			r := newTestRouter(h)

			w := doJSON(t, r, http.MethodPost, "/orders/"+uuid.NewString()+"/simulate-paid", nil, nil)
			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d", w.Code, tc.wantStatus)
			}
			if er := decodeError(t, w); er.Code != tc.wantCode {
				t.Fatalf("code=%q, want %q", er.Code, tc.wantCode)
			}
		})
	}

	// Bad order id short-circuits before the service.
	r := newTestRouter(newStubHandlers(false))
	w := doJSON(t, r, http.MethodPost, "/orders/nope/simulate-paid", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", w.Code)
	}
}
