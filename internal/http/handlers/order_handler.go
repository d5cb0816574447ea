// Order HTTP handlers.
//
// This file exposes credit-package purchase endpoints:
//   - POST /orders                      (place an order, idempotent per key)
//   - POST /orders/{id}/simulate-paid   (dev/test payment; forbidden in prod)
//
// Order creation is keyed by a client-supplied idempotency key in the body:
// the same (user, key) always returns the original order with 200, a fresh
// key creates with 201. Payment credits the wallet exactly once per order no
// matter how many times simulate-paid is retried.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/services"
)

//
// DTOs
//

// CreateOrderRequest is the JSON payload for placing an order.
type CreateOrderRequest struct {
	// PackageSize selects the credit bundle: 1, 3, or 5 credits.
	PackageSize int `json:"package_size" binding:"required" example:"3"`
	// IdempotencyKey dedupes retried submissions (1–128 chars).
	IdempotencyKey string `json:"idempotency_key" binding:"required,min=1,max=128" example:"order-2025-06-01-a"`
}

// SimulatePaidResponse reports the paid order and the wallet balance after
// the purchase credit landed.
type SimulatePaidResponse struct {
	Order         *domain.Order `json:"order"`
	WalletBalance int           `json:"wallet_balance"`
}

//
// Handlers
//

// PostOrder godoc
// @ID          postOrder
// @Summary     Place a credit-package order
// @Description Creates a pending order for a credit bundle. Replays of the same
// @Description idempotency key return the original order with 200 instead of 201.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       body       body    handlers.CreateOrderRequest  true  "Order payload"
//
// @Success     200  {object}  domain.Order  "Existing order replayed"
// @Success     201  {object}  domain.Order  "Order created"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid package size or key"
// @Failure     409  {object}  handlers.ErrorResponse  "Conflicting duplicate order"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders [post]
func (h *Handlers) PostOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "package_size and idempotency_key required")
		return
	}

	res, err := h.orderSvc.Create(c.Request.Context(), userID(c), req.PackageSize, strings.TrimSpace(req.IdempotencyKey))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPackage):
			fail(c, http.StatusBadRequest, ErrCodeInvalidPackageSize, "package_size must be 1, 3, or 5")
		case errors.Is(err, services.ErrKeyTooLong):
			fail(c, http.StatusBadRequest, ErrCodeInvalidIdempotencyKey, "idempotency key is too long")
		case errors.Is(err, services.ErrOrderConflict):
			fail(c, http.StatusConflict, ErrCodeOrderIdempotencyConflict, "conflicting duplicate order request")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ok(c, status, res.Order)
}

// PostOrderSimulatePaid godoc
// @ID          postOrderSimulatePaid
// @Summary     Simulate order payment (development only)
// @Description Marks a pending order as paid and credits the wallet with the
// @Description package size, exactly once per order. Retries return the same paid
// @Description order without crediting again. Forbidden in production.
// @Tags        Orders
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"          example(user123)
// @Param       id         path    string  true  "Order ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.SimulatePaidResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid order id"
// @Failure     403  {object}  handlers.ErrorResponse  "Disabled in production"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Order not payable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders/{id}/simulate-paid [post]
func (h *Handlers) PostOrderSimulatePaid(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	currentUser := userID(c)
	order, err := h.orderSvc.SimulatePaid(c.Request.Context(), currentUser, orderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbiddenInProduction):
			fail(c, http.StatusForbidden, ErrCodeForbiddenInProduction, "simulate-paid is disabled in production")
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeOrderNotFound, "order not found")
		case errors.Is(err, services.ErrOrderNotPayable):
			fail(c, http.StatusConflict, ErrCodeOrderStatusInvalid, "only pending orders can be marked as paid")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	resp := SimulatePaidResponse{Order: order}
	if b, berr := h.creditSvc.Balance(c.Request.Context(), currentUser); berr == nil {
		resp.WalletBalance = b.Balance
	}
	ok(c, http.StatusOK, resp)
}
