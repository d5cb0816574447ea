// Credit HTTP handlers.
//
// This file exposes wallet endpoints:
//   - GET  /credits/balance        (current balance, zero for fresh users)
//   - GET  /credits/transactions   (paginated ledger, newest first)
//   - POST /credits/grant          (idempotent top-up; disabled in production)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/services"
)

//
// DTOs
//

// CreditBalanceResponse is the wallet snapshot envelope. UpdatedAt is null
// until the first credit-affecting operation.
type CreditBalanceResponse struct {
	Balance   int     `json:"balance"`
	UpdatedAt *string `json:"updated_at"`
}

// CreditTransactionsResponse wraps a ledger page plus the total row count.
type CreditTransactionsResponse struct {
	Items []domain.CreditTransaction `json:"items"`
	Total int64                      `json:"total"`
}

// GrantCreditsRequest is the JSON payload for a development top-up.
type GrantCreditsRequest struct {
	// Amount is the number of credits to add (must be positive).
	Amount int `json:"amount" binding:"required" example:"5"`
	// IdempotencyKey dedupes retried grants; optional.
	IdempotencyKey string `json:"idempotency_key" example:"grant-2025-06-01"`
	// Reason overrides the default DEV_GRANT reason code; optional.
	Reason string `json:"reason" example:"DEV_GRANT"`
}

// GrantCreditsResponse reports a grant outcome. Applied is false when the
// same key already credited the wallet earlier.
type GrantCreditsResponse struct {
	Transaction *domain.CreditTransaction `json:"transaction"`
	Applied     bool                      `json:"applied"`
}

//
// Handlers
//

// GetCreditBalance godoc
// @ID          getCreditBalance
// @Summary     Get wallet balance
// @Description Returns the user's current credit balance. Users without a wallet
// @Description read as zero with a null updated_at.
// @Tags        Credits
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
//
// @Success     200  {object}  handlers.CreditBalanceResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credits/balance [get]
func (h *Handlers) GetCreditBalance(c *gin.Context) {
	b, err := h.creditSvc.Balance(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	resp := CreditBalanceResponse{Balance: b.Balance}
	if b.UpdatedAt != nil {
		s := b.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.UpdatedAt = &s
	}
	ok(c, http.StatusOK, resp)
}

// GetCreditTransactions godoc
// @ID          getCreditTransactions
// @Summary     List credit transactions
// @Description Returns a page of the user's ledger entries, newest first. Reserve,
// @Description capture, and refund rows tell the full story of every ask.
// @Tags        Credits
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       limit      query   int     false "Max rows"  minimum(1) maximum(100) default(20)
// @Param       offset     query   int     false "Rows to skip"  minimum(0) default(0)
//
// @Success     200  {object}  handlers.CreditTransactionsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credits/transactions [get]
func (h *Handlers) GetCreditTransactions(c *gin.Context) {
	limit, offset := clampLimitOffset(c, 20, 100)

	items, total, err := h.creditSvc.Transactions(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, CreditTransactionsResponse{Items: items, Total: total})
}

// PostCreditGrant godoc
// @ID          postCreditGrant
// @Summary     Grant credits (development only)
// @Description Adds credits to the user's wallet exactly once per idempotency key.
// @Description Disabled when the server runs in production mode.
// @Tags        Credits
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       body       body    handlers.GrantCreditsRequest  true  "Grant payload"
//
// @Success     200  {object}  handlers.GrantCreditsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid amount or key"
// @Failure     403  {object}  handlers.ErrorResponse  "Disabled in production"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credits/grant [post]
func (h *Handlers) PostCreditGrant(c *gin.Context) {
	if h.production {
		fail(c, http.StatusForbidden, ErrCodeForbiddenInProduction, "credit grants are disabled in production")
		return
	}

	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount required")
		return
	}

	res, err := h.creditSvc.Grant(c.Request.Context(), userID(c), req.Amount,
		strings.TrimSpace(req.IdempotencyKey), strings.TrimSpace(req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidGrantAmount):
			fail(c, http.StatusBadRequest, ErrCodeInvalidGrantAmount, "amount must be positive")
		case errors.Is(err, services.ErrKeyTooLong):
			fail(c, http.StatusBadRequest, ErrCodeInvalidIdempotencyKey, "idempotency key is too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, GrantCreditsResponse{Transaction: res.Transaction, Applied: res.Applied})
}
