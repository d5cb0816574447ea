// Ask HTTP handlers.
//
// This file exposes the credit-metered question endpoints:
//   - POST /ask                    (submit a question, one credit per answer)
//   - POST /followups/{id}/ask     (consume a suggested followup)
//
// Handlers are transport-thin: they validate and normalize inputs, delegate
// to application services (AskService), and translate service outcomes into
// HTTP responses with stable error codes.
//
// Idempotency:
// Clients may supply an Idempotency-Key header (max 128 chars). Retries under
// the same key replay the stored result without moving credit; replayed
// responses carry `Idempotency-Replayed: true`. Followup asks derive their key
// from the followup id, so the header is ignored on that route.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/http/middleware"
	"github.com/elinhq/go-ask-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AskService defines the question-answering operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AskService interface {
	// Ask runs one credit-metered question; same key replays, never re-charges.
	Ask(ctx context.Context, userID, question, lang, mode, key string) (*services.AskResult, error)
	// AskFollowup consumes a pending followup and asks its content.
	AskFollowup(ctx context.Context, userID, followupID string) (*services.AskResult, error)
}

// HistoryService defines the read side: thread roots and full thread detail.
type HistoryService interface {
	// ListRoots returns a page of conversation roots, newest first.
	ListRoots(ctx context.Context, userID string, limit, offset int) ([]services.ThreadSummary, int64, error)
	// Detail resolves the whole thread containing questionID.
	Detail(ctx context.Context, userID, questionID string) (*services.ThreadDetail, error)
}

// CreditService defines wallet reads and the idempotent grant.
type CreditService interface {
	// Balance returns the wallet snapshot; missing wallets read as zero.
	Balance(ctx context.Context, userID string) (*services.Balance, error)
	// Transactions returns a page of the ledger, newest first, plus the total.
	Transactions(ctx context.Context, userID string, limit, offset int) ([]domain.CreditTransaction, int64, error)
	// Grant credits the wallet exactly once per key.
	Grant(ctx context.Context, userID string, amount int, key, reason string) (*services.GrantResult, error)
}

// OrderService defines credit-package purchase operations.
type OrderService interface {
	// Create places an order; same (user, key) returns the original order.
	Create(ctx context.Context, userID string, packageSize int, key string) (*services.OrderResult, error)
	// SimulatePaid marks a pending order paid and credits the wallet once.
	SimulatePaid(ctx context.Context, userID, orderID string) (*domain.Order, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for asks, history, credits, and orders.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	askSvc     AskService
	historySvc HistoryService
	creditSvc  CreditService
	orderSvc   OrderService

	// production disables dev-only surfaces (credit grants).
	production bool
}

// New constructs and returns a Handlers instance bound to the given services.
func New(askSvc AskService, historySvc HistoryService, creditSvc CreditService, orderSvc OrderService, production bool) *Handlers {
	return &Handlers{
		askSvc:     askSvc,
		historySvc: historySvc,
		creditSvc:  creditSvc,
		orderSvc:   orderSvc,
		production: production,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// AskRequest is the JSON payload for submitting a question.
type AskRequest struct {
	// Question is the user's prompt (1–1000 runes after trimming).
	Question string `json:"question" binding:"required,min=1" example:"最近的工作運勢如何？"`
	// Lang is a BCP 47 language tag; defaults to zh-TW.
	Lang string `json:"lang" example:"zh-TW"`
	// Mode selects the answering style; defaults to general.
	Mode string `json:"mode" example:"general"`
}

// AskResponse is the JSON envelope for an answered question, fresh or
// replayed.
type AskResponse struct {
	QuestionID       string                     `json:"question_id"`
	Answer           string                     `json:"answer"`
	Source           string                     `json:"source" example:"mock"`
	LayerPercentages []services.LayerPercentage `json:"layer_percentages"`
	RequestID        string                     `json:"request_id"`
	FollowupOptions  []services.FollowupOption  `json:"followup_options"`
}

//
// Helpers
//

// toAskResponse maps a service result onto the wire envelope and sets the
// replay marker header when no credit moved.
func toAskResponse(c *gin.Context, r *services.AskResult) AskResponse {
	if r.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	return AskResponse{
		QuestionID:       r.QuestionID,
		Answer:           r.Answer,
		Source:           r.Source,
		LayerPercentages: r.Layers,
		RequestID:        r.RequestID,
		FollowupOptions:  r.Followups,
	}
}

// failAsk translates pipeline errors shared by both ask routes. It reports
// whether the error was handled.
func failAsk(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrKeyTooLong):
		fail(c, http.StatusBadRequest, ErrCodeInvalidIdempotencyKey, "Idempotency-Key is too long")
	case errors.Is(err, services.ErrEmptyQuestion):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question must not be empty")
	case errors.Is(err, services.ErrQuestionTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question is too long")
	case errors.Is(err, services.ErrInsufficientCredit):
		fail(c, http.StatusPaymentRequired, ErrCodeInsufficientCredit, "insufficient credit balance")
	case errors.Is(err, services.ErrDuplicateInProgress):
		fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, "duplicate request is in progress")
	case errors.Is(err, services.ErrReplayUnavailable):
		fail(c, http.StatusInternalServerError, ErrCodeAskReplayFailed, "unable to replay ask result")
	case errors.Is(err, services.ErrAskProcessing):
		fail(c, http.StatusInternalServerError, ErrCodeAskProcessingFailed, "failed to process ask request")
	default:
		return false
	}
	return true
}

//
// Handlers
//

// PostAsk godoc
// @ID          postAsk
// @Summary     Ask a question
// @Description Charges one credit, generates an answer with layered percentages and
// @Description up to three followup suggestions. Retries carrying the same
// @Description Idempotency-Key replay the stored result without charging again.
// @Tags        Ask
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "User ID"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (max 128 chars)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.AskRequest  true  "Question payload"
//
// @Success     200  {object}  handlers.AskResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid question or idempotency key"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient credit"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate request in progress"
// @Failure     500  {object}  handlers.ErrorResponse  "Processing failed (credit refunded)"
// @Router      /ask [post]
func (h *Handlers) PostAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}

	res, err := h.askSvc.Ask(c.Request.Context(), userID(c), req.Question, req.Lang, req.Mode, key)
	if err != nil {
		if !failAsk(c, err) {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, toAskResponse(c, res))
}

// PostFollowupAsk godoc
// @ID          postFollowupAsk
// @Summary     Ask a suggested followup
// @Description Consumes a pending followup option and asks its content as a new
// @Description question threaded under the parent. The followup id doubles as the
// @Description idempotency key, so a consumed followup can never charge twice.
// @Tags        Ask
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"        example(user123)
// @Param       id         path    string  true  "Followup ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.AskResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid followup id"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient credit"
// @Failure     403  {object}  handlers.ErrorResponse  "Followup belongs to another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Followup or parent question not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Followup already used"
// @Failure     500  {object}  handlers.ErrorResponse  "Processing failed (credit refunded)"
// @Router      /followups/{id}/ask [post]
func (h *Handlers) PostFollowupAsk(c *gin.Context) {
	followupID := c.Param("id")
	if _, err := uuid.Parse(followupID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "followup id must be a UUID")
		return
	}

	res, err := h.askSvc.AskFollowup(c.Request.Context(), userID(c), followupID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFollowupNotFound):
			fail(c, http.StatusNotFound, ErrCodeFollowupNotFound, "followup not found")
		case errors.Is(err, services.ErrFollowupForbidden):
			fail(c, http.StatusForbidden, ErrCodeFollowupOwnerMismatch, "followup belongs to another user")
		case errors.Is(err, services.ErrFollowupUsed):
			fail(c, http.StatusConflict, ErrCodeFollowupAlreadyUsed, "followup has already been used")
		case errors.Is(err, services.ErrParentQuestionNotFound):
			fail(c, http.StatusNotFound, ErrCodeParentQuestionNotFound, "parent question not found")
		default:
			if !failAsk(c, err) {
				fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			}
		}
		return
	}
	ok(c, http.StatusOK, toAskResponse(c, res))
}
