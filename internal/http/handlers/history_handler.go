// History HTTP handlers.
//
// This file exposes read-only endpoints over answered questions:
//   - GET /history/questions        (paginated thread roots with previews)
//   - GET /history/questions/{id}   (full thread detail for any node)
//
// Threads are reconstructed from followup edges on the fly; a question
// consumed as a followup never appears as a root, only inside its thread.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elinhq/go-ask-backend/internal/services"
	"github.com/elinhq/go-ask-backend/internal/utils"
)

//
// DTOs
//

// HistoryListResponse wraps a page of thread roots plus the total count.
type HistoryListResponse struct {
	Items []services.ThreadSummary `json:"items"`
	Total int64                    `json:"total"`
}

//
// Helpers
//

// clampLimitOffset parses limit/offset query parameters, applying defaults
// and the given cap.
func clampLimitOffset(c *gin.Context, defLimit, maxLimit int) (limit, offset int) {
	limit = utils.AtoiDefault(c.Query("limit"), defLimit)
	offset = utils.AtoiDefault(c.Query("offset"), 0)
	return utils.ClampLimitOffset(limit, offset, defLimit, maxLimit)
}

//
// Handlers
//

// GetHistory godoc
// @ID          getHistory
// @Summary     List answered questions (thread roots)
// @Description Returns a page of the user's conversation roots, newest first, each
// @Description with an answer preview and the credits charged for it.
// @Tags        History
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       limit      query   int     false "Max rows"  minimum(1) maximum(50) default(20)
// @Param       offset     query   int     false "Rows to skip"  minimum(0) default(0)
//
// @Success     200  {object}  handlers.HistoryListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history/questions [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	limit, offset := clampLimitOffset(c, 20, 50)

	items, total, err := h.historySvc.ListRoots(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, HistoryListResponse{Items: items, Total: total})
}

// GetHistoryDetail godoc
// @ID          getHistoryDetail
// @Summary     Get a full conversation thread
// @Description Resolves the whole thread containing the given question (the id may
// @Description reference any node, not only the root) into a nested tree plus the
// @Description flat capture/refund log, oldest first.
// @Tags        History
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"            example(user123)
// @Param       id         path    string  true  "Question ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.ThreadDetail
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid question id"
// @Failure     404  {object}  handlers.ErrorResponse  "Question not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history/questions/{id} [get]
func (h *Handlers) GetHistoryDetail(c *gin.Context) {
	questionID := c.Param("id")
	if _, err := uuid.Parse(questionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question id must be a UUID")
		return
	}

	detail, err := h.historySvc.Detail(c.Request.Context(), userID(c), questionID)
	if err != nil {
		if errors.Is(err, services.ErrQuestionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeQuestionNotFound, "question not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, detail)
}
