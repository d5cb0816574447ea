package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/elinhq/go-ask-backend/internal/services"
)

func TestGetHistory_ReturnsPage(t *testing.T) {
	var gotLimit, gotOffset int
	h := New(stubAskSvc{}, stubHistorySvc{
		listRoots: func(_ context.Context, _ string, limit, offset int) ([]services.ThreadSummary, int64, error) {
			gotLimit, gotOffset = limit, offset
			return []services.ThreadSummary{{
				QuestionID:     "q-1",
				QuestionText:   "今天運勢如何？",
				AnswerPreview:  "preview...",
				Source:         "mock",
				ChargedCredits: 1,
			}}, 7, nil
		},
	}, stubCreditSvc{}, stubOrderSvc{}, false)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodGet, "/history/questions?limit=5&offset=10", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotLimit != 5 || gotOffset != 10 {
		t.Fatalf("service saw limit=%d offset=%d", gotLimit, gotOffset)
	}

	var resp HistoryListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 7 || len(resp.Items) != 1 || resp.Items[0].ChargedCredits != 1 {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestGetHistory_ClampsLimit(t *testing.T) {
	var gotLimit, gotOffset int
	h := New(stubAskSvc{}, stubHistorySvc{
		listRoots: func(_ context.Context, _ string, limit, offset int) ([]services.ThreadSummary, int64, error) {
			gotLimit, gotOffset = limit, offset
			return nil, 0, nil
		},
	}, stubCreditSvc{}, stubOrderSvc{}, false)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodGet, "/history/questions?limit=999&offset=-3", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotLimit != 50 || gotOffset != 0 {
		t.Fatalf("clamped limit=%d offset=%d, want 50/0", gotLimit, gotOffset)
	}

	// Defaults when params are absent or garbage.
	w = doJSON(t, r, http.MethodGet, "/history/questions?limit=abc", nil, nil)
	if w.Code != http.StatusOK || gotLimit != 20 {
		t.Fatalf("default limit=%d status=%d, want 20/OK", gotLimit, w.Code)
	}
}

func TestGetHistoryDetail_Success(t *testing.T) {
	qid := uuid.NewString()
	h := New(stubAskSvc{}, stubHistorySvc{
		detail: func(_ context.Context, _, questionID string) (*services.ThreadDetail, error) {
			if questionID != qid {
				t.Fatalf("service saw id %q, want %q", questionID, qid)
			}
			return &services.ThreadDetail{
				Root: &services.ThreadNode{
					QuestionID: qid,
					Answer:     "root answer",
					Children: []*services.ThreadNode{
						{QuestionID: "child", Answer: "child answer"},
					},
				},
			}, nil
		},
	}, stubCreditSvc{}, stubOrderSvc{}, false)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodGet, "/history/questions/"+qid, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var resp services.ThreadDetail
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Root == nil || resp.Root.QuestionID != qid || len(resp.Root.Children) != 1 {
		t.Fatalf("unexpected tree: %+v", resp.Root)
	}
}

func TestGetHistoryDetail_Errors(t *testing.T) {
	h := New(stubAskSvc{}, stubHistorySvc{
		detail: func(_ context.Context, _, _ string) (*services.ThreadDetail, error) {
			return nil, services.ErrQuestionNotFound
		},
	}, stubCreditSvc{}, stubOrderSvc{}, false)
	r := newTestRouter(h)

	// Not a UUID at all.
	w := doJSON(t, r, http.MethodGet, "/history/questions/nope", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", w.Code)
	}

	// Valid shape, unknown or foreign question.
	w = doJSON(t, r, http.MethodGet, "/history/questions/"+uuid.NewString(), nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeQuestionNotFound {
		t.Fatalf("code=%q", er.Code)
	}
}

func TestGetHistory_ServiceError(t *testing.T) {
	h := New(stubAskSvc{}, stubHistorySvc{
		listRoots: func(_ context.Context, _ string, _, _ int) ([]services.ThreadSummary, int64, error) {
			return nil, 0, errors.New("db down")
		},
	}, stubCreditSvc{}, stubOrderSvc{}, false)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodGet, "/history/questions", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeInternal {
		t.Fatalf("code=%q", er.Code)
	}
}
