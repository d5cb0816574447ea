// Package services – HistoryService
//
// This file implements HistoryService, the read side of the ask pipeline:
// the paginated list of conversation roots and the full thread detail. A
// thread is not stored as a tree; it is reconstructed from the
// used_question_id edges on followups. Detail resolution walks backward to
// the root first (the requested question may be any node of its thread),
// then expands the whole tree breadth-first.

package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// answerPreviewRunes caps the answer excerpt shown in list views.
	answerPreviewRunes = 160

	// maxThreadDepth bounds the backward root walk. A chain longer than
	// this indicates corrupted edges, not a real conversation.
	maxThreadDepth = 1000
)

// ThreadSummary is one row of the history list: a thread root with an
// answer preview and the credits charged for that root question.
type ThreadSummary struct {
	QuestionID     string `json:"question_id"`
	QuestionText   string `json:"question_text"`
	AnswerPreview  string `json:"answer_preview"`
	Source         string `json:"source"`
	ChargedCredits int    `json:"charged_credits"`
	CreatedAt      string `json:"created_at"`
}

// ThreadNode is one question of a resolved thread, with its answer and the
// children reached through used followups.
type ThreadNode struct {
	QuestionID     string            `json:"question_id"`
	QuestionText   string            `json:"question_text"`
	Answer         string            `json:"answer"`
	Source         string            `json:"source"`
	Layers         []LayerPercentage `json:"layers"`
	ChargedCredits int               `json:"charged_credits"`
	CreatedAt      string            `json:"created_at"`
	Children       []*ThreadNode     `json:"children"`
}

// ThreadDetail is a whole conversation: the nested tree plus the flat
// capture/refund log of every node, oldest first.
type ThreadDetail struct {
	Root         *ThreadNode                `json:"root"`
	Transactions []domain.CreditTransaction `json:"transactions"`
}

// HistoryService resolves stored questions into threaded conversations.
type HistoryService struct {
	DB *gorm.DB
}

// ListRoots returns one page of the user's thread roots, newest first.
// Questions consumed as a followup child never appear here; they are
// reachable through their root's detail view.
func (s *HistoryService) ListRoots(ctx context.Context, userID string, limit, offset int) ([]ThreadSummary, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "ListRoots",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	total, err := repo.CountThreadRoots(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ThreadSummary{}, 0, nil
	}

	rows, err := repo.ListThreadRootsPage(ctx, s.DB, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Question.ID)
	}
	charged, err := repo.SumCapturedByQuestion(ctx, s.DB, userID, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ThreadSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ThreadSummary{
			QuestionID:     r.Question.ID,
			QuestionText:   r.Question.QuestionText,
			AnswerPreview:  previewText(r.Answer.AnswerText),
			Source:         r.Question.Source,
			ChargedCredits: charged[r.Question.ID],
			CreatedAt:      r.Question.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out, total, nil
}

// Detail resolves the whole thread containing questionID. The id may point
// at any node of the thread; the walk first discovers the root, then
// expands every descendant. A question that is missing, foreign or not
// succeeded reports ErrQuestionNotFound.
func (s *HistoryService) Detail(ctx context.Context, userID, questionID string) (*ThreadDetail, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "Detail",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("question.id", questionID),
		),
	)
	defer span.End()

	if _, _, err := repo.GetOwnedQuestionWithAnswer(ctx, s.DB, userID, questionID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	rootID, err := s.findRoot(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}

	nodeIDs, children, err := s.expand(ctx, userID, rootID)
	if err != nil {
		return nil, err
	}

	rows, err := repo.ListAnsweredQuestions(ctx, s.DB, userID, nodeIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]repo.QuestionWithAnswer, len(rows))
	for _, r := range rows {
		byID[r.Question.ID] = r
	}

	charged, err := repo.SumCapturedByQuestion(ctx, s.DB, userID, nodeIDs)
	if err != nil {
		return nil, err
	}

	root := buildNode(rootID, byID, children, charged, make(map[string]bool))
	if root == nil {
		return nil, ErrQuestionNotFound
	}

	log, err := repo.ListSettlementsForQuestions(ctx, s.DB, userID, nodeIDs)
	if err != nil {
		return nil, err
	}

	return &ThreadDetail{Root: root, Transactions: log}, nil
}

// findRoot walks incoming used_question_id edges upward until no parent
// exists. The visited set guards against a corrupted edge cycle.
func (s *HistoryService) findRoot(ctx context.Context, userID, questionID string) (string, error) {
	current := questionID
	visited := map[string]bool{current: true}
	for i := 0; i < maxThreadDepth; i++ {
		edge, err := repo.FindIncomingEdge(ctx, s.DB, userID, current)
		if errors.Is(err, repo.ErrNotFound) {
			return current, nil
		}
		if err != nil {
			return "", err
		}
		parent := edge.QuestionID
		if visited[parent] {
			return current, nil
		}
		visited[parent] = true
		current = parent
	}
	return current, nil
}

// expand collects every node id of the thread below rootID and the
// parent→children adjacency, breadth-first over resolved followup edges.
func (s *HistoryService) expand(ctx context.Context, userID, rootID string) ([]string, map[string][]string, error) {
	nodeIDs := []string{rootID}
	children := make(map[string][]string)
	seen := map[string]bool{rootID: true}

	frontier := []string{rootID}
	for len(frontier) > 0 {
		edges, err := repo.ListResolvedEdges(ctx, s.DB, userID, frontier)
		if err != nil {
			return nil, nil, err
		}
		next := make([]string, 0, len(edges))
		for _, e := range edges {
			if e.UsedQuestionID == nil {
				continue
			}
			child := *e.UsedQuestionID
			if seen[child] {
				continue
			}
			seen[child] = true
			children[e.QuestionID] = append(children[e.QuestionID], child)
			nodeIDs = append(nodeIDs, child)
			next = append(next, child)
		}
		frontier = next
	}
	return nodeIDs, children, nil
}

// buildNode assembles the nested tree recursively. Nodes whose rows were
// filtered out (not succeeded, answer missing) are dropped together with
// their subtree.
func buildNode(id string, byID map[string]repo.QuestionWithAnswer, children map[string][]string, charged map[string]int, onPath map[string]bool) *ThreadNode {
	row, ok := byID[id]
	if !ok || onPath[id] {
		return nil
	}
	onPath[id] = true
	defer delete(onPath, id)

	node := &ThreadNode{
		QuestionID:   row.Question.ID,
		QuestionText: row.Question.QuestionText,
		Answer:       row.Answer.AnswerText,
		Source:       row.Question.Source,
		Layers: []LayerPercentage{
			{Label: LayerMain, Pct: row.Answer.MainPct},
			{Label: LayerSecondary, Pct: row.Answer.SecondaryPct},
			{Label: LayerReference, Pct: row.Answer.ReferencePct},
		},
		ChargedCredits: charged[id],
		CreatedAt:      row.Question.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Children:       []*ThreadNode{},
	}
	for _, childID := range children[id] {
		if child := buildNode(childID, byID, children, charged, onPath); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

// previewText truncates an answer for list views, appending "..." only when
// something was actually cut.
func previewText(s string) string {
	if utf8.RuneCountInString(s) <= answerPreviewRunes {
		return s
	}
	return string([]rune(s)[:answerPreviewRunes]) + "..."
}
