// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Question and
// Answer rows.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
)

// CreateQuestion inserts a Question row. A unique violation (either the
// per-user idempotency key or the global request id) maps to ErrDuplicate.
func CreateQuestion(ctx context.Context, db *gorm.DB, q *domain.Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetSucceededQuestionByKey fetches the succeeded question for
// (userID, idempotencyKey), or ErrNotFound. This is the replay lookup: a
// retried ask that finds a row here must be answered from storage.
func GetSucceededQuestionByKey(ctx context.Context, db *gorm.DB, userID, key string) (*domain.Question, error) {
	var q domain.Question
	err := db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND status = ?", userID, key, domain.QuestionSucceeded).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestion fetches a question by id, or ErrNotFound.
func GetQuestion(ctx context.Context, db *gorm.DB, id string) (*domain.Question, error) {
	var q domain.Question
	if err := db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// GetOwnedQuestionWithAnswer fetches a succeeded question owned by userID
// together with its answer. A question owned by someone else, missing, or
// not succeeded is reported identically as ErrNotFound so existence never
// leaks across users.
func GetOwnedQuestionWithAnswer(ctx context.Context, db *gorm.DB, userID, id string) (*domain.Question, *domain.Answer, error) {
	var q domain.Question
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.QuestionSucceeded).
		First(&q).Error
	if err != nil {
		return nil, nil, err
	}
	a, err := GetAnswerForQuestion(ctx, db, q.ID)
	if err != nil {
		return nil, nil, err
	}
	return &q, a, nil
}

// CreateAnswer inserts the 1:1 answer row for a question.
func CreateAnswer(ctx context.Context, db *gorm.DB, a *domain.Answer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAnswerForQuestion fetches the answer belonging to questionID, or
// ErrNotFound.
func GetAnswerForQuestion(ctx context.Context, db *gorm.DB, questionID string) (*domain.Answer, error) {
	var a domain.Answer
	if err := db.WithContext(ctx).Where("question_id = ?", questionID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// QuestionWithAnswer pairs the two rows a history view renders together.
type QuestionWithAnswer struct {
	Question domain.Question
	Answer   domain.Answer
}

// ListAnsweredQuestions fetches succeeded questions with answers for a set
// of ids, owned by userID. Order is unspecified; callers index by id.
func ListAnsweredQuestions(ctx context.Context, db *gorm.DB, userID string, ids []string) ([]QuestionWithAnswer, error) {
	if len(ids) == 0 {
		return []QuestionWithAnswer{}, nil
	}
	var questions []domain.Question
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND id IN ?", userID, domain.QuestionSucceeded, ids).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	out := make([]QuestionWithAnswer, 0, len(questions))
	for _, q := range questions {
		a, err := GetAnswerForQuestion(ctx, db, q.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue // answered questions only; a succeeded row without answer is skipped
		}
		if err != nil {
			return nil, err
		}
		out = append(out, QuestionWithAnswer{Question: q, Answer: *a})
	}
	return out, nil
}

// CountThreadRoots counts succeeded questions for userID that are not the
// resolved child of any of the user's followups.
func CountThreadRoots(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Question{}).
		Where("user_id = ? AND status = ?", userID, domain.QuestionSucceeded).
		Where("id NOT IN (?)", usedChildIDs(db, userID)).
		Count(&total).Error
	return total, err
}

// ListThreadRootsPage returns a page of thread-root questions with their
// answers, newest first. A question that is some followup's
// used_question_id is reachable only through its root's detail view.
func ListThreadRootsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]QuestionWithAnswer, error) {
	var questions []domain.Question
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.QuestionSucceeded).
		Where("id NOT IN (?)", usedChildIDs(db, userID)).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	out := make([]QuestionWithAnswer, 0, len(questions))
	for _, q := range questions {
		a, err := GetAnswerForQuestion(ctx, db, q.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, QuestionWithAnswer{Question: q, Answer: *a})
	}
	return out, nil
}

// usedChildIDs builds the subquery of question ids that appear as a
// resolved followup child for userID.
func usedChildIDs(db *gorm.DB, userID string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&domain.Followup{}).
		Select("used_question_id").
		Where("user_id = ? AND used_question_id IS NOT NULL", userID)
}
