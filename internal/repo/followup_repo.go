// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Followup
// rows, including the single-consume state flips that guard the thread
// tree edges.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
)

// CreateFollowup inserts one suggestion row in pending state.
func CreateFollowup(ctx context.Context, db *gorm.DB, f *domain.Followup) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = domain.FollowupPending
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(f).Error
}

// GetFollowup fetches a followup by id, or ErrNotFound.
func GetFollowup(ctx context.Context, db *gorm.DB, id string) (*domain.Followup, error) {
	var f domain.Followup
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFollowupsForQuestion returns followups under questionID in creation
// order, capped at limit (0 means no cap).
func ListFollowupsForQuestion(ctx context.Context, db *gorm.DB, questionID string, limit int) ([]domain.Followup, error) {
	q := db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("created_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Followup
	err := q.Find(&out).Error
	return out, err
}

// MarkFollowupUsed flips a followup from pending to used. The WHERE guard
// on the current status makes concurrent double-consumes lose: exactly one
// caller sees RowsAffected == 1, every other gets ErrNotFound.
func MarkFollowupUsed(ctx context.Context, db *gorm.DB, id string, usedAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Followup{}).
		Where("id = ? AND status = ?", id, domain.FollowupPending).
		Updates(map[string]any{
			"status":  domain.FollowupUsed,
			"used_at": usedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RestoreFollowupPending reverts a consumed followup so the user can retry,
// but only while it has not been linked to a child question. Restoring an
// already-linked followup would orphan a real thread edge.
func RestoreFollowupPending(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Followup{}).
		Where("id = ? AND status = ? AND used_question_id IS NULL", id, domain.FollowupUsed).
		Updates(map[string]any{
			"status":  domain.FollowupPending,
			"used_at": nil,
		}).Error
}

// LinkFollowupChild records the question a consumed followup resolved
// into, establishing the parent -> child thread edge.
func LinkFollowupChild(ctx context.Context, db *gorm.DB, id, childQuestionID string) error {
	return db.WithContext(ctx).
		Model(&domain.Followup{}).
		Where("id = ?", id).
		Update("used_question_id", childQuestionID).Error
}

// FindIncomingEdge returns the user's followup whose used_question_id is
// questionID, i.e. the edge pointing at this question from its parent.
// ErrNotFound means the question is a thread root.
func FindIncomingEdge(ctx context.Context, db *gorm.DB, userID, questionID string) (*domain.Followup, error) {
	var f domain.Followup
	err := db.WithContext(ctx).
		Where("user_id = ? AND used_question_id = ?", userID, questionID).
		Order("created_at asc, id asc").
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListResolvedEdges returns the user's used followups whose parent is in
// the given frontier and that resolved into a child question, in creation
// order. Each row is one parent -> child edge of the thread tree.
func ListResolvedEdges(ctx context.Context, db *gorm.DB, userID string, parentIDs []string) ([]domain.Followup, error) {
	if len(parentIDs) == 0 {
		return []domain.Followup{}, nil
	}
	var out []domain.Followup
	err := db.WithContext(ctx).
		Where("user_id = ? AND question_id IN ? AND used_question_id IS NOT NULL", userID, parentIDs).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
