// Package services – AskService
//
// This file implements AskService, the application-level component that owns
// the credit-metered ask pipeline. One ask is a three-phase unit: reserve a
// credit under the user's wallet lock, generate the answer outside any lock,
// then either capture (question + answer + followups + capture row in one
// transaction) or compensate with a refund. Retried submissions carrying the
// same idempotency key replay the stored result instead of re-charging.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user identifiers and the per-attempt request id.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/answer"
	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/language"
)

const (
	// maxIdempotencyKeyLen bounds client-supplied keys; longer keys are
	// rejected rather than truncated so two distinct keys never collide.
	maxIdempotencyKeyLen = 128

	// followupKeyPrefix namespaces the ledger key of a followup-driven ask,
	// making the followup id itself the idempotency token.
	followupKeyPrefix = "followup:"

	defaultMaxQuestionRunes = 1000
	defaultFollowupOptions  = 3
	defaultLang             = "zh-TW"
	defaultMode             = "general"
)

// Internal pipeline signals; never surfaced to callers directly.
var (
	// errReservationSettled aborts a capture whose reservation was
	// refunded away mid-generation (e.g. by the reconciliation sweep).
	errReservationSettled = errors.New("reservation already settled")

	// errCaptureSettled marks a key whose owning attempt captured while
	// this attempt was deciding whether to adopt the reservation.
	errCaptureSettled = errors.New("reservation already captured")
)

// Layer labels shown alongside the answer percentages.
const (
	LayerMain      = "主層"
	LayerSecondary = "輔層"
	LayerReference = "參照層"
)

// LayerPercentage is one labeled slice of the answer composition.
type LayerPercentage struct {
	Label string `json:"label"`
	Pct   int    `json:"pct"`
}

// FollowupOption is one still-pending suggested next question.
type FollowupOption struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// AskResult is the assembled outcome of an ask, replayed or fresh.
type AskResult struct {
	QuestionID string            `json:"question_id"`
	RequestID  string            `json:"request_id"`
	Answer     string            `json:"answer"`
	Source     string            `json:"source"`
	Layers     []LayerPercentage `json:"layers"`
	Followups  []FollowupOption  `json:"followups"`

	// Replayed is true when the result was served from a prior succeeded
	// attempt under the same idempotency key. No credit moved.
	Replayed bool `json:"replayed"`
}

// AskService coordinates the reserve / generate / capture-or-refund pipeline.
type AskService struct {
	DB        *gorm.DB
	Ledger    *CreditLedger
	Generator answer.Generator

	// Optional guards
	MaxQuestionRunes int
	FollowupOptions  int
}

// Ask runs one credit-metered question through the pipeline. A blank key
// gets a fresh UUID and is never replay-matched; a key over 128 characters
// is rejected up front.
func (s *AskService) Ask(ctx context.Context, userID, question, lang, mode, key string) (*AskResult, error) {
	tr := otel.Tracer("services/AskService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if max := s.maxQuestionRunes(); utf8.RuneCountInString(question) > max {
		return nil, ErrQuestionTooLong
	}

	key = strings.TrimSpace(key)
	if utf8.RuneCountInString(key) > maxIdempotencyKeyLen {
		return nil, ErrKeyTooLong
	}
	if key == "" {
		key = uuid.NewString()
	}

	return s.execute(ctx, userID, question, normalizeLang(lang), normalizeMode(mode), key)
}

// AskFollowup consumes a pending followup suggestion and runs its content
// through the pipeline as a child question of the followup's parent. The
// pending→used flip commits before the pipeline so a concurrent consume of
// the same suggestion loses; on pipeline failure the flip is rolled back to
// pending so the suggestion stays usable.
func (s *AskService) AskFollowup(ctx context.Context, userID, followupID string) (*AskResult, error) {
	tr := otel.Tracer("services/AskService")
	ctx, span := tr.Start(ctx, "AskFollowup",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("followup.id", followupID),
		),
	)
	defer span.End()

	f, err := repo.GetFollowup(ctx, s.DB, followupID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFollowupNotFound
		}
		return nil, err
	}
	if f.UserID != userID {
		return nil, ErrFollowupForbidden
	}
	if f.Status != domain.FollowupPending {
		return nil, ErrFollowupUsed
	}

	parent, err := repo.GetQuestion(ctx, s.DB, f.QuestionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrParentQuestionNotFound
		}
		return nil, err
	}

	// Eager consume: the status guard in the UPDATE makes a lost race
	// surface here instead of double-spending the suggestion.
	if err := repo.MarkFollowupUsed(ctx, s.DB, f.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFollowupUsed
		}
		return nil, err
	}

	res, err := s.execute(ctx, userID, f.Content, parent.Lang, parent.Mode, followupKeyPrefix+f.ID)
	if err != nil {
		// Restore only while no child question was linked; a replayed
		// success from a parallel attempt keeps the flip.
		if rerr := repo.RestoreFollowupPending(ctx, s.DB, f.ID); rerr != nil {
			span.RecordError(rerr)
		}
		return nil, err
	}

	if err := repo.LinkFollowupChild(ctx, s.DB, f.ID, res.QuestionID); err != nil {
		return nil, err
	}
	return res, nil
}

// execute is the shared pipeline behind Ask and AskFollowup. The key has
// already been normalized by the caller.
func (s *AskService) execute(ctx context.Context, userID, question, lang, mode, key string) (*AskResult, error) {
	// Phase 0: replay. A prior succeeded attempt under this key returns its
	// stored answer verbatim; no credit moves.
	if res, err := s.replay(ctx, userID, key); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	release := s.Ledger.EnterInflight(userID, key)
	defer release()

	requestID := uuid.NewString()

	// Phase 1: reserve.
	err := s.Ledger.Reserve(ctx, userID, key, requestID)
	if errors.Is(err, repo.ErrDuplicate) {
		// Another attempt already reserved under this key. If it finished,
		// replay its result.
		res, rerr := s.replay(ctx, userID, key)
		if rerr != nil {
			return nil, rerr
		}
		if res != nil {
			return res, nil
		}
		if s.Ledger.InflightShared(userID, key) {
			// Mid-flight in this process; the client retries shortly and
			// hits the replay path.
			return nil, ErrDuplicateInProgress
		}
		// No local attempt owns the key. A settled reservation (refunded,
		// or captured without a readable question) stays a conflict; a
		// held one was orphaned by a dead process and is adopted: keep its
		// request id and re-attempt generation without reserving again.
		adoptedID, aerr := s.adoptableReservation(ctx, userID, key)
		if errors.Is(aerr, errCaptureSettled) {
			// The owning attempt captured between our replay check and
			// now; one more replay picks its result up.
			res, rerr := s.replay(ctx, userID, key)
			if rerr != nil {
				return nil, rerr
			}
			if res != nil {
				return res, nil
			}
			return nil, ErrReplayUnavailable
		}
		if aerr != nil {
			return nil, aerr
		}
		requestID = adoptedID
	} else if err != nil {
		return nil, err
	}

	// Phase 2: generate, outside any lock.
	draft, err := s.Generator.Generate(ctx, answer.Request{Question: question, Lang: lang, Mode: mode})
	if err == nil {
		err = draft.Validate()
	}
	if err != nil {
		return nil, s.refundAfterFailure(ctx, userID, key, requestID, err)
	}

	// Phase 3: capture bundle in one transaction.
	q := &domain.Question{
		ID:             uuid.NewString(),
		UserID:         userID,
		QuestionText:   question,
		Lang:           lang,
		Mode:           mode,
		Status:         domain.QuestionSucceeded,
		Source:         draft.Source,
		RequestID:      requestID,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	a := &domain.Answer{
		ID:           uuid.NewString(),
		QuestionID:   q.ID,
		AnswerText:   draft.Text,
		MainPct:      draft.MainPct,
		SecondaryPct: draft.SecondaryPct,
		ReferencePct: draft.ReferencePct,
		CreatedAt:    time.Now().UTC(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The reservation may have been refunded away meanwhile (an
		// adopted attempt racing the reconciliation sweep). Capturing on
		// top of a refund would give the reserve two terminal effects.
		if _, err := repo.GetEffect(ctx, tx, userID, domain.ActionRefund, key); err == nil {
			return errReservationSettled
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := repo.CreateQuestion(ctx, tx, q); err != nil {
			return err
		}
		if err := repo.CreateAnswer(ctx, tx, a); err != nil {
			return err
		}
		for _, content := range s.pickFollowups(question, draft.Followups) {
			f := &domain.Followup{
				ID:              uuid.NewString(),
				QuestionID:      q.ID,
				UserID:          userID,
				Content:         content,
				Status:          domain.FollowupPending,
				OriginRequestID: requestID,
				CreatedAt:       time.Now().UTC(),
			}
			if err := repo.CreateFollowup(ctx, tx, f); err != nil {
				return err
			}
		}
		_, err := repo.RecordEffect(ctx, tx, repo.Effect{
			UserID:         userID,
			QuestionID:     &q.ID,
			Action:         domain.ActionCapture,
			Amount:         -s.Ledger.AskCost(),
			ReasonCode:     ReasonAskCaptured,
			IdempotencyKey: key,
			RequestID:      requestID,
		})
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A parallel attempt captured first; its result is canonical.
		res, rerr := s.replay(ctx, userID, key)
		if rerr != nil {
			return nil, rerr
		}
		if res != nil {
			return res, nil
		}
		return nil, ErrReplayUnavailable
	}
	if errors.Is(err, errReservationSettled) {
		return nil, ErrDuplicateInProgress
	}
	if err != nil {
		return nil, s.refundAfterFailure(ctx, userID, key, requestID, err)
	}

	return s.toResult(ctx, q, a, false)
}

// adoptableReservation checks whether the existing reservation under
// (userID, key) may be taken over: it must have no terminal effect yet.
// It returns the original reserve's request id so the adopted attempt's
// effects stay correlated.
func (s *AskService) adoptableReservation(ctx context.Context, userID, key string) (string, error) {
	if _, err := repo.GetEffect(ctx, s.DB, userID, domain.ActionRefund, key); err == nil {
		return "", ErrDuplicateInProgress
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}
	if _, err := repo.GetEffect(ctx, s.DB, userID, domain.ActionCapture, key); err == nil {
		return "", errCaptureSettled
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}
	reserve, err := repo.GetEffect(ctx, s.DB, userID, domain.ActionReserve, key)
	if err != nil {
		return "", err
	}
	return reserve.RequestID, nil
}

// replay returns the stored result of a prior succeeded attempt under
// (userID, key), or nil when no such attempt exists.
func (s *AskService) replay(ctx context.Context, userID, key string) (*AskResult, error) {
	q, err := repo.GetSucceededQuestionByKey(ctx, s.DB, userID, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a, err := repo.GetAnswerForQuestion(ctx, s.DB, q.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReplayUnavailable
		}
		return nil, err
	}
	return s.toResult(ctx, q, a, true)
}

// refundAfterFailure runs the compensating refund and wraps the generation
// failure as ErrAskProcessing. A refund error takes precedence because it
// means a credit is stranded until the reconciliation sweep.
func (s *AskService) refundAfterFailure(ctx context.Context, userID, key, requestID string, cause error) error {
	if err := s.Ledger.RefundReservation(ctx, userID, key, requestID, ReasonAskRefunded, nil); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAskProcessing, cause)
}

// toResult assembles the response payload from the persisted rows.
func (s *AskService) toResult(ctx context.Context, q *domain.Question, a *domain.Answer, replayed bool) (*AskResult, error) {
	fs, err := repo.ListFollowupsForQuestion(ctx, s.DB, q.ID, s.followupOptions())
	if err != nil {
		return nil, err
	}
	opts := make([]FollowupOption, 0, len(fs))
	for _, f := range fs {
		if f.Status != domain.FollowupPending {
			continue
		}
		opts = append(opts, FollowupOption{ID: f.ID, Content: f.Content})
	}
	return &AskResult{
		QuestionID: q.ID,
		RequestID:  q.RequestID,
		Answer:     a.AnswerText,
		Source:     q.Source,
		Layers: []LayerPercentage{
			{Label: LayerMain, Pct: a.MainPct},
			{Label: LayerSecondary, Pct: a.SecondaryPct},
			{Label: LayerReference, Pct: a.ReferencePct},
		},
		Followups: opts,
		Replayed:  replayed,
	}, nil
}

// pickFollowups takes the provider's suggestions, falling back to the
// template suggestions when the provider offers none, deduplicates them and
// caps the count.
func (s *AskService) pickFollowups(question string, suggested []string) []string {
	max := s.followupOptions()
	if len(suggested) == 0 {
		suggested = answer.SuggestFollowups(question)
	}
	seen := make(map[string]struct{}, max)
	out := make([]string, 0, max)
	for _, c := range suggested {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) >= max {
			break
		}
	}
	return out
}

func (s *AskService) maxQuestionRunes() int {
	if s.MaxQuestionRunes > 0 {
		return s.MaxQuestionRunes
	}
	return defaultMaxQuestionRunes
}

func (s *AskService) followupOptions() int {
	if s.FollowupOptions > 0 {
		return s.FollowupOptions
	}
	return defaultFollowupOptions
}

// normalizeLang canonicalizes a BCP 47 tag, falling back to the default
// locale when the input is blank or unparsable.
func normalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return defaultLang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return defaultLang
	}
	return tag.String()
}

func normalizeMode(mode string) string {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return defaultMode
	}
	return mode
}
