package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elinhq/go-ask-backend/internal/answer"
	"github.com/elinhq/go-ask-backend/internal/domain"
	"github.com/elinhq/go-ask-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	// busy_timeout via DSN so every pooled connection gets it; concurrent
	// pipeline tests hammer the same file.
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano())) +
		"?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedBalance(t *testing.T, db *gorm.DB, userID string, balance int) {
	t.Helper()
	w := &domain.Wallet{UserID: userID, Balance: balance, UpdatedAt: time.Now().UTC()}
	if err := db.Create(w).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}

func walletBalance(t *testing.T, db *gorm.DB, userID string) int {
	t.Helper()
	var w domain.Wallet
	if err := db.First(&w, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("read wallet: %v", err)
	}
	return w.Balance
}

func countEffects(t *testing.T, db *gorm.DB, userID, action string) int64 {
	t.Helper()
	var n int64
	err := db.Model(&domain.CreditTransaction{}).
		Where("user_id = ? AND action = ?", userID, action).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count %s effects: %v", action, err)
	}
	return n
}

// fakeGenerator counts calls and returns a configurable draft or error.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int

	draft answer.Draft
	err   error

	// errUntil fails the first N calls, then succeeds.
	errUntil int
}

func (g *fakeGenerator) Generate(_ context.Context, req answer.Request) (answer.Draft, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if g.err != nil && (g.errUntil == 0 || n <= g.errUntil) {
		return answer.Draft{}, g.err
	}
	if g.draft.Text != "" || g.draft.MainPct+g.draft.SecondaryPct+g.draft.ReferencePct > 0 {
		return g.draft, nil
	}
	return answer.Draft{
		Text:         "reply to " + req.Question,
		Source:       "mock",
		MainPct:      70,
		SecondaryPct: 20,
		ReferencePct: 10,
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newAskService(db *gorm.DB, gen answer.Generator) *AskService {
	return &AskService{DB: db, Ledger: NewCreditLedger(db, 1), Generator: gen}
}

func TestAsk_SuccessChargesOneCredit(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 2)
	gen := &fakeGenerator{}
	s := newAskService(db, gen)

	res, err := s.Ask(context.Background(), "u1", "什麼是複利？", "zh-TW", "general", "key-1")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Replayed {
		t.Fatalf("fresh ask reported as replayed")
	}
	if res.QuestionID == "" || res.RequestID == "" || res.Answer == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	if len(res.Layers) != 3 || res.Layers[0].Label != LayerMain || res.Layers[0].Pct != 70 {
		t.Fatalf("unexpected layers: %+v", res.Layers)
	}
	if len(res.Followups) != 3 {
		t.Fatalf("followups = %d, want 3", len(res.Followups))
	}

	if got := walletBalance(t, db, "u1"); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
	if n := countEffects(t, db, "u1", domain.ActionReserve); n != 1 {
		t.Fatalf("reserve rows = %d, want 1", n)
	}
	if n := countEffects(t, db, "u1", domain.ActionCapture); n != 1 {
		t.Fatalf("capture rows = %d, want 1", n)
	}
	if n := countEffects(t, db, "u1", domain.ActionRefund); n != 0 {
		t.Fatalf("refund rows = %d, want 0", n)
	}
}

func TestAsk_InsufficientCredit(t *testing.T) {
	db := newServiceDB(t)
	gen := &fakeGenerator{}
	s := newAskService(db, gen)

	_, err := s.Ask(context.Background(), "u1", "q", "", "", "key-1")
	if !errors.Is(err, ErrInsufficientCredit) {
		t.Fatalf("err = %v, want ErrInsufficientCredit", err)
	}
	if gen.callCount() != 0 {
		t.Fatalf("generator must not run without a reservation")
	}
	if got := walletBalance(t, db, "u1"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	var n int64
	if err := db.Model(&domain.CreditTransaction{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("ledger rows = %d, %v; want 0", n, err)
	}
}

func TestAsk_ReplaySameKey(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 5)
	gen := &fakeGenerator{}
	s := newAskService(db, gen)

	first, err := s.Ask(context.Background(), "u1", "問題", "zh-TW", "general", "key-1")
	if err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	second, err := s.Ask(context.Background(), "u1", "問題", "zh-TW", "general", "key-1")
	if err != nil {
		t.Fatalf("second Ask: %v", err)
	}

	if !second.Replayed {
		t.Fatalf("second ask should replay")
	}
	if second.QuestionID != first.QuestionID || second.RequestID != first.RequestID {
		t.Fatalf("replay mismatch: first=%+v second=%+v", first, second)
	}
	if second.Answer != first.Answer {
		t.Fatalf("replayed answer differs")
	}
	if gen.callCount() != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.callCount())
	}
	if got := walletBalance(t, db, "u1"); got != 4 {
		t.Fatalf("balance = %d, want 4 (single charge)", got)
	}
}

func TestAsk_BlankKeyNeverReplays(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 5)
	s := newAskService(db, &fakeGenerator{})

	first, err := s.Ask(context.Background(), "u1", "同一個問題", "", "", "")
	if err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	second, err := s.Ask(context.Background(), "u1", "同一個問題", "", "", "   ")
	if err != nil {
		t.Fatalf("second Ask: %v", err)
	}
	if first.QuestionID == second.QuestionID {
		t.Fatalf("blank-key asks must be distinct attempts")
	}
	if got := walletBalance(t, db, "u1"); got != 3 {
		t.Fatalf("balance = %d, want 3 (two charges)", got)
	}
}

func TestAsk_InputValidation(t *testing.T) {
	db := newServiceDB(t)
	s := newAskService(db, &fakeGenerator{})
	ctx := context.Background()

	if _, err := s.Ask(ctx, "u1", "   ", "", "", ""); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("blank question err = %v, want ErrEmptyQuestion", err)
	}
	if _, err := s.Ask(ctx, "u1", strings.Repeat("長", 1001), "", "", ""); !errors.Is(err, ErrQuestionTooLong) {
		t.Fatalf("long question err = %v, want ErrQuestionTooLong", err)
	}
	if _, err := s.Ask(ctx, "u1", "q", "", "", strings.Repeat("k", 129)); !errors.Is(err, ErrKeyTooLong) {
		t.Fatalf("long key err = %v, want ErrKeyTooLong", err)
	}
}

func TestAsk_GenerationFailureRefunds(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 2)
	gen := &fakeGenerator{err: errors.New("provider down")}
	s := newAskService(db, gen)

	_, err := s.Ask(context.Background(), "u1", "q", "", "", "key-1")
	if !errors.Is(err, ErrAskProcessing) {
		t.Fatalf("err = %v, want ErrAskProcessing", err)
	}

	if got := walletBalance(t, db, "u1"); got != 2 {
		t.Fatalf("balance = %d, want 2 (refunded)", got)
	}
	if n := countEffects(t, db, "u1", domain.ActionReserve); n != 1 {
		t.Fatalf("reserve rows = %d, want 1", n)
	}
	if n := countEffects(t, db, "u1", domain.ActionRefund); n != 1 {
		t.Fatalf("refund rows = %d, want 1", n)
	}
	if n := countEffects(t, db, "u1", domain.ActionCapture); n != 0 {
		t.Fatalf("capture rows = %d, want 0", n)
	}
	var questions int64
	if err := db.Model(&domain.Question{}).Count(&questions).Error; err != nil || questions != 0 {
		t.Fatalf("question rows = %d, %v; want 0", questions, err)
	}
}

func TestAsk_InvalidPercentagesRefund(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 1)
	gen := &fakeGenerator{draft: answer.Draft{
		Text: "bad split", Source: "mock", MainPct: 50, SecondaryPct: 50, ReferencePct: 50,
	}}
	s := newAskService(db, gen)

	_, err := s.Ask(context.Background(), "u1", "q", "", "", "key-1")
	if !errors.Is(err, ErrAskProcessing) {
		t.Fatalf("err = %v, want ErrAskProcessing", err)
	}
	if got := walletBalance(t, db, "u1"); got != 1 {
		t.Fatalf("balance = %d, want 1 (refunded)", got)
	}
}

func TestAsk_ConcurrentSameKey_SingleCharge(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 1)
	gen := &fakeGenerator{}
	s := newAskService(db, gen)

	const workers = 8
	results := make([]*AskResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Ask(context.Background(), "u1", "熱門問題", "zh-TW", "general", "shared-key")
		}(i)
	}
	wg.Wait()

	var firstID string
	successes := 0
	for i := 0; i < workers; i++ {
		switch {
		case errs[i] == nil:
			successes++
			if firstID == "" {
				firstID = results[i].QuestionID
			} else if results[i].QuestionID != firstID {
				t.Fatalf("divergent question ids under one key: %s vs %s", firstID, results[i].QuestionID)
			}
		case errors.Is(errs[i], ErrDuplicateInProgress):
			// acceptable: caller retries and replays
		default:
			t.Fatalf("worker %d unexpected err: %v", i, errs[i])
		}
	}
	if successes == 0 {
		t.Fatalf("no worker succeeded")
	}

	if got := walletBalance(t, db, "u1"); got != 0 {
		t.Fatalf("balance = %d, want 0 (exactly one charge)", got)
	}
	if n := countEffects(t, db, "u1", domain.ActionCapture); n != 1 {
		t.Fatalf("capture rows = %d, want 1", n)
	}
	if n := countEffects(t, db, "u1", domain.ActionReserve); n != 1 {
		t.Fatalf("reserve rows = %d, want 1", n)
	}
	var questions int64
	if err := db.Model(&domain.Question{}).Count(&questions).Error; err != nil || questions != 1 {
		t.Fatalf("question rows = %d, %v; want 1", questions, err)
	}
}

func TestAsk_ConcurrentDistinctKeys_NeverOverspends(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 2)
	s := newAskService(db, &fakeGenerator{})

	const workers = 5
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Ask(context.Background(), "u1", fmt.Sprintf("問題 %d", i), "", "", fmt.Sprintf("key-%d", i))
		}(i)
	}
	wg.Wait()

	successes, shortfalls := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientCredit):
			shortfalls++
		default:
			t.Fatalf("worker %d unexpected err: %v", i, err)
		}
	}
	if successes != 2 || shortfalls != 3 {
		t.Fatalf("successes=%d shortfalls=%d, want 2/3", successes, shortfalls)
	}
	if got := walletBalance(t, db, "u1"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestAskFollowup_ConsumesAndLinks(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 5)
	s := newAskService(db, &fakeGenerator{})
	ctx := context.Background()

	root, err := s.Ask(ctx, "u1", "根問題", "zh-TW", "deep", "key-root")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(root.Followups) == 0 {
		t.Fatalf("no followup options to consume")
	}
	fid := root.Followups[0].ID

	child, err := s.AskFollowup(ctx, "u1", fid)
	if err != nil {
		t.Fatalf("AskFollowup: %v", err)
	}
	if child.QuestionID == root.QuestionID {
		t.Fatalf("child question must be distinct")
	}

	f, err := repo.GetFollowup(ctx, db, fid)
	if err != nil {
		t.Fatalf("GetFollowup: %v", err)
	}
	if f.Status != domain.FollowupUsed || f.UsedQuestionID == nil || *f.UsedQuestionID != child.QuestionID {
		t.Fatalf("edge not recorded: %+v", f)
	}

	// Child inherits the parent's lang/mode.
	q, err := repo.GetQuestion(ctx, db, child.QuestionID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Lang != "zh-TW" || q.Mode != "deep" {
		t.Fatalf("child lang/mode = %s/%s, want zh-TW/deep", q.Lang, q.Mode)
	}

	if got := walletBalance(t, db, "u1"); got != 3 {
		t.Fatalf("balance = %d, want 3 (two charges)", got)
	}
}

func TestAskFollowup_Gates(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 5)
	seedBalance(t, db, "intruder", 5)
	s := newAskService(db, &fakeGenerator{})
	ctx := context.Background()

	root, err := s.Ask(ctx, "u1", "根問題", "", "", "key-root")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	fid := root.Followups[0].ID

	if _, err := s.AskFollowup(ctx, "u1", "ghost"); !errors.Is(err, ErrFollowupNotFound) {
		t.Fatalf("unknown id err = %v, want ErrFollowupNotFound", err)
	}
	if _, err := s.AskFollowup(ctx, "intruder", fid); !errors.Is(err, ErrFollowupForbidden) {
		t.Fatalf("foreign user err = %v, want ErrFollowupForbidden", err)
	}

	if _, err := s.AskFollowup(ctx, "u1", fid); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := s.AskFollowup(ctx, "u1", fid); !errors.Is(err, ErrFollowupUsed) {
		t.Fatalf("second consume err = %v, want ErrFollowupUsed", err)
	}
}

func TestAskFollowup_FailureRestoresPending(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 5)
	gen := &fakeGenerator{}
	s := newAskService(db, gen)
	ctx := context.Background()

	root, err := s.Ask(ctx, "u1", "根問題", "", "", "key-root")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	fid := root.Followups[0].ID

	// Next generation fails once, then recovers.
	gen.mu.Lock()
	gen.err = errors.New("flaky provider")
	gen.errUntil = 2 // call 1 was the root ask
	gen.mu.Unlock()

	if _, err := s.AskFollowup(ctx, "u1", fid); !errors.Is(err, ErrAskProcessing) {
		t.Fatalf("err = %v, want ErrAskProcessing", err)
	}
	f, err := repo.GetFollowup(ctx, db, fid)
	if err != nil {
		t.Fatalf("GetFollowup: %v", err)
	}
	if f.Status != domain.FollowupPending {
		t.Fatalf("failed consume must restore pending, got %+v", f)
	}
	if got := walletBalance(t, db, "u1"); got != 4 {
		t.Fatalf("balance = %d, want 4 (refunded)", got)
	}

	// A retry reuses the followup id as pipeline key; that key is settled
	// by the refund, so the retry conflicts and the suggestion stays
	// pending. No credit moves either way.
	if _, err := s.AskFollowup(ctx, "u1", fid); !errors.Is(err, ErrDuplicateInProgress) {
		t.Fatalf("retry err = %v, want ErrDuplicateInProgress", err)
	}
	f, err = repo.GetFollowup(ctx, db, fid)
	if err != nil {
		t.Fatalf("GetFollowup after retry: %v", err)
	}
	if f.Status != domain.FollowupPending {
		t.Fatalf("conflicted retry must restore pending, got %+v", f)
	}
	if got := walletBalance(t, db, "u1"); got != 4 {
		t.Fatalf("balance = %d, want 4 (unchanged)", got)
	}
}

func TestAsk_AdoptsOrphanedReservation(t *testing.T) {
	db := newServiceDB(t)
	// A crashed process reserved a credit and never settled it: the wallet
	// was debited and only the reserve row remains.
	seedBalance(t, db, "u1", 1)
	orphan := &domain.CreditTransaction{
		ID: "t-orphan", UserID: "u1", Action: domain.ActionReserve, Amount: -1,
		ReasonCode: "ASK_RESERVED", IdempotencyKey: "key-1", RequestID: "req-dead",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := db.Create(orphan).Error; err != nil {
		t.Fatalf("seed orphan reserve: %v", err)
	}

	gen := &fakeGenerator{}
	s := newAskService(db, gen)

	res, err := s.Ask(context.Background(), "u1", "重試的問題", "", "", "key-1")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.RequestID != "req-dead" {
		t.Fatalf("request id = %s, want the adopted reservation's req-dead", res.RequestID)
	}
	if gen.callCount() != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.callCount())
	}

	// The adopted attempt must not reserve again: still one reserve row,
	// one capture, and the balance only reflects the original debit.
	if n := countEffects(t, db, "u1", domain.ActionReserve); n != 1 {
		t.Fatalf("reserve rows = %d, want 1", n)
	}
	if n := countEffects(t, db, "u1", domain.ActionCapture); n != 1 {
		t.Fatalf("capture rows = %d, want 1", n)
	}
	if got := walletBalance(t, db, "u1"); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
}

func TestAsk_RefundSettledKeyConflicts(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 2)
	gen := &fakeGenerator{err: errors.New("provider down"), errUntil: 1}
	s := newAskService(db, gen)
	ctx := context.Background()

	if _, err := s.Ask(ctx, "u1", "q", "", "", "key-1"); !errors.Is(err, ErrAskProcessing) {
		t.Fatalf("first err = %v, want ErrAskProcessing", err)
	}
	// The key is settled by the refund; a retry must not re-reserve.
	if _, err := s.Ask(ctx, "u1", "q", "", "", "key-1"); !errors.Is(err, ErrDuplicateInProgress) {
		t.Fatalf("retry err = %v, want ErrDuplicateInProgress", err)
	}
	if got := walletBalance(t, db, "u1"); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
	if gen.callCount() != 1 {
		t.Fatalf("generator calls = %d, want 1 (settled key never regenerates)", gen.callCount())
	}
}

func TestAskFollowup_ConcurrentConsume_SingleWinner(t *testing.T) {
	db := newServiceDB(t)
	seedBalance(t, db, "u1", 5)
	s := newAskService(db, &fakeGenerator{})
	ctx := context.Background()

	root, err := s.Ask(ctx, "u1", "根問題", "", "", "key-root")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	fid := root.Followups[0].ID

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AskFollowup(ctx, "u1", fid)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrFollowupUsed):
			// loser of the eager flip
		default:
			t.Fatalf("worker %d unexpected err: %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if got := walletBalance(t, db, "u1"); got != 3 {
		t.Fatalf("balance = %d, want 3 (root + one followup)", got)
	}
}
