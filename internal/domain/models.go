// Package domain defines the persistence models for the credit-metered
// ask pipeline: wallets, the append-only credit ledger, questions, answers,
// follow-up suggestions, and credit purchase orders. These types are mapped
// with GORM and form the core data layer of the application.
package domain

import "time"

// Credit ledger action tags. A transaction row is immutable once written;
// the (user_id, action, idempotency_key) unique index is the idempotency
// guard that makes retried submissions safe.
const (
	ActionReserve  = "reserve"
	ActionCapture  = "capture"
	ActionRefund   = "refund"
	ActionGrant    = "grant"
	ActionPurchase = "purchase"
)

// Question lifecycle states.
const (
	QuestionSubmitted = "submitted"
	QuestionSucceeded = "succeeded"
	QuestionFailed    = "failed"
)

// Followup lifecycle states. A followup moves pending -> used exactly once.
const (
	FollowupPending = "pending"
	FollowupUsed    = "used"
)

// Order lifecycle states.
const (
	OrderPending  = "pending"
	OrderPaid     = "paid"
	OrderFailed   = "failed"
	OrderRefunded = "refunded"
)

// Wallet holds the spendable credit balance for one user. Rows are created
// lazily on the first credit-affecting operation and are only ever mutated
// inside a reserve/capture/refund/grant/purchase unit.
//
// The balance check constraint is a last-resort guard; the protocol never
// decrements below zero in the first place.
type Wallet struct {
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey"`
	Balance   int       `json:"balance"    gorm:"not null;default:0;check:balance >= 0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Wallet.
func (Wallet) TableName() string { return "credit_wallets" }

// CreditTransaction is one immutable entry in the append-only credit ledger.
// Amount is signed: reserve/capture carry the negative ask cost, refund and
// grant/purchase carry positive amounts.
//
// Fields:
//   - QuestionID / OrderID: optional links to the entity the effect belongs to.
//   - Action: one of the Action* constants (enforced by DB constraint).
//   - ReasonCode: machine-readable cause, e.g. "ASK_RESERVED".
//   - IdempotencyKey: dedup token; unique together with user and action.
//   - RequestID: correlates all effects of one ask attempt.
type CreditTransaction struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_ledger_user_created,priority:1;uniqueIndex:ux_ledger_user_action_key,priority:1"`
	QuestionID     *string   `json:"question_id"     gorm:"type:char(36);index"`
	OrderID        *string   `json:"order_id"        gorm:"type:char(36)"`
	Action         string    `json:"action"          gorm:"type:varchar(16);not null;uniqueIndex:ux_ledger_user_action_key,priority:2;check:action IN ('reserve','capture','refund','grant','purchase')"`
	Amount         int       `json:"amount"          gorm:"not null"`
	ReasonCode     string    `json:"reason_code"     gorm:"type:varchar(64);not null"`
	IdempotencyKey string    `json:"-"               gorm:"type:varchar(128);not null;uniqueIndex:ux_ledger_user_action_key,priority:3"`
	RequestID      string    `json:"request_id"      gorm:"type:varchar(64);not null;index"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_ledger_user_created,priority:2"`
}

// TableName returns the database table name for CreditTransaction.
func (CreditTransaction) TableName() string { return "credit_transactions" }

// Question is one user-submitted prompt. A retried ask with the same
// idempotency key must resolve to the same question row, enforced by the
// (user_id, idempotency_key) unique index.
type Question struct {
	ID             string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID         string    `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_questions_user_created,priority:1;uniqueIndex:ux_questions_user_key,priority:1"`
	QuestionText   string    `json:"question_text" gorm:"type:text;not null"`
	Lang           string    `json:"lang"          gorm:"type:varchar(8);not null"`
	Mode           string    `json:"mode"          gorm:"type:varchar(32);not null"`
	Status         string    `json:"status"        gorm:"type:varchar(16);not null;check:status IN ('submitted','succeeded','failed')"`
	Source         string    `json:"source"        gorm:"type:varchar(16);not null;check:source IN ('rag','rule','openai','mock')"`
	RequestID      string    `json:"request_id"    gorm:"type:varchar(64);not null;uniqueIndex"`
	IdempotencyKey string    `json:"-"             gorm:"type:varchar(128);not null;uniqueIndex:ux_questions_user_key,priority:2"`
	CreatedAt      time.Time `json:"created_at"    gorm:"index:idx_questions_user_created,priority:2"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Answer holds the generated reply for exactly one question (1:1, unique).
// The three layer percentages must each lie in [0,100] and sum to 100;
// the application validates this before persistence and the DB constraint
// is the backstop.
type Answer struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	QuestionID   string    `json:"question_id"   gorm:"type:char(36);not null;uniqueIndex"`
	AnswerText   string    `json:"answer_text"   gorm:"type:text;not null"`
	MainPct      int       `json:"main_pct"      gorm:"not null;check:main_pct >= 0 AND main_pct <= 100"`
	SecondaryPct int       `json:"secondary_pct" gorm:"not null;check:secondary_pct >= 0 AND secondary_pct <= 100"`
	ReferencePct int       `json:"reference_pct" gorm:"not null;check:reference_pct >= 0 AND reference_pct <= 100;check:chk_answers_pct_sum,main_pct + secondary_pct + reference_pct = 100"`
	CreatedAt    time.Time `json:"created_at"`

	// Question is the parent prompt. Answers are cascade-deleted if their
	// question is removed.
	Question Question `json:"-" gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Answer.
func (Answer) TableName() string { return "answers" }

// Followup is a machine-suggested next question scoped to one parent
// question and one user. Consuming it flips status to "used";
// UsedQuestionID is set only after the child question exists, and that
// edge is what turns the flat questions table into a thread tree.
type Followup struct {
	ID              string     `json:"id"                gorm:"type:char(36);primaryKey"`
	QuestionID      string     `json:"question_id"       gorm:"type:char(36);not null;index"`
	UserID          string     `json:"user_id"           gorm:"type:varchar(64);not null;index:idx_followups_user_created,priority:1"`
	Content         string     `json:"content"           gorm:"type:text;not null"`
	Status          string     `json:"status"            gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','used')"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	UsedQuestionID  *string    `json:"used_question_id,omitempty" gorm:"type:char(36);index"`
	OriginRequestID string     `json:"origin_request_id" gorm:"type:varchar(64)"`
	CreatedAt       time.Time  `json:"created_at"        gorm:"index:idx_followups_user_created,priority:2"`

	// Question is the parent prompt this suggestion extends.
	Question Question `json:"-" gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Followup.
func (Followup) TableName() string { return "followups" }

// Order is a credit purchase. Its (user_id, idempotency_key) unique index
// makes retried creation safe; the matching "purchase" ledger row (keyed
// "order:<id>:purchase") makes the credit grant exactly-once.
type Order struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string     `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_orders_user_created,priority:1;uniqueIndex:ux_orders_user_key,priority:1"`
	PackageSize    int        `json:"package_size"    gorm:"not null;check:package_size IN (1,3,5)"`
	AmountTWD      int        `json:"amount_twd"      gorm:"not null;check:amount_twd IN (168,358,518)"`
	Status         string     `json:"status"          gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','paid','failed','refunded')"`
	IdempotencyKey string     `json:"idempotency_key" gorm:"type:varchar(128);not null;uniqueIndex:ux_orders_user_key,priority:2"`
	CreatedAt      time.Time  `json:"created_at"      gorm:"index:idx_orders_user_created,priority:2"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }
