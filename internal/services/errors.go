// Package services defines the business logic for the credit ledger, the
// ask pipeline, conversation history, and credit purchases. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Credit protocol errors.
var (
	// ErrInsufficientCredit is returned when the wallet balance cannot
	// cover the ask cost. Nothing is mutated; the client may top up and
	// retry with the same idempotency key.
	ErrInsufficientCredit = errors.New("insufficient credit balance")

	// ErrDuplicateInProgress is returned when another attempt with the
	// same idempotency key holds the reservation but has not completed.
	// Safe for the client to retry after a short delay.
	ErrDuplicateInProgress = errors.New("duplicate request is in progress")

	// ErrAskProcessing is returned after the compensating refund when
	// generation, or persisting its result, failed. Retryable with the
	// same key.
	ErrAskProcessing = errors.New("failed to process ask request")

	// ErrReplayUnavailable indicates a replay was detected but its stored
	// answer could not be loaded; this is a data inconsistency, not a
	// client fault.
	ErrReplayUnavailable = errors.New("unable to replay ask result")

	// ErrKeyTooLong is returned when a client-supplied idempotency key
	// exceeds 128 characters.
	ErrKeyTooLong = errors.New("idempotency key is too long")
)

// Ask input errors.
var (
	// ErrEmptyQuestion is returned when an ask carries no question text.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrQuestionTooLong is returned when the question exceeds the
	// maximum configured length limit.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrInvalidGrantAmount is returned when a credit grant requests a
	// non-positive amount.
	ErrInvalidGrantAmount = errors.New("grant amount must be positive")
)

// Followup errors.
var (
	// ErrFollowupNotFound indicates the followup does not exist.
	ErrFollowupNotFound = errors.New("followup not found")

	// ErrFollowupForbidden indicates the followup belongs to another user.
	ErrFollowupForbidden = errors.New("followup does not belong to user")

	// ErrFollowupUsed indicates the followup was already consumed.
	ErrFollowupUsed = errors.New("followup has already been used")

	// ErrParentQuestionNotFound indicates the followup's parent question
	// row is missing.
	ErrParentQuestionNotFound = errors.New("parent question not found")
)

// History errors.
var (
	// ErrQuestionNotFound covers missing, foreign-owned, and
	// not-succeeded questions alike so existence never leaks across users.
	ErrQuestionNotFound = errors.New("question not found")
)

// Order errors.
var (
	// ErrOrderNotFound indicates the order does not exist for this user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderConflict is returned when a duplicate order submission
	// cannot be resolved to an existing row.
	ErrOrderConflict = errors.New("conflicting duplicate order request")

	// ErrOrderNotPayable indicates the order is in a state other than
	// pending or paid.
	ErrOrderNotPayable = errors.New("only pending orders can be marked as paid")

	// ErrInvalidPackage indicates an unknown credit package size.
	ErrInvalidPackage = errors.New("invalid package size")

	// ErrForbiddenInProduction guards dev-only operations (simulate-paid,
	// grant) against production use.
	ErrForbiddenInProduction = errors.New("operation is disabled in production")
)
