// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are UPPER_SNAKE_CASE and stable across releases; clients branch on them
//     for programmatic error handling, never on the message text.
//   - Generic codes (e.g., BAD_REQUEST, RATE_LIMITED) mirror common HTTP status
//     semantics to aid interoperability.
//   - Domain-specific codes (e.g., INSUFFICIENT_CREDIT, FOLLOWUP_ALREADY_USED) are
//     reserved for business outcomes that the status alone cannot convey.
//   - All error responses include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "INSUFFICIENT_CREDIT",
//	  "message": "insufficient credit balance"
//	}
package handlers

const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"

	// Ask pipeline:
	ErrCodeInvalidIdempotencyKey = "INVALID_IDEMPOTENCY_KEY"
	ErrCodeInsufficientCredit    = "INSUFFICIENT_CREDIT"
	ErrCodeIdempotencyConflict   = "IDEMPOTENCY_CONFLICT"
	ErrCodeAskProcessingFailed   = "ASK_PROCESSING_FAILED"
	ErrCodeAskReplayFailed       = "ASK_REPLAY_FAILED"

	// Followups:
	ErrCodeFollowupNotFound       = "FOLLOWUP_NOT_FOUND"
	ErrCodeFollowupOwnerMismatch  = "FOLLOWUP_OWNER_MISMATCH"
	ErrCodeFollowupAlreadyUsed    = "FOLLOWUP_ALREADY_USED"
	ErrCodeParentQuestionNotFound = "PARENT_QUESTION_NOT_FOUND"

	// History:
	ErrCodeQuestionNotFound = "QUESTION_NOT_FOUND"

	// Credits:
	ErrCodeInvalidGrantAmount = "INVALID_GRANT_AMOUNT"

	// Orders:
	ErrCodeOrderNotFound            = "ORDER_NOT_FOUND"
	ErrCodeOrderIdempotencyConflict = "ORDER_IDEMPOTENCY_CONFLICT"
	ErrCodeOrderStatusInvalid       = "ORDER_STATUS_INVALID_FOR_PAYMENT"
	ErrCodeInvalidPackageSize       = "INVALID_PACKAGE_SIZE"
	ErrCodeForbiddenInProduction    = "FORBIDDEN_IN_PRODUCTION"
)
