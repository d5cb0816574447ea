// Package services – ReconcileService
//
// Background repair for reservations orphaned by a crash between the
// reserve and its terminal capture or refund. The sweep issues the standard
// compensating refund, so a sweep racing a late terminal effect loses on
// the ledger's unique index and changes nothing.

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// sweepBatchSize caps how many orphans one sweep pass touches.
const sweepBatchSize = 100

// ReconcileService refunds reservations that never reached a terminal
// ledger effect.
type ReconcileService struct {
	DB     *gorm.DB
	Ledger *CreditLedger
}

// SweepOnce refunds every reserve older than olderThan that has no capture
// or refund under the same (user, key). It returns the number of refunds
// issued in this pass.
func (s *ReconcileService) SweepOnce(ctx context.Context, olderThan time.Duration) (int, error) {
	tr := otel.Tracer("services/ReconcileService")
	ctx, span := tr.Start(ctx, "SweepOnce")
	defer span.End()

	cutoff := time.Now().UTC().Add(-olderThan)
	orphans, err := repo.ListOrphanedReserves(ctx, s.DB, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, r := range orphans {
		err := s.Ledger.RefundReservation(ctx, r.UserID, r.IdempotencyKey, r.RequestID, ReasonAskReconciled, r.QuestionID)
		if err != nil {
			log.Error().Err(err).
				Str("user_id", r.UserID).
				Str("request_id", r.RequestID).
				Msg("reconcile: refund failed")
			continue
		}
		refunded++
	}
	span.SetAttributes(attribute.Int("reconcile.refunded", refunded))
	if refunded > 0 {
		log.Info().Int("refunded", refunded).Msg("reconcile: orphaned reservations refunded")
	}
	return refunded, nil
}

// Run sweeps on every tick until ctx is cancelled. Intended to be started
// as a goroutine next to the HTTP server.
func (s *ReconcileService) Run(ctx context.Context, interval, olderThan time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, olderThan); err != nil {
				log.Error().Err(err).Msg("reconcile: sweep failed")
			}
		}
	}
}
