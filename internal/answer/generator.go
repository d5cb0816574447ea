// Package answer defines the contract with the external answer-generation
// collaborator and the providers that implement it. The credit protocol in
// the services layer treats Generate as an unreliable step: it runs outside
// any lock, may take arbitrarily long, and any failure triggers the
// compensating refund.
package answer

import (
	"context"
	"errors"
	"fmt"
)

// Errors surfaced by draft validation.
var (
	// ErrEmptyAnswer is returned when a provider produces no answer text.
	ErrEmptyAnswer = errors.New("empty answer text")
)

// Request carries the user prompt and its tags to a provider.
type Request struct {
	Question string
	Lang     string
	Mode     string
}

// Draft is a generated answer before persistence. The layer percentages
// must each lie in [0,100] and sum to exactly 100; Validate rejects drafts
// that violate this before they can reach storage.
type Draft struct {
	Text         string
	Source       string // "rag" | "rule" | "openai" | "mock"
	MainPct      int
	SecondaryPct int
	ReferencePct int
	Followups    []string
}

// Validate checks the draft invariants that storage relies on.
func (d Draft) Validate() error {
	if d.Text == "" {
		return ErrEmptyAnswer
	}
	for _, p := range []struct {
		label string
		pct   int
	}{
		{"main", d.MainPct},
		{"secondary", d.SecondaryPct},
		{"reference", d.ReferencePct},
	} {
		if p.pct < 0 || p.pct > 100 {
			return fmt.Errorf("%s percentage %d out of range [0,100]", p.label, p.pct)
		}
	}
	if sum := d.MainPct + d.SecondaryPct + d.ReferencePct; sum != 100 {
		return fmt.Errorf("layer percentages sum to %d, want 100", sum)
	}
	return nil
}

// Generator produces an answer draft for a question. Implementations must
// honor the context for cancellation and be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (Draft, error)
}
