// Package batch orchestrates independent reviewer-runs against a single
// paper and aggregates their outcomes into a batch verdict. Reviewer-runs
// share nothing mutable: each one starts its own model-tier cursor at the
// top tier, and a failure or downgrade in one never affects another.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuadrada/cuadrada/internal/llm"
	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/review"
)

// DefaultReviewers is the number of independent reviewer slots per batch.
const DefaultReviewers = 3

// Completer produces review text from a system prompt and paper text.
// *llm.Client satisfies it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (*llm.Result, error)
}

// Runner runs review batches.
type Runner struct {
	completer Completer
	reviewers int

	// structureCheck enables the academic-structure pre-check that forces a
	// REJECTED outcome when the review text lacks paper structure and
	// citations. Off by default; later revisions of the pipeline dropped it.
	structureCheck bool

	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithReviewers sets the number of reviewer slots per batch.
func WithReviewers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.reviewers = n
		}
	}
}

// WithStructureCheck toggles the academic-structure pre-check policy.
func WithStructureCheck(enabled bool) Option {
	return func(r *Runner) { r.structureCheck = enabled }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a batch runner backed by the given completion client.
func NewRunner(c Completer, opts ...Option) *Runner {
	r := &Runner{
		completer: c,
		reviewers: DefaultReviewers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReviewerName returns the display name for reviewer slot i (zero-based).
func ReviewerName(i int) string {
	return fmt.Sprintf("Reviewer %d", i+1)
}

// Run performs one full batch: every reviewer slot independently obtains and
// parses a review of paperText. Reviewer-runs execute concurrently; a run
// that fails entirely is recorded as an ERROR outcome with a user-safe
// message, and the batch always returns a complete outcome set.
//
// Document extraction must have completed before Run is called; the same
// extracted text is broadcast read-only to all reviewer-runs.
func (r *Runner) Run(ctx context.Context, paperText string) ([]*models.ReviewOutcome, models.BatchVerdict) {
	outcomes := make([]*models.ReviewOutcome, r.reviewers)

	var wg sync.WaitGroup
	for i := 0; i < r.reviewers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			outcomes[slot] = r.runOne(ctx, paperText, ReviewerName(slot))
		}(i)
	}
	wg.Wait()

	return outcomes, models.ComputeVerdict(outcomes)
}

// RetryOne performs a single fresh reviewer-run for the named reviewer slot.
// It is its own independent run (a new tier cursor, no dependency on the
// original batch) and returns a brand-new outcome to replace the old one.
// Callers must recompute the batch verdict over the full updated set.
func (r *Runner) RetryOne(ctx context.Context, paperText, reviewerName string) *models.ReviewOutcome {
	return r.runOne(ctx, paperText, reviewerName)
}

// runOne is one complete reviewer-run: completion call, then parse.
func (r *Runner) runOne(ctx context.Context, paperText, reviewerName string) *models.ReviewOutcome {
	res, err := r.completer.Complete(ctx, review.Prompt, paperText)
	if err != nil {
		msg := userMessage(err)
		r.logger.Error("reviewer-run failed", "reviewer", reviewerName, "error", err)
		return &models.ReviewOutcome{
			ReviewerName: reviewerName,
			Decision:     models.DecisionError,
			Summary:      msg,
			FullReview:   msg,
			CreatedAt:    time.Now().UTC(),
		}
	}

	if r.structureCheck && !review.LooksAcademic(res.Text) {
		return &models.ReviewOutcome{
			ReviewerName:    reviewerName,
			Decision:        models.DecisionRejected,
			Summary:         review.StructureRejectionSummary,
			FullReview:      review.StructureRejectionSummary,
			ReviewText:      res.Text,
			ModelUsed:       res.Model,
			ModelDowngraded: res.Downgraded,
			CreatedAt:       time.Now().UTC(),
		}
	}

	parsed := review.Parse(res.Text)
	return &models.ReviewOutcome{
		ReviewerName:    reviewerName,
		Decision:        parsed.Decision,
		Accepted:        parsed.Accepted,
		Summary:         parsed.Summary,
		FullReview:      parsed.FullReview,
		ReviewText:      res.Text,
		CompositeScore:  parsed.Composite,
		CriterionScores: parsed.Scores,
		ModelUsed:       res.Model,
		ModelDowngraded: res.Downgraded,
		CreatedAt:       time.Now().UTC(),
	}
}

// User-facing failure messages. Raw technical error strings never reach the
// outcome record.
const (
	msgBusy       = "Our review system is currently busy. Please wait 60 seconds and try again."
	msgSupport    = "There was an issue with our review system. Please contact support."
	msgUnexpected = "An unexpected error occurred. Please try again or contact support if the issue persists."
)

// userMessage translates a reviewer-run failure into a user-safe message.
func userMessage(err error) string {
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		return msgBusy
	case llm.KindAuthFailed:
		return msgSupport
	default:
		return msgUnexpected
	}
}
