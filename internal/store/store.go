package store

import (
	"context"

	"github.com/cuadrada/cuadrada/internal/models"
)

// Store defines the persistence interface for submissions and review
// outcomes. Implementations must make SaveReviewOutcome an atomic per-key
// replace (submission id + reviewer name) so concurrent reviewer-runs for
// the same submission never lose each other's updates.
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, limit int) ([]*models.Submission, error)
	// CompleteSubmission marks processing finished, recording the aggregate
	// verdict or a submission-level error message.
	CompleteSubmission(ctx context.Context, id string, allAccepted bool, errMsg string) error

	// Review outcomes
	SaveReviewOutcome(ctx context.Context, o *models.ReviewOutcome) error
	ListReviewOutcomes(ctx context.Context, submissionID string) ([]*models.ReviewOutcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
