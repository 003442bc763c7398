package models

import "time"

// Decision is the outcome of a single reviewer-run.
type Decision string

const (
	DecisionAccepted Decision = "ACCEPTED"
	DecisionRevision Decision = "REVISION"
	DecisionRejected Decision = "REJECTED"

	// DecisionError means the reviewer-run itself failed (exhausted retries,
	// bad credentials, unusable input); the paper was never evaluated.
	DecisionError Decision = "ERROR"
)

// ReviewOutcome is the result of one completed reviewer-run. It is created
// once and never mutated; a retry produces a brand-new outcome that replaces
// the old one in the store.
type ReviewOutcome struct {
	ID           string
	SubmissionID string
	ReviewerName string
	Decision     Decision
	Accepted     bool
	Summary      string
	FullReview   string // display projection, truncated to 1000 chars
	ReviewText   string // untruncated review, retained for storage/download
	// CompositeScore is the weighted criterion score. Nil when no criterion
	// percentages could be extracted from the review text.
	CompositeScore  *float64
	CriterionScores map[string]int
	ModelUsed       string
	ModelDowngraded bool
	CreatedAt       time.Time
}

// BatchVerdict aggregates the outcomes of all reviewer-runs for one submission.
type BatchVerdict struct {
	Accepted int
	Revision int
	Rejected int
	Errors   int
	// AllAccepted is true only when every outcome's decision is ACCEPTED.
	AllAccepted bool
}

// ComputeVerdict tallies decisions across outcomes. It must be recomputed
// over the full set whenever a retry replaces an individual outcome.
func ComputeVerdict(outcomes []*ReviewOutcome) BatchVerdict {
	v := BatchVerdict{AllAccepted: len(outcomes) > 0}
	for _, o := range outcomes {
		switch o.Decision {
		case DecisionAccepted:
			v.Accepted++
		case DecisionRevision:
			v.Revision++
		case DecisionRejected:
			v.Rejected++
		default:
			v.Errors++
		}
		if o.Decision != DecisionAccepted {
			v.AllAccepted = false
		}
	}
	return v
}
