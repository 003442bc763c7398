package review

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cuadrada/cuadrada/internal/models"
)

const (
	summaryLimit    = 300
	fullReviewLimit = 1000
)

// Terminal marker patterns, matched case-insensitively anywhere in the text.
// Priority order matters: the exact ACCEPTED marker wins over the revision
// variants, which win over REJECTED.
var (
	reAccepted = regexp.MustCompile(`(?i)FINAL DECISION:\s*\*\*ACCEPTED\*\*`)
	reRevision = regexp.MustCompile(`(?i)FINAL DECISION:\s*\*\*ACCEPTED WITH (MINOR|MAJOR) REVISION`)
	reRejected = regexp.MustCompile(`(?i)FINAL DECISION:\s*\*\*REJECTED\*\*`)
)

// Result holds the structured fields extracted from one raw review.
type Result struct {
	Decision   models.Decision
	Accepted   bool
	Summary    string
	FullReview string
	// Scores maps criterion name to the extracted percentage. Criteria whose
	// score could not be found are omitted, never defaulted to zero.
	Scores map[string]int
	// Composite is the weighted score over the criteria actually found.
	// Nil when no criterion matched.
	Composite *float64
}

// Parse extracts a structured verdict from free-form review text. It never
// fails: malformed or unexpected model output degrades to the conservative
// defaults (REVISION, no composite) so a single bad review cannot abort a
// batch.
func Parse(raw string) Result {
	decision, accepted := classify(raw)
	scores := extractScores(raw)

	return Result{
		Decision:   decision,
		Accepted:   accepted,
		Summary:    truncate(firstParagraph(raw), summaryLimit),
		FullReview: truncate(raw, fullReviewLimit),
		Scores:     scores,
		Composite:  compositeScore(scores),
	}
}

// classify maps review text to a decision, preferring the explicit terminal
// markers and falling back to keyword inference when no marker is present.
func classify(raw string) (models.Decision, bool) {
	switch {
	case reAccepted.MatchString(raw):
		return models.DecisionAccepted, true
	case reRevision.MatchString(raw):
		return models.DecisionRevision, false
	case reRejected.MatchString(raw):
		return models.DecisionRejected, false
	}

	lower := strings.ToLower(raw)
	switch {
	case (strings.Contains(lower, "accepted") && !strings.Contains(lower, "rejected")) ||
		strings.Contains(lower, "recommend publication"):
		return models.DecisionAccepted, true
	case strings.Contains(lower, "revision"),
		strings.Contains(lower, "revise"),
		strings.Contains(lower, "improvements needed"):
		return models.DecisionRevision, false
	case strings.Contains(lower, "reject"):
		return models.DecisionRejected, false
	}

	// No signal at all. Absence of evidence is never acceptance.
	return models.DecisionRevision, false
}

// extractScores finds per-criterion percentages in the review text.
func extractScores(raw string) map[string]int {
	scores := make(map[string]int)
	for _, c := range Criteria {
		m := c.scoreRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > 100 {
			continue
		}
		scores[c.Name] = n
	}
	return scores
}

// compositeScore computes the weighted sum over the criteria that were
// actually found. Weights of missing criteria are simply excluded; the
// composite is deliberately NOT renormalized to the subset found, and it is
// never reconciled against the model's own self-reported final score. If two
// or more criteria scored strictly above 80 the composite gets a 5% strength
// bonus, capped at 100.
func compositeScore(scores map[string]int) *float64 {
	if len(scores) == 0 {
		return nil
	}

	var sum float64
	strong := 0
	for _, c := range Criteria {
		score, ok := scores[c.Name]
		if !ok {
			continue
		}
		sum += float64(score) * c.Weight
		if score > 80 {
			strong++
		}
	}

	if strong >= 2 {
		sum *= 1.05
		if sum > 100 {
			sum = 100
		}
	}

	sum = math.Round(sum*100) / 100
	return &sum
}

// firstParagraph returns the text up to the first blank line, or the whole
// text if there is none.
func firstParagraph(raw string) string {
	if i := strings.Index(raw, "\n\n"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// truncate shortens s to limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
