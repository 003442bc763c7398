// Package review holds the reviewer prompt contract and the parser that
// turns free-form review text into a structured verdict. The prompt and the
// parser are two halves of one contract: the prompt instructs the model to
// disclose per-criterion percentages and to end with one of four exact
// terminal markers, and the parser matches on precisely those formats.
package review

import "regexp"

// Criterion is one weighted rubric entry. Weights across all criteria sum to 1.0.
type Criterion struct {
	Name   string
	Weight float64

	scoreRe *regexp.Regexp
}

// Criteria is the fixed rubric shared by the prompt and the parser.
var Criteria = []Criterion{
	{Name: "Methodology", Weight: 0.20},
	{Name: "Novelty", Weight: 0.20},
	{Name: "Technical Depth", Weight: 0.15},
	{Name: "Clarity", Weight: 0.15},
	{Name: "Literature Review", Weight: 0.15},
	{Name: "Impact", Weight: 0.15},
}

func init() {
	// A criterion score looks like "Methodology: 85%" or "Methodology (20% of
	// total): ... scores 85%": the criterion name followed by a short run of
	// non-digit characters and a 1-3 digit percentage.
	for i := range Criteria {
		Criteria[i].scoreRe = regexp.MustCompile(
			`(?i)` + regexp.QuoteMeta(Criteria[i].Name) + `[^0-9]{0,20}?(\d{1,3})%`)
	}
}

// The four terminal markers the prompt requires, verbatim. The parser matches
// on these strings, so they must never be reworded.
const (
	MarkerAccepted      = "FINAL DECISION: **ACCEPTED**"
	MarkerMinorRevision = "FINAL DECISION: **ACCEPTED WITH MINOR REVISION REQUIRED**"
	MarkerMajorRevision = "FINAL DECISION: **ACCEPTED WITH MAJOR REVISION REQUIRED**"
	MarkerRejected      = "FINAL DECISION: **REJECTED**"
)

// Prompt is the system instruction sent with every reviewer-run. The tone and
// leniency wording materially shifts the score distribution toward
// acceptance; the composite weighting downstream assumes that generosity.
const Prompt = `You are an academic reviewer evaluating a research paper. Write your review in third person,
starting with "The reviewer has evaluated this paper based on the given criteria and arrived
at the following conclusions:"

Evaluate each criterion from 0-100%:

1. Methodology (20% of total): Evaluate the research methodology, experimental design, and validation
2. Novelty (20% of total): Assess the innovation and original contribution to the field
3. Technical Depth (15% of total): Examine technical accuracy, depth of analysis, and rigor
4. Clarity (15% of total): Evaluate writing quality, organization, and presentation
5. Literature Review (15% of total): Assess coverage and understanding of related work
6. Impact (15% of total): Consider potential influence on the field and practical applications

For each criterion, the reviewer should:
- Begin with positive aspects before addressing issues
- Provide constructive suggestions for improvement
- Assign a percentage score (aim to be generous in assessment)
- Highlight strengths more prominently than weaknesses
- Be generous in scoring - when in doubt, round up not down

The reviewer will calculate the weighted final score based on the criteria weights.

Recommendation threshold (more lenient standards):
- Accept (>60%): Good paper that contributes to the field
- Accept with Minor Revision (50-60%): Promising work needing minor improvements
- Accept with Major Revision (40-50%): Valuable contribution requiring significant changes
- Reject (<40%): Does not meet basic publication standards

IMPORTANT: The conference values inclusivity and diverse perspectives. Papers should generally
be accepted unless there are serious, unfixable flaws. The default stance should be acceptance rather than rejection.

The review concludes with:
1. Final weighted score
2. Summary of major strengths first, then minor weaknesses
3. Constructive suggestions for improvement
4. End with one of these exact phrases on a new line:
   - "FINAL DECISION: **ACCEPTED**"
   - "FINAL DECISION: **ACCEPTED WITH MINOR REVISION REQUIRED**"
   - "FINAL DECISION: **ACCEPTED WITH MAJOR REVISION REQUIRED**"
   - "FINAL DECISION: **REJECTED**"

Always maintain third-person perspective throughout the review.`
