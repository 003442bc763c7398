package review

import "strings"

// structureKeywords are the section headers expected in an academic paper.
var structureKeywords = []string{
	"ABSTRACT",
	"INTRODUCTION",
	"METHODOLOGY",
	"METHODS",
	"RESULTS",
	"DISCUSSION",
	"CONCLUSION",
	"REFERENCES",
	"LITERATURE REVIEW",
	"BACKGROUND",
	"FINDINGS",
	"ANALYSIS",
}

// citationPatterns are cheap signals that the text cites prior work.
var citationPatterns = []string{"et al.", "(19", "(20", "[", "REFERENCES"}

// minStructureKeywords is how many section headers must appear before the
// text is considered academically structured.
const minStructureKeywords = 3

// StructureRejectionSummary is the fixed summary recorded when the academic
// structure gate forces a rejection, overriding whatever the model said.
const StructureRejectionSummary = "REJECTED: The submitted document does not appear to be a proper " +
	"academic paper. It lacks required academic structure and citations."

// LooksAcademic reports whether the text has enough academic structure to be
// treated as a paper: at least minStructureKeywords section headers plus at
// least one citation-like pattern.
//
// This is an optional pre-check policy, not a universal rule; enable it via
// the review.structure_check config key. It was dropped in later revisions
// of the review pipeline, so it defaults to off.
func LooksAcademic(text string) bool {
	upper := strings.ToUpper(text)

	found := 0
	for _, kw := range structureKeywords {
		if strings.Contains(upper, kw) {
			found++
		}
	}
	if found < minStructureKeywords {
		return false
	}

	for _, p := range citationPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
