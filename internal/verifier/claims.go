package verifier

import (
	"regexp"
	"strings"
)

var sentenceBoundaryRe = regexp.MustCompile(`[.!?]+(\s+|$)`)

// splitClaims breaks reply text into sentence-level claims. Fragments under
// three words carry no checkable assertion and are dropped.
func splitClaims(text string) []string {
	parts := sentenceBoundaryRe.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(strings.Fields(p)) < 3 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// keywordOverlap is the degraded-mode entailment stand-in: the fraction of
// the claim's distinct terms that appear in the evidence.
func keywordOverlap(evidence, claim string) float64 {
	evWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(evidence)) {
		evWords[strings.Trim(w, ".,;:!?\"'()")] = true
	}
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(claim)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 2 {
			terms[w] = true
		}
	}
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for w := range terms {
		if evWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
