package handoff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// frustrationMarkers are the negative-sentiment keywords that count
// toward a handoff recommendation. Matching is fuzzy so garbled
// transcripts ("fustrated", "ridiculus") still register.
var frustrationMarkers = []string{
	"frustrated",
	"angry",
	"annoyed",
	"useless",
	"terrible",
	"ridiculous",
	"unacceptable",
	"manager",
	"supervisor",
	"human",
}

const (
	// markerThreshold is how many marker hits across the evaluated window
	// tip the recommendation.
	markerThreshold = 2
	// fuzzyThreshold is the minimum Jaro-Winkler similarity for a spoken
	// word to count as a marker.
	fuzzyThreshold = 0.88
)

// Evaluation is the advisory result of rule evaluation. It is never
// persisted and never acts on its own.
type Evaluation struct {
	ShouldHandoff bool    `json:"shouldHandoff"`
	Reason        string  `json:"reason,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// evaluate counts fuzzy marker hits across caller utterances and folds
// them into an Evaluation.
func evaluate(utterances []string) Evaluation {
	hits := 0
	matched := make(map[string]struct{})
	for _, u := range utterances {
		for _, word := range strings.Fields(strings.ToLower(u)) {
			word = strings.Trim(word, ".,!?'\"")
			if marker, ok := matchMarker(word); ok {
				hits++
				matched[marker] = struct{}{}
			}
		}
	}

	if hits == 0 {
		return Evaluation{}
	}

	confidence := float64(hits) / 4
	if confidence > 1 {
		confidence = 1
	}

	ev := Evaluation{Confidence: confidence}
	if hits >= markerThreshold {
		markers := make([]string, 0, len(matched))
		for m := range matched {
			markers = append(markers, m)
		}
		sort.Strings(markers)
		ev.ShouldHandoff = true
		ev.Reason = fmt.Sprintf("caller frustration detected (%d marker hits: %s)", hits, strings.Join(markers, ", "))
	}
	return ev
}

// matchMarker reports whether word is close enough to any frustration
// marker, returning the matched marker.
func matchMarker(word string) (string, bool) {
	if len(word) < 4 {
		return "", false
	}
	for _, marker := range frustrationMarkers {
		if word == marker {
			return marker, true
		}
		if matchr.JaroWinkler(word, marker, false) >= fuzzyThreshold {
			return marker, true
		}
	}
	return "", false
}
