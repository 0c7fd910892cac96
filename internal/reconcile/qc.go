package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
)

// QCClassifier reports whether a step key names a quality-control step.
type QCClassifier func(stepKey string) bool

// DefaultQCMarkers are the step-name fragments that mark a QC step.
var DefaultQCMarkers = []string{"_qc_", "_aqc_", "quality_check", "approve_mistake"}

// DefaultQCClassifier matches DefaultQCMarkers case-insensitively.
func DefaultQCClassifier() QCClassifier {
	return MarkerClassifier(DefaultQCMarkers...)
}

// MarkerClassifier returns a classifier matching any of the given
// substrings, compared under Unicode case folding.
func MarkerClassifier(markers ...string) QCClassifier {
	fold := cases.Fold()
	folded := make([]string, 0, len(markers))
	for _, m := range markers {
		if m == "" {
			continue
		}
		folded = append(folded, fold.String(m))
	}
	return func(stepKey string) bool {
		key := cases.Fold().String(stepKey)
		for _, m := range folded {
			if strings.Contains(key, m) {
				return true
			}
		}
		return false
	}
}
