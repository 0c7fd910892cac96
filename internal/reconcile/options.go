// Package reconcile derives mistake lists and effort summaries from the
// multi-step capture history of a single document.
package reconcile

import (
	"time"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// DefaultMultiRowSections is used when no multi-row allow-list is configured.
var DefaultMultiRowSections = []string{"Line"}

// Options configures section classification, counting, and QC detection.
type Options struct {
	// MultiRowSections lists sections diffed and counted per line.
	MultiRowSections []string
	// FieldNotCount lists fields excluded from effort counts and from the
	// mistakes emitted for a row present on one side only.
	FieldNotCount []string
	// IsQC classifies step keys as QC steps. Defaults to DefaultQCClassifier.
	IsQC QCClassifier
	// Now stamps compared_at on effort records. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MultiRowSections == nil {
		o.MultiRowSections = DefaultMultiRowSections
	}
	if o.IsQC == nil {
		o.IsQC = DefaultQCClassifier()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type stringSet map[string]struct{}

func newStringSet(items []string) stringSet {
	s := make(stringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

// fieldFilter reports whether a field takes part in diffing and counting.
type fieldFilter struct {
	excluded stringSet
}

func newFieldFilter(notCount []string) fieldFilter {
	return fieldFilter{excluded: newStringSet(notCount)}
}

func (f fieldFilter) counts(field string) bool {
	return field != model.LineIDField && !f.excluded.has(field)
}
