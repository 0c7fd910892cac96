package model

import (
	"fmt"
	"strconv"
	"strings"
)

// StepKind distinguishes original task steps from synthesized rework passes.
type StepKind int

const (
	// StepOriginal is the first execution of a task definition.
	StepOriginal StepKind = iota
	// StepRework is a repeated execution of a task definition.
	StepRework
)

// Step identifies one logical processing stage of a document.
type Step struct {
	Kind       StepKind
	TaskDefKey string
	// Index is the 1-based rework position; zero for original steps.
	Index int
}

// OriginalStep returns the step for the first execution of a task.
func OriginalStep(taskDefKey string) Step {
	return Step{Kind: StepOriginal, TaskDefKey: taskDefKey}
}

// ReworkStep returns the step for the index-th repeat of a task.
func ReworkStep(taskDefKey string, index int) Step {
	return Step{Kind: StepRework, TaskDefKey: taskDefKey, Index: index}
}

// Key renders the step as its stored step key.
func (s Step) Key() string {
	if s.Kind == StepRework {
		return fmt.Sprintf("rework_%d_%s", s.Index, s.TaskDefKey)
	}
	return s.TaskDefKey
}

func (s Step) String() string { return s.Key() }

// ParseStep parses a stored step key back into a Step.
func ParseStep(key string) Step {
	rest, ok := strings.CutPrefix(key, "rework_")
	if !ok {
		return OriginalStep(key)
	}
	num, name, ok := strings.Cut(rest, "_")
	if !ok || name == "" {
		return OriginalStep(key)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return OriginalStep(key)
	}
	return ReworkStep(name, n)
}

// EnrichedRecord holds one record's nodes within a step, indexed by section.
type EnrichedRecord struct {
	SystemRecordID string
	Sections       map[string]CaptureNode
	// SectionOrder lists section names in first-seen order.
	SectionOrder []string
}

// Section returns the node for a section and whether it exists.
func (r *EnrichedRecord) Section(name string) (CaptureNode, bool) {
	if r == nil {
		return CaptureNode{}, false
	}
	n, ok := r.Sections[name]
	return n, ok
}

// EnrichedStep is one step's records in first-seen order.
type EnrichedStep struct {
	Step    Step
	Records []*EnrichedRecord
	byID    map[string]*EnrichedRecord
}

// NewEnrichedStep creates an empty enriched step.
func NewEnrichedStep(step Step) *EnrichedStep {
	return &EnrichedStep{Step: step, byID: make(map[string]*EnrichedRecord)}
}

// Put stores a node under its record and section, replacing any earlier
// node for the same cell.
func (s *EnrichedStep) Put(n CaptureNode) {
	rec, ok := s.byID[n.SystemRecordID]
	if !ok {
		rec = &EnrichedRecord{
			SystemRecordID: n.SystemRecordID,
			Sections:       make(map[string]CaptureNode),
		}
		s.byID[n.SystemRecordID] = rec
		s.Records = append(s.Records, rec)
	}
	if _, seen := rec.Sections[n.Section]; !seen {
		rec.SectionOrder = append(rec.SectionOrder, n.Section)
	}
	rec.Sections[n.Section] = n
}

// Record returns the record with the given id, or nil.
func (s *EnrichedStep) Record(id string) *EnrichedRecord {
	if s == nil {
		return nil
	}
	return s.byID[id]
}

// EnrichedData is the per-document output of grouping: steps in processing
// order with the terminal step designated explicitly.
type EnrichedData struct {
	Steps    []*EnrichedStep
	Terminal int
}

// TerminalStep returns the authoritative step, or nil when there are no steps.
func (d *EnrichedData) TerminalStep() *EnrichedStep {
	if d == nil || d.Terminal < 0 || d.Terminal >= len(d.Steps) {
		return nil
	}
	return d.Steps[d.Terminal]
}

// IsTerminal reports whether the step at index i is the terminal step.
func (d *EnrichedData) IsTerminal(i int) bool {
	return d != nil && i == d.Terminal
}

// RecordIDs returns the union of record ids across all steps in first-seen order.
func (d *EnrichedData) RecordIDs() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, s := range d.Steps {
		for _, r := range s.Records {
			if !seen[r.SystemRecordID] {
				seen[r.SystemRecordID] = true
				ids = append(ids, r.SystemRecordID)
			}
		}
	}
	return ids
}
