package reconcile

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// LayoutRules supplies per-layout section and field configuration.
type LayoutRules interface {
	// RulesFor returns the multi-row sections and excluded fields for a
	// layout. ok is false when the layout has no specific rules.
	RulesFor(layoutName string) (multiRowSections, fieldNotCount []string, ok bool)
}

// Input is everything the engine needs to reconcile one document.
type Input struct {
	ProjectID    string                  `json:"project_id"`
	BatchID      string                  `json:"batch_id"`
	Document     model.Document          `json:"document"`
	History      []model.DocumentHistory `json:"history"`
	DataFiltered []model.CaptureNode     `json:"data_filtered"`
}

// Result is the derived output for one document.
type Result struct {
	DocID    string               `json:"doc_id"`
	Steps    []string             `json:"steps"`
	Terminal string               `json:"terminal_step"`
	Mistakes []model.Mistake      `json:"mistakes"`
	Effort   []model.EffortRecord `json:"effort"`
	Resolve  ResolveStats         `json:"resolve"`
}

// Engine runs the reconciliation data flow. It holds no per-document
// state and may be shared across goroutines.
type Engine struct {
	opts    Options
	layouts LayoutRules
}

// NewEngine creates an engine. layouts may be nil.
func NewEngine(opts Options, layouts LayoutRules) *Engine {
	return &Engine{opts: opts.withDefaults(), layouts: layouts}
}

// Options returns the effective options for a layout.
func (e *Engine) Options(layoutName string) Options {
	opts := e.opts
	if e.layouts == nil {
		return opts
	}
	multiRow, notCount, ok := e.layouts.RulesFor(layoutName)
	if !ok {
		return opts
	}
	if multiRow != nil {
		opts.MultiRowSections = multiRow
	}
	if notCount != nil {
		opts.FieldNotCount = notCount
	}
	return opts
}

// Enrich resolves identifiers and groups the document's nodes into steps.
func (e *Engine) Enrich(in Input) (*model.EnrichedData, ResolveStats) {
	opts := e.Options(in.Document.LayoutName)

	var history model.DocumentHistory
	if len(in.History) > 0 {
		history = in.History[0]
	}

	resolved, stats := Resolve(history, in.DataFiltered, opts.MultiRowSections)
	return GroupRecords(GroupSteps(resolved)), stats
}

// Run reconciles one document.
func (e *Engine) Run(in Input) (*Result, error) {
	if in.Document.ID == "" {
		return nil, eris.New("reconcile: document id is required")
	}

	log := zap.L().With(
		zap.String("doc_id", in.Document.ID),
		zap.String("layout", in.Document.LayoutName),
	)

	opts := e.Options(in.Document.LayoutName)
	data, stats := e.Enrich(in)

	if stats.Fallback > 0 || stats.Unresolved > 0 {
		log.Warn("record ids not fully resolved from history",
			zap.Int("fallback", stats.Fallback),
			zap.Int("unresolved", stats.Unresolved),
		)
	}

	res := &Result{
		DocID:    in.Document.ID,
		Steps:    make([]string, 0, len(data.Steps)),
		Mistakes: Compare(data, in.Document, in.ProjectID, in.BatchID, opts),
		Effort:   CountEffort(data, in.Document, in.ProjectID, in.BatchID, opts),
		Resolve:  stats,
	}
	for _, s := range data.Steps {
		res.Steps = append(res.Steps, s.Step.Key())
	}
	if t := data.TerminalStep(); t != nil {
		res.Terminal = t.Step.Key()
	}

	log.Debug("document reconciled",
		zap.Strings("steps", res.Steps),
		zap.Int("mistakes", len(res.Mistakes)),
		zap.Int("matched", stats.Matched),
		zap.Int("lines_backfilled", stats.LinesBackfilled),
	)
	return res, nil
}
