package reconcile

import (
	"sort"

	"github.com/google/uuid"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// Compare diffs every non-terminal step against the terminal step and
// returns one Mistake per added, removed, or changed field.
//
// Records are compared over the union of record ids seen in any step and
// sections over the union of the two sides. Sections listed in
// opts.MultiRowSections are matched row by row on line id; other sections
// compare their first row only. Absent data is treated as empty. Excluded
// fields are skipped only for rows present on one side.
func Compare(data *model.EnrichedData, doc model.Document, projectID, batchID string, opts Options) []model.Mistake {
	opts = opts.withDefaults()
	terminal := data.TerminalStep()
	if terminal == nil {
		return nil
	}

	d := differ{
		doc:       doc,
		projectID: projectID,
		batchID:   batchID,
		multiRow:  newStringSet(opts.MultiRowSections),
		fields:    newFieldFilter(opts.FieldNotCount),
		terminal:  terminal,
	}

	recordIDs := data.RecordIDs()
	var mistakes []model.Mistake
	for i, step := range data.Steps {
		if data.IsTerminal(i) {
			continue
		}
		for _, rid := range recordIDs {
			mistakes = d.compareRecord(mistakes, step, rid)
		}
	}
	return mistakes
}

type differ struct {
	doc       model.Document
	projectID string
	batchID   string
	multiRow  stringSet
	fields    fieldFilter
	terminal  *model.EnrichedStep
}

// cellContext identifies where a pair of rows was taken from.
type cellContext struct {
	stepKey  string
	recordID string
	section  string
	lineID   string
	atStep   model.CaptureNode
	atFinal  model.CaptureNode
}

func (d *differ) compareRecord(dst []model.Mistake, step *model.EnrichedStep, rid string) []model.Mistake {
	stepRec := step.Record(rid)
	finalRec := d.terminal.Record(rid)

	for _, section := range unionSections(stepRec, finalRec) {
		atStep, _ := stepRec.Section(section)
		atFinal, _ := finalRec.Section(section)
		cc := cellContext{
			stepKey:  step.Step.Key(),
			recordID: rid,
			section:  section,
			atStep:   atStep,
			atFinal:  atFinal,
		}

		if d.multiRow.has(section) {
			for _, lineID := range unionLineIDs(atStep.Data, atFinal.Data) {
				cc.lineID = lineID
				dst = d.diffRows(dst, cc, findLine(atStep.Data, lineID), findLine(atFinal.Data, lineID))
			}
			continue
		}
		cc.lineID = ""
		dst = d.diffRows(dst, cc, atStep.FirstRow(), atFinal.FirstRow())
	}
	return dst
}

func (d *differ) diffRows(dst []model.Mistake, cc cellContext, stepRow, finalRow model.Row) []model.Mistake {
	switch {
	case len(stepRow) == 0 && len(finalRow) == 0:
		return dst
	case len(stepRow) == 0:
		for _, f := range d.countedFields(finalRow) {
			dst = append(dst, d.mistake(cc, f, "", finalRow.Text(f)))
		}
	case len(finalRow) == 0:
		for _, f := range d.countedFields(stepRow) {
			dst = append(dst, d.mistake(cc, f, stepRow.Text(f), ""))
		}
	default:
		for _, f := range fieldUnion(stepRow, finalRow) {
			if sv, fv := stepRow.Text(f), finalRow.Text(f); sv != fv {
				dst = append(dst, d.mistake(cc, f, sv, fv))
			}
		}
	}
	return dst
}

func (d *differ) mistake(cc cellContext, field, atStep, atFinal string) model.Mistake {
	return model.Mistake{
		ID:                 uuid.NewString(),
		ProjectID:          d.projectID,
		BatchID:            d.batchID,
		DocID:              d.doc.ID,
		StepKey:            cc.stepKey,
		TerminalStepKey:    d.terminal.Step.Key(),
		SystemRecordID:     cc.recordID,
		Section:            cc.section,
		LineID:             cc.lineID,
		FieldName:          field,
		ValueAtStep:        atStep,
		ValueAtTerminal:    atFinal,
		KeyerAtStep:        cc.atStep.Keyer,
		KeyerAtTerminal:    cc.atFinal.Keyer,
		CapturedAtStep:     cc.atStep.CreatedTime,
		CapturedAtTerminal: cc.atFinal.CreatedTime,
		LayoutName:         d.doc.LayoutName,
	}
}

// fieldUnion returns the sorted union of every field name in rows.
func fieldUnion(rows ...model.Row) []string {
	seen := make(stringSet)
	var names []string
	for _, r := range rows {
		for f := range r {
			if seen.has(f) {
				continue
			}
			seen[f] = struct{}{}
			names = append(names, f)
		}
	}
	sort.Strings(names)
	return names
}

// countedFields returns the sorted union of diffable field names.
func (d *differ) countedFields(rows ...model.Row) []string {
	seen := make(stringSet)
	var names []string
	for _, r := range rows {
		for f := range r {
			if !d.fields.counts(f) || seen.has(f) {
				continue
			}
			seen[f] = struct{}{}
			names = append(names, f)
		}
	}
	sort.Strings(names)
	return names
}

func unionSections(a, b *model.EnrichedRecord) []string {
	seen := make(stringSet)
	var out []string
	for _, rec := range []*model.EnrichedRecord{a, b} {
		if rec == nil {
			continue
		}
		for _, s := range rec.SectionOrder {
			if !seen.has(s) {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}

func unionLineIDs(a, b []model.Row) []string {
	seen := make(stringSet)
	var out []string
	for _, rows := range [][]model.Row{a, b} {
		for _, r := range rows {
			id := r.LineID()
			if !seen.has(id) {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// findLine returns the first row carrying lineID, or nil.
func findLine(rows []model.Row, lineID string) model.Row {
	for _, r := range rows {
		if r.LineID() == lineID {
			return r
		}
	}
	return nil
}
