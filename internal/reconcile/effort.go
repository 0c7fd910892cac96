package reconcile

import (
	"unicode/utf8"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// CountEffort returns one EffortRecord per step with field, character,
// record, and line totals.
//
// A step is flagged IsQC when it is not itself a QC step and the terminal
// step is one. The keyer and capture time of a step are the first
// non-empty values met while walking its records.
func CountEffort(data *model.EnrichedData, doc model.Document, projectID, batchID string, opts Options) []model.EffortRecord {
	opts = opts.withDefaults()
	terminal := data.TerminalStep()
	if terminal == nil {
		return nil
	}

	multiRow := newStringSet(opts.MultiRowSections)
	fields := newFieldFilter(opts.FieldNotCount)
	terminalIsQC := opts.IsQC(terminal.Step.Key())
	comparedAt := opts.Now().UTC()

	records := make([]model.EffortRecord, 0, len(data.Steps))
	for _, step := range data.Steps {
		key := step.Step.Key()
		er := model.EffortRecord{
			ProjectID:     projectID,
			BatchID:       batchID,
			DocID:         doc.ID,
			TaskKeyerName: key,
			LayoutName:    doc.LayoutName,
			TotalRecords:  len(step.Records),
			IsQC:          !opts.IsQC(key) && terminalIsQC,
			ComparedAt:    comparedAt,
			ImportedDate:  doc.CreatedDate,
			ExportedDate:  doc.ExportedDate,
			UploadedDate:  doc.DeliveryDate,
		}

		for _, rec := range step.Records {
			for _, section := range rec.SectionOrder {
				node := rec.Sections[section]
				if er.UserNameKeyer == "" {
					er.UserNameKeyer = node.Keyer
				}
				if er.CapturedKeyerAt == "" {
					er.CapturedKeyerAt = node.CreatedTime
				}

				rows := node.Data
				if multiRow.has(section) {
					er.TotalLines += len(rows)
				} else if len(rows) > 1 {
					rows = rows[:1]
				}
				for _, row := range rows {
					for f, cell := range row {
						if !fields.counts(f) {
							continue
						}
						er.TotalField++
						er.TotalCharacter += utf8.RuneCountInString(cell.Text)
					}
				}
			}
		}
		records = append(records, er)
	}
	return records
}
