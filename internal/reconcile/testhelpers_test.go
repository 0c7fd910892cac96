package reconcile

import (
	"time"

	"github.com/sells-group/qc-reconcile/internal/model"
)

func row(kv ...string) model.Row {
	r := model.Row{}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i]] = model.Cell{Text: kv[i+1]}
	}
	return r
}

func node(taskID, taskDefKey, section string, rows ...model.Row) model.CaptureNode {
	return model.CaptureNode{
		TaskID:     taskID,
		TaskDefKey: taskDefKey,
		Section:    section,
		Data:       rows,
	}
}

func keyed(n model.CaptureNode, keyer, created string) model.CaptureNode {
	n.Keyer = keyer
	n.CreatedTime = created
	return n
}

func resolved(n model.CaptureNode, recordID string) model.CaptureNode {
	n.SystemRecordID = recordID
	return n
}

func entry(recordID string, sections ...model.HistorySection) model.HistoryEntry {
	return model.HistoryEntry{SystemRecordID: recordID, Records: sections}
}

func section(name string, rows ...model.Row) model.HistorySection {
	return model.HistorySection{Section: name, Data: rows}
}

func history(pairs ...any) model.DocumentHistory {
	var kd model.KeyedData
	for i := 0; i+1 < len(pairs); i += 2 {
		kd = append(kd, model.KeyedEntries{
			Key:     pairs[i].(string),
			Entries: pairs[i+1].([]model.HistoryEntry),
		})
	}
	return model.DocumentHistory{KeyedData: kd}
}

// enriched builds EnrichedData from already-resolved nodes grouped per step.
func enriched(steps ...StepNodes) *model.EnrichedData {
	return GroupRecords(steps)
}

func stepOf(key string, nodes ...model.CaptureNode) StepNodes {
	return StepNodes{Step: model.ParseStep(key), Nodes: nodes}
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testOpts() Options {
	return Options{Now: func() time.Time { return fixedNow }}
}

var testDoc = model.Document{
	ID:           "doc-1",
	LayoutName:   "invoice",
	BatchName:    "batch-a",
	CreatedDate:  "2026-03-10T08:00:00Z",
	ExportedDate: "2026-03-12T08:00:00Z",
	DeliveryDate: "2026-03-13T08:00:00Z",
}
