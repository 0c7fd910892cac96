package reconcile

import (
	"github.com/sells-group/qc-reconcile/internal/model"
)

// ResolveStats counts how each capture node was correlated to history.
type ResolveStats struct {
	// Matched nodes consumed their own history entry.
	Matched int `json:"matched"`
	// Fallback nodes found their bucket exhausted and reused its last entry.
	Fallback int `json:"fallback"`
	// Unresolved nodes had no history bucket at all.
	Unresolved int `json:"unresolved"`
	// LinesBackfilled counts rows whose empty line id was filled from history.
	LinesBackfilled int `json:"lines_backfilled"`
}

type bucketKey struct {
	taskID     string
	taskDefKey string
	section    string
}

type historyRef struct {
	systemRecordID string
	lineIDs        []string
}

// Resolve assigns a system record id to every capture node by positional
// correlation with the document history. The input nodes are not modified;
// resolved copies are returned in input order.
//
// History entries for a (task_id, task_def_key, section) bucket are consumed
// in order. When a bucket runs out the last entry is reused and counted in
// ResolveStats.Fallback. Nodes without a bucket resolve to
// model.UnresolvedRecordID.
func Resolve(history model.DocumentHistory, nodes []model.CaptureNode, multiRowSections []string) ([]model.CaptureNode, ResolveStats) {
	buckets := indexHistory(history)
	multiRow := newStringSet(multiRowSections)
	occurrence := make(map[bucketKey]int, len(buckets))

	var stats ResolveStats
	out := make([]model.CaptureNode, len(nodes))
	for i, n := range nodes {
		rn := n.Clone()
		key := bucketKey{taskID: n.TaskID, taskDefKey: n.TaskDefKey, section: n.Section}

		refs, ok := buckets[key]
		if !ok || len(refs) == 0 {
			rn.SystemRecordID = model.UnresolvedRecordID
			stats.Unresolved++
			out[i] = rn
			continue
		}

		idx := occurrence[key]
		occurrence[key] = idx + 1
		if idx >= len(refs) {
			idx = len(refs) - 1
			stats.Fallback++
		} else {
			stats.Matched++
		}
		ref := refs[idx]

		rn.SystemRecordID = ref.systemRecordID
		if rn.SystemRecordID == "" {
			rn.SystemRecordID = model.UnresolvedRecordID
		}

		if multiRow.has(n.Section) {
			stats.LinesBackfilled += backfillLineIDs(rn.Data, ref.lineIDs)
		}
		out[i] = rn
	}
	return out, stats
}

func indexHistory(history model.DocumentHistory) map[bucketKey][]historyRef {
	buckets := make(map[bucketKey][]historyRef)
	for _, ke := range history.KeyedData {
		taskID, taskDefKey := ke.TaskID(), ke.TaskDefKey()
		for _, entry := range ke.Entries {
			for _, sec := range entry.Records {
				key := bucketKey{taskID: taskID, taskDefKey: taskDefKey, section: sec.Section}
				buckets[key] = append(buckets[key], historyRef{
					systemRecordID: entry.SystemRecordID,
					lineIDs:        sec.LineIDs(),
				})
			}
		}
	}
	return buckets
}

// backfillLineIDs fills empty line ids from history, index-aligned.
func backfillLineIDs(rows []model.Row, lineIDs []string) int {
	var filled int
	for i := range rows {
		if i >= len(lineIDs) || lineIDs[i] == "" {
			continue
		}
		if rows[i].LineID() != "" {
			continue
		}
		if rows[i] == nil {
			rows[i] = model.Row{}
		}
		cell := rows[i][model.LineIDField]
		cell.Text = lineIDs[i]
		rows[i][model.LineIDField] = cell
		filled++
	}
	return filled
}
