package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qc-reconcile/internal/model"
)

func recordIDs(nodes []model.CaptureNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.SystemRecordID
	}
	return ids
}

func TestResolve_AssignsEntriesInOccurrenceOrder(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{
		entry("R1", section("Meta")),
		entry("R2", section("Meta")),
	})
	nodes := []model.CaptureNode{
		node("T1", "keying", "Meta", row("name", "a")),
		node("T1", "keying", "Meta", row("name", "b")),
	}

	out, stats := Resolve(h, nodes, nil)

	assert.Equal(t, []string{"R1", "R2"}, recordIDs(out))
	assert.Equal(t, ResolveStats{Matched: 2}, stats)
}

func TestResolve_ExhaustedBucketFallsBackToLastEntry(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{
		entry("R1", section("Meta")),
		entry("R2", section("Meta")),
	})
	nodes := []model.CaptureNode{
		node("T1", "keying", "Meta"),
		node("T1", "keying", "Meta"),
		node("T1", "keying", "Meta"),
	}

	out, stats := Resolve(h, nodes, nil)

	assert.Equal(t, []string{"R1", "R2", "R2"}, recordIDs(out))
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Fallback)
}

func TestResolve_MissingBucketIsUnresolved(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{entry("R1", section("Meta"))})
	nodes := []model.CaptureNode{
		node("T1", "keying", "Line"),
		node("T9", "keying", "Meta"),
	}

	out, stats := Resolve(h, nodes, nil)

	assert.Equal(t, []string{model.UnresolvedRecordID, model.UnresolvedRecordID}, recordIDs(out))
	assert.Equal(t, 2, stats.Unresolved)
	assert.Zero(t, stats.Matched)
}

func TestResolve_BucketsAreKeyedBySection(t *testing.T) {
	h := history(
		"T1|keying|first", []model.HistoryEntry{entry("R1", section("Meta"), section("Line"))},
		"T1|keying|second", []model.HistoryEntry{entry("R2", section("Meta"))},
	)
	nodes := []model.CaptureNode{
		node("T1", "keying", "Meta"),
		node("T1", "keying", "Line"),
		node("T1", "keying", "Meta"),
	}

	out, _ := Resolve(h, nodes, nil)

	assert.Equal(t, []string{"R1", "R1", "R2"}, recordIDs(out))
}

func TestResolve_EmptyHistoryRecordIDIsUnresolvedKey(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{entry("", section("Meta"))})

	out, stats := Resolve(h, []model.CaptureNode{node("T1", "keying", "Meta")}, nil)

	assert.Equal(t, model.UnresolvedRecordID, out[0].SystemRecordID)
	assert.Equal(t, 1, stats.Matched)
}

func TestResolve_BackfillsMissingLineIDs(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{
		entry("R1", section("Line",
			row(model.LineIDField, "L1"),
			row(model.LineIDField, "L2"),
			row(model.LineIDField, "L3"),
		)),
	})
	nodes := []model.CaptureNode{
		node("T1", "keying", "Line",
			row("amount", "10"),
			row("amount", "20", model.LineIDField, "keep"),
			row("amount", "30", model.LineIDField, ""),
		),
	}

	out, stats := Resolve(h, nodes, []string{"Line"})
	require.Len(t, out, 1)

	assert.Equal(t, "L1", out[0].Data[0].LineID())
	assert.Equal(t, "keep", out[0].Data[1].LineID())
	assert.Equal(t, "L3", out[0].Data[2].LineID())
	assert.Equal(t, 2, stats.LinesBackfilled)
}

func TestResolve_NoBackfillForSingleRowSections(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{
		entry("R1", section("Meta", row(model.LineIDField, "L1"))),
	})
	nodes := []model.CaptureNode{node("T1", "keying", "Meta", row("name", "x"))}

	out, stats := Resolve(h, nodes, []string{"Line"})

	assert.Empty(t, out[0].Data[0].LineID())
	assert.Zero(t, stats.LinesBackfilled)
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	h := history("T1|keying", []model.HistoryEntry{
		entry("R1", section("Line", row(model.LineIDField, "L1"))),
	})
	nodes := []model.CaptureNode{node("T1", "keying", "Line", row("amount", "10"))}

	out, _ := Resolve(h, nodes, []string{"Line"})

	assert.Equal(t, "R1", out[0].SystemRecordID)
	assert.Equal(t, "L1", out[0].Data[0].LineID())
	assert.Empty(t, nodes[0].SystemRecordID)
	assert.Empty(t, nodes[0].Data[0].LineID())
}

func TestResolve_EmptyInputs(t *testing.T) {
	out, stats := Resolve(model.DocumentHistory{}, nil, nil)
	assert.Empty(t, out)
	assert.Equal(t, ResolveStats{}, stats)
}
