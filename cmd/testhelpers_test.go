package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/qc-reconcile/internal/bundle"
	"github.com/sells-group/qc-reconcile/internal/reconcile"
	"github.com/sells-group/qc-reconcile/internal/store"
)

// bundleJSON is a two-step document: keying by kim, then a QC review by lee
// that corrects the name field.
func bundleJSON(docID string) string {
	return fmt.Sprintf(`{
	"project_id": "proj-1",
	"batch_id": "batch-1",
	"document": {"_id": %q, "layout_name": "invoice"},
	"history": [{"keyed_data": {
		"T1|keying": [{"system_record_id": "R1", "records": [{"section": "Meta", "data": []}]}],
		"T2|final_qc_review": [{"system_record_id": "R1", "records": [{"section": "Meta", "data": []}]}]
	}}],
	"data_filtered": [
		{"task_id": "T1", "task_def_key": "keying", "section": "Meta", "keyer": "kim",
		 "createdtime": "2026-03-10T09:00:00Z", "data": [{"name": {"text": "Alice"}, "total": {"text": "10"}}]},
		{"task_id": "T2", "task_def_key": "final_qc_review", "section": "Meta", "keyer": "lee",
		 "createdtime": "2026-03-11T09:00:00Z", "data": [{"name": {"text": "Alicia"}, "total": {"text": "10"}}]}
	]
}`, docID)
}

func writeBundles(t *testing.T, docIDs ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range docIDs {
		path := filepath.Join(dir, id+".json")
		require.NoError(t, os.WriteFile(path, []byte(bundleJSON(id)), 0o644))
	}
	return dir
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "qc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestEngine() *reconcile.Engine {
	return reconcile.NewEngine(reconcile.Options{}, nil)
}

func mustDecode(t *testing.T, raw string) reconcile.Input {
	t.Helper()
	in, err := bundle.DecodeBytes([]byte(raw))
	require.NoError(t, err)
	return in
}
