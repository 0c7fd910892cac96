package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qc-reconcile/internal/model"
	"github.com/sells-group/qc-reconcile/internal/reconcile"
	"github.com/sells-group/qc-reconcile/internal/report"
	"github.com/sells-group/qc-reconcile/internal/store"
)

func newTestAPI(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st := newTestStore(t)
	api := &apiServer{
		engine: newTestEngine(),
		store:  st,
		writer: newResultWriter(st, 0, 1),
	}
	return newRouter(api, []string{"https://qc.example.com"}), st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestReconcileEndpoint_ReturnsResult(t *testing.T) {
	h, st := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/v1/reconcile", bundleJSON("doc-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res reconcile.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "doc-1", res.DocID)
	assert.Equal(t, []string{"keying", "final_qc_review"}, res.Steps)
	assert.Equal(t, "final_qc_review", res.Terminal)
	require.Len(t, res.Mistakes, 1)
	assert.Equal(t, "Alice", res.Mistakes[0].ValueAtStep)
	assert.Equal(t, "Alicia", res.Mistakes[0].ValueAtTerminal)
	assert.Len(t, res.Effort, 2)

	stored, err := st.ListMistakes(context.Background(), store.MistakeFilter{DocID: "doc-1"})
	require.NoError(t, err)
	assert.Empty(t, stored, "result should not be persisted without save=true")
}

func TestReconcileEndpoint_SaveThenQuery(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/v1/reconcile?save=true", bundleJSON("doc-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/documents/doc-1/mistakes", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var mistakes []model.Mistake
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mistakes))
	require.Len(t, mistakes, 1)
	assert.Equal(t, "name", mistakes[0].FieldName)
	assert.Nil(t, mistakes[0].ErrorType)

	rr = do(t, h, http.MethodPatch, "/v1/mistakes/"+mistakes[0].ID, `{"error_type":"typo"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/documents/doc-1/mistakes?step_key=keying", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mistakes))
	require.Len(t, mistakes, 1)
	require.NotNil(t, mistakes[0].ErrorType)
	assert.Equal(t, "typo", *mistakes[0].ErrorType)

	rr = do(t, h, http.MethodGet, "/v1/documents/doc-1/effort", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var effort []model.EffortRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &effort))
	assert.Len(t, effort, 2)

	rr = do(t, h, http.MethodGet, "/v1/reports/effort?project_id=proj-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rows []report.Row
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	byKeyer := map[string]report.Row{rows[0].Keyer: rows[0], rows[1].Keyer: rows[1]}
	assert.Equal(t, 1, byKeyer["kim"].Mistakes)
	assert.Equal(t, 0, byKeyer["lee"].Mistakes)
}

func TestReconcileEndpoint_RerunReplacesMistakes(t *testing.T) {
	h, st := newTestAPI(t)

	for i := 0; i < 2; i++ {
		rr := do(t, h, http.MethodPost, "/v1/reconcile?save=true", bundleJSON("doc-1"))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	mistakes, err := st.ListMistakes(context.Background(), store.MistakeFilter{DocID: "doc-1"})
	require.NoError(t, err)
	assert.Len(t, mistakes, 1)

	effort, err := st.ListEffort(context.Background(), store.EffortFilter{DocID: "doc-1"})
	require.NoError(t, err)
	assert.Len(t, effort, 2)
}

func TestReconcileEndpoint_BadBody(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPost, "/v1/reconcile", `{"document":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/reconcile", `{"document":{"layout_name":"invoice"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "document._id is required")
}

func TestListMistakes_EmptyIsArray(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodGet, "/v1/documents/none/mistakes", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestListMistakes_BadPaging(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodGet, "/v1/documents/doc-1/mistakes?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/documents/doc-1/mistakes?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetErrorType_Errors(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodPatch, "/v1/mistakes/missing", `{"error_type":"typo"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPatch, "/v1/mistakes/m1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPatch, "/v1/mistakes/m1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetErrorType_BodyTooLarge(t *testing.T) {
	h, _ := newTestAPI(t)

	body := `{"error_type":"` + strings.Repeat("x", maxReviewBytes) + `"}`
	rr := do(t, h, http.MethodPatch, "/v1/mistakes/m1", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "too large")
}

func TestEffortReport_BadTime(t *testing.T) {
	h, _ := newTestAPI(t)

	rr := do(t, h, http.MethodGet, "/v1/reports/effort?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORS_Preflight(t *testing.T) {
	h, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/reconcile", nil)
	req.Header.Set("Origin", "https://qc.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://qc.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
