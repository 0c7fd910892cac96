package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// MistakeFilter specifies criteria for listing mistakes.
type MistakeFilter struct {
	DocID     string `json:"doc_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
	StepKey   string `json:"step_key,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// EffortFilter specifies criteria for listing effort records. Since and
// Until bound compared_at and are ignored when zero.
type EffortFilter struct {
	DocID     string    `json:"doc_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// Store persists reconciliation output.
type Store interface {
	// Mistakes
	ReplaceMistakes(ctx context.Context, docID string, mistakes []model.Mistake) (int64, error)
	ListMistakes(ctx context.Context, filter MistakeFilter) ([]model.Mistake, error)
	SetMistakeErrorType(ctx context.Context, id string, errorType string) error

	// Effort
	UpsertEffort(ctx context.Context, records []model.EffortRecord) (int64, error)
	ListEffort(ctx context.Context, filter EffortFilter) ([]model.EffortRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = eris.New("not found")

const defaultListLimit = 1000

var mistakeColumns = []string{
	"id", "project_id", "batch_id", "doc_id", "step_key", "terminal_step_key",
	"system_record_id", "section", "line_id", "field_name",
	"value_at_step", "value_at_terminal", "keyer_at_step", "keyer_at_terminal",
	"captured_at_step", "captured_at_terminal", "layout_name", "error_type",
}

var effortColumns = []string{
	"doc_id", "task_keyer_name", "project_id", "batch_id", "user_name_keyer",
	"layout_name", "total_field", "total_character", "total_records", "total_lines",
	"is_qc", "captured_keyer_at", "compared_at", "imported_date", "exported_date",
	"uploaded_date",
}

var effortConflictKeys = []string{"doc_id", "task_keyer_name"}

func mistakeRow(m model.Mistake) []any {
	return []any{
		m.ID, m.ProjectID, m.BatchID, m.DocID, m.StepKey, m.TerminalStepKey,
		m.SystemRecordID, m.Section, m.LineID, m.FieldName,
		m.ValueAtStep, m.ValueAtTerminal, m.KeyerAtStep, m.KeyerAtTerminal,
		m.CapturedAtStep, m.CapturedAtTerminal, m.LayoutName, m.ErrorType,
	}
}

func effortRow(e model.EffortRecord) []any {
	return []any{
		e.DocID, e.TaskKeyerName, e.ProjectID, e.BatchID, e.UserNameKeyer,
		e.LayoutName, e.TotalField, e.TotalCharacter, e.TotalRecords, e.TotalLines,
		e.IsQC, e.CapturedKeyerAt, e.ComparedAt.UTC(), e.ImportedDate, e.ExportedDate,
		e.UploadedDate,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMistake(row scannable) (model.Mistake, error) {
	var m model.Mistake
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.BatchID, &m.DocID, &m.StepKey, &m.TerminalStepKey,
		&m.SystemRecordID, &m.Section, &m.LineID, &m.FieldName,
		&m.ValueAtStep, &m.ValueAtTerminal, &m.KeyerAtStep, &m.KeyerAtTerminal,
		&m.CapturedAtStep, &m.CapturedAtTerminal, &m.LayoutName, &m.ErrorType,
	)
	return m, err
}

func scanEffort(row scannable) (model.EffortRecord, error) {
	var e model.EffortRecord
	err := row.Scan(
		&e.DocID, &e.TaskKeyerName, &e.ProjectID, &e.BatchID, &e.UserNameKeyer,
		&e.LayoutName, &e.TotalField, &e.TotalCharacter, &e.TotalRecords, &e.TotalLines,
		&e.IsQC, &e.CapturedKeyerAt, &e.ComparedAt, &e.ImportedDate, &e.ExportedDate,
		&e.UploadedDate,
	)
	return e, err
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
