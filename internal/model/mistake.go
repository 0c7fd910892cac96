package model

import "time"

// Mistake is one field-level discrepancy between a step and the terminal step.
type Mistake struct {
	ID                 string  `json:"id"`
	ProjectID          string  `json:"project_id"`
	BatchID            string  `json:"batch_id"`
	DocID              string  `json:"doc_id"`
	StepKey            string  `json:"step_key"`
	TerminalStepKey    string  `json:"terminal_step_key"`
	SystemRecordID     string  `json:"system_record_id"`
	Section            string  `json:"section"`
	LineID             string  `json:"line_id"`
	FieldName          string  `json:"field_name"`
	ValueAtStep        string  `json:"value_at_step"`
	ValueAtTerminal    string  `json:"value_at_terminal"`
	KeyerAtStep        string  `json:"keyer_at_step"`
	KeyerAtTerminal    string  `json:"keyer_at_terminal"`
	CapturedAtStep     string  `json:"captured_at_step"`
	CapturedAtTerminal string  `json:"captured_at_terminal"`
	LayoutName         string  `json:"layout_name"`
	ErrorType          *string `json:"error_type"`
}

// EffortRecord aggregates the keying effort of one step of one document.
type EffortRecord struct {
	ProjectID       string    `json:"project_id"`
	BatchID         string    `json:"batch_id"`
	DocID           string    `json:"doc_id"`
	UserNameKeyer   string    `json:"user_name_keyer"`
	TaskKeyerName   string    `json:"task_keyer_name"`
	LayoutName      string    `json:"layout_name"`
	TotalField      int       `json:"total_field"`
	TotalCharacter  int       `json:"total_character"`
	TotalRecords    int       `json:"total_records"`
	TotalLines      int       `json:"total_lines"`
	IsQC            bool      `json:"is_qc"`
	CapturedKeyerAt string    `json:"captured_keyer_at"`
	ComparedAt      time.Time `json:"compared_at"`
	ImportedDate    string    `json:"imported_date"`
	ExportedDate    string    `json:"exported_date"`
	UploadedDate    string    `json:"uploaded_date"`
}
