package model

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// LineIDField is the row field carrying a multi-row line identifier.
const LineIDField = "line_line_id"

// UnresolvedRecordID is the record key used for nodes the resolver could not
// correlate to a history entry.
const UnresolvedRecordID = "null"

// Cell is a single keyed field value.
type Cell struct {
	Text string `json:"text"`
}

// UnmarshalJSON accepts either an object carrying "text" or a bare scalar.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Cell{}
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Text any `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return eris.Wrap(err, "model: decode cell")
		}
		c.Text = scalarText(obj.Text)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode cell")
		}
		c.Text = s
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return eris.Wrap(err, "model: decode cell")
		}
		c.Text = scalarText(v)
	}
	return nil
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Row maps field names to keyed values.
type Row map[string]Cell

// Text returns the text of a field, or "" when the field is absent.
func (r Row) Text(field string) string {
	return r[field].Text
}

// LineID returns the row's line identifier.
func (r Row) LineID() string {
	return r.Text(LineIDField)
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CaptureNode is one task's touch on one section of one record in one step.
type CaptureNode struct {
	TaskID         string `json:"task_id"`
	TaskDefKey     string `json:"task_def_key"`
	Section        string `json:"section"`
	Data           []Row  `json:"data"`
	Keyer          string `json:"keyer,omitempty"`
	CreatedTime    string `json:"createdtime,omitempty"`
	SystemRecordID string `json:"system_record_id,omitempty"`
}

// Clone returns a deep copy of the node.
func (n CaptureNode) Clone() CaptureNode {
	out := n
	if n.Data != nil {
		out.Data = make([]Row, len(n.Data))
		for i, r := range n.Data {
			out.Data[i] = r.Clone()
		}
	}
	return out
}

// FirstRow returns the first data row, or nil when there is none.
func (n CaptureNode) FirstRow() Row {
	if len(n.Data) == 0 {
		return nil
	}
	return n.Data[0]
}

// Document is the read-only metadata of the document being reconciled.
type Document struct {
	ID           string `json:"_id"`
	LayoutName   string `json:"layout_name"`
	BatchName    string `json:"batch_name,omitempty"`
	CreatedDate  string `json:"created_date,omitempty"`
	ExportedDate string `json:"exported_date,omitempty"`
	DeliveryDate string `json:"delivery_date,omitempty"`
}
