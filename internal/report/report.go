// Package report rolls effort records and mistakes up into per-keyer daily
// productivity and accuracy figures.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// DayLayout is the date format of Row.Day.
const DayLayout = "2006-01-02"

// Row is one (day, project, keyer) aggregate.
type Row struct {
	Day        string  `json:"day"`
	ProjectID  string  `json:"project_id"`
	Keyer      string  `json:"keyer"`
	Documents  int     `json:"documents"`
	Steps      int     `json:"steps"`
	QCSteps    int     `json:"qc_steps"`
	Fields     int     `json:"fields"`
	Characters int     `json:"characters"`
	Records    int     `json:"records"`
	Lines      int     `json:"lines"`
	Mistakes   int     `json:"mistakes"`
	Accuracy   float64 `json:"accuracy"`
}

type groupKey struct {
	day, project, keyer string
}

type stepKey struct {
	docID, step string
}

// Aggregate groups effort by the UTC day of compared_at, project, and keyer.
// A mistake is charged to the group of the effort record for the same
// document and step; mistakes without a matching effort record are dropped.
// Rows are sorted by day, project, then keyer.
func Aggregate(effort []model.EffortRecord, mistakes []model.Mistake) []Row {
	mistakesByStep := make(map[stepKey]int)
	for _, m := range mistakes {
		mistakesByStep[stepKey{m.DocID, m.StepKey}]++
	}

	groups := make(map[groupKey]*Row)
	docs := make(map[groupKey]map[string]struct{})
	for _, e := range effort {
		k := groupKey{
			day:     e.ComparedAt.UTC().Format(DayLayout),
			project: e.ProjectID,
			keyer:   e.UserNameKeyer,
		}
		r, ok := groups[k]
		if !ok {
			r = &Row{Day: k.day, ProjectID: k.project, Keyer: k.keyer}
			groups[k] = r
			docs[k] = make(map[string]struct{})
		}
		docs[k][e.DocID] = struct{}{}

		r.Steps++
		if e.IsQC {
			r.QCSteps++
		}
		r.Fields += e.TotalField
		r.Characters += e.TotalCharacter
		r.Records += e.TotalRecords
		r.Lines += e.TotalLines
		r.Mistakes += mistakesByStep[stepKey{e.DocID, e.TaskKeyerName}]
	}

	out := make([]Row, 0, len(groups))
	for k, r := range groups {
		r.Documents = len(docs[k])
		r.Accuracy = Accuracy(r.Fields, r.Mistakes)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		return a.Keyer < b.Keyer
	})
	return out
}

// Accuracy is 1 - mistakes/fields, clamped to [0, 1]. With no fields keyed
// it is 1 when there are no mistakes and 0 otherwise.
func Accuracy(fields, mistakes int) float64 {
	if fields <= 0 {
		if mistakes == 0 {
			return 1
		}
		return 0
	}
	acc := 1 - float64(mistakes)/float64(fields)
	if acc < 0 {
		return 0
	}
	return acc
}

// WriteTable renders rows as an aligned text table.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tPROJECT\tKEYER\tDOCS\tSTEPS\tQC\tFIELDS\tCHARS\tRECORDS\tLINES\tMISTAKES\tACCURACY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f%%\n",
			r.Day, r.ProjectID, r.Keyer, r.Documents, r.Steps, r.QCSteps,
			r.Fields, r.Characters, r.Records, r.Lines, r.Mistakes, r.Accuracy*100)
	}
	return tw.Flush()
}
