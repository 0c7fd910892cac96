package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/qc-reconcile/internal/model"
	"github.com/sells-group/qc-reconcile/internal/report"
	"github.com/sells-group/qc-reconcile/internal/store"
)

// reportPageSize is the number of rows read per store query while building
// a report.
var reportPageSize = 5000

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize keyer effort and accuracy by day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}

		project, _ := cmd.Flags().GetString("project")
		batch, _ := cmd.Flags().GetString("batch")
		sinceStr, _ := cmd.Flags().GetString("since")
		untilStr, _ := cmd.Flags().GetString("until")
		format, _ := cmd.Flags().GetString("format")

		filter := store.EffortFilter{ProjectID: project, BatchID: batch}
		var err error
		if filter.Since, err = parseReportTime(sinceStr); err != nil {
			return err
		}
		if filter.Until, err = parseReportTime(untilStr); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := buildReport(ctx, st, filter)
		if err != nil {
			return err
		}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		case "table":
			return report.WriteTable(os.Stdout, rows)
		default:
			return eris.Errorf("report: unknown format %q", format)
		}
	},
}

func init() {
	f := reportCmd.Flags()
	f.String("project", "", "filter by project id")
	f.String("batch", "", "filter by batch id")
	f.String("since", "", "earliest compared_at (YYYY-MM-DD or RFC 3339)")
	f.String("until", "", "exclusive upper bound on compared_at (YYYY-MM-DD or RFC 3339)")
	f.String("format", "table", "output format: table or json")
	rootCmd.AddCommand(reportCmd)
}

// buildReport loads every effort record matching filter plus the mistakes
// of those documents, and aggregates them.
func buildReport(ctx context.Context, st store.Store, filter store.EffortFilter) ([]report.Row, error) {
	var effort []model.EffortRecord
	docs := make(map[string]struct{})
	filter.Limit = reportPageSize
	for filter.Offset = 0; ; filter.Offset += reportPageSize {
		page, err := st.ListEffort(ctx, filter)
		if err != nil {
			return nil, eris.Wrap(err, "report: list effort")
		}
		for _, e := range page {
			docs[e.DocID] = struct{}{}
		}
		effort = append(effort, page...)
		if len(page) < reportPageSize {
			break
		}
	}
	if len(effort) == 0 {
		return nil, nil
	}

	var mistakes []model.Mistake
	mf := store.MistakeFilter{
		ProjectID: filter.ProjectID,
		BatchID:   filter.BatchID,
		Limit:     reportPageSize,
	}
	for ; ; mf.Offset += reportPageSize {
		page, err := st.ListMistakes(ctx, mf)
		if err != nil {
			return nil, eris.Wrap(err, "report: list mistakes")
		}
		for _, m := range page {
			if _, ok := docs[m.DocID]; ok {
				mistakes = append(mistakes, m)
			}
		}
		if len(page) < reportPageSize {
			break
		}
	}

	return report.Aggregate(effort, mistakes), nil
}

// parseReportTime accepts a date or an RFC 3339 timestamp. Empty yields the
// zero time.
func parseReportTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(report.DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Errorf("report: invalid time %q (want YYYY-MM-DD or RFC 3339)", s)
	}
	return t, nil
}
