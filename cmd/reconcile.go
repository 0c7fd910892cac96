package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/qc-reconcile/internal/bundle"
	"github.com/sells-group/qc-reconcile/internal/reconcile"
)

var reconcileSave bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <bundle.json>",
	Short: "Reconcile one document bundle and print the result",
	Long: `Reads a document bundle (document metadata, capture history, and filtered
capture nodes), derives its mistakes and effort records, and prints the result
as JSON. With --save the result is also written to the configured store,
replacing any earlier mistakes for the document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}

		eng, err := newEngine(cfg.Engine)
		if err != nil {
			return err
		}

		in, err := bundle.Load(args[0])
		if err != nil {
			return err
		}

		res, err := eng.Run(in)
		if err != nil {
			return eris.Wrap(err, "reconcile")
		}

		if reconcileSave {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			w := newResultWriter(st, 0, cfg.Batch.RetryAttempts)
			if err := w.Save(ctx, res); err != nil {
				return err
			}
			zap.L().Info("reconcile result saved",
				zap.String("doc_id", res.DocID),
				zap.Int("mistakes", len(res.Mistakes)),
				zap.Int("effort_records", len(res.Effort)),
			)
		}

		return writeResult(os.Stdout, res)
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileSave, "save", false, "persist mistakes and effort to the store")
	rootCmd.AddCommand(reconcileCmd)
}

func writeResult(w io.Writer, res *reconcile.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(res), "reconcile: encode result")
}
