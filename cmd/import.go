package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/confirm-cli/internal/ingest"
	"github.com/sells-group/confirm-cli/internal/model"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import source confirmation rows from CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var (
			rows []model.SourceRow
			err  error
		)
		switch {
		case strings.HasSuffix(strings.ToLower(importFilePath), ".xlsx"):
			rows, err = ingest.ReadXLSX(importFilePath)
		default:
			rows, err = ingest.ReadCSV(importFilePath)
		}
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		created := 0
		for _, row := range rows {
			if _, err := st.InsertRecord(ctx, row); err != nil {
				return eris.Wrapf(err, "import row %d", created+1)
			}
			created++
		}

		zap.L().Info("import complete",
			zap.Int("created", created),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
