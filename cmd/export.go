package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/campusdata/ingest-cli/internal/model"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export processed records to a spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListAllProcessedData(ctx, exportLimit)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if len(records) == 0 {
			return eris.New("no processed records to export")
		}

		f, err := buildWorkbook(records)
		if err != nil {
			return err
		}
		if err := f.Save(exportOut); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}

		fmt.Printf("Exported %d records to %s\n", len(records), exportOut)
		return nil
	},
}

// buildWorkbook lays records out one sheet per module, newest first
// within a sheet.
func buildWorkbook(records []model.ProcessedData) (*xlsx.File, error) {
	byModule := make(map[string][]model.ProcessedData)
	for _, rec := range records {
		byModule[rec.Module] = append(byModule[rec.Module], rec)
	}

	modules := make([]string, 0, len(byModule))
	for name := range byModule {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	f := xlsx.NewFile()
	for _, name := range modules {
		sheet, err := f.AddSheet(name)
		if err != nil {
			return nil, eris.Wrapf(err, "add sheet %s", name)
		}

		header := sheet.AddRow()
		for _, col := range []string{"ID", "Title", "Content", "Sentiment", "Processed At"} {
			header.AddCell().SetString(col)
		}

		for _, rec := range byModule[name] {
			row := sheet.AddRow()
			row.AddCell().SetString(rec.ID)
			row.AddCell().SetString(rec.Title)
			row.AddCell().SetString(rec.Content)
			if rec.Sentiment != nil {
				row.AddCell().SetFloat(*rec.Sentiment)
			} else {
				row.AddCell().SetString("")
			}
			row.AddCell().SetString(rec.ProcessedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return f, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "data.xlsx", "output spreadsheet path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "max records to export")
	rootCmd.AddCommand(exportCmd)
}
