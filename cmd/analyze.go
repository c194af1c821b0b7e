package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/ingest"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <scraped-data-id>",
	Short: "Run the module analyzer over one capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		orch := ingest.NewAnalysisOrchestrator(st, reg)
		outcome, err := orch.Run(ctx, args[0])
		if errors.Is(err, ingest.ErrNoAnalyzer) {
			fmt.Fprintln(os.Stderr, "Module registers no analyzer; nothing to do.")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		if !outcome.Success {
			zap.L().Warn("analysis job failed",
				zap.String("job_id", outcome.JobID),
				zap.String("error", outcome.Error),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
