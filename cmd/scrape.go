package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/ingest"
)

var (
	scrapeAll     bool
	scrapeForce   bool
	scrapeModules []string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [source-id]",
	Short: "Scrape one source, or sweep all active sources with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		ctx := cmd.Context()

		if scrapeAll == (len(args) == 1) {
			return eris.New("provide either a source id or --all, not both")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if scrapeAll {
			engine := ingest.NewEngine(st, reg)
			summary, err := engine.RunAll(ctx, ingest.EngineOpts{
				Modules:     scrapeModules,
				Concurrency: cfg.Scrape.SweepConcurrency,
			})
			if err != nil {
				return eris.Wrap(err, "scrape sweep")
			}
			return enc.Encode(summary)
		}

		orch := ingest.NewScrapeOrchestrator(st, reg)
		run := orch.Run
		if scrapeForce {
			run = orch.RunForced
		}

		outcome, err := run(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "scrape")
		}
		if !outcome.Success {
			zap.L().Warn("scrape job failed",
				zap.String("job_id", outcome.JobID),
				zap.String("error", outcome.Error),
			)
		}
		return enc.Encode(outcome)
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeAll, "all", false, "sweep every active source")
	scrapeCmd.Flags().BoolVar(&scrapeForce, "force", false, "scrape even if the source is deactivated")
	scrapeCmd.Flags().StringSliceVar(&scrapeModules, "module", nil, "with --all, restrict the sweep to these modules")
	rootCmd.AddCommand(scrapeCmd)
}
