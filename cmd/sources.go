package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage scrape sources",
	Long:  "Commands for listing, adding, deactivating, and bulk-importing sources.",
}

// -- sources list --

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		activeOnly, _ := cmd.Flags().GetBool("active")
		module, _ := cmd.Flags().GetString("module")

		sources, err := st.ListSources(ctx, store.SourceFilter{
			ActiveOnly: activeOnly,
			Module:     module,
		})
		if err != nil {
			return eris.Wrap(err, "sources list")
		}

		if len(sources) == 0 {
			fmt.Fprintln(os.Stderr, "No sources found.")
			return nil
		}

		formatSourcesList(os.Stdout, sources)
		return nil
	},
}

// -- sources add --

var sourcesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		url, _ := cmd.Flags().GetString("url")
		module, _ := cmd.Flags().GetString("module")
		config, _ := cmd.Flags().GetStringToString("config")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src := &model.Source{
			Name:   name,
			URL:    url,
			Module: module,
			Active: true,
			Config: config,
		}
		if err := st.CreateSource(ctx, src); err != nil {
			return eris.Wrap(err, "sources add")
		}

		fmt.Printf("Added source %s (%s)\n", src.ID, src.Name)
		return nil
	},
}

// -- sources deactivate --

var sourcesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <source-id>",
	Short: "Deactivate a source (history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeactivateSource(ctx, args[0]); err != nil {
			return eris.Wrap(err, "sources deactivate")
		}

		fmt.Printf("Deactivated source %s\n", args[0])
		return nil
	},
}

// -- sources import --

// sourceSpec is one entry in a bulk-import YAML file.
type sourceSpec struct {
	Name   string            `yaml:"name"`
	URL    string            `yaml:"url"`
	Module string            `yaml:"module"`
	Config map[string]string `yaml:"config"`
}

var sourcesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Bulk-import sources from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		specs, err := loadSourceSpecs(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, spec := range specs {
			src := &model.Source{
				Name:   spec.Name,
				URL:    spec.URL,
				Module: spec.Module,
				Active: true,
				Config: spec.Config,
			}
			if err := st.CreateSource(ctx, src); err != nil {
				return eris.Wrapf(err, "import source %q", spec.Name)
			}
			fmt.Printf("Added source %s (%s)\n", src.ID, src.Name)
		}

		fmt.Printf("Imported %d sources.\n", len(specs))
		return nil
	},
}

// loadSourceSpecs reads and decodes a bulk-import file.
func loadSourceSpecs(path string) ([]sourceSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	var specs []sourceSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	if len(specs) == 0 {
		return nil, eris.Errorf("%s contains no sources", path)
	}
	return specs, nil
}

// formatSourcesList writes a tabular list of sources to w.
func formatSourcesList(out io.Writer, sources []model.Source) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tMODULE\tACTIVE\tURL")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t---")

	for _, s := range sources {
		url := s.URL
		if len(url) > 40 {
			url = url[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			truncateID(s.ID),
			s.Name,
			s.Module,
			s.Active,
			url,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	sourcesListCmd.Flags().Bool("active", false, "only show active sources")
	sourcesListCmd.Flags().String("module", "", "filter by module name")

	sourcesAddCmd.Flags().String("name", "", "source display name")
	sourcesAddCmd.Flags().String("url", "", "source URL")
	sourcesAddCmd.Flags().String("module", "", "module that scrapes this source")
	sourcesAddCmd.Flags().StringToString("config", nil, "module-specific options (key=value)")
	_ = sourcesAddCmd.MarkFlagRequired("name")
	_ = sourcesAddCmd.MarkFlagRequired("url")
	_ = sourcesAddCmd.MarkFlagRequired("module")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesDeactivateCmd)
	sourcesCmd.AddCommand(sourcesImportCmd)
	rootCmd.AddCommand(sourcesCmd)
}
