package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/internal/runs"
	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/formatting"
	"github.com/JaimeStill/docintel/pkg/pagination"
)

var runsFlags struct {
	state    string
	label    string
	kind     string
	search   string
	page     int
	pageSize int
	output   string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE:  runRunsList,
}

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs to an XLSX workbook",
	RunE:  runRunsExport,
}

func init() {
	for _, c := range []*cobra.Command{runsListCmd, runsExportCmd} {
		f := c.Flags()
		f.StringVar(&runsFlags.state, "state", "", "Filter by state (Persisted, Failed, ...)")
		f.StringVar(&runsFlags.label, "label", "", "Filter by classification label")
		f.StringVar(&runsFlags.kind, "error-kind", "", "Filter by error kind")
	}

	lf := runsListCmd.Flags()
	lf.StringVar(&runsFlags.search, "search", "", "Search document names and keys")
	lf.IntVar(&runsFlags.page, "page", 1, "Page number")
	lf.IntVar(&runsFlags.pageSize, "page-size", 20, "Page size")

	runsExportCmd.Flags().StringVarP(&runsFlags.output, "output", "o", "", "Workbook path (default runs-<timestamp>.xlsx)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)
}

func runsFilters() runs.Filters {
	var f runs.Filters
	if runsFlags.state != "" {
		s := pipeline.State(runsFlags.state)
		f.State = &s
	}
	if runsFlags.label != "" {
		l := taxonomy.Label(runsFlags.label)
		f.Label = &l
	}
	if runsFlags.kind != "" {
		f.ErrorKind = &runsFlags.kind
	}
	return f
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	page := pagination.PageRequest{Page: runsFlags.page, PageSize: runsFlags.pageSize}
	if runsFlags.search != "" {
		page.Search = &runsFlags.search
	}

	result, err := a.domain.Runs.List(ctx, page, runsFilters())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDOCUMENT\tSIZE\tSTATE\tLABEL\tCONFIDENCE\tERROR")
	for _, r := range result.Data {
		label, conf, errKind := "-", "-", "-"
		if r.Label != nil {
			label = string(*r.Label)
		}
		if r.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *r.Confidence)
		}
		if r.ErrorKind != nil {
			errKind = *r.ErrorKind
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.DocumentName,
			formatting.FormatBytes(r.SizeBytes, 1),
			r.State, label, conf, errKind,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d runs)\n", result.Page, result.TotalPages, result.Total)
	return nil
}

func runRunsExport(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.domain.Runs.Export(ctx, runsFilters())
	if err != nil {
		return err
	}

	path := runsFlags.output
	if path == "" {
		path = fmt.Sprintf("runs-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported runs to %s\n", path)
	return nil
}
