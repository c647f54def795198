package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"goea/adapters/report"
	"goea/adapters/store"
	"goea/domain/core"
)

func newRunsCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived enrichment runs",
	}
	cmd.AddCommand(newRunsListCmd(app), newRunsShowCmd(app))
	return cmd
}

func newRunsListCmd(app *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := store.Open(cmd.Context(), app.cfg.Store.Driver, app.cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer runs.Close()

			headers, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTEST\tMETHODS\tSTUDY\tPOP\tTESTS")
			for _, h := range headers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					h.ID, h.CreatedAt, h.TestMethod, strings.Join(h.Methods, ","), h.StudyTotal, h.PopTotal, h.Tests)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func newRunsShowCmd(app *cli) *cobra.Command {
	var format, method string
	var alpha float64
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			runs, err := store.Open(cmd.Context(), app.cfg.Store.Driver, app.cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer runs.Close()

			run, err := runs.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			if alpha > 0 {
				run.Results = run.Significant(method, alpha)
			}

			switch format {
			case "json":
				return report.WriteJSON(os.Stdout, run)
			case "summary":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(run.Summary)
			default:
				return report.WriteResultsTSV(os.Stdout, run)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "tsv", "Output format: tsv, json or summary")
	cmd.Flags().StringVar(&method, "method", "", "Correction method used with --alpha (default uncorrected)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Only print results significant at this level")
	return cmd
}
