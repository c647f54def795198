package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"goea/adapters/association"
	"goea/adapters/report"
	"goea/domain/ontology"
	"goea/internal/subdag"
)

type closureFlags struct {
	termsFile    string
	output       string
	workers      int
	obsoleteOnly bool
}

func newAncestorsCmd(app *cli) *cobra.Command {
	var f closureFlags
	cmd := &cobra.Command{
		Use:   "ancestors [term-ids...]",
		Short: "List the ancestors of each term",
		Long: `List the ancestors of each term as Goterm<TAB>Parents rows, parents joined by ";".

Example: goea ancestors GO:0008150 GO:0009987 --relationships part_of --obo go-basic.obo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClosure(cmd, app, args, f, true)
		},
	}
	f.register(cmd, false)
	return cmd
}

func newDescendantsCmd(app *cli) *cobra.Command {
	var f closureFlags
	cmd := &cobra.Command{
		Use:   "descendants [term-ids...]",
		Short: "List the descendants of each term",
		Long: `List the descendants of each term as Goterm<TAB>Descendent rows.

With --obsolete-only and no term ids, every obsolete term in the ontology is listed.

Example: goea descendants --obsolete-only --obo go-basic.obo -o obsolete_descendants.tsv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClosure(cmd, app, args, f, false)
		},
	}
	f.register(cmd, true)
	return cmd
}

func (f *closureFlags) register(cmd *cobra.Command, obsolete bool) {
	cmd.Flags().StringVar(&f.termsFile, "terms", "", "File of term ids (Goterm column or one per line)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "-", "Output TSV file")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent closure workers (0 = GOEA_WORKERS or CPU count)")
	if obsolete {
		cmd.Flags().BoolVar(&f.obsoleteOnly, "obsolete-only", false, "Only list obsolete terms")
	}
}

func runClosure(cmd *cobra.Command, app *cli, args []string, f closureFlags, up bool) error {
	g, err := app.graph()
	if err != nil {
		return err
	}

	seeds, err := closureSeeds(g, args, f)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return fmt.Errorf("no terms given: pass term ids, --terms or --obsolete-only")
	}

	workers := f.workers
	if workers == 0 {
		workers = app.cfg.Enrichment.Workers
	}
	builder := subdag.NewBuilder(g, subdag.WithWorkers(workers), subdag.WithLogger(app.logger))
	sd, err := builder.Build(cmd.Context(), seeds, app.filter())
	if err != nil {
		return err
	}

	header := report.DescendantsHeader
	if up {
		header = report.AncestorsHeader
	}
	rows := make([]report.ClosureRow, 0, len(seeds))
	for _, id := range sd.Seeds() {
		var related ontology.TermSet
		if up {
			related, _ = sd.Ancestors(id)
		} else {
			related, _ = sd.Descendants(id)
		}
		rows = append(rows, report.ClosureRow{Term: id, Related: related})
	}

	out, err := createOutput(f.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := report.WriteClosures(out, header, rows); err != nil {
		return err
	}

	app.logger.Info("closures written",
		"terms", len(rows),
		"subdag_terms", sd.Terms().Len(),
		"relationships", sd.Filter().Key(),
		"warnings", len(sd.Warnings()))
	return nil
}

func closureSeeds(g *ontology.Graph, args []string, f closureFlags) ([]ontology.TermID, error) {
	seeds := make([]ontology.TermID, 0, len(args))
	for _, a := range args {
		seeds = append(seeds, ontology.TermID(a))
	}
	if f.termsFile != "" {
		file, err := os.Open(f.termsFile)
		if err != nil {
			return nil, fmt.Errorf("open term list %s: %w", f.termsFile, err)
		}
		defer file.Close()
		ids, err := association.ReadTermList(file)
		if err != nil {
			return nil, fmt.Errorf("read term list %s: %w", f.termsFile, err)
		}
		seeds = append(seeds, ids...)
	}

	if !f.obsoleteOnly {
		return seeds, nil
	}
	if len(seeds) == 0 {
		for _, id := range g.IDs() {
			if t, _ := g.Term(id); t.Obsolete {
				seeds = append(seeds, id)
			}
		}
		return seeds, nil
	}
	kept := seeds[:0]
	for _, id := range seeds {
		if t, ok := g.Term(id); ok && t.Obsolete {
			kept = append(kept, id)
		}
	}
	return kept, nil
}
