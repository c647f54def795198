package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"goea/adapters/association"
	"goea/adapters/report"
	"goea/adapters/stats/fisher"
	"goea/adapters/store"
	"goea/app"
	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/internal/subdag"
	"goea/ports"
)

type enrichFlags struct {
	study      string
	population string
	assoc      string
	delimiter  string
	sheet      string
	methods    []string
	pvalcalc   string
	crossCheck bool
	tolerance  float64
	alpha      float64
	propagate  bool
	namespaces []string
	workers    int
	format     string
	output     string
	save       bool
}

func newEnrichCmd(cl *cli) *cobra.Command {
	var f enrichFlags
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Test every annotated term for over- or under-representation in a study set",
		Long: `Run a term enrichment analysis of a study set against a population.

Example: goea enrich --study study.txt --population population.txt --assoc associations.tsv \
    --methods bonferroni,fdr_bh --format tsv -o results.tsv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, cl)
			return runEnrich(cmd, cl, f)
		},
	}

	cmd.Flags().StringVar(&f.study, "study", "", "Study item file (one id per line)")
	cmd.Flags().StringVar(&f.population, "population", "", "Population item file (one id per line)")
	cmd.Flags().StringVar(&f.assoc, "assoc", "", "Association file (item<TAB>term;term, .gz or .xlsx)")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "Term separator within an association row")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Sheet of an xlsx association file")
	cmd.Flags().StringSliceVar(&f.methods, "methods", nil, "Correction methods ("+strings.Join([]string{enrichment.MethodBonferroni, enrichment.MethodFDRBH}, ", ")+")")
	cmd.Flags().StringVar(&f.pvalcalc, "pvalcalc", "", "Fisher engine ("+strings.Join(fisher.Names(), ", ")+")")
	cmd.Flags().BoolVar(&f.crossCheck, "cross-check", false, "Verify every p-value against the other Fisher engine")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 0, "Relative tolerance for --cross-check")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "Significance level for the summary")
	cmd.Flags().BoolVar(&f.propagate, "propagate", false, "Propagate annotations to ancestors before counting")
	cmd.Flags().StringSliceVar(&f.namespaces, "namespaces", nil, "Only test terms in these namespaces")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent scoring workers")
	cmd.Flags().StringVar(&f.format, "format", "tsv", "Output format: tsv, json or xlsx")
	cmd.Flags().StringVarP(&f.output, "output", "o", "-", "Output file")
	cmd.Flags().BoolVar(&f.save, "save", false, "Archive the run in the configured store")

	cmd.MarkFlagRequired("study")
	cmd.MarkFlagRequired("population")
	return cmd
}

// apply folds explicitly set flags into the loaded configuration.
func (f *enrichFlags) apply(cmd *cobra.Command, cl *cli) {
	flags := cmd.Flags()
	e := &cl.cfg.Enrichment
	if flags.Changed("assoc") {
		cl.cfg.Association.Path = f.assoc
	}
	if flags.Changed("delimiter") {
		cl.cfg.Association.Delimiter = f.delimiter
	}
	if flags.Changed("methods") {
		e.Methods = f.methods
	}
	if flags.Changed("pvalcalc") {
		e.PValCalc = f.pvalcalc
	}
	if flags.Changed("cross-check") {
		e.CrossCheck = f.crossCheck
	}
	if flags.Changed("tolerance") {
		e.Tolerance = f.tolerance
	}
	if flags.Changed("alpha") {
		e.Alpha = f.alpha
	}
	if flags.Changed("propagate") {
		e.Propagate = f.propagate
	}
	if flags.Changed("namespaces") {
		e.Namespaces = f.namespaces
	}
	if flags.Changed("workers") {
		e.Workers = f.workers
	}
}

func runEnrich(cmd *cobra.Command, cl *cli, f enrichFlags) error {
	ctx := cmd.Context()
	cfg := cl.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Association.Path == "" {
		return fmt.Errorf("no association file: pass --assoc or set GOEA_ASSOCIATIONS")
	}
	switch f.format {
	case "tsv", "json", "xlsx":
	default:
		return fmt.Errorf("unknown output format %q", f.format)
	}

	g, err := cl.graph()
	if err != nil {
		return err
	}
	assoc, warnings, err := association.ReadFile(cfg.Association.Path, association.Options{
		Delimiter: cfg.Association.Delimiter,
		Sheet:     f.sheet,
		Logger:    cl.logger,
	})
	if err != nil {
		return err
	}
	core.LogWarnings(cl.logger, warnings)

	study, err := association.ReadItemSetFile(f.study)
	if err != nil {
		return err
	}
	population, err := association.ReadItemSetFile(f.population)
	if err != nil {
		return err
	}

	calc, err := calculator(cfg.Enrichment.PValCalc, cfg.Enrichment.CrossCheck, cfg.Enrichment.Tolerance)
	if err != nil {
		return err
	}

	opts := []app.EnrichmentOption{
		app.WithAlpha(cfg.Enrichment.Alpha),
		app.WithWorkers(cfg.Enrichment.Workers),
		app.WithNamespaces(cfg.Enrichment.Namespaces...),
		app.WithLogger(cl.logger),
	}
	if cfg.Enrichment.Propagate {
		opts = append(opts,
			app.WithPropagation(cl.filter()),
			app.WithBuilder(subdag.NewBuilder(g, subdag.WithWorkers(cfg.Enrichment.Workers), subdag.WithLogger(cl.logger))))
	}
	if f.save {
		runs, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer runs.Close()
		opts = append(opts, app.WithRepository(runs))
	}

	svc, err := app.NewEnrichmentService(calc, cfg.Enrichment.Methods, opts...)
	if err != nil {
		return err
	}
	run, err := svc.Run(ctx, study, population, assoc, g)
	if err != nil {
		return err
	}

	out, err := createOutput(f.output)
	if err != nil {
		return err
	}
	defer out.Close()

	switch f.format {
	case "json":
		err = report.WriteJSON(out, run)
	case "xlsx":
		err = report.WriteXLSX(out, run)
	default:
		err = report.WriteResultsTSV(out, run)
	}
	if err != nil {
		return fmt.Errorf("write %s report: %w", f.format, err)
	}

	for _, m := range run.Methods {
		cl.logger.Info("significant terms", "method", m, "alpha", run.Summary.Alpha, "count", run.Summary.Significant[m])
	}
	return nil
}

// calculator resolves the configured Fisher engine, optionally checked
// against the other engine.
func calculator(name string, crossCheck bool, tolerance float64) (ports.PValueCalculator, error) {
	primary, err := fisher.New(name)
	if err != nil {
		return nil, err
	}
	if !crossCheck {
		return primary, nil
	}
	refName := fisher.Gonum
	if name == fisher.Gonum {
		refName = fisher.Exact
	}
	ref, err := fisher.New(refName)
	if err != nil {
		return nil, err
	}
	return fisher.NewCrossChecked(primary, ref, tolerance), nil
}
