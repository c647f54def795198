package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"goea/adapters/obo"
	"goea/domain/core"
	"goea/domain/ontology"
	"goea/internal"
	"goea/internal/config"
)

// cli carries the configuration shared by every subcommand.
type cli struct {
	configPath    string
	oboPath       string
	relationships string
	logLevel      string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	app := &cli{}
	rootCmd := &cobra.Command{
		Use:           "goea",
		Short:         "Ontology closures and term enrichment analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "YAML configuration file (overrides GOEA_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&app.oboPath, "obo", "", "OBO ontology file")
	rootCmd.PersistentFlags().StringVar(&app.relationships, "relationships", "", "Comma separated relationship types to follow besides is_a (\"all\" for every type)")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE")

	rootCmd.AddCommand(
		newAncestorsCmd(app),
		newDescendantsCmd(app),
		newEnrichCmd(app),
		newRunsCmd(app),
		newSynthCmd(app),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *cli) load(cmd *cobra.Command) error {
	_ = godotenv.Load()

	if a.configPath != "" {
		os.Setenv("GOEA_CONFIG", a.configPath)
	}
	flags := cmd.Flags()
	if flags.Changed("obo") {
		os.Setenv("GOEA_OBO", a.oboPath)
	}
	if flags.Changed("relationships") {
		os.Setenv("GOEA_RELATIONSHIPS", a.relationships)
	}
	if flags.Changed("log-level") {
		os.Setenv("LOG_LEVEL", a.logLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = internal.NewLogger(os.Stderr, internal.ParseLevel(cfg.LogLevel), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(a.logger)
	return nil
}

func (a *cli) filter() ontology.RelationshipFilter {
	return ontology.ParseRelationshipFilter(strings.Join(a.cfg.Ontology.Relationships, ","))
}

// graph parses the configured ontology, keeping the relationship types the
// filter can traverse.
func (a *cli) graph() (*ontology.Graph, error) {
	opts := obo.Options{Logger: a.logger}
	for _, r := range a.cfg.Ontology.Relationships {
		switch r = strings.TrimSpace(r); r {
		case "":
		case "all", "*":
			opts.AllRelationships = true
		default:
			opts.Relationships = append(opts.Relationships, ontology.RelationshipType(r))
		}
	}

	g, warnings, err := obo.ParseFile(a.cfg.Ontology.Path, opts)
	if err != nil {
		return nil, err
	}
	core.LogWarnings(a.logger, warnings)
	a.logger.Info("ontology loaded",
		"path", a.cfg.Ontology.Path,
		"terms", g.Len(),
		"format_version", g.Header.FormatVersion,
		"warnings", len(warnings))
	return g, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// createOutput opens path for writing; "" and "-" select stdout.
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}
	return f, nil
}
