// Command review prints the filtered company pipeline table, and optionally
// one company's clinical trials, without starting the web server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"pipelinereview/internal/config"
	"pipelinereview/internal/datastore"
	"pipelinereview/internal/exporter"
	"pipelinereview/internal/infrastructure"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

type options struct {
	summary  string
	trials   string
	mcapMin  float64
	mcapMax  float64
	areas    string
	phases   string
	marketed string
	company  string
	sort     string
	desc     bool
	format   string
	verbose  bool

	set map[string]bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.summary, "summary", "", "company pipeline summary file (csv or xlsx)")
	fs.StringVar(&opts.trials, "trials", "", "enriched clinical trials file (csv or xlsx)")
	fs.Float64Var(&opts.mcapMin, "mcap-min", 0, "minimum market cap in billions (defaults to the data minimum)")
	fs.Float64Var(&opts.mcapMax, "mcap-max", 0, "maximum market cap in billions (defaults to the data maximum)")
	fs.StringVar(&opts.areas, "ta", "", "comma-separated therapeutic areas")
	fs.StringVar(&opts.phases, "phase", "", "comma-separated highest phases")
	fs.StringVar(&opts.marketed, "marketed", "All", "marketed drug filter: All, Yes or No")
	fs.StringVar(&opts.company, "company", "", "symbol or \"SYMBOL — Name\" label whose trials to print")
	fs.StringVar(&opts.sort, "sort", "", "column to sort the company table by")
	fs.BoolVar(&opts.desc, "desc", false, "sort descending")
	fs.StringVar(&opts.format, "format", "text", "output format: text or csv")
	fs.BoolVar(&opts.verbose, "v", false, "log at debug level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.format != "text" && opts.format != "csv" {
		return nil, fmt.Errorf("unsupported format %q", opts.format)
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	cfg.Logging.Level = "warn"
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	// Flag paths are relative to the working directory, not the data dir.
	if opts.summary != "" {
		if cfg.Data.SummaryFile, err = filepath.Abs(opts.summary); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
	}
	if opts.trials != "" {
		if cfg.Data.TrialsFile, err = filepath.Abs(opts.trials); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
	}

	logger := infrastructure.NewLogger(cfg.Logging, stderr)
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	if err := execute(ctx, svc, opts, stdout); err != nil {
		logger.Debug("review failed", slog.String("error", err.Error()))
		fmt.Fprintln(stderr, err)
		if errors.Is(err, services.ErrInvalidFilter) || errors.Is(err, services.ErrInvalidSort) {
			return exitUsage
		}
		return exitFailure
	}
	return exitOK
}

func newService(cfg *config.Config, logger *slog.Logger) (*services.ReviewService, error) {
	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	providers := infrastructure.NoopProviders(logger)
	metrics := infrastructure.MustBusinessMetrics(providers.Meter)
	return services.NewReviewService(
		paths,
		datastore.NewCache(logger, providers, metrics),
		services.NewSessionStore(cfg.Session, logger, metrics),
		exporter.New(logger),
		providers,
		metrics,
		logger,
	), nil
}

func execute(ctx context.Context, svc *services.ReviewService, opts *options, stdout io.Writer) error {
	domain, err := svc.Domain(ctx)
	if err != nil {
		return err
	}

	state, err := services.NormalizeFilters(opts.state(domain))
	if err != nil {
		return err
	}

	if opts.company != "" {
		var trials *services.TrialsView
		if strings.Contains(opts.company, review.LabelSeparator) {
			trials, err = svc.Selection(ctx, opts.company)
		} else {
			trials, err = svc.Trials(ctx, opts.company)
		}
		if err != nil {
			return err
		}
		if opts.format == "csv" {
			return exporter.WriteCSV(stdout, trials.Trials, exporter.WriteOptions{})
		}
		return printTrials(stdout, trials)
	}

	view, err := svc.View(ctx, state, services.ViewOptions{Sort: opts.sort, Desc: opts.desc})
	if err != nil {
		return err
	}
	if opts.format == "csv" {
		return exporter.WriteCSV(stdout, view.Companies, exporter.WriteOptions{})
	}
	return printView(stdout, view)
}

// state starts from the domain defaults and applies the flags that were set.
func (o *options) state(domain review.Domain) review.FilterState {
	state := review.DefaultState(domain)
	if o.set["mcap-min"] {
		state.MarketCapMin = o.mcapMin
	}
	if o.set["mcap-max"] {
		state.MarketCapMax = o.mcapMax
	}
	state.TherapeuticAreas = splitList(o.areas)
	state.Phases = splitList(o.phases)
	state.MarketedDrug = review.MarketedDrug(o.marketed)
	return state
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printView(w io.Writer, view *services.View) error {
	fmt.Fprintf(w, "Rows: %d  Unique companies: %d  Avg market cap: %s\n\n",
		view.Summary.Rows, view.Summary.UniqueCompanies, view.Summary.AvgMarketCapLabel())
	return printTable(w, view.Companies)
}

func printTrials(w io.Writer, view *services.TrialsView) error {
	fmt.Fprintf(w, "%s: %d trial(s)\n\n", view.Company.Label(), view.Count)
	if view.Count == 0 {
		_, err := fmt.Fprintln(w, view.Message)
		return err
	}
	return printTable(w, view.Trials)
}

func printTable(w io.Writer, t *datastore.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns(), "\t"))
	for i := 0; i < t.Len(); i++ {
		fmt.Fprintln(tw, strings.Join(t.Strings(i), "\t"))
	}
	return tw.Flush()
}
