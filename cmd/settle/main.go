// Command settle runs a quarterly Share X settlement: it extracts the
// statements in the input directory, settles every partner company,
// validates the result and writes the export and report.
//
//	settle -period 2024-Q4 [-config sharex.yaml] [-input dir] [-ledger file.xlsx]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"

	"github.com/duneshique/sharex-settlement/pkg/core/apportion"
	"github.com/duneshique/sharex-settlement/pkg/core/catalog"
	"github.com/duneshique/sharex-settlement/pkg/core/config"
	"github.com/duneshique/sharex-settlement/pkg/core/document"
	"github.com/duneshique/sharex-settlement/pkg/core/metrics"
	"github.com/duneshique/sharex-settlement/pkg/core/pipeline"
	"github.com/duneshique/sharex-settlement/pkg/core/store"
)

// exitValidationFailed is returned when the run completed but a check failed.
const exitValidationFailed = 2

func main() {
	configFile := flag.String("config", "", "YAML config file")
	periodFlag := flag.String("period", "", "Quarter to settle, e.g. 2024-Q4")
	inputDir := flag.String("input", "", "Statement directory (overrides config)")
	ledger := flag.String("ledger", "", "Settlement workbook (.xlsx)")
	referenceFile := flag.String("reference", "", "Confirmed payouts file (overrides config)")
	mode := flag.String("mode", "", "engine or rows (overrides config)")
	outDir := flag.String("out", "", "Output directory (overrides config)")
	flag.Parse()

	if *periodFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: -period is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.Paths.InputDir, *inputDir)
	override(&cfg.Paths.Ledger, *ledger)
	override(&cfg.Paths.Reference, *referenceFile)
	override(&cfg.Settlement.Mode, *mode)
	override(&cfg.Paths.OutputDir, *outDir)

	logger := config.NewLogger(cfg.Logging, nil)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	passed, err := run(ctx, cfg, *periodFlag, logger)
	if err != nil {
		logger.Error("settlement failed", "error", eris.ToString(err, false))
		os.Exit(1)
	}
	if !passed {
		os.Exit(exitValidationFailed)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(ctx context.Context, cfg *config.Config, period string, logger *slog.Logger) (bool, error) {
	catalogs, err := loadCatalogs(cfg, logger)
	if err != nil {
		return false, err
	}

	var reference map[string]float64
	if cfg.Paths.Reference != "" {
		if reference, err = catalog.LoadReference(cfg.Paths.Reference); err != nil {
			return false, err
		}
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return false, err
	}
	defer store.Close()

	documents, err := listDocuments(cfg.Paths.InputDir)
	if err != nil {
		return false, err
	}

	collector := metrics.New()
	orch := pipeline.New(catalogs, pipeline.Settings{
		Mode:           cfg.Settlement.Mode,
		Tolerance:      cfg.Settlement.Tolerance,
		Workers:        cfg.Settlement.Workers,
		MatchThreshold: cfg.Settlement.MatchThreshold,
		Options: apportion.Options{
			RevenueShareRatio:   cfg.Settlement.RevenueShareRatio,
			UnionPayoutRatio:    cfg.Settlement.UnionPayoutRatio,
			TotalCourseOverride: cfg.Settlement.TotalCourseOverride,
		},
	},
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(collector),
		pipeline.WithRepository(repo),
	)

	out, err := orch.Run(ctx, pipeline.Inputs{
		Period:    period,
		Documents: documents,
		Ledger:    cfg.Paths.Ledger,
		Reference: reference,
	})
	if err != nil {
		return false, err
	}

	written, err := pipeline.Publish(out, cfg.Paths.OutputDir, cfg.Settlement.ExportXLSX, cfg.Settlement.HTMLReport)
	if err != nil {
		return false, err
	}
	for _, p := range written {
		logger.Info("written", "path", p)
	}

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("metrics not written", "error", err)
		}
	}

	for _, s := range out.Run.Settlements {
		fmt.Printf("%-16s %-14s %14s\n", s.CompanyID, s.CompanyName, fmt.Sprintf("%.2f", s.UnionPayout))
	}
	fmt.Printf("%-31s %14.2f\n", "total", out.Run.TotalPayout)
	return out.Run.Passed, nil
}

func loadCatalogs(cfg *config.Config, logger *slog.Logger) (pipeline.Catalogs, error) {
	companies, err := catalog.LoadCompanies(cfg.Paths.Companies)
	if err != nil {
		return pipeline.Catalogs{}, err
	}
	courses, err := catalog.LoadCourses(cfg.Paths.Courses)
	if err != nil {
		return pipeline.Catalogs{}, err
	}

	var rules catalog.CampaignRules
	if cfg.Paths.CampaignRules != "" {
		rules, err = catalog.LoadCampaignRules(cfg.Paths.CampaignRules)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("campaign rules not found, using built-in table", "path", cfg.Paths.CampaignRules)
			err = nil
		}
		if err != nil {
			return pipeline.Catalogs{}, err
		}
	}

	logger.Info("catalogs loaded",
		"companies", len(companies),
		"courses", len(courses),
		"campaign_rules", len(rules.Rules),
		"exchange_rates", len(rules.Rates),
	)
	return pipeline.Catalogs{
		Companies: companies,
		Courses:   catalog.NewCourses(courses),
		Rules:     rules,
	}, nil
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.RunRepository, error) {
	if cfg.Database.URL == "" {
		logger.Info("archiving runs to files", "dir", cfg.Paths.RunDir)
		return store.NewFileRunRepo(cfg.Paths.RunDir)
	}
	if err := store.InitDB(ctx, cfg.Database.URL); err != nil {
		return nil, err
	}
	repo := store.NewPostgresRunRepo(store.GetPool())
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	logger.Info("archiving runs to postgres")
	return repo, nil
}

func listDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && document.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "listing statements in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}
