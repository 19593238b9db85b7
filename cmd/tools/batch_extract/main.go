// Command batch_extract extracts every statement in a directory to JSON,
// one file per statement, and reports the extraction checks. With -union it
// instead reads partner statements and writes their confirmed payouts as a
// reference file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/duneshique/sharex-settlement/pkg/core/catalog"
	"github.com/duneshique/sharex-settlement/pkg/core/document"
	"github.com/duneshique/sharex-settlement/pkg/core/extract"
	"github.com/duneshique/sharex-settlement/pkg/core/pipeline"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found, using environment variables")
	}

	dir := flag.String("dir", "data/input", "Statement directory")
	outDir := flag.String("out", "batch_data", "Output directory")
	coursesPath := flag.String("courses", "config/course_mapping.json", "Course catalog")
	companiesPath := flag.String("companies", "config/company_info.json", "Company catalog (for -union)")
	workers := flag.Int("workers", 4, "Parallel extractions")
	union := flag.Bool("union", false, "Read partner statements and write reference payouts")
	periodFilter := flag.String("period-filter", "", "With -union, only files whose name contains this")
	flag.Parse()

	ctx := context.Background()
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Error: %v", err)
	}

	if *union {
		if err := writeReference(ctx, *dir, *outDir, *companiesPath, *periodFilter); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	var courses *catalog.Courses
	if entries, err := catalog.LoadCourses(*coursesPath); err != nil {
		log.Printf("Warning: course catalog not loaded (%v); labels stay unresolved", err)
		courses = catalog.NewCourses(nil)
	} else {
		courses = catalog.NewCourses(entries)
	}

	var paths []string
	err := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && document.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error listing %s: %v", *dir, err)
	}
	sort.Strings(paths)
	fmt.Printf("=== Extracting %d statements with %d workers ===\n", len(paths), *workers)

	start := time.Now()
	orch := pipeline.New(pipeline.Catalogs{Courses: courses}, pipeline.Settings{Workers: *workers})
	docs, failed, err := orch.ExtractAll(ctx, paths)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	saved := 0
	for i, doc := range docs {
		if doc == nil {
			fmt.Printf("SKIP  %s: %v\n", filepath.Base(paths[i]), failed[paths[i]])
			continue
		}
		rep := extract.Check(doc)
		status := "OK  "
		if !rep.OK() {
			status = "FAIL"
		}
		fmt.Printf("%s  %s  %s  rows=%d sales=%d costs=%d\n",
			status, doc.Period, filepath.Base(doc.Source), len(doc.Rows), len(doc.Sales), len(doc.CampaignCosts))
		for _, e := range rep.Errors {
			fmt.Printf("      error: %s\n", e)
		}
		for _, w := range rep.Warnings {
			fmt.Printf("      warning: %s\n", w)
		}

		target := filepath.Join(*outDir, strings.TrimSuffix(filepath.Base(doc.Source), filepath.Ext(doc.Source))+".json")
		if err := writeJSON(target, struct {
			*models.ParsedDocument
			Check extract.CheckReport `json:"check"`
		}{doc, rep}); err != nil {
			log.Printf("Error writing %s: %v", target, err)
			continue
		}
		saved++
	}

	fmt.Printf("\n=== Done: %d saved, %d skipped in %v ===\n", saved, len(failed), time.Since(start).Round(time.Millisecond))
}

func writeReference(ctx context.Context, dir, outDir, companiesPath, periodFilter string) error {
	companies, err := catalog.LoadCompanies(companiesPath)
	if err != nil {
		return err
	}
	statements, err := extract.ScanUnionStatements(ctx, dir, periodFilter)
	if err != nil {
		return err
	}
	ref, unknown := pipeline.ReferenceFromStatements(statements, companies)
	for _, name := range unknown {
		fmt.Printf("Warning: no company for statement %q\n", name)
	}

	var period string
	for _, st := range statements {
		period = st.Period
		break
	}
	target := filepath.Join(outDir, "expected_payouts.json")
	if err := writeJSON(target, map[string]any{"period": period, "expected": ref}); err != nil {
		return err
	}
	fmt.Printf("Saved %d reference payouts: %s\n", len(ref), target)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
