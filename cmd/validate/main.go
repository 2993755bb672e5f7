// Command validate checks every forest's artifacts before they are served:
// the dataset parses, both model variants load and agree with the dataset's
// column order, each model scores every historical row with a binary label,
// and the default prediction form resolves to a record the model accepts.
//
// Usage:
//
//	go run ./cmd/validate -dir data -forests "Coconino,Tongass,White Mountain"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/evaluation"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	"github.com/couchcryptid/wildfire-risk-service/internal/store"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var variants = []bool{false, true}

func main() {
	dir := flag.String("dir", sharedcfg.EnvOrDefault("DATA_DIR", "data"), "data directory")
	forests := flag.String("forests", sharedcfg.EnvOrDefault("FORESTS", "Coconino,Tongass,White Mountain"), "comma-separated forest names")
	format := flag.String("format", sharedcfg.EnvOrDefault("MODEL_FORMAT", "json"), "model artifact format: json or onnx")
	flag.Parse()

	f, err := model.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	if code := run(os.Stdout, *dir, sharedcfg.ParseBrokers(*forests), f); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, dir string, forests []string, format model.Format) int {
	// A fixed clock keeps the form's year window stable across runs.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	artifacts := store.New(store.Options{Dir: dir, Format: format, Forests: forests}, logger, metrics)
	defer artifacts.Close()
	p := pipeline.New(artifacts, logger, metrics)
	ctx := context.Background()

	fmt.Fprintln(out, "=== Wildfire Risk Artifact Validation ===")
	fmt.Fprintln(out)

	datasets := make(map[string]*domain.Dataset, len(forests))
	phases := []*phase{
		validateDatasets(ctx, artifacts, forests, datasets),
		validateSchemaAlignment(ctx, artifacts, datasets),
		validateScoring(ctx, artifacts, datasets),
		validateDefaultForm(ctx, p, datasets),
	}

	allPassed := true
	for _, ph := range phases {
		status := "\033[32mPASS\033[0m"
		if !ph.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(ph.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", ph.name, status)
	}

	rows := 0
	for _, ds := range datasets {
		rows += ds.Len()
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Forests: %d configured, %d loaded, %s rows\n", len(forests), len(datasets), humanize.Comma(int64(rows)))

	for _, ph := range phases {
		if ph.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", ph.name)
		for i, e := range ph.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Datasets ──

func validateDatasets(ctx context.Context, s *store.Store, forests []string, loaded map[string]*domain.Dataset) *phase {
	p := &phase{name: "Phase 1: Datasets"}
	if len(forests) == 0 {
		p.errorf("no forests configured")
	}
	for _, forest := range forests {
		ds, err := s.LoadDataset(ctx, forest)
		if err != nil {
			p.errorf("%s: %v", forest, err)
			continue
		}
		loaded[forest] = ds
		if rate := ds.PositiveRate(); rate == 0 || rate == 1 {
			p.errorf("%s: target has a single class (positive rate %.2f)", forest, rate)
		}
	}
	return p
}

// ── Phase 2: Schema Alignment ──
// Both model variants must list the dataset's feature columns, in order.

func validateSchemaAlignment(ctx context.Context, s *store.Store, datasets map[string]*domain.Dataset) *phase {
	p := &phase{name: "Phase 2: Schema Alignment (models)"}
	for forest, ds := range datasets {
		for _, smote := range variants {
			variant := domain.VariantFor(smote)
			clf, err := s.LoadModel(ctx, forest, smote)
			if err != nil {
				p.errorf("%s %s: %v", forest, variant, err)
				continue
			}
			if err := domain.CheckColumns(clf.FeatureNames(), ds.Columns()); err != nil {
				p.errorf("%s %s: %v", forest, variant, err)
			}
			if imp := clf.FeatureImportances(); imp != nil && len(imp) != len(ds.Columns()) {
				p.errorf("%s %s: %d importances for %d features", forest, variant, len(imp), len(ds.Columns()))
			}
		}
	}
	return p
}

// ── Phase 3: Scoring ──
// Every historical row must score; the confusion matrix must cover them all.

func validateScoring(ctx context.Context, s *store.Store, datasets map[string]*domain.Dataset) *phase {
	p := &phase{name: "Phase 3: Scoring (historical rows)"}
	for forest, ds := range datasets {
		for _, smote := range variants {
			variant := domain.VariantFor(smote)
			clf, err := s.LoadModel(ctx, forest, smote)
			if err != nil {
				// Reported by phase 2.
				continue
			}
			r, err := evaluation.Evaluate(clf, ds, variant)
			if err != nil {
				p.errorf("%s %s: %v", forest, variant, err)
				continue
			}
			c := r.Confusion
			if total := c.TN + c.FP + c.FN + c.TP; total != ds.Len() {
				p.errorf("%s %s: %d of %d rows scored", forest, variant, total, ds.Len())
			}
		}
	}
	return p
}

// ── Phase 4: Default Form ──
// An untouched prediction form must resolve to a record both models accept.

func validateDefaultForm(ctx context.Context, pl *pipeline.Pipeline, datasets map[string]*domain.Dataset) *phase {
	p := &phase{name: "Phase 4: Default Form (prediction)"}
	for forest, ds := range datasets {
		f, err := pl.Form(ctx, forest, domain.Now())
		if err != nil {
			p.errorf("%s: %v", forest, err)
			continue
		}
		values, err := f.Resolve(nil)
		if err != nil {
			p.errorf("%s: resolve defaults: %v", forest, err)
			continue
		}
		if len(values) != len(ds.Columns()) {
			p.errorf("%s: form resolved %d of %d features", forest, len(values), len(ds.Columns()))
		}
		for _, smote := range variants {
			if _, err := pl.Predict(ctx, forest, values, smote); err != nil {
				p.errorf("%s %s: %v", forest, domain.VariantFor(smote), err)
			}
		}
	}
	return p
}
