// Package synth generates deterministic synthetic forests: a preprocessed
// daily table and a matching pair of gradient-boosted models. It backs the
// genmock command and the test suites of the packages that read artifacts.
package synth

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
)

// Columns is the feature layout of every synthetic table, in model order.
var Columns = []string{"year", "day_of_year", "TMAX_mean", "TMIN_mean", "PRCP_mean", "lightnings", "fires_7d"}

const (
	colYear = iota
	colDay
	colTmax
	colTmin
	colPrcp
	colLightnings
	colFires
)

// Table is a generated dataset before it is written out.
type Table struct {
	Forest  string
	Columns []string
	Rows    [][]float64
	Target  []int
}

// Generate builds rows daily records starting on 2000-01-01. The same seed
// always yields the same table.
func Generate(forest string, rows int, seed uint64) Table {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	t := Table{Forest: forest, Columns: append([]string(nil), Columns...)}

	for i := 0; i < rows; i++ {
		year := 2000 + i/365
		day := i%365 + 1
		season := math.Sin(2 * math.Pi * float64(day-100) / 365)

		tmax := clamp(18+14*season+rng.NormFloat64()*4, -5, 45)
		tmin := clamp(tmax-12+rng.NormFloat64()*2, -20, tmax)
		prcp := math.Max(0, math.Round((rng.ExpFloat64()*1.2-0.4*season)*10)/10)
		lightning := 0.0
		if rng.Float64() < 0.15+0.2*math.Max(season, 0) {
			lightning = 1
		}
		fires := math.Floor(rng.ExpFloat64() * (1 + 2*math.Max(season, 0)))

		score := -4 + 0.12*(tmax-18) - 0.8*prcp + 1.5*lightning + 0.4*fires
		label := 0
		if rng.Float64() < sigmoid(score) {
			label = 1
		}

		t.Rows = append(t.Rows, []float64{
			float64(year), float64(day),
			round1(tmax), round1(tmin), prcp, lightning, fires,
		})
		t.Target = append(t.Target, label)
	}
	return t
}

// Dataset converts the table into a validated domain dataset.
func (t Table) Dataset() (*domain.Dataset, error) {
	return domain.NewDataset(t.Forest, t.Columns, t.Rows, t.Target)
}

// WriteCSV writes the table with the target as the last column.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), t.Columns...), domain.TargetColumn)); err != nil {
		return err
	}
	for i, row := range t.Rows {
		rec := make([]string, 0, len(row)+1)
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		rec = append(rec, strconv.Itoa(t.Target[i]))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Model returns a small hand-built ensemble over Columns. The SMOTE variant
// starts from a higher base score, as a model trained on rebalanced classes
// predicts the minority class more often.
func Model(forest string, variant domain.Variant) *model.GradientBoosting {
	base := -3.0
	if variant == domain.VariantSMOTE {
		base = -1.5
	}
	return &model.GradientBoosting{
		Forest:       forest,
		Variant:      string(variant),
		Features:     append([]string(nil), Columns...),
		InitScore:    base,
		LearningRate: 1,
		Threshold:    0.5,
		Trees: []model.Tree{
			stump(colTmax, 28, -0.5, 1.8),
			stump(colPrcp, 0.5, 0.6, -1.2),
			stump(colLightnings, 0.5, 0, 1.2),
			{Nodes: []model.Node{
				{Feature: colFires, Threshold: 1.5, Left: 1, Right: 2},
				{Feature: -1, Value: -0.2},
				{Feature: colTmin, Threshold: 10, Left: 3, Right: 4},
				{Feature: -1, Value: 0.4},
				{Feature: -1, Value: 1.1},
			}},
		},
		Importances: []float64{0, 0, 0.38, 0.07, 0.25, 0.18, 0.12},
	}
}

func stump(feature int, threshold, left, right float64) model.Tree {
	return model.Tree{Nodes: []model.Node{
		{Feature: feature, Threshold: threshold, Left: 1, Right: 2},
		{Feature: -1, Value: left},
		{Feature: -1, Value: right},
	}}
}

// WriteForest writes <forest>_preprocessed.csv and both JSON model variants
// into dir.
func WriteForest(dir, forest string, rows int, seed uint64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	t := Generate(forest, rows, seed)
	if err := writeFile(filepath.Join(dir, domain.DatasetFileName(forest)), t.WriteCSV); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	for _, v := range []domain.Variant{domain.VariantBase, domain.VariantSMOTE} {
		if err := WriteModel(dir, forest, v, Model(forest, v)); err != nil {
			return err
		}
	}
	return nil
}

// WriteModel writes m as <forest>_<variant>_model.json into dir.
func WriteModel(dir, forest string, v domain.Variant, m *model.GradientBoosting) error {
	path := filepath.Join(dir, domain.ModelFileName(forest, v, string(model.FormatJSON)))
	err := writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
	if err != nil {
		return fmt.Errorf("write %s model: %w", v, err)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
