package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/evaluation"
	"github.com/couchcryptid/wildfire-risk-service/internal/form"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
)

// ArtifactSource provides the datasets and trained models a prediction reads.
type ArtifactSource interface {
	Forests() []string
	LoadDataset(ctx context.Context, forest string) (*domain.Dataset, error)
	LoadModel(ctx context.Context, forest string, useRebalancing bool) (model.Classifier, error)
	Preload(ctx context.Context) error
	CheckReadiness(ctx context.Context) error
}

// Pipeline turns resolved form values into a risk prediction and serves the
// model diagnostics shown next to it.
type Pipeline struct {
	source  ArtifactSource
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu      sync.Mutex
	reports map[string]*evaluation.Report
}

// New creates a Pipeline reading artifacts from source.
func New(source ArtifactSource, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:  source,
		logger:  logger,
		metrics: metrics,
		reports: make(map[string]*evaluation.Report),
	}
}

// Warm optionally preloads every forest, then marks the pipeline ready.
func (p *Pipeline) Warm(ctx context.Context, preload bool) error {
	if preload {
		start := time.Now()
		if err := p.source.Preload(ctx); err != nil {
			return err
		}
		p.logger.Info("forests preloaded", "forests", p.source.Forests(), "duration", time.Since(start))
	}
	p.ready.Store(true)
	p.metrics.Ready.Set(1)
	return nil
}

// CheckReadiness returns nil once Warm has completed and the artifact source
// is reachable.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if !p.ready.Load() {
		return errors.New("artifacts have not been loaded yet")
	}
	return p.source.CheckReadiness(ctx)
}

// Forests returns the forests offered by the dashboard.
func (p *Pipeline) Forests() []string {
	return p.source.Forests()
}

// Features returns the descriptors of the forest's dataset columns.
func (p *Pipeline) Features(ctx context.Context, forest string) ([]domain.FeatureDescriptor, error) {
	ds, err := p.source.LoadDataset(ctx, forest)
	if err != nil {
		return nil, err
	}
	return ds.Features(), nil
}

// Form builds the prediction form for forest. now anchors the year window.
func (p *Pipeline) Form(ctx context.Context, forest string, now time.Time) (*form.Form, error) {
	ds, err := p.source.LoadDataset(ctx, forest)
	if err != nil {
		return nil, err
	}
	return form.Build(forest, ds.Features(), now), nil
}

// Predict returns the risk label for one feature record. values must hold
// exactly one entry per dataset column; nothing is defaulted.
func (p *Pipeline) Predict(ctx context.Context, forest string, values map[string]float64, useRebalancing bool) (domain.RiskLabel, error) {
	pred, err := p.Assess(ctx, forest, values, useRebalancing)
	if err != nil {
		return 0, err
	}
	return pred.Label, nil
}

// Assess is Predict plus the model's probability of elevated risk.
func (p *Pipeline) Assess(ctx context.Context, forest string, values map[string]float64, useRebalancing bool) (domain.Prediction, error) {
	pred, err := p.assess(ctx, forest, values, useRebalancing)
	if err != nil {
		p.metrics.PredictionErrors.WithLabelValues(ErrorKind(err)).Inc()
		return domain.Prediction{}, err
	}
	p.metrics.Predictions.WithLabelValues(forest, string(pred.Variant), strconv.Itoa(int(pred.Label))).Inc()
	p.logger.Debug("prediction served",
		"forest", forest,
		"variant", pred.Variant,
		"label", int(pred.Label),
		"probability", pred.Probability,
	)
	return pred, nil
}

func (p *Pipeline) assess(ctx context.Context, forest string, values map[string]float64, useRebalancing bool) (domain.Prediction, error) {
	variant := domain.VariantFor(useRebalancing)

	ds, err := p.source.LoadDataset(ctx, forest)
	if err != nil {
		return domain.Prediction{}, err
	}
	clf, err := p.source.LoadModel(ctx, forest, useRebalancing)
	if err != nil {
		return domain.Prediction{}, err
	}
	if err := domain.CheckColumns(clf.FeatureNames(), ds.Columns()); err != nil {
		return domain.Prediction{}, fmt.Errorf("%s %s model: %w", forest, variant, err)
	}

	rec, err := domain.NewFeatureRecord(clf.FeatureNames(), values)
	if err != nil {
		return domain.Prediction{}, err
	}
	x := rec.Values()

	raw, err := clf.Predict(x)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict: %w", err)
	}
	label, err := domain.ParseRiskLabel(raw)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict: %w", err)
	}
	prob, err := clf.PredictProbability(x)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict probability: %w", err)
	}

	return domain.Prediction{
		Forest:      forest,
		Variant:     variant,
		Label:       label,
		Probability: prob,
	}, nil
}

// Diagnostics evaluates the (forest, variant) model over its historical
// table. Reports are computed once and cached.
func (p *Pipeline) Diagnostics(ctx context.Context, forest string, useRebalancing bool) (*evaluation.Report, error) {
	variant := domain.VariantFor(useRebalancing)
	key := forest + "|" + string(variant)

	p.mu.Lock()
	r, ok := p.reports[key]
	p.mu.Unlock()
	if ok {
		p.metrics.CacheLookups.WithLabelValues("report", "hit").Inc()
		return r, nil
	}
	p.metrics.CacheLookups.WithLabelValues("report", "miss").Inc()

	ds, err := p.source.LoadDataset(ctx, forest)
	if err != nil {
		return nil, err
	}
	clf, err := p.source.LoadModel(ctx, forest, useRebalancing)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r, err = evaluation.Evaluate(clf, ds, variant)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s %s model: %w", forest, variant, err)
	}
	p.logger.Info("model evaluated",
		"forest", forest,
		"variant", variant,
		"samples", r.Samples,
		"duration", time.Since(start),
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.reports[key]; ok {
		return cached, nil
	}
	p.reports[key] = r
	return r, nil
}

// ErrorKind buckets a prediction-path error for metrics and status mapping.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidForest),
		errors.Is(err, domain.ErrDatasetNotFound),
		errors.Is(err, domain.ErrModelNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrSchemaMismatch):
		return "schema_mismatch"
	default:
		return "internal"
	}
}
