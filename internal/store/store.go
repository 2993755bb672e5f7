// Package store loads per-forest datasets and trained models from the data
// directory and keeps them for the life of the process.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
)

// Acquirer makes a data file present in the data directory. Ensure returns an
// error wrapping fs.ErrNotExist when the file exists nowhere.
type Acquirer interface {
	Ensure(ctx context.Context, filename string) error
}

// Options configures a Store.
type Options struct {
	Dir     string
	Format  model.Format
	Forests []string

	// Acquirer is optional; without one, missing files are not found.
	Acquirer Acquirer
}

// Store is the process-wide artifact cache. Each key is loaded on first use;
// failed loads are not cached and are retried on the next call.
type Store struct {
	dir      string
	format   model.Format
	forests  []string
	acquirer Acquirer
	logger   *slog.Logger
	metrics  *observability.Metrics

	datasets *cache[*domain.Dataset]
	models   *cache[model.Classifier]
}

// New creates a store rooted at opts.Dir.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Store {
	format := opts.Format
	if format == "" {
		format = model.FormatJSON
	}
	return &Store{
		dir:      opts.Dir,
		format:   format,
		forests:  slices.Clone(opts.Forests),
		acquirer: opts.Acquirer,
		logger:   logger,
		metrics:  metrics,
		datasets: newCache[*domain.Dataset](),
		models:   newCache[model.Classifier](),
	}
}

// Forests returns the configured forest names in display order.
func (s *Store) Forests() []string { return slices.Clone(s.forests) }

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Format returns the model artifact format.
func (s *Store) Format() model.Format { return s.format }

// LoadDataset returns the forest's preprocessed table.
func (s *Store) LoadDataset(ctx context.Context, forest string) (*domain.Dataset, error) {
	if err := domain.ValidateForest(forest); err != nil {
		return nil, err
	}
	return s.datasets.get(forest, s.lookup("dataset"), func() (*domain.Dataset, error) {
		return s.readDataset(ctx, forest)
	})
}

// LoadModel returns the classifier for forest. useRebalancing selects the
// SMOTE-trained variant; a missing variant is ErrModelNotFound.
func (s *Store) LoadModel(ctx context.Context, forest string, useRebalancing bool) (model.Classifier, error) {
	if err := domain.ValidateForest(forest); err != nil {
		return nil, err
	}
	variant := domain.VariantFor(useRebalancing)
	return s.models.get(forest+"|"+string(variant), s.lookup("model"), func() (model.Classifier, error) {
		return s.readModel(ctx, forest, variant)
	})
}

// Features returns the feature descriptors of the forest's dataset.
func (s *Store) Features(ctx context.Context, forest string) ([]domain.FeatureDescriptor, error) {
	ds, err := s.LoadDataset(ctx, forest)
	if err != nil {
		return nil, err
	}
	return ds.Features(), nil
}

// Preload loads every configured forest's dataset and both model variants.
func (s *Store) Preload(ctx context.Context) error {
	for _, forest := range s.forests {
		if _, err := s.LoadDataset(ctx, forest); err != nil {
			return fmt.Errorf("preload %s: %w", forest, err)
		}
		for _, smote := range []bool{false, true} {
			if _, err := s.LoadModel(ctx, forest, smote); err != nil {
				return fmt.Errorf("preload %s: %w", forest, err)
			}
		}
	}
	return nil
}

// CheckReadiness reports whether the data directory is usable.
func (s *Store) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		if s.acquirer != nil && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", s.dir)
	}
	return nil
}

// Close releases every cached model that holds native resources.
func (s *Store) Close() error {
	var errs []error
	s.models.each(func(key string, clf model.Classifier) {
		if c, ok := clf.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s model: %w", key, err))
			}
		}
	})
	return errors.Join(errs...)
}

func (s *Store) readDataset(ctx context.Context, forest string) (*domain.Dataset, error) {
	name := domain.DatasetFileName(forest)
	path, err := s.ensure(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, name)
		}
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}

	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, name)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadDataset(f, forest)
	if err != nil {
		return nil, err
	}
	s.metrics.ArtifactLoadDuration.WithLabelValues("dataset").Observe(time.Since(start).Seconds())
	s.logger.Info("dataset loaded",
		"forest", forest,
		"rows", humanize.Comma(int64(ds.Len())),
		"columns", len(ds.Columns()),
		"positive_rate", ds.PositiveRate(),
	)
	return ds, nil
}

func (s *Store) readModel(ctx context.Context, forest string, variant domain.Variant) (model.Classifier, error) {
	name := domain.ModelFileName(forest, variant, string(s.format))
	path, err := s.ensure(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, name)
		}
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}

	// ONNX graphs carry no column names; they follow the dataset's.
	var names []string
	if s.format == model.FormatONNX {
		ds, err := s.LoadDataset(ctx, forest)
		if err != nil {
			return nil, err
		}
		names = ds.Columns()
	}

	start := time.Now()
	clf, err := model.Load(path, s.format, names)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, name)
		}
		return nil, fmt.Errorf("load model %s: %w", name, err)
	}
	s.metrics.ArtifactLoadDuration.WithLabelValues("model").Observe(time.Since(start).Seconds())
	s.logger.Info("model loaded",
		"forest", forest,
		"variant", variant,
		"format", s.format,
		"features", len(clf.FeatureNames()),
	)
	return clf, nil
}

// ensure returns the local path of name, acquiring it first when missing.
func (s *Store) ensure(ctx context.Context, name string) (string, error) {
	path := filepath.Join(s.dir, name)
	if s.acquirer == nil {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := s.acquirer.Ensure(ctx, name); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) lookup(kind string) func(hit bool) {
	return func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		s.metrics.CacheLookups.WithLabelValues(kind, result).Inc()
	}
}

// cache memoizes loads per key. The first caller for a key loads while
// holding that key's lock; concurrent callers wait for it.
type cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
}

type cacheEntry[V any] struct {
	mu     sync.Mutex
	loaded bool
	value  V
}

func newCache[V any]() *cache[V] {
	return &cache[V]{entries: make(map[string]*cacheEntry[V])}
}

func (c *cache[V]) get(key string, observe func(hit bool), load func() (V, error)) (V, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry[V]{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		observe(true)
		return e.value, nil
	}
	observe(false)

	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	e.value, e.loaded = v, true
	return v, nil
}

// cached reports whether key has a loaded value.
func (c *cache[V]) cached(key string) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// each calls fn for every loaded value.
func (c *cache[V]) each(fn func(key string, v V)) {
	c.mu.Lock()
	entries := maps.Clone(c.entries)
	c.mu.Unlock()

	for k, e := range entries {
		e.mu.Lock()
		if e.loaded {
			fn(k, e.value)
		}
		e.mu.Unlock()
	}
}
