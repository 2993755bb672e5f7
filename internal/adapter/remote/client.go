// Package remote downloads missing dataset and model files from an HTTP
// file server into the local data directory.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
)

const maxBackoff = 5 * time.Second

// Client implements store.Acquirer against <baseURL>/<file name>.
type Client struct {
	baseURL    string
	dir        string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a download client writing into cfg.DataDir.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: cfg.DataBaseURL,
		dir:     cfg.DataDir,
		httpClient: &http.Client{
			Timeout: cfg.DataDownloadTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.DataDownloadRate), 1),
		retries: cfg.DataDownloadRetries,
		backoff: 200 * time.Millisecond,
		logger:  logger,
		metrics: metrics,
	}
}

// Ensure downloads filename unless it is already present. A 404 from the
// server is reported as fs.ErrNotExist; server errors are retried with
// backoff.
func (c *Client) Ensure(ctx context.Context, filename string) error {
	path := filepath.Join(c.dir, filename)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		err := c.download(ctx, filename, path)
		if err == nil {
			c.metrics.Downloads.WithLabelValues("success").Inc()
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			c.metrics.Downloads.WithLabelValues("not_found").Inc()
			return err
		}

		var perm *permanentError
		if errors.As(err, &perm) || attempt >= c.retries || ctx.Err() != nil {
			c.metrics.Downloads.WithLabelValues("error").Inc()
			return err
		}
		c.logger.Warn("download failed, retrying", "file", filename, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			c.metrics.Downloads.WithLabelValues("error").Inc()
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) download(ctx context.Context, filename, path string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u, err := url.JoinPath(c.baseURL, filename)
	if err != nil {
		return &permanentError{fmt.Errorf("build url for %s: %w", filename, err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &permanentError{fmt.Errorf("create request: %w", err)}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("download %s: %w", filename, fs.ErrNotExist)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("download %s: status %d", filename, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &permanentError{fmt.Errorf("download %s: status %d: %s", filename, resp.StatusCode, body)}
	}

	// Write beside the target and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return &permanentError{fmt.Errorf("create temp file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &permanentError{fmt.Errorf("install %s: %w", filename, err)}
	}

	c.logger.Info("artifact downloaded",
		"file", filename,
		"size", humanize.Bytes(uint64(n)),
		"duration", time.Since(start),
	)
	return nil
}

// permanentError marks failures that a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
