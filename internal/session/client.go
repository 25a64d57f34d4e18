package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"harvest/internal/config"
	"harvest/internal/faults"
	"harvest/internal/fetch"
	"harvest/internal/logging"
	"harvest/internal/record"
	"harvest/internal/registry"
)

// Client implements registry.Session and store.Resolver.
type Client struct {
	fetcher  fetch.Fetcher
	registry *registry.Registry
	opts     registry.Options
	logger   *slog.Logger
}

// New builds a client. The registry must already be sealed.
func New(fetcher fetch.Fetcher, reg *registry.Registry, opts registry.Options, logger *slog.Logger) (*Client, error) {
	if fetcher == nil || reg == nil {
		return nil, faults.Wrap(faults.ErrUsage, "session", "new", "fetcher and registry are required", nil)
	}
	if !reg.Sealed() {
		return nil, faults.Wrap(faults.ErrUsage, "session", "new", "registry must be sealed before use", nil)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Client{
		fetcher:  fetcher,
		registry: reg,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "session"),
	}, nil
}

// NewFromConfig selects the fetcher from cfg: the fixtures directory when
// set, otherwise HTTP against the base URL.
func NewFromConfig(cfg *config.Config, reg *registry.Registry, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "session", "new", "config is required", nil)
	}
	fetcher, err := FetcherFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(fetcher, reg, registry.Options{
		Concurrency:            cfg.Resolve.Concurrency,
		IgnoreUpstreamFailures: cfg.Resolve.IgnoreUpstreamFailures,
	}, logger)
}

// FetcherFromConfig builds the fetcher described by cfg.Source.
func FetcherFromConfig(cfg *config.Config) (fetch.Fetcher, error) {
	if cfg.Offline() {
		return fetch.DirFetcher{Dir: cfg.Source.FixturesDir}, nil
	}
	if cfg.Source.BaseURL == "" {
		return nil, faults.Wrap(faults.ErrConfiguration, "session", "fetcher",
			"set source.base_url, HARVEST_BASE_URL, or source.fixtures_dir", nil)
	}
	return fetch.NewHTTPFetcher(cfg.Source.BaseURL, cfg.SourceTimeout(), fetch.WithUserAgent(cfg.Source.UserAgent))
}

// Fetch retrieves target through the configured fetcher.
func (c *Client) Fetch(ctx context.Context, target string) (fetch.Envelope, error) {
	started := time.Now()
	env, err := c.fetcher.Fetch(ctx, target)
	logger := logging.WithContext(ctx, c.logger)
	if err != nil {
		logger.Debug("fetch failed", logging.String(logging.FieldTarget, target), logging.Error(err))
		return fetch.Envelope{}, err
	}
	logger.Debug("fetched",
		logging.String(logging.FieldTarget, target),
		logging.String("shape", string(env.Shape())),
		logging.Duration("elapsed", time.Since(started)),
	)
	return env, nil
}

// Parse dispatches env to the registered parsers.
func (c *Client) Parse(env fetch.Envelope) (*record.ResultSet, error) {
	return c.registry.Parse(env)
}

// Ingest fetches target and parses it as resource. An empty resource falls
// back to the first segment of target.
func (c *Client) Ingest(ctx context.Context, resource, target string) (*record.ResultSet, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		resource = fetch.ResourceOf(target)
	}
	ctx = logging.WithResource(ctx, resource)

	env, err := c.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", target, err)
	}
	if env.Resource() != resource {
		if env, err = fetch.NewEnvelope(resource, env.Payload()); err != nil {
			return nil, fmt.Errorf("ingest %s: %w", target, err)
		}
	}
	rs, err := c.Parse(env)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", target, err)
	}
	logging.WithContext(ctx, c.logger).Info("ingested",
		logging.String(logging.FieldTarget, target),
		logging.Int(logging.FieldCount, rs.Len()),
		logging.Int("placeholders", len(rs.Placeholders())),
	)
	return rs, nil
}

// ResolveAll resolves placeholders with the client's options. Every call is
// one run with its own identifier in the log context.
func (c *Client) ResolveAll(ctx context.Context, placeholders []*record.Placeholder) (*record.ResultSet, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	logging.WithContext(ctx, c.logger).Info("resolving placeholders",
		logging.Int(logging.FieldCount, len(placeholders)),
		logging.Int("concurrency", c.opts.Concurrency),
	)
	return c.registry.Resolve(ctx, c, placeholders, c.opts)
}
