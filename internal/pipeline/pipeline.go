// Package pipeline runs the batch stages, each reading the previous stage's
// artifact and writing its own.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"alertlens/config"
	"alertlens/internal/artifact"
	"alertlens/internal/embed"
	inputredis "alertlens/internal/input/redis"
	"alertlens/internal/llm"
	"alertlens/internal/logger"
	"alertlens/internal/metrics"
	"alertlens/internal/normalize"
	"alertlens/internal/output/clickhouse"
	"alertlens/internal/output/webhook"
)

// Stage names, in run order.
const (
	StageParseRules = "parse-rules"
	StageBuildIndex = "build-index"
	StageNormalize  = "normalize"
	StageMatch      = "match"
	StageGroup      = "group"
	StageNest       = "nest"
	StageSummarize  = "summarize"
	StageTakeaways  = "takeaways"
)

// Stages lists every stage in run order.
var Stages = []string{
	StageParseRules, StageBuildIndex, StageNormalize, StageMatch,
	StageGroup, StageNest, StageSummarize, StageTakeaways,
}

// Pipeline holds the configuration and lazily built dependencies for a run.
type Pipeline struct {
	cfg     config.AlertLensConfig
	paths   Paths
	runID   string
	metrics *metrics.Metrics

	embedder     embed.Embedder
	backend      llm.Backend
	source       AlertSource
	matchWriter  MatchWriter
	reportWriter ReportWriter
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e embed.Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithBackend replaces the configured completion backend.
func WithBackend(b llm.Backend) Option {
	return func(p *Pipeline) { p.backend = b }
}

// WithAlertSource replaces the configured alert source.
func WithAlertSource(s AlertSource) Option {
	return func(p *Pipeline) { p.source = s }
}

// WithMatchWriter sets an extra sink for match results.
func WithMatchWriter(w MatchWriter) Option {
	return func(p *Pipeline) { p.matchWriter = w }
}

// WithReportWriter sets a sink for takeaways.
func WithReportWriter(w ReportWriter) Option {
	return func(p *Pipeline) { p.reportWriter = w }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline. Optional sinks enabled in cfg are created here;
// the embedder and backend are created on first use.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:   cfg.AlertLens,
		paths: PathsFor(cfg.AlertLens.DataDir),
		runID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil && p.cfg.Metrics.Textfile != "" {
		p.metrics = metrics.New()
	}

	if p.matchWriter == nil && p.cfg.Match.Output.ClickHouse.Enabled {
		ch := p.cfg.Match.Output.ClickHouse
		w, err := clickhouse.NewWriter(clickhouse.Config{
			URL:       ch.URL,
			Database:  ch.Database,
			Table:     ch.Table,
			Username:  ch.Username,
			Password:  ch.Password,
			Timeout:   ch.Timeout,
			BatchSize: ch.BatchSize,
			Headers:   ch.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("create clickhouse writer: %w", err)
		}
		p.matchWriter = w
		logger.Infof("ClickHouse match output enabled: %s", ch.URL)
	}

	if p.reportWriter == nil && p.cfg.Report.Webhook.URL != "" {
		wh := p.cfg.Report.Webhook
		w, err := webhook.NewWriter(webhook.Config{URL: wh.URL, Timeout: wh.Timeout, Headers: wh.Headers, Retries: wh.Retries, RetryDelay: wh.RetryDelay})
		if err != nil {
			return nil, fmt.Errorf("create webhook writer: %w", err)
		}
		p.reportWriter = w
		logger.Infof("Webhook report output enabled: %s", wh.URL)
	}
	return p, nil
}

// RunID identifies this process's run in sink payloads.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Paths returns the artifact locations.
func (p *Pipeline) Paths() Paths {
	return p.paths
}

// Run executes stages in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context, stages ...string) error {
	if len(stages) == 0 {
		stages = Stages
	}
	for _, name := range stages {
		if err := p.RunStage(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// RunStage executes one named stage.
func (p *Pipeline) RunStage(ctx context.Context, name string) error {
	fn, ok := map[string]func(context.Context) error{
		StageParseRules: p.ParseRules,
		StageBuildIndex: p.BuildIndex,
		StageNormalize:  p.Normalize,
		StageMatch:      p.Match,
		StageGroup:      p.Group,
		StageNest:       p.Nest,
		StageSummarize:  p.Summarize,
		StageTakeaways:  p.Takeaways,
	}[name]
	if !ok {
		return fmt.Errorf("unknown stage %q", name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	logger.Infof("Stage %s started (run %s)", name, p.runID)
	if err := fn(ctx); err != nil {
		logger.Errorf("Stage %s failed: %v", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	p.metrics.ObserveStage(name, start)
	logger.Infof("Stage %s finished in %s", name, time.Since(start).Round(time.Millisecond))
	return nil
}

// Close flushes metrics and releases sinks and clients.
func (p *Pipeline) Close() error {
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		logger.Errorf("Failed to write metrics: %v", err)
	}
	if p.matchWriter != nil {
		if err := p.matchWriter.Close(); err != nil {
			logger.Errorf("Failed to close match writer: %v", err)
		}
	}
	if p.reportWriter != nil {
		if err := p.reportWriter.Close(); err != nil {
			logger.Errorf("Failed to close report writer: %v", err)
		}
	}
	if p.source != nil {
		if err := p.source.Close(); err != nil {
			logger.Errorf("Failed to close alert source: %v", err)
		}
	}
	if c, ok := p.embedder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Pipeline) getEmbedder() (embed.Embedder, error) {
	if p.embedder != nil {
		return p.embedder, nil
	}
	c := p.cfg.Embedding
	e, err := embed.New(embed.Config{
		Provider:   c.Provider,
		Model:      c.Model,
		ServerURL:  c.ServerURL,
		Dimensions: c.Dimensions,
		CacheSize:  c.CacheSize,
		Redis: embed.RedisConfig{
			Enabled:   c.Redis.Enabled,
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
			TTL:       c.Redis.TTL,
		},
	})
	if err != nil {
		return nil, err
	}
	p.embedder = e
	return e, nil
}

func (p *Pipeline) getBackend() (llm.Backend, error) {
	if p.backend != nil {
		return p.backend, nil
	}
	b, err := llm.New(llm.Config{
		Backend:   p.cfg.LLM.Backend,
		Model:     p.cfg.LLM.Model,
		ServerURL: p.cfg.LLM.ServerURL,
		Command:   p.cfg.LLM.Command,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("Using %s backend with model %s", b.Name(), p.cfg.LLM.Model)
	p.backend = b
	return b, nil
}

func (p *Pipeline) getSource() (AlertSource, error) {
	if p.source != nil {
		return p.source, nil
	}
	in := p.cfg.Alerts.Input
	switch in.Mode {
	case "redis":
		c, err := inputredis.NewConsumer(inputredis.Config{
			Addr:         in.Redis.Addr,
			Password:     in.Redis.Password,
			DB:           in.Redis.DB,
			Key:          in.Redis.Key,
			BlockTimeout: in.Redis.BlockTimeout,
			MaxAlerts:    in.Redis.MaxAlerts,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Reading alerts from redis list %s at %s", in.Redis.Key, in.Redis.Addr)
		p.source = c
	default:
		path := in.File.Path
		if path == "" {
			path = filepath.Join(p.cfg.DataDir, "alerts.json")
		}
		p.source = fileSource{path: path}
	}
	return p.source, nil
}

type fileSource struct {
	path string
}

func (f fileSource) Drain(context.Context) ([]normalize.Record, error) {
	return artifact.ReadAlertRecords(f.path)
}

func (f fileSource) Close() error {
	return nil
}

func writeText(path, body string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
