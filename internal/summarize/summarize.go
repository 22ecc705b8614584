// Package summarize turns nested groups into executive summaries and
// organization-level takeaways.
package summarize

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"alertlens/internal/extract"
	"alertlens/internal/llm"
	"alertlens/internal/logger"
	"alertlens/internal/metrics"
	"alertlens/pkg/models"
)

// DefaultTakeaways is the number of titles requested when Count is unset.
const DefaultTakeaways = 5

// Config tunes a Summarizer.
type Config struct {
	RetryDelay  time.Duration
	MaxAttempts int
	// Workers bounds concurrent group summaries and detail extractions.
	Workers int
	// Count is the number of takeaways requested.
	Count   int
	Metrics *metrics.Metrics
}

// Summarizer drives extraction loops against a backend.
type Summarizer struct {
	backend llm.Backend
	cfg     Config
}

// New creates a Summarizer.
func New(backend llm.Backend, cfg Config) *Summarizer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultTakeaways
	}
	return &Summarizer{backend: backend, cfg: cfg}
}

func (s *Summarizer) options(kind, label string) extract.Options {
	return extract.Options{
		Label:       label,
		RetryDelay:  s.cfg.RetryDelay,
		MaxAttempts: s.cfg.MaxAttempts,
		OnAttempt: func(err error) {
			s.cfg.Metrics.ObserveAttempt(kind, err)
		},
	}
}

// Groups summarizes every group of every leaf. Output follows leaf order,
// then group order within a leaf.
func (s *Summarizer) Groups(ctx context.Context, leaves []models.NestedLeaf) ([]models.GroupSummary, error) {
	type job struct {
		leaf  models.NestedLeaf
		group *models.Group
	}
	var jobs []job
	for _, leaf := range leaves {
		for _, g := range leaf.Groups {
			jobs = append(jobs, job{leaf: leaf, group: g})
		}
	}

	out := make([]models.GroupSummary, len(jobs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			label := fmt.Sprintf("summary %s -> %s -> %s", j.leaf.Tactic, j.leaf.Technique, j.leaf.HostUser)
			logger.Infof("Summarizing %s (%d alerts)", label, j.group.AlertCount)

			prompt := GroupPrompt(j.leaf.Tactic, j.leaf.Technique, j.leaf.HostUser, j.group.Entries)
			text, err := extract.NewLoop(s.backend, prompt, extract.Text, s.options("summary", label)).Run(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}

			out[i] = models.GroupSummary{
				Tactic:     j.leaf.Tactic,
				Technique:  j.leaf.Technique,
				HostUser:   j.leaf.HostUser,
				AlertCount: j.group.AlertCount,
				Summary:    text,
			}
			logger.Infof("Completed summary %d/%d", done.Add(1), len(jobs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Titles extracts exactly Count risk titles from a BuildContext digest.
func (s *Summarizer) Titles(ctx context.Context, digest string) ([]string, error) {
	validate := extract.All(extract.ListOfLength[string](s.cfg.Count), extract.NonBlankItems)
	titles, err := extract.Extract(ctx, s.backend, TitlesPrompt(digest, s.cfg.Count), extract.Array, validate, s.options("titles", "titles"))
	if err != nil {
		return nil, fmt.Errorf("extract titles: %w", err)
	}
	return titles, nil
}

// Details extracts one takeaway per title. Titles are processed concurrently
// and the result keeps title order.
func (s *Summarizer) Details(ctx context.Context, titles []string) ([]models.Takeaway, error) {
	validate := extract.RequiredFields[models.Takeaway]("What", "Impact", "Mitigation")
	out := make([]models.Takeaway, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, title := range titles {
		i, title := i, title
		g.Go(func() error {
			label := fmt.Sprintf("detail for '%s'", title)
			d, err := extract.Extract(gctx, s.backend, DetailPrompt(title), extract.Object, validate, s.options("detail", label))
			if err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
			d.Title = title
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Takeaways runs titles then details over the group summaries.
func (s *Summarizer) Takeaways(ctx context.Context, summaries []models.GroupSummary) ([]models.Takeaway, error) {
	titles, err := s.Titles(ctx, BuildContext(summaries))
	if err != nil {
		return nil, err
	}
	logger.Infof("Extracted %d titles", len(titles))
	return s.Details(ctx, titles)
}
