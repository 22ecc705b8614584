// Package matcher correlates alerts with their nearest detection rules.
package matcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"alertlens/internal/artifact"
	"alertlens/internal/embed"
	"alertlens/internal/logger"
	"alertlens/internal/normalize"
	"alertlens/internal/vectorindex"
	"alertlens/pkg/models"
)

// Matcher embeds query text and searches a rule catalog.
type Matcher struct {
	embedder      embed.Embedder
	catalog       *vectorindex.Catalog
	searchTimeout time.Duration
}

// New creates a Matcher. A zero searchTimeout disables the per-search limit.
func New(e embed.Embedder, c *vectorindex.Catalog, searchTimeout time.Duration) *Matcher {
	return &Matcher{embedder: e, catalog: c, searchTimeout: searchTimeout}
}

// Match returns the k rules nearest to text, or every rule when the
// catalog holds fewer, closest first.
func (m *Matcher) Match(ctx context.Context, text string, k int) ([]models.Match, error) {
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sctx := ctx
	if m.searchTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, m.searchTimeout)
		defer cancel()
	}

	hits, err := m.catalog.Index.Search(sctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search rule index: %w", err)
	}

	out := make([]models.Match, 0, len(hits))
	for rank, h := range hits {
		rule, err := m.catalog.Rule(h)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Match{RuleIndex: h.Index, Rank: rank, Score: h.Distance, Rule: rule})
	}
	return out, nil
}

// MatchAll matches every alert using up to workers concurrent searches.
// Results are in input order. The first failure cancels the rest and no
// partial result is returned.
func (m *Matcher) MatchAll(ctx context.Context, alerts []models.Alert, k, workers int) ([]models.MatchResult, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]models.MatchResult, len(alerts))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range alerts {
		i := i
		alert := alerts[i]
		g.Go(func() error {
			matches, err := m.Match(gctx, normalize.AlertText(alert), k)
			if err != nil {
				return fmt.Errorf("match alert %d (%s): %w", i, alert.Title, err)
			}
			results[i] = models.MatchResult{Alert: alert, Matches: matches}
			if n := done.Add(1); n%500 == 0 {
				logger.Infof("Matched %d/%d alerts", n, len(alerts))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := artifact.CheckCardinality("match results", len(alerts), int(done.Load())); err != nil {
		return nil, err
	}
	return results, nil
}

// Build embeds every rule and indexes the vectors in rule order.
func Build(ctx context.Context, e embed.Embedder, rules []models.Rule, workers int) (*vectorindex.Catalog, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules to index")
	}
	if workers <= 0 {
		workers = 1
	}

	vecs := make([][]float32, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range rules {
		i := i
		g.Go(func() error {
			v, err := e.Embed(gctx, normalize.RuleText(rules[i]))
			if err != nil {
				return fmt.Errorf("embed rule %q: %w", rules[i].Title, err)
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &vectorindex.Catalog{
		Index: vectorindex.New(len(vecs[0])),
		Rules: append([]models.Rule(nil), rules...),
		Model: e.Model(),
	}
	for i, v := range vecs {
		if _, err := c.Index.Add(v); err != nil {
			return nil, fmt.Errorf("index rule %q: %w", rules[i].Title, err)
		}
	}
	logger.Infof("Indexed %d rules (dimensions=%d, model=%s)", c.Index.Len(), c.Index.Dimensions(), c.Model)
	return c, nil
}
