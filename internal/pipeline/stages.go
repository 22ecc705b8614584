package pipeline

import (
	"context"
	"fmt"
	"time"

	"alertlens/internal/artifact"
	"alertlens/internal/grouping"
	"alertlens/internal/logger"
	"alertlens/internal/matcher"
	"alertlens/internal/normalize"
	"alertlens/internal/output/webhook"
	"alertlens/internal/report"
	"alertlens/internal/rules"
	"alertlens/internal/summarize"
	"alertlens/internal/vectorindex"
	"alertlens/pkg/models"
)

// ParseRules loads the rule corpus and writes the parsed rules, the failures
// and the parse statistics.
func (p *Pipeline) ParseRules(ctx context.Context) error {
	c, err := rules.LoadCorpus(p.cfg.Rules.Path)
	if err != nil {
		return err
	}
	if err := artifact.WriteJSONL(p.paths.ParsedRules, c.Rules); err != nil {
		return err
	}
	failures := c.Failures
	if failures == nil {
		failures = []models.ParseFailure{}
	}
	if err := artifact.WriteJSON(p.paths.ParseFailures, failures); err != nil {
		return err
	}
	if err := artifact.WriteJSON(p.paths.ParseStats, c.Stats); err != nil {
		return err
	}

	p.metrics.Add(p.metrics.RulesParsed, c.Stats.ParsedSuccessfully)
	p.metrics.Add(p.metrics.RuleParseFailures, c.Stats.Failed)
	logger.Infof("Parsed %d/%d rule files (%.2f%%), %d failed -> %s",
		c.Stats.ParsedSuccessfully, c.Stats.TotalFiles, c.Stats.SuccessRate, c.Stats.Failed, p.paths.ParsedRules)
	return nil
}

// BuildIndex embeds the parsed rules and saves the vector index.
func (p *Pipeline) BuildIndex(ctx context.Context) error {
	parsed, err := artifact.ReadJSONL[models.Rule](p.paths.ParsedRules)
	if err != nil {
		return err
	}
	e, err := p.getEmbedder()
	if err != nil {
		return err
	}
	c, err := matcher.Build(ctx, e, parsed, p.cfg.Embedding.Workers)
	if err != nil {
		return err
	}
	if err := vectorindex.Save(p.paths.Index, c); err != nil {
		return err
	}
	logger.Infof("Saved rule index with %d rules -> %s", c.Index.Len(), p.paths.Index)
	return nil
}

// Normalize coalesces raw alerts into canonical alerts.
func (p *Pipeline) Normalize(ctx context.Context) error {
	src, err := p.getSource()
	if err != nil {
		return err
	}
	raw, err := src.Drain(ctx)
	if err != nil {
		return err
	}

	alerts := make([]models.Alert, len(raw))
	for i, r := range raw {
		alerts[i] = normalize.Alert(r)
	}
	if err := artifact.WriteJSONL(p.paths.Normalized, alerts); err != nil {
		return err
	}
	p.metrics.Add(p.metrics.AlertsNormalized, len(alerts))
	logger.Infof("Normalized %d alerts -> %s", len(alerts), p.paths.Normalized)
	return nil
}

// Match finds the nearest rules for every normalized alert.
func (p *Pipeline) Match(ctx context.Context) error {
	if err := artifact.RequireInput(p.paths.Index); err != nil {
		return err
	}
	alerts, err := artifact.ReadJSONL[models.Alert](p.paths.Normalized)
	if err != nil {
		return err
	}
	c, err := vectorindex.Load(p.paths.Index)
	if err != nil {
		return err
	}
	e, err := p.getEmbedder()
	if err != nil {
		return err
	}
	if c.Model != "" && c.Model != e.Model() {
		logger.Warnf("Rule index was built with model %s but matching uses %s", c.Model, e.Model())
	}

	m := matcher.New(e, c, p.cfg.Match.SearchTimeout)
	results, err := m.MatchAll(ctx, alerts, p.cfg.Match.TopK, p.cfg.Match.Workers)
	if err != nil {
		return err
	}
	if err := artifact.CheckCardinality("alerts vs match results", len(alerts), len(results)); err != nil {
		return err
	}
	if err := artifact.WriteJSONL(p.paths.Matches, results); err != nil {
		return err
	}
	if p.matchWriter != nil {
		if err := p.matchWriter.WriteMatches(ctx, p.runID, results); err != nil {
			return fmt.Errorf("write matches to sink: %w", err)
		}
	}

	p.metrics.Add(p.metrics.AlertsMatched, len(results))
	logger.Infof("Matched %d alerts against %d rules (top %d) -> %s", len(results), c.Index.Len(), p.cfg.Match.TopK, p.paths.Matches)
	return nil
}

// Group folds match results into host/user/tactic groups.
func (p *Pipeline) Group(ctx context.Context) error {
	results, err := artifact.ReadJSONL[models.MatchResult](p.paths.Matches)
	if err != nil {
		return err
	}
	pairs, err := grouping.Pairs(results, p.cfg.Match.Pairing)
	if err != nil {
		return err
	}
	groups := grouping.Group(pairs)
	if err := artifact.WriteJSONL(p.paths.Grouped, groups); err != nil {
		return err
	}
	p.metrics.Add(p.metrics.Groups, len(groups))
	logger.Infof("Grouped %d entries into %d groups -> %s", len(pairs), len(groups), p.paths.Grouped)
	return nil
}

// Nest files groups under tactic, technique and host/user.
func (p *Pipeline) Nest(ctx context.Context) error {
	groups, err := artifact.ReadJSONL[*models.Group](p.paths.Grouped)
	if err != nil {
		return err
	}
	leaves := grouping.Nest(groups)
	if err := artifact.WriteJSONL(p.paths.Nested, leaves); err != nil {
		return err
	}
	logger.Infof("Nested %d groups into %d leaves -> %s", len(groups), len(leaves), p.paths.Nested)
	return nil
}

// Summarize writes an executive summary per group.
func (p *Pipeline) Summarize(ctx context.Context) error {
	leaves, err := artifact.ReadJSONL[models.NestedLeaf](p.paths.Nested)
	if err != nil {
		return err
	}
	s, err := p.summarizer()
	if err != nil {
		return err
	}
	summaries, err := s.Groups(ctx, leaves)
	if err != nil {
		return err
	}
	if err := artifact.WriteJSONL(p.paths.Summaries, summaries); err != nil {
		return err
	}
	logger.Infof("Summarized %d groups -> %s", len(summaries), p.paths.Summaries)
	return nil
}

// Takeaways extracts the organization-level takeaways and renders reports.
func (p *Pipeline) Takeaways(ctx context.Context) error {
	summaries, err := artifact.ReadJSONL[models.GroupSummary](p.paths.Summaries)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		logger.Warnf("No group summaries in %s; takeaways will have no context", p.paths.Summaries)
	}
	s, err := p.summarizer()
	if err != nil {
		return err
	}
	items, err := s.Takeaways(ctx, summaries)
	if err != nil {
		return err
	}

	plain, html, err := report.Render(items)
	if err != nil {
		return err
	}
	if err := artifact.WriteJSONL(p.paths.Takeaways, items); err != nil {
		return err
	}
	if err := writeText(p.paths.TakeawaysText, plain); err != nil {
		return err
	}
	if err := writeText(p.paths.TakeawaysHTML, html); err != nil {
		return err
	}
	if p.reportWriter != nil {
		payload := webhook.Payload{RunID: p.runID, Generated: time.Now().UTC(), Takeaways: items, Text: plain}
		if err := p.reportWriter.Post(ctx, payload); err != nil {
			return fmt.Errorf("deliver takeaways: %w", err)
		}
	}
	logger.Infof("Results written -> %s | %s", p.paths.TakeawaysText, p.paths.TakeawaysHTML)
	return nil
}

func (p *Pipeline) summarizer() (*summarize.Summarizer, error) {
	b, err := p.getBackend()
	if err != nil {
		return nil, err
	}
	return summarize.New(b, summarize.Config{
		RetryDelay:  p.cfg.LLM.RetryDelay,
		MaxAttempts: p.cfg.LLM.MaxAttempts,
		Workers:     p.cfg.LLM.DetailWorkers,
		Count:       p.cfg.Takeaways.Count,
		Metrics:     p.metrics,
	}), nil
}
