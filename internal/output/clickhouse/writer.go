// Package clickhouse streams match rows to ClickHouse over its HTTP interface.
package clickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alertlens/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL       string
	Database  string
	Table     string
	Username  string
	Password  string
	Timeout   time.Duration
	BatchSize int
	Headers   map[string]string
}

// Row is one (alert, candidate rule) pair.
type Row struct {
	RunID       string  `json:"run_id"`
	AlertID     string  `json:"alert_id"`
	AlertTitle  string  `json:"alert_title"`
	Host        string  `json:"host"`
	User        string  `json:"user"`
	Tactic      string  `json:"tactic"`
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	RuleIndex   int     `json:"rule_index"`
	RuleTitle   string  `json:"rule_title"`
	RuleTactic  string  `json:"rule_tactic"`
	TechniqueID string  `json:"technique_id"`
	RuleFile    string  `json:"rule_file"`
}

// Rows flattens match results into one row per candidate.
func Rows(runID string, results []models.MatchResult) []Row {
	var rows []Row
	for _, res := range results {
		for _, m := range res.Matches {
			rows = append(rows, Row{
				RunID:       runID,
				AlertID:     res.Alert.AlertID,
				AlertTitle:  res.Alert.Title,
				Host:        res.Alert.Host,
				User:        res.Alert.User,
				Tactic:      res.Alert.Tactic,
				Rank:        m.Rank,
				Score:       m.Score,
				RuleIndex:   m.RuleIndex,
				RuleTitle:   m.Title,
				RuleTactic:  m.Tactic,
				TechniqueID: m.TechniqueID,
				RuleFile:    m.File,
			})
		}
	}
	return rows
}

// Writer sends match rows to ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint  string
	headers   map[string]string
	client    *http.Client
	batchSize int
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "alert_matches"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint:  endpoint,
		headers:   headers,
		client:    &http.Client{Timeout: timeout},
		batchSize: cfg.BatchSize,
	}, nil
}

// WriteMatches flattens and sends one run's match results.
func (w *Writer) WriteMatches(ctx context.Context, runID string, results []models.MatchResult) error {
	return w.WriteRows(ctx, Rows(runID, results))
}

// WriteRows sends rows in batches.
func (w *Writer) WriteRows(ctx context.Context, rows []Row) error {
	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.send(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) send(ctx context.Context, rows []Row) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to marshal match row: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
