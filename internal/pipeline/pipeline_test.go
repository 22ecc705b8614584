package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertlens/config"
	"alertlens/internal/artifact"
	"alertlens/internal/embed"
	"alertlens/internal/output/webhook"
	"alertlens/pkg/models"
)

const exfilRule = `
[rule]
name = "Exfiltration Over Web Service"
description = "Large uploads to cloud storage"
query = "network where destination.domain : *.dropbox.com"

[[rule.threat]]
framework = "MITRE ATT&CK"
[[rule.threat.technique]]
id = "T1567"
name = "Exfiltration Over Web Service"
[rule.threat.tactic]
name = "Exfiltration"
`

const execRule = `
[rule]
name = "Encoded PowerShell"
description = "PowerShell launched with an encoded command"
query = "process where process.name == powershell.exe"

[[rule.threat]]
framework = "MITRE ATT&CK"
[[rule.threat.technique]]
id = "T1059.001"
name = "PowerShell"
[rule.threat.tactic]
name = "Execution"
`

const alertsDoc = `{"alerts": [
  {"title": "Upload to dropbox", "tactic": "Exfiltration", "HostName": "WIN-01", "user": "Alice", "process": "curl.exe"},
  {"alert_name": "Encoded PowerShell", "mitreTactic": "Execution", "host": "srv-2", "username": "bob", "processName": "powershell.exe"},
  {"threatName": "Upload to cloud", "attack_tactic": "exfiltration", "host_name": " win-01 ", "principal": "alice "}
]}`

type fakeBackend struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeBackend) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	switch {
	case strings.HasPrefix(prompt, "Summarize"):
		return "Activity summary.", nil
	case strings.HasPrefix(prompt, "Return ONLY a JSON array"):
		return `Sure! Here you go: ["A","B","C","D","E"] Thanks!`, nil
	default:
		return `{"what": "w <x>", "impact": "i", "mitigation": "m"}`, nil
	}
}

func (f *fakeBackend) Name() string { return "fake" }

type recordingWebhook struct {
	payloads []webhook.Payload
	closed   bool
}

func (r *recordingWebhook) Post(_ context.Context, p webhook.Payload) error {
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recordingWebhook) Close() error {
	r.closed = true
	return nil
}

func setup(t *testing.T) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()
	rulesDir := filepath.Join(root, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "exfil.toml"), []byte(exfilRule), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "exec.toml"), []byte(execRule), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "broken.toml"), []byte("name = = x"), 0644))
	alertsPath := filepath.Join(root, "alerts.json")
	require.NoError(t, os.WriteFile(alertsPath, []byte(alertsDoc), 0644))

	cfg := config.Default()
	c := &cfg.AlertLens
	c.DataDir = filepath.Join(root, "data")
	c.Rules.Path = rulesDir
	c.Alerts.Input.File.Path = alertsPath
	c.Embedding.Provider = "mock"
	c.Match.TopK = 2
	c.LLM.RetryDelay = time.Millisecond
	c.LLM.DetailWorkers = 2
	c.Metrics.Textfile = filepath.Join(root, "metrics", "alertlens.prom")
	return cfg, root
}

func TestRunAllStages(t *testing.T) {
	cfg, root := setup(t)
	hook := &recordingWebhook{}
	p, err := New(cfg, WithEmbedder(embed.NewMock(64)), WithBackend(&fakeBackend{}), WithReportWriter(hook))
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	require.NoError(t, p.Close())
	paths := p.Paths()

	var stats models.ParseStats
	require.NoError(t, artifact.ReadJSON(paths.ParseStats, &stats))
	assert.Equal(t, models.ParseStats{TotalFiles: 3, ParsedSuccessfully: 2, Failed: 1, SuccessRate: 66.67}, stats)

	var failures []models.ParseFailure
	require.NoError(t, artifact.ReadJSON(paths.ParseFailures, &failures))
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].File, "broken.toml")

	alerts, err := artifact.ReadJSONL[models.Alert](paths.Normalized)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "Upload to dropbox involving curl.exe on WIN-01 by Alice", alerts[0].Description)

	matches, err := artifact.ReadJSONL[models.MatchResult](paths.Matches)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Len(t, m.Matches, 2)
	}

	groups, err := artifact.ReadJSONL[models.Group](paths.Grouped)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "host-win-01_user-alice_tactic-exfiltration", groups[0].GroupID)
	assert.Equal(t, 2, groups[0].AlertCount)
	assert.Equal(t, "host-srv-2_user-bob_tactic-execution", groups[1].GroupID)

	leaves, err := artifact.ReadJSONL[models.NestedLeaf](paths.Nested)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, "win-01/alice", leaves[0].HostUser)

	summaries, err := artifact.ReadJSONL[models.GroupSummary](paths.Summaries)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].AlertCount)

	takeaways, err := artifact.ReadJSONL[models.Takeaway](paths.Takeaways)
	require.NoError(t, err)
	require.Len(t, takeaways, 5)
	assert.Equal(t, "A", takeaways[0].Title)

	txt, err := os.ReadFile(paths.TakeawaysText)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(txt), "1. A\n- What this means: w <x>\n"))

	html, err := os.ReadFile(paths.TakeawaysHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "w &lt;x&gt;")

	_, err = os.Stat(paths.Index)
	require.NoError(t, err)

	require.Len(t, hook.payloads, 1)
	assert.Equal(t, p.RunID(), hook.payloads[0].RunID)
	assert.True(t, hook.closed)

	prom, err := os.ReadFile(filepath.Join(root, "metrics", "alertlens.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "alertlens_alerts_normalized_total 3")
	assert.Contains(t, string(prom), "alertlens_rule_parse_failures_total 1")
}

func TestStageWithMissingInput(t *testing.T) {
	cfg, _ := setup(t)
	p, err := New(cfg, WithEmbedder(embed.NewMock(8)), WithBackend(&fakeBackend{}))
	require.NoError(t, err)

	for _, stage := range []string{StageBuildIndex, StageMatch, StageGroup, StageNest, StageSummarize, StageTakeaways} {
		err := p.RunStage(context.Background(), stage)
		require.Error(t, err, stage)
		assert.True(t, errors.Is(err, artifact.ErrInputMissing), "%s: %v", stage, err)
	}
}

func TestUnknownStage(t *testing.T) {
	cfg, _ := setup(t)
	p, err := New(cfg)
	require.NoError(t, err)
	require.Error(t, p.RunStage(context.Background(), "deploy"))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg, _ := setup(t)
	p, err := New(cfg, WithEmbedder(embed.NewMock(8)), WithBackend(&fakeBackend{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestMatchWritesToSink(t *testing.T) {
	cfg, _ := setup(t)
	sink := &recordingMatches{}
	p, err := New(cfg, WithEmbedder(embed.NewMock(32)), WithMatchWriter(sink))
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background(), StageParseRules, StageBuildIndex, StageNormalize, StageMatch))
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	assert.Equal(t, p.RunID(), sink.runID)
}

type recordingMatches struct {
	runID   string
	batches [][]models.MatchResult
}

func (r *recordingMatches) WriteMatches(_ context.Context, runID string, results []models.MatchResult) error {
	r.runID = runID
	r.batches = append(r.batches, results)
	return nil
}

func (r *recordingMatches) Close() error { return nil }
