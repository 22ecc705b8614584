package summarize

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertlens/internal/metrics"
	"alertlens/pkg/models"
)

// fakeBackend answers by prompt prefix and records every prompt.
type fakeBackend struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string, call int) string
}

func (f *fakeBackend) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts)
	f.mu.Unlock()
	return f.answer(prompt, call), nil
}

func (f *fakeBackend) Name() string { return "fake" }

func TestGroupPromptQuotesAtMostTenSamples(t *testing.T) {
	var entries []models.GroupEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, models.GroupEntry{Alert: models.Alert{Description: "desc-" + string(rune('a'+i))}})
	}

	p := GroupPrompt("exfiltration", "exfil over c2", "win-01/alice", entries)
	assert.True(t, strings.HasPrefix(p, "Summarize the following security alert group in executive terms.\n\nMITRE tactic: exfiltration\nTechnique: exfil over c2\nHost/User group: win-01/alice\n\nExample alert details:\n- desc-a\n"))
	assert.Contains(t, p, "- desc-j\n\nExplain what this activity means")
	assert.NotContains(t, p, "desc-k")
}

func TestBuildContextSortsByCountStable(t *testing.T) {
	ctx := BuildContext([]models.GroupSummary{
		{Tactic: "a", Technique: "t", HostUser: "h/u", AlertCount: 1, Summary: "first small"},
		{Tactic: "b", Technique: "t", HostUser: "h/u", AlertCount: 5, Summary: "big"},
		{Tactic: "c", Technique: "t", HostUser: "h/u", AlertCount: 1, Summary: "second small"},
	})
	assert.Equal(t, "- [5 alerts] b/t on h/u: big\n"+
		"- [1 alerts] a/t on h/u: first small\n"+
		"- [1 alerts] c/t on h/u: second small", ctx)
}

func TestPrompts(t *testing.T) {
	assert.Equal(t, "Return ONLY a JSON array (no markdown, no commentary) of exactly five short, "+
		"distinct risk titles based on the context below.\n\nContext:\nCTX", TitlesPrompt("CTX", 5))
	assert.Contains(t, TitlesPrompt("CTX", 12), "exactly 12 short")
	assert.True(t, strings.HasSuffix(DetailPrompt("Data Theft"), `Risk title: "Data Theft".`))
}

func TestGroupsSummarizesInTreeOrder(t *testing.T) {
	b := &fakeBackend{answer: func(prompt string, call int) string {
		if call == 1 {
			return "   "
		}
		for _, line := range strings.Split(prompt, "\n") {
			if strings.HasPrefix(line, "MITRE tactic: ") {
				return "summary of " + strings.TrimPrefix(line, "MITRE tactic: ")
			}
		}
		return "?"
	}}
	s := New(b, Config{RetryDelay: time.Millisecond, Workers: 1})

	g1 := &models.Group{AlertCount: 2}
	g2 := &models.Group{AlertCount: 1}
	g3 := &models.Group{AlertCount: 4}
	leaves := []models.NestedLeaf{
		{Tactic: "execution", Technique: "powershell", HostUser: "h1/u", Groups: []*models.Group{g1, g2}},
		{Tactic: "exfiltration", Technique: "web", HostUser: "h2/u", Groups: []*models.Group{g3}},
	}

	out, err := s.Groups(context.Background(), leaves)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, models.GroupSummary{Tactic: "execution", Technique: "powershell", HostUser: "h1/u", AlertCount: 2, Summary: "summary of execution"}, out[0])
	assert.Equal(t, 1, out[1].AlertCount)
	assert.Equal(t, "summary of exfiltration", out[2].Summary)
	assert.Len(t, b.prompts, 4, "blank first answer is retried")
}

func TestTakeawaysTitlesThenDetails(t *testing.T) {
	b := &fakeBackend{answer: func(prompt string, _ int) string {
		if strings.HasPrefix(prompt, "Return ONLY a JSON array") {
			return `Sure! Here you go: ["A","B","C","D","E"] Thanks!`
		}
		title := prompt[strings.Index(prompt, `Risk title: "`)+len(`Risk title: "`) : len(prompt)-2]
		return `{"what": "what ` + title + `", "impact": "impact ` + title + `", "mitigation": "fix ` + title + `"}`
	}}
	m := metrics.New()
	s := New(b, Config{RetryDelay: time.Millisecond, Workers: 3, Metrics: m})

	out, err := s.Takeaways(context.Background(), []models.GroupSummary{{Tactic: "x", Technique: "y", HostUser: "h/u", AlertCount: 3, Summary: "s"}})
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, title := range []string{"A", "B", "C", "D", "E"} {
		assert.Equal(t, models.Takeaway{Title: title, What: "what " + title, Impact: "impact " + title, Mitigation: "fix " + title}, out[i])
	}
	assert.Contains(t, b.prompts[0], "- [3 alerts] x/y on h/u: s")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionAttempts.WithLabelValues("titles")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ExtractionAttempts.WithLabelValues("detail")))
}

func TestDetailsRetryUntilAllKeysPresent(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	b := &fakeBackend{answer: func(string, int) string {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == 1 {
			return `{"what": "w", "impact": "", "mitigation": "m"}`
		}
		return `Here: {"what": "w", "impact": "i", "mitigation": "m"}`
	}}
	s := New(b, Config{RetryDelay: time.Millisecond})

	out, err := s.Details(context.Background(), []string{"Only"})
	require.NoError(t, err)
	assert.Equal(t, models.Takeaway{Title: "Only", What: "w", Impact: "i", Mitigation: "m"}, out[0])
	assert.Equal(t, 2, seen)
}

func TestTitlesHonorsMaxAttempts(t *testing.T) {
	b := &fakeBackend{answer: func(string, int) string { return `["A","B"]` }}
	s := New(b, Config{RetryDelay: time.Millisecond, MaxAttempts: 2})

	_, err := s.Titles(context.Background(), "ctx")
	require.Error(t, err)
	assert.Len(t, b.prompts, 2)
}
