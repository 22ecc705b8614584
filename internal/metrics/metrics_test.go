package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Add(m.AlertsNormalized, 3)
	m.Add(m.AlertsNormalized, 0)
	m.ObserveAttempt("titles", errors.New("bad json"))
	m.ObserveAttempt("titles", nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.AlertsNormalized))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractionAttempts.WithLabelValues("titles")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionFailures.WithLabelValues("titles")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Add(nil, 1)
	m.ObserveAttempt("detail", nil)
	m.ObserveStage("match", time.Now())
	require.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Add(m.Groups, 2)
	m.ObserveStage("group", time.Now())

	path := filepath.Join(t.TempDir(), "textfile", "alertlens.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "alertlens_groups_total 2")
	assert.Contains(t, string(b), `alertlens_stage_duration_seconds_count{stage="group"} 1`)
}
