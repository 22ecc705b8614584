package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, Warn)
	t.Cleanup(func() { swap(nil) })

	Infof("dropped %d", 1)
	Warnf("kept %s", "warn")
	Errorf("kept %s", "error")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "[WARN] kept warn")
	assert.Contains(t, out, "[ERROR] kept error")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestInitDisabledDropsEverything(t *testing.T) {
	require.NoError(t, Init(Config{Enabled: false}))
	t.Cleanup(func() { swap(nil) })

	Errorf("nothing should panic")
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "alertlens.log")
	require.NoError(t, Init(Config{Enabled: true, Level: "debug", File: path}))
	t.Cleanup(func() { swap(nil) })

	Debugf("stage %s", "match")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] stage match")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("DEBUG"))
	assert.Equal(t, Warn, ParseLevel("warning"))
	assert.Equal(t, Error, ParseLevel(" error "))
	assert.Equal(t, Info, ParseLevel("verbose"))
}
