package clickhouse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertlens/pkg/models"
)

func TestRows(t *testing.T) {
	results := []models.MatchResult{{
		Alert: models.Alert{AlertID: "a1", Title: "Exfil", Host: "h", User: "u", Tactic: "Exfiltration"},
		Matches: []models.Match{
			{RuleIndex: 4, Rank: 0, Score: 0.25, Rule: models.Rule{Title: "R4", TechniqueID: "T1048", File: "r4.toml"}},
			{RuleIndex: 1, Rank: 1, Score: 0.5, Rule: models.Rule{Title: "R1"}},
		},
	}}

	rows := Rows("run-1", results)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{RunID: "run-1", AlertID: "a1", AlertTitle: "Exfil", Host: "h", User: "u", Tactic: "Exfiltration",
		Rank: 0, Score: 0.25, RuleIndex: 4, RuleTitle: "R4", TechniqueID: "T1048", RuleFile: "r4.toml"}, rows[0])
	assert.Equal(t, 1, rows[1].Rank)
}

func TestWriteRowsBatchesJSONEachRow(t *testing.T) {
	var mu sync.Mutex
	var batches [][]Row
	var query, user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []Row
		s := bufio.NewScanner(r.Body)
		for s.Scan() {
			var row Row
			require.NoError(t, json.Unmarshal(s.Bytes(), &row))
			batch = append(batch, row)
		}
		mu.Lock()
		batches = append(batches, batch)
		query = r.URL.Query().Get("query")
		user = r.Header.Get("X-ClickHouse-User")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL + "/", Database: "sec", Username: "bob", BatchSize: 2})
	require.NoError(t, err)
	defer w.Close()

	rows := []Row{{Rank: 0}, {Rank: 1}, {Rank: 2}}
	require.NoError(t, w.WriteRows(context.Background(), rows))

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, "INSERT INTO `sec`.`alert_matches` FORMAT JSONEachRow", query)
	assert.Equal(t, "bob", user)
}

func TestWriteRowsReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Code: 60. Table does not exist", http.StatusNotFound)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	require.NoError(t, err)
	err = w.WriteRows(context.Background(), []Row{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Table does not exist")
}

func TestNewWriterRequiresURL(t *testing.T) {
	_, err := NewWriter(Config{})
	require.Error(t, err)
}
