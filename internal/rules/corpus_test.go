package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertlens/pkg/models"
)

const elasticRuleTOML = `
[metadata]
creation_date = "2020/01/01"
risk_score = 21

[rule]
name = "Credential Dumping via LSASS Access"
description = "Identifies access to LSASS memory."
query = '''
process where event.action == "access" and process.name == "lsass.exe"
'''
risk_score = 73
tags = ["Domain: Endpoint", "Tactic: Credential Access"]

[[rule.threat]]
framework = "MITRE ATT&CK"

[[rule.threat.technique]]
id = "T1003"
name = "OS Credential Dumping"

[rule.threat.tactic]
id = "TA0006"
name = "Credential Access"
`

const elasticRuleTableTechnique = `
[metadata]
risk_score = 47
tags = ["legacy"]

[rule]
name = "  "
description = "Old style rule"

[[rule.threat]]
framework = "MITRE ATT&CK"

[rule.threat.technique]
id = "T1048"
name = "Exfiltration Over Alternative Protocol"

[rule.threat.tactic]
name = "Exfiltration"
`

const sigmaRule = `
title: Certutil Download
id: 5f2a7b1c-0000-4000-8000-000000000001
description: Detects certutil used to fetch remote payloads
references:
  - https://example.com/certutil
tags:
  - attack.command_and_control
  - attack.t1105
level: high
logsource:
  product: windows
  category: process_creation
detection:
  selection:
    Image|endswith: '\certutil.exe'
    CommandLine|contains: 'urlcache'
  condition: selection
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestLoadCorpusRecordsFailuresAndStats(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFile(t, filepath.Join(dir, "elastic", fmt.Sprintf("rule_%02d.toml", i)), elasticRuleTOML)
	}
	writeFile(t, filepath.Join(dir, "sigma", "a.yml"), sigmaRule)
	writeFile(t, filepath.Join(dir, "sigma", "b.yaml"), sigmaRule)
	writeFile(t, filepath.Join(dir, "broken", "bad_1.toml"), "name = = broken")
	writeFile(t, filepath.Join(dir, "broken", "bad_2.toml"), "[rule\nname = \"x\"")
	writeFile(t, filepath.Join(dir, "_deprecated", "old.toml"), elasticRuleTOML)
	writeFile(t, filepath.Join(dir, "README.md"), "# rules")

	c, err := LoadCorpus(dir)
	require.NoError(t, err)

	assert.Equal(t, models.ParseStats{TotalFiles: 10, ParsedSuccessfully: 8, Failed: 2, SuccessRate: 80.0}, c.Stats)
	assert.Len(t, c.Rules, 8)
	require.Len(t, c.Failures, 2)
	assert.Contains(t, c.Failures[0].File, "bad_1.toml")
	assert.NotEmpty(t, c.Failures[0].Error)
	assert.Contains(t, c.Failures[1].File, "bad_2.toml")
}

func TestLoadCorpusEmptyDirectory(t *testing.T) {
	c, err := LoadCorpus(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Stats.TotalFiles)
	assert.Equal(t, 0.0, c.Stats.SuccessRate)
}

func TestLoadCorpusMissingPath(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestSuccessRateRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 66.67, successRate(2, 3))
	assert.Equal(t, 100.0, successRate(5, 5))
}

func TestParseElasticRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsass.toml")
	writeFile(t, path, elasticRuleTOML)

	r, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Credential Dumping via LSASS Access", r.Title)
	assert.Equal(t, "Identifies access to LSASS memory.", r.Description)
	assert.Contains(t, r.Query, "lsass.exe")
	assert.Equal(t, "Credential Access", r.Tactic)
	assert.Equal(t, "OS Credential Dumping", r.Technique)
	assert.Equal(t, "T1003", r.TechniqueID)
	assert.Equal(t, 73.0, r.RiskScore)
	assert.Equal(t, []string{"Domain: Endpoint", "Tactic: Credential Access"}, r.Tags)
	assert.Equal(t, []string{}, r.References)
	assert.Equal(t, "lsass.toml", r.File)
	assert.Equal(t, models.DialectElastic, r.Dialect)
}

func TestParseElasticRuleLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.toml")
	writeFile(t, path, elasticRuleTableTechnique)

	r, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "N/A", r.Title)
	assert.Equal(t, "N/A", r.Query)
	assert.Equal(t, "Exfiltration", r.Tactic)
	assert.Equal(t, "T1048", r.TechniqueID)
	assert.Equal(t, 47.0, r.RiskScore)
	assert.Equal(t, []string{"legacy"}, r.Tags)
}

func TestParseSigmaRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certutil.yml")
	writeFile(t, path, sigmaRule)

	r, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Certutil Download", r.Title)
	assert.Equal(t, "Command And Control", r.Tactic)
	assert.Equal(t, "T1105", r.TechniqueID)
	assert.Equal(t, 73.0, r.RiskScore)
	assert.Contains(t, r.Query, "urlcache")
	assert.Contains(t, r.Query, "condition: selection")
	assert.Equal(t, []string{"https://example.com/certutil"}, r.References)
	assert.Equal(t, models.DialectSigma, r.Dialect)
}

func TestParseAttackTags(t *testing.T) {
	tactic, technique := parseAttackTags([]string{"attack.g0016", "attack.t1059.001", "attack.execution", "attack.defense_evasion"})
	assert.Equal(t, "Execution", tactic)
	assert.Equal(t, "T1059.001", technique)
}
