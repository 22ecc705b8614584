package rules

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"alertlens/internal/logger"
	"alertlens/pkg/models"
)

// Corpus is the outcome of loading a rule directory. Individual file
// failures do not fail the load; they are collected here instead.
type Corpus struct {
	Rules    []models.Rule
	Failures []models.ParseFailure
	Stats    models.ParseStats
}

// LoadCorpus parses every rule file under path. Elastic TOML and Sigma YAML
// files are recognized by extension; anything under a _deprecated directory
// is skipped and not counted.
func LoadCorpus(path string) (*Corpus, error) {
	files, err := ruleFiles(path)
	if err != nil {
		return nil, err
	}

	c := &Corpus{Rules: make([]models.Rule, 0, len(files))}
	for _, file := range files {
		c.Stats.TotalFiles++
		rule, err := ParseFile(file)
		if err != nil {
			c.Stats.Failed++
			c.Failures = append(c.Failures, models.ParseFailure{File: file, Error: err.Error()})
			logger.Warnf("Failed to parse %s: %v", file, err)
			continue
		}
		c.Stats.ParsedSuccessfully++
		logger.Debugf("Parsed: %s", rule.Title)
		c.Rules = append(c.Rules, rule)
	}
	c.Stats.SuccessRate = successRate(c.Stats.ParsedSuccessfully, c.Stats.TotalFiles)
	return c, nil
}

// ParseFile parses a single rule file according to its extension.
func ParseFile(path string) (models.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Rule{}, fmt.Errorf("read rule %s: %w", path, err)
	}

	var rule models.Rule
	switch {
	case isTOMLFile(path):
		rule, err = parseElastic(raw)
	case isYAMLFile(path):
		rule, err = parseSigma(raw)
	default:
		return models.Rule{}, fmt.Errorf("unsupported rule file extension: %s", path)
	}
	if err != nil {
		return models.Rule{}, err
	}
	rule.File = filepath.Base(path)
	return rule, nil
}

func ruleFiles(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}

	if !info.IsDir() {
		if !isRuleFile(resolved) {
			return nil, fmt.Errorf("rule file must end with .toml, .yml or .yaml: %s", resolved)
		}
		return []string{resolved}, nil
	}

	files := make([]string, 0, 256)
	err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if strings.Contains(strings.ToLower(filePath), "_deprecated") {
			return nil
		}
		if isRuleFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func successRate(parsed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(parsed)/float64(total)*100*100) / 100
}

func isRuleFile(path string) bool {
	return isTOMLFile(path) || isYAMLFile(path)
}

func isTOMLFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".toml")
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// orNA mirrors how rule text fields are filled for embedding.
func orNA(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "N/A"
	}
	return v
}
