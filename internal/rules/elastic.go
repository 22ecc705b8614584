package rules

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"alertlens/pkg/models"
)

type elasticFile struct {
	Metadata elasticMetadata `toml:"metadata"`
	Rule     elasticRule     `toml:"rule"`
}

type elasticMetadata struct {
	RiskScore  any      `toml:"risk_score"`
	Tags       []string `toml:"tags"`
	References []string `toml:"references"`
}

type elasticRule struct {
	Name        string          `toml:"name"`
	Description string          `toml:"description"`
	Query       string          `toml:"query"`
	RiskScore   any             `toml:"risk_score"`
	Tags        []string        `toml:"tags"`
	References  []string        `toml:"references"`
	Threat      []elasticThreat `toml:"threat"`
}

type elasticThreat struct {
	Framework string `toml:"framework"`
	Tactic    struct {
		ID   string `toml:"id"`
		Name string `toml:"name"`
	} `toml:"tactic"`
	// Technique is an array of tables in current rules and a single table in
	// some older ones.
	Technique any `toml:"technique"`
}

func parseElastic(raw []byte) (models.Rule, error) {
	var f elasticFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return models.Rule{}, fmt.Errorf("parse elastic rule: %w", err)
	}

	rule := models.Rule{
		Title:       orNA(f.Rule.Name),
		Description: orNA(f.Rule.Description),
		Query:       orNA(f.Rule.Query),
		Tags:        firstNonEmpty(f.Rule.Tags, f.Metadata.Tags),
		References:  firstNonEmpty(f.Rule.References, f.Metadata.References),
		Dialect:     models.DialectElastic,
	}
	if rule.Tags == nil {
		rule.Tags = []string{}
	}
	if rule.References == nil {
		rule.References = []string{}
	}

	score, err := riskScore(f.Rule.RiskScore)
	if err != nil {
		return models.Rule{}, err
	}
	if score == 0 {
		if score, err = riskScore(f.Metadata.RiskScore); err != nil {
			return models.Rule{}, err
		}
	}
	rule.RiskScore = score

	if len(f.Rule.Threat) > 0 {
		threat := f.Rule.Threat[0]
		rule.Tactic = strings.TrimSpace(threat.Tactic.Name)
		rule.Technique, rule.TechniqueID = firstTechnique(threat.Technique)
	}
	return rule, nil
}

func firstTechnique(v any) (name, id string) {
	switch t := v.(type) {
	case []map[string]any:
		if len(t) > 0 {
			return techniqueFields(t[0])
		}
	case []any:
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return techniqueFields(m)
			}
		}
	case map[string]any:
		return techniqueFields(t)
	}
	return "", ""
}

func techniqueFields(m map[string]any) (string, string) {
	name, _ := m["name"].(string)
	id, _ := m["id"].(string)
	return strings.TrimSpace(name), strings.TrimSpace(id)
}

func riskScore(v any) (float64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return float64(s), nil
	case float64:
		return s, nil
	default:
		return 0, fmt.Errorf("risk_score must be numeric, got %T", v)
	}
}

func firstNonEmpty(vals ...[]string) []string {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
