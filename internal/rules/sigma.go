package rules

import (
	"fmt"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	"gopkg.in/yaml.v3"

	"alertlens/pkg/models"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// Elastic's scale, so scores from both dialects are comparable.
var sigmaLevelScores = map[string]float64{
	"informational": 0,
	"low":           21,
	"medium":        47,
	"high":          73,
	"critical":      99,
}

func parseSigma(raw []byte) (models.Rule, error) {
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return models.Rule{}, fmt.Errorf("parse sigma rule: %w", err)
	}
	if strings.TrimSpace(rule.Title) == "" {
		return models.Rule{}, fmt.Errorf("parse sigma rule: missing title")
	}

	query, err := detectionText(raw)
	if err != nil {
		return models.Rule{}, err
	}

	tactic, techniqueID := parseAttackTags(rule.Tags)
	out := models.Rule{
		Title:       orNA(rule.Title),
		Description: orNA(rule.Description),
		Query:       orNA(query),
		Tactic:      tactic,
		TechniqueID: techniqueID,
		RiskScore:   sigmaLevelScores[strings.ToLower(strings.TrimSpace(rule.Level))],
		Tags:        append([]string{}, rule.Tags...),
		References:  append([]string{}, rule.References...),
		Dialect:     models.DialectSigma,
	}
	return out, nil
}

// detectionText re-serializes the detection block; it stands in for the
// query text Elastic rules carry.
func detectionText(raw []byte) (string, error) {
	var doc struct {
		Detection yaml.Node `yaml:"detection"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parse sigma detection: %w", err)
	}
	if doc.Detection.Kind == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(&doc.Detection)
	if err != nil {
		return "", fmt.Errorf("encode sigma detection: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// parseAttackTags returns the first ATT&CK tactic (title-cased) and the first
// technique ID found in tags.
func parseAttackTags(tags []string) (string, string) {
	var tactic string
	var technique string

	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(suffix)
			continue
		}
		if tactic == "" && !techniqueTagRegex.MatchString(tag) && !isGroupOrSoftware(suffix) {
			tactic = titleWords(strings.ReplaceAll(suffix, "_", " "))
		}
	}

	return tactic, technique
}

// ATT&CK group (g0001) and software (s0001) tags are not tactics.
func isGroupOrSoftware(suffix string) bool {
	if len(suffix) != 5 || (suffix[0] != 'g' && suffix[0] != 's') {
		return false
	}
	for _, c := range suffix[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
